// Command remote-post pushes a local file to a remote host and runs a
// post-process command there. The command template uses {path} as the
// placeholder for the uploaded file's remote path.
//
//	remote-post -target mac.local -workdir /tmp/thermal -cmd "open {path}" result.mp4
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/thermal.report/internal/remote"
)

func main() {
	target := flag.String("target", "", "Remote host (required)")
	user := flag.String("user", "", "SSH user (defaults to ssh config)")
	key := flag.String("key", "", "SSH identity file")
	workDir := flag.String("workdir", "/tmp/thermal-report", "Remote work directory")
	cmdTemplate := flag.String("cmd", "echo processing {path}", "Post-process command template; {path} is replaced with the remote path")
	dryRun := flag.Bool("dry-run", false, "Print commands without executing them")
	flag.Parse()

	log.SetFlags(0)

	if *target == "" || flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: remote-post -target <host> [flags] <file>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	localPath := flag.Arg(0)
	if _, err := os.Stat(localPath); err != nil {
		log.Fatalf("[remote-post] cannot read %s: %v", localPath, err)
	}

	e := remote.NewExecutor(*target, *user, *key, *workDir, *dryRun)

	if err := e.EnsureWorkDir(); err != nil {
		log.Fatalf("[remote-post] ensure workdir: %v", err)
	}
	remotePath, err := e.Push(localPath)
	if err != nil {
		log.Fatalf("[remote-post] push: %v", err)
	}
	out, err := e.PostProcess(*cmdTemplate, remotePath)
	if err != nil {
		log.Fatalf("[remote-post] post-process: %v\n%s", err, out)
	}
	if out != "" {
		fmt.Print(out)
		if out[len(out)-1] != '\n' {
			fmt.Println()
		}
	}
	log.Printf("[remote-post] done remote_path=%s", remotePath)
}
