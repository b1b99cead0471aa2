// Package remote pushes processed files to a remote host over ssh/scp
// and runs a post-process command there. Commands are executed through
// the system ssh client rather than an in-process implementation so
// the user's agent and config apply.
package remote

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/banshee-data/thermal.report/internal/monitoring"
)

// Executor runs commands against one remote target.
type Executor struct {
	Target  string
	SSHUser string
	SSHKey  string
	WorkDir string
	DryRun  bool
}

// NewExecutor creates an executor for target. WorkDir is the remote
// directory uploads land in.
func NewExecutor(target, sshUser, sshKey, workDir string, dryRun bool) *Executor {
	return &Executor{
		Target:  target,
		SSHUser: sshUser,
		SSHKey:  sshKey,
		WorkDir: workDir,
		DryRun:  dryRun,
	}
}

func (e *Executor) userTarget() string {
	target := e.Target
	if e.SSHUser != "" && !strings.Contains(target, "@") {
		target = fmt.Sprintf("%s@%s", e.SSHUser, target)
	}
	return target
}

func (e *Executor) sshArgs() []string {
	args := []string{}
	if e.SSHKey != "" {
		args = append(args, "-i", e.SSHKey)
	}
	// Host key pinning is deliberately relaxed; this tool targets
	// trusted automation hosts only.
	args = append(args, "-o", "StrictHostKeyChecking=no")
	args = append(args, "-o", "UserKnownHostsFile=/dev/null")
	args = append(args, "-o", "LogLevel=ERROR")
	return args
}

// Run executes a shell command on the target and returns its combined
// output.
func (e *Executor) Run(command string) (string, error) {
	if e.DryRun {
		return fmt.Sprintf("[DRY-RUN] Would execute: ssh %s %q", e.userTarget(), command), nil
	}
	args := append(e.sshArgs(), e.userTarget(), command)
	monitoring.Logf("[Remote] ssh %s: %s", e.userTarget(), command)
	output, err := exec.Command("ssh", args...).CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("ssh failed: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// EnsureWorkDir creates the remote work directory if needed.
func (e *Executor) EnsureWorkDir() error {
	if e.WorkDir == "" {
		return fmt.Errorf("remote work directory not set")
	}
	_, err := e.Run(fmt.Sprintf("mkdir -p %s", e.WorkDir))
	return err
}

// Push copies src to the remote work directory and returns the remote
// path.
func (e *Executor) Push(src string) (string, error) {
	remotePath := strings.TrimRight(e.WorkDir, "/") + "/" + filepath.Base(src)
	if e.DryRun {
		monitoring.Logf("[Remote] [DRY-RUN] Would copy: scp %s %s:%s", src, e.userTarget(), remotePath)
		return remotePath, nil
	}
	args := append(e.sshArgs(), src, fmt.Sprintf("%s:%s", e.userTarget(), remotePath))
	monitoring.Logf("[Remote] scp %s -> %s:%s", src, e.userTarget(), remotePath)
	if output, err := exec.Command("scp", args...).CombinedOutput(); err != nil {
		return "", fmt.Errorf("scp failed: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return remotePath, nil
}

// PostProcess substitutes remotePath into the {path} slot of the
// command template and runs it on the target.
func (e *Executor) PostProcess(template, remotePath string) (string, error) {
	cmd := strings.ReplaceAll(template, "{path}", remotePath)
	return e.Run(cmd)
}
