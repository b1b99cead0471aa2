package jobs

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// Params are the processing knobs a job carries through to the
// processor invocation.
type Params struct {
	PercentileLow  float64 `json:"plow"`
	PercentileHigh float64 `json:"phigh"`
	Gamma          float64 `json:"gamma"`
	Alpha          float64 `json:"alpha"`
	Stat           string  `json:"stat"`
	AmbientC       float64 `json:"ambient"`
	MaxC           float64 `json:"maxc"`
	Preview        bool    `json:"preview"`
	NoOverlay      bool    `json:"noOverlay"`
}

// ProcessorRunner runs jobs by exec'ing the thermal-proc binary and
// relaying its diagnostic stream line by line.
type ProcessorRunner struct {
	// Binary is the processor executable, looked up on PATH when not
	// absolute.
	Binary string
}

func (r *ProcessorRunner) args(j *Job) ([]string, error) {
	var p Params
	if err := json.Unmarshal([]byte(j.ParamsJSON), &p); err != nil {
		return nil, fmt.Errorf("decode job params: %w", err)
	}
	args := []string{
		"-plow", strconv.FormatFloat(p.PercentileLow, 'g', -1, 64),
		"-phigh", strconv.FormatFloat(p.PercentileHigh, 'g', -1, 64),
		"-gamma", strconv.FormatFloat(p.Gamma, 'g', -1, 64),
		"-alpha", strconv.FormatFloat(p.Alpha, 'g', -1, 64),
		"-stat", p.Stat,
		"-ambient", strconv.FormatFloat(p.AmbientC, 'g', -1, 64),
		"-maxc", strconv.FormatFloat(p.MaxC, 'g', -1, 64),
		"-summary-json", j.SummaryPath,
	}
	if p.Preview {
		args = append(args, "-preview")
	}
	if p.NoOverlay {
		args = append(args, "-no-overlay")
	}
	return append(args, j.InputPath, j.OutputPath), nil
}

// Run executes the processor for one job. Stdout and stderr are merged
// into a single ordered line stream fed to logf.
func (r *ProcessorRunner) Run(ctx context.Context, j *Job, logf func(format string, v ...any)) error {
	args, err := r.args(j)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, r.Binary, args...)

	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("attach processor output: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start processor: %w", err)
	}

	scan := bufio.NewScanner(pipe)
	scan.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scan.Scan() {
		logf("%s", scan.Text())
	}
	if err := scan.Err(); err != nil {
		logf("WARNING: log stream truncated: %v", err)
	}

	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("thermal-proc exited with status %d", exitErr.ExitCode())
		}
		return fmt.Errorf("thermal-proc: %w", err)
	}
	return nil
}

var _ Runner = (*ProcessorRunner)(nil)
