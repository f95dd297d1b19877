package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
)

// Argument placeholders understood by ExecRunner
const (
	PlaceholderInput        = "{input}"
	PlaceholderOutput       = "{output}"
	PlaceholderJobID        = "{job_id}"
	PlaceholderPlatforms    = "{platforms}"
	PlaceholderPlatformsCSV = "{platforms_csv}"
)

const (
	// stderrTailBytes bounds how much stderr ends up in a job's error message
	stderrTailBytes = 4 * 1024
	waitDelay       = 10 * time.Second
)

// DefaultArgs mirrors the command line of the repurposing script
var DefaultArgs = []string{
	PlaceholderInput,
	"--platforms", PlaceholderPlatforms,
	"--output", PlaceholderOutput,
	"--job_id", PlaceholderJobID,
}

// Invocation describes one run of the external processor for one job
type Invocation struct {
	JobID     string
	InputPath string
	OutputDir string
	Platforms []domain.Platform
	// LogPath receives stdout and stderr when set
	LogPath string
}

// Runner executes the external processor to completion
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
}

// ExecConfig holds the external command settings
type ExecConfig struct {
	Command string
	Args    []string
	WorkDir string
	Env     []string
	// MaxRuntime kills the processor after this long; zero means no limit
	MaxRuntime time.Duration
	// CallbackURL is the API base the processor may report progress to
	CallbackURL string
}

// ExecRunner runs the processor as a child process
type ExecRunner struct {
	command     string
	args        []string
	workDir     string
	env         []string
	maxRuntime  time.Duration
	callbackURL string
}

// NewExecRunner creates an ExecRunner, falling back to DefaultArgs
func NewExecRunner(cfg ExecConfig) *ExecRunner {
	args := cfg.Args
	if len(args) == 0 {
		args = DefaultArgs
	}
	return &ExecRunner{
		command:     cfg.Command,
		args:        args,
		workDir:     cfg.WorkDir,
		env:         cfg.Env,
		maxRuntime:  cfg.MaxRuntime,
		callbackURL: strings.TrimRight(cfg.CallbackURL, "/"),
	}
}

// ExpandArgs substitutes placeholders. {platforms} expands to one argument per
// platform; other placeholders may appear inside a larger argument.
func ExpandArgs(template []string, inv Invocation) []string {
	platforms := domain.PlatformStrings(inv.Platforms)
	replacer := strings.NewReplacer(
		PlaceholderInput, inv.InputPath,
		PlaceholderOutput, inv.OutputDir,
		PlaceholderJobID, inv.JobID,
		PlaceholderPlatformsCSV, strings.Join(platforms, ","),
	)

	out := make([]string, 0, len(template)+len(platforms))
	for _, arg := range template {
		if arg == PlaceholderPlatforms {
			out = append(out, platforms...)
			continue
		}
		out = append(out, replacer.Replace(arg))
	}
	return out
}

// Run starts the processor and waits for it to exit
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) error {
	if r.maxRuntime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.maxRuntime)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.command, ExpandArgs(r.args, inv)...)
	cmd.Dir = r.workDir
	// grandchildren holding the output pipes must not keep Wait blocked forever
	cmd.WaitDelay = waitDelay
	cmd.Env = append(os.Environ(), r.env...)
	cmd.Env = append(cmd.Env,
		"CLIP_JOB_ID="+inv.JobID,
		"CLIP_OUTPUT_DIR="+inv.OutputDir,
	)
	if r.callbackURL != "" {
		cmd.Env = append(cmd.Env, fmt.Sprintf("CLIP_PROGRESS_URL=%s/api/v1/jobs/%s/progress", r.callbackURL, inv.JobID))
	}

	var logOut io.Writer = io.Discard
	if inv.LogPath != "" {
		f, err := os.OpenFile(inv.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return &domain.ProcessorLaunchError{Err: fmt.Errorf("failed to open processor log: %w", err)}
		}
		defer f.Close()
		logOut = f
	}

	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd.Stdout = logOut
	cmd.Stderr = io.MultiWriter(logOut, stderr)

	if err := cmd.Start(); err != nil {
		return &domain.ProcessorLaunchError{Err: err}
	}

	err := cmd.Wait()
	if err == nil {
		return nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &domain.ProcessorRuntimeError{
			ExitCode: -1,
			Stderr:   stderr.String(),
			Err:      fmt.Errorf("exceeded max runtime of %s", r.maxRuntime),
		}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return &domain.ProcessorRuntimeError{
			ExitCode: exitErr.ExitCode(),
			Stderr:   stderr.String(),
			Err:      err,
		}
	}

	return &domain.ProcessorRuntimeError{ExitCode: -1, Stderr: stderr.String(), Err: err}
}

// tailBuffer keeps the last limit bytes written to it
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

// String returns the trimmed tail, starting at a line boundary when possible
func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.buf
	if len(b) == t.limit {
		if i := bytes.IndexByte(b, '\n'); i >= 0 && i < len(b)-1 {
			b = b[i+1:]
		}
	}
	return strings.TrimSpace(string(b))
}
