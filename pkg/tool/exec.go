package tool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// waitDelay bounds how long Wait keeps the output pipes open after a killed
// process exits, in case it left children behind holding them.
const waitDelay = time.Second

// Exec runs the real programmer executable.
type Exec struct {
	Path string
}

// NewExec returns a runner for the executable at path, falling back to
// DefaultPath when path is empty.
func NewExec(path string) *Exec {
	if path == "" {
		path = DefaultPath
	}
	return &Exec{Path: path}
}

func (e *Exec) Output(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, e.Path, args...)
	cmd.SysProcAttr = sysProcAttr()
	cmd.WaitDelay = waitDelay

	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}
	// A killed process reports exit status -1; the context says why.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, contextError(ctxErr, args)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, &ExitError{Code: exitErr.ExitCode()}
	}
	return out, fmt.Errorf("tool: run %s: %w", e.Path, err)
}

func (e *Exec) Start(args ...string) (Process, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("tool: output pipe: %w", err)
	}

	cmd := exec.Command(e.Path, args...)
	cmd.Stdout = w
	cmd.Stderr = w
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return nil, fmt.Errorf("tool: start %s: %w", e.Path, err)
	}
	// The child holds its own copy of the write end; ours has to go so the
	// reader sees EOF when the child exits.
	w.Close()

	return &execProcess{cmd: cmd, out: r}, nil
}

type execProcess struct {
	cmd *exec.Cmd
	out *os.File
}

func (p *execProcess) Output() io.Reader {
	return p.out
}

func (p *execProcess) Wait() error {
	defer p.out.Close()

	err := p.cmd.Wait()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode()}
	}
	return fmt.Errorf("tool: wait: %w", err)
}

var _ Runner = (*Exec)(nil)
