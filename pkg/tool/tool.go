// Package tool wraps the STM32CubeProgrammer command line utility that does
// the actual probe I/O. The rest of the module only sees the Runner
// interface, so discovery and flashing can be exercised against SimTool.
package tool

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultPath is the executable name looked up on PATH when no explicit tool
// location is configured.
const DefaultPath = "STM32_Programmer_CLI"

// ErrTimeout reports that a bounded invocation did not finish before its
// context deadline.
var ErrTimeout = errors.New("tool: timed out")

// ExitError reports a tool run that finished with a nonzero exit status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("tool: exit status %d", e.Code)
}

// Runner starts invocations of the programmer tool.
type Runner interface {
	// Output runs the tool to completion and returns what it printed on
	// stdout. The output is returned alongside an *ExitError as well, since
	// the tool still prints diagnostics when it fails.
	Output(ctx context.Context, args ...string) ([]byte, error)

	// Start launches a long-running invocation with stdout and stderr merged
	// into a single stream.
	Start(args ...string) (Process, error)
}

// Process is a running tool invocation.
type Process interface {
	// Output is the merged stdout/stderr stream. It reaches EOF once the
	// process closed its side.
	Output() io.Reader

	// Wait blocks until the process exits. A nonzero exit status is
	// returned as *ExitError.
	Wait() error
}

// ListArgs enumerates attached ST-Link probes.
func ListArgs() []string {
	return []string{"-l"}
}

// QueryArgs connects to the target behind probe sn and dumps its option
// bytes, which makes the tool print the target's device ID.
func QueryArgs(sn string) []string {
	return []string{"-c", "port=SWD", "sn=" + sn, "-ob", "displ"}
}

// FlashArgs writes firmware through an external loader, verifies it and
// resets the target. The connection parameters are fixed.
func FlashArgs(sn, firmware, loader string) []string {
	return []string{
		"-c", "port=SWD",
		"freq=4000",
		"sn=" + sn,
		"mode=Normal",
		"ap=1",
		"speed=Reliable",
		"-w", firmware,
		"-v",
		"-el", loader,
		"-rst",
	}
}

// ExitCode extracts the exit status carried by err, if any.
func ExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// contextError reports an invocation cut short by its context. A deadline
// maps to ErrTimeout; cancellation keeps the context error.
func contextError(err error, args []string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, args)
	}
	return fmt.Errorf("tool: %v: %w", args, err)
}
