package tool

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

// SimResult scripts the outcome of one simulated invocation.
type SimResult struct {
	// Output is printed before the invocation finishes.
	Output string
	// ExitCode is reported once the output has been consumed.
	ExitCode int
	// Err makes the invocation fail to start.
	Err error
	// StreamErr is returned by the output stream instead of EOF.
	StreamErr error
	// Duration keeps the invocation running after its output was printed.
	Duration time.Duration
	// LineDelay is slept before each output line.
	LineDelay time.Duration
}

// SimHook decides the result of an invocation from its arguments.
type SimHook func(args []string) SimResult

// SimTool is an in-memory Runner useful for unit tests. It records every
// invocation and answers through OnRun, defaulting to a silent successful run.
type SimTool struct {
	OnRun SimHook

	mu    sync.Mutex
	calls [][]string
}

// NewSimTool constructs a simulator answering through hook.
func NewSimTool(hook SimHook) *SimTool {
	return &SimTool{OnRun: hook}
}

// Calls returns a copy of the argument lists seen so far, in call order.
func (s *SimTool) Calls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.calls))
	for i, args := range s.calls {
		out[i] = append([]string(nil), args...)
	}
	return out
}

// CallCount reports how many recorded invocations contain every one of the
// given arguments.
func (s *SimTool) CallCount(with ...string) int {
	count := 0
	for _, args := range s.Calls() {
		if containsAll(args, with) {
			count++
		}
	}
	return count
}

func (s *SimTool) Output(ctx context.Context, args ...string) ([]byte, error) {
	res := s.record(args)
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Duration > 0 {
		timer := time.NewTimer(res.Duration)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, contextError(ctx.Err(), args)
		case <-timer.C:
		}
	}
	if res.ExitCode != 0 {
		return []byte(res.Output), &ExitError{Code: res.ExitCode}
	}
	return []byte(res.Output), nil
}

func (s *SimTool) Start(args ...string) (Process, error) {
	res := s.record(args)
	if res.Err != nil {
		return nil, res.Err
	}

	pr, pw := io.Pipe()
	p := &simProcess{out: pr, code: res.ExitCode, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		for _, line := range strings.SplitAfter(res.Output, "\n") {
			if line == "" {
				continue
			}
			if res.LineDelay > 0 {
				time.Sleep(res.LineDelay)
			}
			if _, err := io.WriteString(pw, line); err != nil {
				return
			}
		}
		if res.Duration > 0 {
			time.Sleep(res.Duration)
		}
		pw.CloseWithError(res.StreamErr)
	}()
	return p, nil
}

func (s *SimTool) record(args []string) SimResult {
	s.mu.Lock()
	s.calls = append(s.calls, append([]string(nil), args...))
	hook := s.OnRun
	s.mu.Unlock()

	if hook == nil {
		return SimResult{}
	}
	return hook(args)
}

type simProcess struct {
	out  *io.PipeReader
	code int
	done chan struct{}
}

func (p *simProcess) Output() io.Reader {
	return p.out
}

func (p *simProcess) Wait() error {
	<-p.done
	p.out.Close()
	if p.code != 0 {
		return &ExitError{Code: p.code}
	}
	return nil
}

// HasArgs reports whether args contains every one of want.
func HasArgs(args []string, want ...string) bool {
	return containsAll(args, want)
}

func containsAll(args, want []string) bool {
	for _, w := range want {
		found := false
		for _, a := range args {
			if a == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

var _ Runner = (*SimTool)(nil)
