package flash

import (
	"bufio"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/OpenTraceLab/OpenTraceFlash/pkg/debuglog"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/events"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/probe"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/tool"
)

// ReasonExit is the failure reason reported when the tool exits nonzero. The
// exit status itself travels in events.Event.ExitCode.
const ReasonExit = "flash failed"

// Membership reports whether a probe still has an active session.
type Membership interface {
	Contains(sn string) bool
}

// Registry is the set of claimed probes shared with discovery.
type Registry interface {
	Membership
	TryAcquire(sn string) bool
	Release(sn string)
}

// Worker runs flash sessions.
type Worker struct {
	runner   tool.Runner
	registry Registry
	bus      events.Publisher
	log      logrus.FieldLogger
	rules    Classifier
	interval time.Duration
}

// Option customises a Worker.
type Option func(*Worker)

// WithLogger sets the debug log sink raw tool output is written to.
func WithLogger(l logrus.FieldLogger) Option {
	return func(w *Worker) {
		if l != nil {
			w.log = l
		}
	}
}

// WithClockInterval overrides DefaultClockInterval. Values above
// MaxClockInterval are capped.
func WithClockInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = min(d, MaxClockInterval)
		}
	}
}

// WithRules replaces DefaultRules.
func WithRules(rules Classifier) Option {
	return func(w *Worker) {
		w.rules = rules
	}
}

// NewWorker returns a Worker driving runner and reporting to bus.
func NewWorker(runner tool.Runner, reg Registry, bus events.Publisher, opts ...Option) *Worker {
	w := &Worker{
		runner:   runner,
		registry: reg,
		bus:      bus,
		log:      debuglog.Discard(),
		rules:    DefaultRules,
		interval: DefaultClockInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Flash writes firmware to the target behind p using the external loader and
// blocks until the tool exits. The caller must already hold the registry
// claim for p.Serial; Flash releases it on every path.
//
// Failures are never returned. They are published as the session's terminal
// events.Failed event.
func (w *Worker) Flash(p probe.Probe, firmware, loader string) {
	s := newSession(p.Serial, firmware, loader)
	defer w.registry.Release(s.Serial)

	log := w.log.WithFields(logrus.Fields{
		debuglog.FieldProbe: probe.ShortSerial(s.Serial),
		"session":           s.ID.String(),
	})
	log.Infof("Starting programming for %s", s.Serial)

	clk := startClock(s, w.registry, w.bus, w.interval)
	final := w.program(s, log)
	clk.Stop()

	log.WithField("elapsed", s.Elapsed().Round(100*time.Millisecond)).Infof("Programming ended: %s", final)
	w.bus.Publish(final)
}

func (w *Worker) program(s *Session, log logrus.FieldLogger) events.Event {
	proc, err := w.runner.Start(tool.FlashArgs(s.Serial, s.FirmwarePath, s.LoaderPath)...)
	if err != nil {
		log.WithError(err).Error("Programming could not start")
		return events.Failed(s.Serial, err.Error(), events.NoExitCode)
	}

	streamErr := w.consume(s.Serial, proc.Output())
	if streamErr != nil {
		log.WithError(streamErr).Error("Reading programmer output failed")
		// The probe stays busy until the tool is gone.
		_, _ = io.Copy(io.Discard, proc.Output())
	}
	waitErr := proc.Wait()

	switch {
	case streamErr != nil:
		return events.Failed(s.Serial, streamErr.Error(), events.NoExitCode)
	case waitErr == nil:
		return events.Completed(s.Serial)
	}
	if code, ok := tool.ExitCode(waitErr); ok {
		return events.Failed(s.Serial, ReasonExit, code)
	}
	return events.Failed(s.Serial, waitErr.Error(), events.NoExitCode)
}

// consume logs every output line and publishes the progress labels it
// recognises, at most one per line.
func (w *Worker) consume(sn string, r io.Reader) error {
	log := w.log.WithField(debuglog.FieldProbe, probe.ShortSerial(sn))

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	sc.Split(scanLines)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		log.Info(line)
		if line == "" {
			continue
		}
		if label, ok := w.rules.Classify(line); ok {
			w.bus.Publish(events.Progress(sn, label))
		}
	}
	return sc.Err()
}
