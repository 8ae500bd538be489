package probe

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/OpenTraceLab/OpenTraceFlash/pkg/debuglog"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/tool"
)

const (
	// DefaultTimeout bounds each discovery-side tool invocation.
	DefaultTimeout = 10 * time.Second
	// DefaultConcurrency bounds how many probes are queried at once.
	DefaultConcurrency = 4
)

// Membership reports whether a probe is currently being flashed.
type Membership interface {
	Contains(sn string) bool
}

// Discoverer scans for probes through the programmer tool.
type Discoverer struct {
	runner      tool.Runner
	busy        Membership
	log         logrus.FieldLogger
	timeout     time.Duration
	concurrency int
}

// Option customises a Discoverer.
type Option func(*Discoverer)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(disc *Discoverer) {
		if d > 0 {
			disc.timeout = d
		}
	}
}

// WithConcurrency overrides DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(disc *Discoverer) {
		if n > 0 {
			disc.concurrency = n
		}
	}
}

// WithLogger sets the debug log sink.
func WithLogger(l logrus.FieldLogger) Option {
	return func(disc *Discoverer) {
		if l != nil {
			disc.log = l
		}
	}
}

// NewDiscoverer returns a Discoverer that skips the probes busy reports as
// flashing.
func NewDiscoverer(runner tool.Runner, busy Membership, opts ...Option) *Discoverer {
	d := &Discoverer{
		runner:      runner,
		busy:        busy,
		log:         debuglog.Discard(),
		timeout:     DefaultTimeout,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover lists the attached probes in the order the tool reports them.
//
// Probes with an active flash session are reported as StatusFlashing and are
// not queried, so no read is issued against a probe mid-write. Discover
// never fails: tool errors are logged and the affected probe, or the whole
// scan, is left out of the result.
func (d *Discoverer) Discover(ctx context.Context) []Probe {
	d.log.Info("Starting ST-Link detection")

	out, err := d.run(ctx, tool.ListArgs())
	if err != nil {
		d.log.WithError(err).Error("Detection failed")
		return nil
	}
	d.log.Infof("Detection output:\n%s", out)

	probes := ParseList(string(out))
	keep := make([]bool, len(probes))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i := range probes {
		if d.busy.Contains(probes[i].Serial) {
			probes[i].Status = StatusFlashing
			keep[i] = true
			continue
		}
		g.Go(func() error {
			keep[i] = d.identify(ctx, &probes[i])
			return nil
		})
	}
	_ = g.Wait()

	result := make([]Probe, 0, len(probes))
	for i, p := range probes {
		if keep[i] {
			result = append(result, p)
		}
	}
	d.log.Infof("Detected %d ST-Link probe(s)", len(result))
	return result
}

// identify fills in status and device ID. It reports false when the probe
// has to be dropped from the scan.
func (d *Discoverer) identify(ctx context.Context, p *Probe) bool {
	log := d.log.WithField("sn", p.Serial)

	out, err := d.run(ctx, tool.QueryArgs(p.Serial))
	if err != nil {
		code, exited := tool.ExitCode(err)
		if !exited {
			log.WithError(err).Error("Connection check failed")
			return false
		}
		// The tool exits nonzero when no target answers; what it printed
		// still tells us the probe is there.
		log.Warnf("Connection check exited with status %d", code)
	}

	p.Status, p.DeviceID = ParseIdentity(string(out))
	log.Debugf("Connection check: %s %s", p.Status, p.DeviceID)
	return true
}

func (d *Discoverer) run(ctx context.Context, args []string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.runner.Output(ctx, args...)
}
