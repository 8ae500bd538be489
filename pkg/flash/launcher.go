package flash

import (
	"errors"
	"fmt"
	"sync"

	"github.com/OpenTraceLab/OpenTraceFlash/pkg/probe"
)

var (
	// ErrBusy is returned when the probe already has an active session.
	ErrBusy = errors.New("flash: probe is already being flashed")
	// ErrMissingFile is returned when the firmware or loader path is empty.
	ErrMissingFile = errors.New("flash: firmware and loader must both be selected")
)

// Launcher claims probes and starts one Worker.Flash goroutine per claim.
type Launcher struct {
	worker *Worker
	wg     sync.WaitGroup
}

// NewLauncher returns a Launcher starting sessions on w.
func NewLauncher(w *Worker) *Launcher {
	return &Launcher{worker: w}
}

// Launch claims p and flashes it in the background. It returns ErrBusy
// without side effects when p is already claimed.
func (l *Launcher) Launch(p probe.Probe, firmware, loader string) error {
	if firmware == "" || loader == "" {
		return ErrMissingFile
	}
	if p.Serial == "" {
		return fmt.Errorf("flash: probe has no serial number")
	}
	if !l.worker.registry.TryAcquire(p.Serial) {
		return fmt.Errorf("%w: %s", ErrBusy, p.Serial)
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.worker.Flash(p, firmware, loader)
	}()
	return nil
}

// Wait blocks until every launched session has returned.
func (l *Launcher) Wait() {
	l.wg.Wait()
}
