package flash

import (
	"sync"
	"time"

	"github.com/OpenTraceLab/OpenTraceFlash/pkg/events"
)

// DefaultClockInterval is how often a running session reports its elapsed
// time.
const DefaultClockInterval = 200 * time.Millisecond

// MaxClockInterval keeps sessions at four or more time updates per second.
const MaxClockInterval = 250 * time.Millisecond

// clock publishes TimeUpdate events for a session. It stops when Stop is
// called or, at the next tick, once the session's registry claim is gone.
type clock struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func startClock(s *Session, active Membership, pub events.Publisher, interval time.Duration) *clock {
	c := &clock{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go c.run(s, active, pub, interval)
	return c
}

func (c *clock) run(s *Session, active Membership, pub events.Publisher, interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if !active.Contains(s.Serial) {
			return
		}
		pub.Publish(events.TimeUpdate(s.Serial, s.Elapsed()))

		select {
		case <-c.stop:
			return
		case <-ticker.C:
		}
	}
}

// Stop ends the clock and waits until it published its last update.
func (c *clock) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

// Done is closed once the clock goroutine has exited.
func (c *clock) Done() <-chan struct{} {
	return c.done
}
