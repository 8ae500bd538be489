package ui

import (
	"context"
	"time"

	"github.com/OpenTraceLab/OpenTraceFlash/pkg/events"
)

// DefaultTick is how often the board drains the event bus.
const DefaultTick = 200 * time.Millisecond

// Source is where the board gets its events from.
type Source interface {
	DrainAll() []events.Event
}

// Pump drains src into the board every tick until idle reports true or ctx
// ends. onChange, if set, sees every non-empty batch after it was applied.
//
// idle is evaluated before each drain: workers publish their terminal event
// before releasing the probe, so once idle holds the following drain picks
// up everything that is left.
func (b *Board) Pump(ctx context.Context, src Source, tick time.Duration, idle func() bool, onChange func([]events.Event)) error {
	if tick <= 0 {
		tick = DefaultTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		stop := idle()
		if evs := src.DrainAll(); len(evs) > 0 {
			b.Apply(evs)
			if onChange != nil {
				onChange(evs)
			}
		}
		if stop {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
