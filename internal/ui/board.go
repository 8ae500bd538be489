package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/OpenTraceLab/OpenTraceFlash/pkg/events"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/probe"
)

// Tone is the colour a row's status is shown in.
type Tone uint8

const (
	ToneIdle Tone = iota // gray
	ToneBusy             // blue
	ToneGood             // green
	ToneBad              // red
)

// String returns the tone's colour name.
func (t Tone) String() string {
	switch t {
	case ToneBusy:
		return "blue"
	case ToneGood:
		return "green"
	case ToneBad:
		return "red"
	default:
		return "gray"
	}
}

// Row texts shown before or outside a session.
const (
	StatusReady        = "Ready"
	StatusNotConnected = "Not Connected"
	StatusFlashing     = "Flashing..."
	StatusCompleted    = "✅ Completed"
	StatusFailed       = "❌ Failed"

	TimeIdle    = "--:--"
	TimeStarted = "0:00"

	noTarget = "No target"
)

// Row is the display state of one probe.
type Row struct {
	Serial   string
	DeviceID string
	Status   string
	Time     string
	Tone     Tone
	// CanFlash enables the flash action for this probe.
	CanFlash bool
	// Done is set once the row's session reported its terminal event.
	Done   bool
	Failed bool
}

// Membership reports whether a probe has an active session.
type Membership interface {
	Contains(sn string) bool
}

// BoardSnapshot captures a copy of the board for rendering without holding
// the board's lock while writing output.
type BoardSnapshot struct {
	Firmware    string
	Rows        []Row
	LastUpdated time.Time
}

// Board is the probe table. Only the drain tick mutates it; workers never
// touch it and communicate through events instead.
type Board struct {
	mu sync.RWMutex

	firmware string
	rows     []Row
	index    map[string]int

	lastUpdated time.Time
}

// NewBoard returns an empty board for the given firmware image name.
func NewBoard(firmware string) *Board {
	return &Board{
		firmware:    firmware,
		index:       make(map[string]int),
		lastUpdated: time.Now(),
	}
}

// Load replaces the rows with the result of a discovery scan.
func (b *Board) Load(probes []probe.Probe, busy Membership) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rows = make([]Row, 0, len(probes))
	b.index = make(map[string]int, len(probes))
	for _, p := range probes {
		row := Row{Serial: p.Serial, DeviceID: p.DeviceID, Time: TimeIdle}
		if row.DeviceID == "" {
			row.DeviceID = noTarget
		}
		switch {
		case busy.Contains(p.Serial) || p.Status == probe.StatusFlashing:
			row.Status, row.Tone, row.Time = StatusFlashing, ToneBusy, TimeStarted
		case p.Status == probe.StatusConnected:
			row.Status, row.Tone, row.CanFlash = StatusReady, ToneGood, true
		default:
			row.Status, row.Tone = StatusNotConnected, ToneIdle
		}
		b.index[p.Serial] = len(b.rows)
		b.rows = append(b.rows, row)
	}
	b.lastUpdated = time.Now()
}

// MarkLaunched switches the row for sn to its in-progress look.
func (b *Board) MarkLaunched(sn string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i, ok := b.index[sn]
	if !ok {
		return
	}
	r := &b.rows[i]
	r.Status, r.Time, r.Tone = StatusFlashing, TimeStarted, ToneBusy
	r.CanFlash, r.Done, r.Failed = false, false, false
	b.lastUpdated = time.Now()
}

// Apply folds drained events into the rows and returns how many changed
// something. Events for probes not on the board are ignored.
func (b *Board) Apply(evs []events.Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	applied := 0
	for _, e := range evs {
		i, ok := b.index[e.Serial]
		if !ok {
			continue
		}
		r := &b.rows[i]
		switch e.Kind {
		case events.KindTime:
			r.Time = fmt.Sprintf("%.1fs", e.Elapsed.Seconds())
		case events.KindProgress:
			r.Status, r.Tone = e.Label, ToneBusy
		case events.KindCompleted:
			r.Status, r.Tone = StatusCompleted, ToneGood
			r.CanFlash, r.Done = true, true
		case events.KindFailed:
			r.Status, r.Tone = failureText(e), ToneBad
			r.CanFlash, r.Done, r.Failed = true, true, true
		default:
			continue
		}
		applied++
	}
	if applied > 0 {
		b.lastUpdated = time.Now()
	}
	return applied
}

func failureText(e events.Event) string {
	if e.ExitCode != events.NoExitCode {
		return fmt.Sprintf("%s (exit %d)", StatusFailed, e.ExitCode)
	}
	return "❌ Error: " + e.Reason
}

// Row returns the display state of sn.
func (b *Board) Row(sn string) (Row, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i, ok := b.index[sn]
	if !ok {
		return Row{}, false
	}
	return b.rows[i], true
}

// Snapshot returns a copy of the board for rendering.
func (b *Board) Snapshot() BoardSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rows := make([]Row, len(b.rows))
	copy(rows, b.rows)
	return BoardSnapshot{
		Firmware:    b.firmware,
		Rows:        rows,
		LastUpdated: b.lastUpdated,
	}
}

// Outcome counts finished rows.
func (s BoardSnapshot) Outcome() (completed, failed int) {
	for _, r := range s.Rows {
		if !r.Done {
			continue
		}
		if r.Failed {
			failed++
		} else {
			completed++
		}
	}
	return completed, failed
}
