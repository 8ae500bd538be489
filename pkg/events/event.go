// Package events carries status updates from flash workers to the single
// consumer that owns display state.
package events

import (
	"fmt"
	"time"
)

// Kind selects which variant of Event is populated.
type Kind uint8

const (
	// KindProgress carries a phase label recognised in the tool output.
	KindProgress Kind = iota + 1
	// KindTime carries the elapsed time of a running session.
	KindTime
	// KindCompleted ends a session that exited successfully.
	KindCompleted
	// KindFailed ends a session that failed for any reason.
	KindFailed
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindProgress:
		return "PROGRESS"
	case KindTime:
		return "TIME"
	case KindCompleted:
		return "COMPLETED"
	case KindFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// NoExitCode marks a failure that did not come from a process exit status.
const NoExitCode = -1

// Event is an immutable status update about the session on probe Serial.
// CBOR encoding uses integer keys so journals stay compact.
type Event struct {
	Serial string `cbor:"1,keyasint"`
	Kind   Kind   `cbor:"2,keyasint"`

	// Label is set for KindProgress.
	Label string `cbor:"3,keyasint,omitempty"`
	// Elapsed is set for KindTime.
	Elapsed time.Duration `cbor:"4,keyasint,omitempty"`
	// Reason and ExitCode are set for KindFailed.
	Reason   string `cbor:"5,keyasint,omitempty"`
	ExitCode int    `cbor:"6,keyasint,omitempty"`
}

// Progress reports that the tool entered the phase named label.
func Progress(sn, label string) Event {
	return Event{Serial: sn, Kind: KindProgress, Label: label}
}

// TimeUpdate reports how long the session on sn has been running.
func TimeUpdate(sn string, elapsed time.Duration) Event {
	return Event{Serial: sn, Kind: KindTime, Elapsed: elapsed}
}

// Completed reports a successful flash.
func Completed(sn string) Event {
	return Event{Serial: sn, Kind: KindCompleted}
}

// Failed reports a failed flash. Pass NoExitCode when the failure did not
// come from the tool's exit status.
func Failed(sn, reason string, exitCode int) Event {
	return Event{Serial: sn, Kind: KindFailed, Reason: reason, ExitCode: exitCode}
}

// Terminal reports whether e ends its session.
func (e Event) Terminal() bool {
	return e.Kind == KindCompleted || e.Kind == KindFailed
}

func (e Event) String() string {
	switch e.Kind {
	case KindProgress:
		return fmt.Sprintf("%s %s %q", e.Serial, e.Kind, e.Label)
	case KindTime:
		return fmt.Sprintf("%s %s %.1fs", e.Serial, e.Kind, e.Elapsed.Seconds())
	case KindFailed:
		if e.ExitCode != NoExitCode {
			return fmt.Sprintf("%s %s %s (exit %d)", e.Serial, e.Kind, e.Reason, e.ExitCode)
		}
		return fmt.Sprintf("%s %s %s", e.Serial, e.Kind, e.Reason)
	default:
		return fmt.Sprintf("%s %s", e.Serial, e.Kind)
	}
}
