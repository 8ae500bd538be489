// Package journal records status events to a CBOR file for later
// inspection with `stflash journal`.
//
// A journal is a diagnostic trace only; nothing reads it back into the
// orchestration state.
package journal

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/OpenTraceLab/OpenTraceFlash/pkg/events"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create journal CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create journal CBOR decoder mode: %v", err))
	}
}

// Record is one journal entry.
type Record struct {
	// Time is when the consumer drained the event.
	Time  time.Time    `cbor:"1,keyasint"`
	Event events.Event `cbor:"2,keyasint"`
}

// Writer appends records to a journal file. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	enc    *cbor.Encoder
	closed bool
	now    func() time.Time
}

// Create opens path for appending, creating it if needed.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	return &Writer{
		file: f,
		enc:  encMode.NewEncoder(f),
		now:  time.Now,
	}, nil
}

// Record appends evs, all stamped with the current time. Calls after Close
// are ignored.
func (w *Writer) Record(evs ...events.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	at := w.now()
	for _, e := range evs {
		if err := w.enc.Encode(Record{Time: at, Event: e}); err != nil {
			return fmt.Errorf("journal: encode: %w", err)
		}
	}
	return nil
}

// Close closes the file. It is safe to call Close multiple times.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}
