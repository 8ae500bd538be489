package journal

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/OpenTraceLab/OpenTraceFlash/pkg/events"
)

// Filter selects records. The zero value matches everything.
type Filter struct {
	// Serial keeps only records for this probe.
	Serial string
	// SkipTime drops KindTime records.
	SkipTime bool
}

func (f Filter) matches(r Record) bool {
	if f.Serial != "" && r.Event.Serial != f.Serial {
		return false
	}
	if f.SkipTime && r.Event.Kind == events.KindTime {
		return false
	}
	return true
}

// Read decodes every record from r that matches f.
func Read(r io.Reader, f Filter) ([]Record, error) {
	dec := decMode.NewDecoder(r)
	var out []Record
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("journal: decode record %d: %w", len(out), err)
		}
		if f.matches(rec) {
			out = append(out, rec)
		}
	}
}

// ReadFile reads the journal at path.
func ReadFile(path string, f Filter) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	defer file.Close()
	return Read(file, f)
}
