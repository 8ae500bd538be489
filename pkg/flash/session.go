package flash

import (
	"time"

	"github.com/google/uuid"
)

// Session is one firmware write to one probe.
type Session struct {
	// ID correlates the session's debug log lines.
	ID           uuid.UUID
	Serial       string
	FirmwarePath string
	LoaderPath   string
	StartTime    time.Time
}

func newSession(sn, firmware, loader string) *Session {
	return &Session{
		ID:           uuid.New(),
		Serial:       sn,
		FirmwarePath: firmware,
		LoaderPath:   loader,
		StartTime:    time.Now(),
	}
}

// Elapsed returns the time since the session started.
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.StartTime)
}
