// Package probe finds the ST-Link probes attached to the host and the
// targets behind them.
package probe

import "fmt"

// Status is the connectivity state of a probe as seen by the last scan.
type Status uint8

const (
	// StatusDisconnected means the probe answered but no target was reached.
	StatusDisconnected Status = iota
	// StatusConnected means a target reported its device ID.
	StatusConnected
	// StatusFlashing means a flash session owns the probe; it was not queried.
	StatusFlashing
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnected:
		return "Connected"
	case StatusFlashing:
		return "Flashing"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Probe describes one ST-Link found by a scan. Probes are rebuilt on every
// scan and identified by Serial.
type Probe struct {
	Serial     string
	AccessPort string
	Status     Status
	// DeviceID is the target's hex device ID (e.g. "0x415"), empty when
	// unknown.
	DeviceID string
}

// ShortSerial returns the last four characters of the serial, which is how
// log lines tag the probe they belong to.
func ShortSerial(sn string) string {
	if len(sn) <= 4 {
		return sn
	}
	return sn[len(sn)-4:]
}
