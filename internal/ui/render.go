package ui

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Render writes the snapshot as an aligned table.
func (s BoardSnapshot) Render(w io.Writer) error {
	if s.Firmware != "" {
		if _, err := fmt.Fprintf(w, "Firmware: %s\n\n", s.Firmware); err != nil {
			return err
		}
	}
	if len(s.Rows) == 0 {
		_, err := fmt.Fprintln(w, "No ST-Link probes found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "ST-Link Serial\tDevice ID\tStatus\tTime")
	for _, r := range s.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Serial, r.DeviceID, r.Status, r.Time)
	}
	return tw.Flush()
}

// RenderChange writes one line describing the row's current state; used for
// incremental output while sessions run.
func RenderChange(w io.Writer, r Row) error {
	_, err := fmt.Fprintf(w, "%-26s %-28s %s\n", r.Serial, r.Status, r.Time)
	return err
}
