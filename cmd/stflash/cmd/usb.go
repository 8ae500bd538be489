package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceFlash/pkg/probe"
)

// scanUSB is swapped out by tests.
var scanUSB = probe.ScanUSB

func newUSBCmd(o *options) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "usb",
		Short: "List ST-Link devices on the USB bus",
		Long: `Enumerate ST-Link debug probes directly on the USB bus without starting
STM32CubeProgrammer. Useful to check cabling and permissions when a probe does
not show up in "stflash probes".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			devs, err := scanUSB(ctx)
			if err != nil {
				return fmt.Errorf("usb scan: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(devs) == 0 {
				fmt.Fprintln(out, "No ST-Link USB devices found.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "BUS\tADDR\tVID:PID\tSERIAL\tMODEL")
			for _, d := range devs {
				fmt.Fprintf(tw, "%d\t%d\t%04x:%04x\t%s\t%s\n", d.Bus, d.Address, d.VendorID, d.ProductID, orDash(d.Serial), d.Version)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "USB enumeration timeout")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
