package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceFlash/pkg/debuglog"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/journal"
)

func newJournalCmd(o *options) *cobra.Command {
	var (
		serial   string
		withTime bool
	)

	cmd := &cobra.Command{
		Use:   "journal FILE",
		Short: "Print the status events recorded by flash --journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := journal.ReadFile(args[0], journal.Filter{
				Serial:   serial,
				SkipTime: !withTime,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range recs {
				fmt.Fprintf(out, "%s  %s\n", r.Time.Local().Format(debuglog.TimestampFormat), r.Event)
			}
			if o.verbose {
				fmt.Fprintf(out, "%d record(s)\n", len(recs))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&serial, "sn", "", "only show events for this probe serial")
	cmd.Flags().BoolVar(&withTime, "time", false, "include session time updates")
	return cmd
}
