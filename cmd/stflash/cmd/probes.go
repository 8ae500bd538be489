package cmd

import (
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceFlash/internal/ui"
)

func newProbesCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:     "probes",
		Aliases: []string{"list", "ls"},
		Short:   "List attached ST-Link probes",
		Long: `Ask STM32CubeProgrammer for the attached ST-Link probes, then connect to each
one to read the device ID of its target. Probes whose target does not answer
are listed as "Not Connected".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			probes := s.discoverer(o.cfg).Discover(cmd.Context())

			board := ui.NewBoard("")
			board.Load(probes, s.reg)
			return board.Snapshot().Render(cmd.OutOrStdout())
		},
	}
}
