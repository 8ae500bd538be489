package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceFlash/internal/ui"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/events"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/flash"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/journal"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/probe"
)

type flashOptions struct {
	firmware string
	loader   string
	serials  []string
	journal  string
}

func newFlashCmd(o *options) *cobra.Command {
	fo := &flashOptions{}

	cmd := &cobra.Command{
		Use:   "flash",
		Short: "Write firmware to every connected probe in parallel",
		Long: `Discover the attached probes and start one programming session per probe.
Each session writes the firmware through the external loader, verifies it and
resets the target. Progress is printed as the programmer reports it; the
command returns once every session has ended and fails if any of them did.

Sessions cannot be cancelled once started. Interrupting stflash stops the
display but waits for the running sessions to finish.

Examples:
  # Flash every probe with a reachable target
  stflash flash --firmware app.hex --loader MX25LM51245G_STM32H7A3I-DK.stldr

  # Flash two specific probes and keep an event journal
  stflash flash -f app.hex -l MX25.stldr --sn 066DFF495051717867123456 --sn 0670FF3632524B3043205426 --journal run.stj`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlash(cmd, o, fo)
		},
	}

	cmd.Flags().StringVarP(&fo.firmware, "firmware", "f", "", "firmware image (.hex, .bin, .elf)")
	cmd.Flags().StringVarP(&fo.loader, "loader", "l", "", "external loader (.stldr)")
	cmd.Flags().StringSliceVar(&fo.serials, "sn", nil, "only flash these probe serial numbers")
	cmd.Flags().StringVar(&fo.journal, "journal", "", "record status events to this file")
	return cmd
}

func runFlash(cmd *cobra.Command, o *options, fo *flashOptions) error {
	out := cmd.OutOrStdout()

	firmware := firstNonEmpty(fo.firmware, o.cfg.Firmware)
	loader := firstNonEmpty(fo.loader, o.cfg.Loader)
	if firmware == "" || loader == "" {
		return flash.ErrMissingFile
	}
	for _, path := range []string{firmware, loader} {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("flash: %w", err)
		}
	}

	s, err := o.openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	var rec *journal.Writer
	if path := firstNonEmpty(fo.journal, o.cfg.JournalFile); path != "" {
		if rec, err = journal.Create(path); err != nil {
			return err
		}
		defer rec.Close()
	}

	probes := s.discoverer(o.cfg).Discover(cmd.Context())
	targets, err := selectTargets(out, probes, fo.serials)
	if err != nil {
		return err
	}

	board := ui.NewBoard(filepath.Base(firmware))
	board.Load(probes, s.reg)

	bus := events.NewBus()
	worker := flash.NewWorker(s.runner, s.reg, bus,
		flash.WithLogger(s.log),
		flash.WithClockInterval(o.cfg.ClockInterval),
	)
	launcher := flash.NewLauncher(worker)

	started := 0
	for _, p := range targets {
		if err := launcher.Launch(p, firmware, loader); err != nil {
			fmt.Fprintf(out, "Skipping %s: %v\n", p.Serial, err)
			continue
		}
		board.MarkLaunched(p.Serial)
		started++
	}
	if started == 0 {
		return errors.New("flash: no session could be started")
	}

	if err := board.Snapshot().Render(out); err != nil {
		return err
	}
	fmt.Fprintln(out)

	err = board.Pump(cmd.Context(), bus, o.cfg.TickInterval, s.reg.IsEmpty, func(evs []events.Event) {
		if rec != nil {
			if err := rec.Record(evs...); err != nil {
				s.log.WithError(err).Warn("Journal write failed")
			}
		}
		printChanges(out, board, evs, o.verbose)
	})
	if err != nil {
		fmt.Fprintf(out, "Waiting for %d running session(s) to finish...\n", len(s.reg.Active()))
	}
	launcher.Wait()
	if rest := bus.DrainAll(); len(rest) > 0 {
		board.Apply(rest)
		if rec != nil {
			_ = rec.Record(rest...)
		}
	}

	fmt.Fprintln(out)
	snap := board.Snapshot()
	if err := snap.Render(out); err != nil {
		return err
	}
	completed, failed := snap.Outcome()
	fmt.Fprintf(out, "\n%d completed, %d failed\n", completed, failed)
	if failed > 0 {
		return fmt.Errorf("flash: %d of %d session(s) failed", failed, started)
	}
	return nil
}

// selectTargets picks the probes to flash: the requested serials, or every
// probe with a reachable target.
func selectTargets(out io.Writer, probes []probe.Probe, serials []string) ([]probe.Probe, error) {
	if len(serials) == 0 {
		var targets []probe.Probe
		for _, p := range probes {
			if p.Status == probe.StatusConnected {
				targets = append(targets, p)
			}
		}
		if len(targets) == 0 {
			return nil, errors.New("flash: no probe with a connected target")
		}
		return targets, nil
	}

	bySerial := make(map[string]probe.Probe, len(probes))
	for _, p := range probes {
		bySerial[p.Serial] = p
	}
	var targets []probe.Probe
	for _, sn := range serials {
		p, ok := bySerial[sn]
		if !ok {
			return nil, fmt.Errorf("flash: probe %s not found", sn)
		}
		if p.Status != probe.StatusConnected {
			fmt.Fprintf(out, "Skipping %s: %s\n", sn, p.Status)
			continue
		}
		targets = append(targets, p)
	}
	if len(targets) == 0 {
		return nil, errors.New("flash: none of the requested probes has a connected target")
	}
	return targets, nil
}

// printChanges writes one line per row touched by evs. Time updates are only
// shown in verbose mode.
func printChanges(out io.Writer, board *ui.Board, evs []events.Event, verbose bool) {
	seen := make(map[string]bool)
	for _, e := range evs {
		if e.Kind == events.KindTime && !verbose {
			continue
		}
		if seen[e.Serial] && e.Kind == events.KindTime {
			continue
		}
		seen[e.Serial] = true
		if row, ok := board.Row(e.Serial); ok {
			if e.Kind == events.KindProgress {
				row.Status = e.Label
			}
			ui.RenderChange(out, row)
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
