package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceFlash/internal/config"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/debuglog"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/probe"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/registry"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/tool"
)

// newRunner builds the programmer runner; tests swap in a simulator.
var newRunner = func(path string) tool.Runner {
	return tool.NewExec(path)
}

// options holds the global flags and the configuration they resolve to.
type options struct {
	verbose    bool
	configPath string
	toolPath   string
	logFile    string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "stflash",
		Short: "Flash firmware to several ST-Link probes at once",
		Long: `stflash drives STM32CubeProgrammer to write the same firmware image to every
attached ST-Link probe in parallel, one programming session per probe.

Examples:
  stflash probes                                    # List probes and their targets
  stflash flash -f app.hex -l MX25.stldr            # Flash every connected probe
  stflash flash -f app.hex -l MX25.stldr --sn 066DFF495051717867123456
  stflash usb                                       # List ST-Link USB devices
  stflash journal flash.stj                         # Show a recorded session journal`,
		Version:       "0.9.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.resolve(cmd)
		},
	}

	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "settings file (.yaml or .toml)")
	root.PersistentFlags().StringVar(&o.toolPath, "tool", "", "STM32_Programmer_CLI executable")
	root.PersistentFlags().StringVar(&o.logFile, "log-file", "", "debug log file (truncated on start)")

	root.AddCommand(
		newProbesCmd(o),
		newFlashCmd(o),
		newUSBCmd(o),
		newJournalCmd(o),
	)
	return root
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// resolve loads the settings file and applies flag overrides.
func (o *options) resolve(cmd *cobra.Command) error {
	cfg := config.DefaultConfig()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("tool") {
		cfg.Tool = o.toolPath
	}
	if flags.Changed("log-file") {
		cfg.LogFile = o.logFile
	}
	if o.verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// session bundles what the probe commands share for one invocation.
type session struct {
	log    *debuglog.Sink
	runner tool.Runner
	reg    *registry.Registry
}

func (o *options) openSession() (*session, error) {
	sink, err := debuglog.Open(o.cfg.LogFile, o.cfg.Level())
	if err != nil {
		return nil, err
	}
	return &session{
		log:    sink,
		runner: newRunner(o.cfg.Tool),
		reg:    registry.New(),
	}, nil
}

func (s *session) discoverer(cfg *config.Config) *probe.Discoverer {
	return probe.NewDiscoverer(s.runner, s.reg,
		probe.WithTimeout(cfg.QueryTimeout),
		probe.WithConcurrency(cfg.QueryConcurrency),
		probe.WithLogger(s.log),
	)
}

func (s *session) Close() error {
	return s.log.Close()
}
