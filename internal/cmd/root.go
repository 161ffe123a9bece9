// Package cmd wires the pmp CLI: a single cobra root command that
// parses flags, builds an engine.Config, runs the Sampler, and routes
// output to either the text reporter or the --tui dashboard.
package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dsmmcken/pmp/internal/config"
	"github.com/dsmmcken/pmp/internal/engine"
	"github.com/dsmmcken/pmp/internal/output"
	"github.com/dsmmcken/pmp/internal/tui"
)

var Version = "dev"

var (
	libunwindFlag    bool
	framepointerFlag bool
	maxFlag          int
	freqFlag         int
	tuiFlag          bool
	pprofFlag        string
	configFlag       string
	verboseFlag      bool
)

// NewRootCmd builds the cobra command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pmp <pid>",
		Short:         "Non-cooperative sampling profiler for a running Linux process",
		Long:          "pmp attaches to every thread of a running process, periodically captures a call stack from each, and either prints each stack or aggregates stacks into a frequency histogram.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: expected exactly one <pid> argument", engine.ErrBadArgs)
			}
			return nil
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if libunwindFlag && framepointerFlag {
				return fmt.Errorf("%w: --libunwind and --framepointer are mutually exclusive", engine.ErrBadArgs)
			}
			return nil
		},
		RunE: runPMP,
	}

	flags := cmd.Flags()
	flags.BoolVar(&libunwindFlag, "libunwind", false, "Use the DWARF unwinding library (default)")
	flags.BoolVar(&framepointerFlag, "framepointer", false, "Walk the x86_64 saved frame-pointer chain directly")
	flags.IntVar(&maxFlag, "max", 1, "Total samples to take; 0 runs until interrupted")
	flags.IntVar(&freqFlag, "freq", 1, "Samples per second")
	flags.BoolVar(&tuiFlag, "tui", false, "Show a live-updating dashboard instead of printing reports")
	flags.StringVar(&pprofFlag, "pprof", "", "Write the final histogram as a pprof profile to this path")
	flags.StringVar(&configFlag, "config", "", "TOML file supplying default flag values")
	flags.BoolVarP(&verboseFlag, "verbose", "v", false, "Also print each frame's stack pointer; debug-level logging")

	return cmd
}

// Execute runs the root command. Usage violations additionally print
// the usage text; every error still maps to exit code 1 in main.
func Execute() error {
	cmd := NewRootCmd()
	err := cmd.Execute()
	if errors.Is(err, engine.ErrBadArgs) {
		fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
	}
	return err
}

func newLogger() *logrus.Entry {
	log := logrus.New()
	if verboseFlag {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
	return logrus.NewEntry(log)
}

func runPMP(cmd *cobra.Command, args []string) error {
	pid, err := strconv.Atoi(args[0])
	if err != nil || pid <= 0 {
		return fmt.Errorf("%w: <pid> must be a positive integer, got %q", engine.ErrBadArgs, args[0])
	}

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if tuiFlag && cfg.Max == 1 {
		return fmt.Errorf("%w: --tui requires --max=0 or --max > 1 (single-sample mode has no report boundary)", engine.ErrBadArgs)
	}

	log := newLogger()
	eng, err := engine.New(pid, cfg, log)
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := runSampler(cmd, eng); err != nil {
		return err
	}

	if pprofFlag != "" {
		entries, _ := eng.Histogram()
		period := time.Duration(float64(time.Second) / float64(cfg.Freq))
		if err := output.WritePprof(pprofFlag, entries, period); err != nil {
			return fmt.Errorf("writing pprof profile: %w", err)
		}
	}
	return nil
}

func runSampler(cmd *cobra.Command, eng *engine.Engine) error {
	if tuiFlag {
		return runTUISampler(eng)
	}
	reporter := &output.TextReporter{W: cmd.OutOrStdout(), Verbose: verboseFlag}
	sampler := engine.NewSampler(eng, reporter)
	return sampler.Run()
}

func runTUISampler(eng *engine.Engine) error {
	ch := make(chan tea.Msg, 4)
	reporter := tui.NewChanReporter(ch)
	sampler := engine.NewSampler(eng, reporter)

	runErr := make(chan error, 1)
	go func() {
		err := sampler.Run()
		runErr <- err
		ch <- tui.Done(err)
	}()

	p := tea.NewProgram(tui.NewModel(ch))
	if _, err := p.Run(); err != nil {
		sampler.Stop()
		<-runErr
		return err
	}
	// The dashboard may have been quit with `q` while the sampler was
	// still running (Max==0 runs have no natural end); stop it and wait
	// for it to detach cleanly.
	sampler.Stop()
	return <-runErr
}

// resolveConfig merges the --config file's defaults with explicit CLI
// flags: an explicitly-set flag always wins over the file.
func resolveConfig(cmd *cobra.Command) (engine.Config, error) {
	method, err := engine.ParseMethod(libunwindFlag, framepointerFlag)
	if err != nil {
		return engine.Config{}, err
	}
	freq, max := freqFlag, maxFlag
	frameLimit := 0

	if configFlag != "" {
		file, err := config.Load(configFlag)
		if err != nil {
			return engine.Config{}, fmt.Errorf("%w: %v", engine.ErrBadArgs, err)
		}

		if !libunwindFlag && !framepointerFlag && file.Method != "" {
			switch file.Method {
			case "frame_pointer":
				method = engine.MethodFramePointer
			case "library":
				method = engine.MethodLibrary
			default:
				return engine.Config{}, fmt.Errorf("%w: unknown config method %q", engine.ErrBadArgs, file.Method)
			}
		}
		if !flagChanged(cmd, "freq") && file.Freq != 0 {
			freq = file.Freq
		}
		if !flagChanged(cmd, "max") && file.Max != 0 {
			max = file.Max
		}
		if file.FrameLimit < 0 {
			return engine.Config{}, fmt.Errorf("%w: frame_limit must be >= 0, got %d", engine.ErrBadArgs, file.FrameLimit)
		}
		frameLimit = file.FrameLimit
	}

	cfg, err := engine.NewConfig(method, freq, max)
	if err != nil {
		return engine.Config{}, err
	}
	if frameLimit > 0 {
		cfg.FrameLimit = frameLimit
	}
	return cfg, nil
}

func flagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}
