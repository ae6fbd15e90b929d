package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/sarchlab/framescope/config"
	"github.com/sarchlab/framescope/demo"
	"github.com/sarchlab/framescope/frame"
	"github.com/sarchlab/framescope/harness"
	"github.com/sarchlab/framescope/instrumentation"
	"github.com/sarchlab/framescope/logging"
	"github.com/sarchlab/framescope/monitoring"
	"github.com/sarchlab/framescope/profiler"
	"github.com/sarchlab/framescope/timing"
	"github.com/sarchlab/framescope/tracing"
)

type runOptions struct {
	configPath string
	ticks      int
	items      int
	interval   time.Duration
	seed       int64
	output     string
	jsonTrace  bool
	monitor    bool
	port       int
	open       bool
	keep       bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Profile a synthetic component tree.",
	Long: "`run` drives a synthetic todo-list tree for a number of ticks, " +
		"records every flushed frame and prints a latency summary.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(runOpts.configPath)
		if err != nil {
			return err
		}

		applyRunFlags(cmd, cfg)

		return runDemo(cfg, runOpts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringVar(&runOpts.configPath, "config", "", "YAML configuration file")
	f.IntVar(&runOpts.ticks, "ticks", 100, "Number of ticks to run")
	f.IntVar(&runOpts.items, "items", 5, "Initial number of list items")
	f.DurationVar(&runOpts.interval, "interval", 10*time.Millisecond,
		"Virtual time between two ticks")
	f.Int64Var(&runOpts.seed, "seed", 1, "Seed of the synthetic workload")
	f.StringVar(&runOpts.output, "output", "", "Recording path")
	f.BoolVar(&runOpts.jsonTrace, "json", false, "Also write frames as JSON")
	f.BoolVar(&runOpts.monitor, "monitor", false, "Serve the monitoring page")
	f.IntVar(&runOpts.port, "port", 0, "Monitoring port, 0 picks one")
	f.BoolVar(&runOpts.open, "open", false, "Open the monitoring page")
	f.BoolVar(&runOpts.keep, "keep", false,
		"Keep serving the monitoring page until interrupted")
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("output") {
		cfg.Recording.Path = runOpts.output
	}

	if flags.Changed("json") {
		cfg.Recording.JSON = runOpts.jsonTrace
	}

	if flags.Changed("monitor") {
		cfg.Monitor.Enabled = runOpts.monitor
	}

	if runOpts.open || runOpts.keep {
		cfg.Monitor.Enabled = true
	}

	if flags.Changed("port") {
		cfg.Monitor.Port = runOpts.port
		cfg.Monitor.Enabled = true
	}
}

func runDemo(cfg *config.Config, opts runOptions, out io.Writer) error {
	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
	})

	engine := timing.NewSerialEngine()
	clock := instrumentation.NewManualClock(time.Now())
	app := demo.New(engine, clock, opts.items, opts.seed,
		logging.Component(logger, "demo"))

	b := harness.MakeBuilder().
		FromConfig(cfg).
		WithHost(app.Tree).
		WithEngine(engine).
		WithClock(clock).
		WithLogger(logger)
	if !cfg.Monitor.Enabled {
		b = b.WithoutMonitoring()
	}

	h, err := b.Build()
	if err != nil {
		return err
	}
	defer func() {
		if err := h.Terminate(); err != nil {
			logger.Error().Err(err).Msg("terminating")
		}
	}()

	if h.Monitor() != nil && opts.open {
		if err := browser.OpenURL(h.Monitor().URL()); err != nil {
			logger.Warn().Err(err).Msg("cannot open the browser")
		}
	}

	numFrames := 0
	if err := h.Start(profiler.Callbacks{
		OnFrame: func(frame.Frame) { numFrames++ },
	}); err != nil {
		return err
	}

	var bar *monitoring.ProgressBar
	if h.Monitor() != nil {
		bar = h.Monitor().CreateProgressBar("ticks", uint64(opts.ticks))
		defer h.Monitor().CompleteProgressBar(bar)
	}

	app.Schedule(opts.ticks, opts.interval, func(int) {
		if bar != nil {
			bar.IncrementFinished(1)
		}
	})

	if err := engine.Run(); err != nil {
		return err
	}

	final, err := h.Stop()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%d ticks, %d frames (final frame: %d profiles)\n",
		app.Ticks(), numFrames, final.NumProfiles())
	printSummary(out, h.Latency().Summary(), h.KindCounts())

	if h.OutputFile() != "" {
		fmt.Fprintf(out, "Frames recorded in %s\n", h.OutputFile())
	}

	if h.Monitor() != nil && opts.keep {
		fmt.Fprintf(out, "Serving %s, press Ctrl-C to exit\n", h.Monitor().URL())
		waitForInterrupt()
	}

	return nil
}

func printSummary(
	out io.Writer,
	summary []tracing.KindSummary,
	counts *tracing.KindCountTracer,
) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tCOUNT\tNODES\tMEAN(ms)\tP50\tP90\tP99\tMAX")

	for _, s := range summary {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\n",
			s.Kind, s.Count, counts.NodeCount(s.Kind),
			s.Mean, s.P50, s.P90, s.P99, s.Max)
	}

	w.Flush()
}

func waitForInterrupt() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
