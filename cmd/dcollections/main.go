package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/l7mp/dcollections/internal/buildinfo"
	"github.com/l7mp/dcollections/pkg/metrics"
	"github.com/l7mp/dcollections/pkg/operator"
	"github.com/l7mp/dcollections/pkg/visualize"
)

var (
	version    = "dev"
	commitHash = "n/a"
	buildDate  = "<unknown>"
)

var (
	verbosity     int
	development   bool
	printMetrics  bool
	diagramFormat string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "dcollections",
		Short:         "Replay edit scenarios through incremental collection pipelines",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().IntVarP(&verbosity, "v", "v", 0, "Log verbosity: 2 lifecycle, 4 per batch, 5 per item")
	root.PersistentFlags().BoolVar(&development, "zap-devel", false, "Use the development logger (console encoding, stack traces on warnings)")

	run := &cobra.Command{
		Use:   "run SCENARIO...",
		Short: "Run scenario files, each through its own pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runScenarios(ctx, args, cmd.OutOrStdout(), newLogger(cmd.ErrOrStderr()))
		},
	}
	run.Flags().BoolVar(&printMetrics, "metrics", false, "Print the stage counters after the run")

	graph := &cobra.Command{
		Use:   "graph SCENARIO",
		Short: "Print the pipeline of a scenario as a diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printGraph(args[0], diagramFormat, cmd.OutOrStdout())
		},
	}
	graph.Flags().StringVarP(&diagramFormat, "format", "f", "dot", "Diagram format: dot or mermaid")

	root.AddCommand(run, graph, &cobra.Command{
		Use:   "version",
		Short: "Print the build information",
		Run: func(cmd *cobra.Command, _ []string) {
			info := buildinfo.BuildInfo{Version: version, CommitHash: commitHash, BuildDate: buildDate}
			fmt.Fprintf(cmd.OutOrStdout(), "dcollections %s\n", info.String())
		},
	})
	return root
}

func newLogger(w io.Writer) logr.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)
	if development {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	// logr V(n) is zap level -n
	core := zapcore.NewCore(enc, zapcore.AddSync(w), zap.NewAtomicLevelAt(zapcore.Level(-verbosity)))
	opts := []zap.Option{zap.AddStacktrace(zapcore.Level(3))}
	if development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}
	return zapr.NewLogger(zap.New(core, opts...)).WithName("dcollections")
}

// runScenarios runs every scenario concurrently. Output is buffered per scenario and written in
// argument order once all have finished.
func runScenarios(ctx context.Context, paths []string, out io.Writer, log logr.Logger) error {
	operator.SetLogger(log)
	setupLog := log.WithName("setup")
	info := buildinfo.BuildInfo{Version: version, CommitHash: commitHash, BuildDate: buildDate}
	setupLog.V(2).Info(fmt.Sprintf("starting dcollections %s", info.String()))

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	scenarios := make([]*Scenario, len(paths))
	for i, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			setupLog.Error(err, "invalid scenario", "path", path)
			return err
		}
		scenarios[i] = s
	}

	outputs := make([]bytes.Buffer, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range scenarios {
		g.Go(func() error {
			r, err := NewRunner(s, collector, &outputs[i], log)
			if err != nil {
				return err
			}
			return r.Run(gctx)
		})
	}
	err := g.Wait()

	for i := range outputs {
		if _, werr := outputs[i].WriteTo(out); werr != nil {
			return werr
		}
	}
	if err != nil {
		setupLog.Error(err, "scenario failed")
		return err
	}

	if printMetrics {
		return dumpMetrics(reg, out)
	}
	return nil
}

func printGraph(path, format string, out io.Writer) error {
	gen, err := visualize.NewGenerator(format)
	if err != nil {
		return err
	}
	s, err := LoadScenario(path)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, gen.Generate(s.Graph()))
	return err
}

func dumpMetrics(reg *prometheus.Registry, out io.Writer) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","),
				m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	_, err = fmt.Fprintln(out, strings.Join(lines, "\n"))
	return err
}
