package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/spacecraft-simulator/core"
	"github.com/signalsfoundry/spacecraft-simulator/internal/logging"
	"github.com/signalsfoundry/spacecraft-simulator/internal/monitor"
	"github.com/signalsfoundry/spacecraft-simulator/internal/observability"
	"github.com/signalsfoundry/spacecraft-simulator/model"
	"github.com/signalsfoundry/spacecraft-simulator/timectrl"
)

type options struct {
	scenario    string
	steps       int64
	runs        int
	seed        uint64
	seedSet     bool
	logDir      string
	metricsAddr string
	grpcAddr    string
	realtime    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.scenario, "scenario", "configs/leo_pair.json", "path to a JSON scenario")
	flag.Int64Var(&opts.steps, "steps", 0, "base ticks per run (0 uses the scenario's steps)")
	flag.IntVar(&opts.runs, "runs", 1, "number of Monte Carlo runs")
	flag.Uint64Var(&opts.seed, "seed", 0, "base seed; run i uses seed+i (default: scenario seed)")
	flag.StringVar(&opts.logDir, "log-dir", "", "directory for telemetry CSV logs (single runs log to stdout when empty)")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics")
	flag.StringVar(&opts.grpcAddr, "grpc-addr", "", "TCP address for the gRPC health service")
	flag.BoolVar(&opts.realtime, "realtime", false, "pace ticks to the wall clock")
	flag.Parse()
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			opts.seedSet = true
		}
	})

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tracing, err := observability.StartTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer tracing.Close(context.Background())

	if err := run(ctx, opts, log, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}
}

// run loads the scenario and executes opts.runs independent engines.
func run(ctx context.Context, opts options, log logging.Logger, stdout io.Writer) error {
	sc, err := loadScenario(opts.scenario)
	if err != nil {
		return err
	}
	if opts.runs < 1 {
		return fmt.Errorf("runs must be >= 1, got %d: %w", opts.runs, model.ErrInvalidConfiguration)
	}
	if opts.seedSet {
		sc.Seed = opts.seed
	}
	if opts.logDir != "" {
		if err := os.MkdirAll(opts.logDir, 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	simMetrics, err := observability.NewSimCollector(reg)
	if err != nil {
		return err
	}
	schedMetrics, err := observability.NewSchedulerCollector(reg)
	if err != nil {
		return err
	}

	mon, err := startMonitor(opts, simMetrics, log)
	if err != nil {
		return err
	}
	if mon != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mon.Stop(shutdownCtx)
		}()
		mon.SetServing(true)
	}

	mode := timectrl.Accelerated
	if opts.realtime {
		mode = timectrl.RealTime
	}
	baseSeed := sc.Seed
	for i := 0; i < opts.runs; i++ {
		runScenario := sc
		runScenario.Seed = baseSeed + uint64(i)
		if err := runOnce(ctx, runScenario, i, opts, mode, log, stdout, mon, simMetrics, schedMetrics); err != nil {
			return fmt.Errorf("run %d: %w", i, err)
		}
	}
	if mon != nil {
		mon.SetServing(false)
	}
	return nil
}

func runOnce(ctx context.Context, sc model.Scenario, index int, opts options, mode timectrl.Mode,
	log logging.Logger, stdout io.Writer, mon *monitor.Server, simMetrics *observability.SimCollector, schedMetrics *observability.SchedulerCollector) error {
	ctx, runID := logging.EnsureRunID(ctx)
	if mon != nil {
		mon.SetRun(runID)
	}
	runLog := log.With(logging.Int("run", index), logging.Uint64("seed", sc.Seed))

	var telemetryOut io.Writer
	switch {
	case opts.logDir != "":
		name := fmt.Sprintf("%s_run%03d.csv", scenarioName(sc, opts.scenario), index)
		f, err := os.Create(filepath.Join(opts.logDir, name))
		if err != nil {
			return fmt.Errorf("create telemetry log: %w", err)
		}
		defer f.Close()
		telemetryOut = f
		runLog.Info(ctx, "writing telemetry", logging.String("path", f.Name()))
	case opts.runs == 1:
		telemetryOut = stdout
	}

	engine, err := core.NewEngine(ctx, sc,
		core.WithLogger(runLog),
		core.WithMode(mode),
		core.WithTelemetry(telemetryOut),
		core.WithMetrics(simMetrics),
		core.WithSchedulerRecorder(schedMetrics),
	)
	if err != nil {
		return err
	}
	defer engine.Close()
	return engine.Run(ctx, opts.steps)
}

func loadScenario(path string) (model.Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Scenario{}, fmt.Errorf("open scenario %q: %w", path, err)
	}
	defer f.Close()
	return core.LoadScenario(f)
}

func scenarioName(sc model.Scenario, path string) string {
	if sc.Name != "" {
		return sc.Name
	}
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

// startMonitor brings up the health and metrics servers when either
// address is set.
func startMonitor(opts options, collector *observability.SimCollector, log logging.Logger) (*monitor.Server, error) {
	if opts.grpcAddr == "" && opts.metricsAddr == "" {
		return nil, nil
	}
	mon := monitor.New(collector, log)
	if opts.metricsAddr != "" {
		mon.ServeMetrics(opts.metricsAddr)
	}
	if opts.grpcAddr != "" {
		lis, err := net.Listen("tcp", opts.grpcAddr)
		if err != nil {
			return nil, fmt.Errorf("listen for gRPC on %s: %w", opts.grpcAddr, err)
		}
		go func() {
			if err := mon.Serve(lis); err != nil {
				log.Error(context.Background(), "gRPC server exited", logging.Err(err))
			}
		}()
	}
	return mon, nil
}
