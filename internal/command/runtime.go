package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	poblado "github.com/Swind/go-poblado"
	"github.com/Swind/go-poblado/config"
	"github.com/Swind/go-poblado/core"
	"github.com/Swind/go-poblado/handoff"
	obs "github.com/Swind/go-poblado/observability/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const (
	loopName             = "main"
	snapshotInterval     = time.Second
	serverShutdownPeriod = time.Second
)

// loadConfig reads the config file and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.New(c.String(flagConfig))
	if err != nil {
		return nil, err
	}

	if c.IsSet(flagChunkSize) {
		if c.Int(flagChunkSize) <= 0 {
			return nil, errors.New("chunk-size must be positive")
		}
		cfg.ChunkSize = c.Int(flagChunkSize)
	}
	if c.IsSet(flagChunkInterval) {
		cfg.ChunkInterval = c.Duration(flagChunkInterval)
	}
	if c.IsSet(flagDelay) {
		cfg.ProcessorDelay = c.Duration(flagDelay)
	}
	if c.IsSet(flagLogLevel) {
		cfg.Log.Level = c.String(flagLogLevel)
	}
	if c.IsSet(flagLogFormat) {
		cfg.Log.Format = c.String(flagLogFormat)
	}
	if err := cfg.Log.Validate(); err != nil {
		return nil, err
	}
	if c.IsSet(flagMetricsAddr) {
		if cfg.Prometheus == nil {
			cfg.Prometheus = &config.PromConfig{Namespace: "poblado"}
		}
		cfg.Prometheus.Address = c.String(flagMetricsAddr)
	}
	return cfg, nil
}

// runProcessor drives proc over input on a fresh event loop, serving
// Prometheus metrics alongside when configured.
func runProcessor(
	ctx context.Context,
	cfg *config.Config,
	logger *logrus.Logger,
	taskName string,
	proc handoff.Processor[[]string],
	input io.Reader,
) (handoff.Outcome[[]string], error) {
	coreLogger := core.NewLogrusLogger(logger)
	loopConfig := &core.EventLoopConfig{Name: loopName, Logger: coreLogger}
	taskConfig := &handoff.TaskConfig{Name: taskName, Logger: coreLogger}
	opts := poblado.Options{
		ChunkSize:     cfg.ChunkSize,
		ChunkInterval: cfg.ChunkInterval,
		LoopConfig:    loopConfig,
		TaskConfig:    taskConfig,
	}

	if !cfg.MetricsEnabled() {
		return poblado.ProcessReader(ctx, input, proc, opts)
	}

	reg := prom.NewRegistry()
	exporter, err := obs.NewMetricsExporter(cfg.Prometheus.Namespace, reg, obs.ExporterOptions{})
	if err != nil {
		return handoff.Outcome[[]string]{}, fmt.Errorf("creating metrics exporter: %w", err)
	}
	poller, err := obs.NewSnapshotPoller(cfg.Prometheus.Namespace, reg, snapshotInterval)
	if err != nil {
		return handoff.Outcome[[]string]{}, fmt.Errorf("creating snapshot poller: %w", err)
	}
	loopConfig.Metrics = exporter
	taskConfig.Metrics = exporter
	opts.Loop = core.NewEventLoopWithConfig(loopConfig)
	poller.AddLoop(loopName, opts.Loop)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: cfg.Prometheus.Address, Handler: mux}

	var outcome handoff.Outcome[[]string]
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("address", server.Addr).Info("metrics server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownPeriod)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		poller.Start(gctx)
		defer poller.Stop()

		var err error
		outcome, err = poblado.ProcessReader(gctx, input, proc, opts)
		return err
	})

	if err := g.Wait(); err != nil {
		return handoff.Outcome[[]string]{}, err
	}
	return outcome, nil
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("invalid log configuration: %v", err), 1)
	}
	return logger, nil
}
