// Command broker runs the pub/sub HTTP server. Bootstrap follows the
// teacher's main.go: flag parsing, automaxprocs, env-driven config,
// structured logging, then a listener with explicit timeouts and a
// signal-driven graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adred-codev/pubsub-broker/internal/broker"
	"github.com/adred-codev/pubsub-broker/internal/config"
	"github.com/adred-codev/pubsub-broker/internal/delivery"
	"github.com/adred-codev/pubsub-broker/internal/httpapi"
	"github.com/adred-codev/pubsub-broker/internal/logging"
	"github.com/adred-codev/pubsub-broker/internal/metrics"
	"github.com/adred-codev/pubsub-broker/internal/platform"
	"github.com/adred-codev/pubsub-broker/internal/workerpool"
	"github.com/prometheus/client_golang/prometheus"

	_ "go.uber.org/automaxprocs"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (overrides LOG_LEVEL)")
	flag.Parse()

	bootstrapLogger := logging.New(logging.Config{Level: "info", Format: logging.FormatJSON})

	cfg, err := config.Load(&bootstrapLogger)
	if err != nil {
		bootstrapLogger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: logging.Format(cfg.LogFormat)})
	cfg.LogConfig(logger)

	metricsReg := prometheus.DefaultRegisterer
	m := metrics.New(metricsReg)

	pool := workerpool.New(cfg.WorkerCount, cfg.WorkerQueueSize, logger)
	defer pool.Stop()

	client := delivery.NewHTTPClient(delivery.HTTPClientConfig{
		Timeout:         cfg.DeliveryTimeout,
		MaxDispatchRate: cfg.MaxDispatchRate,
		DispatchBurst:   cfg.DispatchBurst,
	})

	b := broker.New(client, pool, m, logger)
	mux := httpapi.NewRouter(b, cfg.RoutePrefix, metrics.Handler(), logger)

	server := &http.Server{
		Addr:           cfg.Addr,
		Handler:        mux,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	sampleCtx, stopSampling := context.WithCancel(context.Background())
	if sampler, err := platform.NewSampler(logger); err != nil {
		logger.Warn().Err(err).Msg("resource sampler unavailable, continuing without it")
	} else {
		go sampler.Run(sampleCtx, cfg.MetricsInterval, func(s platform.Sample) {
			m.ResourceCPUPercent.Set(s.CPUPercent)
			m.ResourceMemoryPercent.Set(s.MemoryPercent)
		})
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("broker listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	stopSampling()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
		fmt.Fprintln(os.Stderr, err)
	}
}
