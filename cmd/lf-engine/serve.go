package main

import (
	"LogFlowSketcher/internal/api"
	"LogFlowSketcher/internal/config"
	"LogFlowSketcher/internal/engine/manager"
	"LogFlowSketcher/internal/engine/streamaggregator"
	"LogFlowSketcher/internal/logging"
	"LogFlowSketcher/internal/model"
	"LogFlowSketcher/internal/prom"
	"LogFlowSketcher/internal/query"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the counting engine",
	Long:  `Starts the counters, the HTTP API, the gRPC health server and, if configured, the NATS consumer.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cfg *config.Config) error {
	logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	mgr, err := manager.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}
	mgr.Start()
	defer mgr.Stop()

	if cfg.Alerter.Enabled {
		watcher, err := config.NewWatcher(configPath, 500*time.Millisecond, func(newCfg *config.Config) {
			mgr.UpdateAlertRules(newCfg.Alerter.Rules)
		})
		if err != nil {
			log.Warn().Err(err).Msg("alert rules will not be reloaded")
		} else {
			defer watcher.Close()
		}
	}

	querier, closeQuerier, err := historyQuerier(cfg, mgr)
	if err != nil {
		return err
	}
	defer closeQuerier()

	prometheus.MustRegister(prom.NewCollector(mgr))

	accessLog := logging.NewAccessLog(cfg.Logging.AccessLog)
	defer accessLog.Close()

	router := api.NewRouter(api.NewHandler(cfg, mgr, querier), accessLog, prometheus.DefaultGatherer)
	server := &http.Server{
		Addr:              cfg.API.HttpListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)

	var health *api.HealthServer
	if cfg.API.GrpcListenAddr != "" {
		lis, err := net.Listen("tcp", cfg.API.GrpcListenAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.API.GrpcListenAddr, err)
		}
		health = api.NewHealthServer(mgr.Tasks())
		go func() {
			if err := health.Serve(lis); err != nil {
				errCh <- fmt.Errorf("gRPC health server failed: %w", err)
			}
		}()
	}

	var streamAgg *streamaggregator.StreamAggregator
	if cfg.Ingest.NATSURL != "" {
		streamAgg, err = streamaggregator.NewStreamAggregator(cfg, mgr)
		if err == nil {
			err = streamAgg.Start()
		}
		if err != nil {
			if health != nil {
				health.Stop()
			}
			return err
		}
	}

	// HTTP starts last so that no failure above leaves it running.
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("could not listen on %s: %w", server.Addr, err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err = <-errCh:
		log.Error().Err(err).Msg("server failed, shutting down")
	}

	if health != nil {
		health.Stop()
	}
	if streamAgg != nil {
		streamAgg.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn().Err(shutdownErr).Msg("HTTP server forced to shutdown")
	}

	// deferred: manager stop with final snapshots, access log, log file
	return err
}

// historyQuerier prefers ClickHouse and falls back to a writer that can read
// its own snapshots back.
func historyQuerier(cfg *config.Config, mgr *manager.Manager) (model.Querier, func(), error) {
	if chCfg := query.FindClickHouse(cfg); chCfg != nil {
		q, err := query.NewClickHouseQuerier(*chCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create querier: %w", err)
		}
		return q, func() { q.Close() }, nil
	}
	if q := mgr.Querier(); q != nil {
		return q, func() {}, nil
	}
	log.Info().Msg("no history store configured, history queries are disabled")
	return nil, func() {}, nil
}
