package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vigilstack/vigil-rca/internal/agent"
	"github.com/vigilstack/vigil-rca/internal/api"
	"github.com/vigilstack/vigil-rca/internal/cache"
	"github.com/vigilstack/vigil-rca/internal/config"
	"github.com/vigilstack/vigil-rca/internal/investigate"
	"github.com/vigilstack/vigil-rca/internal/metrics"
	"github.com/vigilstack/vigil-rca/internal/models"
	"github.com/vigilstack/vigil-rca/internal/playbook"
	"github.com/vigilstack/vigil-rca/internal/services"
	"github.com/vigilstack/vigil-rca/internal/toolset"
	"github.com/vigilstack/vigil-rca/internal/utils"
)

func newLogger(cfg *config.Config) *slog.Logger {
	return utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
}

// fleetServices is the default set of services sampled for fleet analysis
// when no explicit list is configured.
var fleetServices = []string{"checkout", "payments", "inventory", "gateway", "notifications"}

func main() {
	root := &cobra.Command{
		Use:   "vigil-rca",
		Short: "Infrastructure-event automation and root-cause analysis engine",
	}

	var configPath string
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")

	root.AddCommand(serveCommand(&configPath))
	root.AddCommand(investigateCommand(&configPath))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, event router, and live feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg *config.Config) error {
	logger := newLogger(cfg)
	logger.Info("starting vigil-rca", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	cacheProvider := buildCache(cfg, logger)
	defer cacheProvider.Close()

	registry := playbook.NewRegistry(logger)
	playbook.RegisterBuiltins(registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := playbook.NewLoader(registry, logger)
	if cfg.Playbooks.Path != "" {
		if err := loader.Load(cfg.Playbooks.Path); err != nil {
			return fmt.Errorf("load playbook pack: %w", err)
		}
		if cfg.Playbooks.Watch {
			if err := loader.Watch(ctx, cfg.Playbooks.Path); err != nil {
				logger.Warn("playbook watch unavailable", slog.Any("error", err))
			}
		}
	}

	engine := buildEngine(cfg, logger)
	sampler := func(ctx context.Context) []models.MetricSample {
		return toolset.FleetSamples(fleetServices, "local-docker", 30*time.Minute, time.Now().UTC())
	}
	service := services.NewAutomationService(logger, registry, engine, agent.New(logger),
		sampler, cacheProvider, cfg.Cache.AnalysisTTL)

	hub := api.NewHub(logger)
	service.SetBroadcaster(hub)
	go hub.Run(ctx)

	// Periodic agent sweep: analyze the fleet and route high-impact
	// anomalies back through the playbooks.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				service.RouteAnomalies(ctx)
			}
		}
	}()

	handlers := api.NewHandlers(service, hub, logger)
	server := api.NewServer(cfg.Server, cfg.CORS, handlers, logger)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(server.Start)

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		group.Go(func() error {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	<-groupCtx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.GracefulTimeout())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", slog.Any("error", err))
	}
	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	if err := group.Wait(); err != nil {
		logger.Error("server exited", slog.Any("error", err))
	}
	logger.Info("vigil-rca stopped")
	return nil
}

func investigateCommand(configPath *string) *cobra.Command {
	var (
		service   string
		cluster   string
		alertName string
		severity  string
	)
	cmd := &cobra.Command{
		Use:   "investigate",
		Short: "Run a one-shot investigation and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if service == "" {
				return errors.New("--service is required")
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			engine := buildEngine(cfg, logger)
			inv := engine.Investigate(cmd.Context(), models.Alert{
				AlertName: alertName,
				Service:   service,
				Cluster:   cluster,
				Severity:  severity,
			})

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(inv)
		},
	}
	cmd.Flags().StringVar(&service, "service", "", "Service to investigate")
	cmd.Flags().StringVar(&cluster, "cluster", "local-docker", "Cluster the service runs in")
	cmd.Flags().StringVar(&alertName, "alertname", "ManualInvestigation", "Alert name to attach")
	cmd.Flags().StringVar(&severity, "severity", "warning", "Alert severity")
	return cmd
}

func buildEngine(cfg *config.Config, logger *slog.Logger) *investigate.Engine {
	logs := toolset.NewLokiClient(cfg.Sources.Logs.BaseURL, cfg.Sources.Logs.Timeout,
		cfg.Sources.Logs.Limit, logger)
	metricSource := toolset.NewVictoriaMetricsClient(cfg.Sources.Metrics.BaseURL,
		cfg.Sources.Metrics.Timeout, logger)
	return investigate.NewEngine(logs, metricSource, toolset.NewDescribeSimulator(), logger)
}

func buildCache(cfg *config.Config, logger *slog.Logger) cache.Provider {
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewRedisProvider(cache.RedisConfig{
			Addr:         cfg.Cache.Addr,
			Password:     cfg.Cache.Password,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("redis cache unavailable, falling back to in-memory",
				slog.Any("error", err))
			return cache.NewMemoryProvider()
		}
		return provider
	}
	return cache.NewMemoryProvider()
}
