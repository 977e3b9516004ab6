package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vigilix/insightd/internal/analysis"
	"github.com/vigilix/insightd/internal/config"
	"github.com/vigilix/insightd/internal/engine"
	"github.com/vigilix/insightd/internal/insight"
	"github.com/vigilix/insightd/internal/logger"
)

var (
	runConfigPath string
	runDebug      bool
)

// runCmd starts the engine and serves Prometheus metrics until a
// shutdown signal arrives.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the insight engine",
	Long: `Start the insight engine with the specified configuration.
Tasks are accepted through the engine API; this command keeps the
process alive, serves metrics and handles graceful shutdown.`,
	Run: runHandler,
}

func init() {
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "path to config file (default config.toml)")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "force debug logging")
}

func runHandler(cmd *cobra.Command, args []string) {
	configPath := runConfigPath
	if configPath == "" {
		configPath = "config.toml"
	}

	var cfg *config.Config
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := config.Load(configPath)
		if err != nil {
			fmt.Printf("failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		fmt.Println("configuration validation failed:")
		for _, e := range errs {
			fmt.Printf("  - %v\n", e)
		}
		os.Exit(1)
	}

	if runDebug {
		cfg.Logging.Level = "debug"
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	log.Info("starting insightd",
		logger.Field{Key: "version", Value: Version},
		logger.Field{Key: "git_commit", Value: GitCommit},
		logger.Field{Key: "config", Value: configPath})

	opts := engine.Options{
		Workers:         cfg.Engine.Workers,
		QueueCapacity:   cfg.Engine.QueueCapacity,
		MaxAttempts:     cfg.Engine.MaxAttempts,
		Retention:       time.Duration(cfg.Retention.WindowHours) * time.Hour,
		CleanupInterval: time.Duration(cfg.Retention.CleanupIntervalMinutes) * time.Minute,
		UrgentTimeout:   time.Duration(cfg.Urgent.TimeoutSeconds) * time.Second,
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		opts.Metrics = engine.InitMetrics("insightd", registry)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}

		go func() {
			log.Info("metrics endpoint listening",
				logger.Field{Key: "addr", Value: cfg.Metrics.ListenAddr})
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", err)
			}
		}()
	}

	eng, err := engine.New(analysis.Compute, opts, log)
	if err != nil {
		fmt.Printf("failed to start engine: %v\n", err)
		os.Exit(1)
	}

	// Log high-severity insights as they arrive.
	minConfidence := 70.0
	_, err = eng.Subscribe(func(insights []insight.Insight) {
		for _, ins := range insights {
			log.Info("insight produced",
				logger.Field{Key: "id", Value: ins.ID},
				logger.Field{Key: "kind", Value: string(ins.Kind)},
				logger.Field{Key: "severity", Value: string(ins.Severity)},
				logger.Field{Key: "confidence", Value: ins.Confidence},
				logger.Field{Key: "title", Value: ins.Title})
		}
	}, &insight.Filter{MinConfidence: &minConfidence})
	if err != nil {
		log.Error("failed to subscribe", err)
	}

	log.Info("insightd is running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	log.Info("received shutdown signal",
		logger.Field{Key: "signal", Value: sig.String()})

	eng.Terminate()
	if metricsServer != nil {
		_ = metricsServer.Close()
	}

	stats := eng.Stats()
	log.Info("shutdown complete",
		logger.Field{Key: "total_tasks", Value: stats.TotalTasks},
		logger.Field{Key: "completed_tasks", Value: stats.CompletedTasks},
		logger.Field{Key: "failed_tasks", Value: stats.FailedTasks})
}
