package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/switchyardhq/switchyard/internal/cache"
	"github.com/switchyardhq/switchyard/internal/config"
	"github.com/switchyardhq/switchyard/internal/intake"
	"github.com/switchyardhq/switchyard/internal/observability"
	"github.com/switchyardhq/switchyard/internal/scheduler"
	"github.com/switchyardhq/switchyard/internal/server"
	"github.com/switchyardhq/switchyard/internal/store"
)

var (
	logLevel string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "switchyard",
	Short: "Switchyard helpdesk ticket assignment and intake service",
	Long:  "A ticket assignment service: round-robin routing, claim/handoff, inbound-mail intake and bounce handling.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Switchyard server",
	RunE:  runServer,
}

var (
	bindAddr          string
	dataDir           string
	configPath        string
	schedulerEnabled  = true
	schedulerInterval = time.Second
	shutdownTimeout   = 500 * time.Millisecond
	otelEnabled       bool
	otelEndpoint      string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	serverCmd.Flags().StringVar(&bindAddr, "bind", ":8080", "HTTP bind address")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "data directory")
	serverCmd.Flags().StringVar(&configPath, "config", "", "path to pilot config YAML")
	serverCmd.Flags().BoolVar(&schedulerEnabled, "scheduler", true, "run the periodic jobs")
	serverCmd.Flags().DurationVar(&schedulerInterval, "scheduler-interval", time.Second, "scheduler tick interval")
	serverCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 500*time.Millisecond, "graceful shutdown timeout")
	serverCmd.Flags().BoolVar(&otelEnabled, "otel", false, "enable OpenTelemetry tracing")
	serverCmd.Flags().StringVar(&otelEndpoint, "otel-endpoint", "", "OTLP/HTTP trace endpoint (stdout when empty)")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(seedCmd)
}

func setupLogging() {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	otelShutdown, err := observability.InitTracer(otelEnabled, "switchyard", otelEndpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Warn("otel shutdown error", "error", err)
		}
	}()

	db, err := store.Open(dataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	s := store.NewStore(db)
	s.SetRotationPools(cfg.Pools)
	s.SetPoolUser(cfg.PoolUser)

	ca, err := cache.Open(dataDir)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer ca.Close()

	proc := intake.NewProcessor(s, ca, cfg)

	var schedCancel context.CancelFunc = func() {}
	if schedulerEnabled {
		schedCfg := scheduler.DefaultConfig()
		schedCfg.Interval = schedulerInterval
		sched := scheduler.New(s, ca, proc, schedCfg)
		var schedCtx context.Context
		schedCtx, schedCancel = context.WithCancel(context.Background())
		go sched.Run(schedCtx)
	}

	srv := server.New(s, ca, proc, bindAddr)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("switchyard server ready", "bind", bindAddr, "pools", len(cfg.Pools))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	slog.Info("received shutdown signal", "signal", sig)

	// Graceful shutdown sequence
	slog.Info("stopping HTTP server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "error", err)
	}

	slog.Info("stopping scheduler")
	schedCancel()

	slog.Info("switchyard server stopped")
	return nil
}
