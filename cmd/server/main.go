package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/centralka/station-service/internal/config"
	"github.com/centralka/station-service/internal/metrics"
	"github.com/centralka/station-service/internal/server"
	"github.com/centralka/station-service/internal/session"
	"github.com/centralka/station-service/internal/state"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "station-service"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// An optional .env can supply ADMIN_USER/ADMIN_PASS overrides
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without the admin credential)
	logger.Info("Configuration loaded",
		slog.Int("device_port", cfg.Device.Port),
		slog.String("bind_address", cfg.Device.BindAddress),
		slog.Int("read_timeout", cfg.Device.ReadTimeout),
		slog.Int("max_connections", cfg.Device.MaxConnections),
		slog.Int("http_port", cfg.HTTP.Port),
		slog.Int("session_ttl", cfg.Admin.SessionTTL),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Shared stores: the single sensor reading and the admin sessions.
	// Everything that needs them receives them here; there is no ambient state.
	sensorState := state.NewStore()
	sessions := session.NewStore(cfg.Admin.GetSessionTTLDuration())

	// Initialize the device listener
	tcpServer := server.NewTCPServer(&cfg.Device, logger, sensorState, appMetrics)

	// Initialize the HTTP API server
	httpServer := server.NewHTTPServer(logger, cfg, sensorState, sessions, tcpServer, appMetrics)

	// Start the device listener; running without the ingestion path is pointless
	if err := tcpServer.Start(); err != nil {
		logger.Error("Failed to start device listener", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("device_address", fmt.Sprintf("%s:%d", cfg.Device.BindAddress, cfg.Device.Port)),
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP first so clients stop seeing a half-alive API
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	if err := tcpServer.Stop(); err != nil {
		logger.Error("Error stopping device listener", slog.String("error", err.Error()))
	}

	// Get final statistics
	stats := tcpServer.GetStatistics()
	logger.Info("Final ingest statistics",
		slog.Uint64("lines_received", stats.LinesReceived),
		slog.Uint64("readings_stored", stats.ReadingsStored),
		slog.Uint64("greetings_received", stats.GreetingsReceived),
		slog.Uint64("lines_unrecognized", stats.LinesUnrecognized),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
