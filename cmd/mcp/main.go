package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/shipment-delay-console/internal/bootstrap"
	"github.com/kirillkom/shipment-delay-console/internal/config"
	"github.com/kirillkom/shipment-delay-console/internal/observability/logging"
)

// Serves the console tools over stdio; stdout is reserved for the protocol.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewStderr(bootstrap.ServiceName+"-mcp", cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	logger.Info("mcp_stdio_started", "predictor_url", cfg.PredictorURL)
	if err := server.ServeStdio(app.MCP); err != nil {
		logger.Error("mcp_stdio_failed", "error", err)
	}
}
