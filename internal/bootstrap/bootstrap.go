package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/server"

	httpadapter "github.com/kirillkom/shipment-delay-console/internal/adapters/http"
	mcpadapter "github.com/kirillkom/shipment-delay-console/internal/adapters/mcp"
	"github.com/kirillkom/shipment-delay-console/internal/config"
	"github.com/kirillkom/shipment-delay-console/internal/core/ports"
	"github.com/kirillkom/shipment-delay-console/internal/core/usecase"
	"github.com/kirillkom/shipment-delay-console/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/shipment-delay-console/internal/infrastructure/predictor"
	"github.com/kirillkom/shipment-delay-console/internal/infrastructure/queue/nats"
	"github.com/kirillkom/shipment-delay-console/internal/infrastructure/resilience"
	"github.com/kirillkom/shipment-delay-console/internal/observability/metrics"
)

const (
	ServiceName = "shipment-delay-console"
	Version     = "1.0.0"
)

type App struct {
	Config config.Config

	Metrics    *metrics.ConsoleMetrics
	Controller *usecase.PipelineController
	Exporter   ports.WorkbookWriter
	MCP        *server.MCPServer

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	consoleMetrics := metrics.NewConsoleMetrics(ServiceName)

	guard := resilience.NewGuard(resilience.Config{
		Enabled:        cfg.BreakerEnabled,
		MinRequests:    uint32(max(cfg.BreakerMinRequests, 0)),
		FailureRatio:   cfg.BreakerFailureRatio,
		OpenTimeout:    cfg.BreakerOpenTimeout(),
		HalfOpenProbes: resilience.DefaultConfig().HalfOpenProbes,
		CountingWindow: resilience.DefaultConfig().CountingWindow,
	}, consoleMetrics)

	client := predictor.New(cfg.PredictorURL, cfg.PredictorTimeout(), cfg.OptimizerTimeout(), guard, consoleMetrics)

	var events ports.EventPublisher
	closeFn := func() {}
	if cfg.NATSURL != "" {
		publisher, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			Guard:    guard,
			Observer: consoleMetrics,
		})
		if err != nil {
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		events = publisher
		closeFn = publisher.Close
	} else {
		slog.InfoContext(ctx, "event_publisher_disabled", "reason", "NATS_URL is empty")
	}

	ingest := usecase.NewIngestUseCase(client)
	controller := usecase.NewPipelineController(ingest, client, client, client, events, consoleMetrics)

	return &App{
		Config:     cfg,
		Metrics:    consoleMetrics,
		Controller: controller,
		Exporter:   xlsx.NewWriter(),
		MCP:        mcpadapter.NewServer(ServiceName, Version, controller),
		closeFn:    closeFn,
	}, nil
}

// Handler assembles the HTTP surface: REST API, metrics and, when enabled,
// the streamable MCP endpoint.
func (a *App) Handler() (http.Handler, error) {
	opts := []httpadapter.Option{httpadapter.WithMetrics(a.Metrics)}
	if a.Config.MCPHTTPEnabled {
		opts = append(opts, httpadapter.WithMCP(server.NewStreamableHTTPServer(a.MCP,
			server.WithEndpointPath("/mcp"),
		)))
	}
	return httpadapter.NewRouter(a.Config, a.Controller, a.Exporter, opts...).Handler()
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
