package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/shipment-delay-console/internal/core/domain"
	"github.com/kirillkom/shipment-delay-console/internal/core/ports"
	"github.com/kirillkom/shipment-delay-console/internal/core/usecase"
)

// Console is the part of the pipeline controller exposed as tools.
type Console interface {
	ports.Pipeline
	Snapshot() usecase.Snapshot
	Optimization() usecase.OptimizationStatus
	Records(query string) ([]usecase.Card, error)
	Map() (*usecase.MapView, error)
}

type Tools struct {
	console Console
}

func NewTools(console Console) *Tools {
	return &Tools{console: console}
}

// NewServer registers every console tool on a fresh MCP server.
func NewServer(name, version string, console Console) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false), server.WithRecovery())
	NewTools(console).Register(s)
	return s
}

func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("session_status",
		mcp.WithDescription("Current pipeline phase, active dataset and available actions."),
	), t.SessionStatus)

	s.AddTool(mcp.NewTool("upload_csv",
		mcp.WithDescription("Upload shipment rows as CSV text. Replaces the active dataset and clears earlier results."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("File name ending in .csv; its base name becomes the dataset id.")),
		mcp.WithString("content", mcp.Required(), mcp.Description("CSV text including the header row.")),
	), t.UploadCSV)

	s.AddTool(mcp.NewTool("classify_delays",
		mcp.WithDescription("Run the late-delivery classifier on the active dataset."),
	), t.ClassifyDelays)

	s.AddTool(mcp.NewTool("estimate_delays",
		mcp.WithDescription("Run the delay regression (days) on the active dataset."),
	), t.EstimateDelays)

	s.AddTool(mcp.NewTool("search_records",
		mcp.WithDescription("Record cards for the active dataset. Empty query returns all; a number returns that record."),
		mcp.WithString("query", mcp.Description("Empty or a 1-based record number.")),
	), t.SearchRecords)

	s.AddTool(mcp.NewTool("map_markers",
		mcp.WithDescription("Map markers with popup fields and the viewport center."),
	), t.MapMarkers)

	s.AddTool(mcp.NewTool("dashboard_summary",
		mcp.WithDescription("Delay by category, on-time split and feature importance for the active dataset."),
	), t.DashboardSummary)

	s.AddTool(mcp.NewTool("run_optimization",
		mcp.WithDescription("Search for a delivery arrangement. Only one run may be in progress."),
		mcp.WithString("method", mcp.Required(), mcp.Enum(string(domain.MethodTabu), string(domain.MethodGenetic))),
	), t.RunOptimization)

	s.AddTool(mcp.NewTool("latest_optimization",
		mcp.WithDescription("State of the arrangement panel and the last result."),
	), t.LatestOptimization)
}

func (t *Tools) SessionStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.console.Snapshot())
}

func (t *Tools) UploadCSV(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content := req.GetString("content", "")

	if _, err := t.console.Upload(ctx, ports.FileUpload{
		Filename: filename,
		Body:     strings.NewReader(content),
	}); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(t.console.Snapshot())
}

func (t *Tools) ClassifyDelays(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := t.console.Classify(ctx); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(t.console.Snapshot())
}

func (t *Tools) EstimateDelays(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := t.console.Regress(ctx); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(t.console.Snapshot())
}

func (t *Tools) SearchRecords(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cards, err := t.console.Records(req.GetString("query", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(cards)
}

func (t *Tools) MapMarkers(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, err := t.console.Map()
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(view)
}

func (t *Tools) DashboardSummary(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agg, err := t.console.Dashboard(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(agg)
}

func (t *Tools) RunOptimization(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("method")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	method, err := domain.ParseOptimizationMethod(raw)
	if err != nil {
		return errorResult(err), nil
	}
	result, err := t.console.Optimize(ctx, method)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{
		"bestScore": result.BestScore,
		"bestOrder": result.BestOrderLine(),
		"result":    result,
	})
}

func (t *Tools) LatestOptimization(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.console.Optimization())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

// errorResult reports a pipeline failure to the model as tool output.
func errorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(domain.UserMessage(err))
}
