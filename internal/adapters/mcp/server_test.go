package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/shipment-delay-console/internal/core/domain"
	"github.com/kirillkom/shipment-delay-console/internal/core/ports"
	"github.com/kirillkom/shipment-delay-console/internal/core/usecase"
)

type consoleFake struct {
	uploaded    string
	uploadBody  string
	uploadErr   error
	query       string
	cards       []usecase.Card
	method      domain.OptimizationMethod
	result      *domain.OptimizationResult
	optimizeErr error
	classifyErr error
	snapshot    usecase.Snapshot
}

func (f *consoleFake) Upload(_ context.Context, file ports.FileUpload) (*domain.Dataset, error) {
	f.uploaded = file.Filename
	raw, _ := io.ReadAll(file.Body)
	f.uploadBody = string(raw)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &domain.Dataset{ID: usecase.DatasetID(file.Filename)}, nil
}

func (f *consoleFake) Classify(context.Context) (domain.PredictionSet, error) {
	if f.classifyErr != nil {
		return nil, f.classifyErr
	}
	return domain.PredictionSet{1}, nil
}

func (f *consoleFake) Regress(context.Context) (domain.RegressionSet, error) {
	return domain.RegressionSet{2.5}, nil
}

func (f *consoleFake) Dashboard(context.Context) (*domain.Aggregates, error) {
	return &domain.Aggregates{}, nil
}

func (f *consoleFake) Optimize(_ context.Context, method domain.OptimizationMethod) (*domain.OptimizationResult, error) {
	f.method = method
	if f.optimizeErr != nil {
		return nil, f.optimizeErr
	}
	return f.result, nil
}

func (f *consoleFake) Snapshot() usecase.Snapshot { return f.snapshot }

func (f *consoleFake) Optimization() usecase.OptimizationStatus {
	return usecase.OptimizationStatus{Result: f.result}
}

func (f *consoleFake) Records(query string) ([]usecase.Card, error) {
	f.query = query
	if query == "99" {
		return nil, domain.WrapError(domain.ErrNotFound, "records", errors.New("no record #99"))
	}
	return f.cards, nil
}

func (f *consoleFake) Map() (*usecase.MapView, error) {
	return &usecase.MapView{Center: domain.Coordinate{Latitude: 23.6978, Longitude: 120.9605}}, nil
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatalf("expected tool content, got %+v", result)
	}
	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	default:
		t.Fatalf("expected text content, got %T", result.Content[0])
		return ""
	}
}

func TestUploadCSVPassesContentToConsole(t *testing.T) {
	console := &consoleFake{snapshot: usecase.Snapshot{Phase: usecase.PhaseUploaded}}
	tools := NewTools(console)

	result, err := tools.UploadCSV(context.Background(), callRequest("upload_csv", map[string]any{
		"filename": "march.csv",
		"content":  "City,Country\nTaipei,Taiwan\n",
	}))
	if err != nil {
		t.Fatalf("upload_csv returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got %q", resultText(t, result))
	}
	if console.uploaded != "march.csv" {
		t.Fatalf("expected filename march.csv, got %q", console.uploaded)
	}
	if !strings.HasPrefix(console.uploadBody, "City,Country") {
		t.Fatalf("expected csv body, got %q", console.uploadBody)
	}
	if !strings.Contains(resultText(t, result), `"phase": "uploaded"`) {
		t.Fatalf("expected snapshot in result, got %s", resultText(t, result))
	}
}

func TestUploadCSVRequiresFilename(t *testing.T) {
	tools := NewTools(&consoleFake{})

	result, err := tools.UploadCSV(context.Background(), callRequest("upload_csv", map[string]any{"content": "a,b"}))
	if err != nil {
		t.Fatalf("upload_csv returned error: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for missing filename")
	}
}

func TestToolErrorsCarryOperatorMessage(t *testing.T) {
	console := &consoleFake{classifyErr: &domain.TransportError{Operation: "classify", StatusCode: 500, Body: "model crashed"}}
	tools := NewTools(console)

	result, err := tools.ClassifyDelays(context.Background(), callRequest("classify_delays", nil))
	if err != nil {
		t.Fatalf("classify_delays returned error: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error")
	}
	if got := resultText(t, result); got != "model crashed" {
		t.Fatalf("expected message model crashed, got %q", got)
	}
}

func TestSearchRecordsForwardsQuery(t *testing.T) {
	console := &consoleFake{cards: []usecase.Card{{Number: 2, Title: "Order #2", City: "Tainan"}}}
	tools := NewTools(console)

	result, err := tools.SearchRecords(context.Background(), callRequest("search_records", map[string]any{"query": "2"}))
	if err != nil {
		t.Fatalf("search_records returned error: %v", err)
	}
	if console.query != "2" {
		t.Fatalf("expected query 2, got %q", console.query)
	}
	var cards []usecase.Card
	if err := json.Unmarshal([]byte(resultText(t, result)), &cards); err != nil {
		t.Fatalf("decode cards: %v", err)
	}
	if len(cards) != 1 || cards[0].Title != "Order #2" {
		t.Fatalf("unexpected cards: %+v", cards)
	}

	missing, err := tools.SearchRecords(context.Background(), callRequest("search_records", map[string]any{"query": "99"}))
	if err != nil {
		t.Fatalf("search_records returned error: %v", err)
	}
	if !missing.IsError {
		t.Fatalf("expected tool error for unknown record")
	}
}

func TestRunOptimizationValidatesMethod(t *testing.T) {
	console := &consoleFake{}
	tools := NewTools(console)

	for _, method := range []string{"annealing", "TABU"} {
		result, err := tools.RunOptimization(context.Background(), callRequest("run_optimization", map[string]any{"method": method}))
		if err != nil {
			t.Fatalf("run_optimization returned error: %v", err)
		}
		if !result.IsError {
			t.Fatalf("expected tool error for method %q", method)
		}
	}
	if console.method != "" {
		t.Fatalf("expected optimizer not to be called, got method %q", console.method)
	}
}

func TestRunOptimizationReturnsBestOrder(t *testing.T) {
	console := &consoleFake{result: &domain.OptimizationResult{
		Method:    domain.MethodTabu,
		BestScore: 12.5,
		Summary:   domain.OptimizationSummary{BestOrder: []string{"A", "C", "B"}, Raw: json.RawMessage(`{"best_order":["A","C","B"]}`)},
	}}
	tools := NewTools(console)

	result, err := tools.RunOptimization(context.Background(), callRequest("run_optimization", map[string]any{"method": "tabu"}))
	if err != nil {
		t.Fatalf("run_optimization returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got %q", resultText(t, result))
	}
	if console.method != domain.MethodTabu {
		t.Fatalf("expected method tabu, got %q", console.method)
	}
	var body struct {
		BestScore float64 `json:"bestScore"`
		BestOrder string  `json:"bestOrder"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &body); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if body.BestScore != 12.5 || body.BestOrder != "A, C, B" {
		t.Fatalf("unexpected optimization body: %+v", body)
	}
}

func TestServerListsConsoleTools(t *testing.T) {
	s := NewServer("shipment-delay-console", "test", &consoleFake{})

	reply := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(reply)
	if err != nil {
		t.Fatalf("encode reply: %v", err)
	}
	for _, name := range []string{"session_status", "upload_csv", "classify_delays", "estimate_delays", "search_records", "map_markers", "dashboard_summary", "run_optimization", "latest_optimization"} {
		if !strings.Contains(string(raw), `"`+name+`"`) {
			t.Fatalf("expected tool %s in list, got %s", name, raw)
		}
	}
}
