package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/shipment-delay-console/internal/core/domain"
	"github.com/kirillkom/shipment-delay-console/internal/infrastructure/resilience"
)

type callRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *callRecorder) ObserveRemoteCall(endpoint, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, endpoint+":"+outcome)
}

func newTestClient(url string, observer CallObserver) *Client {
	return New(url, time.Second, time.Second, resilience.NewGuard(resilience.Config{Enabled: true, MinRequests: 100}, nil), observer)
}

func TestUploadSendsMultipartFileAndKeepsRowOrder(t *testing.T) {
	var gotName, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/upload" {
			http.NotFound(w, r)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("read form file: %v", err)
			http.Error(w, "no file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		raw, _ := io.ReadAll(file)
		gotName, gotBody = header.Filename, string(raw)
		_, _ = w.Write([]byte(`[
			{"Order Id": 7, "Customer City": "Taipei", "Latitude": "25.03", "Late": null},
			{"Order Id": 8, "Customer City": "Tainan", "Latitude": 22.99, "Shipping Mode": "Same Day"}
		]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	table, err := client.Upload(context.Background(), "orders.csv", strings.NewReader("Order Id\n7\n8\n"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if gotName != "orders.csv" || gotBody != "Order Id\n7\n8\n" {
		t.Fatalf("unexpected upload %q: %q", gotName, gotBody)
	}

	wantColumns := []string{"Order Id", "Customer City", "Latitude", "Late", "Shipping Mode"}
	if strings.Join(table.Columns, "|") != strings.Join(wantColumns, "|") {
		t.Fatalf("expected columns %v, got %v", wantColumns, table.Columns)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	if table.Rows[0]["Order Id"] != "7" || table.Rows[0]["Customer City"] != "Taipei" || table.Rows[0]["Late"] != "" {
		t.Fatalf("unexpected first row: %v", table.Rows[0])
	}
	if table.Rows[1]["Latitude"] != "22.99" || table.Rows[1]["Shipping Mode"] != "Same Day" {
		t.Fatalf("unexpected second row: %v", table.Rows[1])
	}
}

func TestUploadFailureSurfacesResponseText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Invalid file format", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, nil).Upload(context.Background(), "orders.csv", strings.NewReader("x"))
	if !domain.IsKind(err, domain.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if domain.UserMessage(err) != "Invalid file format" {
		t.Fatalf("expected response text verbatim, got %q", domain.UserMessage(err))
	}
}

func TestClassifyAndRegressPostFileName(t *testing.T) {
	var mu sync.Mutex
	requests := map[string]string{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		mu.Lock()
		requests[r.URL.Path] = payload["file_name"]
		mu.Unlock()
		switch r.URL.Path {
		case "/prediction":
			_, _ = w.Write([]byte(`{"predictions":[0.25,0.75]}`))
		case "/regression":
			_, _ = w.Write([]byte(`{"predictions":[1.5,3]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	recorder := &callRecorder{}
	client := newTestClient(server.URL, recorder)

	preds, err := client.Classify(context.Background(), "march")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(preds) != 2 || preds[1] != 0.75 {
		t.Fatalf("unexpected predictions: %v", preds)
	}
	regs, err := client.Regress(context.Background(), "march")
	if err != nil {
		t.Fatalf("Regress() error = %v", err)
	}
	if len(regs) != 2 || regs[0] != 1.5 {
		t.Fatalf("unexpected regressions: %v", regs)
	}

	if requests["/prediction"] != "march" || requests["/regression"] != "march" {
		t.Fatalf("expected file_name march, got %v", requests)
	}
	if len(recorder.outcomes) != 2 || recorder.outcomes[0] != "prediction:ok" || recorder.outcomes[1] != "regression:ok" {
		t.Fatalf("unexpected observed calls: %v", recorder.outcomes)
	}
}

func TestClassifyServerErrorIsNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	recorder := &callRecorder{}
	_, err := newTestClient(server.URL, recorder).Classify(context.Background(), "march")
	if !domain.IsKind(err, domain.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if err.Error() != "model not loaded" {
		t.Fatalf("expected body as message, got %q", err.Error())
	}
	if calls != 1 {
		t.Fatalf("expected a single request, got %d", calls)
	}
	if recorder.outcomes[0] != "prediction:http_5xx" {
		t.Fatalf("unexpected outcome: %v", recorder.outcomes)
	}
}

func TestClassifyRejectsMissingPredictions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"nothing"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, nil).Classify(context.Background(), "march")
	if !domain.IsKind(err, domain.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestClassifyRejectsNullScores(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[0.9,null,0.4]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	values, err := client.Classify(context.Background(), "march")
	if !domain.IsKind(err, domain.ErrDataIntegrity) {
		t.Fatalf("expected data integrity error, got values=%v err=%v", values, err)
	}
	if !strings.Contains(err.Error(), "row 2") {
		t.Fatalf("expected error to name row 2, got %v", err)
	}

	if _, err := client.Regress(context.Background(), "march"); !domain.IsKind(err, domain.ErrDataIntegrity) {
		t.Fatalf("expected data integrity error for regression, got %v", err)
	}
}

func TestClassifyTimeoutIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	recorder := &callRecorder{}
	guard := resilience.NewGuard(resilience.Config{Enabled: true, MinRequests: 100}, nil)
	client := New(server.URL, 50*time.Millisecond, 50*time.Millisecond, guard, recorder)

	_, err := client.Classify(context.Background(), "march")
	if !domain.IsKind(err, domain.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	var transportErr *domain.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *domain.TransportError, got %T", err)
	}
	if domain.UserMessage(err) == "" {
		t.Fatalf("expected a user-visible message")
	}
	if len(recorder.outcomes) != 1 || recorder.outcomes[0] != "prediction:timeout" {
		t.Fatalf("expected a timeout outcome, got %v", recorder.outcomes)
	}
}

func TestDashboardEscapesDatasetIDAndKeepsOrder(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{
			"delayByCategory": {"Fishing": 0.4, "Cleats": 0.6},
			"shipmentOverview": {"On Time": 10, "Late": 4},
			"featureImportance": {"b": 0.5, "a": 0.2}
		}`))
	}))
	defer server.Close()

	summary, err := newTestClient(server.URL, nil).Dashboard(context.Background(), "march orders")
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if gotPath != "/api/dashboard/march%20orders" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	first := summary.DelayByCategory.Oldest()
	if first == nil || first.Key != "Fishing" || first.Value != 0.4 {
		t.Fatalf("expected category order preserved, got %+v", first)
	}
	if v, ok := summary.ShipmentOverview.Get("Late"); !ok || v != 4 {
		t.Fatalf("expected Late=4, got %v", v)
	}
}

func TestOptimizeSelectsEndpointWithoutBody(t *testing.T) {
	var gotPath string
	var gotLength int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotLength = r.ContentLength
		_, _ = w.Write([]byte(`{
			"bestScore": 12.5,
			"scoreHistory": [20, 15, 12.5],
			"summary": {"best_order": [3, "A7", 1], "distance": 42},
			"table": [{"stop": 1}, {"stop": 2}]
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	result, err := client.Optimize(context.Background(), domain.MethodGenetic)
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	if gotPath != "/ga_optimize" || gotLength > 0 {
		t.Fatalf("unexpected request %s with length %d", gotPath, gotLength)
	}
	if result.Method != domain.MethodGenetic || result.BestScore != 12.5 || len(result.ScoreHistory) != 3 || len(result.Table) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.BestOrderLine() != "3, A7, 1" {
		t.Fatalf("unexpected best order line %q", result.BestOrderLine())
	}

	if _, err := client.Optimize(context.Background(), domain.MethodTabu); err != nil {
		t.Fatalf("Optimize(tabu) error = %v", err)
	}
	if gotPath != "/tabu_optimize" {
		t.Fatalf("expected tabu endpoint, got %s", gotPath)
	}

	if _, err := client.Optimize(context.Background(), "annealing"); !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUnreachableServiceIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url, nil).Regress(context.Background(), "march")
	if !domain.IsKind(err, domain.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if domain.UserMessage(err) == "" {
		t.Fatalf("expected a user-visible message")
	}
}

func TestOpenBreakerSkipsRemoteCall(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	guard := resilience.NewGuard(resilience.Config{
		Enabled:        true,
		MinRequests:    2,
		FailureRatio:   0.5,
		OpenTimeout:    time.Minute,
		HalfOpenProbes: 1,
	}, nil)
	recorder := &callRecorder{}
	client := New(server.URL, time.Second, time.Second, guard, recorder)

	for i := 0; i < 2; i++ {
		_, _ = client.Classify(context.Background(), "march")
	}
	_, err := client.Classify(context.Background(), "march")
	if !resilience.IsCircuitOpen(err) || !domain.IsKind(err, domain.ErrTransport) {
		t.Fatalf("expected open circuit transport error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 remote calls, got %d", calls)
	}
	if recorder.outcomes[2] != "prediction:circuit_open" {
		t.Fatalf("unexpected outcome: %v", recorder.outcomes)
	}
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "File not found", http.StatusNotFound)
	}))
	defer server.Close()

	guard := resilience.NewGuard(resilience.Config{Enabled: true, MinRequests: 1, FailureRatio: 0.1}, nil)
	client := New(server.URL, time.Second, time.Second, guard, nil)
	for i := 0; i < 3; i++ {
		_, err := client.Classify(context.Background(), "missing")
		if domain.UserMessage(err) != "File not found" {
			t.Fatalf("expected server message, got %v", err)
		}
	}
	if calls != 3 {
		t.Fatalf("expected every call to reach the service, got %d", calls)
	}
}
