package httpadapter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/shipment-delay-console/internal/core/usecase"
	"github.com/kirillkom/shipment-delay-console/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/shipment-delay-console/internal/infrastructure/predictor"
)

func newFlaskFake(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, "No file part", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`[
			{"order date (DateOrders)": "1/31/2018 22:56", "Customer Country": "Puerto Rico", "Customer City": "Caguas", "Shipping Mode": "Standard Class", "Latitude": "18.25", "Longitude": "-66.03"},
			{"order date (DateOrders)": "1/13/2018 12:27", "Customer Country": "EE. UU.", "Customer City": "San Jose", "Shipping Mode": "First Class", "Latitude": "n/a", "Longitude": "-121.88"}
		]`))
	})
	mux.HandleFunc("/prediction", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[0.875,0.1]}`))
	})
	mux.HandleFunc("/regression", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[2.5,0]}`))
	})
	mux.HandleFunc("/api/dashboard/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"delayByCategory": {"Cleats": 0.55},
			"shipmentOverview": {"Late": 1, "On Time": 1},
			"featureImportance": {"a": 0.2, "b": 0.5, "c": 0.1}
		}`))
	})
	mux.HandleFunc("/tabu_optimize", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"bestScore": 4, "scoreHistory": [6, 4], "summary": {"best_order": [2, 1]}, "table": [{"stop": 2}, {"stop": 1}]}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestConsolePipelineEndToEnd(t *testing.T) {
	flask := newFlaskFake(t)
	client := predictor.New(flask.URL, time.Second, time.Second, nil, nil)
	controller := usecase.NewPipelineController(usecase.NewIngestUseCase(client), client, client, client, nil, nil)
	handler, err := NewRouter(testConfig(), controller, xlsx.NewWriter()).Handler()
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/predictions", nil))
	if res.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412 before upload, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, multipartRequest(t, "orders.csv", "text/csv", "raw csv"))
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var snap usecase.Snapshot
	decodeBody(t, res, &snap)
	if snap.Phase != usecase.PhaseUploaded || snap.Dataset.ID != "orders" || snap.Dataset.Rows != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Message != "Upload successful: 2 rows from orders.csv" {
		t.Fatalf("unexpected message %q", snap.Message)
	}

	for _, path := range []string{"/v1/predictions", "/v1/regressions"} {
		res = httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, path, nil))
		if res.Code != http.StatusOK {
			t.Fatalf("%s expected 200, got %d: %s", path, res.Code, res.Body.String())
		}
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/records?q=1", nil))
	var records recordsResponse
	decodeBody(t, res, &records)
	if len(records.Records) != 1 {
		t.Fatalf("expected one record, got %+v", records)
	}
	card := records.Records[0]
	if card.Title != "Order #1" || card.City != "Caguas" || card.Prediction != "87.5%" || card.Regression != "2.500 days" {
		t.Fatalf("unexpected card: %+v", card)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/map", nil))
	var view usecase.MapView
	decodeBody(t, res, &view)
	if len(view.Markers) != 1 || view.Markers[0].RowIndex != 0 {
		t.Fatalf("expected only the first row on the map, got %+v", view.Markers)
	}
	if view.Center.Latitude != 18.25 || view.Center.Longitude != -66.03 {
		t.Fatalf("unexpected center: %+v", view.Center)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil))
	var agg struct {
		FeatureImportance []struct {
			Name    string  `json:"name"`
			Percent float64 `json:"percent"`
		} `json:"feature_importance"`
	}
	if err := json.NewDecoder(res.Body).Decode(&agg); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if len(agg.FeatureImportance) != 3 || agg.FeatureImportance[0].Name != "b" || agg.FeatureImportance[0].Percent != 50 {
		t.Fatalf("unexpected feature importance: %+v", agg.FeatureImportance)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/optimizations/tabu", nil))
	var opt optimizationResponse
	decodeBody(t, res, &opt)
	if opt.BestOrder != "2, 1" || opt.Message != "Best score: 4" {
		t.Fatalf("unexpected optimization response: %+v", opt)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/export.xlsx", nil))
	if res.Code != http.StatusOK || res.Header().Get("Content-Type") != xlsx.ContentType {
		t.Fatalf("unexpected export response %d %q", res.Code, res.Header().Get("Content-Type"))
	}
}
