package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/kirillkom/shipment-delay-console/internal/core/domain"
	"github.com/kirillkom/shipment-delay-console/internal/core/ports"
	"github.com/kirillkom/shipment-delay-console/internal/infrastructure/resilience"
)

// CallObserver records one remote round trip.
type CallObserver interface {
	ObserveRemoteCall(endpoint, outcome string, duration time.Duration)
}

// Client talks to the Flask prediction service. It implements the uploader,
// predictor, dashboard and optimizer ports.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	optimizeClient *http.Client
	guard          *resilience.Guard
	observer       CallObserver
}

func New(baseURL string, timeout, optimizeTimeout time.Duration, guard *resilience.Guard, observer CallObserver) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if optimizeTimeout <= 0 {
		optimizeTimeout = 300 * time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{Timeout: timeout},
		optimizeClient: &http.Client{Timeout: optimizeTimeout},
		guard:          guard,
		observer:       observer,
	}
}

var (
	_ ports.DatasetUploader = (*Client)(nil)
	_ ports.Predictor       = (*Client)(nil)
	_ ports.DashboardSource = (*Client)(nil)
	_ ports.Optimizer       = (*Client)(nil)
)

// Upload posts the file as multipart field "file" and returns the rows the
// service parsed, in file order.
func (c *Client) Upload(ctx context.Context, filename string, body io.Reader) (*ports.UploadedTable, error) {
	var rows []*orderedmap.OrderedMap[string, json.RawMessage]
	if err := c.postMultipart(ctx, "upload", "/upload", filename, body, &rows); err != nil {
		return nil, err
	}
	return tableFromRows(rows), nil
}

type fileRequest struct {
	FileName string `json:"file_name"`
}

type predictionsResponse struct {
	Predictions []*float64 `json:"predictions"`
}

// scores unwraps the response values. A null entry has no score to show, so
// it fails the whole result set.
func (r predictionsResponse) scores(operation string) ([]float64, error) {
	if r.Predictions == nil {
		return nil, missingField(operation, "predictions")
	}
	out := make([]float64, len(r.Predictions))
	for i, value := range r.Predictions {
		if value == nil {
			return nil, domain.WrapError(domain.ErrDataIntegrity, operation,
				fmt.Errorf("%s value for row %d is null", operation, i+1))
		}
		out[i] = *value
	}
	return out, nil
}

func (c *Client) Classify(ctx context.Context, datasetID string) (domain.PredictionSet, error) {
	var response predictionsResponse
	if err := c.postJSON(ctx, "prediction", "/prediction", fileRequest{FileName: datasetID}, &response); err != nil {
		return nil, err
	}
	values, err := response.scores("prediction")
	if err != nil {
		return nil, err
	}
	return domain.PredictionSet(values), nil
}

// Regress returns delay estimates in days. The service reuses the
// "predictions" key for them.
func (c *Client) Regress(ctx context.Context, datasetID string) (domain.RegressionSet, error) {
	var response predictionsResponse
	if err := c.postJSON(ctx, "regression", "/regression", fileRequest{FileName: datasetID}, &response); err != nil {
		return nil, err
	}
	values, err := response.scores("regression")
	if err != nil {
		return nil, err
	}
	return domain.RegressionSet(values), nil
}

func (c *Client) Dashboard(ctx context.Context, datasetID string) (*domain.DashboardSummary, error) {
	var summary domain.DashboardSummary
	if err := c.getJSON(ctx, "dashboard", "/api/dashboard/"+url.PathEscape(datasetID), &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Optimize runs the arrangement search on whatever orders the service holds.
func (c *Client) Optimize(ctx context.Context, method domain.OptimizationMethod) (*domain.OptimizationResult, error) {
	parsed, err := domain.ParseOptimizationMethod(string(method))
	if err != nil {
		return nil, domain.WrapError(domain.ErrValidation, "optimize", err)
	}
	endpoint := string(parsed) + "_optimize"

	var result domain.OptimizationResult
	if err := c.post(ctx, c.optimizeClient, endpoint, "/"+endpoint, &result); err != nil {
		return nil, err
	}
	result.Method = parsed
	if result.ScoreHistory == nil {
		result.ScoreHistory = []float64{}
	}
	if result.Table == nil {
		result.Table = []json.RawMessage{}
	}
	return &result, nil
}

// tableFromRows flattens row objects into string rows. Columns follow the
// first row's key order; keys first seen later are appended.
func tableFromRows(rows []*orderedmap.OrderedMap[string, json.RawMessage]) *ports.UploadedTable {
	table := &ports.UploadedTable{
		Columns: []string{},
		Rows:    make([]domain.Row, 0, len(rows)),
	}
	seen := make(map[string]struct{})
	for _, obj := range rows {
		row := domain.Row{}
		if obj != nil {
			for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
				if _, ok := seen[pair.Key]; !ok {
					seen[pair.Key] = struct{}{}
					table.Columns = append(table.Columns, pair.Key)
				}
				row[pair.Key] = domain.ScalarString(pair.Value)
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func missingField(operation, field string) error {
	return &domain.TransportError{
		Operation:  operation,
		StatusCode: http.StatusOK,
		Err:        fmt.Errorf("%s response has no %q field", operation, field),
	}
}
