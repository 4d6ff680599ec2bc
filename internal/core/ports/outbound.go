package ports

import (
	"context"
	"io"

	"github.com/kirillkom/shipment-delay-console/internal/core/domain"
)

// UploadedTable is the parsed /upload response.
type UploadedTable struct {
	Columns []string
	Rows    []domain.Row
}

// DatasetUploader sends a CSV to the prediction service.
type DatasetUploader interface {
	Upload(ctx context.Context, filename string, body io.Reader) (*UploadedTable, error)
}

// Predictor runs the classification and regression models for an uploaded dataset.
type Predictor interface {
	Classify(ctx context.Context, datasetID string) (domain.PredictionSet, error)
	Regress(ctx context.Context, datasetID string) (domain.RegressionSet, error)
}

// DashboardSource fetches chart data for an uploaded dataset.
type DashboardSource interface {
	Dashboard(ctx context.Context, datasetID string) (*domain.DashboardSummary, error)
}

// Optimizer runs one delivery arrangement search on the service's working set.
type Optimizer interface {
	Optimize(ctx context.Context, method domain.OptimizationMethod) (*domain.OptimizationResult, error)
}

// EventPublisher announces settled pipeline transitions.
type EventPublisher interface {
	PublishPipelineEvent(ctx context.Context, event domain.PipelineEvent) error
}

// PipelineObserver receives pipeline telemetry.
type PipelineObserver interface {
	ObserveTransition(phase string)
	ObserveStaleResponse(operation string)
	ObserveRejected(operation, reason string)
}

// WorkbookWriter renders a workbook in a spreadsheet format.
type WorkbookWriter interface {
	WriteWorkbook(w io.Writer, book *domain.Workbook) error
}
