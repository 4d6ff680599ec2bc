package ports

import (
	"context"
	"io"

	"github.com/kirillkom/shipment-delay-console/internal/core/domain"
)

// FileUpload is a file selected by the operator.
type FileUpload struct {
	Filename  string
	MediaType string
	Body      io.Reader
}

// Pipeline is the inbound contract for the upload-predict-visualize session.
type Pipeline interface {
	Upload(ctx context.Context, file FileUpload) (*domain.Dataset, error)
	Classify(ctx context.Context) (domain.PredictionSet, error)
	Regress(ctx context.Context) (domain.RegressionSet, error)
	Dashboard(ctx context.Context) (*domain.Aggregates, error)
	Optimize(ctx context.Context, method domain.OptimizationMethod) (*domain.OptimizationResult, error)
}
