package usecase

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/kirillkom/shipment-delay-console/internal/core/domain"
	"github.com/kirillkom/shipment-delay-console/internal/core/ports"
)

const (
	msgSelectFile = "Please select a file first."
	msgNotCSV     = "Please upload a CSV file."
	msgNoBaseName = "The file name is empty before its extension."
)

var csvMediaTypes = map[string]struct{}{
	"text/csv":        {},
	"application/csv": {},
	"text/x-csv":      {},
}

type IngestUseCase struct {
	uploader ports.DatasetUploader
	now      func() time.Time
}

func NewIngestUseCase(uploader ports.DatasetUploader) *IngestUseCase {
	return &IngestUseCase{
		uploader: uploader,
		now:      time.Now,
	}
}

// Validate accepts a file when either its declared media type or its
// extension says CSV.
func (uc *IngestUseCase) Validate(filename, mediaType string) error {
	if strings.TrimSpace(filename) == "" {
		return domain.WrapError(domain.ErrValidation, "validate upload", domain.NewValidationError(msgSelectFile))
	}
	if !isCSVMediaType(mediaType) && !strings.HasSuffix(strings.ToLower(strings.TrimSpace(filename)), ".csv") {
		return domain.WrapError(domain.ErrValidation, "validate upload", domain.NewValidationError(msgNotCSV))
	}
	if DatasetID(filename) == "" {
		return domain.WrapError(domain.ErrValidation, "validate upload", domain.NewValidationError(msgNoBaseName))
	}
	return nil
}

// Submit validates the file, sends it in a single request and builds the
// Dataset from the returned rows.
func (uc *IngestUseCase) Submit(ctx context.Context, file ports.FileUpload) (*domain.Dataset, error) {
	if err := uc.Validate(file.Filename, file.MediaType); err != nil {
		return nil, err
	}
	if file.Body == nil {
		return nil, domain.WrapError(domain.ErrValidation, "validate upload", domain.NewValidationError(msgSelectFile))
	}

	table, err := uc.uploader.Upload(ctx, file.Filename, file.Body)
	if err != nil {
		return nil, fmt.Errorf("upload dataset: %w", err)
	}

	rows := table.Rows
	if rows == nil {
		rows = []domain.Row{}
	}
	return &domain.Dataset{
		ID:         DatasetID(file.Filename),
		Filename:   file.Filename,
		Columns:    table.Columns,
		Rows:       rows,
		UploadedAt: uc.now().UTC(),
	}, nil
}

// DatasetID strips directory parts and the last extension from filename.
func DatasetID(filename string) string {
	name := strings.TrimSpace(filename)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if dot := strings.LastIndex(name, "."); dot >= 0 {
		return name[:dot]
	}
	return name
}

func isCSVMediaType(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		mediaType = strings.ToLower(raw)
	}
	_, ok := csvMediaTypes[mediaType]
	return ok
}
