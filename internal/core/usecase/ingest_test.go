package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/shipment-delay-console/internal/core/domain"
	"github.com/kirillkom/shipment-delay-console/internal/core/ports"
)

type uploaderFake struct {
	filename string
	body     string
	table    *ports.UploadedTable
	err      error
	calls    int
}

func (f *uploaderFake) Upload(_ context.Context, filename string, body io.Reader) (*ports.UploadedTable, error) {
	f.calls++
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.filename = filename
	f.body = string(raw)
	if f.err != nil {
		return nil, f.err
	}
	return f.table, nil
}

func TestValidateAcceptsCSVByMediaTypeOrExtension(t *testing.T) {
	uc := NewIngestUseCase(&uploaderFake{})

	accepted := []struct{ name, mediaType string }{
		{"orders.csv", ""},
		{"ORDERS.CSV", "application/octet-stream"},
		{"export", "text/csv"},
		{"export.txt", "text/csv; charset=utf-8"},
		{"export.dat", "application/csv"},
	}
	for _, tc := range accepted {
		if err := uc.Validate(tc.name, tc.mediaType); err != nil {
			t.Fatalf("Validate(%q, %q) error = %v", tc.name, tc.mediaType, err)
		}
	}
}

func TestValidateRejectsNonCSV(t *testing.T) {
	uc := NewIngestUseCase(&uploaderFake{})

	err := uc.Validate("orders.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if domain.UserMessage(err) != "Please upload a CSV file." {
		t.Fatalf("unexpected message %q", domain.UserMessage(err))
	}

	err = uc.Validate("", "")
	if domain.UserMessage(err) != "Please select a file first." {
		t.Fatalf("unexpected message %q", domain.UserMessage(err))
	}

	err = uc.Validate("uploads/.csv", "text/csv")
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty base name, got %v", err)
	}
	if domain.UserMessage(err) != "The file name is empty before its extension." {
		t.Fatalf("unexpected message %q", domain.UserMessage(err))
	}
}

func TestDatasetIDStripsLastExtension(t *testing.T) {
	cases := map[string]string{
		"orders.csv":            "orders",
		"orders.2024.csv":       "orders.2024",
		"orders":                "orders",
		`C:\fakepath\march.csv`: "march",
		"dir/sub/april.CSV":     "april",
		".csv":                  "",
	}
	for in, want := range cases {
		if got := DatasetID(in); got != want {
			t.Fatalf("DatasetID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSubmitBuildsDatasetInReturnedOrder(t *testing.T) {
	uploader := &uploaderFake{table: &ports.UploadedTable{
		Columns: []string{"Order Id", "Latitude"},
		Rows: []domain.Row{
			{"Order Id": "3", "Latitude": "1"},
			{"Order Id": "1", "Latitude": "2"},
		},
	}}
	uc := NewIngestUseCase(uploader)

	ds, err := uc.Submit(context.Background(), ports.FileUpload{
		Filename:  "march.csv",
		MediaType: "text/csv",
		Body:      strings.NewReader("Order Id,Latitude\n3,1\n1,2\n"),
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if ds.ID != "march" {
		t.Fatalf("expected dataset id march, got %q", ds.ID)
	}
	if ds.Len() != 2 || ds.Rows[0]["Order Id"] != "3" || ds.Rows[1]["Order Id"] != "1" {
		t.Fatalf("expected rows in returned order, got %+v", ds.Rows)
	}
	if uploader.filename != "march.csv" || !strings.HasPrefix(uploader.body, "Order Id") {
		t.Fatalf("unexpected upload call: %q %q", uploader.filename, uploader.body)
	}
	if ds.UploadedAt.IsZero() {
		t.Fatalf("expected upload time")
	}
}

func TestSubmitDoesNotSendInvalidFile(t *testing.T) {
	uploader := &uploaderFake{}
	uc := NewIngestUseCase(uploader)

	_, err := uc.Submit(context.Background(), ports.FileUpload{Filename: "notes.txt", Body: strings.NewReader("x")})
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if uploader.calls != 0 {
		t.Fatalf("expected no upload call, got %d", uploader.calls)
	}
}

func TestSubmitSurfacesTransportText(t *testing.T) {
	uploader := &uploaderFake{err: &domain.TransportError{Operation: "upload", StatusCode: 400, Body: "No file part"}}
	uc := NewIngestUseCase(uploader)

	_, err := uc.Submit(context.Background(), ports.FileUpload{Filename: "a.csv", Body: strings.NewReader("x")})
	var transportErr *domain.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if domain.UserMessage(err) != "No file part" {
		t.Fatalf("expected verbatim server text, got %q", domain.UserMessage(err))
	}
}
