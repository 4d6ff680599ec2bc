package httpadapter

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/shipment-delay-console/internal/core/domain"
	"github.com/kirillkom/shipment-delay-console/internal/core/ports"
	"github.com/kirillkom/shipment-delay-console/internal/core/usecase"
	"github.com/kirillkom/shipment-delay-console/internal/infrastructure/export/xlsx"
)

func (rt *Router) getSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.console.Snapshot())
}

func (rt *Router) uploadDataset(w http.ResponseWriter, r *http.Request) {
	if limit := rt.cfg.UploadMaxBytes; limit > 0 {
		if r.ContentLength > limit {
			writeTooLarge(w, limit)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	upload := ports.FileUpload{}
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		upload.Filename = header.Filename
		upload.MediaType = header.Header.Get("Content-Type")
		upload.Body = file
	case errors.Is(err, http.ErrMissingFile):
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeTooLarge(w, tooLarge.Limit)
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "multipart field 'file' is required", Kind: "validation"})
		return
	}

	// A missing file still goes through the pipeline so the session shows
	// the selection error.
	if _, err := rt.console.Upload(detached(r), upload); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rt.console.Snapshot())
}

func writeTooLarge(w http.ResponseWriter, limit int64) {
	writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
		Error: fmt.Sprintf("file exceeds %d bytes", limit),
		Kind:  "validation",
	})
}

type resultSetResponse struct {
	Values  []float64        `json:"values"`
	Session usecase.Snapshot `json:"session"`
}

func (rt *Router) classifyDataset(w http.ResponseWriter, r *http.Request) {
	values, err := rt.console.Classify(detached(r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultSetResponse{Values: values, Session: rt.console.Snapshot()})
}

func (rt *Router) regressDataset(w http.ResponseWriter, r *http.Request) {
	values, err := rt.console.Regress(detached(r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultSetResponse{Values: values, Session: rt.console.Snapshot()})
}

type recordsResponse struct {
	Records []usecase.Card `json:"records"`
	Total   int            `json:"total"`
}

func (rt *Router) searchRecords(w http.ResponseWriter, r *http.Request) {
	cards, err := rt.console.Records(r.URL.Query().Get("q"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	total := 0
	if snap := rt.console.Snapshot(); snap.Dataset != nil {
		total = snap.Dataset.Rows
	}
	writeJSON(w, http.StatusOK, recordsResponse{Records: cards, Total: total})
}

func (rt *Router) getMap(w http.ResponseWriter, r *http.Request) {
	view, err := rt.console.Map()
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) getDashboard(w http.ResponseWriter, r *http.Request) {
	agg, err := rt.console.Dashboard(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

type optimizationResponse struct {
	Result    *domain.OptimizationResult `json:"result"`
	BestOrder string                     `json:"best_order"`
	Message   string                     `json:"message"`
}

func (rt *Router) runOptimization(w http.ResponseWriter, r *http.Request) {
	var method string
	err := runtime.BindStyledParameterWithOptions("simple", "method", mux.Vars(r)["method"], &method, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid method: %v", err), Kind: "validation"})
		return
	}
	parsed, err := domain.ParseOptimizationMethod(method)
	if err != nil {
		writeError(r.Context(), w, domain.WrapError(domain.ErrValidation, "optimize", err))
		return
	}

	result, err := rt.console.Optimize(detached(r), parsed)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, optimizationResponse{
		Result:    result,
		BestOrder: result.BestOrderLine(),
		Message:   rt.console.Optimization().Message,
	})
}

func (rt *Router) getLatestOptimization(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.console.Optimization())
}

func (rt *Router) exportWorkbook(w http.ResponseWriter, r *http.Request) {
	book, err := rt.console.Workbook()
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	var buf bytes.Buffer
	if err := rt.exporter.WriteWorkbook(&buf, book); err != nil {
		writeError(r.Context(), w, fmt.Errorf("export workbook: %w", err))
		return
	}
	w.Header().Set("Content-Type", xlsx.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(rt.console.Snapshot(), time.Now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
