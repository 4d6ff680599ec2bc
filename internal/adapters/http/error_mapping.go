package httpadapter

import (
	"net/http"

	"github.com/kirillkom/shipment-delay-console/internal/core/domain"
	"github.com/kirillkom/shipment-delay-console/internal/infrastructure/resilience"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrValidation):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNoDataset):
		return http.StatusPreconditionFailed
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrBusy), domain.IsKind(err, domain.ErrStale):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrDataIntegrity):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTransport):
		if resilience.IsCircuitOpen(err) {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrValidation):
		return "validation"
	case domain.IsKind(err, domain.ErrNoDataset):
		return "no_dataset"
	case domain.IsKind(err, domain.ErrNotFound):
		return "not_found"
	case domain.IsKind(err, domain.ErrBusy):
		return "busy"
	case domain.IsKind(err, domain.ErrStale):
		return "stale"
	case domain.IsKind(err, domain.ErrDataIntegrity):
		return "data_integrity"
	case domain.IsKind(err, domain.ErrTransport):
		return "transport"
	default:
		return "internal"
	}
}
