package predictor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/shipment-delay-console/internal/core/domain"
	"github.com/kirillkom/shipment-delay-console/internal/infrastructure/resilience"
)

const maxErrorBody = 2048

func statusError(endpoint string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &domain.TransportError{
		Operation:  endpoint,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}

func decodeError(endpoint string, resp *http.Response, err error) error {
	return &domain.TransportError{
		Operation:  endpoint,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Err:        fmt.Errorf("decode %s response: %w", endpoint, err),
	}
}

// asTransportError gives every failed round trip the TransportError shape.
func asTransportError(endpoint string, err error) error {
	if err == nil {
		return nil
	}
	var transportErr *domain.TransportError
	if errors.As(err, &transportErr) {
		return err
	}
	if resilience.IsCircuitOpen(err) {
		return &domain.TransportError{
			Operation: endpoint,
			Err:       fmt.Errorf("%s is temporarily unavailable: %w", endpoint, err),
		}
	}
	return &domain.TransportError{Operation: endpoint, Err: err}
}

// countsAgainstBreaker reports failures that point at an unhealthy service.
// Rejected input and caller cancellation do not count.
func countsAgainstBreaker(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var transportErr *domain.TransportError
	if errors.As(err, &transportErr) {
		if transportErr.StatusCode == 0 {
			return true
		}
		return isServerSideStatus(transportErr.StatusCode)
	}
	return true
}

func isServerSideStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	default:
		return statusCode >= http.StatusInternalServerError
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	if resilience.IsCircuitOpen(err) {
		return "circuit_open"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var transportErr *domain.TransportError
	if errors.As(err, &transportErr) && transportErr.StatusCode >= 400 {
		return fmt.Sprintf("http_%dxx", transportErr.StatusCode/100)
	}
	return "error"
}
