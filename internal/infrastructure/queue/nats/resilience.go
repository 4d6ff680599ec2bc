package nats

import (
	"context"
	"errors"
)

// countsAgainstBreaker ignores caller cancellation; every other publish
// failure means the connection is unhealthy.
func countsAgainstBreaker(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled)
}
