package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sony/gobreaker/v2"
)

// FailureClassifier reports whether err counts against the endpoint's breaker.
type FailureClassifier func(err error) bool

// StateObserver is told about breaker state changes.
type StateObserver interface {
	ObserveBreakerState(endpoint string, open bool)
}

// Guard keeps one breaker per remote endpoint.
type Guard struct {
	cfg      Config
	observer StateObserver

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewGuard(cfg Config, observer StateObserver) *Guard {
	return &Guard{
		cfg:      cfg.normalize(),
		observer: observer,
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// Do runs fn once under the endpoint's breaker. While the breaker is open fn
// is not called and the returned error satisfies IsCircuitOpen.
func (g *Guard) Do(ctx context.Context, endpoint string, fn func(context.Context) error, classifier FailureClassifier) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	name := strings.TrimSpace(endpoint)
	if name == "" {
		name = "unknown"
	}
	if classifier == nil {
		classifier = countAll
	}
	if g == nil || !g.cfg.Enabled {
		return fn(ctx)
	}

	breaker := g.breaker(name, classifier)
	_, err := breaker.Execute(func() (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// State returns the breaker state for endpoint, "closed" when it was never used.
func (g *Guard) State(endpoint string) string {
	if g == nil {
		return gobreaker.StateClosed.String()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if breaker, ok := g.breakers[endpoint]; ok {
		return breaker.State().String()
	}
	return gobreaker.StateClosed.String()
}

func (g *Guard) breaker(endpoint string, classifier FailureClassifier) *gobreaker.CircuitBreaker[struct{}] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if breaker, ok := g.breakers[endpoint]; ok {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        endpoint,
		MaxRequests: g.cfg.HalfOpenProbes,
		Interval:    g.cfg.CountingWindow,
		Timeout:     g.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < g.cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= g.cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "endpoint", name, "from", from.String(), "to", to.String())
			if g.observer != nil {
				g.observer.ObserveBreakerState(name, to == gobreaker.StateOpen)
			}
		},
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](settings)
	g.breakers[endpoint] = breaker
	return breaker
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func countAll(error) bool { return true }
