package resilience

import "time"

// Config controls the per-endpoint breakers. Calls are never retried.
type Config struct {
	Enabled        bool
	MinRequests    uint32
	FailureRatio   float64
	OpenTimeout    time.Duration
	HalfOpenProbes uint32
	CountingWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		MinRequests:    5,
		FailureRatio:   0.6,
		OpenTimeout:    30 * time.Second,
		HalfOpenProbes: 1,
		CountingWindow: time.Minute,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.MinRequests == 0 {
		out.MinRequests = def.MinRequests
	}
	if out.FailureRatio <= 0 || out.FailureRatio > 1 {
		out.FailureRatio = def.FailureRatio
	}
	if out.OpenTimeout <= 0 {
		out.OpenTimeout = def.OpenTimeout
	}
	if out.HalfOpenProbes == 0 {
		out.HalfOpenProbes = def.HalfOpenProbes
	}
	if out.CountingWindow < 0 {
		out.CountingWindow = 0
	}
	return out
}
