package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

type OptimizationMethod string

const (
	MethodTabu    OptimizationMethod = "tabu"
	MethodGenetic OptimizationMethod = "ga"
)

// ParseOptimizationMethod accepts the method names exactly as the optimizer
// endpoints spell them.
func ParseOptimizationMethod(raw string) (OptimizationMethod, error) {
	switch OptimizationMethod(raw) {
	case MethodTabu:
		return MethodTabu, nil
	case MethodGenetic:
		return MethodGenetic, nil
	default:
		return "", NewValidationError("Unknown optimization method: " + raw)
	}
}

// OptimizationResult is one optimizer run. Only the fields the console reads
// are typed; the rest of the payload passes through untouched.
type OptimizationResult struct {
	Method       OptimizationMethod  `json:"method"`
	BestScore    float64             `json:"bestScore"`
	ScoreHistory []float64           `json:"scoreHistory"`
	Summary      OptimizationSummary `json:"summary"`
	Table        []json.RawMessage   `json:"table"`
}

// OptimizationSummary exposes best_order and keeps the raw object.
type OptimizationSummary struct {
	BestOrder []string
	Raw       json.RawMessage
}

func (s *OptimizationSummary) UnmarshalJSON(data []byte) error {
	s.Raw = append(json.RawMessage(nil), data...)
	s.BestOrder = nil
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		// A non-object summary is opaque; keep it raw.
		return nil
	}
	rawOrder, ok := fields["best_order"]
	if !ok {
		return nil
	}
	var stops []json.RawMessage
	if err := json.Unmarshal(rawOrder, &stops); err != nil {
		return nil
	}
	order := make([]string, 0, len(stops))
	for _, stop := range stops {
		order = append(order, ScalarString(stop))
	}
	s.BestOrder = order
	return nil
}

func (s OptimizationSummary) MarshalJSON() ([]byte, error) {
	if len(s.Raw) == 0 {
		return []byte("null"), nil
	}
	return s.Raw, nil
}

// BestOrderLine renders the stop sequence the way the arrangement panel shows it.
func (r *OptimizationResult) BestOrderLine() string {
	if r == nil || r.Summary.BestOrder == nil {
		return "N/A"
	}
	return strings.Join(r.Summary.BestOrder, ", ")
}

// ScalarString renders a JSON scalar as display text: strings unquoted, null
// empty, numbers and booleans as written.
func ScalarString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}
