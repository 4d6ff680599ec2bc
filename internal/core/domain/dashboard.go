package domain

import orderedmap "github.com/wk8/go-ordered-map/v2"

// Weights is a JSON object decoded with its key order intact.
type Weights = orderedmap.OrderedMap[string, float64]

// DashboardSummary is the per-dataset payload behind the charts. Any part may
// be missing.
type DashboardSummary struct {
	DelayByCategory   *Weights `json:"delayByCategory"`
	ShipmentOverview  *Weights `json:"shipmentOverview"`
	FeatureImportance *Weights `json:"featureImportance"`
}

const (
	ShipmentOnTime = "On Time"
	ShipmentLate   = "Late"
)

type PercentEntry struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
	Label   string  `json:"label"`
}

type CountEntry struct {
	Name  string  `json:"name"`
	Count float64 `json:"count"`
}

// Aggregates is what the chart widgets consume.
type Aggregates struct {
	CategoryDelay     []PercentEntry `json:"category_delay"`
	ShipmentSplit     []CountEntry   `json:"shipment_split"`
	FeatureImportance []PercentEntry `json:"feature_importance"`
}
