package usecase

import (
	"sort"

	"github.com/kirillkom/shipment-delay-console/internal/core/domain"
)

// Aggregate turns a dashboard summary into chart series. Missing parts become
// empty series.
func Aggregate(summary *domain.DashboardSummary) domain.Aggregates {
	out := domain.Aggregates{
		CategoryDelay:     []domain.PercentEntry{},
		ShipmentSplit:     []domain.CountEntry{},
		FeatureImportance: []domain.PercentEntry{},
	}
	if summary == nil {
		return out
	}

	out.CategoryDelay = percentEntries(entries(summary.DelayByCategory))
	out.ShipmentSplit = shipmentSplit(entries(summary.ShipmentOverview))

	importance := entries(summary.FeatureImportance)
	sort.SliceStable(importance, func(i, j int) bool {
		return importance[i].value > importance[j].value
	})
	out.FeatureImportance = percentEntries(importance)
	return out
}

type weight struct {
	name  string
	value float64
}

func entries(m *domain.Weights) []weight {
	if m == nil {
		return nil
	}
	out := make([]weight, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, weight{name: pair.Key, value: pair.Value})
	}
	return out
}

func percentEntries(in []weight) []domain.PercentEntry {
	out := make([]domain.PercentEntry, 0, len(in))
	for _, w := range in {
		pct := domain.Percent(w.value)
		out = append(out, domain.PercentEntry{Name: w.name, Percent: pct, Label: domain.PercentLabel(pct)})
	}
	return out
}

// shipmentSplit always leads with On Time and Late so the pie keeps its colors.
func shipmentSplit(in []weight) []domain.CountEntry {
	if in == nil {
		return []domain.CountEntry{}
	}
	out := []domain.CountEntry{
		{Name: domain.ShipmentOnTime},
		{Name: domain.ShipmentLate},
	}
	for _, w := range in {
		switch w.name {
		case domain.ShipmentOnTime:
			out[0].Count = w.value
		case domain.ShipmentLate:
			out[1].Count = w.value
		default:
			out = append(out, domain.CountEntry{Name: w.name, Count: w.value})
		}
	}
	return out
}
