package domain

import (
	"fmt"
	"math"
)

const missingValue = "-"

// FormatPrediction renders a classification score as a percentage with one decimal.
func FormatPrediction(values PredictionSet, index int) string {
	if index < 0 || index >= len(values) {
		return missingValue
	}
	return fmt.Sprintf("%.1f%%", values[index]*100)
}

// FormatRegression renders a delay estimate in days with three decimals.
func FormatRegression(values RegressionSet, index int) string {
	if index < 0 || index >= len(values) {
		return missingValue
	}
	return fmt.Sprintf("%.3f days", values[index])
}

// FieldOrDash returns the row value or "-" when it is empty.
func FieldOrDash(row Row, field string) string {
	if v := row[field]; v != "" {
		return v
	}
	return missingValue
}

// Percent converts a fraction to a percentage rounded to one decimal.
func Percent(fraction float64) float64 {
	return math.Round(fraction*1000) / 10
}

func PercentLabel(percent float64) string {
	return fmt.Sprintf("%.1f", percent)
}
