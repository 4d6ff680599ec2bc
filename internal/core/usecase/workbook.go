package usecase

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/kirillkom/shipment-delay-console/internal/core/domain"
)

const (
	SheetRecords      = "Records"
	SheetOptimization = "Optimization"
	SheetArrangement  = "Arrangement"
)

// BuildWorkbook lays out the aligned records and, when present, the last
// optimization run. Result columns appear only for result sets that exist.
func BuildWorkbook(view *AlignedView, result *domain.OptimizationResult) *domain.Workbook {
	book := &domain.Workbook{}
	if view != nil {
		book.Sheets = append(book.Sheets, recordsSheet(view))
	}
	if result != nil {
		book.Sheets = append(book.Sheets, optimizationSheet(result), arrangementSheet(result))
	}
	return book
}

func recordsSheet(view *AlignedView) domain.Sheet {
	columns := view.Dataset().Columns
	header := make([]string, 0, len(columns)+3)
	header = append(header, "Order #")
	header = append(header, columns...)
	if view.HasPredictions() {
		header = append(header, "Prediction")
	}
	if view.HasRegressions() {
		header = append(header, "Regression (days)")
	}

	rows := make([][]any, 0, view.Len())
	for _, rec := range view.Records() {
		row := make([]any, 0, len(header))
		row = append(row, float64(rec.Number))
		for _, col := range columns {
			row = append(row, rec.Row[col])
		}
		if view.HasPredictions() {
			row = append(row, optionalValue(rec.Prediction))
		}
		if view.HasRegressions() {
			row = append(row, optionalValue(rec.Regression))
		}
		rows = append(rows, row)
	}
	return domain.Sheet{Name: SheetRecords, Header: header, Rows: rows}
}

func optimizationSheet(result *domain.OptimizationResult) domain.Sheet {
	rows := [][]any{
		{"Method", string(result.Method)},
		{"Best Score", result.BestScore},
		{"Best Order", result.BestOrderLine()},
	}
	for i, score := range result.ScoreHistory {
		rows = append(rows, []any{fmt.Sprintf("Iteration %d", i+1), score})
	}
	return domain.Sheet{Name: SheetOptimization, Header: []string{"Field", "Value"}, Rows: rows}
}

// arrangementSheet flattens the result table. Columns follow first-seen key
// order across rows; non-object rows land in a single "value" column.
func arrangementSheet(result *domain.OptimizationResult) domain.Sheet {
	header := []string{}
	index := map[string]int{}
	decoded := make([]*orderedmap.OrderedMap[string, json.RawMessage], 0, len(result.Table))

	for _, raw := range result.Table {
		obj := orderedmap.New[string, json.RawMessage]()
		if err := json.Unmarshal(raw, obj); err != nil {
			obj = orderedmap.New[string, json.RawMessage]()
			obj.Set("value", raw)
		}
		for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
			if _, ok := index[pair.Key]; !ok {
				index[pair.Key] = len(header)
				header = append(header, pair.Key)
			}
		}
		decoded = append(decoded, obj)
	}

	rows := make([][]any, 0, len(decoded))
	for _, obj := range decoded {
		row := make([]any, len(header))
		for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
			row[index[pair.Key]] = cellValue(pair.Value)
		}
		rows = append(rows, row)
	}
	return domain.Sheet{Name: SheetArrangement, Header: header, Rows: rows}
}

func optionalValue(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func cellValue(raw json.RawMessage) any {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	text := domain.ScalarString(raw)
	if text == "" {
		return nil
	}
	return text
}
