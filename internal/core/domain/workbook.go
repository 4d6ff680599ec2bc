package domain

// Workbook is a tabular export. Cells hold strings, float64 values or nil
// for an empty cell.
type Workbook struct {
	Sheets []Sheet
}

type Sheet struct {
	Name   string
	Header []string
	Rows   [][]any
}
