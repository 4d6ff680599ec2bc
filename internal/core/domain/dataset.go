package domain

import "time"

// Row is one CSV data line keyed by header name.
type Row map[string]string

// Field names the console reads from uploaded rows.
const (
	FieldOrderDate    = "order date (DateOrders)"
	FieldCountry      = "Customer Country"
	FieldCity         = "Customer City"
	FieldShippingMode = "Shipping Mode"
	FieldLatitude     = "Latitude"
	FieldLongitude    = "Longitude"
)

// Dataset is the ordered row set derived from one uploaded CSV. It is never
// mutated after the upload completes.
type Dataset struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Columns    []string  `json:"columns"`
	Rows       []Row     `json:"-"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// PredictionSet holds one classification score per dataset row. A nil set is absent.
type PredictionSet []float64

// RegressionSet holds one delay estimate in days per dataset row. A nil set is absent.
type RegressionSet []float64

// MarkerPoint is a map pin for a row with parseable coordinates.
type MarkerPoint struct {
	RowIndex  int     `json:"row_index"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}
