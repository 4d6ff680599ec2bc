package usecase

import (
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/kirillkom/shipment-delay-console/internal/core/domain"
)

// DefaultCenter is the map viewport used when no row has usable coordinates.
var DefaultCenter = domain.Coordinate{Latitude: 23.6978, Longitude: 120.9605}

type Projection struct {
	Markers []domain.MarkerPoint `json:"markers"`
	Center  domain.Coordinate    `json:"center"`
}

// Project derives markers from the Latitude/Longitude fields of each row and
// centers the map on their mean position.
func Project(dataset *domain.Dataset) Projection {
	out := Projection{
		Markers: []domain.MarkerPoint{},
		Center:  DefaultCenter,
	}
	if dataset == nil {
		return out
	}

	lats := make([]float64, 0, len(dataset.Rows))
	lons := make([]float64, 0, len(dataset.Rows))
	for idx, row := range dataset.Rows {
		lat, ok := parseCoordinate(row[domain.FieldLatitude])
		if !ok {
			continue
		}
		lon, ok := parseCoordinate(row[domain.FieldLongitude])
		if !ok {
			continue
		}
		out.Markers = append(out.Markers, domain.MarkerPoint{RowIndex: idx, Latitude: lat, Longitude: lon})
		lats = append(lats, lat)
		lons = append(lons, lon)
	}

	if len(out.Markers) > 0 {
		out.Center = domain.Coordinate{
			Latitude:  stat.Mean(lats, nil),
			Longitude: stat.Mean(lons, nil),
		}
	}
	return out
}

func parseCoordinate(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
