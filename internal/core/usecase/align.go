package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/shipment-delay-console/internal/core/domain"
)

// Record is one dataset row with the results sharing its index.
type Record struct {
	Index      int
	Number     int
	Row        domain.Row
	Prediction *float64
	Regression *float64
}

// Card is the record card rendered in the results list.
type Card struct {
	Number       int    `json:"number"`
	Title        string `json:"title"`
	OrderTime    string `json:"order_time"`
	Country      string `json:"country"`
	City         string `json:"city"`
	ShippingMode string `json:"shipping_mode"`
	Prediction   string `json:"prediction,omitempty"`
	Regression   string `json:"regression,omitempty"`
}

// AlignedView is a read-only join of a dataset and its result sets by row index.
type AlignedView struct {
	dataset     *domain.Dataset
	predictions domain.PredictionSet
	regressions domain.RegressionSet
}

// Merge joins dataset rows with optional result sets. A present set whose
// length differs from the row count is rejected.
func Merge(dataset *domain.Dataset, predictions domain.PredictionSet, regressions domain.RegressionSet) (*AlignedView, error) {
	if dataset == nil {
		return nil, domain.WrapError(domain.ErrNoDataset, "merge results", fmt.Errorf("dataset is nil"))
	}
	rows := dataset.Len()
	if predictions != nil && len(predictions) != rows {
		return nil, integrityError("prediction", len(predictions), rows)
	}
	if regressions != nil && len(regressions) != rows {
		return nil, integrityError("regression", len(regressions), rows)
	}
	return &AlignedView{
		dataset:     dataset,
		predictions: predictions,
		regressions: regressions,
	}, nil
}

func integrityError(kind string, got, rows int) error {
	return domain.WrapError(domain.ErrDataIntegrity, "align "+kind+" results",
		fmt.Errorf("%s returned %d values for %d rows", kind, got, rows))
}

func (v *AlignedView) Dataset() *domain.Dataset { return v.dataset }

func (v *AlignedView) Len() int { return v.dataset.Len() }

func (v *AlignedView) HasPredictions() bool { return v.predictions != nil }

func (v *AlignedView) HasRegressions() bool { return v.regressions != nil }

func (v *AlignedView) At(index int) Record {
	rec := Record{
		Index:  index,
		Number: index + 1,
		Row:    v.dataset.Rows[index],
	}
	if v.predictions != nil {
		p := v.predictions[index]
		rec.Prediction = &p
	}
	if v.regressions != nil {
		r := v.regressions[index]
		rec.Regression = &r
	}
	return rec
}

func (v *AlignedView) Records() []Record {
	out := make([]Record, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		out = append(out, v.At(i))
	}
	return out
}

// Search resolves the search box text. Empty text lists every record; a
// record number n selects row n-1; anything else is a miss.
func (v *AlignedView) Search(query string) ([]Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return v.Records(), nil
	}
	n, err := strconv.Atoi(query)
	if err != nil || n < 1 || n > v.Len() {
		return nil, domain.WrapError(domain.ErrNotFound, "search records", fmt.Errorf("no record number %q", query))
	}
	return []Record{v.At(n - 1)}, nil
}

func (v *AlignedView) Card(rec Record) Card {
	card := Card{
		Number:       rec.Number,
		Title:        fmt.Sprintf("Order #%d", rec.Number),
		OrderTime:    domain.FieldOrDash(rec.Row, domain.FieldOrderDate),
		Country:      domain.FieldOrDash(rec.Row, domain.FieldCountry),
		City:         domain.FieldOrDash(rec.Row, domain.FieldCity),
		ShippingMode: domain.FieldOrDash(rec.Row, domain.FieldShippingMode),
	}
	if v.predictions != nil {
		card.Prediction = domain.FormatPrediction(v.predictions, rec.Index)
	}
	if v.regressions != nil {
		card.Regression = domain.FormatRegression(v.regressions, rec.Index)
	}
	return card
}

func (v *AlignedView) Cards(records []Record) []Card {
	cards := make([]Card, 0, len(records))
	for _, rec := range records {
		cards = append(cards, v.Card(rec))
	}
	return cards
}
