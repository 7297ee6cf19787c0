package scoring

import (
	"fmt"
	"sort"
)

// MaxTotal is the ceiling of Score_MemberAware.
const MaxTotal = 100

// Weights is the precedence-row scheme. Rows are numbered 1..10 by priority;
// each row has a point weight and an ordered list of columns.
type Weights struct {
	RowWeights map[int]float64  `yaml:"row_weights" json:"row_weights"`
	WithinRow  []float64        `yaml:"within_row_weights" json:"within_row_weights"`
	RowColumns map[int][]string `yaml:"row_columns" json:"row_columns"`
}

// DefaultWeights returns the stock weighting scheme.
func DefaultWeights() Weights {
	return Weights{
		RowWeights: map[int]float64{1: 20, 2: 10, 3: 18, 4: 12, 5: 12, 6: 8, 7: 8, 8: 6, 9: 4, 10: 2},
		WithinRow:  []float64{0.55, 0.25, 0.15, 0.05},
		RowColumns: map[int][]string{
			2: {"adult_min_entry_age", "adult_max_entry_age", "child_min_entry_age", "child_max_entry_age"},
			3: {"ailment_score", MemberScoresColumn},
			4: {"in_patient", "day_care", "ayush", "modern_treatment"},
			5: {"co_payment", "top_up"},
			9: {"maternity", "opd"},
		},
	}
}

// Validate checks the weights are non-negative and rows total at most 100.
func (w Weights) Validate() error {
	var total float64
	for row, v := range w.RowWeights {
		if v < 0 {
			return fmt.Errorf("row %d: negative weight %v", row, v)
		}
		total += v
	}
	if total > MaxTotal+1e-9 {
		return fmt.Errorf("row weights sum to %v, above %d", total, MaxTotal)
	}
	for i, v := range w.WithinRow {
		if v < 0 {
			return fmt.Errorf("within-row weight %d is negative", i)
		}
	}
	for row := range w.RowColumns {
		if _, ok := w.RowWeights[row]; !ok {
			return fmt.Errorf("row %d has columns but no weight", row)
		}
	}
	return nil
}

// rows returns row numbers in ascending order.
func (w Weights) rows() []int {
	out := make([]int, 0, len(w.RowColumns))
	for r := range w.RowColumns {
		out = append(out, r)
	}
	sort.Ints(out)
	return out
}

// WithinRowWeights returns n weights summing to 1. The template's leading
// entries are renormalized; rows longer than the template weigh columns equally.
func (w Weights) WithinRowWeights(n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	if n <= len(w.WithinRow) {
		var sum float64
		for i := 0; i < n; i++ {
			sum += w.WithinRow[i]
		}
		if sum > 0 {
			for i := 0; i < n; i++ {
				out[i] = w.WithinRow[i] / sum
			}
			return out
		}
	}
	for i := range out {
		out[i] = 1 / float64(n)
	}
	return out
}
