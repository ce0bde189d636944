// Package series pivots long-format market reports into a fixed-shape
// market-by-time matrix over a shared time axis.
//
// Storage is a single row-major arena of values plus a presence mask; rows
// are addressed through an index keyed by market identity. Unreported cells
// are absent, never zero.
package series

import (
	"sort"

	apperrors "maizemap/internal/errors"
	"maizemap/internal/timeaxis"
	"maizemap/pkg/contracts/domain"
)

// Matrix is a market-by-time price table. It is immutable once built.
type Matrix struct {
	axis    *timeaxis.Axis
	markets []domain.MarketKey
	rows    map[domain.MarketKey]int
	values  []float64
	present []bool
}

// Reshape pivots observations onto the axis. Observations with an absent
// price leave their cell absent. Two present prices for the same market and
// month fail with DuplicateObservation.
func Reshape(obs []domain.Observation, axis *timeaxis.Axis) (*Matrix, error) {
	if axis == nil {
		return nil, apperrors.Validation("reshape requires a time axis")
	}

	// Rows are ordered by first appearance so output follows input order.
	rows := make(map[domain.MarketKey]int)
	var markets []domain.MarketKey
	for _, o := range obs {
		k := o.Key()
		if _, ok := rows[k]; !ok {
			rows[k] = len(markets)
			markets = append(markets, k)
		}
	}

	cols := axis.Len()
	m := &Matrix{
		axis:    axis,
		markets: markets,
		rows:    rows,
		values:  make([]float64, len(markets)*cols),
		present: make([]bool, len(markets)*cols),
	}

	for _, o := range obs {
		c, ok := axis.Index(o.Time)
		if !ok {
			return nil, apperrors.Validation("time %s of market %s is not on the axis", o.Time, o.MarketID)
		}
		price, ok := o.Price.Get()
		if !ok {
			continue
		}
		if price < 0 {
			return nil, apperrors.Validation("negative price %g for market %s at %s", price, o.MarketID, o.Time)
		}
		i := rows[o.Key()]*cols + c
		if m.present[i] {
			return nil, apperrors.DuplicateObservation(o.Key().String(), o.Time.String())
		}
		m.values[i] = price
		m.present[i] = true
	}

	return m, nil
}

// Axis returns the shared time axis
func (m *Matrix) Axis() *timeaxis.Axis {
	return m.axis
}

// Rows returns the number of markets
func (m *Matrix) Rows() int {
	return len(m.markets)
}

// Cols returns the number of time points
func (m *Matrix) Cols() int {
	return m.axis.Len()
}

// Market returns the identity of row r
func (m *Matrix) Market(r int) domain.MarketKey {
	return m.markets[r]
}

// Markets returns a copy of the row identities in row order
func (m *Matrix) Markets() []domain.MarketKey {
	out := make([]domain.MarketKey, len(m.markets))
	copy(out, m.markets)
	return out
}

// RowIndex returns the row of a market identity
func (m *Matrix) RowIndex(k domain.MarketKey) (int, bool) {
	r, ok := m.rows[k]
	return r, ok
}

// FindMarket returns every row whose market id matches
func (m *Matrix) FindMarket(marketID string) []int {
	var out []int
	for r, k := range m.markets {
		if k.MarketID == marketID {
			out = append(out, r)
		}
	}
	return out
}

// At returns the price at row r, column c and whether it was reported
func (m *Matrix) At(r, c int) (float64, bool) {
	i := r*m.Cols() + c
	return m.values[i], m.present[i]
}

// PresentCount returns the number of reported months of row r
func (m *Matrix) PresentCount(r int) int {
	n := 0
	cols := m.Cols()
	for _, p := range m.present[r*cols : (r+1)*cols] {
		if p {
			n++
		}
	}
	return n
}

// Row returns a copy of row r as a series over the axis
func (m *Matrix) Row(r int) Series {
	cols := m.Cols()
	s := Series{
		Market:  m.markets[r],
		Keys:    m.axis.Keys(),
		Values:  make([]float64, cols),
		Present: make([]bool, cols),
	}
	copy(s.Values, m.values[r*cols:(r+1)*cols])
	copy(s.Present, m.present[r*cols:(r+1)*cols])
	return s
}

// Observations flattens the matrix back into the long table. Only reported
// cells are emitted, ordered by row then time.
func (m *Matrix) Observations() []domain.Observation {
	var out []domain.Observation
	cols := m.Cols()
	for r, k := range m.markets {
		for c := 0; c < cols; c++ {
			v, ok := m.At(r, c)
			if !ok {
				continue
			}
			out = append(out, domain.Observation{
				MarketID:  k.MarketID,
				Longitude: k.Longitude,
				Latitude:  k.Latitude,
				Time:      m.axis.At(c),
				Price:     domain.Some(v),
			})
		}
	}
	return out
}

// Series is one market's prices over the time axis
type Series struct {
	Market  domain.MarketKey
	Keys    []domain.TimeKey
	Values  []float64
	Present []bool
}

// Len returns the number of time points
func (s Series) Len() int {
	return len(s.Keys)
}

// PresentCount returns the number of reported points
func (s Series) PresentCount() int {
	n := 0
	for _, p := range s.Present {
		if p {
			n++
		}
	}
	return n
}

// Span returns the positions of the first and last reported points.
// ok is false when nothing was reported.
func (s Series) Span() (first, last int, ok bool) {
	first, last = -1, -1
	for i, p := range s.Present {
		if !p {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	return first, last, first >= 0
}

// SortObservations orders a long table by market id, location and time. It is
// used to compare tables irrespective of row order.
func SortObservations(obs []domain.Observation) {
	sort.Slice(obs, func(i, j int) bool {
		a, b := obs[i], obs[j]
		if a.MarketID != b.MarketID {
			return a.MarketID < b.MarketID
		}
		if a.Longitude != b.Longitude {
			return a.Longitude.Float64 < b.Longitude.Float64
		}
		if a.Latitude != b.Latitude {
			return a.Latitude.Float64 < b.Latitude.Float64
		}
		return a.Time < b.Time
	})
}
