// Package seasonal extracts the 12-month seasonal cycle of each market's
// price series and aggregates the cycles into a national profile.
//
// A market series is trimmed to its reported span, placed on a contiguous
// monthly calendar, gap-filled with a structural time-series model and then
// decomposed classically (centred 2x12 moving-average trend, seasonal figure
// by calendar month, residual).
package seasonal

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	apperrors "maizemap/internal/errors"
	"maizemap/internal/series"
	"maizemap/pkg/contracts/domain"
)

// MinReportedMonths is the number of reported months needed between the first
// and last report. Two full periods are required to estimate a stable
// seasonal term; it is not a tunable.
const MinReportedMonths = 2 * domain.MonthsPerYear

// Method selects the decomposition model
type Method string

const (
	Additive       Method = "additive"
	Multiplicative Method = "multiplicative"
)

// Valid reports whether the method is known
func (m Method) Valid() bool {
	return m == Additive || m == Multiplicative
}

// Decomposition holds the components of a filled series, aligned with Keys
type Decomposition struct {
	Keys     []domain.TimeKey
	Filled   []float64
	Imputed  []bool
	Trend    []float64 // NaN where the moving average is undefined
	Seasonal []float64
	Residual []float64 // NaN where the trend is undefined
	Figure   [domain.MonthsPerYear]float64
}

// Decomposer turns one market series into a seasonal profile
type Decomposer struct {
	Method  Method
	Imputer Imputer
	logger  *slog.Logger
}

// NewDecomposer creates a decomposer with the structural gap filler
func NewDecomposer(method Method, logger *slog.Logger) *Decomposer {
	if logger == nil {
		logger = slog.Default()
	}
	if !method.Valid() {
		method = Additive
	}
	return &Decomposer{Method: method, Imputer: NewStructuralImputer(), logger: logger}
}

// Decompose returns the seasonal profile of s. Series with fewer than
// MinReportedMonths reports in their span fail with InsufficientData.
func (d *Decomposer) Decompose(ctx context.Context, s series.Series) (domain.SeasonalProfile, error) {
	dec, err := d.Components(ctx, s)
	if err != nil {
		return domain.SeasonalProfile{Market: s.Market}, err
	}

	return domain.SeasonalProfile{Market: s.Market, Coefficients: dec.Figure}, nil
}

// Components runs the full decomposition and returns every component
func (d *Decomposer) Components(ctx context.Context, s series.Series) (*Decomposition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	keys, values, present, err := calendarWindow(s)
	if err != nil {
		return nil, err
	}

	imputer := d.Imputer
	if imputer == nil {
		imputer = NewStructuralImputer()
	}
	filled, err := imputer.Fill(values, present)
	if err != nil {
		return nil, fmt.Errorf("fill gaps of %s: %w", s.Market, err)
	}

	if d.Method == Multiplicative {
		for i, v := range filled {
			if v <= 0 {
				return nil, apperrors.Validation("multiplicative decomposition of %s needs positive prices, got %g at %s",
					s.Market, v, keys[i])
			}
		}
	}

	trend := movingAverage(filled, domain.MonthsPerYear)
	figure := seasonalFigure(filled, trend, keys, d.Method)

	n := len(filled)
	dec := &Decomposition{
		Keys:     keys,
		Filled:   filled,
		Imputed:  make([]bool, n),
		Trend:    trend,
		Seasonal: make([]float64, n),
		Residual: make([]float64, n),
		Figure:   figure,
	}
	for i := range filled {
		dec.Imputed[i] = !present[i]
		dec.Seasonal[i] = figure[int(keys[i].Month())-1]
		switch {
		case math.IsNaN(trend[i]):
			dec.Residual[i] = math.NaN()
		case d.Method == Multiplicative:
			dec.Residual[i] = filled[i] / (trend[i] * dec.Seasonal[i])
		default:
			dec.Residual[i] = filled[i] - trend[i] - dec.Seasonal[i]
		}
	}

	d.logger.DebugContext(ctx, "decomposed market series",
		"market", s.Market.String(),
		"months", n,
		"imputed", n-countTrue(present),
	)
	return dec, nil
}

// calendarWindow trims s to its reported span and lays the span on a
// contiguous monthly calendar. Months missing from the axis become gaps.
func calendarWindow(s series.Series) ([]domain.TimeKey, []float64, []bool, error) {
	first, last, ok := s.Span()
	if !ok {
		return nil, nil, nil, apperrors.InsufficientData(s.Market.String(), 0, MinReportedMonths)
	}

	reported := 0
	for i := first; i <= last; i++ {
		if s.Present[i] {
			reported++
		}
	}
	if reported < MinReportedMonths {
		return nil, nil, nil, apperrors.InsufficientData(s.Market.String(), reported, MinReportedMonths)
	}

	start, end := s.Keys[first], s.Keys[last]
	n := int(end-start) + 1
	keys := make([]domain.TimeKey, n)
	values := make([]float64, n)
	present := make([]bool, n)
	for i := range keys {
		keys[i] = start.Add(i)
	}
	for i := first; i <= last; i++ {
		if !s.Present[i] {
			continue
		}
		j := int(s.Keys[i] - start)
		values[j] = s.Values[i]
		present[j] = true
	}
	return keys, values, present, nil
}

// movingAverage is the centred moving average of the given period. For an even
// period the end points of the window carry half weight (2xP MA).
func movingAverage(y []float64, period int) []float64 {
	n := len(y)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}

	half := period / 2
	for i := half; i < n-half; i++ {
		var sum float64
		if period%2 == 0 {
			sum = 0.5*y[i-half] + 0.5*y[i+half] + floats.Sum(y[i-half+1:i+half])
		} else {
			sum = floats.Sum(y[i-half : i+half+1])
		}
		out[i] = sum / float64(period)
	}
	return out
}

// seasonalFigure averages the detrended series per calendar month and centres
// the result: sum zero for additive, mean one for multiplicative.
func seasonalFigure(y, trend []float64, keys []domain.TimeKey, method Method) [domain.MonthsPerYear]float64 {
	var sums [domain.MonthsPerYear]float64
	var counts [domain.MonthsPerYear]int

	for i := range y {
		if math.IsNaN(trend[i]) {
			continue
		}
		m := int(keys[i].Month()) - 1
		if method == Multiplicative {
			sums[m] += y[i] / trend[i]
		} else {
			sums[m] += y[i] - trend[i]
		}
		counts[m]++
	}

	var figure [domain.MonthsPerYear]float64
	for m := range figure {
		if counts[m] > 0 {
			figure[m] = sums[m] / float64(counts[m])
		}
	}
	mean := stat.Mean(figure[:], nil)

	for m := range figure {
		if method == Multiplicative {
			figure[m] /= mean
		} else {
			figure[m] -= mean
		}
	}
	return figure
}

func countTrue(b []bool) int {
	n := 0
	for _, v := range b {
		if v {
			n++
		}
	}
	return n
}
