package seasonal

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"

	apperrors "maizemap/internal/errors"
	"maizemap/internal/series"
	"maizemap/pkg/contracts/domain"
)

// Result is the outcome of decomposing one matrix row. Exactly one of
// Profile and Err is meaningful.
type Result struct {
	Row     int
	Market  domain.MarketKey
	Profile domain.SeasonalProfile
	Err     error
}

// Defined reports whether the market produced a profile
func (r Result) Defined() bool {
	return r.Err == nil
}

// DecomposeAll decomposes every row of m on up to workers goroutines. A
// failing market only fills its own result slot; the map never aborts on a
// per-market error. The returned error is non-nil only on cancellation.
func (d *Decomposer) DecomposeAll(ctx context.Context, m *series.Matrix, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, m.Rows())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for r := 0; r < m.Rows(); r++ {
		r := r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row := m.Row(r)
			profile, err := d.Decompose(gctx, row)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			results[r] = Result{Row: r, Market: row.Market, Profile: profile, Err: err}
			if err != nil {
				d.logger.WarnContext(gctx, "market excluded from seasonal aggregation",
					"market", row.Market.String(),
					"error", err,
				)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, apperrors.New(apperrors.CodeCancelled, "seasonal decomposition interrupted").With("cause", err.Error())
	}
	return results, nil
}

// Profiles returns the defined profiles in row order
func Profiles(results []Result) []domain.SeasonalProfile {
	var out []domain.SeasonalProfile
	for _, r := range results {
		if r.Defined() {
			out = append(out, r.Profile)
		}
	}
	return out
}

// NationalProfile is the per-month mean of every defined market profile.
// It returns the number of contributing markets; with none it fails with
// InsufficientData.
func NationalProfile(results []Result) ([domain.MonthsPerYear]float64, int, error) {
	var national [domain.MonthsPerYear]float64
	profiles := Profiles(results)
	if len(profiles) == 0 {
		return national, 0, apperrors.New(apperrors.CodeInsufficientData, "no market has a defined seasonal profile")
	}

	for _, p := range profiles {
		for m, c := range p.Coefficients {
			national[m] += c
		}
	}
	for m := range national {
		national[m] /= float64(len(profiles))
	}
	return national, len(profiles), nil
}
