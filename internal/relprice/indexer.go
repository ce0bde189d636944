// Package relprice measures each market's price level against an anchor
// market and turns the result into located samples for interpolation.
package relprice

import (
	"context"
	"log/slog"
	"strings"

	apperrors "maizemap/internal/errors"
	"maizemap/internal/series"
	"maizemap/pkg/contracts/domain"
)

// Mode selects how a market is compared with the anchor
type Mode string

const (
	Ratio      Mode = "ratio"
	Difference Mode = "difference"
)

// Valid reports whether the mode is known
func (m Mode) Valid() bool {
	return m == Ratio || m == Difference
}

// Indexer computes relative price indices against an anchor market
type Indexer struct {
	Mode   Mode
	logger *slog.Logger
}

// NewIndexer creates an indexer. An unknown mode falls back to Ratio.
func NewIndexer(mode Mode, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	if !mode.Valid() {
		mode = Ratio
	}
	return &Indexer{Mode: mode, logger: logger}
}

// Anchor resolves the anchor row by market id. The id must name exactly one
// market location.
func Anchor(m *series.Matrix, anchorID string) (int, error) {
	rows := m.FindMarket(anchorID)
	switch len(rows) {
	case 0:
		return 0, apperrors.AnchorNotFound(anchorID)
	case 1:
		return rows[0], nil
	default:
		locs := make([]string, len(rows))
		for i, r := range rows {
			locs[i] = m.Market(r).String()
		}
		return 0, apperrors.Newf(apperrors.CodeAnchorNotFound,
			"anchor market %q is ambiguous: reported at %d locations (%s)", anchorID, len(rows), strings.Join(locs, ", ")).
			With("anchor", anchorID).
			With("candidates", locs)
	}
}

// Compute returns one index per matrix row in row order. A point contributes
// only where both the market and the anchor reported; a zero anchor price
// leaves the ratio undefined at that point. Markets with no contributing
// point get an absent index.
func (ix *Indexer) Compute(ctx context.Context, m *series.Matrix, anchorID string) ([]domain.RelativeIndex, error) {
	anchor, err := Anchor(m, anchorID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.RelativeIndex, m.Rows())
	undefined := 0
	for r := 0; r < m.Rows(); r++ {
		sum := 0.0
		n := 0
		for c := 0; c < m.Cols(); c++ {
			v, ok := m.At(r, c)
			if !ok {
				continue
			}
			a, ok := m.At(anchor, c)
			if !ok {
				continue
			}
			switch ix.Mode {
			case Difference:
				sum += v - a
			default:
				if a == 0 {
					continue
				}
				sum += v / a
			}
			n++
		}

		idx := domain.RelativeIndex{Market: m.Market(r), Overlap: n}
		if n > 0 {
			idx.Value = domain.Some(sum / float64(n))
		} else {
			undefined++
		}
		out[r] = idx
	}

	ix.logger.InfoContext(ctx, "relative price index computed",
		"anchor", m.Market(anchor).String(),
		"mode", string(ix.Mode),
		"markets", m.Rows(),
		"undefined", undefined,
	)
	return out, nil
}

// SampleOptions filters markets when building point samples
type SampleOptions struct {
	// RequireSeasonal drops markets without a defined seasonal profile
	RequireSeasonal bool
}

// Samples converts indices into located point samples. Markets without
// coordinates or without a defined index are dropped.
func Samples(indices []domain.RelativeIndex, profiles []domain.SeasonalProfile, opts SampleOptions) []domain.PointSample {
	seasonal := make(map[domain.MarketKey]bool, len(profiles))
	for _, p := range profiles {
		seasonal[p.Market] = true
	}

	var out []domain.PointSample
	for _, idx := range indices {
		v, ok := idx.Value.Get()
		if !ok || !idx.Market.HasLocation() {
			continue
		}
		if opts.RequireSeasonal && !seasonal[idx.Market] {
			continue
		}
		out = append(out, domain.PointSample{
			MarketID:  idx.Market.MarketID,
			Longitude: idx.Market.Longitude.Float64,
			Latitude:  idx.Market.Latitude.Float64,
			Value:     v,
		})
	}
	return out
}
