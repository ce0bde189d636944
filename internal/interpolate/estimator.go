package interpolate

import (
	"context"
	"math"

	apperrors "maizemap/internal/errors"
	"maizemap/pkg/contracts/domain"
)

// Estimator predicts the relative price index from a feature vector of
// lon, lat and covariates in the order they were attached.
type Estimator interface {
	Method() Method
	// Dims is the feature vector length the estimator was fitted on
	Dims() int
	Predict(features []float64) float64
}

// Fit builds the estimator selected by opts
func Fit(ctx context.Context, samples []domain.PointSample, opts Options) (Estimator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, apperrors.UnderdeterminedFit(string(opts.Method), "no samples")
	}

	dims := 2 + len(samples[0].Covariates)
	for _, s := range samples {
		if len(s.Covariates) != dims-2 {
			return nil, apperrors.Validation("sample %s has %d covariates, expected %d", s.MarketID, len(s.Covariates), dims-2)
		}
		for _, f := range s.Features() {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, apperrors.Validation("sample %s has a non-finite feature", s.MarketID)
			}
		}
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			return nil, apperrors.Validation("sample %s has a non-finite value", s.MarketID)
		}
	}

	switch opts.Method {
	case ThinPlateSpline:
		if err := requireSpread(samples, opts.Method); err != nil {
			return nil, err
		}
		return fitSpline(samples, opts)
	case IDW:
		return fitIDW(samples, opts), nil
	case RandomForest:
		if err := requireSpread(samples, opts.Method); err != nil {
			return nil, err
		}
		return fitForest(ctx, samples, opts)
	}
	return nil, apperrors.Validation("unknown interpolation method %q", opts.Method)
}

// requireSpread checks for at least three samples that are not all on one
// line.
func requireSpread(samples []domain.PointSample, method Method) error {
	if len(samples) < 3 {
		return apperrors.UnderdeterminedFit(string(method), "need at least 3 samples").With("samples", len(samples))
	}
	if collinear(samples) {
		return apperrors.UnderdeterminedFit(string(method), "sample locations are collinear").With("samples", len(samples))
	}
	return nil
}

func collinear(samples []domain.PointSample) bool {
	const eps = 1e-12
	x0, y0 := samples[0].Longitude, samples[0].Latitude

	// Find a second location distinct from the first.
	j := -1
	for i := 1; i < len(samples); i++ {
		if math.Hypot(samples[i].Longitude-x0, samples[i].Latitude-y0) > eps {
			j = i
			break
		}
	}
	if j < 0 {
		return true
	}
	dx, dy := samples[j].Longitude-x0, samples[j].Latitude-y0
	norm := math.Hypot(dx, dy)
	for i := j + 1; i < len(samples); i++ {
		ex, ey := samples[i].Longitude-x0, samples[i].Latitude-y0
		if math.Abs(dx*ey-dy*ex)/norm > eps*math.Max(1, math.Hypot(ex, ey)) {
			return false
		}
	}
	return true
}
