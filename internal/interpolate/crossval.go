package interpolate

import (
	"context"
	"math"

	"maizemap/pkg/contracts/domain"
)

// Validation is the leave-one-out error of one estimator
type Validation struct {
	Method    Method    `json:"method"`
	Samples   int       `json:"samples"`
	RMSE      float64   `json:"rmse"`
	MAE       float64   `json:"mae"`
	Residuals []float64 `json:"residuals"` // observed minus predicted, in sample order
}

// CrossValidate refits the estimator once per sample with that sample held
// out and scores the prediction at its location. Fit failures of any fold
// are returned.
func CrossValidate(ctx context.Context, samples []domain.PointSample, opts Options) (Validation, error) {
	v := Validation{Method: opts.Method, Samples: len(samples), Residuals: make([]float64, len(samples))}
	if err := opts.Validate(); err != nil {
		return v, err
	}

	train := make([]domain.PointSample, 0, len(samples))
	var sq, abs float64
	for i, held := range samples {
		if err := ctx.Err(); err != nil {
			return v, err
		}
		train = train[:0]
		train = append(train, samples[:i]...)
		train = append(train, samples[i+1:]...)

		est, err := Fit(ctx, train, opts)
		if err != nil {
			return v, err
		}
		res := held.Value - est.Predict(held.Features())
		v.Residuals[i] = res
		sq += res * res
		abs += math.Abs(res)
	}

	if n := float64(len(samples)); n > 0 {
		v.RMSE = math.Sqrt(sq / n)
		v.MAE = abs / n
	}
	return v, nil
}
