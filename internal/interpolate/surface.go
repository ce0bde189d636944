package interpolate

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	apperrors "maizemap/internal/errors"
	"maizemap/internal/grid"
	"maizemap/pkg/contracts/domain"
)

// Interpolate evaluates est at the centre of every unmasked cell of g.
// Covariate layers are sampled at the centre in order; a cell where any
// layer is undefined stays undefined, as do masked cells. Rows are spread
// over workers goroutines.
func Interpolate(ctx context.Context, est Estimator, g *grid.Grid, covariates []grid.Layer, workers int) (*grid.Raster, error) {
	if est == nil || g == nil {
		return nil, apperrors.Validation("interpolation requires an estimator and a grid")
	}
	if want := 2 + len(covariates); est.Dims() != want {
		return nil, apperrors.Validation("%s estimator was fitted on %d features, grid provides %d", est.Method(), est.Dims(), want)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := grid.NewRaster(string(est.Method()), g)
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for r := 0; r < g.Rows(); r++ {
		r := r
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}
			features := make([]float64, 2+len(covariates))
		cells:
			for c := 0; c < g.Cols(); c++ {
				if g.Masked(r, c) {
					continue
				}
				lon, lat := g.Center(r, c)
				features[0], features[1] = lon, lat
				for k, layer := range covariates {
					v, ok := layer.Sample(lon, lat)
					if !ok {
						continue cells
					}
					features[2+k] = v
				}
				if v := est.Predict(features); !math.IsNaN(v) && !math.IsInf(v, 0) {
					out.Set(r, c, v)
				}
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, apperrors.New(apperrors.CodeCancelled, "interpolation interrupted").With("cause", err.Error())
	}
	return out, nil
}

// AttachCovariates samples every layer at each sample location and appends
// the values as features. Samples where any layer is undefined are dropped;
// the number dropped is returned.
func AttachCovariates(samples []domain.PointSample, layers []grid.Layer) ([]domain.PointSample, int) {
	if len(layers) == 0 {
		return samples, 0
	}

	out := make([]domain.PointSample, 0, len(samples))
	dropped := 0
next:
	for _, s := range samples {
		cov := make([]float64, 0, len(s.Covariates)+len(layers))
		cov = append(cov, s.Covariates...)
		for _, layer := range layers {
			v, ok := layer.Sample(s.Longitude, s.Latitude)
			if !ok {
				dropped++
				continue next
			}
			cov = append(cov, v)
		}
		s.Covariates = cov
		out = append(out, s)
	}
	return out, dropped
}
