package interpolate

import (
	"math"

	"gonum.org/v1/gonum/mat"

	apperrors "maizemap/internal/errors"
	"maizemap/pkg/contracts/domain"
)

// maxCondition is the largest condition number accepted for the spline system
const maxCondition = 1e14

// spline is a thin-plate spline in lon/lat with covariates entering the
// polynomial part linearly:
//
//	f(x) = a0 + a1*lon + a2*lat + sum_k b_k*z_k + sum_i w_i*phi(|x - x_i|)
type spline struct {
	dims    int
	centers [][2]float64
	weights []float64
	poly    []float64 // a0, a1, a2, b_1..b_k
}

func (s *spline) Method() Method { return ThinPlateSpline }
func (s *spline) Dims() int      { return s.dims }

// Predict implements Estimator
func (s *spline) Predict(features []float64) float64 {
	x, y := features[0], features[1]
	v := s.poly[0] + s.poly[1]*x + s.poly[2]*y
	for k := 2; k < s.dims; k++ {
		v += s.poly[k+1] * features[k]
	}
	for i, c := range s.centers {
		v += s.weights[i] * tpsKernel(math.Hypot(x-c[0], y-c[1]))
	}
	return v
}

// tpsKernel is r^2 log r with the limit 0 at r = 0
func tpsKernel(r float64) float64 {
	if r <= 0 {
		return 0
	}
	return r * r * math.Log(r)
}

func fitSpline(samples []domain.PointSample, opts Options) (*spline, error) {
	pts := mergeCoincident(samples)
	n := len(pts)
	dims := 2 + len(pts[0].Covariates)
	m := dims + 1 // polynomial terms
	size := n + m

	A := mat.NewDense(size, size, nil)
	b := mat.NewVecDense(size, nil)
	for i := 0; i < n; i++ {
		fi := pts[i].Features()
		for j := 0; j < i; j++ {
			k := tpsKernel(math.Hypot(pts[i].Longitude-pts[j].Longitude, pts[i].Latitude-pts[j].Latitude))
			A.Set(i, j, k)
			A.Set(j, i, k)
		}
		A.Set(i, i, opts.Smoothing)

		A.Set(i, n, 1)
		A.Set(n, i, 1)
		for d, f := range fi {
			A.Set(i, n+1+d, f)
			A.Set(n+1+d, i, f)
		}
		b.SetVec(i, pts[i].Value)
	}

	var lu mat.LU
	lu.Factorize(A)
	if cond := lu.Cond(); math.IsInf(cond, 0) || math.IsNaN(cond) || cond > maxCondition {
		return nil, apperrors.UnderdeterminedFit(string(ThinPlateSpline), "spline system is singular").With("condition", cond)
	}
	x := mat.NewVecDense(size, nil)
	if err := lu.SolveVecTo(x, false, b); err != nil {
		return nil, apperrors.UnderdeterminedFit(string(ThinPlateSpline), "spline system is singular").With("cause", err.Error())
	}

	s := &spline{
		dims:    dims,
		centers: make([][2]float64, n),
		weights: make([]float64, n),
		poly:    make([]float64, m),
	}
	for i := 0; i < n; i++ {
		s.centers[i] = [2]float64{pts[i].Longitude, pts[i].Latitude}
		s.weights[i] = x.AtVec(i)
	}
	for j := 0; j < m; j++ {
		s.poly[j] = x.AtVec(n + j)
	}
	return s, nil
}

// mergeCoincident averages samples sharing a location. Two centres at the
// same point make the spline system singular.
func mergeCoincident(samples []domain.PointSample) []domain.PointSample {
	type loc struct{ lon, lat float64 }
	index := make(map[loc]int, len(samples))
	counts := make([]int, 0, len(samples))
	out := make([]domain.PointSample, 0, len(samples))

	for _, s := range samples {
		k := loc{s.Longitude, s.Latitude}
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			cp := s
			cp.Covariates = append([]float64(nil), s.Covariates...)
			out = append(out, cp)
			counts = append(counts, 1)
			continue
		}
		counts[i]++
		out[i].Value += s.Value
		for d := range out[i].Covariates {
			out[i].Covariates[d] += s.Covariates[d]
		}
	}
	for i := range out {
		if counts[i] == 1 {
			continue
		}
		c := float64(counts[i])
		out[i].Value /= c
		for d := range out[i].Covariates {
			out[i].Covariates[d] /= c
		}
	}
	return out
}
