package seasonal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// Imputer fills internal gaps of a trimmed monthly series. Only cells with
// present[i] == false may change.
type Imputer interface {
	Fill(values []float64, present []bool) ([]float64, error)
}

// StructuralImputer fills gaps with the smoothed signal of a basic
// structural model: local linear trend plus a dummy seasonal of the given
// period. Variances are estimated by maximum likelihood.
type StructuralImputer struct {
	Period int
	// MaxEvaluations caps likelihood evaluations of the variance search
	MaxEvaluations int
}

// NewStructuralImputer returns an imputer for monthly data
func NewStructuralImputer() *StructuralImputer {
	return &StructuralImputer{Period: 12, MaxEvaluations: 400}
}

// diffuseScale multiplies the data variance to build the initial state
// covariance.
const diffuseScale = 1e6

// Fill implements Imputer
func (s *StructuralImputer) Fill(values []float64, present []bool) ([]float64, error) {
	if len(values) != len(present) {
		return nil, fmt.Errorf("values and mask differ in length: %d != %d", len(values), len(present))
	}

	out := make([]float64, len(values))
	copy(out, values)

	var observed []float64
	gaps := 0
	for i, p := range present {
		if p {
			observed = append(observed, values[i])
		} else {
			gaps++
		}
	}
	if gaps == 0 {
		return out, nil
	}
	if len(observed) < s.stateDim()+1 {
		return nil, fmt.Errorf("need at least %d observations to fill gaps, have %d", s.stateDim()+1, len(observed))
	}

	scale := stat.Variance(observed, nil)
	if scale <= 0 || math.IsNaN(scale) {
		// Flat series: the gap value is the constant itself.
		for i, p := range present {
			if !p {
				out[i] = observed[0]
			}
		}
		return out, nil
	}

	model := s.newModel(observed[0], scale)
	theta := s.estimate(model, values, present, scale)
	model.setVariances(theta, scale)

	smoothed := model.smooth(values, present)
	for i, p := range present {
		if !p {
			out[i] = smoothed[i]
		}
	}
	return out, nil
}

func (s *StructuralImputer) stateDim() int {
	return s.Period + 1
}

// estimate searches log-variance ratios with Nelder-Mead. The starting point
// is returned if the search fails to improve on it.
func (s *StructuralImputer) estimate(model *bsm, values []float64, present []bool, scale float64) []float64 {
	init := []float64{math.Log(0.1), math.Log(0.001), math.Log(0.01), math.Log(0.5)}

	nll := func(x []float64) float64 {
		model.setVariances(x, scale)
		ll := model.logLikelihood(values, present)
		if math.IsNaN(ll) || math.IsInf(ll, 0) {
			return math.MaxFloat64
		}
		return -ll
	}

	start := nll(init)
	settings := &optimize.Settings{FuncEvaluations: s.MaxEvaluations}
	// Hitting the evaluation cap is reported as an error but the result still
	// carries the best point found.
	result, _ := optimize.Minimize(optimize.Problem{Func: nll}, init, settings, &optimize.NelderMead{})
	if result == nil || math.IsNaN(result.F) || result.F >= start {
		return init
	}
	return result.X
}

// bsm is the basic structural model in state-space form.
// State: level, slope, seasonal dummies gamma_1..gamma_{period-1}.
type bsm struct {
	dim int
	T   *mat.Dense
	Z   *mat.VecDense
	Q   *mat.Dense
	H   float64
	a0  *mat.VecDense
	P0  *mat.Dense
}

func (s *StructuralImputer) newModel(firstObs, scale float64) *bsm {
	m := s.stateDim()

	T := mat.NewDense(m, m, nil)
	T.Set(0, 0, 1)
	T.Set(0, 1, 1)
	T.Set(1, 1, 1)
	for j := 2; j < m; j++ {
		T.Set(2, j, -1)
	}
	for j := 3; j < m; j++ {
		T.Set(j, j-1, 1)
	}

	Z := mat.NewVecDense(m, nil)
	Z.SetVec(0, 1)
	Z.SetVec(2, 1)

	a0 := mat.NewVecDense(m, nil)
	a0.SetVec(0, firstObs)

	P0 := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		P0.Set(i, i, diffuseScale*scale)
	}

	return &bsm{dim: m, T: T, Z: Z, Q: mat.NewDense(m, m, nil), a0: a0, P0: P0}
}

// setVariances maps log-variance ratios onto the disturbance covariances.
// Ratios are clamped to keep the filter numerically sane.
func (b *bsm) setVariances(theta []float64, scale float64) {
	v := func(x float64) float64 {
		return math.Exp(math.Max(-25, math.Min(5, x))) * scale
	}
	b.Q.Zero()
	b.Q.Set(0, 0, v(theta[0]))
	b.Q.Set(1, 1, v(theta[1]))
	b.Q.Set(2, 2, v(theta[2]))
	b.H = v(theta[3])
}

// filterStep holds what the backward pass needs from the forward pass
type filterStep struct {
	a       *mat.VecDense // predicted state a_t
	P       *mat.Dense    // predicted covariance P_t
	v, F    float64
	L       *mat.Dense
	present bool
}

// filter runs the Kalman filter in Durbin-Koopman form. Missing observations
// skip the update. The log-likelihood skips the first dim observations, which
// carry the diffuse initialisation.
func (b *bsm) filter(values []float64, present []bool) ([]filterStep, float64) {
	m := b.dim
	steps := make([]filterStep, len(values))

	a := mat.VecDenseCopyOf(b.a0)
	P := mat.DenseCopyOf(b.P0)
	ll := 0.0
	seen := 0

	PZ := mat.NewVecDense(m, nil)
	K := mat.NewVecDense(m, nil)
	tmp := mat.NewDense(m, m, nil)

	for t := range values {
		st := filterStep{a: mat.VecDenseCopyOf(a), P: mat.DenseCopyOf(P), present: present[t]}

		nextA := mat.NewVecDense(m, nil)
		nextP := mat.NewDense(m, m, nil)

		if present[t] {
			st.v = values[t] - mat.Dot(b.Z, a)
			PZ.MulVec(P, b.Z)
			st.F = mat.Dot(b.Z, PZ) + b.H

			K.MulVec(b.T, PZ)
			K.ScaleVec(1/st.F, K)

			L := mat.NewDense(m, m, nil)
			L.Outer(1, K, b.Z)
			L.Sub(b.T, L)
			st.L = L

			nextA.MulVec(b.T, a)
			nextA.AddScaledVec(nextA, st.v, K)

			tmp.Mul(b.T, P)
			nextP.Mul(tmp, L.T())
			nextP.Add(nextP, b.Q)

			seen++
			if seen > m {
				ll += -0.5 * (math.Log(2*math.Pi) + math.Log(st.F) + st.v*st.v/st.F)
			}
		} else {
			st.L = b.T
			nextA.MulVec(b.T, a)
			tmp.Mul(b.T, P)
			nextP.Mul(tmp, b.T.T())
			nextP.Add(nextP, b.Q)
		}

		symmetrize(nextP)
		steps[t] = st
		a, P = nextA, nextP
	}

	return steps, ll
}

func (b *bsm) logLikelihood(values []float64, present []bool) float64 {
	_, ll := b.filter(values, present)
	return ll
}

// smooth returns the smoothed signal Z*alpha_hat for every time point using
// the backward state-smoothing recursion, which needs no matrix inversion.
func (b *bsm) smooth(values []float64, present []bool) []float64 {
	steps, _ := b.filter(values, present)
	m := b.dim
	out := make([]float64, len(values))

	r := mat.NewVecDense(m, nil)
	next := mat.NewVecDense(m, nil)
	alpha := mat.NewVecDense(m, nil)

	for t := len(steps) - 1; t >= 0; t-- {
		st := steps[t]
		next.MulVec(st.L.T(), r)
		if st.present {
			next.AddScaledVec(next, st.v/st.F, b.Z)
		}
		r.CopyVec(next)

		alpha.MulVec(st.P, r)
		alpha.AddVec(alpha, st.a)
		out[t] = mat.Dot(b.Z, alpha)
	}
	return out
}

func symmetrize(P *mat.Dense) {
	n, _ := P.Dims()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := 0.5 * (P.At(i, j) + P.At(j, i))
			P.Set(i, j, v)
			P.Set(j, i, v)
		}
	}
}
