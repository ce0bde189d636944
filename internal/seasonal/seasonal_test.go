package seasonal

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "maizemap/internal/errors"
	"maizemap/internal/series"
	"maizemap/internal/timeaxis"
	"maizemap/pkg/contracts/domain"
)

var additiveCycle = [12]float64{-12, -9, -5, -1, 3, 8, 11, 9, 4, -2, -3, -3}

// synthetic builds n months of trend plus cycle starting January 2015
func synthetic(market string, n int, multiplicative bool) []domain.Observation {
	out := make([]domain.Observation, 0, n)
	start := timeaxis.Key(2015, time.January)
	for i := 0; i < n; i++ {
		k := start.Add(i)
		trend := 100 + 0.5*float64(i)
		s := additiveCycle[int(k.Month())-1]
		price := trend + s
		if multiplicative {
			price = trend * (1 + s/100)
		}
		out = append(out, domain.Observation{
			MarketID:  market,
			Longitude: domain.Some(33.8),
			Latitude:  domain.Some(-13.9),
			Time:      k,
			Price:     domain.Some(price),
		})
	}
	return out
}

func toSeries(t *testing.T, obs []domain.Observation) series.Series {
	t.Helper()
	m, err := series.Reshape(obs, timeaxis.FromObservations(obs))
	require.NoError(t, err)
	require.Equal(t, 1, m.Rows())
	return m.Row(0)
}

func TestDecomposeAdditive(t *testing.T) {
	d := NewDecomposer(Additive, nil)
	p, err := d.Decompose(context.Background(), toSeries(t, synthetic("Lilongwe", 48, false)))
	require.NoError(t, err)

	sum := 0.0
	for m, c := range p.Coefficients {
		sum += c
		assert.InDelta(t, additiveCycle[m], c, 1e-9, "month %d", m+1)
	}
	assert.InDelta(t, 0, sum, 1e-9)
	assert.Equal(t, "Lilongwe", p.Market.MarketID)
}

func TestDecomposeMultiplicative(t *testing.T) {
	d := NewDecomposer(Multiplicative, nil)
	p, err := d.Decompose(context.Background(), toSeries(t, synthetic("Mzuzu", 36, true)))
	require.NoError(t, err)

	mean := 0.0
	for _, c := range p.Coefficients {
		assert.Greater(t, c, 0.0)
		mean += c
	}
	assert.InDelta(t, 1, mean/12, 1e-9)
	// Peak of the cycle is July.
	assert.Greater(t, p.For(time.July), p.For(time.January))
}

func TestDecomposeMultiplicativeRejectsZero(t *testing.T) {
	obs := synthetic("Nsanje", 30, true)
	obs[5].Price = domain.Some(0)

	_, err := NewDecomposer(Multiplicative, nil).Decompose(context.Background(), toSeries(t, obs))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestDecomposeInsufficientData(t *testing.T) {
	tests := []struct {
		name string
		obs  func() []domain.Observation
	}{
		{
			name: "eighteen months",
			obs:  func() []domain.Observation { return synthetic("Karonga", 18, false) },
		},
		{
			name: "long span with few reports",
			obs: func() []domain.Observation {
				all := synthetic("Karonga", 40, false)
				var kept []domain.Observation
				for i, o := range all {
					if i%2 == 0 {
						kept = append(kept, o)
					}
				}
				return kept
			},
		},
		{
			name: "entirely absent",
			obs: func() []domain.Observation {
				all := synthetic("Karonga", 30, false)
				for i := range all {
					all[i].Price = domain.None()
				}
				return all
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecomposer(Additive, nil).Decompose(context.Background(), toSeries(t, tt.obs()))
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInsufficientData))
			assert.False(t, apperrors.IsFatal(err))
		})
	}
}

func TestComponentsFillsGaps(t *testing.T) {
	obs := synthetic("Zomba", 48, false)
	want := map[domain.TimeKey]float64{}
	var kept []domain.Observation
	for i, o := range obs {
		// Drop three interior months. With a single market they leave the axis too.
		if i == 10 || i == 25 || i == 31 {
			want[o.Time] = o.Price.Float64
			continue
		}
		kept = append(kept, o)
	}

	axis := timeaxis.FromObservations(kept)
	require.False(t, axis.Contiguous())
	m, err := series.Reshape(kept, axis)
	require.NoError(t, err)

	dec, err := NewDecomposer(Additive, nil).Components(context.Background(), m.Row(0))
	require.NoError(t, err)

	require.Len(t, dec.Keys, 48, "span is expanded onto a contiguous calendar")
	for i := 1; i < len(dec.Keys); i++ {
		assert.Equal(t, dec.Keys[i-1].Add(1), dec.Keys[i])
	}

	imputed := 0
	for i, k := range dec.Keys {
		if v, ok := want[k]; ok {
			assert.True(t, dec.Imputed[i])
			assert.InDelta(t, v, dec.Filled[i], 5, "gap at %s", k)
			imputed++
			continue
		}
		assert.False(t, dec.Imputed[i])
		assert.Equal(t, obs[i].Price.Float64, dec.Filled[i], "reported cells are never changed")
	}
	assert.Equal(t, 3, imputed)

	sum := 0.0
	for _, c := range dec.Figure {
		sum += c
	}
	assert.InDelta(t, 0, sum, 1e-9)
}

func TestStructuralImputer(t *testing.T) {
	t.Run("no gaps returns a copy", func(t *testing.T) {
		values := []float64{1, 2, 3}
		out, err := NewStructuralImputer().Fill(values, []bool{true, true, true})
		require.NoError(t, err)
		assert.Equal(t, values, out)
		out[0] = 9
		assert.Equal(t, 1.0, values[0])
	})

	t.Run("flat series", func(t *testing.T) {
		values := make([]float64, 30)
		present := make([]bool, 30)
		for i := range values {
			values[i] = 50
			present[i] = i != 7
		}
		values[7] = 0
		out, err := NewStructuralImputer().Fill(values, present)
		require.NoError(t, err)
		assert.Equal(t, 50.0, out[7])
	})

	t.Run("too few observations", func(t *testing.T) {
		_, err := NewStructuralImputer().Fill(make([]float64, 10), []bool{true, false, true, true, true, true, true, true, true, true})
		assert.Error(t, err)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := NewStructuralImputer().Fill([]float64{1}, []bool{true, false})
		assert.Error(t, err)
	})
}

func TestMovingAverage(t *testing.T) {
	y := make([]float64, 30)
	for i := range y {
		y[i] = float64(i)
	}
	ma := movingAverage(y, 12)
	for i := range ma {
		if i < 6 || i >= 24 {
			assert.True(t, math.IsNaN(ma[i]), "index %d", i)
			continue
		}
		assert.InDelta(t, float64(i), ma[i], 1e-12, "a centred MA reproduces a line")
	}

	odd := movingAverage([]float64{1, 2, 6, 2, 1}, 3)
	assert.True(t, math.IsNaN(odd[0]))
	assert.InDelta(t, 3, odd[1], 1e-12)
	assert.InDelta(t, 10.0/3, odd[2], 1e-12)
	assert.InDelta(t, 3, odd[3], 1e-12)
	assert.True(t, math.IsNaN(odd[4]))
}

func TestDecomposeAllAndNationalProfile(t *testing.T) {
	var obs []domain.Observation
	obs = append(obs, synthetic("Lilongwe", 36, false)...)
	short := synthetic("Karonga", 18, false)
	for i := range short {
		short[i].Longitude = domain.Some(33.9)
		short[i].Latitude = domain.Some(-9.9)
	}
	obs = append(obs, short...)
	third := synthetic("Mangochi", 36, false)
	for i := range third {
		third[i].Longitude = domain.Some(35.2)
		third[i].Latitude = domain.Some(-14.5)
		third[i].Price = domain.Some(third[i].Price.Float64 + 20)
	}
	obs = append(obs, third...)

	m, err := series.Reshape(obs, timeaxis.FromObservations(obs))
	require.NoError(t, err)

	results, err := NewDecomposer(Additive, nil).DecomposeAll(context.Background(), m, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Defined())
	assert.False(t, results[1].Defined())
	assert.True(t, errors.Is(results[1].Err, apperrors.ErrInsufficientData))
	assert.Equal(t, "Karonga", results[1].Market.MarketID)
	assert.True(t, results[2].Defined())

	national, n, err := NationalProfile(results)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	for m := range national {
		assert.InDelta(t, additiveCycle[m], national[m], 1e-9)
	}
	assert.Len(t, Profiles(results), 2)
}

func TestNationalProfileNoneDefined(t *testing.T) {
	results := []Result{{Err: apperrors.InsufficientData("a", 3, 24)}}
	_, n, err := NationalProfile(results)
	require.Error(t, err)
	assert.Zero(t, n)
	assert.True(t, errors.Is(err, apperrors.ErrInsufficientData))
}

func TestDecomposeAllCancelled(t *testing.T) {
	obs := synthetic("Lilongwe", 36, false)
	m, err := series.Reshape(obs, timeaxis.FromObservations(obs))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewDecomposer(Additive, nil).DecomposeAll(ctx, m, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrCancelled))
}
