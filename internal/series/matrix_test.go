package series

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "maizemap/internal/errors"
	"maizemap/internal/timeaxis"
	"maizemap/pkg/contracts/domain"
)

func obs(market string, lon, lat float64, year int, month time.Month, price domain.NullFloat) domain.Observation {
	return domain.Observation{
		MarketID:  market,
		Longitude: domain.Some(lon),
		Latitude:  domain.Some(lat),
		Time:      timeaxis.Key(year, month),
		Price:     price,
	}
}

func sampleObservations() []domain.Observation {
	return []domain.Observation{
		obs("Lilongwe", 33.78, -13.96, 2016, time.January, domain.Some(120)),
		obs("Lilongwe", 33.78, -13.96, 2016, time.March, domain.Some(140)),
		obs("Mzuzu", 34.01, -11.46, 2016, time.February, domain.Some(95)),
		obs("Mzuzu", 34.01, -11.46, 2016, time.March, domain.None()),
		obs("Nsanje", 35.26, -16.92, 2016, time.January, domain.Some(0)),
	}
}

func TestReshape(t *testing.T) {
	data := sampleObservations()
	axis := timeaxis.FromObservations(data)

	m, err := Reshape(data, axis)
	require.NoError(t, err)

	assert.Equal(t, 3, m.Rows())
	assert.Equal(t, 3, m.Cols())
	assert.Equal(t, "Lilongwe", m.Market(0).MarketID)

	t.Run("unreported cells are absent", func(t *testing.T) {
		_, ok := m.At(0, 1)
		assert.False(t, ok)

		mz := m.FindMarket("Mzuzu")
		require.Len(t, mz, 1)
		_, ok = m.At(mz[0], 2)
		assert.False(t, ok, "absent price must not fill the cell")
	})

	t.Run("zero price is present", func(t *testing.T) {
		r := m.FindMarket("Nsanje")[0]
		v, ok := m.At(r, 0)
		assert.True(t, ok)
		assert.Equal(t, 0.0, v)
	})

	t.Run("row view", func(t *testing.T) {
		s := m.Row(0)
		assert.Equal(t, 3, s.Len())
		assert.Equal(t, 2, s.PresentCount())
		first, last, ok := s.Span()
		require.True(t, ok)
		assert.Equal(t, 0, first)
		assert.Equal(t, 2, last)
	})
}

func TestReshapeRoundTrip(t *testing.T) {
	data := sampleObservations()
	m, err := Reshape(data, timeaxis.FromObservations(data))
	require.NoError(t, err)

	var want []domain.Observation
	for _, o := range data {
		if o.Price.Valid {
			want = append(want, o)
		}
	}
	got := m.Observations()

	SortObservations(want)
	SortObservations(got)
	assert.Equal(t, want, got)
}

func TestReshapeDuplicate(t *testing.T) {
	data := []domain.Observation{
		obs("X", 1, 1, 2016, time.March, domain.Some(100)),
		obs("X", 1, 1, 2016, time.March, domain.Some(110)),
	}

	_, err := Reshape(data, timeaxis.FromObservations(data))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrDuplicateObservation))
}

func TestReshapeDuplicateAbsentIsNotConflict(t *testing.T) {
	data := []domain.Observation{
		obs("X", 1, 1, 2016, time.March, domain.None()),
		obs("X", 1, 1, 2016, time.March, domain.Some(110)),
	}

	m, err := Reshape(data, timeaxis.FromObservations(data))
	require.NoError(t, err)
	v, ok := m.At(0, 0)
	assert.True(t, ok)
	assert.Equal(t, 110.0, v)
}

func TestReshapeValidation(t *testing.T) {
	data := sampleObservations()

	t.Run("nil axis", func(t *testing.T) {
		_, err := Reshape(data, nil)
		assert.True(t, errors.Is(err, apperrors.ErrValidation))
	})

	t.Run("time off axis", func(t *testing.T) {
		axis := timeaxis.Build([]domain.TimeKey{timeaxis.Key(2016, time.January)})
		_, err := Reshape(data, axis)
		assert.True(t, errors.Is(err, apperrors.ErrValidation))
	})

	t.Run("negative price", func(t *testing.T) {
		bad := []domain.Observation{obs("X", 1, 1, 2016, time.May, domain.Some(-1))}
		_, err := Reshape(bad, timeaxis.FromObservations(bad))
		assert.True(t, errors.Is(err, apperrors.ErrValidation))
	})
}

func TestMarketsAtTwoLocations(t *testing.T) {
	data := []domain.Observation{
		obs("X", 1, 1, 2016, time.March, domain.Some(100)),
		obs("X", 2, 1, 2016, time.March, domain.Some(110)),
	}

	m, err := Reshape(data, timeaxis.FromObservations(data))
	require.NoError(t, err)
	assert.Equal(t, 2, m.Rows())
	assert.Len(t, m.FindMarket("X"), 2)
}
