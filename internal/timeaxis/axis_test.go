package timeaxis

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "maizemap/internal/errors"
	"maizemap/pkg/contracts/domain"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Month
	}{
		{"lowercase", "march", time.March},
		{"mixed case", "SePtEmBeR", time.September},
		{"padded", "  January ", time.January},
		{"abbreviation", "Dec", time.December},
		{"survey abbreviation", "sept", time.September},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMonth(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("invalid", func(t *testing.T) {
		for _, input := range []string{"", "marchh", "13", "Mär"} {
			_, err := ParseMonth(input)
			require.Error(t, err, input)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidMonth), input)
		}
	})
}

func TestKeyOrdering(t *testing.T) {
	dec := Key(2015, time.December)
	jan := Key(2016, time.January)

	assert.Equal(t, dec+1, jan)
	assert.Equal(t, 2016, jan.Year())
	assert.Equal(t, time.January, jan.Month())
	assert.Equal(t, "2015-12", dec.String())

	k, err := ParseKey(2016, "March")
	require.NoError(t, err)
	assert.Equal(t, Key(2016, time.March), k)
}

func TestBuild(t *testing.T) {
	keys := []domain.TimeKey{
		Key(2016, time.March),
		Key(2015, time.November),
		Key(2016, time.March),
		Key(2016, time.January),
	}
	axis := Build(keys)

	require.Equal(t, 3, axis.Len())
	assert.Equal(t, []domain.TimeKey{Key(2015, time.November), Key(2016, time.January), Key(2016, time.March)}, axis.Keys())

	i, ok := axis.Index(Key(2016, time.January))
	require.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = axis.Index(Key(2016, time.February))
	assert.False(t, ok)
	assert.False(t, axis.Contiguous())

	first, ok := axis.First()
	require.True(t, ok)
	assert.Equal(t, Key(2015, time.November), first)
}

func TestFromObservations(t *testing.T) {
	obs := []domain.Observation{
		{MarketID: "A", Time: Key(2016, time.February), Price: domain.Some(10)},
		{MarketID: "B", Time: Key(2016, time.January), Price: domain.None()},
	}
	axis := FromObservations(obs)

	assert.Equal(t, 2, axis.Len())
	assert.True(t, axis.Contiguous())

	empty := Build(nil)
	_, ok := empty.Last()
	assert.False(t, ok)
	assert.True(t, empty.Contiguous())
}
