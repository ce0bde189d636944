package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want *PipelineError
	}{
		{"invalid month", InvalidMonth("Smarch"), ErrInvalidMonth},
		{"duplicate", DuplicateObservation("Lilongwe", "2015-03"), ErrDuplicateObservation},
		{"insufficient", InsufficientData("Karonga", 18, 24), ErrInsufficientData},
		{"anchor", AnchorNotFound("Nowhere"), ErrAnchorNotFound},
		{"underdetermined", UnderdeterminedFit("tps", "2 samples"), ErrUnderdeterminedFit},
		{"validation", Validation("bad %s", "thing"), ErrValidation},
		{"wrapped", fmt.Errorf("reading: %w", InvalidMonth("x")), ErrInvalidMonth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, stderrors.Is(tt.err, tt.want))
			assert.False(t, stderrors.Is(tt.err, ErrCancelled))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := AnchorNotFound("Nowhere")
	assert.Equal(t, `[ANCHOR_NOT_FOUND] anchor market "Nowhere" is not in the price matrix`, err.Error())

	wrapped := WrapStep(err, "relative_index")
	assert.Equal(t, `[ANCHOR_NOT_FOUND] relative_index: anchor market "Nowhere" is not in the price matrix`, wrapped.Error())

	var nilErr *PipelineError
	assert.Equal(t, "unknown pipeline error", nilErr.Error())
	assert.Nil(t, nilErr.Unwrap())
}

func TestWithCopies(t *testing.T) {
	base := Validation("row rejected")
	a := base.With("line", 3)
	b := a.With("source", "prices.csv")

	assert.Nil(t, base.Context)
	assert.Equal(t, map[string]interface{}{"line": 3}, a.Context)
	assert.Equal(t, map[string]interface{}{"line": 3, "source": "prices.csv"}, b.Context)

	assert.Equal(t, "Smarch", InvalidMonth("Smarch").Context["month"])
	assert.Equal(t, 18, InsufficientData("Karonga", 18, 24).Context["present"])
}

func TestWrapStep(t *testing.T) {
	assert.NoError(t, WrapStep(nil, "grid"))

	t.Run("pipeline error gains step", func(t *testing.T) {
		orig := Validation("grid requires a boundary")
		err := WrapStep(orig, "grid")
		var pErr *PipelineError
		require.True(t, stderrors.As(err, &pErr))
		assert.Equal(t, "grid", pErr.Step)
		assert.Empty(t, orig.Step, "original is not modified")

		// an existing step is kept
		again := WrapStep(err, "other")
		require.True(t, stderrors.As(again, &pErr))
		assert.Equal(t, "grid", pErr.Step)
	})

	t.Run("foreign error becomes validation", func(t *testing.T) {
		cause := stderrors.New("disk full")
		err := WrapStep(cause, "samples")
		assert.True(t, stderrors.Is(err, ErrValidation))
		assert.True(t, stderrors.Is(err, cause))
	})

	t.Run("context errors become cancellations", func(t *testing.T) {
		for _, cause := range []error{context.Canceled, context.DeadlineExceeded, fmt.Errorf("fit: %w", context.Canceled)} {
			err := WrapStep(cause, "interpolate")
			assert.Equal(t, CodeCancelled, CodeOf(err))
			assert.True(t, stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded))
		}
	})
}

func TestCodeOfAndIsFatal(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(stderrors.New("plain")))
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, CodeUnderdeterminedFit, CodeOf(UnderdeterminedFit("rf", "1 sample")))

	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(InsufficientData("Karonga", 2, 24)))
	assert.False(t, IsFatal(fmt.Errorf("market: %w", InsufficientData("Karonga", 2, 24))))
	assert.True(t, IsFatal(AnchorNotFound("x")))
	assert.True(t, IsFatal(stderrors.New("plain")))
}
