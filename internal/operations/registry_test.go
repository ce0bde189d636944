package operations

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maizemap/internal/config"
	"maizemap/internal/interpolate"
	"maizemap/internal/relprice"
	"maizemap/internal/seasonal"
)

type fakeStep struct {
	BaseStage
	run func(ctx context.Context, state *OperationState) error
}

func newFakeStep(id string, deps ...string) *fakeStep {
	return &fakeStep{BaseStage: NewBaseStage(id, "fake "+id, deps)}
}

func (f *fakeStep) Execute(ctx context.Context, state *OperationState) error {
	if f.run == nil {
		return nil
	}
	return f.run(ctx, state)
}

func ids(steps []Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.ID()
	}
	return out
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newFakeStep("a")))

	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(newFakeStep("")))
	assert.Error(t, r.Register(newFakeStep("a")))

	assert.True(t, r.Has("a"))
	assert.False(t, r.Has("b"))
	assert.Equal(t, 1, r.Count())

	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "fake a", got.Name())
	_, err = r.Get("b")
	assert.Error(t, err)
}

func TestRegistryDependencyOrder(t *testing.T) {
	t.Run("pipeline steps", func(t *testing.T) {
		r := NewRegistry()
		for _, s := range PipelineSteps(nil, nil) {
			require.NoError(t, r.Register(s))
		}
		order, err := r.GetDependencyOrder()
		require.NoError(t, err)
		assert.Equal(t, []string{
			StepIDTimeAxis, StepIDGrid, StepIDReshape, StepIDSeasonal,
			StepIDRelativeIndex, StepIDSamples, StepIDInterpolate, StepIDValidate,
		}, ids(order))

		assert.ElementsMatch(t, []string{StepIDSeasonal, StepIDRelativeIndex}, ids(r.GetDependents(StepIDReshape)))
	})

	t.Run("registration order breaks ties", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(newFakeStep("c", "a")))
		require.NoError(t, r.Register(newFakeStep("b", "a")))
		require.NoError(t, r.Register(newFakeStep("a")))
		order, err := r.GetDependencyOrder()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c", "b"}, ids(order))
	})

	t.Run("missing dependency", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(newFakeStep("a", "ghost")))
		_, err := r.GetDependencyOrder()
		assert.ErrorContains(t, err, "non-existent")
	})

	t.Run("cycle", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(newFakeStep("a", "b")))
		require.NoError(t, r.Register(newFakeStep("b", "a")))
		_, err := r.GetDependencyOrder()
		assert.ErrorContains(t, err, "cycle")
	})
}

func TestStepState(t *testing.T) {
	s := NewStepState("seasonal", "Seasonal Decomposition")
	assert.Equal(t, StepStatusPending, s.GetStatus())
	assert.Zero(t, s.Duration())

	s.Start()
	assert.Equal(t, StepStatusActive, s.GetStatus())
	time.Sleep(time.Millisecond)
	s.Complete()
	assert.Equal(t, StepStatusCompleted, s.GetStatus())
	assert.Positive(t, s.Duration())

	f := NewStepState("grid", "Grid")
	f.Start()
	f.Fail(errors.New("inverted extent"))
	assert.Equal(t, StepStatusFailed, f.GetStatus())
	assert.Equal(t, "inverted extent", f.Message)

	k := NewStepState("validate", "Validate")
	k.Skip("not requested")
	assert.Equal(t, StepStatusSkipped, k.GetStatus())
	assert.Equal(t, "not requested", k.Message)

	s.SetMetadata("markets", 5)
	sum := s.Summary()
	assert.Equal(t, "seasonal", sum.ID)
	assert.Equal(t, StepStatusCompleted, sum.Status)
	assert.Equal(t, s.Duration(), sum.Duration)
	sum.Metadata["markets"] = 6
	assert.Equal(t, 5, s.Summary().Metadata["markets"], "summary metadata is a copy")
}

func TestManagerStopsAtFirstError(t *testing.T) {
	var ran []string
	record := func(id string, err error) *fakeStep {
		s := newFakeStep(id)
		s.run = func(ctx context.Context, state *OperationState) error {
			ran = append(ran, id)
			return err
		}
		return s
	}

	var logs bytes.Buffer
	m := NewManager(nil, nil, nil, slog.New(slog.NewJSONHandler(&logs, nil)))
	require.NoError(t, m.RegisterStage(record("one", nil)))
	require.NoError(t, m.RegisterStage(record("two", errors.New("boom"))))
	require.NoError(t, m.RegisterStage(record("three", nil)))

	resp, err := m.Execute(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, []string{"one", "two"}, ran)
	assert.Equal(t, StepStatusSkipped, resp.Steps["three"].GetStatus())
	assert.Contains(t, resp.Error, "boom")

	sums := resp.Summaries()
	require.Len(t, sums, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{sums[0].ID, sums[1].ID, sums[2].ID})
	assert.Equal(t, StepStatusFailed, sums[1].Status)

	assert.Contains(t, logs.String(), `"level":"WARN","msg":"operation_complete"`)
	assert.Contains(t, logs.String(), `"failed_steps":["two"]`)
	assert.Contains(t, logs.String(), `"skipped_steps":["three"]`)
}

func TestStageTimeout(t *testing.T) {
	cfg := NewConfigBuilder().WithStageTimeout("slow", 10*time.Millisecond).Build()
	assert.Equal(t, 10*time.Millisecond, cfg.GetStageTimeout("slow"))
	assert.Equal(t, DefaultStepTimeout, cfg.GetStageTimeout("other"))
	assert.Equal(t, DefaultSeasonalTimeout, cfg.GetStageTimeout(StepIDSeasonal))

	slow := newFakeStep("slow")
	slow.run = func(ctx context.Context, state *OperationState) error {
		<-ctx.Done()
		return ctx.Err()
	}
	m := NewManager(nil, cfg, nil, quietLogger())
	require.NoError(t, m.RegisterStage(slow))

	resp, err := m.Execute(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, OperationStatusCancelled, resp.Status)
}

func TestFromPipelineConfig(t *testing.T) {
	pc := config.Default().Pipeline
	cfg := FromPipelineConfig(pc)
	assert.Equal(t, pc.Timeout, cfg.RunTimeout)
	assert.Equal(t, DefaultSeasonalTimeout, cfg.GetStageTimeout(StepIDSeasonal))
	assert.Empty(t, cfg.Disabled)

	pc.StepTimeout = time.Minute
	pc.DisabledSteps = []string{StepIDValidate}
	cfg = FromPipelineConfig(pc)
	assert.Equal(t, time.Minute, cfg.GetStageTimeout(StepIDSeasonal))
	assert.Equal(t, time.Minute, cfg.GetStageTimeout(StepIDGrid))
	assert.True(t, cfg.Disabled[StepIDValidate])
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.Anchor = "Lilongwe"
	cfg.Pipeline.IndexMode = "difference"
	cfg.Pipeline.Workers = 3
	cfg.Interpolation.Methods = []string{"idw", "TPS", "idw"}
	cfg.Interpolation.Smoothing = 0.1

	s, err := SettingsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "Lilongwe", s.Anchor)
	assert.Equal(t, relprice.Difference, s.IndexMode)
	assert.Equal(t, seasonal.Additive, s.SeasonalMethod)
	assert.Equal(t, []interpolate.Method{interpolate.IDW, interpolate.ThinPlateSpline}, s.Methods)
	assert.Equal(t, 0.1, s.Interpolation.Smoothing)
	assert.Equal(t, 3, s.Interpolation.Workers)
	assert.NoError(t, s.Interpolation.Validate())

	cfg.Interpolation.Methods = []string{"kriging"}
	_, err = SettingsFromConfig(cfg)
	assert.Error(t, err)
}
