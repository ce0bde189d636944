package operations

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "maizemap/internal/errors"
	"maizemap/internal/grid"
	"maizemap/internal/infrastructure"
	"maizemap/internal/interpolate"
	"maizemap/internal/relprice"
	"maizemap/internal/seasonal"
	"maizemap/internal/series"
	"maizemap/internal/timeaxis"
)

// PipelineSteps returns the full set of pipeline steps in registration order
func PipelineSteps(logger *slog.Logger, metrics *infrastructure.PipelineMetrics) []Step {
	if logger == nil {
		logger = slog.Default()
	}
	return []Step{
		NewTimeAxisStage(logger),
		NewReshapeStage(logger),
		NewSeasonalStage(logger, metrics),
		NewRelativeIndexStage(logger),
		NewSamplesStage(logger),
		NewGridStage(logger),
		NewInterpolateStage(logger, metrics),
		NewValidateStage(logger),
	}
}

func stepLogger(logger *slog.Logger, id string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return infrastructure.WithComponent(logger, id)
}

// TimeAxisStage builds the time axis from the observation months
type TimeAxisStage struct {
	BaseStage
	logger *slog.Logger
}

// NewTimeAxisStage creates the time axis step
func NewTimeAxisStage(logger *slog.Logger) *TimeAxisStage {
	return &TimeAxisStage{
		BaseStage: NewBaseStage(StepIDTimeAxis, StepNameTimeAxis, nil),
		logger:    stepLogger(logger, StepIDTimeAxis),
	}
}

// Validate requires at least one observation
func (s *TimeAxisStage) Validate(state *OperationState) error {
	if len(state.Observations) == 0 {
		return apperrors.Validation("no observations to index")
	}
	return nil
}

// Execute builds the axis
func (s *TimeAxisStage) Execute(ctx context.Context, state *OperationState) error {
	axis := timeaxis.FromObservations(state.Observations)
	state.Artifacts.Axis = axis

	st := state.GetStage(s.ID())
	st.SetMetadata("months", axis.Len())
	st.SetMetadata("contiguous", axis.Contiguous())
	if first, ok := axis.First(); ok {
		last, _ := axis.Last()
		st.SetMetadata("first", first.String())
		st.SetMetadata("last", last.String())
	}
	return nil
}

// ReshapeStage pivots the observations into the market by month matrix
type ReshapeStage struct {
	BaseStage
	logger *slog.Logger
}

// NewReshapeStage creates the reshape step
func NewReshapeStage(logger *slog.Logger) *ReshapeStage {
	return &ReshapeStage{
		BaseStage: NewBaseStage(StepIDReshape, StepNameReshape, []string{StepIDTimeAxis}),
		logger:    stepLogger(logger, StepIDReshape),
	}
}

// Execute reshapes the observations
func (s *ReshapeStage) Execute(ctx context.Context, state *OperationState) error {
	m, err := series.Reshape(state.Observations, state.Artifacts.Axis)
	if err != nil {
		return err
	}
	state.Artifacts.Matrix = m

	present := 0
	for r := 0; r < m.Rows(); r++ {
		present += m.PresentCount(r)
	}
	st := state.GetStage(s.ID())
	st.SetMetadata("markets", m.Rows())
	st.SetMetadata("present_cells", present)
	return nil
}

// SeasonalStage decomposes every market series and averages the national
// seasonal profile
type SeasonalStage struct {
	BaseStage
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics
}

// NewSeasonalStage creates the seasonal decomposition step
func NewSeasonalStage(logger *slog.Logger, metrics *infrastructure.PipelineMetrics) *SeasonalStage {
	return &SeasonalStage{
		BaseStage: NewBaseStage(StepIDSeasonal, StepNameSeasonal, []string{StepIDReshape}),
		logger:    stepLogger(logger, StepIDSeasonal),
		metrics:   metrics,
	}
}

// Execute runs the per-market decomposition. Markets with insufficient data
// are excluded; any other market failure aborts the step.
func (s *SeasonalStage) Execute(ctx context.Context, state *OperationState) error {
	d := seasonal.NewDecomposer(state.Settings.SeasonalMethod, s.logger)
	results, err := d.DecomposeAll(ctx, state.Artifacts.Matrix, state.Settings.Workers)
	if err != nil {
		return err
	}

	defined, insufficient := 0, 0
	for _, r := range results {
		switch {
		case r.Defined():
			defined++
		case apperrors.IsFatal(r.Err):
			return r.Err
		default:
			insufficient++
		}
	}
	state.Artifacts.Seasonal = results
	infrastructure.RecordDecomposition(ctx, s.metrics, defined, insufficient)

	national, n, err := seasonal.NationalProfile(results)
	if err != nil {
		s.logger.WarnContext(ctx, "no market supports a national seasonal profile",
			slog.Int("markets", len(results)))
	} else {
		state.Artifacts.National = national
		state.Artifacts.NationalMarkets = n
	}

	st := state.GetStage(s.ID())
	st.SetMetadata("decomposed", defined)
	st.SetMetadata("insufficient", insufficient)
	return nil
}

// RelativeIndexStage computes each market's price relative to the anchor
type RelativeIndexStage struct {
	BaseStage
	logger *slog.Logger
}

// NewRelativeIndexStage creates the relative index step
func NewRelativeIndexStage(logger *slog.Logger) *RelativeIndexStage {
	return &RelativeIndexStage{
		BaseStage: NewBaseStage(StepIDRelativeIndex, StepNameRelativeIndex, []string{StepIDReshape}),
		logger:    stepLogger(logger, StepIDRelativeIndex),
	}
}

// Validate requires an anchor market
func (s *RelativeIndexStage) Validate(state *OperationState) error {
	if state.Settings.Anchor == "" {
		return apperrors.AnchorNotFound("")
	}
	return nil
}

// Execute computes the indices
func (s *RelativeIndexStage) Execute(ctx context.Context, state *OperationState) error {
	ix := relprice.NewIndexer(state.Settings.IndexMode, s.logger)
	indices, err := ix.Compute(ctx, state.Artifacts.Matrix, state.Settings.Anchor)
	if err != nil {
		return err
	}
	state.Artifacts.Indices = indices

	defined := 0
	for _, idx := range indices {
		if idx.Value.Valid {
			defined++
		}
	}
	st := state.GetStage(s.ID())
	st.SetMetadata("indexed", defined)
	st.SetMetadata("unindexed", len(indices)-defined)
	return nil
}

// SamplesStage turns located indices into point samples and attaches
// covariate values
type SamplesStage struct {
	BaseStage
	logger *slog.Logger
}

// NewSamplesStage creates the point sample step
func NewSamplesStage(logger *slog.Logger) *SamplesStage {
	return &SamplesStage{
		BaseStage: NewBaseStage(StepIDSamples, StepNameSamples, []string{StepIDRelativeIndex, StepIDSeasonal}),
		logger:    stepLogger(logger, StepIDSamples),
	}
}

// Execute builds the samples
func (s *SamplesStage) Execute(ctx context.Context, state *OperationState) error {
	a := state.Artifacts
	samples := relprice.Samples(a.Indices, seasonal.Profiles(a.Seasonal), relprice.SampleOptions{
		RequireSeasonal: state.Settings.RequireSeasonal,
	})

	samples, dropped := interpolate.AttachCovariates(samples, state.Covariates)
	if dropped > 0 {
		s.logger.WarnContext(ctx, "samples dropped for undefined covariates",
			slog.Int("dropped", dropped),
			slog.Int("kept", len(samples)))
	}
	a.Samples = samples
	a.DroppedSamples = dropped

	st := state.GetStage(s.ID())
	st.SetMetadata("samples", len(samples))
	st.SetMetadata("dropped", dropped)
	return nil
}

// GridStage builds the masked grid over the country boundary
type GridStage struct {
	BaseStage
	logger *slog.Logger
}

// NewGridStage creates the grid step
func NewGridStage(logger *slog.Logger) *GridStage {
	return &GridStage{
		BaseStage: NewBaseStage(StepIDGrid, StepNameGrid, nil),
		logger:    stepLogger(logger, StepIDGrid),
	}
}

// Validate requires a boundary
func (s *GridStage) Validate(state *OperationState) error {
	if state.Boundary == nil {
		return apperrors.Validation("no country boundary supplied")
	}
	return nil
}

// Execute builds the grid
func (s *GridStage) Execute(ctx context.Context, state *OperationState) error {
	g, err := grid.Build(state.Boundary, state.Settings.Resolution)
	if err != nil {
		return err
	}
	state.Artifacts.Grid = g

	st := state.GetStage(s.ID())
	st.SetMetadata("rows", g.Rows())
	st.SetMetadata("cols", g.Cols())
	st.SetMetadata("inside", g.InsideCount())
	return nil
}

// InterpolateStage fits every configured estimator and evaluates it over
// the grid. Estimators run concurrently and share the immutable grid.
type InterpolateStage struct {
	BaseStage
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics
}

// NewInterpolateStage creates the interpolation step
func NewInterpolateStage(logger *slog.Logger, metrics *infrastructure.PipelineMetrics) *InterpolateStage {
	return &InterpolateStage{
		BaseStage: NewBaseStage(StepIDInterpolate, StepNameInterpolate, []string{StepIDSamples, StepIDGrid}),
		logger:    stepLogger(logger, StepIDInterpolate),
		metrics:   metrics,
	}
}

// Validate requires at least one method
func (s *InterpolateStage) Validate(state *OperationState) error {
	if len(state.Settings.Methods) == 0 {
		return apperrors.Validation("no interpolation method configured")
	}
	return nil
}

// Execute produces one surface per method. The first failing estimator
// aborts the step.
func (s *InterpolateStage) Execute(ctx context.Context, state *OperationState) error {
	a := state.Artifacts
	methods := state.Settings.Methods
	surfaces := make([]Surface, len(methods))

	eg, ectx := errgroup.WithContext(ctx)
	for i, method := range methods {
		i, method := i, method
		eg.Go(func() error {
			start := time.Now()
			est, err := interpolate.Fit(ectx, a.Samples, state.Settings.Interpolation.WithMethod(method))
			if err != nil {
				return err
			}
			raster, err := interpolate.Interpolate(ectx, est, a.Grid, state.Covariates, state.Settings.Workers)
			if err != nil {
				return err
			}

			stats := raster.Stats()
			surfaces[i] = Surface{Method: method, Raster: raster, Stats: stats, Samples: len(a.Samples)}
			infrastructure.RecordSurfaceMetrics(ectx, s.metrics, string(method), len(a.Samples), stats.Count, time.Since(start))

			s.logger.InfoContext(ectx, "surface interpolated",
				slog.String("method", string(method)),
				slog.Int("cells", stats.Count),
				slog.Float64("min", stats.Min),
				slog.Float64("max", stats.Max),
				slog.Duration("duration", time.Since(start)))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	a.Surfaces = surfaces
	state.GetStage(s.ID()).SetMetadata("surfaces", len(surfaces))
	return nil
}

// ValidateStage scores every estimator by leave-one-out cross-validation
type ValidateStage struct {
	BaseStage
	logger *slog.Logger
}

// NewValidateStage creates the cross-validation step
func NewValidateStage(logger *slog.Logger) *ValidateStage {
	return &ValidateStage{
		BaseStage: NewBaseStage(StepIDValidate, StepNameValidate, []string{StepIDSamples}),
		logger:    stepLogger(logger, StepIDValidate),
	}
}

// Enabled reports whether cross-validation was requested
func (s *ValidateStage) Enabled(state *OperationState) (bool, string) {
	if !state.Settings.CrossValidate {
		return false, "cross-validation not requested"
	}
	return true, ""
}

// Execute cross-validates each method concurrently. A method whose folds
// cannot be fitted is reported and left out; other errors abort the step.
func (s *ValidateStage) Execute(ctx context.Context, state *OperationState) error {
	methods := state.Settings.Methods
	scores := make([]*interpolate.Validation, len(methods))

	eg, ectx := errgroup.WithContext(ctx)
	for i, method := range methods {
		i, method := i, method
		eg.Go(func() error {
			v, err := interpolate.CrossValidate(ectx, state.Artifacts.Samples, state.Settings.Interpolation.WithMethod(method))
			if apperrors.CodeOf(err) == apperrors.CodeUnderdeterminedFit {
				s.logger.WarnContext(ectx, "cross-validation skipped for method",
					slog.String("method", string(method)),
					slog.String("error", err.Error()))
				return nil
			}
			if err != nil {
				return err
			}
			scores[i] = &v
			s.logger.InfoContext(ectx, "estimator cross-validated",
				slog.String("method", string(method)),
				slog.Float64("rmse", v.RMSE),
				slog.Float64("mae", v.MAE))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	var out []interpolate.Validation
	for _, v := range scores {
		if v != nil {
			out = append(out, *v)
		}
	}
	state.Artifacts.Validation = out
	state.GetStage(s.ID()).SetMetadata("validated", len(out))
	return nil
}
