package operations

import (
	"fmt"
	"sort"
	"time"

	"maizemap/internal/config"
	"maizemap/internal/grid"
	"maizemap/internal/interpolate"
	"maizemap/internal/relprice"
	"maizemap/internal/seasonal"
	"maizemap/pkg/contracts/domain"
)

// Step identifiers
const (
	StepIDTimeAxis      = "time_axis"
	StepIDReshape       = "reshape"
	StepIDSeasonal      = "seasonal"
	StepIDRelativeIndex = "relative_index"
	StepIDSamples       = "samples"
	StepIDGrid          = "grid"
	StepIDInterpolate   = "interpolate"
	StepIDValidate      = "validate"
)

// Step names
const (
	StepNameTimeAxis      = "Time Axis"
	StepNameReshape       = "Series Reshape"
	StepNameSeasonal      = "Seasonal Decomposition"
	StepNameRelativeIndex = "Relative Price Index"
	StepNameSamples       = "Point Samples"
	StepNameGrid          = "Grid Construction"
	StepNameInterpolate   = "Spatial Interpolation"
	StepNameValidate      = "Cross Validation"
)

// Default timeouts
const (
	DefaultStepTimeout        = 30 * time.Minute
	DefaultSeasonalTimeout    = 60 * time.Minute
	DefaultInterpolateTimeout = 60 * time.Minute
)

// Settings are the run parameters shared by the steps
type Settings struct {
	Anchor          string
	SeasonalMethod  seasonal.Method
	IndexMode       relprice.Mode
	RequireSeasonal bool
	CrossValidate   bool
	Workers         int // 0 uses GOMAXPROCS
	Resolution      float64
	Methods         []interpolate.Method
	Interpolation   interpolate.Options // per-method copies override Method
}

// SettingsFromConfig derives the run settings from a validated configuration
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	methods := make([]interpolate.Method, 0, len(cfg.Interpolation.Methods))
	seen := make(map[interpolate.Method]bool)
	for _, name := range cfg.Interpolation.Methods {
		m, err := interpolate.ParseMethod(name)
		if err != nil {
			return Settings{}, err
		}
		if !seen[m] {
			seen[m] = true
			methods = append(methods, m)
		}
	}
	if len(methods) == 0 {
		return Settings{}, fmt.Errorf("no interpolation method configured")
	}

	ic := cfg.Interpolation
	return Settings{
		Anchor:          cfg.Pipeline.Anchor,
		SeasonalMethod:  seasonal.Method(cfg.Pipeline.SeasonalMethod),
		IndexMode:       relprice.Mode(cfg.Pipeline.IndexMode),
		RequireSeasonal: cfg.Pipeline.RequireSeasonal,
		CrossValidate:   cfg.Pipeline.CrossValidate,
		Workers:         cfg.Pipeline.Workers,
		Resolution:      ic.Resolution,
		Methods:         methods,
		Interpolation: interpolate.Options{
			Method:      methods[0],
			IDWPower:    ic.IDWPower,
			Neighbors:   ic.Neighbors,
			Distance:    interpolate.Distance(ic.Distance),
			Smoothing:   ic.Smoothing,
			ForestTrees: ic.ForestTrees,
			MinLeaf:     ic.MinLeaf,
			Seed:        ic.Seed,
			Workers:     cfg.Pipeline.Workers,
		},
	}, nil
}

// Request is the input of one pipeline run
type Request struct {
	ID           string
	Observations []domain.Observation
	Boundary     *grid.Boundary
	Covariates   []grid.Layer
	Settings     Settings
}

// Surface is the interpolated relative price surface of one estimator
type Surface struct {
	Method  interpolate.Method `json:"method"`
	Raster  *grid.Raster       `json:"-"`
	Stats   grid.Stats         `json:"stats"`
	Samples int                `json:"samples"`
}

// Response summarises a pipeline run
type Response struct {
	ID        string                `json:"id"`
	Status    OperationStatusValue  `json:"status"`
	Duration  time.Duration         `json:"duration"`
	Steps     map[string]*StepState `json:"steps"`
	Error     string                `json:"error,omitempty"`
	Artifacts *Artifacts            `json:"-"`
}

// Summaries returns the step states ordered by start time, with steps that
// never started last in id order
func (r *Response) Summaries() []StepSummary {
	out := make([]StepSummary, 0, len(r.Steps))
	starts := make(map[string]time.Time, len(r.Steps))
	for id, st := range r.Steps {
		out = append(out, st.Summary())
		st.mu.RLock()
		if st.StartTime != nil {
			starts[id] = *st.StartTime
		}
		st.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		si, iok := starts[out[i].ID]
		sj, jok := starts[out[j].ID]
		if iok != jok {
			return iok
		}
		if iok && !si.Equal(sj) {
			return si.Before(sj)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
