package operations

import (
	"sort"
	"sync"
	"time"

	"maizemap/internal/grid"
	"maizemap/internal/interpolate"
	"maizemap/internal/seasonal"
	"maizemap/internal/series"
	"maizemap/internal/timeaxis"
	"maizemap/pkg/contracts/domain"
)

// OperationStatusValue represents the overall run status
type OperationStatusValue string

const (
	OperationStatusPending   OperationStatusValue = "pending"
	OperationStatusRunning   OperationStatusValue = "running"
	OperationStatusCompleted OperationStatusValue = "completed"
	OperationStatusFailed    OperationStatusValue = "failed"
	OperationStatusCancelled OperationStatusValue = "cancelled"
)

// Artifacts are the values produced by the steps. Each field is written by
// exactly one step and read only by later ones.
type Artifacts struct {
	Axis            *timeaxis.Axis
	Matrix          *series.Matrix
	Seasonal        []seasonal.Result
	National        [domain.MonthsPerYear]float64
	NationalMarkets int
	Indices         []domain.RelativeIndex
	Samples         []domain.PointSample
	DroppedSamples  int // samples lost to undefined covariates
	Grid            *grid.Grid
	Surfaces        []Surface
	Validation      []interpolate.Validation
}

// Surface returns the surface of method, if it was produced
func (a *Artifacts) Surface(method interpolate.Method) (Surface, bool) {
	for _, s := range a.Surfaces {
		if s.Method == method {
			return s, true
		}
	}
	return Surface{}, false
}

// OperationState is the state of one pipeline run
type OperationState struct {
	mu sync.RWMutex

	ID        string               `json:"id"`
	Status    OperationStatusValue `json:"status"`
	StartTime time.Time            `json:"start_time"`
	EndTime   *time.Time           `json:"end_time,omitempty"`

	Steps map[string]*StepState `json:"steps"`

	Settings     Settings             `json:"-"`
	Observations []domain.Observation `json:"-"`
	Boundary     *grid.Boundary       `json:"-"`
	Covariates   []grid.Layer         `json:"-"`
	Artifacts    *Artifacts           `json:"-"`

	Error error `json:"-"`
}

// NewOperationState creates the state of a run from its request
func NewOperationState(req Request) *OperationState {
	return &OperationState{
		ID:           req.ID,
		Status:       OperationStatusPending,
		StartTime:    time.Now(),
		Steps:        make(map[string]*StepState),
		Settings:     req.Settings,
		Observations: req.Observations,
		Boundary:     req.Boundary,
		Covariates:   req.Covariates,
		Artifacts:    &Artifacts{},
	}
}

// Start marks the run as running
func (p *OperationState) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Status = OperationStatusRunning
	p.StartTime = time.Now()
}

// Complete marks the run as completed
func (p *OperationState) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusCompleted
}

// Fail marks the run as failed
func (p *OperationState) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusFailed
	p.Error = err
}

// Cancel marks the run as cancelled
func (p *OperationState) Cancel(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusCancelled
	p.Error = err
}

// GetStage returns the state of a Step
func (p *OperationState) GetStage(id string) *StepState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Steps[id]
}

// SetStage registers the state of a Step
func (p *OperationState) SetStage(id string, state *StepState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Steps[id] = state
}

// Duration returns the duration of the run
func (p *OperationState) Duration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.EndTime != nil {
		return p.EndTime.Sub(p.StartTime)
	}
	return time.Since(p.StartTime)
}

// StagesWithStatus returns the ids of steps in status, sorted
func (p *OperationState) StagesWithStatus(status StepStatus) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var ids []string
	for id, s := range p.Steps {
		if s.GetStatus() == status {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// HasFailures returns true if any Step has failed
func (p *OperationState) HasFailures() bool {
	return len(p.StagesWithStatus(StepStatusFailed)) > 0
}
