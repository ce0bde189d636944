package operations

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Step is one unit of work in a pipeline run
type Step interface {
	// ID returns the unique identifier for this Step
	ID() string

	// Name returns the human-readable name for this Step
	Name() string

	// Execute runs the Step with the given context and run state
	Execute(ctx context.Context, state *OperationState) error

	// Validate checks that the artifacts the Step reads are present
	Validate(state *OperationState) error

	// GetDependencies returns the IDs of steps that must complete first
	GetDependencies() []string
}

// StepStatus represents the current status of a Step
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepState represents the runtime state of a Step
type StepState struct {
	mu        sync.RWMutex
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Status    StepStatus             `json:"status"`
	StartTime *time.Time             `json:"start_time,omitempty"`
	EndTime   *time.Time             `json:"end_time,omitempty"`
	Message   string                 `json:"message"`
	Error     error                  `json:"-"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewStepState creates a pending Step state
func NewStepState(id, name string) *StepState {
	return &StepState{
		ID:       id,
		Name:     name,
		Status:   StepStatusPending,
		Metadata: make(map[string]interface{}),
	}
}

// Start marks the Step as active
func (s *StepState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = &now
	s.Status = StepStatusActive
}

// finish moves the Step to a terminal status
func (s *StepState) finish(status StepStatus, message string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = status
	s.Message = message
	s.Error = err
}

// Complete marks the Step as completed
func (s *StepState) Complete() { s.finish(StepStatusCompleted, "", nil) }

// Fail records the error that stopped the Step
func (s *StepState) Fail(err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	s.finish(StepStatusFailed, msg, err)
}

// Skip records why the Step did not run
func (s *StepState) Skip(reason string) { s.finish(StepStatusSkipped, reason, nil) }

// SetMetadata records a summary value of the Step, such as a market count
func (s *StepState) SetMetadata(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Metadata[key] = value
}

// StepSummary is a consistent copy of a StepState
type StepSummary struct {
	ID       string                 `json:"id"`
	Status   StepStatus             `json:"status"`
	Duration time.Duration          `json:"duration"`
	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Summary copies the state under its lock
func (s *StepState) Summary() StepSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta := make(map[string]interface{}, len(s.Metadata))
	for k, v := range s.Metadata {
		meta[k] = v
	}
	return StepSummary{
		ID:       s.ID,
		Status:   s.Status,
		Duration: s.durationLocked(),
		Message:  s.Message,
		Metadata: meta,
	}
}

// GetStatus returns the current status
func (s *StepState) GetStatus() StepStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// Duration returns how long the Step ran, or has run so far
func (s *StepState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.durationLocked()
}

func (s *StepState) durationLocked() time.Duration {
	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}

// BaseStage carries the identity and dependencies of a Step. Steps embed it
// and override Validate when they read inputs.
type BaseStage struct {
	id           string
	name         string
	dependencies []string
}

// NewBaseStage creates a new base Step
func NewBaseStage(id, name string, dependencies []string) BaseStage {
	if dependencies == nil {
		dependencies = []string{}
	}
	return BaseStage{id: id, name: name, dependencies: dependencies}
}

func (b *BaseStage) ID() string                { return b.id }
func (b *BaseStage) Name() string              { return b.name }
func (b *BaseStage) GetDependencies() []string { return b.dependencies }

// Validate only rejects a missing state
func (b *BaseStage) Validate(state *OperationState) error {
	if state == nil {
		return fmt.Errorf("step %s: nil state", b.id)
	}
	return nil
}
