package operations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "maizemap/internal/errors"
	"maizemap/internal/infrastructure"
)

// conditional is implemented by steps that only run for some settings
type conditional interface {
	Enabled(state *OperationState) (bool, string)
}

// Manager orchestrates pipeline runs
type Manager struct {
	registry *Registry
	config   *Config
	tracer   *OperationTracer
	logger   *slog.Logger
}

// NewManager creates a manager. Nil arguments fall back to an empty
// registry, the default config, a no-op tracer and slog.Default.
func NewManager(registry *Registry, config *Config, tracer *OperationTracer, logger *slog.Logger) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}
	if tracer == nil {
		tracer, _ = NewOperationTracer(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{registry: registry, config: config, tracer: tracer, logger: logger}
}

// NewPipelineManager creates a manager with every pipeline step registered
func NewPipelineManager(config *Config, tracer *OperationTracer, logger *slog.Logger) (*Manager, error) {
	m := NewManager(nil, config, tracer, logger)
	for _, step := range PipelineSteps(m.logger, m.tracer.Metrics()) {
		if err := m.RegisterStage(step); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RegisterStage registers a Step
func (m *Manager) RegisterStage(step Step) error {
	return m.registry.Register(step)
}

// GetRegistry returns the step registry
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// Execute runs every registered step in dependency order and stops at the
// first step error. Per-market failures are handled inside the steps and
// never reach the manager.
func (m *Manager) Execute(ctx context.Context, req Request) (*Response, error) {
	if req.ID == "" {
		req.ID = infrastructure.NewRunID()
	}
	ctx = infrastructure.WithRunID(ctx, req.ID)

	state := NewOperationState(req)

	steps, err := m.registry.GetDependencyOrder()
	if err != nil {
		err = fmt.Errorf("failed to get dependency order: %w", err)
		m.logOperationError(ctx, req.ID, err)
		state.Fail(err)
		return m.createResponse(state), err
	}
	for _, step := range steps {
		state.SetStage(step.ID(), NewStepState(step.ID(), step.Name()))
	}

	if m.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.RunTimeout)
		defer cancel()
	}

	ctx, span := m.tracer.TraceRun(ctx, state)
	m.logOperationStart(ctx, state, len(steps))
	state.Start()

	err = m.executeSequential(ctx, state, steps)
	switch {
	case err == nil:
		state.Complete()
	case apperrors.CodeOf(err) == apperrors.CodeCancelled:
		state.Cancel(err)
	default:
		state.Fail(err)
	}

	m.tracer.EndRun(ctx, span, state)
	m.logOperationComplete(ctx, state)
	return m.createResponse(state), err
}

func (m *Manager) executeSequential(ctx context.Context, state *OperationState, steps []Step) error {
	for i, step := range steps {
		stepState := state.GetStage(step.ID())

		if err := ctx.Err(); err != nil {
			m.logger.WarnContext(ctx, "operation_cancelled",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()))
			m.skipRemaining(state, steps[i:], "run cancelled")
			return apperrors.WrapStep(err, step.ID())
		}

		if reason, skip := m.shouldSkip(state, step); skip {
			stepState.Skip(reason)
			m.logger.InfoContext(ctx, "stage_skipped",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()),
				slog.String("reason", reason))
			continue
		}

		if err := m.executeStage(ctx, state, step, stepState); err != nil {
			m.logStageError(ctx, state.ID, step.ID(), err)
			m.skipRemaining(state, steps[i+1:], fmt.Sprintf("step %s failed", step.ID()))
			return err
		}
	}
	return nil
}

// shouldSkip reports whether a step is disabled, turned off by the run
// settings, or waiting on a dependency that did not complete.
func (m *Manager) shouldSkip(state *OperationState, step Step) (string, bool) {
	if m.config.Disabled[step.ID()] {
		return "disabled by configuration", true
	}
	if c, ok := step.(conditional); ok {
		if enabled, reason := c.Enabled(state); !enabled {
			return reason, true
		}
	}
	for _, dep := range step.GetDependencies() {
		depState := state.GetStage(dep)
		if depState == nil || depState.GetStatus() != StepStatusCompleted {
			return fmt.Sprintf("dependency %s not completed", dep), true
		}
	}
	return "", false
}

func (m *Manager) executeStage(ctx context.Context, state *OperationState, step Step, stepState *StepState) error {
	if err := step.Validate(state); err != nil {
		stepState.Fail(err)
		return apperrors.WrapStep(err, step.ID())
	}

	timeout := m.config.GetStageTimeout(step.ID())
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stageCtx, span := m.tracer.TraceStep(stageCtx, state.ID, step)
	m.logStageStart(stageCtx, state.ID, step.ID())

	stepState.Start()
	start := time.Now()
	err := step.Execute(stageCtx, state)
	duration := time.Since(start)

	m.tracer.EndStep(stageCtx, span, step.ID(), duration, stepState.Summary().Metadata, err)

	if err != nil {
		err = apperrors.WrapStep(err, step.ID())
		stepState.Fail(err)
		return err
	}

	stepState.Complete()
	m.logStageComplete(ctx, state.ID, stepState)
	return nil
}

func (m *Manager) skipRemaining(state *OperationState, steps []Step, reason string) {
	for _, step := range steps {
		if s := state.GetStage(step.ID()); s != nil && s.GetStatus() == StepStatusPending {
			s.Skip(reason)
		}
	}
}

func (m *Manager) createResponse(state *OperationState) *Response {
	resp := &Response{
		ID:        state.ID,
		Status:    state.Status,
		Duration:  state.Duration(),
		Steps:     state.Steps,
		Artifacts: state.Artifacts,
	}
	if state.Error != nil {
		resp.Error = state.Error.Error()
	}
	return resp
}
