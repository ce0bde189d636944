package operations

import (
	"context"
	"log/slog"
)

func (m *Manager) logOperationStart(ctx context.Context, state *OperationState, stepCount int) {
	methods := make([]string, len(state.Settings.Methods))
	for i, method := range state.Settings.Methods {
		methods[i] = string(method)
	}
	m.logger.InfoContext(ctx, "operation_start",
		slog.String("operation_id", state.ID),
		slog.String("anchor", state.Settings.Anchor),
		slog.Int("observations", len(state.Observations)),
		slog.Any("methods", methods),
		slog.Int("step_count", stepCount))
}

func (m *Manager) logOperationComplete(ctx context.Context, state *OperationState) {
	level := slog.LevelInfo
	if state.HasFailures() {
		level = slog.LevelWarn
	}
	m.logger.Log(ctx, level, "operation_complete",
		slog.String("operation_id", state.ID),
		slog.String("status", string(state.Status)),
		slog.Duration("duration", state.Duration()),
		slog.Any("failed_steps", state.StagesWithStatus(StepStatusFailed)),
		slog.Any("skipped_steps", state.StagesWithStatus(StepStatusSkipped)))
}

func (m *Manager) logOperationError(ctx context.Context, operationID string, err error) {
	m.logger.ErrorContext(ctx, "operation_error",
		slog.String("operation_id", operationID),
		slog.String("error", err.Error()))
}

func (m *Manager) logStageStart(ctx context.Context, operationID, stageID string) {
	m.logger.InfoContext(ctx, "stage_start",
		slog.String("operation_id", operationID),
		slog.String("step", stageID))
}

func (m *Manager) logStageComplete(ctx context.Context, operationID string, state *StepState) {
	sum := state.Summary()
	attrs := make([]any, 0, 3+len(sum.Metadata))
	attrs = append(attrs,
		slog.String("operation_id", operationID),
		slog.String("step", sum.ID),
		slog.Duration("duration", sum.Duration))
	for k, v := range sum.Metadata {
		attrs = append(attrs, slog.Any(k, v))
	}
	m.logger.InfoContext(ctx, "stage_complete", attrs...)
}

func (m *Manager) logStageError(ctx context.Context, operationID, stageID string, err error) {
	m.logger.ErrorContext(ctx, "stage_error",
		slog.String("operation_id", operationID),
		slog.String("step", stageID),
		slog.String("error", err.Error()))
}
