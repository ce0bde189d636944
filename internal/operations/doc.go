// Package operations runs the price surface pipeline as a sequence of
// dependent steps.
//
// Core Components:
//
// Manager: executes the registered steps in dependency order, records each
// Step's status and timings, wraps every Step in a span and stops at the
// first Step error.
//
// Step: one unit of work. Steps read the artifacts of earlier steps from the
// OperationState and write their own.
//
// Registry: holds the steps and sorts them topologically.
//
// The pipeline steps are, in order:
//
//	time_axis       months present in the observations
//	reshape         market by month price matrix
//	seasonal        per-market profiles and the national profile
//	relative_index  time-averaged price relative to the anchor market
//	samples         located indices with covariate values
//	grid            boundary-masked regular grid
//	interpolate     one surface per configured estimator
//	validate        leave-one-out scores, when requested
//
// Example usage:
//
//	manager, err := operations.NewPipelineManager(operations.NewConfig(), tracer, logger)
//	if err != nil {
//		return err
//	}
//	resp, err := manager.Execute(ctx, operations.Request{
//		Observations: obs,
//		Boundary:     boundary,
//		Settings:     settings,
//	})
package operations
