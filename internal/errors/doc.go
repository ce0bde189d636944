// Package errors defines the failure taxonomy of a price surface run.
//
// Every failure carries a Code. errors.Is matches on the code, so callers
// compare against the sentinels:
//
//	if errors.Is(err, apperrors.ErrAnchorNotFound) { ... }
//
// InsufficientData is local to one market and never aborts a run; every
// other code is fatal to the step that raised it.
package errors
