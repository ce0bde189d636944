package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// Code classifies a pipeline failure
type Code string

const (
	CodeInvalidMonth         Code = "INVALID_MONTH"
	CodeDuplicateObservation Code = "DUPLICATE_OBSERVATION"
	CodeInsufficientData     Code = "INSUFFICIENT_DATA"
	CodeAnchorNotFound       Code = "ANCHOR_NOT_FOUND"
	CodeUnderdeterminedFit   Code = "UNDERDETERMINED_FIT"
	CodeValidation           Code = "VALIDATION"
	CodeCancelled            Code = "CANCELLED"
)

// PipelineError is a failure raised by one pipeline step
type PipelineError struct {
	Code    Code                   `json:"code"`
	Step    string                 `json:"step,omitempty"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e == nil {
		return "unknown pipeline error"
	}
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Step != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Step, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches any PipelineError carrying the same code, so callers can test
// against the sentinels below with errors.Is.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// With returns a copy of the error carrying an extra context value
func (e *PipelineError) With(key string, value interface{}) *PipelineError {
	cp := *e
	cp.Context = make(map[string]interface{}, len(e.Context)+1)
	for k, v := range e.Context {
		cp.Context[k] = v
	}
	cp.Context[key] = value
	return &cp
}

// Sentinels for errors.Is
var (
	ErrInvalidMonth         = &PipelineError{Code: CodeInvalidMonth, Message: "invalid calendar month"}
	ErrDuplicateObservation = &PipelineError{Code: CodeDuplicateObservation, Message: "duplicate observation"}
	ErrInsufficientData     = &PipelineError{Code: CodeInsufficientData, Message: "insufficient data"}
	ErrAnchorNotFound       = &PipelineError{Code: CodeAnchorNotFound, Message: "anchor market not found"}
	ErrUnderdeterminedFit   = &PipelineError{Code: CodeUnderdeterminedFit, Message: "underdetermined fit"}
	ErrValidation           = &PipelineError{Code: CodeValidation, Message: "validation failed"}
	ErrCancelled            = &PipelineError{Code: CodeCancelled, Message: "pipeline cancelled"}
)

// New creates a pipeline error
func New(code Code, message string) *PipelineError {
	return &PipelineError{Code: code, Message: message}
}

// Newf creates a pipeline error with a formatted message
func Newf(code Code, format string, args ...interface{}) *PipelineError {
	return &PipelineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// InvalidMonth reports unrecognised month text
func InvalidMonth(text string) *PipelineError {
	return Newf(CodeInvalidMonth, "unrecognised month %q", text).With("month", text)
}

// DuplicateObservation reports a second price for the same market and month
func DuplicateObservation(market, month string) *PipelineError {
	return Newf(CodeDuplicateObservation, "more than one price for market %s at %s", market, month).
		With("market", market).
		With("time", month)
}

// InsufficientData reports a series too short for decomposition
func InsufficientData(market string, present, required int) *PipelineError {
	return Newf(CodeInsufficientData, "market %s has %d reported months, need %d", market, present, required).
		With("market", market).
		With("present", present).
		With("required", required)
}

// AnchorNotFound reports a missing reference market
func AnchorNotFound(anchor string) *PipelineError {
	return Newf(CodeAnchorNotFound, "anchor market %q is not in the price matrix", anchor).With("anchor", anchor)
}

// UnderdeterminedFit reports a point set that cannot support the estimator
func UnderdeterminedFit(method string, reason string) *PipelineError {
	return Newf(CodeUnderdeterminedFit, "%s: %s", method, reason).With("method", method)
}

// Validation reports invalid input or configuration
func Validation(format string, args ...interface{}) *PipelineError {
	return Newf(CodeValidation, format, args...)
}

// WrapStep attaches the step id to a pipeline error. Context errors become
// cancellations and other foreign errors validation failures of that step.
func WrapStep(err error, step string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		if CodeOf(err) != CodeCancelled {
			return &PipelineError{Code: CodeCancelled, Step: step, Message: "step interrupted", Cause: err}
		}
	}
	var pErr *PipelineError
	if stderrors.As(err, &pErr) {
		if pErr.Step == "" {
			cp := *pErr
			cp.Step = step
			return &cp
		}
		return err
	}
	return &PipelineError{Code: CodeValidation, Step: step, Message: "step failed", Cause: err}
}

// CodeOf returns the code of a pipeline error, or "" for foreign errors
func CodeOf(err error) Code {
	var pErr *PipelineError
	if stderrors.As(err, &pErr) {
		return pErr.Code
	}
	return ""
}

// IsFatal reports whether err aborts the run. Only per-market insufficient
// data is local.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) != CodeInsufficientData
}
