package domain

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures. Callers switch on Kind to decide how to
// render or whether to retry.
type Kind string

const (
	KindInvalidFilter    Kind = "invalid_filter"
	KindEmptyResult      Kind = "empty_result"
	KindInsufficientData Kind = "insufficient_data"
	KindInvalidHorizon   Kind = "invalid_horizon"
	KindModelFit         Kind = "model_fit"
	KindDataSource       Kind = "data_source"
	KindSuperseded       Kind = "superseded"
)

// Stage names the pipeline step an error was raised in.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageFetch     Stage = "fetch"
	StageNormalize Stage = "normalize"
	StageFit       Stage = "fit"
	StageProject   Stage = "project"
	StagePackage   Stage = "package"
	StageDeliver   Stage = "deliver"
)

// Sentinels for errors.Is matching. Only Kind is compared.
var (
	ErrInvalidFilter    = &Error{Kind: KindInvalidFilter}
	ErrEmptyResult      = &Error{Kind: KindEmptyResult}
	ErrInsufficientData = &Error{Kind: KindInsufficientData}
	ErrInvalidHorizon   = &Error{Kind: KindInvalidHorizon}
	ErrModelFit         = &Error{Kind: KindModelFit}
	ErrDataSource       = &Error{Kind: KindDataSource}
	ErrSuperseded       = &Error{Kind: KindSuperseded}
)

// Error is the single structured error value returned by the forecast pipeline.
type Error struct {
	Kind  Kind
	Stage Stage
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Stage != "" {
		msg = fmt.Sprintf("%s: %s", e.Stage, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable reports whether the failure is transient infrastructure trouble.
func (e *Error) Retryable() bool { return e.Kind == KindDataSource }

func InvalidFilter(field, msg string) *Error {
	return &Error{Kind: KindInvalidFilter, Stage: StageValidate, Field: field, Msg: msg}
}

func EmptyResult(stage Stage, msg string) *Error {
	return &Error{Kind: KindEmptyResult, Stage: stage, Msg: msg}
}

func InsufficientData(msg string) *Error {
	return &Error{Kind: KindInsufficientData, Stage: StageFit, Msg: msg}
}

func InvalidHorizon(horizon, max int) *Error {
	return &Error{
		Kind:  KindInvalidHorizon,
		Stage: StageProject,
		Field: "horizon",
		Msg:   fmt.Sprintf("horizon must be in [1, %d], got %d", max, horizon),
	}
}

func ModelFit(msg string, err error) *Error {
	return &Error{Kind: KindModelFit, Stage: StageFit, Msg: msg, Err: err}
}

func DataSource(msg string, err error) *Error {
	return &Error{Kind: KindDataSource, Stage: StageFetch, Msg: msg, Err: err}
}

func Superseded(session string, version, latest int64) *Error {
	return &Error{
		Kind:  KindSuperseded,
		Stage: StageDeliver,
		Msg:   fmt.Sprintf("session %s: version %d superseded by %d", session, version, latest),
	}
}

// KindOf extracts the Kind of err, or "" when err carries no domain error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsRetryable reports whether err wraps a retryable domain error.
func IsRetryable(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Retryable()
}
