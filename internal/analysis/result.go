package analysis

import "fmt"

// Stage names a step of the agentic workflow.
type Stage string

const (
	StageVision    Stage = "vision"
	StageCognition Stage = "cognition"
)

// StageErrorKind classifies a stage failure.
type StageErrorKind string

const (
	KindNetwork     StageErrorKind = "network"
	KindParse       StageErrorKind = "parse"
	KindShortOutput StageErrorKind = "short_output"
	KindConfig      StageErrorKind = "config"
)

// StageError is a recoverable failure of one stage.
type StageError struct {
	Stage Stage
	Kind  StageErrorKind
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s stage failed (%s)", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s stage failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Result is the outcome of a stage: a value or a StageError, never both.
type Result[T any] struct {
	Value T
	Err   *StageError
}

// Ok wraps a successful stage value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail wraps a stage failure.
func Fail[T any](stage Stage, kind StageErrorKind, err error) Result[T] {
	return Result[T]{Err: &StageError{Stage: stage, Kind: kind, Err: err}}
}

// IsOk reports whether the stage succeeded.
func (r Result[T]) IsOk() bool { return r.Err == nil }

// OrElse returns the value, or fallback when the stage failed.
func (r Result[T]) OrElse(fallback T) T {
	if r.Err != nil {
		return fallback
	}
	return r.Value
}
