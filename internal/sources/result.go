package sources

import (
	"context"
	"errors"
	"fmt"

	apperrors "twmarket/internal/errors"
)

// Status is the outcome class of one adapter call
type Status int

const (
	StatusOK Status = iota
	StatusNoData
	StatusSchemaMismatch
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoData:
		return "no_data"
	case StatusSchemaMismatch:
		return "schema_mismatch"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result carries exactly one of a record, a no-data signal or a failure
type Result[T any] struct {
	Value  T
	Status Status
	Reason string
	Err    error
}

// Ok wraps a fetched record
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v, Status: StatusOK}
}

// NoData reports that the upstream has no record for the date
func NoData[T any](reason string) Result[T] {
	return Result[T]{Status: StatusNoData, Reason: reason}
}

// SchemaMismatch reports a payload whose header or row layout is unexpected
func SchemaMismatch[T any](reason string) Result[T] {
	return Result[T]{Status: StatusSchemaMismatch, Reason: reason}
}

// Failed reports a transport or decoding failure
func Failed[T any](err error) Result[T] {
	return Result[T]{Status: StatusFailed, Err: err, Reason: err.Error()}
}

// FromError classifies err. Timeouts become NoData so a slow upstream does
// not stall the pipeline, schema errors keep their own status.
func FromError[T any](err error) Result[T] {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NoData[T]("timeout")
	case errors.Is(err, apperrors.ErrNoData):
		return NoData[T]("no data")
	case apperrors.TypeOf(err) == apperrors.ErrTypeSchema:
		return Result[T]{Status: StatusSchemaMismatch, Reason: err.Error(), Err: err}
	default:
		return Failed[T](err)
	}
}

// OK reports whether a record is present
func (r Result[T]) OK() bool { return r.Status == StatusOK }

// Absent reports NoData and SchemaMismatch, which callers handle the same way
func (r Result[T]) Absent() bool {
	return r.Status == StatusNoData || r.Status == StatusSchemaMismatch
}

// Map converts the record of an OK result
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if r.Status != StatusOK {
		return Result[U]{Status: r.Status, Reason: r.Reason, Err: r.Err}
	}
	return Ok(fn(r.Value))
}
