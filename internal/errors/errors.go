// Package errors provides the error taxonomy shared by the resolver, fact
// writers and background jobs. Callers distinguish "retry me" (resolution,
// partition gap, refresh) from "fix your data" (payload invalid) from
// "escalate" (constraint violation of unknown origin) by sentinel.
package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrResolutionFailed means a dimension lookup or insert could not
	// complete. The caller must not proceed to a fact write.
	ErrResolutionFailed = errors.New("dimension resolution failed")

	// ErrPayloadInvalid means the caller-provided fact failed domain
	// validation. Never retried automatically.
	ErrPayloadInvalid = errors.New("payload invalid")

	// ErrConstraintViolation is an unexpected store-level rejection not
	// explained by the known resolver race. Surfaced verbatim for operator
	// diagnosis.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrPartitionGap means a write targeted a time range with no active
	// partition.
	ErrPartitionGap = errors.New("no partition covers target time range")

	// ErrRefreshFailed means an incremental feature refresh could not
	// complete for a batch. The previous view version remains intact.
	ErrRefreshFailed = errors.New("feature refresh failed")

	// ErrNotFound is returned by read paths when no row matches.
	ErrNotFound = errors.New("not found")
)

// WriteError carries enough context for a failed fact write to be logged and
// alerted on: the fact family, the natural key, and the taxonomy kind.
type WriteError struct {
	Family string // price_bar, news, indicator, ...
	Symbol string
	TS     time.Time
	Kind   error // one of the sentinels above
	Err    error
}

func (e *WriteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s write for %s@%s: %v: %v",
			e.Family, e.Symbol, e.TS.Format(time.RFC3339), e.Kind, e.Err)
	}
	return fmt.Sprintf("%s write for %s@%s: %v",
		e.Family, e.Symbol, e.TS.Format(time.RFC3339), e.Kind)
}

// Unwrap exposes the taxonomy sentinel so errors.Is(err, ErrPayloadInvalid)
// style checks work through the wrapper.
func (e *WriteError) Unwrap() error {
	return e.Kind
}

// NewWriteError wraps a failure with fact-write context.
func NewWriteError(family, symbol string, ts time.Time, kind, err error) *WriteError {
	return &WriteError{Family: family, Symbol: symbol, TS: ts, Kind: kind, Err: err}
}

// FieldError reports the offending field for a validation failure.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return ErrPayloadInvalid
}

// NewFieldError creates a FieldError for a single invalid field.
func NewFieldError(field, reason string) *FieldError {
	return &FieldError{Field: field, Reason: reason}
}
