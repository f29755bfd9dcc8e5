// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInsufficientData  = errors.New("insufficient market data")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrMaxPositions      = errors.New("max concurrent positions reached")
	ErrPositionExists    = errors.New("position already open for symbol")
	ErrPositionNotFound  = errors.New("position not found")
	ErrPositionClosed    = errors.New("position already closed")
	ErrTimeout           = errors.New("operation timed out")
	ErrNoProviders       = errors.New("no completion providers configured")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrSchedulerRunning  = errors.New("scheduler already running")
)

// InvariantViolation represents a programming-contract violation detected at
// the point of attempted mutation. It aborts the current cycle's mutation and
// is surfaced to the caller; it is never silently applied.
type InvariantViolation struct {
	Op     string
	Detail string
	Err    error
}

func (e *InvariantViolation) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invariant violation in %s: %s: %v", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("invariant violation in %s: %s", e.Op, e.Detail)
}

func (e *InvariantViolation) Unwrap() error {
	return e.Err
}

// NewInvariantViolation creates a new InvariantViolation.
func NewInvariantViolation(op, detail string, err error) *InvariantViolation {
	return &InvariantViolation{Op: op, Detail: detail, Err: err}
}

// IsInvariantViolation reports whether err is an InvariantViolation.
func IsInvariantViolation(err error) bool {
	var iv *InvariantViolation
	return errors.As(err, &iv)
}
