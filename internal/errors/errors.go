// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrTradeNotFound      = errors.New("trade not found")
	ErrDatabaseError      = errors.New("database error")
	ErrQuoteUnavailable   = errors.New("quote unavailable")
	ErrInputValidation    = errors.New("input validation failed")
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrCircuitOpen        = errors.New("circuit breaker is open")
	ErrUnknownProvider    = errors.New("unknown quote provider")
	ErrTradeAlreadyClosed = errors.New("trade already closed")
)

// ValidationError represents a validation error on a single trade field.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets callers match any ValidationError against ErrInputValidation.
func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// StoreError represents a failure in the position store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error [%s]: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrDatabaseError, e.Err}
}

// NewStoreError creates a new StoreError.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{
		Op:  op,
		Err: err,
	}
}

// QuoteError represents a failed quote fetch.
type QuoteError struct {
	Ticker   string
	Provider string
	Err      error
}

func (e *QuoteError) Error() string {
	return fmt.Sprintf("quote error [%s] %s: %v", e.Provider, e.Ticker, e.Err)
}

func (e *QuoteError) Unwrap() error {
	return e.Err
}

// NewQuoteError creates a new QuoteError.
func NewQuoteError(provider, ticker string, err error) *QuoteError {
	return &QuoteError{
		Ticker:   ticker,
		Provider: provider,
		Err:      err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
