package errors

import (
	stderrors "errors"
	"fmt"
)

// ClassifiedError represents a structured error with category, severity, and context.
type ClassifiedError struct {
	category ErrorCategory
	severity ErrorSeverity
	retry    RetryStrategy
	message  string
	cause    error
	context  ErrorContext
}

// RetryClassified is implemented by errors that know whether repeating the
// failed operation can succeed.
type RetryClassified interface {
	error
	RetryStrategy() RetryStrategy
}

// Categorized is implemented by domain error types that know their own classification
// without being built through ErrorBuilder.
type Categorized interface {
	error
	ErrorCategory() ErrorCategory
}

// Error implements the standard error interface.
func (e *ClassifiedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.category, e.severity, e.message, e.cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.category, e.severity, e.message)
}

// Unwrap implements Go 1.13+ error unwrapping.
func (e *ClassifiedError) Unwrap() error {
	return e.cause
}

// Category returns the error category.
func (e *ClassifiedError) Category() ErrorCategory {
	return e.category
}

// ErrorCategory implements Categorized.
func (e *ClassifiedError) ErrorCategory() ErrorCategory {
	return e.category
}

// Severity returns the error severity.
func (e *ClassifiedError) Severity() ErrorSeverity {
	return e.severity
}

// RetryStrategy returns the recommended retry strategy.
func (e *ClassifiedError) RetryStrategy() RetryStrategy {
	return e.retry
}

// Message returns the error message.
func (e *ClassifiedError) Message() string {
	return e.message
}

// Cause returns the underlying error.
func (e *ClassifiedError) Cause() error {
	return e.cause
}

// Context returns the error context.
func (e *ClassifiedError) Context() ErrorContext {
	return e.context
}

// WithContext adds context to the error and returns a new error.
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	return &ClassifiedError{
		category: e.category,
		severity: e.severity,
		retry:    e.retry,
		message:  e.message,
		cause:    e.cause,
		context:  e.context.Merge(ErrorContext{key: value}),
	}
}

// Is implements error comparison for Go 1.13+ error handling.
func (e *ClassifiedError) Is(target error) bool {
	if other, ok := target.(*ClassifiedError); ok {
		return e.category == other.category && e.message == other.message
	}
	return false
}

// CanRetry checks if the error allows retry operations.
func (e *ClassifiedError) CanRetry() bool {
	return e.retry.allowsRetry()
}

// Helper functions for error detection and extraction

// AsClassified finds the first ClassifiedError in the chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var classified *ClassifiedError
	if stderrors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// IsClassified checks if the chain contains a ClassifiedError.
func IsClassified(err error) bool {
	_, ok := AsClassified(err)
	return ok
}

// HasCategory checks if the outermost categorized error in the chain belongs to a category.
func HasCategory(err error, category ErrorCategory) bool {
	return err != nil && GetCategory(err) == category
}

// GetCategory extracts the category from the first categorized error in the chain,
// or returns CategoryInternal.
func GetCategory(err error) ErrorCategory {
	var categorized Categorized
	if stderrors.As(err, &categorized) {
		return categorized.ErrorCategory()
	}
	return CategoryInternal
}

// GetRetryStrategy extracts the retry strategy from the first error in the chain
// that reports one, or returns RetryNever.
func GetRetryStrategy(err error) RetryStrategy {
	var rc RetryClassified
	if stderrors.As(err, &rc) {
		return rc.RetryStrategy()
	}
	return RetryNever
}

// CanRetry reports whether the chain carries a retry strategy that permits
// repeating the operation without user intervention.
func CanRetry(err error) bool {
	return err != nil && GetRetryStrategy(err).allowsRetry()
}
