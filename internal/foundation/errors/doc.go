// Package errors provides foundational, type-safe error primitives used across remotebuild.
//
// This package contains classified error types and helpers for robust error handling,
// including a fluent builder API for constructing ClassifiedError values with context.
//
// Key features:
//   - ErrorCategory: Broad error classification (config, network, remote, protocol, timeout, build, etc.)
//   - ErrorSeverity: Impact level (fatal, error, warning, info)
//   - RetryStrategy: Retry behavior (should-retry, no-retry, backoff)
//   - ClassifiedError: Structured error with category, severity, and context
//   - Categorized: Interface for domain error types that report their own category
//   - ErrorBuilder: Fluent API for creating classified errors
//   - CLI adapter for error presentation and exit codes
//
// Example usage:
//
//	err := errors.NewError(errors.CategoryRemote, "status fetch failed").
//		WithSeverity(errors.SeverityError).
//		WithContext("build", handle).
//		WithCause(originalErr).
//		Build()
package errors
