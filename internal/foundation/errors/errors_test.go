package errors

import (
	"errors"
	"fmt"
	"testing"
)

type remoteStatusError struct{ code int }

func (e *remoteStatusError) Error() string                { return fmt.Sprintf("server returned %d", e.code) }
func (e *remoteStatusError) ErrorCategory() ErrorCategory { return CategoryRemote }

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "remotebuild.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		if err.Message() != "invalid configuration" {
			t.Errorf("expected message 'invalid configuration', got %s", err.Message())
		}

		file, exists := err.Context().GetString("file")
		if !exists || file != "remotebuild.yaml" {
			t.Errorf("expected context file=remotebuild.yaml, got %v", file)
		}
	})

	t.Run("Error detection", func(t *testing.T) {
		err := ConfigError("test error").Build()

		if !IsClassified(err) {
			t.Error("expected error to be classified")
		}
		if !HasCategory(err, CategoryConfig) {
			t.Error("expected error to have config category")
		}
		if err.CanRetry() {
			t.Error("expected config error to not be retryable")
		}
		if CanRetry(err) {
			t.Error("expected config error chain to not be retryable")
		}
	})

	t.Run("Detection through wrapping", func(t *testing.T) {
		err := fmt.Errorf("load: %w", ValidationError("bad host").Build())
		if !IsClassified(err) {
			t.Error("expected wrapped error to be classified")
		}
		if GetCategory(err) != CategoryValidation {
			t.Errorf("expected validation category, got %s", GetCategory(err))
		}
	})

	t.Run("Categorized domain error", func(t *testing.T) {
		err := fmt.Errorf("submit: %w", &remoteStatusError{code: 500})
		if GetCategory(err) != CategoryRemote {
			t.Errorf("expected remote category, got %s", GetCategory(err))
		}
		if IsClassified(err) {
			t.Error("domain error should not be a ClassifiedError")
		}
	})
}

type throttledError struct{ strategy RetryStrategy }

func (e *throttledError) Error() string                { return "throttled" }
func (e *throttledError) RetryStrategy() RetryStrategy { return e.strategy }

func TestRetryStrategyDetection(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		strategy RetryStrategy
		canRetry bool
	}{
		{"nil", nil, RetryNever, false},
		{"plain error", errors.New("boom"), RetryNever, false},
		{"classified network", NetworkError("refused").Build(), RetryBackoff, true},
		{"classified config", ConfigError("bad").Build(), RetryUserAction, false},
		{"domain error", fmt.Errorf("poll: %w", &throttledError{strategy: RetryBackoff}), RetryBackoff, true},
		{"domain error never", &throttledError{strategy: RetryNever}, RetryNever, false},
		{"wrapped classified", fmt.Errorf("fetch: %w", WrapError(errors.New("reset"), CategoryNetwork, "status fetch failed").Retryable().Build()), RetryBackoff, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetRetryStrategy(tt.err); got != tt.strategy {
				t.Errorf("GetRetryStrategy() = %s, want %s", got, tt.strategy)
			}
			if got := CanRetry(tt.err); got != tt.canRetry {
				t.Errorf("CanRetry() = %v, want %v", got, tt.canRetry)
			}
		})
	}
}

func TestErrorBuilder(t *testing.T) {
	t.Run("Fluent API", func(t *testing.T) {
		originalErr := errors.New("connection refused")
		err := WrapError(originalErr, CategoryNetwork, "status fetch failed").
			WithSeverity(SeverityWarning).
			Retryable().
			WithContext("host", "localhost").
			WithContext("port", 3000).
			Build()

		if err.Category() != CategoryNetwork {
			t.Errorf("expected category %s, got %s", CategoryNetwork, err.Category())
		}
		if err.Severity() != SeverityWarning {
			t.Errorf("expected severity %s, got %s", SeverityWarning, err.Severity())
		}
		if err.RetryStrategy() != RetryBackoff {
			t.Errorf("expected retry strategy %s, got %s", RetryBackoff, err.RetryStrategy())
		}
		if !errors.Is(err, originalErr) {
			t.Error("expected error to wrap original error")
		}

		host, _ := err.Context().GetString("host")
		if host != "localhost" {
			t.Errorf("expected host context 'localhost', got %s", host)
		}
	})

	t.Run("Convenience constructors", func(t *testing.T) {
		tests := []struct {
			name     string
			builder  *ErrorBuilder
			category ErrorCategory
			severity ErrorSeverity
			retry    RetryStrategy
		}{
			{"ConfigError", ConfigError("test"), CategoryConfig, SeverityFatal, RetryUserAction},
			{"ValidationError", ValidationError("test"), CategoryValidation, SeverityFatal, RetryUserAction},
			{"NetworkError", NetworkError("test"), CategoryNetwork, SeverityError, RetryBackoff},
			{"ProtocolError", ProtocolError("test"), CategoryProtocol, SeverityFatal, RetryNever},
			{"ArchiveError", ArchiveError("test"), CategoryArchive, SeverityFatal, RetryNever},
			{"FileSystemError", FileSystemError("test"), CategoryFileSystem, SeverityError, RetryNever},
			{"HistoryError", HistoryError("test"), CategoryHistory, SeverityError, RetryNever},
			{"RuntimeError", RuntimeError("test"), CategoryRuntime, SeverityFatal, RetryNever},
			{"InternalError", InternalError("test"), CategoryInternal, SeverityFatal, RetryNever},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.builder.Build()
				if err.Category() != tt.category {
					t.Errorf("expected category %s, got %s", tt.category, err.Category())
				}
				if err.Severity() != tt.severity {
					t.Errorf("expected severity %s, got %s", tt.severity, err.Severity())
				}
				if err.RetryStrategy() != tt.retry {
					t.Errorf("expected retry strategy %s, got %s", tt.retry, err.RetryStrategy())
				}
			})
		}
	})
}

func TestErrorContext(t *testing.T) {
	t.Run("Context merge", func(t *testing.T) {
		ctx1 := make(ErrorContext)
		ctx1 = ctx1.Set("key1", "value1")
		ctx1 = ctx1.Set("shared", "original")

		ctx2 := make(ErrorContext)
		ctx2 = ctx2.Set("key2", "value2")
		ctx2 = ctx2.Set("shared", "overridden")

		merged := ctx1.Merge(ctx2)

		value1, _ := merged.GetString("key1")
		value2, _ := merged.GetString("key2")
		shared, _ := merged.GetString("shared")

		if value1 != "value1" {
			t.Errorf("expected key1=value1, got %s", value1)
		}
		if value2 != "value2" {
			t.Errorf("expected key2=value2, got %s", value2)
		}
		if shared != "overridden" {
			t.Errorf("expected shared=overridden, got %s", shared)
		}
	})

	t.Run("WithContext does not mutate the original", func(t *testing.T) {
		base := NewError(CategoryBuild, "build failed").WithContext("status", "Error").Build()
		derived := base.WithContext("build", "42")

		if _, ok := base.Context().Get("build"); ok {
			t.Error("expected base context to be unchanged")
		}
		if v, _ := derived.Context().GetString("build"); v != "42" {
			t.Errorf("expected derived build=42, got %q", v)
		}
	})
}
