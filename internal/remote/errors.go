package remote

import (
	"errors"
	"fmt"
	"time"

	ferrors "github.com/compulim/remotebuild/internal/foundation/errors"
)

// ProtocolError reports a response that lacks or mangles an expected field.
type ProtocolError struct {
	Op     string // submit, status
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ErrorCategory implements errors.Categorized.
func (e *ProtocolError) ErrorCategory() ferrors.ErrorCategory { return ferrors.CategoryProtocol }

// TimeoutError reports a poll loop that ran past the build timeout.
type TimeoutError struct {
	Handle     Handle
	Elapsed    time.Duration
	Timeout    time.Duration
	LastStatus Status
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("build %s timed out after %s (limit %s, last status %q)", e.Handle, e.Elapsed, e.Timeout, e.LastStatus)
}

// ErrorCategory implements errors.Categorized.
func (e *TimeoutError) ErrorCategory() ferrors.ErrorCategory { return ferrors.CategoryTimeout }

// BuildFailedError reports a failure terminal status.
type BuildFailedError struct {
	Handle  Handle
	Status  Status
	Message string
}

func (e *BuildFailedError) Error() string {
	return fmt.Sprintf("build %s failed: %s", e.Handle, e.Status)
}

// ErrorCategory implements errors.Categorized.
func (e *BuildFailedError) ErrorCategory() ferrors.ErrorCategory { return ferrors.CategoryBuild }

// DiagnosticError carries the build log fetched after a failed build.
// Log is set when the log fetch succeeded, LogErr when it failed too.
// Both Cause and LogErr are reachable through errors.Is and errors.As.
type DiagnosticError struct {
	Handle Handle
	Cause  error
	Log    []byte
	LogErr error
}

func (e *DiagnosticError) Error() string {
	if e.LogErr != nil {
		return fmt.Sprintf("%v (build log unavailable: %v)", e.Cause, e.LogErr)
	}
	return fmt.Sprintf("%v (build log: %d bytes)", e.Cause, len(e.Log))
}

func (e *DiagnosticError) Unwrap() []error {
	if e.LogErr != nil {
		return []error{e.Cause, e.LogErr}
	}
	return []error{e.Cause}
}

// ErrorCategory reports the category of the original failure.
func (e *DiagnosticError) ErrorCategory() ferrors.ErrorCategory {
	return ferrors.GetCategory(e.Cause)
}

// HasLog reports whether the diagnostic log was retrieved.
func (e *DiagnosticError) HasLog() bool { return e.LogErr == nil }

// DiagnosticLog returns the log carried by err, if any.
func DiagnosticLog(err error) ([]byte, bool) {
	var de *DiagnosticError
	if errors.As(err, &de) && de.HasLog() {
		return de.Log, true
	}
	return nil, false
}

// needsDiagnosis reports whether err is a build outcome worth fetching the log for.
func needsDiagnosis(err error) bool {
	var bf *BuildFailedError
	var te *TimeoutError
	return errors.As(err, &bf) || errors.As(err, &te)
}
