package transport

import (
	"fmt"

	"github.com/compulim/remotebuild/internal/foundation/errors"
)

// RemoteServiceError reports a response outside the 2xx range.
type RemoteServiceError struct {
	StatusCode int
	Status     string
	Method     string
	URL        string
	Body       string // first bytes of the response body, for diagnostics
}

func (e *RemoteServiceError) Error() string {
	return fmt.Sprintf("remote build service returned %s for %s %s", e.Status, e.Method, e.URL)
}

// ErrorCategory implements errors.Categorized.
func (e *RemoteServiceError) ErrorCategory() errors.ErrorCategory { return errors.CategoryRemote }

// RetryStrategy implements errors.RetryClassified. Only server-side failures
// are worth repeating; a 4xx answer will not change.
func (e *RemoteServiceError) RetryStrategy() errors.RetryStrategy {
	if e.StatusCode >= 500 {
		return errors.RetryBackoff
	}
	return errors.RetryNever
}

// NetworkError reports a request that never produced a response.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request %s %s failed: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ErrorCategory implements errors.Categorized.
func (e *NetworkError) ErrorCategory() errors.ErrorCategory { return errors.CategoryNetwork }

// RetryStrategy implements errors.RetryClassified.
func (e *NetworkError) RetryStrategy() errors.RetryStrategy { return errors.RetryBackoff }

// DecodeError reports a 2xx body that does not match its declared content type.
type DecodeError struct {
	ContentType string
	URL         string
	Err         error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed %s response from %s: %v", e.ContentType, e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrorCategory implements errors.Categorized.
func (e *DecodeError) ErrorCategory() errors.ErrorCategory { return errors.CategoryProtocol }

// RetryStrategy implements errors.RetryClassified.
func (e *DecodeError) RetryStrategy() errors.RetryStrategy { return errors.RetryNever }
