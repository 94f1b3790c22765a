package license

import (
	"errors"
	"fmt"
)

// Sentinel errors for license resolution. Operational failures never reach
// Resolve callers; these exist for internal classification and logging.
var (
	ErrNoInstanceIdentity = errors.New("no instance identity available")
	ErrNetworkFailure     = errors.New("license authority unreachable")
)

// SchemaError reports an authority response that does not match the expected
// shape. Unlike transient failures this indicates a contract defect between
// client and authority and is logged at error level.
type SchemaError struct {
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("license response schema violation: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("license response schema violation: %s", e.Reason)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// APIStatusError reports a non-2xx response from the authority. Retryable
// statuses are retried with backoff before the fetcher gives up; all others
// are terminal for the attempt. Either way the error is swallowed into
// "no fresh data" by the fetcher.
type APIStatusError struct {
	StatusCode int
}

func (e *APIStatusError) Error() string {
	return fmt.Sprintf("license authority returned HTTP %d", e.StatusCode)
}

// Retryable reports whether the status is worth retrying within the same
// check cycle.
func (e *APIStatusError) Retryable() bool {
	return isRetryableStatus(e.StatusCode)
}

func isRetryableStatus(code int) bool {
	switch code {
	case 429, 502, 503, 504:
		return true
	}
	return false
}
