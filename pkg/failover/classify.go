package failover

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ClassifiedError carries an already-determined failure reason alongside
// the underlying error. Providers may return these directly to skip
// message-pattern matching.
type ClassifiedError struct {
	Reason Reason
	Status int
	Code   string
	Err    error
}

func (e *ClassifiedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return string(e.Reason)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// HTTPError wraps a provider failure with its transport-level status and
// optional vendor error code. Provider adapters translate SDK errors into
// this shape so the classifier never has to probe SDK-specific types.
type HTTPError struct {
	Status int
	Code   string
	Err    error
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d (%s): %v", e.Status, e.Code, e.Err)
	}
	return fmt.Sprintf("http %d: %v", e.Status, e.Err)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// statusCarrier and codeCarrier let the classifier read optional fields
// from structured errors without depending on their concrete types.
type statusCarrier interface{ StatusCode() int }
type codeCarrier interface{ ErrorCode() string }

// IsCancellation reports whether err is a genuine caller abort, as opposed
// to a deadline expiry. Cancellations bypass classification, cooldown and
// retry entirely.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Classify maps an arbitrary provider error to a failure reason. The
// second return is false when the error is not a known transient provider
// failure and must propagate unchanged.
func Classify(err error) (Reason, bool) {
	if err == nil || IsCancellation(err) {
		return "", false
	}

	// Already tagged.
	var ce *ClassifiedError
	if errors.As(err, &ce) && ce.Reason.Valid() {
		return ce.Reason, true
	}

	// HTTP status.
	if status := HTTPStatusOf(err); status != 0 {
		if r, ok := reasonForStatus(status); ok {
			return r, true
		}
	}

	// Transport error codes.
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return ReasonTimeout, true
	}

	// Timeout by type or deadline.
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout, true
	}

	// Keyword fallback on the message.
	if r, ok := reasonForMessage(err.Error()); ok {
		return r, true
	}

	return "", false
}

// HTTPStatusOf extracts an HTTP status from err through the chain of
// structured shapes the classifier understands, returning 0 when none
// carries one.
func HTTPStatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) && ce.Status != 0 {
		return ce.Status
	}
	var sc statusCarrier
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

// ErrorCodeOf extracts a vendor error code from err, or "".
func ErrorCodeOf(err error) string {
	var he *HTTPError
	if errors.As(err, &he) && he.Code != "" {
		return he.Code
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) && ce.Code != "" {
		return ce.Code
	}
	var cc codeCarrier
	if errors.As(err, &cc) {
		return cc.ErrorCode()
	}
	return ""
}

func reasonForStatus(status int) (Reason, bool) {
	switch status {
	case 402:
		return ReasonBilling, true
	case 429:
		return ReasonRateLimit, true
	case 401, 403:
		return ReasonAuth, true
	case 408, 504:
		return ReasonTimeout, true
	case 400, 422:
		return ReasonFormat, true
	case 503:
		return ReasonUnavailable, true
	}
	if status >= 500 {
		return ReasonUnknown, true
	}
	return "", false
}

func reasonForMessage(msg string) (Reason, bool) {
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "insufficient credits"),
		strings.Contains(lower, "insufficient_quota"),
		strings.Contains(lower, "credit balance"),
		strings.Contains(lower, "payment required"),
		strings.Contains(lower, "quota"),
		strings.Contains(lower, "billing"):
		return ReasonBilling, true
	case strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "rate_limit"),
		strings.Contains(lower, "too many requests"):
		return ReasonRateLimit, true
	case strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "invalid api key"),
		strings.Contains(lower, "invalid_api_key"),
		strings.Contains(lower, "incorrect api key"),
		strings.Contains(lower, "forbidden"),
		strings.Contains(lower, "access denied"):
		return ReasonAuth, true
	case strings.Contains(lower, "timeout"),
		strings.Contains(lower, "timed out"),
		strings.Contains(lower, "deadline exceeded"),
		strings.Contains(lower, "connection reset"):
		return ReasonTimeout, true
	case strings.Contains(lower, "invalid_request_error"),
		strings.Contains(lower, "malformed"),
		strings.Contains(lower, "roles must alternate"):
		return ReasonFormat, true
	case strings.Contains(lower, "overloaded"),
		strings.Contains(lower, "server is busy"),
		strings.Contains(lower, "temporarily unavailable"),
		strings.Contains(lower, "service unavailable"):
		return ReasonUnavailable, true
	case strings.Contains(lower, "internal server error"):
		return ReasonUnknown, true
	}
	return "", false
}
