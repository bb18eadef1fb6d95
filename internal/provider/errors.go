package provider

import (
	"fmt"
	"strings"
	"time"
)

// FailoverReason categorizes why a provider request failed, for retry and
// classification decisions made by the orchestrator (never by the
// provider itself — spec 4.D: "the orchestrator, not the provider,
// applies retries").
type FailoverReason string

const (
	FailoverBilling          FailoverReason = "billing"
	FailoverRateLimit        FailoverReason = "rate_limit"
	FailoverAuth             FailoverReason = "auth"
	FailoverTimeout          FailoverReason = "timeout"
	FailoverServerError      FailoverReason = "server_error"
	FailoverInvalidRequest   FailoverReason = "invalid_request"
	FailoverModelUnavailable FailoverReason = "model_unavailable"
	FailoverContentFilter    FailoverReason = "content_filter"
	FailoverUnknown          FailoverReason = "unknown"
)

// IsRetryable reports whether retrying the same provider/model may
// succeed.
func (r FailoverReason) IsRetryable() bool {
	switch r {
	case FailoverRateLimit, FailoverTimeout, FailoverServerError:
		return true
	default:
		return false
	}
}

// Error is a structured provider failure. RetryAfter, when non-nil, is
// the provider-supplied delay hint for a rate-limit failure; the
// orchestrator consumes it, the provider never sleeps on its own.
type Error struct {
	Reason     FailoverReason
	Provider   string
	Model      string
	Status     int
	Code       string
	Message    string
	RetryAfter *time.Duration
	Cause      error
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Reason))
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError wraps cause with provider/model context, classifying it via
// classify.
func NewError(providerName, model string, cause error, classify func(error) FailoverReason) *Error {
	err := &Error{Provider: providerName, Model: model, Cause: cause, Reason: FailoverUnknown}
	if cause != nil {
		err.Message = cause.Error()
		if classify != nil {
			err.Reason = classify(cause)
		}
	}
	return err
}
