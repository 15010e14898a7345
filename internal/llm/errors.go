package llm

import (
	"encoding/json"
	"fmt"
	"time"
)

// ErrRateLimit is returned when the model host answers 429. RetryAfter
// carries the host's hint, zero when it sent none.
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	if e.RetryAfter > 0 {
		return withCause(fmt.Sprintf("model rate limit reached, retry in %s", e.RetryAfter), e.Err)
	}
	return withCause("model rate limit reached", e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrInvalidResponse means the model's reply could not be used as an
// evaluation: it was not JSON or it broke the request schema. Content
// keeps the raw reply for logging.
type ErrInvalidResponse struct {
	Content json.RawMessage
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return withCause("unusable model reply", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrProviderUnavailable covers transport failures and 5xx answers.
// Evaluator callers treat it as the signal to fall back to mock scoring.
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	return withCause("model provider unreachable", e.Err)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrMaxTokensExceeded means the reply stopped at the token cap before the
// evaluation JSON was complete.
type ErrMaxTokensExceeded struct {
	Content json.RawMessage
}

func (e *ErrMaxTokensExceeded) Error() string {
	return fmt.Sprintf("model reply cut off at token limit after %d bytes", len(e.Content))
}

func withCause(msg string, cause error) string {
	if cause == nil {
		return msg
	}
	return msg + ": " + cause.Error()
}
