package eprocure

import (
	"errors"
	"fmt"
)

// ErrCaptchaBlocked is returned when the advanced search is captcha gated
// and the home search fallback is captcha gated as well.
var ErrCaptchaBlocked = errors.New("eprocure: search blocked by captcha")

// HTTPError is a non-2xx response that was either not retryable or still
// failing after every retry.
type HTTPError struct {
	Method   string
	Url      string
	Status   int
	Attempts int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: http status %d after %d attempt(s)", e.Method, e.Url, e.Status, e.Attempts)
}

// NetworkError is a transport failure, Err is the last underlying error.
type NetworkError struct {
	Method   string
	Url      string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v after %d attempt(s)", e.Method, e.Url, e.Err, e.Attempts)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StructuralError means a page the navigator depends on did not have the
// shape it expected, usually because the portal markup changed.
type StructuralError struct {
	Step    string
	Message string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("eprocure: %s: %s", e.Step, e.Message)
}

// ValidationError is a known non-captcha validation message the portal
// rendered in response to the advanced search submission.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("eprocure: search rejected: %s", e.Message)
}
