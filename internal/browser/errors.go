package browser

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnavailable = errors.New("browser unavailable")
	ErrClosed      = errors.New("browser closed")
	// ErrTransient marks in-page evaluation failures caused by a document
	// being replaced mid-call. Pollers treat them as "not yet".
	ErrTransient = errors.New("page context changed during evaluation")
)

// StatusError reports a document navigation that returned an HTTP error.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("navigation to %s returned HTTP %d", e.URL, e.Status)
}

// CheckStatus returns a *StatusError when resp carries a status of 400 or
// above. Same-document navigations (status 0) pass.
func CheckStatus(resp *Response) error {
	if resp == nil || resp.Status < 400 {
		return nil
	}
	return &StatusError{URL: resp.URL, Status: resp.Status}
}

// NavigationError wraps a failure reported by the browser before any
// response arrived (DNS, TLS, aborted).
type NavigationError struct {
	URL    string
	Reason string
	Err    error
}

func (e *NavigationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("navigate %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("navigate %s: %s", e.URL, e.Reason)
}

func (e *NavigationError) Unwrap() error { return e.Err }

func IsStatusError(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

// ActionError reports an element action that could not be performed,
// usually because the element never became visible within the bound.
type ActionError struct {
	Action   string
	Selector string
	Timeout  time.Duration
	Reason   string
	Err      error
}

func (e *ActionError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Action, e.Selector, e.Reason)
	if e.Timeout > 0 {
		msg += fmt.Sprintf(" (waited %s)", e.Timeout)
	}
	return msg
}

func (e *ActionError) Unwrap() error { return e.Err }
