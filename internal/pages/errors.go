package pages

import (
	"errors"
	"fmt"
)

// BlockedError means a negative marker was still present when the blocked
// bound expired: the route is wrong or the session is not authorized.
type BlockedError struct {
	Marker   string
	Selector string
	URL      string
	Count    int
}

func (e *BlockedError) Error() string {
	msg := fmt.Sprintf("page blocked: %s marker (%s) matched %d element(s)", e.Marker, e.Selector, e.Count)
	if e.URL != "" {
		msg += " at " + e.URL
	}
	return msg
}

func IsBlocked(err error) bool {
	var be *BlockedError
	return errors.As(err, &be)
}

// StepError is a mandatory navigation step that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("navigation step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
