// File: api/schemas/errors.go
package schemas

import "fmt"

// ValidationError reports a malformed step: an unrecognized tool or a
// missing/mistyped required argument. It is produced before any driver
// dispatch happens.
type ValidationError struct {
	StepIndex int
	Detail    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %d invalid: %s", e.StepIndex, e.Detail)
}

// ElementNotFoundError indicates no element matched the selector within the
// operation timeout.
type ElementNotFoundError struct {
	Selector string
	Cause    error
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("no element matched selector %q within timeout", e.Selector)
}

func (e *ElementNotFoundError) Unwrap() error { return e.Cause }

// ElementNotActionableError indicates the element was present but could not
// be interacted with (obscured, disabled, detached mid-action).
type ElementNotActionableError struct {
	Selector string
	Cause    error
}

func (e *ElementNotActionableError) Error() string {
	return fmt.Sprintf("element %q found but not actionable: %v", e.Selector, e.Cause)
}

func (e *ElementNotActionableError) Unwrap() error { return e.Cause }

// NavigationError indicates a page load failed (DNS, network, bad URL, or
// load timeout).
type NavigationError struct {
	URL   string
	Cause error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %q failed: %v", e.URL, e.Cause)
}

func (e *NavigationError) Unwrap() error { return e.Cause }

// TimeoutError indicates a wait_for condition was not met in time.
type TimeoutError struct {
	Selector string
	State    ElementState
	Cause    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for selector %q to become %s", e.Selector, e.State)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// SessionError indicates the browser session could not be created or was
// lost mid-run. Unlike the step-level errors above, a SessionError raised
// during setup or teardown is fatal for the whole run.
type SessionError struct {
	Op    string
	Cause error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("browser session %s failed: %v", e.Op, e.Cause)
}

func (e *SessionError) Unwrap() error { return e.Cause }
