package booking

import (
	"errors"
	"fmt"
)

// ErrMissingPriorSelection indicates a handler ran before an earlier step of
// the flow populated its field. The session cannot be trusted; the user is
// asked to restart.
var ErrMissingPriorSelection = errors.New("booking: prior selection missing")

// ValidationError rejects a single user input. The session stays where it is
// and the user is re-prompted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("booking: invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CommitStep identifies which reservation write failed.
type CommitStep string

const (
	StepCalendar CommitStep = "calendar"
	StepLedger   CommitStep = "ledger"
	StepNotify   CommitStep = "notify"
)

// CommitError wraps a failure of one reservation write step. A calendar-step
// failure aborts the commit; ledger and notify failures are secondary, the
// reservation already exists on the calendar.
type CommitError struct {
	Step CommitStep
	Err  error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("booking: commit %s: %v", e.Step, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// CancelError wraps a cancellation failure: the event no longer exists or the
// backend rejected the delete.
type CancelError struct {
	EventID string
	Err     error
}

func (e *CancelError) Error() string {
	return fmt.Sprintf("booking: cancel event %s: %v", e.EventID, e.Err)
}

func (e *CancelError) Unwrap() error { return e.Err }
