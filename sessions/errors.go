package sessions

import "errors"

var (
	// ErrDuplicateID is returned by Registry.Create when the session id is
	// already registered.
	ErrDuplicateID = errors.New("session id already exists")

	// ErrCapacityExceeded is returned by Registry.Create when the registry
	// is configured with a maximum and that maximum is already reached.
	ErrCapacityExceeded = errors.New("maximum concurrent session limit reached")

	// ErrNotFound is returned when the session id is absent from the registry.
	ErrNotFound = errors.New("session not found")

	// ErrNotAParticipant is returned by Session.Submit when the submitter
	// was never in the session's target list, or when the session has been
	// closed to further submissions.
	ErrNotAParticipant = errors.New("not a participant of this session")

	// ErrDuplicateSubmission is returned by Session.Submit when the
	// participant already submitted. Deliberately not silent: callers
	// surface this to the user.
	ErrDuplicateSubmission = errors.New("feedback already submitted")
)
