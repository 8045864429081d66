package timeline

import "errors"

var (
	// ErrBusy is returned when a command is issued while a request is in flight.
	ErrBusy = errors.New("a request is already in flight")
	// ErrStaleResult is returned when a result does not match the in-flight token.
	ErrStaleResult = errors.New("result does not belong to the in-flight request")
	// ErrWrongPhase is returned when a command is not valid in the current phase.
	ErrWrongPhase = errors.New("command not valid in current phase")
	// ErrNoYear is returned when the timeline has no established year to advance from.
	ErrNoYear = errors.New("timeline has no established year")
	// ErrRequestFailed is returned by Apply after a failed result was recorded.
	ErrRequestFailed = errors.New("request failed")
	// ErrFailed is returned for any command after a failure, until Reset.
	ErrFailed = errors.New("game failed, reset to start a new one")
)

// ValidationError is a local input error. It never reaches the narrator and
// its message is safe to show to the player.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
