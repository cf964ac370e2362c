package notify

import (
	"errors"
	"fmt"
)

var (
	// ErrTemplateNotFound is returned when an enqueue request references a
	// template id or trigger event with no matching template.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrTemplateInactive is returned when an enqueue request references a
	// deactivated template. Jobs already queued against it are unaffected.
	ErrTemplateInactive = errors.New("template is inactive")
)

// ValidationError rejects a malformed template or enqueue request before it
// reaches the queue.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

func Validationf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a synchronous request-time rejection,
// including the template sentinels above.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrTemplateNotFound) || errors.Is(err, ErrTemplateInactive)
}

// TransientError marks a channel send failure as recoverable, routing the
// entry through the retry/backoff path instead of terminal failure.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
