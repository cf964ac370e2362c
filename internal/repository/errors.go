package repository

import "errors"

var (
	// ErrNotFound is returned when the referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName is returned when a template name collides with an
	// existing one.
	ErrDuplicateName = errors.New("template name already exists")

	// ErrTemplateInUse is returned when deleting a template that queue
	// entries or delivery log rows still reference. Such templates can
	// only be deactivated.
	ErrTemplateInUse = errors.New("template is referenced")

	// ErrInvalidState is returned when a status transition is attempted
	// from a status that does not admit it, e.g. cancelling an entry that
	// is already processing.
	ErrInvalidState = errors.New("invalid state transition")
)
