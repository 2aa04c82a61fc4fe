package store

import "errors"

var (
	// ErrNotFound is returned when a task or template id is absent.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned on an illegal status transition.
	ErrConflict = errors.New("illegal status transition")

	// ErrDuplicateTitle is returned when saving a task whose title is
	// already held by an active task.
	ErrDuplicateTitle = errors.New("duplicate active task title")

	// ErrBuiltinTemplate is returned on attempts to modify or delete a
	// built-in template.
	ErrBuiltinTemplate = errors.New("built-in templates are immutable")

	// ErrAlreadyExists is returned when creating a template with a taken id.
	ErrAlreadyExists = errors.New("entity already exists")
)
