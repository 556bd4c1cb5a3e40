package repository

import "errors"

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a uniqueness constraint rejected the write.
	ErrConflict = errors.New("repository: conflict")
	// ErrReferenced indicates a foreign key blocked the write or delete.
	ErrReferenced = errors.New("repository: referenced")
	// ErrInvalidArgument indicates the store rejected malformed values.
	ErrInvalidArgument = errors.New("repository: invalid argument")
)
