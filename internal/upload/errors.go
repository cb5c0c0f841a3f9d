package upload

import "errors"

var (
	// ErrUnknownUploadType is returned when no definition is registered for an upload type.
	ErrUnknownUploadType = errors.New("unknown upload type")

	// ErrInvalidConfig is returned when an upload type definition is malformed.
	ErrInvalidConfig = errors.New("invalid upload type configuration")

	// ErrUniqueViolation must be returned (or wrapped) by a Loader when the
	// store rejects a record because an equal key already exists.
	ErrUniqueViolation = errors.New("record already exists")

	// ErrNotFound must be returned (or wrapped) by a Loader when a change or
	// delete targets a record the store does not hold.
	ErrNotFound = errors.New("record not found")
)
