package shed

import "github.com/cockroachdb/errors"

var (
	// ErrResourceNotFound indicates a resource link name absent from the map.
	ErrResourceNotFound = errors.New("shed: resource not found")

	// ErrCodeOutOfRange indicates a code index outside [0, len(code)).
	ErrCodeOutOfRange = errors.New("shed: code index out of range")
)
