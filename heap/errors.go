package heap

import "github.com/cockroachdb/errors"

var (
	// ErrAddressOutOfRange indicates a read, write or free outside [0, size).
	ErrAddressOutOfRange = errors.New("heap: address out of range")

	// ErrAllocationFailed indicates that no run of free cells was large enough,
	// even after the single expand-and-retry.
	ErrAllocationFailed = errors.New("heap: allocation failed")

	// ErrExpansionRejected indicates a non-positive growth request.
	ErrExpansionRejected = errors.New("heap: expansion rejected")

	// ErrInvalidLength indicates a non-positive count or length argument.
	ErrInvalidLength = errors.New("heap: invalid length")
)
