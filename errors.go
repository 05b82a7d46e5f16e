package procmem

import "github.com/cockroachdb/errors"

var (
	// ErrSerializationFailed indicates a value could not be encoded to, or
	// decoded from, its textual form.
	ErrSerializationFailed = errors.New("procmem: serialization failed")

	// ErrAllocationFailed indicates no contiguous heap run could hold a
	// value even after the single expansion.
	ErrAllocationFailed = errors.New("procmem: allocation failed")

	// ErrSnapshotDisabled indicates a snapshot operation without a configured
	// snapshot store.
	ErrSnapshotDisabled = errors.New("procmem: snapshot store not configured")
)
