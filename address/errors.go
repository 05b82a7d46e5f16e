package address

import "github.com/cockroachdb/errors"

// ErrInvalidAddress is returned in strict mode when an address cannot be
// parsed into a non-negative cell index.
var ErrInvalidAddress = errors.New("address: invalid address")
