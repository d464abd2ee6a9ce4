package contractCaller

import "errors"

// ErrImplementationNotFound is returned when neither the EIP-1967 slot nor
// its legacy fallback holds an address
var ErrImplementationNotFound = errors.New("proxy slot is empty")
