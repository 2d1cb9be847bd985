package recipesync

import "github.com/platera/recipesync/remote"

// Errors re-exported from remote.
var (
	// ErrNotFound is returned when a record does not exist remotely.
	ErrNotFound = remote.ErrNotFound

	// ErrTransient is returned for network failures and timeouts.
	ErrTransient = remote.ErrTransient

	// ErrPermanent is returned for malformed or undecodable records.
	ErrPermanent = remote.ErrPermanent

	// ErrExhausted is returned when a local resource limit prevents an
	// operation from completing.
	ErrExhausted = remote.ErrExhausted
)
