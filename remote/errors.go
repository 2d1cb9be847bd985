package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors classifying remote record store failures.
var (
	// ErrNotFound is returned when a record does not exist remotely.
	// Reconciliation treats this as exclusion, not failure.
	ErrNotFound = errors.New("remote: not found")

	// ErrTransient is returned for network failures and timeouts.
	// Safe to retry on a later sync pass; never retried within one.
	ErrTransient = errors.New("remote: transient failure")

	// ErrPermanent is returned for malformed or undecodable records.
	// Retrying without data correction cannot succeed.
	ErrPermanent = errors.New("remote: permanent failure")

	// ErrExhausted is returned when a local resource limit (disk, quota)
	// prevents an operation from completing.
	ErrExhausted = errors.New("remote: resource exhausted")
)

// Classify maps an arbitrary error onto the sentinel taxonomy.
//
// Errors already carrying a sentinel pass through unchanged. Context
// deadline and cancellation errors, along with net timeouts, classify as
// transient; anything else is permanent.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrTransient),
		errors.Is(err, ErrPermanent),
		errors.Is(err, ErrExhausted):
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return fmt.Errorf("%w: %v", ErrPermanent, err)
}
