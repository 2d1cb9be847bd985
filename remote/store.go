// Package remote defines the contract for the hosted record store and the
// exactly-once guard wrapped around its callback-based transport.
package remote

import (
	"context"
	"time"
)

// Record is a local copy of a remote domain record. The remote store owns
// the ground truth; callers must treat a Record as a snapshot, never as a
// handle for in-place mutation of remote state.
type Record struct {
	ID        string
	Fields    map[string]any
	CreatedAt time.Time
}

// Clone returns a deep-enough copy: the Fields map is duplicated so the
// caller can mutate its copy without aliasing cached state. Values inside
// the map are shared.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
	}
	if r.Fields != nil {
		out.Fields = make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

// Cursor is an opaque continuation token for paginated id enumeration.
// The zero Cursor requests the first page; a zero Cursor returned from
// ListIDs signals the final page.
type Cursor struct {
	Token string
}

// IsZero reports whether the cursor is the start-or-end marker.
func (c Cursor) IsZero() bool {
	return c.Token == ""
}

// Store is the synchronous view of the remote record service.
//
// Implementations must return ErrNotFound for absent ids so callers can
// distinguish absence from failure, and must accept caller-chosen ids on
// Put so writes are idempotent.
type Store interface {
	// Get returns the record for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Put creates or replaces the record, returning the stored form.
	Put(ctx context.Context, rec *Record) (*Record, error)

	// ListIDs returns one page of record ids using an id-only projection.
	// Pass the zero Cursor to start; a zero next cursor ends iteration.
	ListIDs(ctx context.Context, cursor Cursor) (ids []string, next Cursor, err error)

	// GetAssets returns the binary assets (photos) attached to a record,
	// keyed by asset kind, or ErrNotFound if the record is absent.
	GetAssets(ctx context.Context, id string) (map[string][]byte, error)
}

// Transport is the raw callback-based client for the record service.
//
// The completion callback for any call MAY be invoked more than once under
// certain transport error conditions. Callers must tolerate duplicates;
// Client does so by wrapping every call in a Guard.
type Transport interface {
	Fetch(id string, done func(*Record, error))
	Save(rec *Record, done func(*Record, error))
	Query(cursor Cursor, done func(ids []string, next Cursor, err error))
	FetchAssets(id string, done func(map[string][]byte, error))
}
