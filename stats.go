package recipesync

import (
	"context"
	"fmt"
)

// Stats summarizes one reconciliation snapshot. It is computed fresh on
// every call and never cached.
type Stats struct {
	// RemoteIDs is the number of ids the remote store reported.
	RemoteIDs int
	// LocalIDs is the number of ids the caller already holds.
	LocalIDs int
	// MissingIDs is the number of remote ids absent locally.
	MissingIDs int
	// PhotoComplete is the number of remote ids with blobs on disk.
	PhotoComplete int
	// PhotoMissing is the number of remote ids without blobs on disk.
	PhotoMissing int
}

// Stats enumerates the remote id set and reports how far local state lags
// behind it. Only the enumeration can fail.
func (e *Engine) Stats(ctx context.Context, localIDs map[string]struct{}) (Stats, error) {
	remoteIDs, err := e.enumerateRemoteIDs(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("enumerate remote ids: %w", err)
	}

	have := e.photos.AllOwnerIDsWithBlobs()
	s := Stats{
		RemoteIDs: len(remoteIDs),
		LocalIDs:  len(localIDs),
	}
	for id := range remoteIDs {
		if _, ok := localIDs[id]; !ok {
			s.MissingIDs++
		}
		if _, ok := have[id]; ok {
			s.PhotoComplete++
		} else {
			s.PhotoMissing++
		}
	}
	return s, nil
}
