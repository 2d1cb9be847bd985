package recipesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/platera/recipesync/diskcache"
	"github.com/platera/recipesync/memcache"
	"github.com/platera/recipesync/remote"
)

// Engine reconciles the set of entities known to exist remotely against
// the set present locally, fetching the difference in bounded-concurrency
// batches and backfilling missing photo blobs.
type Engine struct {
	store       remote.Store
	entities    *memcache.Cache[*remote.Record]
	photos      *diskcache.Cache
	entityBatch int
	photoBatch  int
	logger      *slog.Logger
	flight      singleflight.Group
}

// New creates an engine over its three collaborators. All of them are
// required; construct them once at process start and pass them in.
func New(store remote.Store, entities *memcache.Cache[*remote.Record], photos *diskcache.Cache, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if entities == nil {
		return nil, errors.New("entity cache is nil")
	}
	if photos == nil {
		return nil, errors.New("photo cache is nil")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.entityBatch < 1 {
		return nil, errors.New("entity batch size must be >= 1")
	}
	if cfg.photoBatch < 1 {
		return nil, errors.New("photo batch size must be >= 1")
	}
	return &Engine{
		store:       store,
		entities:    entities,
		photos:      photos,
		entityBatch: cfg.entityBatch,
		photoBatch:  cfg.photoBatch,
		logger:      cfg.logger,
	}, nil
}

func (e *Engine) log() *slog.Logger {
	if e.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.logger
}

// Sync fetches every entity the remote store knows about that is absent
// from localIDs, populating the entity cache as results arrive.
//
// The remote id set is enumerated with a paginated id-only projection;
// a failure there is fatal and returned to the caller. Per-entity fetch
// failures are logged and excluded from the result, never surfaced.
// When nothing is missing, Sync returns without issuing a single get.
// Result order is unspecified.
func (e *Engine) Sync(ctx context.Context, localIDs map[string]struct{}) ([]*remote.Record, error) {
	op := uuid.NewString()[:8]

	remoteIDs, err := e.enumerateRemoteIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate remote ids: %w", err)
	}

	missing := make([]string, 0)
	for id := range remoteIDs {
		if _, ok := localIDs[id]; !ok {
			missing = append(missing, id)
		}
	}
	e.log().Info("sync diff computed", "op", op,
		"remote", len(remoteIDs), "local", len(localIDs), "missing", len(missing))
	if len(missing) == 0 {
		return nil, nil
	}

	fetched := e.fetchBatched(ctx, op, missing)
	e.log().Info("sync complete", "op", op, "fetched", len(fetched), "missing", len(missing))
	return fetched, nil
}

// fetchBatched downloads the given ids in fixed-size batches. All members
// of a batch are fetched concurrently; batches run strictly one after
// another, bounding peak concurrency to the batch size.
func (e *Engine) fetchBatched(ctx context.Context, op string, ids []string) []*remote.Record {
	var out []*remote.Record
	for batch := range batches(ids, e.entityBatch) {
		results := make([]*remote.Record, len(batch))
		var g errgroup.Group
		for i, id := range batch {
			g.Go(func() error {
				rec, err := e.store.Get(ctx, id)
				if err != nil {
					e.log().Warn("entity fetch failed, skipping", "op", op, "id", id, "err", err)
					return nil
				}
				results[i] = rec
				return nil
			})
		}
		_ = g.Wait()
		for _, rec := range results {
			if rec == nil {
				continue
			}
			e.entities.Put(rec.ID, rec)
			out = append(out, rec)
		}
	}
	return out
}

// SyncMissingPhotos stores photo blobs for whichever of the given records
// the disk cache has no blobs for. Blob payloads are large, so the batch
// size is smaller than the entity pass. Per-owner failures are logged and
// skipped. It returns the ids that were backfilled.
func (e *Engine) SyncMissingPhotos(ctx context.Context, recs []*remote.Record) ([]string, error) {
	op := uuid.NewString()[:8]

	have := e.photos.AllOwnerIDsWithBlobs()
	need := make([]string, 0, len(recs))
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		if _, ok := have[rec.ID]; !ok {
			need = append(need, rec.ID)
		}
	}
	e.log().Info("photo diff computed", "op", op, "candidates", len(recs), "missing", len(need))
	if len(need) == 0 {
		return nil, nil
	}

	var done []string
	for batch := range batches(need, e.photoBatch) {
		stored := make([]string, len(batch))
		var g errgroup.Group
		for i, id := range batch {
			g.Go(func() error {
				assets, err := e.store.GetAssets(ctx, id)
				if err != nil {
					e.log().Warn("asset fetch failed, skipping", "op", op, "id", id, "err", err)
					return nil
				}
				blobs := make(map[diskcache.Kind][]byte, len(assets))
				for kind, data := range assets {
					blobs[diskcache.Kind(kind)] = data
				}
				if err := e.photos.Store(id, blobs); err != nil {
					e.log().Warn("photo store failed, skipping", "op", op, "id", id, "err", err)
					return nil
				}
				stored[i] = id
				return nil
			})
		}
		_ = g.Wait()
		for _, id := range stored {
			if id != "" {
				done = append(done, id)
			}
		}
	}
	e.log().Info("photo backfill complete", "op", op, "stored", len(done))
	return done, nil
}

// Fetch is the direct fetch-by-id path for cache misses. Concurrent calls
// for the same id are deduplicated with singleflight; a successful fetch
// populates the entity cache.
func (e *Engine) Fetch(ctx context.Context, id string) (*remote.Record, error) {
	if ent, ok := e.entities.Get(id); ok && !e.entities.Stale(id) {
		return ent.Value, nil
	}
	v, err, _ := e.flight.Do(id, func() (any, error) {
		rec, err := e.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		e.entities.Put(id, rec)
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*remote.Record), nil
}

func (e *Engine) enumerateRemoteIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	cursor := remote.Cursor{}
	for {
		page, next, err := e.store.ListIDs(ctx, cursor)
		if err != nil {
			return nil, err
		}
		for _, id := range page {
			ids[id] = struct{}{}
		}
		if next.IsZero() {
			return ids, nil
		}
		cursor = next
	}
}

// batches yields fixed-size chunks of ids; the final chunk may be short.
func batches(ids []string, size int) func(yield func([]string) bool) {
	return func(yield func([]string) bool) {
		for start := 0; start < len(ids); start += size {
			end := min(start+size, len(ids))
			if !yield(ids[start:end]) {
				return
			}
		}
	}
}
