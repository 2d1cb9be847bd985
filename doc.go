// Package recipesync keeps local mirrors of a remote, eventually-consistent
// record store in sync: an in-memory entity cache, a size-budgeted disk
// cache for photo blobs, and a reconciliation engine that fetches whatever
// is missing locally with bounded concurrency.
//
// The [Engine] is constructed once at process start with its collaborators
// injected explicitly; there are no package-level singletons.
//
// # Quick Start
//
// Wire the caches and engine over a remote store client:
//
//	client, err := remote.NewClient(transport)
//	if err != nil {
//	    return err
//	}
//	entities, _ := memcache.New[*remote.Record]()
//	photos, err := diskcache.New("/var/cache/recipes")
//	if err != nil {
//	    return err
//	}
//	engine, err := recipesync.New(client, entities, photos)
//	if err != nil {
//	    return err
//	}
//
// Reconcile against the ids already known locally:
//
//	fresh, err := engine.Sync(ctx, localIDs)
//	if err != nil {
//	    return err
//	}
//	_, _ = engine.SyncMissingPhotos(ctx, fresh)
//
// Per-item fetch failures are logged and skipped; only a failure to
// enumerate the remote id set makes Sync return an error.
package recipesync
