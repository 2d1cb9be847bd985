// Package diskcache provides a size-budgeted, persistent cache of photo
// blobs keyed by owning-entity id, with least-recently-used eviction.
//
// Layout: one directory per owner id under the cache root, one file per
// blob kind inside it, and a single metadata document at the root. Blob
// bytes pass through a configurable Codec on the write path (lossy JPEG
// re-encode by default) and are digest-verified on the read path;
// corrupted files are deleted rather than served.
package diskcache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	digest "github.com/opencontainers/go-digest"
)

// Kind identifies one of the fixed blob slots an owner may hold.
type Kind string

// Blob kinds stored per owner. File names on disk match the kind.
const (
	KindOriginal Kind = "original"
	KindDisplay  Kind = "display"
	KindThumb    Kind = "thumb"
)

// Kinds lists all valid blob kinds.
var Kinds = []Kind{KindOriginal, KindDisplay, KindThumb}

// ErrNotCached is returned by Load when no entry exists for the owner.
var ErrNotCached = errors.New("diskcache: owner not cached")

const (
	defaultMaxBytes    = 500 << 20 // 500 MB
	defaultTargetRatio = 0.8
	defaultDirPerm     = 0o700
	defaultFilePerm    = 0o600
)

// config holds Cache configuration.
type config struct {
	maxBytes    int64
	targetRatio float64
	codec       Codec
	dirPerm     os.FileMode
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Cache.
type Option func(*config)

// WithMaxBytes sets the cache size budget. Values < 0 are invalid.
// Use 0 to disable the limit. Defaults to 500 MB.
func WithMaxBytes(n int64) Option {
	return func(c *config) {
		c.maxBytes = n
	}
}

// WithEvictTargetRatio sets the hysteresis ratio: eviction shrinks the
// cache to ratio*budget rather than exactly the budget, so repeated small
// writes do not thrash. Must be in (0,1]. Defaults to 0.8.
func WithEvictTargetRatio(r float64) Option {
	return func(c *config) {
		c.targetRatio = r
	}
}

// WithCodec sets the blob codec used on the write path. Defaults to
// JPEGCodec at the default quality.
func WithCodec(codec Codec) Option {
	return func(c *config) {
		c.codec = codec
	}
}

// WithDirPerm sets the permissions for owner directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(c *config) {
		c.dirPerm = mode
	}
}

// WithLogger sets the logger. If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// Cache is a disk-backed blob cache. All metadata mutation is serialized
// by a single mutex; blob file reads happen outside it.
type Cache struct {
	dir         string
	maxBytes    int64
	targetRatio float64
	codec       Codec
	dirPerm     os.FileMode
	logger      *slog.Logger
	now         func() time.Time

	mu   sync.Mutex
	meta *metadata
}

// New opens (or creates) a cache rooted at dir. A corrupted metadata
// document is discarded and the cache starts empty.
func New(dir string, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache dir is empty")
	}
	cfg := config{
		maxBytes:    defaultMaxBytes,
		targetRatio: defaultTargetRatio,
		codec:       JPEGCodec{},
		dirPerm:     defaultDirPerm,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxBytes < 0 {
		return nil, errors.New("max bytes must be >= 0")
	}
	if cfg.targetRatio <= 0 || cfg.targetRatio > 1 {
		return nil, errors.New("evict target ratio must be in (0,1]")
	}
	if cfg.codec == nil {
		return nil, errors.New("codec is nil")
	}
	if err := os.MkdirAll(dir, cfg.dirPerm); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{
		dir:         dir,
		maxBytes:    cfg.maxBytes,
		targetRatio: cfg.targetRatio,
		codec:       cfg.codec,
		dirPerm:     cfg.dirPerm,
		logger:      cfg.logger,
		now:         cfg.now,
		meta:        loadMetadata(dir),
	}, nil
}

func (c *Cache) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Store writes the given blobs for ownerID, replacing any prior entry.
//
// Each blob is passed through the codec and written to its kind's file.
// A failure to encode or write one blob is logged and leaves that blob
// absent from the entry; it never fails the whole operation. Metadata is
// persisted synchronously before Store returns, and an eviction pass runs
// if the write pushed the cache over budget.
func (c *Cache) Store(ownerID string, blobs map[Kind][]byte) error {
	if ownerID == "" {
		return errors.New("owner id is empty")
	}
	ownerDir := sanitizeOwnerID(ownerID)
	fullDir := filepath.Join(c.dir, ownerDir)
	if err := os.MkdirAll(fullDir, c.dirPerm); err != nil {
		return fmt.Errorf("create owner dir: %w", err)
	}

	written := make(map[Kind]blobInfo, len(blobs))
	for kind, data := range blobs {
		if !validKind(kind) {
			c.log().Warn("skipping unknown blob kind", "owner", ownerID, "kind", kind)
			continue
		}
		encoded, err := c.codec.EncodeForStore(data)
		if err != nil {
			c.log().Warn("blob encode failed, omitting", "owner", ownerID, "kind", kind, "err", err)
			continue
		}
		path := filepath.Join(fullDir, string(kind))
		if err := os.WriteFile(path, encoded, defaultFilePerm); err != nil {
			c.log().Warn("blob write failed, omitting", "owner", ownerID, "kind", kind, "err", err)
			continue
		}
		written[kind] = blobInfo{
			SizeBytes: int64(len(encoded)),
			Digest:    digest.SHA256.FromBytes(encoded),
			Codec:     c.codec.Name(),
		}
	}

	now := c.now()
	var size int64
	for _, info := range written {
		size += info.SizeBytes
	}

	c.mu.Lock()
	if prior, ok := c.meta.Entries[ownerID]; ok {
		c.meta.TotalSizeBytes -= prior.SizeBytes
	}
	c.meta.Entries[ownerID] = &entry{
		OwnerID:        ownerID,
		Dir:            ownerDir,
		Blobs:          written,
		SizeBytes:      size,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	c.meta.TotalSizeBytes += size
	if err := c.meta.persist(c.dir); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("persist metadata: %w", err)
	}
	over := c.maxBytes > 0 && c.meta.TotalSizeBytes > c.maxBytes
	c.mu.Unlock()

	if over {
		if err := c.evict(); err != nil {
			return fmt.Errorf("evict: %w", err)
		}
	}
	return nil
}

// Load returns the blobs stored for ownerID, keyed by kind. Reading an
// entry touches its last-access time and persists metadata so eviction
// order reflects real recency across restarts. Blob files whose digest no
// longer matches are deleted and omitted from the result.
func (c *Cache) Load(ownerID string) (map[Kind][]byte, error) {
	c.mu.Lock()
	ent, ok := c.meta.Entries[ownerID]
	if !ok {
		c.mu.Unlock()
		return nil, ErrNotCached
	}
	// Monotonic non-decreasing: never move the access time backwards.
	if now := c.now(); now.After(ent.LastAccessedAt) {
		ent.LastAccessedAt = now
	}
	ownerDir := ent.Dir
	infos := make(map[Kind]blobInfo, len(ent.Blobs))
	for kind, info := range ent.Blobs {
		infos[kind] = info
	}
	if err := c.meta.persist(c.dir); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("persist metadata: %w", err)
	}
	c.mu.Unlock()

	out := make(map[Kind][]byte, len(infos))
	for kind, info := range infos {
		path := filepath.Join(c.dir, ownerDir, string(kind))
		data, err := os.ReadFile(path)
		if err != nil {
			c.log().Warn("blob read failed, omitting", "owner", ownerID, "kind", kind, "err", err)
			continue
		}
		if info.Digest != "" && digest.SHA256.FromBytes(data) != info.Digest {
			c.log().Warn("blob digest mismatch, deleting", "owner", ownerID, "kind", kind)
			_ = os.Remove(path)
			continue
		}
		decoded, err := c.decodeBlob(info.Codec, data)
		if err != nil {
			c.log().Warn("blob decode failed, omitting", "owner", ownerID, "kind", kind, "err", err)
			continue
		}
		out[kind] = decoded
	}
	return out, nil
}

func (c *Cache) decodeBlob(name string, data []byte) ([]byte, error) {
	if name == c.codec.Name() {
		return c.codec.DecodeFromStore(data)
	}
	codec, err := codecByName(name)
	if err != nil {
		return nil, err
	}
	return codec.DecodeFromStore(data)
}

// Has reports whether an entry with at least one blob exists for ownerID.
func (c *Cache) Has(ownerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.meta.Entries[ownerID]
	return ok && len(ent.Blobs) > 0
}

// AllOwnerIDsWithBlobs returns the set of owner ids that have at least
// one blob on disk.
func (c *Cache) AllOwnerIDsWithBlobs() map[string]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]struct{}, len(c.meta.Entries))
	for id, ent := range c.meta.Entries {
		if len(ent.Blobs) > 0 {
			out[id] = struct{}{}
		}
	}
	return out
}

// SizeBytes returns the current total size of stored blobs.
func (c *Cache) SizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta.TotalSizeBytes
}

// MaxBytes returns the configured budget (0 = unlimited).
func (c *Cache) MaxBytes() int64 {
	return c.maxBytes
}

// Clear removes every entry and blob directory and resets metadata.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ent := range c.meta.Entries {
		if err := removeOwnerDir(c.dir, ent.Dir); err != nil {
			return fmt.Errorf("remove owner dir: %w", err)
		}
	}
	c.meta = newMetadata()
	c.meta.LastCleanupAt = c.now()
	if err := c.meta.persist(c.dir); err != nil {
		return fmt.Errorf("persist metadata: %w", err)
	}
	return nil
}

func validKind(k Kind) bool {
	switch k {
	case KindOriginal, KindDisplay, KindThumb:
		return true
	}
	return false
}

// sanitizeOwnerID maps an owner id to a safe directory name. Characters
// outside [A-Za-z0-9._-] are replaced; if any replacement happened, an
// 8-hex sha256 suffix keeps distinct ids from colliding.
func sanitizeOwnerID(id string) string {
	var b strings.Builder
	changed := false
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
			changed = true
		}
	}
	name := b.String()
	if name == "" || name == "." || name == ".." {
		changed = true
		name = "owner"
	}
	if changed {
		sum := sha256.Sum256([]byte(id))
		name += "-" + hex.EncodeToString(sum[:4])
	}
	return name
}
