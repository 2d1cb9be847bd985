package diskcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	digest "github.com/opencontainers/go-digest"
)

const metadataFile = "metadata.json"

// blobInfo describes one stored blob file within an owner's entry.
type blobInfo struct {
	SizeBytes int64         `json:"sizeBytes"`
	Digest    digest.Digest `json:"digest"`
	Codec     string        `json:"codec"`
}

// entry is the metadata for one owner's blob directory.
//
// SizeBytes equals the sum of the actually written blob sizes for the
// owner. LastAccessedAt is updated on every read and never moves
// backwards.
type entry struct {
	OwnerID        string            `json:"ownerId"`
	Dir            string            `json:"dir"`
	Blobs          map[Kind]blobInfo `json:"blobs"`
	SizeBytes      int64             `json:"sizeBytes"`
	CreatedAt      time.Time         `json:"createdAt"`
	LastAccessedAt time.Time         `json:"lastAccessedAt"`
}

// metadata is the serialized cache state persisted at the cache root.
//
// TotalSizeBytes equals the sum of all entry sizes at every externally
// observable moment. Unknown JSON fields are ignored on load so older
// builds can open newer cache directories.
type metadata struct {
	Entries        map[string]*entry `json:"entries"`
	TotalSizeBytes int64             `json:"totalSizeBytes"`
	LastCleanupAt  time.Time         `json:"lastCleanupAt"`
}

func newMetadata() *metadata {
	return &metadata{Entries: make(map[string]*entry)}
}

// loadMetadata reads the metadata document from dir. A missing or
// corrupted file yields an empty cache state, never an error: losing the
// index costs re-downloads, not correctness.
func loadMetadata(dir string) *metadata {
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return newMetadata()
	}
	var m metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return newMetadata()
	}
	if m.Entries == nil {
		m.Entries = make(map[string]*entry)
	}
	// Re-derive the total; a hand-edited or truncated document must not
	// poison the size invariant.
	var total int64
	for id, e := range m.Entries {
		if e == nil {
			delete(m.Entries, id)
			continue
		}
		total += e.SizeBytes
	}
	m.TotalSizeBytes = total
	return &m
}

// persist writes the metadata document atomically via temp file + rename.
func (m *metadata) persist(dir string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "metadata-*")
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close metadata: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, metadataFile)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename metadata: %w", err)
	}
	return nil
}

// removeOwnerDir deletes an owner's blob directory, tolerating absence.
func removeOwnerDir(root, dir string) error {
	if dir == "" || dir == "." || filepath.IsAbs(dir) {
		return errors.New("invalid owner dir")
	}
	err := os.RemoveAll(filepath.Join(root, dir))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
