package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"salespulse/internal/errors"
)

// schemaVersion is folded into every signature so that any structural
// change to the enrichment pipeline invalidates existing cache entries.
const schemaVersion = 2

// Store persists enriched datasets keyed by source signature. The cache
// directory is shared across process invocations; writers do not
// coordinate and the last write wins.
type Store interface {
	// Get returns the cached dataset for the signature, reporting
	// whether a usable entry existed. A corrupt payload is reported as
	// a miss together with a *errors.CacheMismatchError.
	Get(sig Signature) (*EnrichedDataset, bool, error)
	// Put writes the dataset under the signature, replacing any
	// previous entry.
	Put(sig Signature, ds *EnrichedDataset) error
}

// Signature fingerprints a source file: path, size and modification time
// hashed together with the pipeline schema version.
type Signature string

// SignatureFor computes the signature of the file at path.
func SignatureFor(path string) (Signature, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat source file: %w", err)
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d|v%d",
		path, info.Size(), info.ModTime().UnixNano(), schemaVersion)))
	return Signature(hex.EncodeToString(sum[:])), nil
}

// cacheEnvelope is the on-disk payload. The embedded signature must
// match the filename-derived one; anything else is treated as corrupt.
type cacheEnvelope struct {
	Signature string           `json:"signature"`
	Dataset   *EnrichedDataset `json:"dataset"`
}

// FileStore is the file-backed Store: one JSON blob per signature.
type FileStore struct {
	dir string
}

// NewFileStore creates a Store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(sig Signature) string {
	// The short prefix keeps filenames readable; the full signature is
	// verified from the envelope.
	short := string(sig)
	if len(short) > 16 {
		short = short[:16]
	}
	return filepath.Join(s.dir, "dataset_"+short+".json")
}

// Get implements Store.
func (s *FileStore) Get(sig Signature) (*EnrichedDataset, bool, error) {
	raw, err := os.ReadFile(s.path(sig))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, &errors.CacheMismatchError{Signature: string(sig), Err: err}
	}
	var env cacheEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false, &errors.CacheMismatchError{Signature: string(sig), Err: err}
	}
	if env.Signature != string(sig) || env.Dataset == nil {
		return nil, false, &errors.CacheMismatchError{
			Signature: string(sig),
			Err:       fmt.Errorf("payload signature %q does not match", env.Signature),
		}
	}
	return env.Dataset, true, nil
}

// Put implements Store. The blob is written to a temp file and renamed
// so a crashed writer leaves either the old entry or none.
func (s *FileStore) Put(sig Signature, ds *EnrichedDataset) error {
	raw, err := json.Marshal(cacheEnvelope{Signature: string(sig), Dataset: ds})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	target := s.path(sig)
	tmp, err := os.CreateTemp(s.dir, "dataset_*.tmp")
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close cache temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish cache entry: %w", err)
	}
	return nil
}

// MemoryStore is an in-memory Store for tests and cache-disabled runs
// that still want load/save symmetry.
type MemoryStore struct {
	entries map[Signature]*EnrichedDataset
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[Signature]*EnrichedDataset)}
}

// Get implements Store.
func (s *MemoryStore) Get(sig Signature) (*EnrichedDataset, bool, error) {
	ds, ok := s.entries[sig]
	return ds, ok, nil
}

// Put implements Store.
func (s *MemoryStore) Put(sig Signature, ds *EnrichedDataset) error {
	s.entries[sig] = ds
	return nil
}

// cacheKeyStem mirrors the source filename into log lines.
func cacheKeyStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
