package records

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists records to disk. Suitable for local dev; production runs
// use the Airtable or Postgres backend.
type FileStore struct {
	path string
	mu   sync.Mutex
	data map[string]Record
}

func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{
		path: path,
		data: make(map[string]Record),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (f *FileStore) load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	blob, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(blob) == 0 {
		return nil
	}
	return json.Unmarshal(blob, &f.data)
}

func (f *FileStore) persist() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	blob, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, blob, 0o600)
}

// Seed inserts a record and persists, keyed by normalized identity.
func (f *FileStore) Seed(rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.Identity = NormalizeIdentity(rec.Identity)
	f.data[rec.Identity] = rec
	return f.persist()
}

func (f *FileStore) Lookup(_ context.Context, identity string) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.data[NormalizeIdentity(identity)]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (f *FileStore) SetAssetAddress(_ context.Context, identity, assetAddress string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := NormalizeIdentity(identity)
	rec, ok := f.data[key]
	if !ok {
		return ErrNotFound
	}
	if rec.MintedAssetAddress != "" && rec.MintedAssetAddress != assetAddress {
		return ErrAddressConflict
	}
	rec.MintedAssetAddress = assetAddress
	f.data[key] = rec
	return f.persist()
}
