package records

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Record is the projection of one eligibility row in the external store.
// The store owns the row; this service only reads it and writes the single
// MintedAssetAddress field.
type Record struct {
	Identity           string `json:"identity"`
	DisplayName        string `json:"displayName"`
	ImageURI           string `json:"imageURI"`
	MintedAssetAddress string `json:"mintedAssetAddress,omitempty"`
}

// Minted reports whether an asset address has already been recorded.
func (r Record) Minted() bool {
	return r.MintedAssetAddress != ""
}

var (
	// ErrNotFound means no row matches the identity. An expected outcome, not a failure.
	ErrNotFound = errors.New("record not found")
	// ErrPermissionDenied means the store rejected the read or write.
	ErrPermissionDenied = errors.New("store permission denied")
	// ErrMalformedResponse means the store answered with something other than the
	// structured payload we expect (e.g. an HTML error page).
	ErrMalformedResponse = errors.New("malformed store response")
	// ErrAddressConflict means the row already carries a different minted address.
	// The minted address only ever transitions from absent to present.
	ErrAddressConflict = errors.New("minted address already set to a different value")
)

// Store abstracts the external record store.
type Store interface {
	// Lookup returns the record for a normalized identity, or ErrNotFound.
	Lookup(ctx context.Context, identity string) (*Record, error)
	// SetAssetAddress records the minted asset address against the identity.
	// Writing the same address twice succeeds; writing a different one over an
	// existing address fails with ErrAddressConflict.
	SetAssetAddress(ctx context.Context, identity, assetAddress string) error
}

// NormalizeIdentity prepares a wallet address for exact-string matching against
// the store. Every lookup and update must go through this.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// MemoryStore is mostly for testing.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]Record),
	}
}

// Seed inserts a record keyed by its normalized identity.
func (m *MemoryStore) Seed(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Identity = NormalizeIdentity(rec.Identity)
	m.data[rec.Identity] = rec
}

func (m *MemoryStore) Lookup(_ context.Context, identity string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.data[NormalizeIdentity(identity)]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *MemoryStore) SetAssetAddress(_ context.Context, identity, assetAddress string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := NormalizeIdentity(identity)
	rec, ok := m.data[key]
	if !ok {
		return ErrNotFound
	}
	if rec.MintedAssetAddress != "" && rec.MintedAssetAddress != assetAddress {
		return ErrAddressConflict
	}
	rec.MintedAssetAddress = assetAddress
	m.data[key] = rec
	return nil
}
