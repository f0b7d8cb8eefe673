package records

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeIdentity(t *testing.T) {
	require.Equal(t, "0xabc", NormalizeIdentity("  0xABC "))
	require.Equal(t, "", NormalizeIdentity("   "))
}

func TestMemoryStoreLookup(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Lookup(ctx, "0xmissing")
	require.ErrorIs(t, err, ErrNotFound)

	store.Seed(Record{Identity: "0xABC", DisplayName: "Jane", ImageURI: "img://1"})

	rec, err := store.Lookup(ctx, "0xabc")
	require.NoError(t, err)
	require.Equal(t, "Jane", rec.DisplayName)
	require.False(t, rec.Minted())

	// Mixed-case input matches the same row.
	rec, err = store.Lookup(ctx, " 0xAbC ")
	require.NoError(t, err)
	require.Equal(t, "Jane", rec.DisplayName)
}

func TestMemoryStoreSetAssetAddress(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.ErrorIs(t, store.SetAssetAddress(ctx, "0xmissing", "0xCOIN"), ErrNotFound)

	store.Seed(Record{Identity: "0xabc", DisplayName: "Jane"})

	require.NoError(t, store.SetAssetAddress(ctx, "0xABC", "0xCOIN"))

	rec, err := store.Lookup(ctx, "0xabc")
	require.NoError(t, err)
	require.Equal(t, "0xCOIN", rec.MintedAssetAddress)

	// Same value twice is fine, a different value is not.
	require.NoError(t, store.SetAssetAddress(ctx, "0xabc", "0xCOIN"))
	require.ErrorIs(t, store.SetAssetAddress(ctx, "0xabc", "0xOTHER"), ErrAddressConflict)
}

func TestFileStorePersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.json")
	ctx := context.Background()

	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Seed(Record{Identity: "0xabc", DisplayName: "Jane", ImageURI: "img://1"}))
	require.NoError(t, store.SetAssetAddress(ctx, "0xabc", "0xCOIN"))

	store2, err := NewFileStore(path)
	require.NoError(t, err)

	rec, err := store2.Lookup(ctx, "0xABC")
	require.NoError(t, err)
	require.Equal(t, "Jane", rec.DisplayName)
	require.Equal(t, "0xCOIN", rec.MintedAssetAddress)

	require.ErrorIs(t, store2.SetAssetAddress(ctx, "0xabc", "0xOTHER"), ErrAddressConflict)
}
