package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/forge/pkg/adapters/sqlite"
	"github.com/aretw0/forge/pkg/domain"
	"github.com/aretw0/forge/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.RecordStore = (*sqlite.RecordStore)(nil)

func openTemp(t *testing.T) *sqlite.RecordStore {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "data", "forge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteRecordStore_Contract(t *testing.T) {
	ports.RunRecordStoreContract(t, openTemp(t))
}

func TestSQLiteRecordStore_InMemory(t *testing.T) {
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ports.RunRecordStoreContract(t, store)
}

func TestSQLiteRecordStore_RecentRecords(t *testing.T) {
	store := openTemp(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, item := range []string{"Sword", "Shield", "Helm"} {
		_, err := store.CreateRecord(ctx, domain.Record{
			OwnerID:     "u1",
			CharacterID: "c1",
			Category:    "Blacksmith",
			Subcategory: "Gear",
			Item:        item,
			Mode:        domain.CommitPartial,
			Resources:   []domain.ResourceLine{{Resource: "Iron", Required: 4, Provided: i}},
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	_, err := store.CreateRecord(ctx, domain.Record{
		OwnerID: "u2", CharacterID: "c2", Category: "Tailor", Subcategory: "Cloth", Item: "Robe", Mode: domain.CommitNone,
	})
	require.NoError(t, err)

	recs, err := store.RecentRecords(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Helm", recs[0].Item)
	assert.Equal(t, "Shield", recs[1].Item)
	assert.Equal(t, []domain.ResourceLine{{Resource: "Iron", Required: 4, Provided: 1}}, recs[1].Resources)
	assert.Equal(t, domain.CommitPartial, recs[1].Mode)

	all, err := store.RecentRecords(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Empty(t, all[0].Resources, "records without resources decode to an empty list")
}

func TestSQLiteRecordStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forge.db")
	ctx := context.Background()

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	c, err := store.RegisterCharacter(ctx, "u1", "Aria")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := sqlite.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	chars, err := reopened.CharactersFor(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []domain.Character{c}, chars)
}

func TestSQLiteRecordStore_RegisterRequiresFields(t *testing.T) {
	store := openTemp(t)
	_, err := store.RegisterCharacter(context.Background(), "u1", "")
	assert.ErrorIs(t, err, domain.ErrMissingField)
}
