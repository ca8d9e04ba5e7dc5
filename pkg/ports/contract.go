package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/forge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405")

	newSession := func(key string, created time.Time) domain.Session {
		return domain.Session{
			Key:       key,
			OwnerID:   "owner-1",
			CreatedAt: created,
			Payload: domain.Payload{
				Category:     "Blacksmith",
				Requirements: []domain.Requirement{{Resource: "Iron", Amount: 4}},
				Provided:     map[string]int{"Iron": 2},
			},
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		key := prefix + "-save"
		s := newSession(key, time.Now())
		require.NoError(t, store.Save(ctx, s), "Save should not return error")

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, key, loaded.Key)
		assert.Equal(t, "owner-1", loaded.OwnerID)
		assert.Equal(t, "Blacksmith", loaded.Payload.Category)
		assert.Equal(t, 2, loaded.Payload.Provided["Iron"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+prefix)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Loaded Copy Is Isolated", func(t *testing.T) {
		key := prefix + "-isolated"
		require.NoError(t, store.Save(ctx, newSession(key, time.Now())))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		loaded.Payload.Provided["Iron"] = 99

		again, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 2, again.Payload.Provided["Iron"])
	})

	t.Run("Replace Live Session", func(t *testing.T) {
		key := prefix + "-replace"
		s := newSession(key, time.Now())
		require.NoError(t, store.Save(ctx, s))

		updated := s.Payload.Clone()
		updated.Item = "Sword"
		require.NoError(t, store.Replace(ctx, key, updated))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "Sword", loaded.Payload.Item)
		assert.WithinDuration(t, s.CreatedAt, loaded.CreatedAt, time.Second, "Replace must keep the creation time")
	})

	t.Run("Replace Missing Session", func(t *testing.T) {
		err := store.Replace(ctx, prefix+"-ghost", domain.Payload{Item: "Sword"})
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		_, err = store.Load(ctx, prefix+"-ghost")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Replace must not create sessions")
	})

	t.Run("Delete", func(t *testing.T) {
		key := prefix + "-delete"
		require.NoError(t, store.Save(ctx, newSession(key, time.Now())))

		require.NoError(t, store.Delete(ctx, key), "Delete should not return error")
		_, err := store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, key), "Deleting twice should be a no-op")
	})

	t.Run("Reap", func(t *testing.T) {
		oldKey := prefix + "-old"
		freshKey := prefix + "-fresh"
		now := time.Now()
		require.NoError(t, store.Save(ctx, newSession(oldKey, now.Add(-48*time.Hour))))
		require.NoError(t, store.Save(ctx, newSession(freshKey, now)))
		defer func() { _ = store.Delete(ctx, freshKey) }()

		n, err := store.Reap(ctx, now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1)

		_, err = store.Load(ctx, oldKey)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
		_, err = store.Load(ctx, freshKey)
		assert.NoError(t, err)
	})
}

// RunRecordStoreContract verifies a RecordStore implementation.
func RunRecordStoreContract(t *testing.T, store RecordStore) {
	ctx := context.Background()

	t.Run("Register And List Characters", func(t *testing.T) {
		c, err := store.RegisterCharacter(ctx, "owner-a", "Thorin")
		require.NoError(t, err)
		assert.NotEmpty(t, c.ID)
		assert.Equal(t, "owner-a", c.OwnerID)

		_, err = store.RegisterCharacter(ctx, "owner-b", "Gimli")
		require.NoError(t, err)

		chars, err := store.CharactersFor(ctx, "owner-a")
		require.NoError(t, err)
		require.Len(t, chars, 1)
		assert.Equal(t, "Thorin", chars[0].Name)
	})

	t.Run("Create Rejects Missing Fields", func(t *testing.T) {
		_, err := store.CreateRecord(ctx, domain.Record{OwnerID: "owner-a"})
		assert.ErrorIs(t, err, domain.ErrMissingField)
	})

	t.Run("Duplicate Window", func(t *testing.T) {
		rec := domain.Record{
			OwnerID:     "owner-dup",
			CharacterID: "c-1",
			Category:    "Alchemy",
			Subcategory: "Potions",
			Item:        "Elixir",
			Mode:        domain.CommitNone,
			Resources:   []domain.ResourceLine{{Resource: "Herb", Required: 2}},
			CreatedAt:   time.Now(),
		}

		dup, err := store.FindRecentDuplicate(ctx, rec.Key(), 5*time.Second)
		require.NoError(t, err)
		assert.False(t, dup)

		id, err := store.CreateRecord(ctx, rec)
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		dup, err = store.FindRecentDuplicate(ctx, rec.Key(), 5*time.Second)
		require.NoError(t, err)
		assert.True(t, dup)

		other := rec.Key()
		other.Item = "Tonic"
		dup, err = store.FindRecentDuplicate(ctx, other, 5*time.Second)
		require.NoError(t, err)
		assert.False(t, dup, "Different items are never duplicates")
	})

	t.Run("Old Records Are Not Duplicates", func(t *testing.T) {
		rec := domain.Record{
			OwnerID:     "owner-old",
			CharacterID: "c-2",
			Category:    "Alchemy",
			Subcategory: "Potions",
			Item:        "Elixir",
			Mode:        domain.CommitFull,
			CreatedAt:   time.Now().Add(-time.Minute),
		}
		_, err := store.CreateRecord(ctx, rec)
		require.NoError(t, err)

		dup, err := store.FindRecentDuplicate(ctx, rec.Key(), 5*time.Second)
		require.NoError(t, err)
		assert.False(t, dup)
	})
}
