package session_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/forge/pkg/adapters/memory"
	"github.com/aretw0/forge/pkg/domain"
	"github.com/aretw0/forge/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.SessionStore
}

func (s SlowStore) Load(ctx context.Context, key string) (domain.Session, error) {
	time.Sleep(2 * time.Millisecond) // Simulate IO
	return s.SessionStore.Load(ctx, key)
}

func TestManager_ReadYourWrites(t *testing.T) {
	mgr := session.NewManager(memory.NewSessionStore())
	ctx := context.Background()

	key, err := mgr.Create(ctx, "u1", domain.Payload{Category: "Blacksmith"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "u1-"), "keys are namespaced by owner")

	p, err := mgr.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "Blacksmith", p.Category)

	p.Subcategory = "Weapons"
	require.NoError(t, mgr.Put(ctx, key, p))

	p2, err := mgr.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "Weapons", p2.Subcategory)
}

func TestManager_MissingKeyIsNotFound(t *testing.T) {
	mgr := session.NewManager(memory.NewSessionStore())
	ctx := context.Background()

	assert.NotPanics(t, func() {
		_, err := mgr.Get(ctx, "nobody-0-0")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	err := mgr.Put(ctx, "nobody-0-0", domain.Payload{})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = mgr.Update(ctx, "nobody-0-0", func(p *domain.Payload) error { return nil })
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_TTL(t *testing.T) {
	clk := &clock{now: time.Now()}
	store := memory.NewSessionStore()
	mgr := session.NewManager(store, session.WithTTL(24*time.Hour), session.WithClock(clk.Now))
	ctx := context.Background()

	oldKey, err := mgr.Create(ctx, "u1", domain.Payload{Item: "old"})
	require.NoError(t, err)

	clk.Advance(23 * time.Hour)
	freshKey, err := mgr.Create(ctx, "u1", domain.Payload{Item: "fresh"})
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)

	// Expired sessions are unreachable even before the reaper runs.
	_, err = mgr.Get(ctx, oldKey)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, mgr.Put(ctx, oldKey, domain.Payload{}), domain.ErrSessionNotFound)

	n, err := mgr.Reap(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.Len())

	_, err = mgr.Get(ctx, oldKey)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	p, err := mgr.Get(ctx, freshKey)
	require.NoError(t, err)
	assert.Equal(t, "fresh", p.Item)
}

func TestManager_DistinctFlowsForSameOwner(t *testing.T) {
	mgr := session.NewManager(memory.NewSessionStore())
	ctx := context.Background()

	k1, err := mgr.Create(ctx, "u1", domain.Payload{Category: "Alchemy"})
	require.NoError(t, err)
	k2, err := mgr.Create(ctx, "u1", domain.Payload{Category: "Blacksmith"})
	require.NoError(t, err)
	require.NotEqual(t, k1, k2)

	_, err = mgr.Update(ctx, k2, func(p *domain.Payload) error {
		p.Item = "Sword"
		return nil
	})
	require.NoError(t, err)

	p1, _ := mgr.Get(ctx, k1)
	p2, _ := mgr.Get(ctx, k2)
	assert.Equal(t, "Alchemy", p1.Category)
	assert.Empty(t, p1.Item)
	assert.Equal(t, "Sword", p2.Item)
}

func TestManager_IsolationAcrossOwners(t *testing.T) {
	mgr := session.NewManager(memory.NewSessionStore())
	ctx := context.Background()

	ka, _ := mgr.Create(ctx, "alice", domain.Payload{Item: "Sword"})
	kb, _ := mgr.Create(ctx, "bob", domain.Payload{Item: "Shield"})

	require.NoError(t, mgr.Delete(ctx, ka))

	p, err := mgr.Get(ctx, kb)
	require.NoError(t, err)
	assert.Equal(t, "Shield", p.Item)

	s, err := mgr.Lookup(ctx, kb)
	require.NoError(t, err)
	assert.Equal(t, "bob", s.OwnerID)
}

func TestManager_UpdateSerializesWriters(t *testing.T) {
	mgr := session.NewManager(SlowStore{memory.NewSessionStore()})
	ctx := context.Background()

	key, err := mgr.Create(ctx, "u1", domain.Payload{Provided: map[string]int{}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Update(ctx, key, func(p *domain.Payload) error {
				if p.Provided == nil {
					p.Provided = map[string]int{}
				}
				p.Provided["Iron"]++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := mgr.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 20, p.Provided["Iron"], "no update may be lost")
}

func TestManager_UpdateErrorWritesNothing(t *testing.T) {
	mgr := session.NewManager(memory.NewSessionStore())
	ctx := context.Background()
	key, _ := mgr.Create(ctx, "u1", domain.Payload{Item: "Sword"})

	_, err := mgr.Update(ctx, key, func(p *domain.Payload) error {
		p.Item = "Axe"
		return domain.ErrValidation
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	p, _ := mgr.Get(ctx, key)
	assert.Equal(t, "Sword", p.Item)
}

func TestManager_ReaperRunsInBackground(t *testing.T) {
	clk := &clock{now: time.Now()}
	store := memory.NewSessionStore()
	reaped := make(chan int, 8)
	mgr := session.NewManager(store,
		session.WithTTL(time.Hour),
		session.WithClock(clk.Now),
		session.WithReapInterval(time.Second),
		session.WithHooks(session.Hooks{OnReap: func(n int) { reaped <- n }}),
	)
	ctx := context.Background()

	_, err := mgr.Create(ctx, "u1", domain.Payload{})
	require.NoError(t, err)
	clk.Advance(2 * time.Hour)

	require.NoError(t, mgr.Start())
	require.NoError(t, mgr.Start(), "second Start is a no-op")
	defer mgr.Stop()

	select {
	case n := <-reaped:
		assert.Equal(t, 1, n)
	case <-time.After(5 * time.Second):
		t.Fatal("reaper did not run")
	}
	assert.Equal(t, 0, store.Len())
}
