package lifecycle_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/forge/internal/testutils"
	"github.com/aretw0/forge/pkg/domain"
	"github.com/aretw0/forge/pkg/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var surface = domain.Surface{ID: "chan-1", Kind: domain.SurfaceEphemeral}

func send(t *testing.T, p *testutils.FakeProvisioner, content string) domain.FragmentRef {
	t.Helper()
	ref, err := p.SendFragment(context.Background(), surface, domain.Fragment{Content: content})
	require.NoError(t, err)
	return ref
}

func renderOne(p *testutils.FakeProvisioner, content string) lifecycle.RenderFunc {
	return func(ctx context.Context) ([]domain.FragmentRef, error) {
		ref, err := p.SendFragment(ctx, surface, domain.Fragment{Content: content})
		if err != nil {
			return nil, err
		}
		return []domain.FragmentRef{ref}, nil
	}
}

func TestTracker_ClearThenTrackLeavesExactlyNew(t *testing.T) {
	p := testutils.NewFakeProvisioner()
	tr := lifecycle.NewTracker(p)
	ctx := context.Background()

	require.NoError(t, tr.Track("u1", domain.LevelSubmenu, send(t, p, "old submenu")))
	require.NoError(t, tr.Track("u1", domain.LevelOutput, send(t, p, "old output")))

	require.NoError(t, tr.ClearFromLevel(ctx, "u1", domain.LevelSubmenu))
	x := send(t, p, "new submenu")
	require.NoError(t, tr.Track("u1", domain.LevelSubmenu, x))

	assert.Equal(t, []domain.FragmentRef{x}, tr.Fragments("u1", domain.LevelSubmenu))
	assert.Empty(t, tr.Fragments("u1", domain.LevelOutput))
	assert.Len(t, p.Live(), 1)
}

func TestTracker_RapidSiblingNavigation(t *testing.T) {
	p := testutils.NewFakeProvisioner()
	tr := lifecycle.NewTracker(p)
	ctx := context.Background()

	_, err := tr.RenderLevel(ctx, "u1", domain.LevelAnchor, renderOne(p, "anchor"))
	require.NoError(t, err)

	// Click between sibling actions, refresh output, and come back.
	for i := 0; i < 10; i++ {
		_, err := tr.RenderLevel(ctx, "u1", domain.LevelSubmenu, renderOne(p, "action"))
		require.NoError(t, err)
		_, err = tr.RenderLevel(ctx, "u1", domain.LevelOutput, renderOne(p, "result"))
		require.NoError(t, err)
		_, err = tr.RenderLevel(ctx, "u1", domain.LevelOutput, renderOne(p, "refreshed"))
		require.NoError(t, err)
	}
	_, err = tr.RenderLevel(ctx, "u1", domain.LevelSubmenu, renderOne(p, "back to other action"))
	require.NoError(t, err)

	snap := tr.Snapshot("u1")
	assert.Len(t, snap[domain.LevelAnchor], 1, "anchor persists across actions")
	assert.Len(t, snap[domain.LevelSubmenu], 1)
	assert.Empty(t, snap[domain.LevelOutput])
	assert.Len(t, p.Live(), 2, "nothing leaks on screen")
}

func TestTracker_MultipleFragmentsPerLevel(t *testing.T) {
	p := testutils.NewFakeProvisioner()
	tr := lifecycle.NewTracker(p)

	a := send(t, p, "a")
	b := send(t, p, "b")
	require.NoError(t, tr.Track("u1", domain.LevelHeader, a))
	require.NoError(t, tr.Track("u1", domain.LevelHeader, b))

	assert.Equal(t, []domain.FragmentRef{a, b}, tr.Fragments("u1", domain.LevelHeader))
	assert.Equal(t, "chan-1", tr.Surface("u1"))
}

func TestTracker_ClearAllKeepsRoot(t *testing.T) {
	p := testutils.NewFakeProvisioner()
	tr := lifecycle.NewTracker(p)
	ctx := context.Background()

	root := send(t, p, "home")
	require.NoError(t, tr.Track("u1", domain.LevelRoot, root))
	for lvl := domain.LevelHeader; lvl <= domain.LevelOutput; lvl++ {
		require.NoError(t, tr.Track("u1", lvl, send(t, p, lvl.String())))
	}

	require.NoError(t, tr.ClearAll(ctx, "u1"))

	snap := tr.Snapshot("u1")
	assert.Equal(t, map[domain.Level][]domain.FragmentRef{domain.LevelRoot: {root}}, snap)
	assert.Len(t, p.Deleted(), 4)
}

func TestTracker_DoubleClearIsNoop(t *testing.T) {
	p := testutils.NewFakeProvisioner()
	tr := lifecycle.NewTracker(p)
	ctx := context.Background()

	require.NoError(t, tr.Track("u1", domain.LevelAnchor, send(t, p, "anchor")))
	require.NoError(t, tr.ClearAll(ctx, "u1"))
	require.NoError(t, tr.ClearAll(ctx, "u1"))
	require.NoError(t, tr.ClearFromLevel(ctx, "never-seen", domain.LevelSubmenu))

	assert.Len(t, p.Deleted(), 1, "a fragment is deleted at most once")
}

func TestTracker_AlreadyGoneCountsAsDeleted(t *testing.T) {
	p := testutils.NewFakeProvisioner()
	var results []lifecycle.DeleteResult
	tr := lifecycle.NewTracker(p, lifecycle.WithHooks(lifecycle.Hooks{
		OnDelete: func(level domain.Level, r lifecycle.DeleteResult) { results = append(results, r) },
	}))
	ctx := context.Background()

	ref := send(t, p, "x")
	require.NoError(t, p.DeleteFragment(ctx, ref)) // user dismissed it
	require.NoError(t, tr.Track("u1", domain.LevelOutput, ref))

	assert.NoError(t, tr.ClearFromLevel(ctx, "u1", domain.LevelOutput))
	assert.Equal(t, []lifecycle.DeleteResult{lifecycle.DeleteGone}, results)
}

func TestTracker_FailuresDoNotAbortBatch(t *testing.T) {
	p := testutils.NewFakeProvisioner()
	tr := lifecycle.NewTracker(p)
	ctx := context.Background()

	a := send(t, p, "a")
	b := send(t, p, "b")
	c := send(t, p, "c")
	p.FailDelete[b.ID] = true
	require.NoError(t, tr.Track("u1", domain.LevelHeader, a))
	require.NoError(t, tr.Track("u1", domain.LevelSubmenu, b))
	require.NoError(t, tr.Track("u1", domain.LevelOutput, c))

	err := tr.ClearAll(ctx, "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), b.ID)

	assert.ElementsMatch(t, []domain.FragmentRef{a, c}, p.Deleted(), "every deletion is attempted")
	assert.Empty(t, tr.Snapshot("u1"))
}

func TestTracker_InvalidLevels(t *testing.T) {
	p := testutils.NewFakeProvisioner()
	tr := lifecycle.NewTracker(p)
	ctx := context.Background()

	assert.ErrorIs(t, tr.ClearFromLevel(ctx, "u1", domain.LevelRoot), domain.ErrInvalidLevel)
	assert.ErrorIs(t, tr.ClearFromLevel(ctx, "u1", domain.Level(7)), domain.ErrInvalidLevel)
	assert.ErrorIs(t, tr.Track("u1", domain.Level(5), domain.FragmentRef{ID: "x"}), domain.ErrInvalidLevel)
}

func TestTracker_RenderFailureLeavesMapUntouched(t *testing.T) {
	p := testutils.NewFakeProvisioner()
	tr := lifecycle.NewTracker(p)
	ctx := context.Background()

	p.SetFailSend(true)
	_, err := tr.RenderLevel(ctx, "u1", domain.LevelSubmenu, renderOne(p, "x"))
	require.Error(t, err)
	assert.Empty(t, tr.Snapshot("u1"))
	p.SetFailSend(false)

	prompt, err := tr.RenderLevel(ctx, "u1", domain.LevelSubmenu, renderOne(p, "prompt"))
	require.NoError(t, err)
	result, err := tr.RenderLevel(ctx, "u1", domain.LevelOutput, renderOne(p, "result"))
	require.NoError(t, err)

	p.SetFailSend(true)
	_, err = tr.RenderLevel(ctx, "u1", domain.LevelSubmenu, renderOne(p, "next prompt"))
	require.Error(t, err)
	assert.Equal(t, prompt, tr.Fragments("u1", domain.LevelSubmenu), "the previous prompt is still tracked")
	assert.Equal(t, result, tr.Fragments("u1", domain.LevelOutput))
	assert.Len(t, p.Live(), 2, "and still on screen")
	assert.Empty(t, p.Deleted())
	p.SetFailSend(false)

	boom := errors.New("boom")
	_, err = tr.RenderLevel(ctx, "u1", domain.LevelSubmenu, func(ctx context.Context) ([]domain.FragmentRef, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestTracker_RenderReplacesAfterSend(t *testing.T) {
	p := testutils.NewFakeProvisioner()
	tr := lifecycle.NewTracker(p)
	ctx := context.Background()

	old := send(t, p, "old")
	require.NoError(t, tr.Track("u1", domain.LevelSubmenu, old))

	var liveDuringRender int
	refs, err := tr.RenderLevel(ctx, "u1", domain.LevelSubmenu, func(ctx context.Context) ([]domain.FragmentRef, error) {
		liveDuringRender = len(p.Live())
		return renderOne(p, "new")(ctx)
	})
	require.NoError(t, err)

	assert.Equal(t, 1, liveDuringRender, "the old prompt is only removed once the new one is sent")
	assert.Equal(t, refs, tr.Fragments("u1", domain.LevelSubmenu))
	assert.Equal(t, []domain.FragmentRef{old}, p.Deleted())

	_, err = tr.RenderLevel(ctx, "u1", domain.LevelRoot, renderOne(p, "root"))
	assert.ErrorIs(t, err, domain.ErrInvalidLevel)
}

func TestTracker_OwnerIsolation(t *testing.T) {
	p := testutils.NewFakeProvisioner()
	tr := lifecycle.NewTracker(p)
	ctx := context.Background()

	alice := send(t, p, "alice")
	bob := send(t, p, "bob")
	require.NoError(t, tr.Track("alice", domain.LevelSubmenu, alice))
	require.NoError(t, tr.Track("bob", domain.LevelSubmenu, bob))

	require.NoError(t, tr.ClearAll(ctx, "alice"))

	assert.Equal(t, []domain.FragmentRef{bob}, tr.Fragments("bob", domain.LevelSubmenu))
	assert.Equal(t, []domain.FragmentRef{alice}, p.Deleted())
}

func TestTracker_ConcurrentRendersSameOwner(t *testing.T) {
	p := testutils.NewFakeProvisioner()
	tr := lifecycle.NewTracker(p)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = tr.RenderLevel(ctx, "u1", domain.LevelOutput, renderOne(p, "view"))
		}()
	}
	wg.Wait()

	// Interleaved renders may leave a minor duplicate, never a corrupted map:
	// every fragment still on screen is tracked, so one more clear removes all of it.
	require.NoError(t, tr.ClearFromLevel(ctx, "u1", domain.LevelOutput))
	assert.Empty(t, p.Live())
}

func TestTracker_DropAndForget(t *testing.T) {
	p := testutils.NewFakeProvisioner()
	tr := lifecycle.NewTracker(p)

	require.NoError(t, tr.Track("alice", domain.LevelAnchor, send(t, p, "a")))
	require.NoError(t, tr.Track("bob", domain.LevelAnchor, send(t, p, "b")))

	tr.Forget("alice")
	assert.Equal(t, 1, tr.Owners())

	tr.DropAllTracking()
	assert.Equal(t, 0, tr.Owners())
	assert.Empty(t, p.Deleted(), "dropping tracking never deletes")
}
