package timer_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/forge/pkg/timer"
	"github.com/stretchr/testify/assert"
)

func TestScheduler_ReplaceDoesNotStack(t *testing.T) {
	s := timer.NewScheduler()
	defer s.Stop()

	var first, second atomic.Int32
	key := timer.Key{Owner: "u1", Purpose: "surface"}

	s.Schedule(key, 30*time.Millisecond, func() { first.Add(1) })
	s.Schedule(key, 30*time.Millisecond, func() { second.Add(1) })
	assert.Equal(t, 1, s.Pending())

	assert.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), first.Load(), "replaced task must never fire")
	assert.Equal(t, 0, s.Pending())
}

func TestScheduler_Cancel(t *testing.T) {
	s := timer.NewScheduler()
	defer s.Stop()

	var fired atomic.Bool
	key := timer.Key{Owner: "u1", Purpose: "ui"}
	s.Schedule(key, 20*time.Millisecond, func() { fired.Store(true) })

	assert.True(t, s.Cancel(key))
	assert.False(t, s.Cancel(key))
	time.Sleep(40 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestScheduler_KeysAreIndependent(t *testing.T) {
	s := timer.NewScheduler()
	defer s.Stop()

	var a, b atomic.Int32
	s.Schedule(timer.Key{Owner: "alice", Purpose: "ui"}, 10*time.Millisecond, func() { a.Add(1) })
	s.Schedule(timer.Key{Owner: "bob", Purpose: "ui"}, 10*time.Millisecond, func() { b.Add(1) })
	s.Schedule(timer.Key{Owner: "alice", Purpose: "surface"}, time.Hour, func() {})

	assert.Eventually(t, func() bool { return a.Load() == 1 && b.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, s.CancelOwner("alice"))
	assert.Equal(t, 0, s.Pending())
}

func TestScheduler_StopRejectsNewTasks(t *testing.T) {
	s := timer.NewScheduler()
	s.Schedule(timer.Key{Owner: "u1", Purpose: "ui"}, time.Hour, func() {})
	s.Stop()

	assert.Equal(t, 0, s.Pending())
	assert.False(t, s.Schedule(timer.Key{Owner: "u1", Purpose: "ui"}, time.Millisecond, func() {}))
}
