package wheel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWheel_FiresInOrder(t *testing.T) {
	now := time.Now()
	w := New(now)

	w.Add(&Entry{TimerID: "a", FireAt: now.Add(50 * time.Millisecond), LogIndex: 1})
	w.Add(&Entry{TimerID: "b", FireAt: now.Add(10 * time.Millisecond), LogIndex: 2})
	w.Add(&Entry{TimerID: "c", FireAt: now.Add(10 * time.Millisecond), LogIndex: 1})
	require.Equal(t, 3, w.Len())

	due := w.Advance(now.Add(60 * time.Millisecond))
	require.Len(t, due, 3)
	assert.Equal(t, "c", due[0].TimerID) // same FireAt as b, lower log index wins
	assert.Equal(t, "b", due[1].TimerID)
	assert.Equal(t, "a", due[2].TimerID)
	assert.Equal(t, 0, w.Len())
}

func TestWheel_NoPrematureFire(t *testing.T) {
	now := time.Now()
	w := New(now)
	w.Add(&Entry{TimerID: "future", FireAt: now.Add(500 * time.Millisecond)})

	due := w.Advance(now.Add(100 * time.Millisecond))
	assert.Empty(t, due)
	assert.Equal(t, 1, w.Len())

	due = w.Advance(now.Add(600 * time.Millisecond))
	require.Len(t, due, 1)
	assert.Equal(t, "future", due[0].TimerID)
}

func TestWheel_PastDueFiresOnNextTick(t *testing.T) {
	now := time.Now()
	w := New(now)

	// Already past its fire instant when added (e.g. replayed after a
	// crash): it must come due on the next tick, not after a full
	// level-0 rotation.
	w.Add(&Entry{TimerID: "late", FireAt: now.Add(-50 * time.Millisecond)})

	due := w.Advance(now.Add(2 * time.Millisecond))
	require.Len(t, due, 1)
	assert.Equal(t, "late", due[0].TimerID)
}

func TestWheel_Cancel(t *testing.T) {
	now := time.Now()
	w := New(now)
	w.Add(&Entry{TimerID: "x", FireAt: now.Add(20 * time.Millisecond)})

	assert.True(t, w.Cancel("x"))
	assert.False(t, w.Cancel("x"))

	due := w.Advance(now.Add(30 * time.Millisecond))
	assert.Empty(t, due)
}

func TestWheel_CascadesAcrossLevels(t *testing.T) {
	now := time.Now()
	w := New(now)

	// Beyond level 0's 256ms horizon, into level 1/2 territory.
	w.Add(&Entry{TimerID: "far", FireAt: now.Add(30 * time.Second)})

	due := w.Advance(now.Add(29 * time.Second))
	assert.Empty(t, due)

	due = w.Advance(now.Add(30500 * time.Millisecond))
	require.Len(t, due, 1)
	assert.Equal(t, "far", due[0].TimerID)
}

func TestWheel_Overflow(t *testing.T) {
	now := time.Now()
	w := New(now)

	// Beyond the outermost level's ~16hr horizon.
	w.Add(&Entry{TimerID: "distant", FireAt: now.Add(20 * time.Hour)})
	require.Equal(t, 1, w.Len())

	due := w.Advance(now.Add(19 * time.Hour))
	assert.Empty(t, due)

	due = w.Advance(now.Add(20*time.Hour + time.Second))
	require.Len(t, due, 1)
	assert.Equal(t, "distant", due[0].TimerID)
}

func TestWheel_Peek(t *testing.T) {
	now := time.Now()
	w := New(now)
	w.Add(&Entry{TimerID: "a", TenantID: "acme", FireAt: now.Add(time.Second)})

	e, ok := w.Peek("a")
	require.True(t, ok)
	assert.Equal(t, "acme", e.TenantID)

	_, ok = w.Peek("missing")
	assert.False(t, ok)
}
