package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/horology/pkg/types"
)

func TestBroker_PublishDeliversToMatchingTenant(t *testing.T) {
	b := NewBroker()
	sub, err := b.Subscribe("acme", nil, "")
	require.NoError(t, err)

	b.Publish(&types.FireEvent{EventID: 1, TenantID: "acme", TimerID: "t1", Kind: types.EventKindScheduled, Instant: time.Now()})
	b.Publish(&types.FireEvent{EventID: 2, TenantID: "other", TimerID: "t2", Kind: types.EventKindScheduled, Instant: time.Now()})

	select {
	case e := <-sub.Events():
		assert.Equal(t, "t1", e.TimerID)
	default:
		t.Fatal("expected an event")
	}

	select {
	case e := <-sub.Events():
		t.Fatalf("unexpected event for other tenant: %+v", e)
	default:
	}
}

func TestBroker_TopicFilter(t *testing.T) {
	b := NewBroker()
	sub, err := b.Subscribe("acme", []types.EventKind{types.EventKindFired}, "")
	require.NoError(t, err)

	b.Publish(&types.FireEvent{EventID: 1, TenantID: "acme", Kind: types.EventKindScheduled, Instant: time.Now()})
	b.Publish(&types.FireEvent{EventID: 2, TenantID: "acme", Kind: types.EventKindFired, Instant: time.Now()})

	e := <-sub.Events()
	assert.Equal(t, types.EventKindFired, e.Kind)
}

func TestBroker_ResumeFromCursor(t *testing.T) {
	b := NewBroker()
	now := time.Now()
	b.Publish(&types.FireEvent{EventID: 1, TenantID: "acme", Kind: types.EventKindScheduled, Instant: now, Cursor: EncodeCursor(1)})
	b.Publish(&types.FireEvent{EventID: 2, TenantID: "acme", Kind: types.EventKindArmed, Instant: now, Cursor: EncodeCursor(2)})
	b.Publish(&types.FireEvent{EventID: 3, TenantID: "acme", Kind: types.EventKindFired, Instant: now, Cursor: EncodeCursor(3)})

	sub, err := b.Subscribe("acme", nil, EncodeCursor(1))
	require.NoError(t, err)

	first := <-sub.Events()
	assert.EqualValues(t, 2, first.EventID)
	second := <-sub.Events()
	assert.EqualValues(t, 3, second.EventID)
}

func TestBroker_CursorTooOld(t *testing.T) {
	b := NewBroker()
	b.retention = time.Millisecond
	b.Publish(&types.FireEvent{EventID: 1, TenantID: "acme", Kind: types.EventKindScheduled, Instant: time.Now().Add(-time.Hour)})
	b.trim(time.Now())

	_, err := b.Subscribe("acme", nil, EncodeCursor(1))
	var tooOld *ErrCursorTooOld
	assert.ErrorAs(t, err, &tooOld)
}

func TestBroker_SlowSubscriberDisconnects(t *testing.T) {
	b := &Broker{subs: make(map[*Subscription]struct{}), retention: DefaultRetention, queueSize: 1, stopCh: make(chan struct{})}
	sub, err := b.Subscribe("acme", nil, "")
	require.NoError(t, err)

	b.Publish(&types.FireEvent{EventID: 1, TenantID: "acme", Kind: types.EventKindScheduled, Instant: time.Now()})
	b.Publish(&types.FireEvent{EventID: 2, TenantID: "acme", Kind: types.EventKindArmed, Instant: time.Now()})

	assert.True(t, sub.Disconnected())
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestBroker_ReplayBacklogExceedsQueueDisconnectsImmediately(t *testing.T) {
	b := &Broker{subs: make(map[*Subscription]struct{}), retention: DefaultRetention, queueSize: 1, stopCh: make(chan struct{})}
	b.Publish(&types.FireEvent{EventID: 1, TenantID: "acme", Kind: types.EventKindScheduled, Instant: time.Now(), Cursor: EncodeCursor(1)})
	b.Publish(&types.FireEvent{EventID: 2, TenantID: "acme", Kind: types.EventKindArmed, Instant: time.Now(), Cursor: EncodeCursor(2)})

	sub, err := b.Subscribe("acme", nil, "")
	require.NoError(t, err)

	assert.True(t, sub.Disconnected())
	assert.Equal(t, 0, b.SubscriberCount())

	// The channel must be closed, not merely abandoned, so a consumer
	// blocked on Events() observes the disconnect and resubscribes
	// instead of hanging forever.
	_, ok := <-sub.Events()
	for ok {
		_, ok = <-sub.Events()
	}
	assert.False(t, ok)
}

func TestBroker_Unsubscribe(t *testing.T) {
	b := NewBroker()
	sub, err := b.Subscribe("acme", nil, "")
	require.NoError(t, err)
	require.Equal(t, 1, b.SubscriberCount())

	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	_, ok := <-sub.Events()
	assert.False(t, ok)
}

func TestSubscription_AckAndCursor(t *testing.T) {
	b := NewBroker()
	sub, err := b.Subscribe("acme", nil, "")
	require.NoError(t, err)

	assert.Equal(t, "", sub.Cursor())
	sub.Ack(EncodeCursor(5))
	assert.Equal(t, EncodeCursor(5), sub.Cursor())
}

func TestDecodeCursor(t *testing.T) {
	idx, err := DecodeCursor("")
	require.NoError(t, err)
	assert.EqualValues(t, 0, idx)

	idx, err = DecodeCursor(EncodeCursor(42))
	require.NoError(t, err)
	assert.EqualValues(t, 42, idx)

	_, err = DecodeCursor("not-a-number")
	assert.Error(t, err)
}
