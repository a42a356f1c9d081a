package events

import (
	"strconv"
	"sync"
	"time"

	"github.com/cuemby/horology/pkg/types"
)

// DefaultRetention is how long the broker keeps history for resumable
// cursors; events older than this require reconciling from the timer
// table.
const DefaultRetention = 7 * 24 * time.Hour

// DefaultQueueSize bounds each subscriber's channel.
const DefaultQueueSize = 256

// EncodeCursor turns a committed log index into the opaque token a
// subscriber presents on reconnect. The log index is itself a stable,
// monotonic position, so the encoding only needs to keep callers from
// depending on its internal shape.
func EncodeCursor(logIndex uint64) string {
	return strconv.FormatUint(logIndex, 10)
}

// DecodeCursor parses a cursor token back into a log index. An empty
// cursor means "from the beginning" (index 0).
func DecodeCursor(cursor string) (uint64, error) {
	if cursor == "" {
		return 0, nil
	}
	return strconv.ParseUint(cursor, 10, 64)
}

// Subscription is a live handle returned by Broker.Subscribe. Callers
// drain Events() until it closes (Broker.Unsubscribe or a slow-consumer
// disconnect) and reconnect with Cursor() to resume.
type Subscription struct {
	tenantID string
	topics   map[types.EventKind]bool
	ch       chan *types.FireEvent

	mu           sync.Mutex
	lastCursor   string
	disconnected bool
}

// Events returns the channel to range over for delivered events.
func (s *Subscription) Events() <-chan *types.FireEvent { return s.ch }

// Cursor returns the last cursor acknowledged by the caller, used as
// fromCursor on reconnect.
func (s *Subscription) Cursor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCursor
}

// Ack records that the caller has durably processed an event up to its
// cursor (e.g. the orchestrator's last-acked index).
func (s *Subscription) Ack(cursor string) {
	s.mu.Lock()
	s.lastCursor = cursor
	s.mu.Unlock()
}

// Disconnected reports whether the broker dropped this subscriber for
// being too slow to drain its queue. The caller should Subscribe again
// with Cursor() as fromCursor.
func (s *Subscription) Disconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected
}

// matches reports whether e should be delivered to s. An empty
// tenantID is the Action Orchestrator's cross-tenant subscription
// (it consumes every tenant's fired events); every other subscriber is
// tenant-scoped and never sees another tenant's events.
func (s *Subscription) matches(e *types.FireEvent) bool {
	if s.tenantID != "" && e.TenantID != s.tenantID {
		return false
	}
	if len(s.topics) == 0 {
		return true
	}
	return s.topics[e.Kind]
}

// Broker is the Event Subscription Fan-out: it publishes
// FireEvents to per-tenant subscribers, backed by a bounded in-memory
// history so reconnecting subscribers can resume from a cursor instead
// of missing events entirely. Every Horology Kernel node runs its own
// Broker fed by its own FSM.Apply calls, so streaming works from any
// node without cross-node event replication.
type Broker struct {
	mu        sync.RWMutex
	subs      map[*Subscription]struct{}
	history   []*types.FireEvent // ascending EventID, trimmed by retention
	retention time.Duration
	queueSize int
	stopCh    chan struct{}
	started   bool

	// trimmedThrough is the highest EventID trim has dropped (0 if none).
	trimmedThrough uint64
}

// NewBroker creates a Broker with the spec's default retention and
// per-subscriber queue size.
func NewBroker() *Broker {
	return &Broker{
		subs:      make(map[*Subscription]struct{}),
		retention: DefaultRetention,
		queueSize: DefaultQueueSize,
		stopCh:    make(chan struct{}),
	}
}

// Start begins periodic history trimming. Safe to call once.
func (b *Broker) Start() {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	go b.trimLoop()
}

// Stop halts trimming and closes every live subscriber channel.
func (b *Broker) Stop() {
	close(b.stopCh)

	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		close(sub.ch)
	}
	b.subs = make(map[*Subscription]struct{})
}

func (b *Broker) trimLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.trim(time.Now())
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) trim(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cutoff := now.Add(-b.retention)
	i := 0
	for i < len(b.history) && b.history[i].Instant.Before(cutoff) {
		i++
	}
	if i > 0 {
		b.trimmedThrough = b.history[i-1].EventID
		b.history = append([]*types.FireEvent(nil), b.history[i:]...)
	}
}

// Publish fans an event out to every matching live subscriber and
// appends it to the replay history. Delivery is non-blocking: a
// subscriber whose queue is full is disconnected rather than stalling
// the kernel's publication point.
func (b *Broker) Publish(e *types.FireEvent) {
	b.mu.Lock()
	b.history = append(b.history, e)
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		if !s.matches(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			b.disconnect(s)
		}
	}
}

func (b *Broker) disconnect(s *Subscription) {
	s.mu.Lock()
	if s.disconnected {
		s.mu.Unlock()
		return
	}
	s.disconnected = true
	s.mu.Unlock()

	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
	close(s.ch)
}

// ErrCursorTooOld is returned by Subscribe when fromCursor falls
// outside the retention window; the caller must reconcile from the
// timer table directly.
type ErrCursorTooOld struct{ Cursor string }

func (e *ErrCursorTooOld) Error() string {
	return "events: cursor " + e.Cursor + " is outside the retention window"
}

// Subscribe opens a resumable subscription for tenantID, optionally
// filtered to topics (nil/empty means all kinds), replaying any
// buffered history strictly after fromCursor before switching to live
// delivery.
func (b *Broker) Subscribe(tenantID string, topics []types.EventKind, fromCursor string) (*Subscription, error) {
	afterIndex, err := DecodeCursor(fromCursor)
	if err != nil {
		return nil, err
	}

	topicSet := make(map[types.EventKind]bool, len(topics))
	for _, t := range topics {
		topicSet[t] = true
	}

	sub := &Subscription{
		tenantID: tenantID,
		topics:   topicSet,
		ch:       make(chan *types.FireEvent, b.queueSize),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if fromCursor != "" && b.trimmedThrough > 0 && afterIndex <= b.trimmedThrough {
		return nil, &ErrCursorTooOld{Cursor: fromCursor}
	}
	if fromCursor != "" && len(b.history) > 0 && b.history[0].EventID > afterIndex+1 {
		return nil, &ErrCursorTooOld{Cursor: fromCursor}
	}

	for _, e := range b.history {
		if e.EventID <= afterIndex {
			continue
		}
		if !sub.matches(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			// Replay backlog exceeds the queue; close the channel so a
			// caller blocked on Events() sees it close immediately and
			// resubscribes from its last acked cursor instead of hanging.
			sub.disconnected = true
			close(sub.ch)
			return sub, nil
		}
	}

	b.subs[sub] = struct{}{}
	return sub, nil
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broker) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	_, ok := b.subs[sub]
	delete(b.subs, sub)
	b.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
