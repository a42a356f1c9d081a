package orchestrator

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/cuemby/horology/pkg/events"
	"github.com/cuemby/horology/pkg/kernel"
	"github.com/cuemby/horology/pkg/log"
	"github.com/cuemby/horology/pkg/metrics"
	"github.com/cuemby/horology/pkg/types"
)

// Dispatcher executes one action kind and reports a *DispatchError (via
// retriable/terminal) on failure so the Orchestrator knows whether to
// retry.
type Dispatcher interface {
	Kind() types.ActionKind
	Dispatch(ctx context.Context, action types.Action, key WebhookKey) error
}

// Config configures an Orchestrator, sourced from the ORCHESTRATOR_*
// environment variables.
type Config struct {
	// MaxInflight bounds concurrent in-flight action dispatches across
	// the whole orchestrator, independent of per-action retry delays.
	MaxInflight int
}

func DefaultConfig() Config {
	return Config{MaxInflight: 64}
}

// Orchestrator is the Action Orchestrator: it consumes
// the kernel's fire-event stream across every tenant, dispatches each
// fired timer's action bundle, and retries failures on independent
// deferred tasks so one slow action never blocks the event loop.
type Orchestrator struct {
	kernel      *kernel.Kernel
	broker      *events.Broker
	cursorStore CursorStore
	dispatchers map[types.ActionKind]Dispatcher
	cfg         Config

	inflight chan struct{}
	wg       sync.WaitGroup

	stopCh chan struct{}
	doneCh chan struct{}
}

func New(k *kernel.Kernel, cursorStore CursorStore, cfg Config, dispatchers ...Dispatcher) *Orchestrator {
	if cfg.MaxInflight <= 0 {
		cfg.MaxInflight = 64
	}
	m := make(map[types.ActionKind]Dispatcher, len(dispatchers))
	for _, d := range dispatchers {
		m[d.Kind()] = d
	}
	return &Orchestrator{
		kernel:      k,
		broker:      k.EventBroker(),
		cursorStore: cursorStore,
		dispatchers: m,
		cfg:         cfg,
		inflight:    make(chan struct{}, cfg.MaxInflight),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Run subscribes across every tenant (the empty tenantID wildcard, see
// pkg/events) starting from the last persisted cursor, and blocks
// dispatching fired timers until Stop is called or ctx is cancelled. A
// slow-consumer disconnect resubscribes from the last acked cursor
// rather than exiting.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer close(o.doneCh)
	defer o.wg.Wait()

	cursor, err := o.cursorStore.Load()
	if err != nil {
		return err
	}

	metrics.SubscribersActive.Inc()
	defer metrics.SubscribersActive.Dec()

	for {
		sub, err := o.broker.Subscribe("", []types.EventKind{types.EventKindFired}, cursor)
		if err != nil {
			if _, tooOld := err.(*events.ErrCursorTooOld); tooOld {
				log.Warn("orchestrator: cursor outside retention window, resuming from head")
				cursor = ""
				continue
			}
			return err
		}

		disconnected, err := o.drain(ctx, sub, &cursor)
		o.broker.Unsubscribe(sub)
		if err != nil {
			return err
		}
		if !disconnected {
			return nil
		}
		metrics.SubscriberDropsTotal.Inc()
	}
}

// drain ranges over sub until it closes, stop/cancel fires, or the
// broker drops it for backpressure. It reports whether the subscriber
// was dropped (caller should resubscribe) and updates *cursor as
// events are acked.
func (o *Orchestrator) drain(ctx context.Context, sub *events.Subscription, cursor *string) (dropped bool, err error) {
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-o.stopCh:
			return false, nil
		case ev, ok := <-sub.Events():
			if !ok {
				return sub.Disconnected(), nil
			}
			o.handleFired(ctx, ev)
			sub.Ack(ev.Cursor)
			*cursor = ev.Cursor
			if err := o.cursorStore.Save(ev.Cursor); err != nil {
				log.Errorf("orchestrator: persist cursor", err)
			}
		}
	}
}

// Stop halts the event loop and waits for in-flight dispatches (not
// their pending retries) to finish.
func (o *Orchestrator) Stop() {
	close(o.stopCh)
	<-o.doneCh
}

func (o *Orchestrator) handleFired(ctx context.Context, ev *types.FireEvent) {
	// Every node's broker publishes the same committed events, but only
	// the leader's orchestrator dispatches them — otherwise an N-node
	// cluster would deliver every webhook N times. A follower still
	// advances its cursor, so on election it picks up at the commit
	// frontier rather than replaying the whole retention window.
	if !o.kernel.IsLeader() {
		return
	}
	timer, err := o.kernel.Get(ev.TenantID, ev.TimerID)
	if err != nil {
		log.Errorf("orchestrator: load fired timer", err)
		return
	}
	if timer.ActionBundle == nil {
		return
	}

	key := WebhookKey{TimerID: timer.ID, FireIdx: ev.EventID}
	for _, action := range timer.ActionBundle.Actions {
		o.dispatchWithBudget(ctx, timer, action, key)
	}
}

func (o *Orchestrator) dispatchWithBudget(ctx context.Context, timer *types.Timer, action types.Action, key WebhookKey) {
	select {
	case o.inflight <- struct{}{}:
	case <-ctx.Done():
		return
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() { <-o.inflight }()
		o.attempt(ctx, timer, action, key, 1)
	}()
}

// attempt runs one dispatch try and, on a retriable failure, schedules
// the next try as its own independent deferred task rather than
// blocking this goroutine or the event loop.
func (o *Orchestrator) attempt(ctx context.Context, timer *types.Timer, action types.Action, key WebhookKey, try int) {
	dispatcher, ok := o.dispatchers[action.Kind]
	if !ok {
		o.deadLetter(timer, "no dispatcher registered for action kind "+string(action.Kind))
		return
	}

	policy := action.Retry.Normalize()

	timerMetric := metrics.NewTimer()
	err := dispatcher.Dispatch(ctx, action, key)
	timerMetric.ObserveDurationVec(metrics.ActionDispatchDuration, string(action.Kind))

	if err == nil {
		metrics.ActionDispatchTotal.WithLabelValues(string(action.Kind), "success").Inc()
		return
	}

	if !IsRetriable(err) || try >= policy.MaxAttempts {
		metrics.ActionDispatchTotal.WithLabelValues(string(action.Kind), "terminal").Inc()
		o.deadLetter(timer, err.Error())
		return
	}

	metrics.ActionDispatchTotal.WithLabelValues(string(action.Kind), "retry").Inc()
	delay := backoffDelay(policy, try)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case <-t.C:
		}

		select {
		case o.inflight <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-o.inflight }()
		o.attempt(ctx, timer, action, key, try+1)
	}()
}

// backoffDelay computes attempt n's wait: initial backoff times
// multiplier^(n-1), plus up to 10% jitter so many
// timers retrying the same downstream dependency don't thunder in
// lockstep.
func backoffDelay(policy types.RetryPolicy, try int) time.Duration {
	ms := float64(policy.InitialBackoffMs) * math.Pow(policy.Multiplier, float64(try-1))
	ms += ms * 0.1 * rand.Float64()
	return time.Duration(ms) * time.Millisecond
}

func (o *Orchestrator) deadLetter(timer *types.Timer, reason string) {
	metrics.ActionsDeadLettered.Inc()
	if err := o.kernel.RecordActionOutcome(timer.TenantID, timer.ID, reason); err != nil {
		log.Errorf("orchestrator: record dead-letter outcome", err)
	}
}
