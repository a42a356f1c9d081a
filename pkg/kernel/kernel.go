package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cuemby/horology/internal/rpc"
	"github.com/cuemby/horology/pkg/events"
	"github.com/cuemby/horology/pkg/herror"
	"github.com/cuemby/horology/pkg/log"
	"github.com/cuemby/horology/pkg/metrics"
	"github.com/cuemby/horology/pkg/security"
	"github.com/cuemby/horology/pkg/storage"
	"github.com/cuemby/horology/pkg/types"
	"github.com/cuemby/horology/pkg/wheel"
)

// DefaultJitterWarnMs is the per-timer fire jitter past which the kernel
// logs a warning, configurable via KERNEL_JITTER_WARN_MS.
const DefaultJitterWarnMs = 500

// Config configures a Kernel node.
type Config struct {
	NodeID       string
	BindAddr     string
	DataDir      string
	StoreBackend string // "bolt" (default) or "memory" for single-node/dev
	JitterWarnMs int64
	TickInterval time.Duration

	// HeartbeatTimeout and ElectionTimeout tune Raft failover, sourced
	// from KERNEL_RAFT_HEARTBEAT_MS / KERNEL_RAFT_ELECTION_TIMEOUT_MS.
	// Zero means the defaults below.
	HeartbeatTimeout time.Duration
	ElectionTimeout  time.Duration
}

const (
	// DefaultHeartbeatTimeout keeps failure detection fast enough for
	// the ≤2s failover target.
	DefaultHeartbeatTimeout = 200 * time.Millisecond
	// DefaultElectionTimeout bounds how long a cluster sits leaderless
	// after losing its leader.
	DefaultElectionTimeout = 900 * time.Millisecond
)

// Kernel is a single node of the Horology Kernel: a Raft-replicated
// Durable Timer Log whose leader drives an in-memory hierarchical
// wheel to decide fire order, and whose every replica keeps its own
// TimerProjection current by applying the same committed log.
type Kernel struct {
	nodeID   string
	bindAddr string
	dataDir  string

	raft         *raft.Raft
	fsm          *FSM
	store        storage.TimerProjection
	tokenManager *TokenManager
	ca           *security.CertAuthority
	events       *events.Broker
	wheel        *wheel.Wheel

	jitterWarnMs int64
	tickInterval time.Duration

	heartbeatTimeout time.Duration
	electionTimeout  time.Duration

	// Tick-loop-local clock discipline state; only the tick goroutine
	// touches these.
	lastTick        time.Time
	driftPauseUntil time.Time
	highJitterTicks int

	stopTick chan struct{}
	tickWg   sync.WaitGroup
}

// New creates a Kernel node. Bootstrap or Join must be called before
// the node can serve requests.
func New(cfg *Config) (*Kernel, error) {
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	store, err := newStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	// The CA's root key is encrypted at rest in the projection store;
	// derive the cluster key before any CA material is saved or loaded.
	if err := security.SetClusterEncryptionKey(security.DeriveKeyFromClusterID(cfg.NodeID)); err != nil {
		return nil, fmt.Errorf("set cluster encryption key: %w", err)
	}

	broker := events.NewBroker()
	broker.Start()

	w := wheel.New(time.Now())
	fsm := NewFSM(store, w, broker)

	jitterWarnMs := cfg.JitterWarnMs
	if jitterWarnMs == 0 {
		jitterWarnMs = DefaultJitterWarnMs
	}
	tickInterval := cfg.TickInterval
	if tickInterval == 0 {
		tickInterval = 10 * time.Millisecond
	}

	return &Kernel{
		nodeID:       cfg.NodeID,
		bindAddr:     cfg.BindAddr,
		dataDir:      cfg.DataDir,
		store:        store,
		fsm:          fsm,
		wheel:        w,
		events:       broker,
		tokenManager: NewTokenManager(),
		ca:           security.NewCertAuthority(store.(security.CAStore)),
		jitterWarnMs: jitterWarnMs,
		tickInterval: tickInterval,

		heartbeatTimeout: cfg.HeartbeatTimeout,
		electionTimeout:  cfg.ElectionTimeout,

		stopTick: make(chan struct{}),
	}, nil
}

func newStore(cfg *Config) (storage.TimerProjection, error) {
	switch cfg.StoreBackend {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "", "bolt":
		return storage.NewBoltStore(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}

// dialInsecure connects to a peer for the one-time join handshake. The
// joining node has no CA material yet — LoadFromStore happens only
// after the leader accepts it — so this step is necessarily
// unauthenticated; after Join, pkg/api serves its listener over
// server-side TLS with a certificate issued from the now-loaded CA.
func dialInsecure(addr string) (*grpc.ClientConn, error) {
	return grpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

func raftConfig(nodeID string, heartbeat, election time.Duration) *raft.Config {
	c := raft.DefaultConfig()
	c.LocalID = raft.ServerID(nodeID)
	// Tuned for LAN/edge deployments rather than Raft's WAN-conservative
	// defaults, matching the rest of the cluster's failover target.
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatTimeout
	}
	if election <= 0 {
		election = DefaultElectionTimeout
	}
	c.HeartbeatTimeout = heartbeat
	c.ElectionTimeout = election
	c.CommitTimeout = 50 * time.Millisecond
	c.LeaderLeaseTimeout = heartbeat / 2
	return c
}

func (k *Kernel) newRaft() (*raft.Raft, *raft.NetworkTransport, error) {
	addr, err := net.ResolveTCPAddr("tcp", k.bindAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(k.bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("create transport: %w", err)
	}
	snapshotStore, err := raft.NewFileSnapshotStore(k.dataDir, 2, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("create snapshot store: %w", err)
	}
	logStore, err := raftboltdb.NewBoltStore(filepath.Join(k.dataDir, "raft-log.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(k.dataDir, "raft-stable.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("create stable store: %w", err)
	}

	r, err := raft.NewRaft(raftConfig(k.nodeID, k.heartbeatTimeout, k.electionTimeout), k.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, nil, fmt.Errorf("create raft: %w", err)
	}
	return r, transport, nil
}

// Bootstrap initializes a new single-node cluster. Per the "single-node
// degraded mode" decision, a lone bootstrapped node serves requests
// immediately but logs and reports itself as degraded (no replication)
// until more voters join.
func (k *Kernel) Bootstrap() error {
	r, transport, err := k.newRaft()
	if err != nil {
		return err
	}
	k.raft = r

	future := r.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{{ID: raft.ServerID(k.nodeID), Address: transport.LocalAddr()}},
	})
	if err := future.Error(); err != nil {
		return fmt.Errorf("bootstrap cluster: %w", err)
	}

	if err := k.initializeCA(); err != nil {
		return fmt.Errorf("initialize CA: %w", err)
	}
	if err := k.provisionNodeCertificate(); err != nil {
		return fmt.Errorf("provision node certificate: %w", err)
	}

	kernelLog := log.WithComponent("kernel")
	kernelLog.Warn().
		Str("node_id", k.nodeID).
		Msg("bootstrapped single-node cluster — degraded, no replication until more voters join")

	k.startTickLoop()
	return nil
}

// Join adds this node to an existing cluster by contacting the leader
// over the ClusterService RPC with a join token.
func (k *Kernel) Join(ctx context.Context, leaderAddr, token string) error {
	r, _, err := k.newRaft()
	if err != nil {
		return err
	}
	k.raft = r

	cc, err := dialInsecure(leaderAddr)
	if err != nil {
		return fmt.Errorf("connect to leader: %w", err)
	}
	defer cc.Close()

	client := rpc.NewClusterClient(cc)
	resp, err := client.JoinCluster(ctx, &rpc.JoinClusterRequest{NodeID: k.nodeID, BindAddr: k.bindAddr, Token: token})
	if err != nil {
		return fmt.Errorf("join cluster via RPC: %w", err)
	}
	if resp.Status != "success" {
		return fmt.Errorf("leader rejected join: %s", resp.Status)
	}

	if err := k.ca.LoadFromStore(); err != nil {
		return fmt.Errorf("load CA: %w", err)
	}
	if err := k.provisionNodeCertificate(); err != nil {
		return fmt.Errorf("provision node certificate: %w", err)
	}

	log.WithComponent("kernel").Info().Str("node_id", k.nodeID).Str("leader", leaderAddr).Msg("joined cluster")
	k.startTickLoop()
	return nil
}

// AddVoter adds a node as a Raft voter; only the leader may call this,
// normally in response to a ClusterService.JoinCluster RPC from the
// joining node.
func (k *Kernel) AddVoter(nodeID, address string) error {
	if k.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	if !k.IsLeader() {
		return fmt.Errorf("not the leader, current leader: %s", k.LeaderAddr())
	}
	future := k.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second)
	return future.Error()
}

func (k *Kernel) RemoveServer(nodeID string) error {
	if k.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	if !k.IsLeader() {
		return fmt.Errorf("not the leader")
	}
	return k.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second).Error()
}

func (k *Kernel) GetClusterServers() ([]raft.Server, error) {
	if k.raft == nil {
		return nil, fmt.Errorf("raft not initialized")
	}
	future := k.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return nil, err
	}
	return future.Configuration().Servers, nil
}

func (k *Kernel) IsLeader() bool {
	return k.raft != nil && k.raft.State() == raft.Leader
}

func (k *Kernel) LeaderAddr() string {
	if k.raft == nil {
		return ""
	}
	return string(k.raft.Leader())
}

func (k *Kernel) NodeID() string { return k.nodeID }

// Degraded reports whether this node is the sole member of its Raft
// configuration — the single-node degraded mode decision.
func (k *Kernel) Degraded() bool {
	servers, err := k.GetClusterServers()
	return err == nil && len(servers) <= 1
}

func (k *Kernel) GetRaftStats() map[string]interface{} {
	if k.raft == nil {
		return nil
	}
	stats := map[string]interface{}{
		"state":          k.raft.State().String(),
		"last_log_index": k.raft.LastIndex(),
		"applied_index":  k.raft.AppliedIndex(),
		"leader":         string(k.raft.Leader()),
	}
	if cf := k.raft.GetConfiguration(); cf.Error() == nil {
		stats["peers"] = uint64(len(cf.Configuration().Servers))
	}
	return stats
}

// RaftStats feeds the metrics collector's Raft gauges.
func (k *Kernel) RaftStats() map[string]uint64 {
	if k.raft == nil {
		return nil
	}
	stats := map[string]uint64{
		"last_log_index": k.raft.LastIndex(),
		"applied_index":  k.raft.AppliedIndex(),
	}
	if cf := k.raft.GetConfiguration(); cf.Error() == nil {
		stats["num_peers"] = uint64(len(cf.Configuration().Servers))
	}
	return stats
}

// ActiveTimerCountsByTenant snapshots the non-terminal timer count per
// tenant for the metrics collector's gauge sweep.
func (k *Kernel) ActiveTimerCountsByTenant() map[string]int {
	counts := make(map[string]int)
	policies, err := k.store.ListTenantPolicies()
	if err != nil {
		return counts
	}
	for _, p := range policies {
		if n, err := k.CountActive(p.TenantID); err == nil {
			counts[p.TenantID] = n
		}
	}
	return counts
}

func (k *Kernel) EventBroker() *events.Broker { return k.events }

// apply marshals cmd and commits it through Raft, returning the
// ApplyResult the FSM produced.
func (k *Kernel) apply(cmd Command) (ApplyResult, error) {
	t := metrics.NewTimer()
	defer t.ObserveDuration(metrics.RaftApplyDuration)

	if k.raft == nil {
		return ApplyResult{}, fmt.Errorf("raft not initialized")
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("marshal command: %w", err)
	}
	future := k.raft.Apply(data, 5*time.Second)
	if err := future.Error(); err != nil {
		if err == raft.ErrNotLeader || err == raft.ErrLeadershipLost {
			return ApplyResult{}, herror.NotLeader(500, "node %s is not the leader", k.nodeID)
		}
		return ApplyResult{}, fmt.Errorf("apply command: %w", err)
	}
	resp, ok := future.Response().(ApplyResult)
	if !ok {
		return ApplyResult{}, fmt.Errorf("unexpected apply response type %T", future.Response())
	}
	if resp.Err != nil {
		return ApplyResult{}, resp.Err
	}
	return resp, nil
}

// ScheduleInput is the kernel-level request shape for scheduling a
// timer, already authorized and quota-checked by the Command Gateway.
type ScheduleInput struct {
	TenantID       string
	PrincipalID    string
	Name           string
	Labels         map[string]string
	FireAt         time.Time
	ActionBundle   *types.ActionBundle
	Metadata       map[string]string
	IdempotencyKey string
}

// Schedule commits a new timer, or returns the existing one if
// IdempotencyKey matches a prior call — the leader-side pre-check
// means a duplicate request never reaches Raft at all, so it commits
// exactly zero additional log entries.
func (k *Kernel) Schedule(ctx context.Context, in ScheduleInput) (*types.Timer, error) {
	if !in.FireAt.After(time.Now()) {
		return nil, herror.InvalidInput("fire_at", "fire_at must be in the future")
	}
	if in.Name == "" {
		return nil, herror.InvalidInput("name", "name is required")
	}

	if in.IdempotencyKey != "" {
		if existing, err := k.store.FindByIdempotencyKey(in.TenantID, in.IdempotencyKey); err == nil && existing != nil {
			return existing, nil
		}
	}

	if in.ActionBundle != nil {
		for i := range in.ActionBundle.Actions {
			in.ActionBundle.Actions[i].Retry = in.ActionBundle.Actions[i].Retry.Normalize()
		}
	}

	now := time.Now()
	timer := &types.Timer{
		ID:             uuid.NewString(),
		TenantID:       in.TenantID,
		PrincipalID:    in.PrincipalID,
		Name:           in.Name,
		Labels:         in.Labels,
		CreatedAt:      now,
		FireAt:         in.FireAt,
		Duration:       in.FireAt.Sub(now),
		ActionBundle:   in.ActionBundle,
		Metadata:       in.Metadata,
		IdempotencyKey: in.IdempotencyKey,
	}

	data, err := json.Marshal(scheduleCmd{Timer: timer})
	if err != nil {
		return nil, fmt.Errorf("marshal schedule command: %w", err)
	}
	res, err := k.apply(Command{Op: opSchedule, Data: data})
	if err != nil {
		return nil, err
	}
	metrics.TimersActive.WithLabelValues(in.TenantID).Inc()
	return res.Timer, nil
}

// Cancel commits a cancellation. If the timer already reached a
// terminal state (it fired or was already cancelled first), the
// existing terminal state is returned without error — the race is
// resolved purely by commit order.
func (k *Kernel) Cancel(ctx context.Context, tenantID, timerID, reason, by string) (*types.Timer, error) {
	data, err := json.Marshal(cancelCmd{TenantID: tenantID, TimerID: timerID, Reason: reason, By: by, At: time.Now()})
	if err != nil {
		return nil, fmt.Errorf("marshal cancel command: %w", err)
	}
	res, err := k.apply(Command{Op: opCancel, Data: data})
	if err != nil {
		return nil, err
	}
	return res.Timer, nil
}

func (k *Kernel) Get(tenantID, timerID string) (*types.Timer, error) {
	t, err := k.store.GetTimer(tenantID, timerID)
	if err != nil {
		return nil, herror.NotFound("timer %s not found", timerID)
	}
	return t, nil
}

func (k *Kernel) List(tenantID string, afterIndex uint64, limit int) ([]*types.Timer, error) {
	return k.store.ListTimers(tenantID, afterIndex, limit)
}

// CountActive returns the number of non-terminal timers for tenantID,
// answering the Command Gateway's burst-quota check from this node's
// local projection — eventually consistent across replicas, so slight
// over-admission is possible and tolerated.
func (k *Kernel) CountActive(tenantID string) (int, error) {
	timers, err := k.store.ListTimers(tenantID, 0, 0)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range timers {
		if t.IsActive() {
			n++
		}
	}
	return n, nil
}

// IncrementDailyScheduleCount records one more schedule admission for
// tenantID on the given day (YYYY-MM-DD) and returns the new count,
// backing the tenant_quota_usage table's daily-limit half of I5. This
// is local per-node bookkeeping, not a Raft-replicated fact: a
// follower that becomes leader mid-day starts its own count, the same
// eventual-consistency tradeoff as the burst check above.
func (k *Kernel) IncrementDailyScheduleCount(tenantID, day string) (int, error) {
	return k.store.IncrementDailyScheduleCount(tenantID, day)
}

func (k *Kernel) PutTenantPolicy(p *types.TenantPolicy) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal tenant policy: %w", err)
	}
	_, err = k.apply(Command{Op: opPutTenantPolicy, Data: data})
	return err
}

func (k *Kernel) GetTenantPolicy(tenantID string) (*types.TenantPolicy, error) {
	return k.store.GetTenantPolicy(tenantID)
}

// RecordActionOutcome lets the Action Orchestrator report a terminal
// dispatch failure without changing the timer's (already-fired) status.
func (k *Kernel) RecordActionOutcome(tenantID, timerID, failureReason string) error {
	data, err := json.Marshal(recordActionOutcomeCmd{TenantID: tenantID, TimerID: timerID, FailureReason: failureReason})
	if err != nil {
		return fmt.Errorf("marshal action outcome command: %w", err)
	}
	_, err = k.apply(Command{Op: opRecordActionOutcome, Data: data})
	return err
}

// startTickLoop runs the scheduling loop on every node: each tick
// advances the wheel against wall-clock time and commits a mark_fired
// (or fail_admission, unused here) for every due entry, but tick returns
// at once on a node that is not the leader — followers' wheels stay
// populated via FSM.Apply alone, ready to resume immediately if they
// are elected.
func (k *Kernel) startTickLoop() {
	k.tickWg.Add(1)
	go func() {
		defer k.tickWg.Done()
		ticker := time.NewTicker(k.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				k.tick()
			case <-k.stopTick:
				return
			}
		}
	}()
}

// highJitterTickLimit is how many consecutive ticks may exceed the
// jitter budget before the ClockDrift signal is raised.
const highJitterTickLimit = 10

// driftPause is how long the tick loop stops firing after a detected
// clock jump, giving NTP a window to reconverge before wake decisions
// resume.
const driftPause = time.Second

func (k *Kernel) tick() {
	if !k.IsLeader() {
		return
	}
	t := metrics.NewTimer()
	defer t.ObserveDuration(metrics.TickDuration)

	now := time.Now()
	if k.detectClockJump(now) {
		return
	}
	if !k.driftPauseUntil.IsZero() {
		if now.Before(k.driftPauseUntil) {
			return
		}
		k.driftPauseUntil = time.Time{}
		metrics.ClockDriftSignal.Set(0)
	}

	// FSM.Apply adds and cancels wheel entries on the Raft goroutine;
	// holding the FSM lock keeps Advance from running concurrently.
	k.fsm.mu.Lock()
	due := k.wheel.Advance(now)
	k.fsm.mu.Unlock()
	tickMaxJitterMs := int64(0)
	for _, e := range due {
		jitterMs := now.Sub(e.FireAt).Milliseconds()
		if jitterMs > tickMaxJitterMs {
			tickMaxJitterMs = jitterMs
		}
		data, err := json.Marshal(markFiredCmd{TenantID: e.TenantID, TimerID: e.TimerID, FiredAt: now, JitterMs: jitterMs})
		if err != nil {
			log.WithComponent("kernel").Error().Err(err).Str("timer_id", e.TimerID).Msg("marshal mark_fired command")
			continue
		}
		if _, err := k.apply(Command{Op: opMarkFired, Data: data}); err != nil {
			log.WithComponent("kernel").Error().Err(err).Str("timer_id", e.TimerID).Msg("commit mark_fired")
			continue
		}
		metrics.FireJitter.Observe(float64(jitterMs) / 1000)
		metrics.TimersTotal.WithLabelValues(string(types.TimerStatusFired)).Inc()
		if jitterMs > k.jitterWarnMs {
			log.WithComponent("kernel").Warn().Str("timer_id", e.TimerID).Int64("jitter_ms", jitterMs).Msg("fire jitter exceeded SLO")
		}
	}

	// Sustained over-budget jitter is the other ClockDrift trigger: a
	// single late timer is noise, ten consecutive late ticks are a sick
	// clock or an overloaded node.
	if tickMaxJitterMs > k.jitterWarnMs {
		k.highJitterTicks++
		if k.highJitterTicks == highJitterTickLimit {
			metrics.ClockDriftSignal.Set(1)
			log.WithComponent("kernel").Warn().Int64("jitter_ms", tickMaxJitterMs).Msg("sustained fire jitter over budget, raising clock drift signal")
		}
	} else if len(due) > 0 || k.highJitterTicks > 0 {
		k.highJitterTicks = 0
		metrics.ClockDriftSignal.Set(0)
	}
}

// detectClockJump flags a monotonic-delta anomaly between consecutive
// ticks: the ticker fires every tickInterval, so a gap far beyond that
// means the process was suspended or the clock stepped. Scheduling
// pauses briefly so wake decisions are not made against a clock that
// is still settling.
func (k *Kernel) detectClockJump(now time.Time) bool {
	defer func() { k.lastTick = now }()
	if k.lastTick.IsZero() {
		return false
	}

	jumpThreshold := 100 * k.tickInterval
	if jumpThreshold < time.Second {
		jumpThreshold = time.Second
	}
	if gap := now.Sub(k.lastTick); gap > jumpThreshold {
		k.driftPauseUntil = now.Add(driftPause)
		metrics.ClockDriftSignal.Set(1)
		log.WithComponent("kernel").Warn().
			Dur("gap", gap).
			Msg("clock jump detected, pausing scheduling to let the clock settle")
		return true
	}
	return false
}

// Shutdown stops the tick loop, Raft, the event broker, and the store.
func (k *Kernel) Shutdown() error {
	close(k.stopTick)
	k.tickWg.Wait()

	if k.events != nil {
		k.events.Stop()
	}
	if k.raft != nil {
		if err := k.raft.Shutdown().Error(); err != nil {
			return fmt.Errorf("shutdown raft: %w", err)
		}
	}
	if k.store != nil {
		if err := k.store.Close(); err != nil {
			return fmt.Errorf("close store: %w", err)
		}
	}
	return nil
}

func (k *Kernel) initializeCA() error {
	if k.ca.IsInitialized() {
		return nil
	}
	if err := k.ca.LoadFromStore(); err == nil {
		return nil
	}
	if err := k.ca.Initialize(); err != nil {
		return fmt.Errorf("initialize CA: %w", err)
	}
	return k.ca.SaveToStore()
}

// provisionNodeCertificate issues this node's serving certificate from
// the cluster CA and writes it (plus the CA cert) where pkg/api's TLS
// listener expects to find it.
func (k *Kernel) provisionNodeCertificate() error {
	certDir, err := security.GetCertDir("node", k.nodeID)
	if err != nil {
		return fmt.Errorf("get cert directory: %w", err)
	}
	if security.CertExists(certDir) {
		return nil
	}

	var ipAddresses []net.IP
	if host, _, err := net.SplitHostPort(k.bindAddr); err == nil {
		if ip := net.ParseIP(host); ip != nil {
			ipAddresses = []net.IP{ip}
		}
	}
	dnsNames := []string{fmt.Sprintf("node-%s", k.nodeID), "localhost"}

	cert, err := k.ca.IssueNodeCertificate(k.nodeID, "node", dnsNames, ipAddresses)
	if err != nil {
		return fmt.Errorf("issue node certificate: %w", err)
	}
	if err := security.SaveCertToFile(cert, certDir); err != nil {
		return fmt.Errorf("save certificate: %w", err)
	}
	if err := security.SaveCACertToFile(k.ca.GetRootCACert(), certDir); err != nil {
		return fmt.Errorf("save CA certificate: %w", err)
	}
	return nil
}

func (k *Kernel) GenerateJoinToken(duration time.Duration) (*JoinToken, error) {
	return k.tokenManager.GenerateToken(duration)
}

func (k *Kernel) ValidateJoinToken(token string) error {
	return k.tokenManager.ValidateToken(token)
}
