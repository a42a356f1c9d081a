package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"

	"github.com/cuemby/horology/internal/rpc"
	"github.com/cuemby/horology/pkg/gateway"
	"github.com/cuemby/horology/pkg/herror"
	"github.com/cuemby/horology/pkg/kernel"
	"github.com/cuemby/horology/pkg/log"
	"github.com/cuemby/horology/pkg/security"
	"github.com/cuemby/horology/pkg/types"
)

// Metadata header names callers use to present their claimed tenant and
// credential; the Command Gateway never trusts a request body field for
// authentication.
const (
	headerTenantID      = "x-tenant-id"
	headerAPIKey        = "x-api-key"
	headerAuthorization = "authorization"
	headerRequestID     = "x-request-id"
	headerRegion        = "x-region"
)

// Server implements rpc.TimerServer, rpc.ClusterServiceServer and
// rpc.AdminServer, translating between the wire messages and the
// Command Gateway / Horology Kernel.
type Server struct {
	gateway *gateway.Gateway
	kernel  *kernel.Kernel
	grpc    *grpc.Server
}

// NewServer builds a gRPC server that serves TLS with the node
// certificate (client certificates are requested but not verified) and
// registers the Timer, Cluster and Admin services on it.
func NewServer(gw *gateway.Gateway, k *kernel.Kernel) (*Server, error) {
	certDir, err := security.GetCertDir("node", k.NodeID())
	if err != nil {
		return nil, fmt.Errorf("get cert directory: %w", err)
	}
	if !security.CertExists(certDir) {
		return nil, fmt.Errorf("node certificate not found at %s - ensure cluster is initialized", certDir)
	}
	cert, err := security.LoadCertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("load node certificate: %w", err)
	}
	caCert, err := security.LoadCACertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("load CA certificate: %w", err)
	}
	certPool := x509.NewCertPool()
	certPool.AddCert(caCert)

	tlsConfig := &tls.Config{
		ClientAuth:   tls.RequestClientCert,
		Certificates: []tls.Certificate{*cert},
		ClientCAs:    certPool,
		MinVersion:   tls.VersionTLS13,
	}

	s := &Server{gateway: gw, kernel: k}
	s.grpc = grpc.NewServer(
		grpc.Creds(credentials.NewTLS(tlsConfig)),
		grpc.ChainUnaryInterceptor(ErrorTranslationInterceptor(), RequestLogInterceptor()),
		grpc.ChainStreamInterceptor(StreamErrorTranslationInterceptor()),
	)

	rpcSrv := rpc.ServiceDesc
	s.grpc.RegisterService(&rpcSrv, s)
	clusterSrv := rpc.ClusterServiceDesc
	s.grpc.RegisterService(&clusterSrv, s)
	adminSrv := rpc.AdminServiceDesc
	s.grpc.RegisterService(&adminSrv, s)

	return s, nil
}

// Start begins serving gRPC on addr; it blocks until the listener fails
// or Stop is called.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	log.Info("gRPC API listening on " + addr)
	return s.grpc.Serve(lis)
}

// Stop gracefully drains in-flight RPCs before returning.
func (s *Server) Stop() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
}

func credentialFrom(ctx context.Context, requestTenantID string) (tenantID, credential string) {
	tenantID = requestTenantID
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return tenantID, ""
	}
	if v := firstValue(md, headerTenantID); v != "" {
		tenantID = v
	}
	if v := firstValue(md, headerAPIKey); v != "" {
		return tenantID, v
	}
	if v := firstValue(md, headerAuthorization); v != "" {
		if rest, ok := strings.CutPrefix(v, "Bearer "); ok {
			return tenantID, rest
		}
		return tenantID, v
	}
	return tenantID, ""
}

func firstValue(md metadata.MD, key string) string {
	vals := md.Get(key)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func (s *Server) ScheduleTimer(ctx context.Context, req *rpc.ScheduleRequest) (*rpc.ScheduleResponse, error) {
	tenantID, credential := credentialFrom(ctx, req.TenantID)

	in := gateway.ScheduleInput{
		Name:           req.Name,
		Labels:         req.Labels,
		DurationMs:     req.DurationMs,
		ActionBundle:   fromActionBundleMsg(req.ActionBundle),
		Metadata:       req.Metadata,
		IdempotencyKey: req.IdempotencyKey,
	}
	if req.FireAt != nil {
		fireAt := *req.FireAt
		in.FireAtISO = &fireAt
	}

	timer, err := s.gateway.Schedule(ctx, tenantID, credential, in)
	if err != nil {
		return nil, err
	}
	return &rpc.ScheduleResponse{Timer: toTimerMessage(timer)}, nil
}

func (s *Server) CancelTimer(ctx context.Context, req *rpc.CancelRequest) (*rpc.CancelResponse, error) {
	tenantID, credential := credentialFrom(ctx, req.TenantID)

	timer, err := s.gateway.Cancel(ctx, tenantID, credential, req.TimerID, req.Reason)
	if err != nil {
		return nil, err
	}
	return &rpc.CancelResponse{Timer: toTimerMessage(timer)}, nil
}

func (s *Server) GetTimer(ctx context.Context, req *rpc.GetRequest) (*rpc.GetResponse, error) {
	tenantID, credential := credentialFrom(ctx, req.TenantID)

	timer, err := s.gateway.Get(ctx, tenantID, credential, req.TimerID)
	if err != nil {
		return nil, err
	}
	return &rpc.GetResponse{Timer: toTimerMessage(timer)}, nil
}

func (s *Server) ListTimers(ctx context.Context, req *rpc.ListRequest) (*rpc.ListResponse, error) {
	tenantID, credential := credentialFrom(ctx, req.TenantID)

	timers, err := s.gateway.List(ctx, tenantID, credential, req.AfterIndex, int(req.Limit))
	if err != nil {
		return nil, err
	}
	out := make([]*rpc.TimerMessage, len(timers))
	for i, t := range timers {
		out[i] = toTimerMessage(t)
	}
	return &rpc.ListResponse{Timers: out}, nil
}

func (s *Server) StreamTimerEvents(req *rpc.StreamRequest, stream rpc.TimerService_StreamTimerEventsServer) error {
	ctx := stream.Context()
	tenantID, credential := credentialFrom(ctx, req.TenantID)

	if _, err := s.gateway.Subscribe(ctx, tenantID, credential, nil, req.FromCursor); err != nil {
		return err
	}

	topics := make([]types.EventKind, len(req.Topics))
	for i, t := range req.Topics {
		topics[i] = types.EventKind(t)
	}

	sub, err := s.kernel.EventBroker().Subscribe(tenantID, topics, req.FromCursor)
	if err != nil {
		return herror.Internal(err, "subscribe to event stream")
	}
	defer s.kernel.EventBroker().Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.Events():
			if !ok {
				if sub.Disconnected() {
					return herror.Unavailable("subscriber disconnected, resume with cursor %s", sub.Cursor())
				}
				return nil
			}
			if err := stream.Send(toFireEventMessage(ev)); err != nil {
				return err
			}
			sub.Ack(ev.Cursor)
		}
	}
}

// PutTenantPolicy seeds or updates a tenant's quota/credential policy.
// It is an operator RPC, not a tenant-facing one: no gateway auth or
// quota check applies, since this is the bootstrap path that creates
// the credentials the admission path later verifies.
func (s *Server) PutTenantPolicy(ctx context.Context, req *rpc.PutTenantPolicyRequest) (*rpc.PutTenantPolicyResponse, error) {
	if req.Policy == nil || req.Policy.TenantID == "" {
		return nil, herror.InvalidInput("tenant_id", "tenant_id is required")
	}
	policy := fromTenantPolicyMsg(req.Policy)
	if req.Policy.APIKey != "" {
		policy.APIKeyHash = gateway.HashAPIKey(req.Policy.APIKey)
	}
	if err := s.kernel.PutTenantPolicy(policy); err != nil {
		return nil, herror.Internal(err, "put tenant policy")
	}
	return &rpc.PutTenantPolicyResponse{Policy: toTenantPolicyMsg(policy)}, nil
}

func (s *Server) GetTenantPolicy(ctx context.Context, req *rpc.GetTenantPolicyRequest) (*rpc.GetTenantPolicyResponse, error) {
	policy, err := s.kernel.GetTenantPolicy(req.TenantID)
	if err != nil || policy == nil {
		return nil, herror.NotFound("tenant policy %s not found", req.TenantID)
	}
	return &rpc.GetTenantPolicyResponse{Policy: toTenantPolicyMsg(policy)}, nil
}

// GenerateJoinToken mints a short-lived voter join token; leader-only,
// since only the leader can later honor the AddVoter the token gates.
func (s *Server) GenerateJoinToken(ctx context.Context, req *rpc.GenerateJoinTokenRequest) (*rpc.GenerateJoinTokenResponse, error) {
	if !s.kernel.IsLeader() {
		return nil, herror.NotLeader(500, "not the leader, current leader: %s", s.kernel.LeaderAddr())
	}
	token, err := s.kernel.GenerateJoinToken(24 * time.Hour)
	if err != nil {
		return nil, herror.Internal(err, "generate join token")
	}
	return &rpc.GenerateJoinTokenResponse{Token: token.Token, ExpiresAt: token.ExpiresAt}, nil
}

// JoinCluster handles a voter join request on the leader: validate the
// join token, then add the caller as a Raft voter.
func (s *Server) JoinCluster(ctx context.Context, req *rpc.JoinClusterRequest) (*rpc.JoinClusterResponse, error) {
	if !s.kernel.IsLeader() {
		return nil, herror.NotLeader(500, "not the leader, current leader: %s", s.kernel.LeaderAddr())
	}

	if err := s.kernel.ValidateJoinToken(req.Token); err != nil {
		return nil, herror.PermissionDenied("invalid join token: %v", err)
	}

	if err := s.kernel.AddVoter(req.NodeID, req.BindAddr); err != nil {
		return nil, herror.Internal(err, "add voter %s", req.NodeID)
	}

	return &rpc.JoinClusterResponse{Status: "success", LeaderAddr: s.kernel.LeaderAddr()}, nil
}

func (s *Server) GetClusterInfo(ctx context.Context, req *rpc.GetClusterInfoRequest) (*rpc.GetClusterInfoResponse, error) {
	servers, err := s.kernel.GetClusterServers()
	if err != nil {
		return nil, herror.Internal(err, "list cluster servers")
	}
	out := make([]*rpc.ClusterServer, len(servers))
	for i, srv := range servers {
		out[i] = &rpc.ClusterServer{
			ID:       string(srv.ID),
			Address:  string(srv.Address),
			Suffrage: srv.Suffrage.String(),
		}
	}
	return &rpc.GetClusterInfoResponse{
		Servers:    out,
		LeaderAddr: s.kernel.LeaderAddr(),
		IsLeader:   s.kernel.IsLeader(),
	}, nil
}

func toTimerMessage(t *types.Timer) *rpc.TimerMessage {
	if t == nil {
		return nil
	}
	msg := &rpc.TimerMessage{
		ID:             t.ID,
		TenantID:       t.TenantID,
		PrincipalID:    t.PrincipalID,
		Name:           t.Name,
		Labels:         t.Labels,
		CreatedAt:      t.CreatedAt,
		FireAt:         t.FireAt,
		DurationMs:     t.Duration.Milliseconds(),
		Status:         string(t.Status),
		CancelReason:   t.CancelReason,
		CancelledBy:    t.CancelledBy,
		ActionBundle:   toActionBundleMsg(t.ActionBundle),
		Metadata:       t.Metadata,
		IdempotencyKey: t.IdempotencyKey,
		LogIndex:       t.LogIndex,
		JitterMs:       t.JitterMs,
		FailureReason:  t.FailureReason,
	}
	if !t.FiredAt.IsZero() {
		firedAt := t.FiredAt
		msg.FiredAt = &firedAt
	}
	if !t.SettledAt.IsZero() {
		settledAt := t.SettledAt
		msg.SettledAt = &settledAt
	}
	return msg
}

func toActionBundleMsg(b *types.ActionBundle) *rpc.ActionBundleMsg {
	if b == nil {
		return nil
	}
	actions := make([]rpc.ActionMsg, len(b.Actions))
	for i, a := range b.Actions {
		actions[i] = rpc.ActionMsg{
			Kind:             string(a.Kind),
			Parameters:       a.Parameters,
			MaxAttempts:      a.Retry.MaxAttempts,
			InitialBackoffMs: a.Retry.InitialBackoffMs,
			Multiplier:       a.Retry.Multiplier,
		}
	}
	return &rpc.ActionBundleMsg{Actions: actions}
}

func fromActionBundleMsg(m *rpc.ActionBundleMsg) *types.ActionBundle {
	if m == nil {
		return nil
	}
	actions := make([]types.Action, len(m.Actions))
	for i, a := range m.Actions {
		actions[i] = types.Action{
			Kind:       types.ActionKind(a.Kind),
			Parameters: a.Parameters,
			Retry: types.RetryPolicy{
				MaxAttempts:      a.MaxAttempts,
				InitialBackoffMs: a.InitialBackoffMs,
				Multiplier:       a.Multiplier,
			},
		}
	}
	return &types.ActionBundle{Actions: actions}
}

func toTenantPolicyMsg(p *types.TenantPolicy) *rpc.TenantPolicyMsg {
	if p == nil {
		return nil
	}
	return &rpc.TenantPolicyMsg{
		TenantID:           p.TenantID,
		Permissions:        p.Permissions,
		DailyLimit:         int32(p.DailyLimit),
		BurstLimit:         int32(p.BurstLimit),
		SchedulePerMinute:  int32(p.SchedulePerMinute),
		CancelPerMinute:    int32(p.CancelPerMinute),
		RegionalPreference: p.RegionalPreference,
	}
}

func fromTenantPolicyMsg(m *rpc.TenantPolicyMsg) *types.TenantPolicy {
	return &types.TenantPolicy{
		TenantID:           m.TenantID,
		Permissions:        m.Permissions,
		DailyLimit:         int(m.DailyLimit),
		BurstLimit:         int(m.BurstLimit),
		SchedulePerMinute:  int(m.SchedulePerMinute),
		CancelPerMinute:    int(m.CancelPerMinute),
		RegionalPreference: m.RegionalPreference,
	}
}

func toFireEventMessage(e *types.FireEvent) *rpc.FireEventMessage {
	return &rpc.FireEventMessage{
		EventID:  e.EventID,
		TimerID:  e.TimerID,
		TenantID: e.TenantID,
		Kind:     string(e.Kind),
		Instant:  e.Instant,
		Reason:   e.Reason,
		Cursor:   e.Cursor,
	}
}
