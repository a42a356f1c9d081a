package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/cuemby/horology/internal/rpc"
	"github.com/cuemby/horology/pkg/security"
)

// Client wraps the hand-written Horology gRPC stubs for CLI and
// programmatic use, attaching the tenant/credential headers the
// Command Gateway expects on every call.
type Client struct {
	conn     *grpc.ClientConn
	timer    *rpc.TimerClient
	cluster  *rpc.ClusterClient
	admin    *rpc.AdminClient
	tenantID string
	apiKey   string
}

// Config configures a new Client.
type Config struct {
	Addr     string
	TenantID string
	APIKey   string

	// Insecure skips TLS entirely (loopback/dev only); otherwise the
	// client verifies the server against the saved CA bundle but
	// presents no client certificate of its own — tenant identity
	// travels in the x-api-key header, not in a per-request client
	// cert.
	Insecure bool
}

// NewClient dials addr and returns a ready-to-use Client.
func NewClient(cfg Config) (*Client, error) {
	var conn *grpc.ClientConn
	var err error

	if cfg.Insecure {
		conn, err = grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		conn, err = dialWithServerCA(cfg.Addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Addr, err)
	}

	return &Client{
		conn:     conn,
		timer:    rpc.NewTimerClient(conn),
		cluster:  rpc.NewClusterClient(conn),
		admin:    rpc.NewAdminClient(conn),
		tenantID: cfg.TenantID,
		apiKey:   cfg.APIKey,
	}, nil
}

func dialWithServerCA(addr string) (*grpc.ClientConn, error) {
	certDir, err := security.GetCLICertDir()
	if err != nil {
		return nil, fmt.Errorf("get CLI cert directory: %w", err)
	}
	if !security.CertExists(certDir) {
		return nil, fmt.Errorf("certificate files (ca.crt, node.crt, node.key) not found in %s", certDir)
	}
	caCert, err := security.LoadCACertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("load CA certificate: %w", err)
	}
	certPool := x509.NewCertPool()
	certPool.AddCert(caCert)

	tlsConfig := &tls.Config{RootCAs: certPool, MinVersion: tls.VersionTLS13}
	return grpc.NewClient(addr, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
}

func (c *Client) Close() error { return c.conn.Close() }

// withCreds attaches the configured tenant/credential headers to ctx,
// matching the metadata convention pkg/api.credentialFrom expects.
func (c *Client) withCreds(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "x-tenant-id", c.tenantID, "x-api-key", c.apiKey)
}

// ScheduleInput mirrors the request oneof for fire time: exactly one of
// DurationMs or FireAt should be set.
type ScheduleInput struct {
	Name           string
	Labels         map[string]string
	DurationMs     int64
	FireAt         *time.Time
	Metadata       map[string]string
	IdempotencyKey string
}

func (c *Client) Schedule(ctx context.Context, in ScheduleInput) (*rpc.TimerMessage, error) {
	resp, err := c.timer.ScheduleTimer(c.withCreds(ctx), &rpc.ScheduleRequest{
		TenantID:       c.tenantID,
		Name:           in.Name,
		Labels:         in.Labels,
		FireAt:         in.FireAt,
		DurationMs:     in.DurationMs,
		Metadata:       in.Metadata,
		IdempotencyKey: in.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}
	return resp.Timer, nil
}

func (c *Client) Cancel(ctx context.Context, timerID, reason string) (*rpc.TimerMessage, error) {
	resp, err := c.timer.CancelTimer(c.withCreds(ctx), &rpc.CancelRequest{
		TenantID: c.tenantID,
		TimerID:  timerID,
		Reason:   reason,
	})
	if err != nil {
		return nil, err
	}
	return resp.Timer, nil
}

func (c *Client) Get(ctx context.Context, timerID string) (*rpc.TimerMessage, error) {
	resp, err := c.timer.GetTimer(c.withCreds(ctx), &rpc.GetRequest{
		TenantID: c.tenantID,
		TimerID:  timerID,
	})
	if err != nil {
		return nil, err
	}
	return resp.Timer, nil
}

func (c *Client) List(ctx context.Context, afterIndex uint64, limit int32) ([]*rpc.TimerMessage, error) {
	resp, err := c.timer.ListTimers(c.withCreds(ctx), &rpc.ListRequest{
		TenantID:   c.tenantID,
		AfterIndex: afterIndex,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	return resp.Timers, nil
}

// Stream opens StreamTimerEvents and invokes onEvent for every event
// received until ctx is cancelled or the stream ends.
func (c *Client) Stream(ctx context.Context, topics []string, fromCursor string, onEvent func(*rpc.FireEventMessage) error) error {
	stream, err := c.timer.StreamTimerEvents(c.withCreds(ctx), &rpc.StreamRequest{
		TenantID:   c.tenantID,
		Topics:     topics,
		FromCursor: fromCursor,
	})
	if err != nil {
		return err
	}
	for {
		ev, err := stream.Recv()
		if err != nil {
			return err
		}
		if err := onEvent(ev); err != nil {
			return err
		}
	}
}

// TenantPolicyInput is the CLI-facing shape for seeding a tenant
// bootstrap manifest (horologyctl apply).
type TenantPolicyInput struct {
	TenantID           string
	APIKey             string
	Permissions        []string
	DailyLimit         int32
	BurstLimit         int32
	SchedulePerMinute  int32
	CancelPerMinute    int32
	RegionalPreference string
}

// PutTenantPolicy seeds or updates a tenant's policy via the operator
// AdminService — unlike Schedule/Cancel/Get/List/Stream, this call
// attaches no tenant/credential headers since it is not a tenant-facing
// operation.
func (c *Client) PutTenantPolicy(ctx context.Context, in TenantPolicyInput) (*rpc.TenantPolicyMsg, error) {
	resp, err := c.admin.PutTenantPolicy(ctx, &rpc.PutTenantPolicyRequest{
		Policy: &rpc.TenantPolicyMsg{
			TenantID:           in.TenantID,
			APIKey:             in.APIKey,
			Permissions:        in.Permissions,
			DailyLimit:         in.DailyLimit,
			BurstLimit:         in.BurstLimit,
			SchedulePerMinute:  in.SchedulePerMinute,
			CancelPerMinute:    in.CancelPerMinute,
			RegionalPreference: in.RegionalPreference,
		},
	})
	if err != nil {
		return nil, err
	}
	return resp.Policy, nil
}

func (c *Client) GetTenantPolicy(ctx context.Context, tenantID string) (*rpc.TenantPolicyMsg, error) {
	resp, err := c.admin.GetTenantPolicy(ctx, &rpc.GetTenantPolicyRequest{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	return resp.Policy, nil
}

// GenerateJoinToken asks the leader to mint a voter join token for a
// new node.
func (c *Client) GenerateJoinToken(ctx context.Context) (*rpc.GenerateJoinTokenResponse, error) {
	return c.cluster.GenerateJoinToken(c.withCreds(ctx), &rpc.GenerateJoinTokenRequest{})
}

func (c *Client) GetClusterInfo(ctx context.Context) (*rpc.GetClusterInfoResponse, error) {
	return c.cluster.GetClusterInfo(c.withCreds(ctx), &rpc.GetClusterInfoRequest{})
}

func (c *Client) JoinCluster(ctx context.Context, nodeID, bindAddr, token string) (*rpc.JoinClusterResponse, error) {
	return c.cluster.JoinCluster(c.withCreds(ctx), &rpc.JoinClusterRequest{
		NodeID:   nodeID,
		BindAddr: bindAddr,
		Token:    token,
	})
}
