package gateway

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/cuemby/horology/pkg/herror"
	"github.com/cuemby/horology/pkg/kernel"
)

// AuthContext is the resolved identity backing every gateway operation:
// one shape every credential resolver produces, whatever the
// credential kind.
type AuthContext struct {
	TenantID    string
	PrincipalID string
	Permissions []string
}

// HasPermission reports whether the credential carries the named grant
// (e.g. "timers:create", "timers:cancel", "timers:read", "timers:stream").
func (a *AuthContext) HasPermission(permission string) bool {
	for _, p := range a.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// CredentialResolver authenticates a single credential for a claimed
// tenant and returns the AuthContext it grants, or an Unauthenticated
// herror. Implementations are composed into a Chain so new credential
// kinds (mTLS client certs, a future OIDC resolver) can be added
// without touching call sites.
type CredentialResolver interface {
	Resolve(ctx context.Context, tenantID, credential string) (*AuthContext, error)
}

// Chain tries each resolver in order, returning the first success. All
// resolvers failing surfaces the last resolver's error.
type Chain []CredentialResolver

func (c Chain) Resolve(ctx context.Context, tenantID, credential string) (*AuthContext, error) {
	if len(c) == 0 {
		return nil, herror.Unauthenticated("no credential resolvers configured")
	}
	var lastErr error
	for _, r := range c {
		authCtx, err := r.Resolve(ctx, tenantID, credential)
		if err == nil {
			return authCtx, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// APIKeyResolver authenticates the `x-api-key` / `authorization: bearer`
// credential against the hashed key stored on the tenant's
// TenantPolicy row.
type APIKeyResolver struct {
	Kernel *kernel.Kernel
}

func NewAPIKeyResolver(k *kernel.Kernel) *APIKeyResolver {
	return &APIKeyResolver{Kernel: k}
}

func (r *APIKeyResolver) Resolve(ctx context.Context, tenantID, credential string) (*AuthContext, error) {
	if tenantID == "" {
		return nil, herror.Unauthenticated("x-tenant-id header is required")
	}
	if credential == "" {
		return nil, herror.Unauthenticated("x-api-key or authorization header is required")
	}

	policy, err := r.Kernel.GetTenantPolicy(tenantID)
	if err != nil || policy == nil {
		// Same response whether the tenant doesn't exist or the key is
		// wrong: never disclose tenant existence to a bad credential.
		return nil, herror.Unauthenticated("invalid credential")
	}

	if subtle.ConstantTimeCompare([]byte(HashAPIKey(credential)), []byte(policy.APIKeyHash)) != 1 {
		return nil, herror.Unauthenticated("invalid credential")
	}

	return &AuthContext{
		TenantID:    tenantID,
		PrincipalID: "apikey:" + tenantID,
		Permissions: policy.Permissions,
	}, nil
}

// HashAPIKey hashes a plaintext API key the same way TenantPolicy rows
// store it. Plaintext keys never touch the store.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
