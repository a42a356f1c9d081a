package kernel

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// TokenManager issues and validates the short-lived tokens gating
// cluster join. Every Horology node is a Raft voter, so a token grants
// exactly one capability: be added as a voter. A token stays valid
// until it expires, so the single token printed at bootstrap can admit
// several replicas; expired entries are pruned as a side effect of
// issuing new ones.
type TokenManager struct {
	mu     sync.Mutex
	tokens map[string]*JoinToken
}

// JoinToken is one issued join credential.
type JoinToken struct {
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewTokenManager creates an empty token manager.
func NewTokenManager() *TokenManager {
	return &TokenManager{
		tokens: make(map[string]*JoinToken),
	}
}

// GenerateToken mints a new join token valid for ttl.
func (tm *TokenManager) GenerateToken(ttl time.Duration) (*JoinToken, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return nil, fmt.Errorf("generate random token: %w", err)
	}

	now := time.Now()
	jt := &JoinToken{
		Token:     hex.EncodeToString(bytes),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	tm.mu.Lock()
	for token, t := range tm.tokens {
		if now.After(t.ExpiresAt) {
			delete(tm.tokens, token)
		}
	}
	tm.tokens[jt.Token] = jt
	tm.mu.Unlock()

	return jt, nil
}

// ValidateToken reports whether token was issued here and is still
// within its validity window.
func (tm *TokenManager) ValidateToken(token string) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	jt, exists := tm.tokens[token]
	if !exists {
		return fmt.Errorf("invalid token")
	}
	if time.Now().After(jt.ExpiresAt) {
		delete(tm.tokens, token)
		return fmt.Errorf("token expired")
	}
	return nil
}
