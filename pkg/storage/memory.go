package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/horology/pkg/types"
)

// MemoryStore is an in-process TimerProjection backed by plain maps. It is
// used for single-node degraded mode and tests; it implements the same
// interface as BoltStore so the kernel never special-cases the backend.
type MemoryStore struct {
	mu sync.RWMutex

	timers       map[string]*types.Timer // tenantID + "/" + id
	idempotency  map[string]string        // tenantID + "/" + key -> id
	tenants      map[string]*types.TenantPolicy
	quotaUsage   map[string]int // tenantID + "/" + day
	caData       []byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		timers:      make(map[string]*types.Timer),
		idempotency: make(map[string]string),
		tenants:     make(map[string]*types.TenantPolicy),
		quotaUsage:  make(map[string]int),
	}
}

func (s *MemoryStore) PutTimer(t *types.Timer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	s.timers[t.TenantID+"/"+t.ID] = &cp
	if t.IdempotencyKey != "" {
		s.idempotency[t.TenantID+"/"+t.IdempotencyKey] = t.ID
	}
	return nil
}

func (s *MemoryStore) GetTimer(tenantID, id string) (*types.Timer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.timers[tenantID+"/"+id]
	if !ok {
		return nil, fmt.Errorf("timer not found: %s", id)
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) ListTimers(tenantID string, afterIndex uint64, limit int) ([]*types.Timer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Timer
	for _, t := range s.timers {
		if t.TenantID != tenantID || t.LogIndex <= afterIndex {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LogIndex < out[j].LogIndex })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) FindByIdempotencyKey(tenantID, key string) (*types.Timer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.idempotency[tenantID+"/"+key]
	if !ok {
		return nil, nil
	}
	t, ok := s.timers[tenantID+"/"+id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) DeleteTimer(tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.timers, tenantID+"/"+id)
	return nil
}

func (s *MemoryStore) PutTenantPolicy(p *types.TenantPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.tenants[p.TenantID] = &cp
	return nil
}

func (s *MemoryStore) GetTenantPolicy(tenantID string) (*types.TenantPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("tenant policy not found: %s", tenantID)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListTenantPolicies() ([]*types.TenantPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.TenantPolicy, 0, len(s.tenants))
	for _, p := range s.tenants {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) IncrementDailyScheduleCount(tenantID, day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tenantID + "/" + day
	s.quotaUsage[key]++
	return s.quotaUsage[key], nil
}

func (s *MemoryStore) GetDailyScheduleCount(tenantID, day string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.quotaUsage[tenantID+"/"+day], nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// SaveCA and GetCA satisfy security.CAStore for single-node/test runs.
func (s *MemoryStore) SaveCA(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.caData = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) GetCA() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.caData == nil {
		return nil, fmt.Errorf("CA not found")
	}
	return append([]byte(nil), s.caData...), nil
}
