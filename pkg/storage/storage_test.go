package storage

import (
	"testing"
	"time"

	"github.com/cuemby/horology/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stores returns one instance of each TimerProjection implementation so
// every test below runs against both backends identically.
func stores(t *testing.T) map[string]TimerProjection {
	t.Helper()

	bolt, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })

	return map[string]TimerProjection{
		"bolt":   bolt,
		"memory": NewMemoryStore(),
	}
}

func TestTimerProjection_PutGet(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			timer := &types.Timer{
				ID:       "t1",
				TenantID: "acme",
				Name:     "reminder",
				FireAt:   time.Now().Add(time.Hour),
				Status:   types.TimerStatusScheduled,
				LogIndex: 1,
			}
			require.NoError(t, s.PutTimer(timer))

			got, err := s.GetTimer("acme", "t1")
			require.NoError(t, err)
			assert.Equal(t, timer.ID, got.ID)
			assert.Equal(t, timer.Name, got.Name)
			assert.Equal(t, types.TimerStatusScheduled, got.Status)
		})
	}
}

func TestTimerProjection_GetMissing(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetTimer("acme", "nope")
			assert.Error(t, err)
		})
	}
}

func TestTimerProjection_ListTimersOrderedByLogIndex(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for i, idx := range []uint64{3, 1, 2} {
				timer := &types.Timer{
					ID:       string(rune('a' + i)),
					TenantID: "acme",
					LogIndex: idx,
					Status:   types.TimerStatusScheduled,
				}
				require.NoError(t, s.PutTimer(timer))
			}

			got, err := s.ListTimers("acme", 0, 0)
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, uint64(1), got[0].LogIndex)
			assert.Equal(t, uint64(2), got[1].LogIndex)
			assert.Equal(t, uint64(3), got[2].LogIndex)
		})
	}
}

func TestTimerProjection_ListTimersAfterIndexAndLimit(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, idx := range []uint64{1, 2, 3, 4} {
				timer := &types.Timer{
					ID:       string(rune('a' + int(idx))),
					TenantID: "acme",
					LogIndex: idx,
					Status:   types.TimerStatusScheduled,
				}
				require.NoError(t, s.PutTimer(timer))
			}

			got, err := s.ListTimers("acme", 1, 2)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, uint64(2), got[0].LogIndex)
			assert.Equal(t, uint64(3), got[1].LogIndex)
		})
	}
}

func TestTimerProjection_ListTimersScopedByTenant(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.PutTimer(&types.Timer{ID: "a", TenantID: "acme", LogIndex: 1}))
			require.NoError(t, s.PutTimer(&types.Timer{ID: "b", TenantID: "globex", LogIndex: 1}))

			got, err := s.ListTimers("acme", 0, 0)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "a", got[0].ID)
		})
	}
}

func TestTimerProjection_FindByIdempotencyKey(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			timer := &types.Timer{
				ID:             "t1",
				TenantID:       "acme",
				IdempotencyKey: "req-123",
				LogIndex:       1,
			}
			require.NoError(t, s.PutTimer(timer))

			found, err := s.FindByIdempotencyKey("acme", "req-123")
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, "t1", found.ID)

			notFound, err := s.FindByIdempotencyKey("acme", "req-999")
			require.NoError(t, err)
			assert.Nil(t, notFound)
		})
	}
}

func TestTimerProjection_DeleteTimer(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.PutTimer(&types.Timer{ID: "t1", TenantID: "acme", LogIndex: 1}))
			require.NoError(t, s.DeleteTimer("acme", "t1"))

			_, err := s.GetTimer("acme", "t1")
			assert.Error(t, err)
		})
	}
}

func TestTimerProjection_TenantPolicyRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			policy := &types.TenantPolicy{
				TenantID:   "acme",
				DailyLimit: 1000,
				BurstLimit: 50,
			}
			require.NoError(t, s.PutTenantPolicy(policy))

			got, err := s.GetTenantPolicy("acme")
			require.NoError(t, err)
			assert.Equal(t, 1000, got.DailyLimit)

			all, err := s.ListTenantPolicies()
			require.NoError(t, err)
			assert.Len(t, all, 1)
		})
	}
}

func TestTimerProjection_DailyScheduleCount(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			count, err := s.GetDailyScheduleCount("acme", "2026-07-29")
			require.NoError(t, err)
			assert.Equal(t, 0, count)

			n, err := s.IncrementDailyScheduleCount("acme", "2026-07-29")
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			n, err = s.IncrementDailyScheduleCount("acme", "2026-07-29")
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			count, err = s.GetDailyScheduleCount("acme", "2026-07-29")
			require.NoError(t, err)
			assert.Equal(t, 2, count)
		})
	}
}

func TestTimerProjection_CARoundTrip(t *testing.T) {
	bolt, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer bolt.Close()

	mem := NewMemoryStore()

	caStores := map[string]interface {
		SaveCA([]byte) error
		GetCA() ([]byte, error)
	}{
		"bolt":   bolt,
		"memory": mem,
	}

	for name, s := range caStores {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetCA()
			assert.Error(t, err)

			require.NoError(t, s.SaveCA([]byte("root-ca-bytes")))

			data, err := s.GetCA()
			require.NoError(t, err)
			assert.Equal(t, "root-ca-bytes", string(data))
		})
	}
}
