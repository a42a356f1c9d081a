package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cuemby/horology/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketTimers      = []byte("timers")        // key: tenantID + "/" + id -> JSON Timer
	bucketTimersByIdx = []byte("timers_by_idx")  // key: tenantID + "/" + be64(logIndex) -> id, for ordered listing
	bucketIdempotency = []byte("idempotency")    // key: tenantID + "/" + key -> id
	bucketTenants     = []byte("tenant_policies") // key: tenantID -> JSON TenantPolicy
	bucketQuotaUsage  = []byte("quota_usage")     // key: tenantID + "/" + day -> be64(count)
	bucketCA          = []byte("ca")
)

// BoltStore is the embedded, durable TimerProjection implementation used
// by default (KERNEL_STORE=bolt or unset).
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if necessary) a BoltDB-backed store under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "horology.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketTimers, bucketTimersByIdx, bucketIdempotency, bucketTenants, bucketQuotaUsage, bucketCA} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func timerKey(tenantID, id string) []byte {
	return []byte(tenantID + "/" + id)
}

func idxKey(tenantID string, logIndex uint64) []byte {
	b := make([]byte, len(tenantID)+1+8)
	n := copy(b, tenantID)
	b[n] = '/'
	binary.BigEndian.PutUint64(b[n+1:], logIndex)
	return b
}

func (s *BoltStore) PutTimer(t *types.Timer) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketTimers).Put(timerKey(t.TenantID, t.ID), data); err != nil {
			return err
		}
		if err := tx.Bucket(bucketTimersByIdx).Put(idxKey(t.TenantID, t.LogIndex), []byte(t.ID)); err != nil {
			return err
		}
		if t.IdempotencyKey != "" {
			ik := []byte(t.TenantID + "/" + t.IdempotencyKey)
			if err := tx.Bucket(bucketIdempotency).Put(ik, []byte(t.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) GetTimer(tenantID, id string) (*types.Timer, error) {
	var t types.Timer
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTimers).Get(timerKey(tenantID, id))
		if data == nil {
			return fmt.Errorf("timer not found: %s", id)
		}
		return json.Unmarshal(data, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *BoltStore) ListTimers(tenantID string, afterIndex uint64, limit int) ([]*types.Timer, error) {
	var out []*types.Timer
	err := s.db.View(func(tx *bolt.Tx) error {
		idxBucket := tx.Bucket(bucketTimersByIdx)
		timerBucket := tx.Bucket(bucketTimers)
		c := idxBucket.Cursor()
		prefix := []byte(tenantID + "/")
		seek := idxKey(tenantID, afterIndex+1)
		for k, id := c.Seek(seek); k != nil && hasPrefix(k, prefix); k, id = c.Next() {
			data := timerBucket.Get(timerKey(tenantID, string(id)))
			if data == nil {
				continue
			}
			var t types.Timer
			if err := json.Unmarshal(data, &t); err != nil {
				return err
			}
			out = append(out, &t)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (s *BoltStore) FindByIdempotencyKey(tenantID, key string) (*types.Timer, error) {
	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketIdempotency).Get([]byte(tenantID + "/" + key))
		if data == nil {
			return nil
		}
		id = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}
	return s.GetTimer(tenantID, id)
}

func (s *BoltStore) DeleteTimer(tenantID, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTimers).Delete(timerKey(tenantID, id))
	})
}

func (s *BoltStore) PutTenantPolicy(p *types.TenantPolicy) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketTenants).Put([]byte(p.TenantID), data)
	})
}

func (s *BoltStore) GetTenantPolicy(tenantID string) (*types.TenantPolicy, error) {
	var p types.TenantPolicy
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTenants).Get([]byte(tenantID))
		if data == nil {
			return fmt.Errorf("tenant policy not found: %s", tenantID)
		}
		return json.Unmarshal(data, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BoltStore) ListTenantPolicies() ([]*types.TenantPolicy, error) {
	var out []*types.TenantPolicy
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTenants).ForEach(func(k, v []byte) error {
			var p types.TenantPolicy
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			out = append(out, &p)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) IncrementDailyScheduleCount(tenantID, day string) (int, error) {
	var count int
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQuotaUsage)
		key := []byte(tenantID + "/" + day)
		var current uint64
		if data := b.Get(key); data != nil {
			current = binary.BigEndian.Uint64(data)
		}
		current++
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, current)
		count = int(current)
		return b.Put(key, buf)
	})
	return count, err
}

func (s *BoltStore) GetDailyScheduleCount(tenantID, day string) (int, error) {
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketQuotaUsage).Get([]byte(tenantID + "/" + day))
		if data != nil {
			count = int(binary.BigEndian.Uint64(data))
		}
		return nil
	})
	return count, err
}

// SaveCA and GetCA satisfy security.CAStore, letting the existing node
// certificate authority persist its root key in the same embedded store.
func (s *BoltStore) SaveCA(data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCA).Put([]byte("root"), data)
	})
}

func (s *BoltStore) GetCA() ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCA).Get([]byte("root"))
		if v == nil {
			return fmt.Errorf("CA not found")
		}
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}
