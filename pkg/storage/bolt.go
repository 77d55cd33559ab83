package storage

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/zapstreak/zapstreak-sdk-go/pkg/model"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketStreaks  = []byte("streaks")
	bucketPending  = []byte("pending")
	bucketResolver = []byte("resolver")
	bucketFailures = []byte("failures")
)

// BoltStore is the durable Store implementation backed by a single bbolt
// file. Every record is one JSON document keyed by identity, replaced in
// place inside an update transaction.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (and initialises) the bbolt-backed store at path.
func NewBoltStore(path string, options *bolt.Options) (*BoltStore, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketStreaks, bucketPending, bucketResolver, bucketFailures} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltStore) get(bucket []byte, key string, out interface{}) error {
	return s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucket).Get([]byte(key))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, out)
	})
}

func (s *BoltStore) put(bucket []byte, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), raw)
	})
}

func (s *BoltStore) delete(bucket []byte, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}

// GetStreak loads the streak record for an identity.
func (s *BoltStore) GetStreak(identity string) (*model.StreakRecord, error) {
	var rec model.StreakRecord
	if err := s.get(bucketStreaks, identity, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutStreak replaces the streak record for its identity.
func (s *BoltStore) PutStreak(rec *model.StreakRecord) error {
	return s.put(bucketStreaks, rec.Identity, rec)
}

// GetPending loads the in-flight payment for an identity.
func (s *BoltStore) GetPending(identity string) (*model.PendingPayment, error) {
	var p model.PendingPayment
	if err := s.get(bucketPending, identity, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PutPending replaces the pending payment for its identity.
func (s *BoltStore) PutPending(p *model.PendingPayment) error {
	return s.put(bucketPending, p.Identity, p)
}

// DeletePending removes the pending payment for an identity.
func (s *BoltStore) DeletePending(identity string) error {
	return s.delete(bucketPending, identity)
}

// GetResolverEntry loads the cached destination list for an identity.
func (s *BoltStore) GetResolverEntry(identity string) (*model.ResolverEntry, error) {
	var e model.ResolverEntry
	if err := s.get(bucketResolver, identity, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// PutResolverEntry replaces the cache entry for its identity.
func (s *BoltStore) PutResolverEntry(e *model.ResolverEntry) error {
	return s.put(bucketResolver, e.Identity, e)
}

// DeleteResolverEntry removes the cache entry for an identity.
func (s *BoltStore) DeleteResolverEntry(identity string) error {
	return s.delete(bucketResolver, identity)
}

// failure marks are stored as a JSON set per identity.
type failureSet map[string]time.Time

// FailedDestinations lists destinations recorded as failed for an identity,
// in stable order.
func (s *BoltStore) FailedDestinations(identity string) ([]string, error) {
	var set failureSet
	if err := s.get(bucketFailures, identity, &set); err != nil {
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	out := make([]string, 0, len(set))
	for dest := range set {
		out = append(out, dest)
	}
	sort.Strings(out)
	return out, nil
}

// MarkFailed records a destination as having failed payment for an identity.
func (s *BoltStore) MarkFailed(identity, destination string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketFailures)
		set := failureSet{}
		if raw := bucket.Get([]byte(identity)); raw != nil {
			if err := json.Unmarshal(raw, &set); err != nil {
				return err
			}
		}
		set[destination] = time.Now().UTC()
		raw, err := json.Marshal(set)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(identity), raw)
	})
}

// ClearFailed drops all failure marks for an identity.
func (s *BoltStore) ClearFailed(identity string) error {
	return s.delete(bucketFailures, identity)
}
