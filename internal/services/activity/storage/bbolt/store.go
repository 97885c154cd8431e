// Package bbolt provides a BoltDB-backed activity store. Bolt serializes
// writers, so every Update callback observes the latest committed activity
// document and commits atomically against any concurrent update.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/gathering.space/internal/services/activity/domain"
	"github.com/louisbranch/gathering.space/internal/services/activity/storage"
	"go.etcd.io/bbolt"
)

const (
	activityBucket = "activity"
	rewardBucket   = "reward"
	paymentBucket  = "payment"
)

// Store provides a BoltDB-backed activity store.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// PutActivity upserts an activity document.
func (s *Store) PutActivity(ctx context.Context, activity domain.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(activity.ID) == "" {
		return fmt.Errorf("activity id is required")
	}

	payload, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(activityBucket))
		if bucket == nil {
			return fmt.Errorf("activity bucket is missing")
		}
		return bucket.Put([]byte(activity.ID), payload)
	})
}

// GetActivity fetches an activity document by ID.
func (s *Store) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Activity{}, err
	}
	if s == nil || s.db == nil {
		return domain.Activity{}, fmt.Errorf("storage is not configured")
	}

	var activity domain.Activity
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(activityBucket))
		if bucket == nil {
			return fmt.Errorf("activity bucket is missing")
		}
		payload := bucket.Get([]byte(id))
		if payload == nil {
			return storage.ErrNotFound
		}
		return json.Unmarshal(payload, &activity)
	})
	if err != nil {
		return domain.Activity{}, err
	}
	return activity, nil
}

// Update runs fn inside one atomic write transaction scoped to activityID.
func (s *Store) Update(ctx context.Context, activityID string, fn func(storage.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(activityID) == "" {
		return fmt.Errorf("activity id is required")
	}
	if fn == nil {
		return fmt.Errorf("update callback is required")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(&txn{tx: tx, activityID: activityID})
	})
}

// PutPaymentFact records a captured payment for a priced activity.
func (s *Store) PutPaymentFact(ctx context.Context, fact storage.PaymentFact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(fact.UserID) == "" || strings.TrimSpace(fact.ActivityID) == "" {
		return fmt.Errorf("payment fact user id and activity id are required")
	}

	payload, err := json.Marshal(fact)
	if err != nil {
		return fmt.Errorf("marshal payment fact: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(paymentBucket))
		if bucket == nil {
			return fmt.Errorf("payment bucket is missing")
		}
		return bucket.Put(paymentKey(fact.ActivityID, fact.UserID), payload)
	})
}

// HasPaymentFact reports whether a captured payment exists.
func (s *Store) HasPaymentFact(ctx context.Context, userID, activityID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.db == nil {
		return false, fmt.Errorf("storage is not configured")
	}

	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(paymentBucket))
		if bucket == nil {
			return fmt.Errorf("payment bucket is missing")
		}
		found = bucket.Get(paymentKey(activityID, userID)) != nil
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// GetRewardEntry fetches a reward ledger row by key.
func (s *Store) GetRewardEntry(ctx context.Context, userID, activityID, rewardType string) (storage.RewardEntry, error) {
	if err := ctx.Err(); err != nil {
		return storage.RewardEntry{}, err
	}
	if s == nil || s.db == nil {
		return storage.RewardEntry{}, fmt.Errorf("storage is not configured")
	}

	var entry storage.RewardEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(rewardBucket))
		if bucket == nil {
			return fmt.Errorf("reward bucket is missing")
		}
		payload := bucket.Get(rewardKey(activityID, userID, rewardType))
		if payload == nil {
			return storage.ErrNotFound
		}
		return json.Unmarshal(payload, &entry)
	})
	if err != nil {
		return storage.RewardEntry{}, err
	}
	return entry, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{activityBucket, rewardBucket, paymentBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

// txn adapts one bolt write transaction to the storage.Txn contract.
type txn struct {
	tx         *bbolt.Tx
	activityID string
}

func (t *txn) Activity() (domain.Activity, error) {
	bucket := t.tx.Bucket([]byte(activityBucket))
	if bucket == nil {
		return domain.Activity{}, fmt.Errorf("activity bucket is missing")
	}
	payload := bucket.Get([]byte(t.activityID))
	if payload == nil {
		return domain.Activity{}, storage.ErrNotFound
	}
	var activity domain.Activity
	if err := json.Unmarshal(payload, &activity); err != nil {
		return domain.Activity{}, fmt.Errorf("unmarshal activity: %w", err)
	}
	return activity, nil
}

func (t *txn) PutActivity(activity domain.Activity) error {
	if activity.ID != t.activityID {
		return fmt.Errorf("activity id %q does not match transaction scope %q", activity.ID, t.activityID)
	}
	payload, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}
	bucket := t.tx.Bucket([]byte(activityBucket))
	if bucket == nil {
		return fmt.Errorf("activity bucket is missing")
	}
	return bucket.Put([]byte(t.activityID), payload)
}

func (t *txn) HasRewardEntry(userID, rewardType string) (bool, error) {
	bucket := t.tx.Bucket([]byte(rewardBucket))
	if bucket == nil {
		return false, fmt.Errorf("reward bucket is missing")
	}
	return bucket.Get(rewardKey(t.activityID, userID, rewardType)) != nil, nil
}

func (t *txn) PutRewardEntry(entry storage.RewardEntry) error {
	if entry.ActivityID != t.activityID {
		return fmt.Errorf("reward entry activity id %q does not match transaction scope %q", entry.ActivityID, t.activityID)
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal reward entry: %w", err)
	}
	bucket := t.tx.Bucket([]byte(rewardBucket))
	if bucket == nil {
		return fmt.Errorf("reward bucket is missing")
	}
	return bucket.Put(rewardKey(t.activityID, entry.UserID, entry.RewardType), payload)
}

func (t *txn) HasPaymentFact(userID string) (bool, error) {
	bucket := t.tx.Bucket([]byte(paymentBucket))
	if bucket == nil {
		return false, fmt.Errorf("payment bucket is missing")
	}
	return bucket.Get(paymentKey(t.activityID, userID)) != nil, nil
}

func rewardKey(activityID, userID, rewardType string) []byte {
	return []byte(activityID + "/" + userID + "/" + rewardType)
}

func paymentKey(activityID, userID string) []byte {
	return []byte(activityID + "/" + userID)
}
