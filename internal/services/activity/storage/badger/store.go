// Package badger provides a BadgerDB-backed activity store. Badger commits
// optimistically: a transaction that raced a conflicting writer fails with
// ErrConflict and is retried here against the fresh snapshot, up to a bound.
// Callers never observe the retries; exhaustion surfaces as ErrUnavailable.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/louisbranch/gathering.space/internal/services/activity/domain"
	"github.com/louisbranch/gathering.space/internal/services/activity/storage"
)

const (
	activityPrefix = "act:"
	rewardPrefix   = "rwd:"
	paymentPrefix  = "pay:"

	maxCommitRetries = 5
)

// Store provides a BadgerDB-backed activity store.
type Store struct {
	db *badger.DB
}

// Open opens a BadgerDB-backed store at the provided directory.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a store with no on-disk state.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory storage db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying BadgerDB database.
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
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(activityKey(activity.ID), payload)
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
	err := s.db.View(func(txn *badger.Txn) error {
		return readJSON(txn, activityKey(id), &activity)
	})
	if err != nil {
		return domain.Activity{}, err
	}
	return activity, nil
}

// Update runs fn inside one atomic transaction scoped to activityID,
// retrying transient commit conflicts.
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

	for attempt := 0; attempt < maxCommitRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.Update(func(tx *badger.Txn) error {
			return fn(&txn{tx: tx, activityID: activityID})
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return storage.ErrUnavailable
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
	if fact.CapturedAt.IsZero() {
		fact.CapturedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(fact)
	if err != nil {
		return fmt.Errorf("marshal payment fact: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(paymentKey(fact.ActivityID, fact.UserID), payload)
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
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(paymentKey(activityID, userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
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
	err := s.db.View(func(txn *badger.Txn) error {
		return readJSON(txn, rewardKey(activityID, userID, rewardType), &entry)
	})
	if err != nil {
		return storage.RewardEntry{}, err
	}
	return entry, nil
}

// txn adapts one badger transaction to the storage.Txn contract.
type txn struct {
	tx         *badger.Txn
	activityID string
}

func (t *txn) Activity() (domain.Activity, error) {
	var activity domain.Activity
	if err := readJSON(t.tx, activityKey(t.activityID), &activity); err != nil {
		return domain.Activity{}, err
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
	return t.tx.Set(activityKey(t.activityID), payload)
}

func (t *txn) HasRewardEntry(userID, rewardType string) (bool, error) {
	_, err := t.tx.Get(rewardKey(t.activityID, userID, rewardType))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *txn) PutRewardEntry(entry storage.RewardEntry) error {
	if entry.ActivityID != t.activityID {
		return fmt.Errorf("reward entry activity id %q does not match transaction scope %q", entry.ActivityID, t.activityID)
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal reward entry: %w", err)
	}
	return t.tx.Set(rewardKey(t.activityID, entry.UserID, entry.RewardType), payload)
}

func (t *txn) HasPaymentFact(userID string) (bool, error) {
	_, err := t.tx.Get(paymentKey(t.activityID, userID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func readJSON(tx *badger.Txn, key []byte, target any) error {
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, target)
	})
}

func activityKey(id string) []byte {
	return []byte(activityPrefix + id)
}

func rewardKey(activityID, userID, rewardType string) []byte {
	return []byte(rewardPrefix + activityID + "/" + userID + "/" + rewardType)
}

func paymentKey(activityID, userID string) []byte {
	return []byte(paymentPrefix + activityID + "/" + userID)
}
