// Package storage defines persistence contracts for activity roster state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/gathering.space/internal/services/activity/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrUnavailable indicates the store could not commit within its retry budget.
var ErrUnavailable = errors.New("storage unavailable")

// RewardEntry records one idempotent point grant tied to an activity action.
type RewardEntry struct {
	UserID     string
	ActivityID string
	RewardType string
	Points     int
	GrantedAt  time.Time
}

// PaymentFact marks a captured payment for a priced activity. Facts are
// written by the payment flow and only ever read by admission.
type PaymentFact struct {
	UserID     string
	ActivityID string
	CapturedAt time.Time
}

// Txn is one atomic read-modify-write scope over a single activity document
// and its reward-ledger and payment-fact rows. A Txn is only valid inside the
// Update callback that received it. Writes are staged and committed together;
// returning an error from the callback aborts with nothing applied.
type Txn interface {
	// Activity returns the current activity snapshot, or ErrNotFound.
	Activity() (domain.Activity, error)
	// PutActivity stages the mutated activity snapshot for commit.
	PutActivity(activity domain.Activity) error
	// HasRewardEntry reports whether a ledger row exists for the user and type.
	HasRewardEntry(userID, rewardType string) (bool, error)
	// PutRewardEntry stages a ledger row for commit alongside the roster write.
	PutRewardEntry(entry RewardEntry) error
	// HasPaymentFact reports whether a captured payment exists for the user.
	HasPaymentFact(userID string) (bool, error)
}

// Store persists activity documents with serializable per-document updates.
type Store interface {
	// PutActivity upserts an activity document outside the admission path.
	// Collaborator flows (creation, seeding) use it; lifecycle operations
	// must go through Update instead.
	PutActivity(ctx context.Context, activity domain.Activity) error
	// GetActivity fetches an activity document by ID, or ErrNotFound.
	GetActivity(ctx context.Context, id string) (domain.Activity, error)
	// Update runs fn inside one atomic transaction scoped to activityID.
	// The net effect of concurrent updates to the same activity equals some
	// sequential order of those updates. Transient commit conflicts are
	// retried internally; exhaustion surfaces as ErrUnavailable.
	Update(ctx context.Context, activityID string, fn func(Txn) error) error
	// PutPaymentFact records a captured payment for a priced activity.
	PutPaymentFact(ctx context.Context, fact PaymentFact) error
	// HasPaymentFact reports whether a captured payment exists.
	HasPaymentFact(ctx context.Context, userID, activityID string) (bool, error)
	// GetRewardEntry fetches a ledger row by key, or ErrNotFound.
	GetRewardEntry(ctx context.Context, userID, activityID, rewardType string) (RewardEntry, error)
	// Close releases store resources.
	Close() error
}
