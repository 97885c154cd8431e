// Package app orchestrates activity roster mutations. Every lifecycle
// operation runs as one atomic store transaction: read the activity snapshot,
// apply authorization and admission rules against that snapshot, stage the
// roster (and reward ledger) writes, commit. Notification dispatch happens
// only after a successful commit.
package app

import (
	"context"
	"errors"
	"log"
	"time"

	apperrors "github.com/louisbranch/gathering.space/internal/platform/errors"
	"github.com/louisbranch/gathering.space/internal/platform/id"
	"github.com/louisbranch/gathering.space/internal/services/activity/domain"
	"github.com/louisbranch/gathering.space/internal/services/activity/notify"
	"github.com/louisbranch/gathering.space/internal/services/activity/storage"
)

// Service coordinates admission, capacity, and reward control for activities.
// It is stateless and reentrant; correctness under concurrent calls is
// delegated to the store's per-document transaction isolation.
type Service struct {
	store      storage.Store
	rewards    domain.RewardPolicy
	dispatcher notify.Dispatcher
	clock      func() time.Time
	newID      func() (string, error)
}

// NewService constructs the activity lifecycle service. A nil rewards policy,
// dispatcher, clock, or id generator falls back to the default.
func NewService(store storage.Store, rewards domain.RewardPolicy, dispatcher notify.Dispatcher, clock func() time.Time) *Service {
	if rewards == nil {
		rewards = domain.DefaultRewardPolicy()
	}
	if dispatcher == nil {
		dispatcher = notify.LogDispatcher{}
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store:      store,
		rewards:    rewards,
		dispatcher: dispatcher,
		clock:      clock,
		newID:      id.NewID,
	}
}

// Result reports the committed outcome of one lifecycle operation.
type Result struct {
	// Activity is the committed snapshot after the mutation.
	Activity domain.Activity
	// Participant is the roster record the operation created, promoted,
	// or deleted, when the operation targets a single record.
	Participant domain.ParticipantRecord
	// Reward is the ledger entry granted in the same commit, if any.
	Reward *storage.RewardEntry
}

// CreateActivity creates and persists a new activity document.
func (s *Service) CreateActivity(ctx context.Context, input domain.CreateActivityInput) (domain.Activity, error) {
	if s == nil || s.store == nil {
		return domain.Activity{}, apperrors.New(apperrors.CodeUnknown, "activity store is not configured")
	}

	activity, err := domain.CreateActivity(input, s.clock, s.newID)
	if err != nil {
		return domain.Activity{}, mapDomainError(err, nil)
	}
	if err := s.store.PutActivity(ctx, activity); err != nil {
		return domain.Activity{}, apperrors.Wrap(apperrors.CodeUnknown, "persist activity", err)
	}
	return activity, nil
}

// GetActivity fetches an activity document by ID.
func (s *Service) GetActivity(ctx context.Context, activityID string) (domain.Activity, error) {
	if s == nil || s.store == nil {
		return domain.Activity{}, apperrors.New(apperrors.CodeUnknown, "activity store is not configured")
	}

	activity, err := s.store.GetActivity(ctx, activityID)
	if err != nil {
		return domain.Activity{}, mapDomainError(err, meta("activity_id", activityID))
	}
	return activity, nil
}

// dispatch fires post-commit notification intents. Failures are logged and
// discarded; a committed mutation never becomes a caller-visible error here.
func (s *Service) dispatch(ctx context.Context, title string, msgs []notify.Message) {
	if s.dispatcher == nil {
		return
	}
	for _, msg := range msgs {
		msg.ActivityTitle = title
		if err := s.dispatcher.Dispatch(ctx, msg); err != nil {
			log.Printf("dispatch %s to %s: %v", msg.Kind, msg.RecipientID, err)
		}
	}
}

// mapDomainError converts domain and storage errors into coded app errors.
func mapDomainError(err error, metadata map[string]string) error {
	code := apperrors.CodeUnknown
	switch {
	case errors.Is(err, storage.ErrNotFound):
		code = apperrors.CodeActivityNotFound
	case errors.Is(err, storage.ErrUnavailable):
		code = apperrors.CodeUnavailable
	case errors.Is(err, domain.ErrAlreadyMember):
		code = apperrors.CodeAlreadyMember
	case errors.Is(err, domain.ErrActivityFull):
		code = apperrors.CodeActivityFull
	case errors.Is(err, domain.ErrBelowActiveCount):
		code = apperrors.CodeBelowActiveCount
	case errors.Is(err, domain.ErrNotOwner), errors.Is(err, domain.ErrOwnerProtected):
		code = apperrors.CodeForbidden
	case errors.Is(err, domain.ErrParticipantNotFound):
		code = apperrors.CodeParticipantNotFound
	case errors.Is(err, domain.ErrEmptyTitle):
		code = apperrors.CodeActivityTitleEmpty
	case errors.Is(err, domain.ErrEmptyOwnerID):
		code = apperrors.CodeActivityOwnerEmpty
	case errors.Is(err, domain.ErrCapacityInvalid):
		code = apperrors.CodeActivityCapacityInvalid
	case errors.Is(err, errPaymentMissing):
		code = apperrors.CodePaymentMissing
	}
	return &apperrors.Error{
		Code:     code,
		Message:  err.Error(),
		Metadata: metadata,
		Cause:    err,
	}
}

func meta(pairs ...string) map[string]string {
	if len(pairs)%2 != 0 {
		return nil
	}
	m := make(map[string]string, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		m[pairs[i]] = pairs[i+1]
	}
	return m
}
