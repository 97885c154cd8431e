package app

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/louisbranch/gathering.space/internal/platform/errors"
	"github.com/louisbranch/gathering.space/internal/services/activity/domain"
	"github.com/louisbranch/gathering.space/internal/services/activity/notify"
	"github.com/louisbranch/gathering.space/internal/services/activity/storage"
)

// errPaymentMissing indicates priced admission without a captured payment.
var errPaymentMissing = errors.New("no captured payment for this activity")

// RequestJoin files a pending join request for a free activity. Requested
// records do not count against capacity; admission happens on AcceptRequest.
func (s *Service) RequestJoin(ctx context.Context, activityID, userID string) (Result, error) {
	activityID, userID, err := requireIDs(activityID, userID)
	if err != nil {
		return Result{}, err
	}

	var result Result
	var msgs []notify.Message
	err = s.store.Update(ctx, activityID, func(txn storage.Txn) error {
		activity, err := txn.Activity()
		if err != nil {
			return err
		}
		if activity.Priced {
			// Priced activities admit through the paid path only.
			return errPaymentMissing
		}
		if err := domain.CheckJoin(activity, userID, domain.StatusRequested); err != nil {
			return err
		}

		record := domain.ParticipantRecord{
			UserID:   userID,
			Status:   domain.StatusRequested,
			JoinedAt: s.clock().UTC(),
		}
		activity.AddParticipant(record)
		activity.UpdatedAt = s.clock().UTC()
		if err := txn.PutActivity(activity); err != nil {
			return err
		}

		result = Result{Activity: activity, Participant: record}
		msgs = []notify.Message{{RecipientID: activity.OwnerID, Kind: notify.KindJoinRequested}}
		return nil
	})
	if err != nil {
		return Result{}, mapDomainError(err, meta("activity_id", activityID, "user_id", userID))
	}

	s.dispatch(ctx, result.Activity.Title, msgs)
	return result, nil
}

// DirectJoin admits a user immediately. For priced activities a captured
// payment fact must exist at admission time. The join reward is granted in
// the same commit as the roster write, at most once per (user, activity).
func (s *Service) DirectJoin(ctx context.Context, activityID, userID string) (Result, error) {
	activityID, userID, err := requireIDs(activityID, userID)
	if err != nil {
		return Result{}, err
	}

	var result Result
	var msgs []notify.Message
	err = s.store.Update(ctx, activityID, func(txn storage.Txn) error {
		activity, err := txn.Activity()
		if err != nil {
			return err
		}
		if activity.Priced {
			paid, err := txn.HasPaymentFact(userID)
			if err != nil {
				return err
			}
			if !paid {
				return errPaymentMissing
			}
		}
		if err := domain.CheckJoin(activity, userID, domain.StatusActive); err != nil {
			return err
		}

		now := s.clock().UTC()
		record := domain.ParticipantRecord{
			UserID:   userID,
			Status:   domain.StatusActive,
			JoinedAt: now,
		}
		activity.AddParticipant(record)
		activity.UpdatedAt = now
		if err := txn.PutActivity(activity); err != nil {
			return err
		}

		result = Result{Activity: activity, Participant: record}

		// Reward guard: ledger row existence is the sole idempotency signal.
		// A prior grant skips the reward but never fails the join.
		granted, err := txn.HasRewardEntry(userID, domain.RewardTypeJoin)
		if err != nil {
			return err
		}
		if !granted {
			entry := storage.RewardEntry{
				UserID:     userID,
				ActivityID: activityID,
				RewardType: domain.RewardTypeJoin,
				Points:     s.rewards.JoinPoints(activity),
				GrantedAt:  now,
			}
			if err := txn.PutRewardEntry(entry); err != nil {
				return err
			}
			result.Reward = &entry
		}

		msgs = []notify.Message{{RecipientID: activity.OwnerID, Kind: notify.KindMemberJoined}}
		return nil
	})
	if err != nil {
		return Result{}, mapDomainError(err, meta("activity_id", activityID, "user_id", userID))
	}

	s.dispatch(ctx, result.Activity.Title, msgs)
	return result, nil
}

// AcceptRequest promotes a requested record to active. Owner-only; capacity
// is checked against the transaction-time snapshot, so two concurrent accepts
// cannot both commit past capacity.
func (s *Service) AcceptRequest(ctx context.Context, activityID, actingUserID, targetUserID string) (Result, error) {
	activityID, actingUserID, err := requireIDs(activityID, actingUserID)
	if err != nil {
		return Result{}, err
	}
	targetUserID = strings.TrimSpace(targetUserID)
	if targetUserID == "" {
		return Result{}, apperrors.New(apperrors.CodeInvalidArgument, "target user id is required")
	}

	var result Result
	var msgs []notify.Message
	err = s.store.Update(ctx, activityID, func(txn storage.Txn) error {
		activity, err := txn.Activity()
		if err != nil {
			return err
		}
		if err := domain.AssertOwner(activity, actingUserID); err != nil {
			return err
		}
		if err := domain.CheckPromote(activity, targetUserID); err != nil {
			return err
		}

		activity.PromoteParticipant(targetUserID)
		activity.UpdatedAt = s.clock().UTC()
		if err := txn.PutActivity(activity); err != nil {
			return err
		}

		record, _ := activity.Participant(targetUserID)
		result = Result{Activity: activity, Participant: record}
		msgs = []notify.Message{{RecipientID: targetUserID, Kind: notify.KindJoinAccepted}}
		return nil
	})
	if err != nil {
		return Result{}, mapDomainError(err, meta("activity_id", activityID, "user_id", targetUserID))
	}

	s.dispatch(ctx, result.Activity.Title, msgs)
	return result, nil
}

// RemoveParticipant deletes a roster record. Owner-only, and never against
// the owner's own record.
func (s *Service) RemoveParticipant(ctx context.Context, activityID, actingUserID, targetUserID string) (Result, error) {
	activityID, actingUserID, err := requireIDs(activityID, actingUserID)
	if err != nil {
		return Result{}, err
	}
	targetUserID = strings.TrimSpace(targetUserID)
	if targetUserID == "" {
		return Result{}, apperrors.New(apperrors.CodeInvalidArgument, "target user id is required")
	}

	var result Result
	var msgs []notify.Message
	err = s.store.Update(ctx, activityID, func(txn storage.Txn) error {
		activity, err := txn.Activity()
		if err != nil {
			return err
		}
		if err := domain.AssertOwner(activity, actingUserID); err != nil {
			return err
		}
		if err := domain.AssertNotOwnerTarget(activity, targetUserID); err != nil {
			return err
		}
		record, ok := activity.Participant(targetUserID)
		if !ok {
			return domain.ErrParticipantNotFound
		}

		activity.DropParticipant(targetUserID)
		activity.UpdatedAt = s.clock().UTC()
		if err := txn.PutActivity(activity); err != nil {
			return err
		}

		result = Result{Activity: activity, Participant: record}
		msgs = []notify.Message{{RecipientID: targetUserID, Kind: notify.KindMemberRemoved}}
		return nil
	})
	if err != nil {
		return Result{}, mapDomainError(err, meta("activity_id", activityID, "user_id", targetUserID))
	}

	s.dispatch(ctx, result.Activity.Title, msgs)
	return result, nil
}

// Leave deletes the caller's own roster record.
func (s *Service) Leave(ctx context.Context, activityID, userID string) (Result, error) {
	activityID, userID, err := requireIDs(activityID, userID)
	if err != nil {
		return Result{}, err
	}

	var result Result
	var msgs []notify.Message
	err = s.store.Update(ctx, activityID, func(txn storage.Txn) error {
		activity, err := txn.Activity()
		if err != nil {
			return err
		}
		record, ok := activity.Participant(userID)
		if !ok {
			return domain.ErrParticipantNotFound
		}

		activity.DropParticipant(userID)
		activity.UpdatedAt = s.clock().UTC()
		if err := txn.PutActivity(activity); err != nil {
			return err
		}

		result = Result{Activity: activity, Participant: record}
		if userID != activity.OwnerID {
			msgs = []notify.Message{{RecipientID: activity.OwnerID, Kind: notify.KindMemberLeft}}
		}
		return nil
	})
	if err != nil {
		return Result{}, mapDomainError(err, meta("activity_id", activityID, "user_id", userID))
	}

	s.dispatch(ctx, result.Activity.Title, msgs)
	return result, nil
}

// ResizeCapacity changes activity capacity. Owner-only; the new capacity must
// cover the admitted participant count at commit time.
func (s *Service) ResizeCapacity(ctx context.Context, activityID, actingUserID string, newCapacity int) (Result, error) {
	activityID, actingUserID, err := requireIDs(activityID, actingUserID)
	if err != nil {
		return Result{}, err
	}

	var result Result
	err = s.store.Update(ctx, activityID, func(txn storage.Txn) error {
		activity, err := txn.Activity()
		if err != nil {
			return err
		}
		if err := domain.AssertOwner(activity, actingUserID); err != nil {
			return err
		}
		if err := domain.CheckResize(activity, newCapacity); err != nil {
			return err
		}

		activity.Capacity = newCapacity
		activity.UpdatedAt = s.clock().UTC()
		if err := txn.PutActivity(activity); err != nil {
			return err
		}

		result = Result{Activity: activity}
		return nil
	})
	if err != nil {
		return Result{}, mapDomainError(err, meta("activity_id", activityID))
	}

	return result, nil
}

func requireIDs(activityID, userID string) (string, string, error) {
	activityID = strings.TrimSpace(activityID)
	if activityID == "" {
		return "", "", apperrors.New(apperrors.CodeInvalidArgument, "activity id is required")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", "", apperrors.New(apperrors.CodeInvalidArgument, "user id is required")
	}
	return activityID, userID, nil
}
