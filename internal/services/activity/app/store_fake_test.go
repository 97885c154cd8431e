package app

import (
	"context"
	"sync"

	"github.com/louisbranch/gathering.space/internal/services/activity/domain"
	"github.com/louisbranch/gathering.space/internal/services/activity/notify"
	"github.com/louisbranch/gathering.space/internal/services/activity/storage"
)

// fakeStore is an in-memory storage.Store with staged transaction writes:
// nothing the callback stages is visible unless the callback returns nil.
type fakeStore struct {
	mu         sync.Mutex
	activities map[string]domain.Activity
	rewards    map[string]storage.RewardEntry
	payments   map[string]storage.PaymentFact
	updateErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		activities: make(map[string]domain.Activity),
		rewards:    make(map[string]storage.RewardEntry),
		payments:   make(map[string]storage.PaymentFact),
	}
}

func rewardMapKey(activityID, userID, rewardType string) string {
	return activityID + "/" + userID + "/" + rewardType
}

func paymentMapKey(activityID, userID string) string {
	return activityID + "/" + userID
}

func (s *fakeStore) PutActivity(_ context.Context, activity domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities[activity.ID] = cloneActivity(activity)
	return nil
}

func (s *fakeStore) GetActivity(_ context.Context, id string) (domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	activity, ok := s.activities[id]
	if !ok {
		return domain.Activity{}, storage.ErrNotFound
	}
	return cloneActivity(activity), nil
}

func (s *fakeStore) Update(_ context.Context, activityID string, fn func(storage.Txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}

	txn := &fakeTxn{store: s, activityID: activityID}
	if err := fn(txn); err != nil {
		return err
	}
	if txn.stagedActivity != nil {
		s.activities[activityID] = cloneActivity(*txn.stagedActivity)
	}
	for _, entry := range txn.stagedRewards {
		s.rewards[rewardMapKey(entry.ActivityID, entry.UserID, entry.RewardType)] = entry
	}
	return nil
}

func (s *fakeStore) PutPaymentFact(_ context.Context, fact storage.PaymentFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[paymentMapKey(fact.ActivityID, fact.UserID)] = fact
	return nil
}

func (s *fakeStore) HasPaymentFact(_ context.Context, userID, activityID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.payments[paymentMapKey(activityID, userID)]
	return ok, nil
}

func (s *fakeStore) GetRewardEntry(_ context.Context, userID, activityID, rewardType string) (storage.RewardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.rewards[rewardMapKey(activityID, userID, rewardType)]
	if !ok {
		return storage.RewardEntry{}, storage.ErrNotFound
	}
	return entry, nil
}

func (s *fakeStore) Close() error { return nil }

type fakeTxn struct {
	store          *fakeStore
	activityID     string
	stagedActivity *domain.Activity
	stagedRewards  []storage.RewardEntry
}

func (t *fakeTxn) Activity() (domain.Activity, error) {
	activity, ok := t.store.activities[t.activityID]
	if !ok {
		return domain.Activity{}, storage.ErrNotFound
	}
	return cloneActivity(activity), nil
}

func (t *fakeTxn) PutActivity(activity domain.Activity) error {
	staged := cloneActivity(activity)
	t.stagedActivity = &staged
	return nil
}

func (t *fakeTxn) HasRewardEntry(userID, rewardType string) (bool, error) {
	_, ok := t.store.rewards[rewardMapKey(t.activityID, userID, rewardType)]
	return ok, nil
}

func (t *fakeTxn) PutRewardEntry(entry storage.RewardEntry) error {
	t.stagedRewards = append(t.stagedRewards, entry)
	return nil
}

func (t *fakeTxn) HasPaymentFact(userID string) (bool, error) {
	_, ok := t.store.payments[paymentMapKey(t.activityID, userID)]
	return ok, nil
}

func cloneActivity(activity domain.Activity) domain.Activity {
	cloned := activity
	cloned.Participants = append([]domain.ParticipantRecord(nil), activity.Participants...)
	return cloned
}

// fakeDispatcher records dispatched messages and can simulate failures.
type fakeDispatcher struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, msg notify.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.msgs = append(d.msgs, msg)
	return nil
}

func (d *fakeDispatcher) messages() []notify.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notify.Message(nil), d.msgs...)
}
