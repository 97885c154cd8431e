package app

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/louisbranch/gathering.space/internal/platform/errors"
	"github.com/louisbranch/gathering.space/internal/services/activity/domain"
	"github.com/louisbranch/gathering.space/internal/services/activity/notify"
	"github.com/louisbranch/gathering.space/internal/services/activity/storage"
)

var testClock = func() time.Time {
	return time.Date(2026, 3, 18, 12, 0, 0, 0, time.UTC) // a Wednesday
}

func newTestService(store storage.Store, dispatcher notify.Dispatcher) *Service {
	return NewService(store, domain.StandardRewardPolicy{JoinBonus: 50, WeekendBonus: 20}, dispatcher, testClock)
}

func seedActivity(t *testing.T, store *fakeStore, activity domain.Activity) {
	t.Helper()
	if err := store.PutActivity(context.Background(), activity); err != nil {
		t.Fatalf("seed activity: %v", err)
	}
}

func freeActivity(capacity int, records ...domain.ParticipantRecord) domain.Activity {
	return domain.Activity{
		ID:           "act-1",
		OwnerID:      "owner",
		Title:        "Trail Run",
		Capacity:     capacity,
		StartsAt:     testClock().Add(48 * time.Hour),
		Participants: records,
	}
}

func pricedActivity(capacity int, records ...domain.ParticipantRecord) domain.Activity {
	activity := freeActivity(capacity, records...)
	activity.Priced = true
	return activity
}

func TestRequestJoinSuccess(t *testing.T) {
	store := newFakeStore()
	dispatcher := &fakeDispatcher{}
	service := newTestService(store, dispatcher)
	seedActivity(t, store, freeActivity(2))

	result, err := service.RequestJoin(context.Background(), "act-1", "alice")
	if err != nil {
		t.Fatalf("request join: %v", err)
	}
	if result.Participant.Status != domain.StatusRequested {
		t.Fatalf("expected requested status, got %v", result.Participant.Status)
	}
	if !result.Participant.JoinedAt.Equal(testClock()) {
		t.Fatalf("expected joined at %v, got %v", testClock(), result.Participant.JoinedAt)
	}
	if result.Reward != nil {
		t.Fatal("expected no reward for a pending request")
	}

	stored, err := store.GetActivity(context.Background(), "act-1")
	if err != nil {
		t.Fatalf("get activity: %v", err)
	}
	if len(stored.Participants) != 1 || stored.Participants[0].UserID != "alice" {
		t.Fatalf("expected persisted roster with alice, got %+v", stored.Participants)
	}

	msgs := dispatcher.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(msgs))
	}
	if msgs[0].RecipientID != "owner" || msgs[0].Kind != notify.KindJoinRequested {
		t.Fatalf("unexpected notification %+v", msgs[0])
	}
	if msgs[0].ActivityTitle != "Trail Run" {
		t.Fatalf("expected activity title on notification, got %q", msgs[0].ActivityTitle)
	}
}

func TestRequestJoinPricedActivity(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, &fakeDispatcher{})
	seedActivity(t, store, pricedActivity(2))

	_, err := service.RequestJoin(context.Background(), "act-1", "alice")
	if !apperrors.IsCode(err, apperrors.CodePaymentMissing) {
		t.Fatalf("expected payment missing, got %v", err)
	}

	stored, _ := store.GetActivity(context.Background(), "act-1")
	if len(stored.Participants) != 0 {
		t.Fatalf("expected no roster mutation, got %+v", stored.Participants)
	}
}

func TestRequestJoinDuplicate(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, &fakeDispatcher{})
	seedActivity(t, store, freeActivity(2))

	if _, err := service.RequestJoin(context.Background(), "act-1", "alice"); err != nil {
		t.Fatalf("first request join: %v", err)
	}
	_, err := service.RequestJoin(context.Background(), "act-1", "alice")
	if !apperrors.IsCode(err, apperrors.CodeAlreadyMember) {
		t.Fatalf("expected already member, got %v", err)
	}

	stored, _ := store.GetActivity(context.Background(), "act-1")
	if len(stored.Participants) != 1 {
		t.Fatalf("expected exactly one roster record, got %d", len(stored.Participants))
	}
}

func TestRequestJoinActivityMissing(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, &fakeDispatcher{})

	_, err := service.RequestJoin(context.Background(), "missing", "alice")
	if !apperrors.IsCode(err, apperrors.CodeActivityNotFound) {
		t.Fatalf("expected activity not found, got %v", err)
	}
}

func TestDirectJoinGrantsReward(t *testing.T) {
	store := newFakeStore()
	dispatcher := &fakeDispatcher{}
	service := newTestService(store, dispatcher)
	seedActivity(t, store, freeActivity(2))

	result, err := service.DirectJoin(context.Background(), "act-1", "alice")
	if err != nil {
		t.Fatalf("direct join: %v", err)
	}
	if result.Participant.Status != domain.StatusActive {
		t.Fatalf("expected active status, got %v", result.Participant.Status)
	}
	if result.Reward == nil {
		t.Fatal("expected a reward grant")
	}
	if result.Reward.Points != 50 {
		t.Fatalf("expected 50 points on a weekday start, got %d", result.Reward.Points)
	}
	if result.Reward.RewardType != domain.RewardTypeJoin {
		t.Fatalf("unexpected reward type %q", result.Reward.RewardType)
	}

	entry, err := store.GetRewardEntry(context.Background(), "alice", "act-1", domain.RewardTypeJoin)
	if err != nil {
		t.Fatalf("expected persisted ledger row: %v", err)
	}
	if entry.Points != 50 {
		t.Fatalf("expected 50 persisted points, got %d", entry.Points)
	}

	msgs := dispatcher.messages()
	if len(msgs) != 1 || msgs[0].Kind != notify.KindMemberJoined || msgs[0].RecipientID != "owner" {
		t.Fatalf("unexpected notifications %+v", msgs)
	}
}

func TestDirectJoinWeekendBonus(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, &fakeDispatcher{})
	activity := freeActivity(2)
	activity.StartsAt = time.Date(2026, 3, 21, 9, 0, 0, 0, time.UTC) // Saturday
	seedActivity(t, store, activity)

	result, err := service.DirectJoin(context.Background(), "act-1", "alice")
	if err != nil {
		t.Fatalf("direct join: %v", err)
	}
	if result.Reward == nil || result.Reward.Points != 70 {
		t.Fatalf("expected 70 points for a weekend start, got %+v", result.Reward)
	}
}

func TestDirectJoinPricedWithoutPayment(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, &fakeDispatcher{})
	seedActivity(t, store, pricedActivity(2))

	_, err := service.DirectJoin(context.Background(), "act-1", "carol")
	if !apperrors.IsCode(err, apperrors.CodePaymentMissing) {
		t.Fatalf("expected payment missing, got %v", err)
	}

	stored, _ := store.GetActivity(context.Background(), "act-1")
	if len(stored.Participants) != 0 {
		t.Fatalf("expected no roster mutation, got %+v", stored.Participants)
	}
	if _, err := store.GetRewardEntry(context.Background(), "carol", "act-1", domain.RewardTypeJoin); err == nil {
		t.Fatal("expected no ledger row")
	}
}

func TestDirectJoinPricedWithPayment(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, &fakeDispatcher{})
	seedActivity(t, store, pricedActivity(2))
	if err := store.PutPaymentFact(context.Background(), storage.PaymentFact{UserID: "alice", ActivityID: "act-1"}); err != nil {
		t.Fatalf("put payment fact: %v", err)
	}

	result, err := service.DirectJoin(context.Background(), "act-1", "alice")
	if err != nil {
		t.Fatalf("direct join: %v", err)
	}
	if result.Participant.Status != domain.StatusActive {
		t.Fatalf("expected active status, got %v", result.Participant.Status)
	}
}

func TestDirectJoinFullAbortsWholeTransaction(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, &fakeDispatcher{})
	seedActivity(t, store, freeActivity(1, domain.ParticipantRecord{UserID: "bob", Status: domain.StatusActive}))

	_, err := service.DirectJoin(context.Background(), "act-1", "alice")
	if !apperrors.IsCode(err, apperrors.CodeActivityFull) {
		t.Fatalf("expected full, got %v", err)
	}
	if _, err := store.GetRewardEntry(context.Background(), "alice", "act-1", domain.RewardTypeJoin); err == nil {
		t.Fatal("expected no ledger row after aborted admission")
	}
}

func TestDirectJoinRewardIdempotent(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, &fakeDispatcher{})
	seedActivity(t, store, freeActivity(2))

	// A prior grant exists from an earlier join/leave cycle.
	granted := storage.RewardEntry{
		UserID:     "alice",
		ActivityID: "act-1",
		RewardType: domain.RewardTypeJoin,
		Points:     50,
		GrantedAt:  testClock().Add(-24 * time.Hour),
	}
	store.rewards[rewardMapKey("act-1", "alice", domain.RewardTypeJoin)] = granted

	result, err := service.DirectJoin(context.Background(), "act-1", "alice")
	if err != nil {
		t.Fatalf("direct join: %v", err)
	}
	if result.Reward != nil {
		t.Fatal("expected reward skip on repeat admission")
	}

	entry, err := store.GetRewardEntry(context.Background(), "alice", "act-1", domain.RewardTypeJoin)
	if err != nil {
		t.Fatalf("get reward entry: %v", err)
	}
	if !entry.GrantedAt.Equal(granted.GrantedAt) {
		t.Fatal("expected original ledger row to survive untouched")
	}
}

func TestAcceptRequestSuccess(t *testing.T) {
	store := newFakeStore()
	dispatcher := &fakeDispatcher{}
	service := newTestService(store, dispatcher)
	seedActivity(t, store, freeActivity(2, domain.ParticipantRecord{UserID: "alice", Status: domain.StatusRequested}))

	result, err := service.AcceptRequest(context.Background(), "act-1", "owner", "alice")
	if err != nil {
		t.Fatalf("accept request: %v", err)
	}
	if result.Participant.Status != domain.StatusActive {
		t.Fatalf("expected active status, got %v", result.Participant.Status)
	}

	msgs := dispatcher.messages()
	if len(msgs) != 1 || msgs[0].RecipientID != "alice" || msgs[0].Kind != notify.KindJoinAccepted {
		t.Fatalf("unexpected notifications %+v", msgs)
	}
}

func TestAcceptRequestNotOwner(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, &fakeDispatcher{})
	seedActivity(t, store, freeActivity(2, domain.ParticipantRecord{UserID: "alice", Status: domain.StatusRequested}))

	_, err := service.AcceptRequest(context.Background(), "act-1", "mallory", "alice")
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	stored, _ := store.GetActivity(context.Background(), "act-1")
	if stored.Participants[0].Status != domain.StatusRequested {
		t.Fatal("expected roster unchanged")
	}
}

func TestAcceptRequestFull(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, &fakeDispatcher{})
	seedActivity(t, store, freeActivity(1,
		domain.ParticipantRecord{UserID: "bob", Status: domain.StatusActive},
		domain.ParticipantRecord{UserID: "alice", Status: domain.StatusRequested},
	))

	_, err := service.AcceptRequest(context.Background(), "act-1", "owner", "alice")
	if !apperrors.IsCode(err, apperrors.CodeActivityFull) {
		t.Fatalf("expected full, got %v", err)
	}
}

func TestAcceptThenShrink(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, &fakeDispatcher{})
	seedActivity(t, store, freeActivity(2, domain.ParticipantRecord{UserID: "alice", Status: domain.StatusRequested}))

	if _, err := service.AcceptRequest(context.Background(), "act-1", "owner", "alice"); err != nil {
		t.Fatalf("accept request: %v", err)
	}
	result, err := service.ResizeCapacity(context.Background(), "act-1", "owner", 1)
	if err != nil {
		t.Fatalf("resize to 1: %v", err)
	}
	if result.Activity.Capacity != 1 {
		t.Fatalf("expected capacity 1, got %d", result.Activity.Capacity)
	}

	_, err = service.ResizeCapacity(context.Background(), "act-1", "owner", 0)
	if !apperrors.IsCode(err, apperrors.CodeBelowActiveCount) {
		t.Fatalf("expected below active count, got %v", err)
	}
}

func TestRemoveParticipantProtectsOwner(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, &fakeDispatcher{})
	seedActivity(t, store, freeActivity(2, domain.ParticipantRecord{UserID: "owner", Status: domain.StatusActive}))

	_, err := service.RemoveParticipant(context.Background(), "act-1", "owner", "owner")
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	stored, _ := store.GetActivity(context.Background(), "act-1")
	if _, ok := stored.Participant("owner"); !ok {
		t.Fatal("expected owner record to survive")
	}
}

func TestRemoveParticipantSuccess(t *testing.T) {
	store := newFakeStore()
	dispatcher := &fakeDispatcher{}
	service := newTestService(store, dispatcher)
	seedActivity(t, store, freeActivity(2, domain.ParticipantRecord{UserID: "alice", Status: domain.StatusActive}))

	result, err := service.RemoveParticipant(context.Background(), "act-1", "owner", "alice")
	if err != nil {
		t.Fatalf("remove participant: %v", err)
	}
	if result.Participant.UserID != "alice" {
		t.Fatalf("expected removed record for alice, got %+v", result.Participant)
	}

	stored, _ := store.GetActivity(context.Background(), "act-1")
	if len(stored.Participants) != 0 {
		t.Fatalf("expected empty roster, got %+v", stored.Participants)
	}

	msgs := dispatcher.messages()
	if len(msgs) != 1 || msgs[0].RecipientID != "alice" || msgs[0].Kind != notify.KindMemberRemoved {
		t.Fatalf("unexpected notifications %+v", msgs)
	}
}

func TestRemoveParticipantMissing(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, &fakeDispatcher{})
	seedActivity(t, store, freeActivity(2))

	_, err := service.RemoveParticipant(context.Background(), "act-1", "owner", "ghost")
	if !apperrors.IsCode(err, apperrors.CodeParticipantNotFound) {
		t.Fatalf("expected participant not found, got %v", err)
	}
}

func TestLeaveSuccess(t *testing.T) {
	store := newFakeStore()
	dispatcher := &fakeDispatcher{}
	service := newTestService(store, dispatcher)
	seedActivity(t, store, freeActivity(2, domain.ParticipantRecord{UserID: "alice", Status: domain.StatusActive}))

	if _, err := service.Leave(context.Background(), "act-1", "alice"); err != nil {
		t.Fatalf("leave: %v", err)
	}

	stored, _ := store.GetActivity(context.Background(), "act-1")
	if len(stored.Participants) != 0 {
		t.Fatalf("expected empty roster, got %+v", stored.Participants)
	}

	msgs := dispatcher.messages()
	if len(msgs) != 1 || msgs[0].RecipientID != "owner" || msgs[0].Kind != notify.KindMemberLeft {
		t.Fatalf("unexpected notifications %+v", msgs)
	}
}

func TestLeaveByOwnerSkipsSelfNotification(t *testing.T) {
	store := newFakeStore()
	dispatcher := &fakeDispatcher{}
	service := newTestService(store, dispatcher)
	seedActivity(t, store, freeActivity(2, domain.ParticipantRecord{UserID: "owner", Status: domain.StatusActive}))

	if _, err := service.Leave(context.Background(), "act-1", "owner"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if msgs := dispatcher.messages(); len(msgs) != 0 {
		t.Fatalf("expected no notifications, got %+v", msgs)
	}
}

func TestLeaveMissingRecord(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, &fakeDispatcher{})
	seedActivity(t, store, freeActivity(2))

	_, err := service.Leave(context.Background(), "act-1", "alice")
	if !apperrors.IsCode(err, apperrors.CodeParticipantNotFound) {
		t.Fatalf("expected participant not found, got %v", err)
	}
}

func TestResizeCapacityNotOwner(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, &fakeDispatcher{})
	seedActivity(t, store, freeActivity(2))

	_, err := service.ResizeCapacity(context.Background(), "act-1", "mallory", 5)
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestResizeCapacityNonPositive(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, &fakeDispatcher{})
	seedActivity(t, store, freeActivity(2))

	_, err := service.ResizeCapacity(context.Background(), "act-1", "owner", 0)
	if !apperrors.IsCode(err, apperrors.CodeActivityCapacityInvalid) {
		t.Fatalf("expected capacity invalid, got %v", err)
	}
}

func TestDispatchFailureDoesNotFailOperation(t *testing.T) {
	store := newFakeStore()
	dispatcher := &fakeDispatcher{err: context.DeadlineExceeded}
	service := newTestService(store, dispatcher)
	seedActivity(t, store, freeActivity(2))

	if _, err := service.RequestJoin(context.Background(), "act-1", "alice"); err != nil {
		t.Fatalf("expected committed join despite dispatch failure, got %v", err)
	}

	stored, _ := store.GetActivity(context.Background(), "act-1")
	if len(stored.Participants) != 1 {
		t.Fatal("expected committed roster mutation")
	}
}

func TestCreateAndGetActivity(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, &fakeDispatcher{})

	created, err := service.CreateActivity(context.Background(), domain.CreateActivityInput{
		OwnerID:  "owner",
		Title:    "Evening Climb",
		Capacity: 4,
	})
	if err != nil {
		t.Fatalf("create activity: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated activity id")
	}

	loaded, err := service.GetActivity(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get activity: %v", err)
	}
	if loaded.Title != "Evening Climb" {
		t.Fatalf("expected title round trip, got %q", loaded.Title)
	}

	_, err = service.CreateActivity(context.Background(), domain.CreateActivityInput{OwnerID: "owner", Capacity: 4})
	if !apperrors.IsCode(err, apperrors.CodeActivityTitleEmpty) {
		t.Fatalf("expected title empty, got %v", err)
	}
}

func TestOperationValidation(t *testing.T) {
	service := newTestService(newFakeStore(), &fakeDispatcher{})

	_, err := service.RequestJoin(context.Background(), " ", "alice")
	if !apperrors.IsCode(err, apperrors.CodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	_, err = service.AcceptRequest(context.Background(), "act-1", "owner", "")
	if !apperrors.IsCode(err, apperrors.CodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}
