package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/gathering.space/internal/platform/id"
)

// ParticipantStatus describes the admission state of a roster record.
type ParticipantStatus int

const (
	// StatusUnspecified represents an invalid participant status value.
	StatusUnspecified ParticipantStatus = iota
	// StatusRequested indicates a pending join request awaiting owner approval.
	StatusRequested
	// StatusActive indicates an admitted participant counted against capacity.
	StatusActive
)

// String returns the lowercase token for a participant status.
func (s ParticipantStatus) String() string {
	switch s {
	case StatusRequested:
		return "requested"
	case StatusActive:
		return "active"
	default:
		return "unspecified"
	}
}

var (
	// ErrEmptyTitle indicates a missing activity title.
	ErrEmptyTitle = errors.New("activity title is required")
	// ErrEmptyOwnerID indicates a missing activity owner.
	ErrEmptyOwnerID = errors.New("activity owner id is required")
	// ErrCapacityInvalid indicates a non-positive activity capacity.
	ErrCapacityInvalid = errors.New("activity capacity must be positive")
)

// ParticipantRecord is one per-user membership entry in an activity roster.
type ParticipantRecord struct {
	UserID   string
	Status   ParticipantStatus
	JoinedAt time.Time
	// Attended is set by the check-in flow; admission never mutates it.
	Attended bool
}

// Activity represents a capacity-limited shared event with its roster.
type Activity struct {
	ID       string
	OwnerID  string
	Title    string
	Capacity int
	Priced   bool
	StartsAt time.Time
	// Participants is ordered by join time and unique by UserID.
	Participants []ParticipantRecord
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Participant returns the roster record for userID, if present.
func (a Activity) Participant(userID string) (ParticipantRecord, bool) {
	for _, record := range a.Participants {
		if record.UserID == userID {
			return record, true
		}
	}
	return ParticipantRecord{}, false
}

// ActiveCount returns the number of admitted participants.
func (a Activity) ActiveCount() int {
	count := 0
	for _, record := range a.Participants {
		if record.Status == StatusActive {
			count++
		}
	}
	return count
}

// AddParticipant appends a roster record. Callers must run CheckJoin first;
// AddParticipant itself does not re-validate uniqueness or capacity.
func (a *Activity) AddParticipant(record ParticipantRecord) {
	a.Participants = append(a.Participants, record)
}

// PromoteParticipant transitions the record for userID to active status.
// It reports whether a record for userID was found.
func (a *Activity) PromoteParticipant(userID string) bool {
	for i := range a.Participants {
		if a.Participants[i].UserID == userID {
			a.Participants[i].Status = StatusActive
			return true
		}
	}
	return false
}

// DropParticipant deletes the record for userID, preserving roster order.
// It reports whether a record for userID was found.
func (a *Activity) DropParticipant(userID string) bool {
	for i := range a.Participants {
		if a.Participants[i].UserID == userID {
			a.Participants = append(a.Participants[:i], a.Participants[i+1:]...)
			return true
		}
	}
	return false
}

// CreateActivityInput describes the metadata needed to create an activity.
type CreateActivityInput struct {
	OwnerID  string
	Title    string
	Capacity int
	Priced   bool
	StartsAt time.Time
}

// CreateActivity creates a new activity with a generated ID and timestamps.
func CreateActivity(input CreateActivityInput, now func() time.Time, idGenerator func() (string, error)) (Activity, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateActivityInput(input)
	if err != nil {
		return Activity{}, err
	}

	activityID, err := idGenerator()
	if err != nil {
		return Activity{}, fmt.Errorf("generate activity id: %w", err)
	}

	createdAt := now().UTC()
	return Activity{
		ID:        activityID,
		OwnerID:   normalized.OwnerID,
		Title:     normalized.Title,
		Capacity:  normalized.Capacity,
		Priced:    normalized.Priced,
		StartsAt:  normalized.StartsAt,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

// NormalizeCreateActivityInput trims and validates activity input metadata.
func NormalizeCreateActivityInput(input CreateActivityInput) (CreateActivityInput, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.OwnerID = strings.TrimSpace(input.OwnerID)
	if input.Title == "" {
		return CreateActivityInput{}, ErrEmptyTitle
	}
	if input.OwnerID == "" {
		return CreateActivityInput{}, ErrEmptyOwnerID
	}
	if input.Capacity < 1 {
		return CreateActivityInput{}, ErrCapacityInvalid
	}
	return input, nil
}
