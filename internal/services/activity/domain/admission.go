package domain

import "errors"

var (
	// ErrAlreadyMember indicates a roster record already exists for the user.
	ErrAlreadyMember = errors.New("user is already on the roster")
	// ErrActivityFull indicates admission would exceed activity capacity.
	ErrActivityFull = errors.New("activity is at capacity")
	// ErrBelowActiveCount indicates a resize below the admitted participant count.
	ErrBelowActiveCount = errors.New("capacity is below the active participant count")
	// ErrNotOwner indicates the acting principal does not own the activity.
	ErrNotOwner = errors.New("acting user is not the activity owner")
	// ErrOwnerProtected indicates an attempt to remove the owner's own record.
	ErrOwnerProtected = errors.New("owner roster record cannot be removed")
	// ErrParticipantNotFound indicates no roster record exists for the user.
	ErrParticipantNotFound = errors.New("participant record not found")
)

// CheckJoin validates adding a roster record for userID with the target status.
// Capacity only binds admitted participants, so a requested record is not
// checked against it. The activity snapshot must come from the transaction
// that will also write the mutation.
func CheckJoin(activity Activity, userID string, target ParticipantStatus) error {
	if _, ok := activity.Participant(userID); ok {
		return ErrAlreadyMember
	}
	if target == StatusActive && activity.ActiveCount() >= activity.Capacity {
		return ErrActivityFull
	}
	return nil
}

// CheckPromote validates transitioning an existing requested record to active.
func CheckPromote(activity Activity, userID string) error {
	record, ok := activity.Participant(userID)
	if !ok {
		return ErrParticipantNotFound
	}
	if record.Status == StatusActive {
		return ErrAlreadyMember
	}
	if activity.ActiveCount() >= activity.Capacity {
		return ErrActivityFull
	}
	return nil
}

// CheckResize validates changing activity capacity to newCapacity. The
// active-count rule is checked first so a shrink below the admitted roster
// reports the actionable violation even when the target is also non-positive.
func CheckResize(activity Activity, newCapacity int) error {
	if newCapacity < activity.ActiveCount() {
		return ErrBelowActiveCount
	}
	if newCapacity < 1 {
		return ErrCapacityInvalid
	}
	return nil
}

// AssertOwner fails unless the acting principal owns the activity.
func AssertOwner(activity Activity, actingUserID string) error {
	if activity.OwnerID != actingUserID {
		return ErrNotOwner
	}
	return nil
}

// AssertNotOwnerTarget fails when the target is the owner's own record.
func AssertNotOwnerTarget(activity Activity, targetUserID string) error {
	if activity.OwnerID == targetUserID {
		return ErrOwnerProtected
	}
	return nil
}
