package domain

import "time"

// RewardTypeJoin is the reward type granted once per (user, activity) on first
// admission. Ledger entry existence for this type is the sole idempotency signal.
const RewardTypeJoin = "activity.join"

const (
	defaultJoinBonus    = 50
	defaultWeekendBonus = 20
)

// RewardPolicy resolves the point value of a join reward for an activity.
type RewardPolicy interface {
	JoinPoints(activity Activity) int
}

// StandardRewardPolicy grants a flat join bonus plus a weekend bonus when the
// activity starts on a Saturday or Sunday.
type StandardRewardPolicy struct {
	JoinBonus    int
	WeekendBonus int
}

// JoinPoints returns the points credited for joining the activity.
func (p StandardRewardPolicy) JoinPoints(activity Activity) int {
	points := p.JoinBonus
	switch activity.StartsAt.Weekday() {
	case time.Saturday, time.Sunday:
		points += p.WeekendBonus
	}
	return points
}

// DefaultRewardPolicy returns the standard policy with default point values.
func DefaultRewardPolicy() RewardPolicy {
	return StandardRewardPolicy{
		JoinBonus:    defaultJoinBonus,
		WeekendBonus: defaultWeekendBonus,
	}
}
