package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Assignment is a recurring link between a person, a chore and a weekday.
// Reward, when set, overrides the chore's base reward.
type Assignment struct {
	ID        int64            `json:"id"`
	FamilyID  int64            `json:"family_id"`
	PersonID  int64            `json:"person_id"`
	ChoreID   int64            `json:"chore_id"`
	DayOfWeek DayOfWeek        `json:"day_of_week"`
	Reward    *decimal.Decimal `json:"reward"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// EffectiveReward returns the override when present, else the chore's reward.
func (a Assignment) EffectiveReward(chore Chore) decimal.Decimal {
	if a.Reward != nil {
		return *a.Reward
	}
	return chore.Reward
}
