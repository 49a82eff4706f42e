package model

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Rating is the 1-5 quality scale recorded on a commission.
type Rating int

const (
	RatingUnacceptable Rating = iota + 1
	RatingNeedsImprovement
	RatingMeetsExpectations
	RatingExceedsExpectations
	RatingOutstanding
)

func (r Rating) Valid() bool {
	return r >= RatingUnacceptable && r <= RatingOutstanding
}

// Commission records that a person performed a chore on a date. ChoreID is nil
// for ad-hoc chores and AssignmentID is nil for bonus chores.
type Commission struct {
	ID           int64           `json:"id"`
	FamilyID     int64           `json:"family_id"`
	PersonID     int64           `json:"person_id"`
	PersonName   string          `json:"person_name"`
	ChoreID      *int64          `json:"chore_id"`
	ChoreName    string          `json:"chore_name"`
	AssignmentID *int64          `json:"assignment_id"`
	Date         civil.Date      `json:"date"`
	BaseAmount   decimal.Decimal `json:"base_amount"`
	Rating       Rating          `json:"rating"`
	FinalAmount  decimal.Decimal `json:"final_amount"`
	Balance      decimal.Decimal `json:"balance"`
	PaidAt       *time.Time      `json:"paid_at"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (c Commission) IsBonus() bool { return c.AssignmentID == nil }

func (c Commission) IsPaid() bool { return c.PaidAt != nil }

// NewCommission holds the fields needed to record a commission. Balance always
// starts equal to the final amount.
type NewCommission struct {
	FamilyID     int64
	PersonID     int64
	ChoreID      *int64
	ChoreName    string
	AssignmentID *int64
	Date         civil.Date
	BaseAmount   decimal.Decimal
	Rating       Rating
}

// FinalAmount is the payable amount for the commission. Ratings do not adjust
// the amount yet.
func (n NewCommission) FinalAmount() decimal.Decimal {
	return n.BaseAmount
}
