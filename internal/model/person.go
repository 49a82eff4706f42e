package model

import (
	"time"

	"cloud.google.com/go/civil"
)

// Person is a member of a family who can be assigned chores and owed rewards.
type Person struct {
	ID        int64      `json:"id"`
	FamilyID  int64      `json:"family_id"`
	Name      string     `json:"name"`
	Birthday  civil.Date `json:"birthday"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
