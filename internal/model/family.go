package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Family struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name"`
	PaymentCategories PaymentCategories `json:"payment_categories"`
	CreatedBy         *int64            `json:"created_by"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

type FamilyUser struct {
	FamilyID  int64     `json:"family_id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PaymentCategory is a named percentage bucket used when paying out a balance.
type PaymentCategory struct {
	Name    string `json:"name"`
	Percent int    `json:"percent"`
}

// PaymentCategories is stored as a JSON array on the families row.
type PaymentCategories []PaymentCategory

func (c PaymentCategories) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]PaymentCategory(c))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *PaymentCategories) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = PaymentCategories{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scan payment categories: unsupported type %T", src)
	}
	var cats []PaymentCategory
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cats); err != nil {
			return fmt.Errorf("scan payment categories: %w", err)
		}
	}
	if cats == nil {
		cats = []PaymentCategory{}
	}
	*c = cats
	return nil
}
