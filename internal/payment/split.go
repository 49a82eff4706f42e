// Package payment splits an amount owed across a family's payment categories.
package payment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/model"
)

const (
	MaxCategories  = 5
	MaxNameLength  = 30
	totalPercent   = 100
	amountDecimals = 2
)

// ErrInvalid is wrapped by every validation failure in this package.
var ErrInvalid = errors.New("invalid payment split")

var hundred = decimal.NewFromInt(100)

// Line is one category's share of a payment.
type Line struct {
	Name    string          `json:"name"`
	Percent int             `json:"percent"`
	Amount  decimal.Decimal `json:"amount"`
}

// Result is a split of AmountDue. The line amounts plus Leftover always equal
// AmountDue exactly.
type Result struct {
	AmountDue decimal.Decimal `json:"amount_due"`
	Lines     []Line          `json:"lines"`
	Leftover  decimal.Decimal `json:"leftover"`
	Payable   bool            `json:"payable"`
}

// ValidateCategories checks a category list. An empty list is valid. Otherwise
// it may hold at most MaxCategories entries, each with a name and a percent in
// 1..100, and the percents must sum to exactly 100.
func ValidateCategories(categories []model.PaymentCategory) error {
	if len(categories) == 0 {
		return nil
	}
	if len(categories) > MaxCategories {
		return fmt.Errorf("%w: at most %d categories allowed, got %d", ErrInvalid, MaxCategories, len(categories))
	}
	sum := 0
	for i, c := range categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return fmt.Errorf("%w: category %d has no name", ErrInvalid, i+1)
		}
		if len(name) > MaxNameLength {
			return fmt.Errorf("%w: category %q is longer than %d characters", ErrInvalid, name, MaxNameLength)
		}
		if c.Percent < 1 || c.Percent > totalPercent {
			return fmt.Errorf("%w: category %q percent must be between 1 and 100, got %d", ErrInvalid, name, c.Percent)
		}
		sum += c.Percent
	}
	if sum != totalPercent {
		return fmt.Errorf("%w: percentages must add up to 100, got %d", ErrInvalid, sum)
	}
	return nil
}

// Split divides amountDue across categories in order. Each share is floored to
// the cent and whatever the flooring leaves behind is reported as Leftover.
func Split(amountDue decimal.Decimal, categories []model.PaymentCategory) (Result, error) {
	if amountDue.IsNegative() {
		return Result{}, fmt.Errorf("%w: amount due %s is negative", ErrInvalid, amountDue)
	}
	if err := ValidateCategories(categories); err != nil {
		return Result{}, err
	}

	res := Result{
		AmountDue: amountDue,
		Lines:     make([]Line, 0, len(categories)),
		Payable:   amountDue.IsPositive(),
	}
	allocated := decimal.Zero
	for _, c := range categories {
		amount := amountDue.Mul(decimal.NewFromInt(int64(c.Percent))).Div(hundred).RoundFloor(amountDecimals)
		allocated = allocated.Add(amount)
		res.Lines = append(res.Lines, Line{Name: c.Name, Percent: c.Percent, Amount: amount})
	}
	res.Leftover = amountDue.Sub(allocated)
	return res, nil
}
