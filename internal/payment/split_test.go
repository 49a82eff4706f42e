package payment

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/model"
)

func cats(pairs ...any) []model.PaymentCategory {
	var out []model.PaymentCategory
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, model.PaymentCategory{Name: pairs[i].(string), Percent: pairs[i+1].(int)})
	}
	return out
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSplitFloorsEachLine(t *testing.T) {
	res, err := Split(dec("10.00"), cats("Save", 33, "Spend", 33, "Give", 34))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	want := []string{"3.30", "3.30", "3.40"}
	for i, w := range want {
		if !res.Lines[i].Amount.Equal(dec(w)) {
			t.Errorf("line %d = %s, want %s", i, res.Lines[i].Amount, w)
		}
	}
	if !res.Leftover.IsZero() {
		t.Errorf("leftover = %s, want 0.00", res.Leftover)
	}
	if !res.Payable {
		t.Error("expected payable")
	}
}

func TestSplitLeftover(t *testing.T) {
	res, err := Split(dec("0.10"), cats("A", 33, "B", 33, "C", 34))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	// 0.033 -> 0.03, 0.033 -> 0.03, 0.034 -> 0.03
	for i, l := range res.Lines {
		if !l.Amount.Equal(dec("0.03")) {
			t.Errorf("line %d = %s, want 0.03", i, l.Amount)
		}
	}
	if !res.Leftover.Equal(dec("0.01")) {
		t.Errorf("leftover = %s, want 0.01", res.Leftover)
	}
}

func TestSplitSumsToAmountDue(t *testing.T) {
	lists := [][]model.PaymentCategory{
		cats("All", 100),
		cats("A", 50, "B", 50),
		cats("A", 33, "B", 33, "C", 34),
		cats("A", 1, "B", 1, "C", 1, "D", 1, "E", 96),
		cats("A", 7, "B", 13, "C", 80),
		nil,
	}
	amounts := []string{"0", "0.01", "0.99", "1", "7.25", "10.00", "13.37", "99.99", "1234.56", "0.07"}

	for _, list := range lists {
		for _, a := range amounts {
			res, err := Split(dec(a), list)
			if err != nil {
				t.Fatalf("split %s over %v: %v", a, list, err)
			}
			sum := res.Leftover
			for _, l := range res.Lines {
				if l.Amount.IsNegative() {
					t.Errorf("split %s over %v: negative line %s", a, list, l.Amount)
				}
				if !l.Amount.Equal(l.Amount.Truncate(2)) {
					t.Errorf("split %s over %v: line %s has more than 2 places", a, list, l.Amount)
				}
				sum = sum.Add(l.Amount)
			}
			if !sum.Equal(dec(a)) {
				t.Errorf("split %s over %v: lines + leftover = %s", a, list, sum)
			}
			if res.Leftover.IsNegative() {
				t.Errorf("split %s over %v: leftover %s is negative", a, list, res.Leftover)
			}
		}
	}
}

func TestSplitEmptyCategories(t *testing.T) {
	res, err := Split(dec("7.25"), nil)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(res.Lines) != 0 {
		t.Errorf("lines = %d, want 0", len(res.Lines))
	}
	if !res.Leftover.Equal(dec("7.25")) {
		t.Errorf("leftover = %s, want 7.25", res.Leftover)
	}
}

func TestSplitZeroAmount(t *testing.T) {
	res, err := Split(decimal.Zero, cats("Save", 50, "Spend", 50))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	for i, l := range res.Lines {
		if !l.Amount.IsZero() {
			t.Errorf("line %d = %s, want 0", i, l.Amount)
		}
	}
	if !res.Leftover.IsZero() {
		t.Errorf("leftover = %s, want 0", res.Leftover)
	}
	if res.Payable {
		t.Error("zero amount should not be payable")
	}
}

func TestSplitRejects(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		cats   []model.PaymentCategory
	}{
		{"negative amount", "-1", cats("All", 100)},
		{"sum below 100", "5", cats("A", 50, "B", 40)},
		{"sum above 100", "5", cats("A", 60, "B", 50)},
		{"zero percent", "5", cats("A", 0, "B", 100)},
		{"over 100 percent", "5", cats("A", 101)},
		{"blank name", "5", cats(" ", 100)},
		{"too many", "5", cats("A", 20, "B", 20, "C", 20, "D", 20, "E", 10, "F", 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Split(dec(tt.amount), tt.cats)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestValidateCategoriesEmpty(t *testing.T) {
	if err := ValidateCategories(nil); err != nil {
		t.Errorf("empty list: %v", err)
	}
	if err := ValidateCategories(cats("A", 20, "B", 20, "C", 20, "D", 20, "E", 20)); err != nil {
		t.Errorf("five categories: %v", err)
	}
}
