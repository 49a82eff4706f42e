package store

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/model"
)

func TestCommissionCreateDefaults(t *testing.T) {
	s := setupFamilyTestDB(t)
	_, f := seedFamily(t, s)
	p, _ := s.people.Create(f.ID, "Sam", civil.Date{Year: 2014, Month: 6, Day: 15})
	c, _ := s.chores.Create(f.ID, "Dishes", decimal.RequireFromString("2.00"))
	a, _ := s.assignments.Create(f.ID, p.ID, c.ID, model.Monday, nil)

	date := civil.Date{Year: 2024, Month: 1, Day: 1}
	cm, err := s.commissions.Create(model.NewCommission{
		FamilyID: f.ID, PersonID: p.ID, ChoreID: &c.ID, AssignmentID: &a.ID,
		Date: date, BaseAmount: c.Reward,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if cm.Rating != model.RatingMeetsExpectations {
		t.Errorf("rating = %d, want 3", cm.Rating)
	}
	if !cm.FinalAmount.Equal(c.Reward) || !cm.Balance.Equal(c.Reward) {
		t.Errorf("final = %s balance = %s, want 2", cm.FinalAmount, cm.Balance)
	}
	if cm.ChoreName != "Dishes" {
		t.Errorf("chore_name = %q, want %q", cm.ChoreName, "Dishes")
	}
	if cm.PersonName != "Sam" {
		t.Errorf("person_name = %q, want %q", cm.PersonName, "Sam")
	}
	if cm.Date != date {
		t.Errorf("date = %s, want %s", cm.Date, date)
	}
	if cm.IsPaid() || cm.IsBonus() {
		t.Errorf("paid = %v bonus = %v, want false false", cm.IsPaid(), cm.IsBonus())
	}

	_, err = s.commissions.Create(model.NewCommission{
		FamilyID: f.ID, PersonID: p.ID, ChoreID: &c.ID, AssignmentID: &a.ID,
		Date: date, BaseAmount: c.Reward,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate err = %v, want ErrConflict", err)
	}
}

func TestCommissionAdHocBonus(t *testing.T) {
	s := setupFamilyTestDB(t)
	_, f := seedFamily(t, s)
	p, _ := s.people.Create(f.ID, "Sam", civil.Date{Year: 2014, Month: 6, Day: 15})

	date := civil.Date{Year: 2024, Month: 1, Day: 1}
	for i := 0; i < 2; i++ {
		cm, err := s.commissions.Create(model.NewCommission{
			FamilyID: f.ID, PersonID: p.ID, ChoreName: "Wash car",
			Date: date, BaseAmount: decimal.RequireFromString("5"),
		})
		if err != nil {
			t.Fatalf("create bonus %d: %v", i, err)
		}
		if cm.ChoreName != "Wash car" || !cm.IsBonus() {
			t.Errorf("bonus = %+v", cm)
		}
	}

	list, err := s.commissions.ListForDate(f.ID, date)
	if err != nil {
		t.Fatalf("list for date: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("len = %d, want 2", len(list))
	}
}

func TestCommissionListOrder(t *testing.T) {
	s := setupFamilyTestDB(t)
	_, f := seedFamily(t, s)
	p1, _ := s.people.Create(f.ID, "Sam", civil.Date{Year: 2014, Month: 6, Day: 15})
	p2, _ := s.people.Create(f.ID, "Max", civil.Date{Year: 2016, Month: 6, Day: 15})

	mk := func(personID int64, day int) {
		t.Helper()
		if _, err := s.commissions.Create(model.NewCommission{
			FamilyID: f.ID, PersonID: personID, ChoreName: "Bonus",
			Date: civil.Date{Year: 2024, Month: 1, Day: day}, BaseAmount: decimal.NewFromInt(1),
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	mk(p1.ID, 1)
	mk(p2.ID, 1)
	mk(p1.ID, 2)

	list, err := s.commissions.List(f.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	if list[0].Date.Day != 2 {
		t.Errorf("first date = %s, want 2024-01-02", list[0].Date)
	}
	if list[1].PersonID != p2.ID {
		t.Errorf("second person = %d, want %d", list[1].PersonID, p2.ID)
	}
}

func TestCommissionMarkPaid(t *testing.T) {
	s := setupFamilyTestDB(t)
	_, f := seedFamily(t, s)
	p, _ := s.people.Create(f.ID, "Sam", civil.Date{Year: 2014, Month: 6, Day: 15})

	for day, amount := range map[int]string{1: "0.10", 2: "0.20"} {
		if _, err := s.commissions.Create(model.NewCommission{
			FamilyID: f.ID, PersonID: p.ID, ChoreName: "Bonus",
			Date: civil.Date{Year: 2024, Month: 1, Day: day}, BaseAmount: decimal.RequireFromString(amount),
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	due, err := s.commissions.AmountDue(f.ID, p.ID)
	if err != nil {
		t.Fatalf("amount due: %v", err)
	}
	if !due.Equal(decimal.RequireFromString("0.30")) {
		t.Errorf("due = %s, want 0.30", due)
	}

	n, total, err := s.commissions.MarkPaid(f.ID, p.ID, time.Now())
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if n != 2 {
		t.Errorf("paid = %d, want 2", n)
	}
	if !total.Equal(decimal.RequireFromString("0.30")) {
		t.Errorf("total = %s, want 0.30", total)
	}

	due, _ = s.commissions.AmountDue(f.ID, p.ID)
	if !due.IsZero() {
		t.Errorf("due after pay = %s, want 0", due)
	}

	list, _ := s.commissions.List(f.ID)
	for _, c := range list {
		if !c.IsPaid() || !c.Balance.IsZero() {
			t.Errorf("commission %d paid = %v balance = %s", c.ID, c.IsPaid(), c.Balance)
		}
	}

	n, _, err = s.commissions.MarkPaid(f.ID, p.ID, time.Now())
	if err != nil {
		t.Fatalf("mark paid again: %v", err)
	}
	if n != 0 {
		t.Errorf("second pay = %d, want 0", n)
	}
}

func TestCommissionDeletePaid(t *testing.T) {
	s := setupFamilyTestDB(t)
	_, f := seedFamily(t, s)
	p, _ := s.people.Create(f.ID, "Sam", civil.Date{Year: 2014, Month: 6, Day: 15})

	cm, _ := s.commissions.Create(model.NewCommission{
		FamilyID: f.ID, PersonID: p.ID, ChoreName: "Bonus",
		Date: civil.Date{Year: 2024, Month: 1, Day: 1}, BaseAmount: decimal.NewFromInt(1),
	})
	if _, _, err := s.commissions.MarkPaid(f.ID, p.ID, time.Now()); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	if err := s.commissions.Delete(f.ID, cm.ID); !errors.Is(err, ErrPaid) {
		t.Fatalf("err = %v, want ErrPaid", err)
	}
	got, _ := s.commissions.GetByID(f.ID, cm.ID)
	if got == nil {
		t.Error("paid commission should survive delete")
	}
}

func TestCommissionMarkPaidSkipsZeroBalance(t *testing.T) {
	s := setupFamilyTestDB(t)
	_, f := seedFamily(t, s)
	p, _ := s.people.Create(f.ID, "Sam", civil.Date{Year: 2014, Month: 6, Day: 15})

	free, err := s.commissions.Create(model.NewCommission{
		FamilyID: f.ID, PersonID: p.ID, ChoreName: "Tidy room",
		Date: civil.Date{Year: 2024, Month: 1, Day: 1}, BaseAmount: decimal.RequireFromString("0.00"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	n, total, err := s.commissions.MarkPaid(f.ID, p.ID, time.Now())
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if n != 0 || !total.IsZero() {
		t.Errorf("paid = %d/%s, want 0/0", n, total)
	}
	got, _ := s.commissions.GetByID(f.ID, free.ID)
	if got == nil || got.IsPaid() {
		t.Fatalf("zero-balance commission = %+v, want unpaid", got)
	}

	paid, _ := s.commissions.Create(model.NewCommission{
		FamilyID: f.ID, PersonID: p.ID, ChoreName: "Mow lawn",
		Date: civil.Date{Year: 2024, Month: 1, Day: 2}, BaseAmount: decimal.RequireFromString("4"),
	})
	n, total, err = s.commissions.MarkPaid(f.ID, p.ID, time.Now())
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if n != 1 || !total.Equal(decimal.RequireFromString("4")) {
		t.Errorf("paid = %d/%s, want 1/4", n, total)
	}
	if got, _ := s.commissions.GetByID(f.ID, paid.ID); got == nil || !got.IsPaid() {
		t.Errorf("commission %d should be paid", paid.ID)
	}
	if got, _ := s.commissions.GetByID(f.ID, free.ID); got == nil || got.IsPaid() {
		t.Errorf("zero-balance commission %d should stay unpaid", free.ID)
	}
}

func TestCommissionDeleteMissing(t *testing.T) {
	s := setupFamilyTestDB(t)
	_, f := seedFamily(t, s)
	p, _ := s.people.Create(f.ID, "Sam", civil.Date{Year: 2014, Month: 6, Day: 15})

	cm, _ := s.commissions.Create(model.NewCommission{
		FamilyID: f.ID, PersonID: p.ID, ChoreName: "Bonus",
		Date: civil.Date{Year: 2024, Month: 1, Day: 1}, BaseAmount: decimal.NewFromInt(1),
	})
	if err := s.commissions.Delete(f.ID, cm.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.commissions.Delete(f.ID, cm.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}
