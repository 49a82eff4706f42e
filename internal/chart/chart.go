// Package chart assembles a family's chore chart for a single day and decides
// what toggling an entry does.
package chart

import (
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/model"
)

var ErrInvalid = errors.New("invalid chart request")

type Kind string

const (
	KindAssignment Kind = "assignment"
	KindBonus      Kind = "bonus"
)

// Input is everything the assembler needs. Assignments are the family's full
// set; Commissions are those recorded on Date.
type Input struct {
	Date        civil.Date
	People      []model.Person
	Chores      []model.Chore
	Assignments []model.Assignment
	Commissions []model.Commission
}

// Entry is one row of the chart.
type Entry struct {
	Kind         Kind              `json:"kind"`
	AssignmentID *int64            `json:"assignment_id"`
	PersonID     int64             `json:"person_id"`
	PersonName   string            `json:"person_name"`
	ChoreID      *int64            `json:"chore_id"`
	ChoreName    string            `json:"chore_name"`
	Reward       decimal.Decimal   `json:"reward"`
	IsCompleted  bool              `json:"is_completed"`
	IsPaid       bool              `json:"is_paid"`
	Commission   *model.Commission `json:"commission"`

	age int
}

type Chart struct {
	Date      civil.Date      `json:"date"`
	DayOfWeek model.DayOfWeek `json:"day_of_week"`
	Entries   []Entry         `json:"entries"`
}

const unknownAge = -1

type personChore struct {
	personID int64
	choreID  int64
}

// Assemble builds the chart for in.Date: the assignments scheduled on that
// weekday plus the bonus commissions recorded that day, older people first.
func Assemble(in Input) Chart {
	day := model.DayOfWeekOf(in.Date)

	people := make(map[int64]model.Person, len(in.People))
	for _, p := range in.People {
		people[p.ID] = p
	}
	chores := make(map[int64]model.Chore, len(in.Chores))
	for _, c := range in.Chores {
		chores[c.ID] = c
	}

	done := make(map[personChore]*model.Commission)
	var bonus []*model.Commission
	for i := range in.Commissions {
		c := &in.Commissions[i]
		if c.IsBonus() {
			bonus = append(bonus, c)
		}
		if c.ChoreID != nil {
			key := personChore{c.PersonID, *c.ChoreID}
			if _, ok := done[key]; !ok {
				done[key] = c
			}
		}
	}

	entries := make([]Entry, 0, len(in.Assignments)+len(bonus))
	scheduled := make(map[personChore]bool)
	for _, a := range in.Assignments {
		if a.DayOfWeek != day {
			continue
		}
		chore, ok := chores[a.ChoreID]
		if !ok {
			continue
		}
		id, choreID := a.ID, a.ChoreID
		e := Entry{
			Kind:         KindAssignment,
			AssignmentID: &id,
			PersonID:     a.PersonID,
			ChoreID:      &choreID,
			ChoreName:    chore.Name,
			Reward:       a.EffectiveReward(chore),
		}
		key := personChore{a.PersonID, a.ChoreID}
		scheduled[key] = true
		if c, ok := done[key]; ok {
			e.Commission = c
		}
		entries = append(entries, e)
	}
	for _, c := range bonus {
		// A bonus for a chore the person is scheduled for today is shown on
		// the assignment's entry instead.
		if c.ChoreID != nil {
			key := personChore{c.PersonID, *c.ChoreID}
			if scheduled[key] && done[key] == c {
				continue
			}
		}
		name := c.ChoreName
		if c.ChoreID != nil {
			if chore, ok := chores[*c.ChoreID]; ok {
				name = chore.Name
			}
		}
		entries = append(entries, Entry{
			Kind:       KindBonus,
			PersonID:   c.PersonID,
			ChoreID:    c.ChoreID,
			ChoreName:  name,
			Reward:     c.FinalAmount,
			Commission: c,
		})
	}

	for i := range entries {
		e := &entries[i]
		e.IsCompleted = e.Commission != nil
		e.IsPaid = e.Commission != nil && e.Commission.IsPaid()
		e.age = unknownAge
		if p, ok := people[e.PersonID]; ok {
			e.PersonName = p.Name
			e.age = Age(p.Birthday, in.Date)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].age > entries[j].age
	})

	return Chart{Date: in.Date, DayOfWeek: day, Entries: entries}
}

// Age returns whole years between birthday and on. It is never negative.
func Age(birthday, on civil.Date) int {
	age := on.Year - birthday.Year
	if on.Month < birthday.Month || (on.Month == birthday.Month && on.Day < birthday.Day) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// Find returns the entry for the given assignment or commission. Exactly one
// of the IDs should be non-zero.
func (c Chart) Find(assignmentID, commissionID int64) (Entry, bool) {
	for _, e := range c.Entries {
		if assignmentID != 0 && e.AssignmentID != nil && *e.AssignmentID == assignmentID {
			return e, true
		}
		if commissionID != 0 && e.Commission != nil && e.Commission.ID == commissionID {
			return e, true
		}
	}
	return Entry{}, false
}

type Action string

const (
	ActionCreate Action = "create"
	ActionDelete Action = "delete"
	ActionNone   Action = "none"
)

// Decide reports what toggling e does. Paid entries never change.
func Decide(e Entry) Action {
	switch {
	case e.IsPaid:
		return ActionNone
	case e.IsCompleted:
		return ActionDelete
	case e.Kind == KindAssignment:
		return ActionCreate
	default:
		return ActionNone
	}
}

// CommissionWriter is the persistence a toggle needs.
type CommissionWriter interface {
	Create(n model.NewCommission) (*model.Commission, error)
	Delete(familyID, id int64) error
}

// Toggle applies Decide(e) for a chart of familyID on date. It returns the
// action taken and, for a create, the new commission.
func Toggle(w CommissionWriter, familyID int64, date civil.Date, e Entry) (Action, *model.Commission, error) {
	action := Decide(e)
	switch action {
	case ActionCreate:
		if e.AssignmentID == nil || e.ChoreID == nil {
			return ActionNone, nil, fmt.Errorf("%w: entry has no assignment", ErrInvalid)
		}
		c, err := w.Create(model.NewCommission{
			FamilyID:     familyID,
			PersonID:     e.PersonID,
			ChoreID:      e.ChoreID,
			AssignmentID: e.AssignmentID,
			Date:         date,
			BaseAmount:   e.Reward,
			Rating:       model.RatingMeetsExpectations,
		})
		if err != nil {
			return ActionNone, nil, err
		}
		return action, c, nil
	case ActionDelete:
		if err := w.Delete(familyID, e.Commission.ID); err != nil {
			return ActionNone, nil, err
		}
	}
	return action, nil, nil
}
