package store

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/model"
)

type AssignmentStore struct {
	db *sql.DB
}

func NewAssignmentStore(db *sql.DB) *AssignmentStore {
	return &AssignmentStore{db: db}
}

func scanAssignment(scanner interface{ Scan(...any) error }) (*model.Assignment, error) {
	var a model.Assignment
	var reward decimal.NullDecimal
	err := scanner.Scan(&a.ID, &a.FamilyID, &a.PersonID, &a.ChoreID, &a.DayOfWeek, &reward, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if reward.Valid {
		a.Reward = &reward.Decimal
	}
	return &a, nil
}

const assignmentCols = `id, family_id, person_id, chore_id, day_of_week, reward, created_at, updated_at`

func nullReward(r *decimal.Decimal) decimal.NullDecimal {
	if r == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *r, Valid: true}
}

// Create inserts an assignment. Returns ErrConflict if the person already has
// the chore on that day.
func (s *AssignmentStore) Create(familyID, personID, choreID int64, day model.DayOfWeek, reward *decimal.Decimal) (*model.Assignment, error) {
	result, err := s.db.Exec(
		`INSERT INTO chore_assignments (family_id, person_id, chore_id, day_of_week, reward) VALUES (?, ?, ?, ?, ?)`,
		familyID, personID, choreID, int(day), nullReward(reward),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("insert assignment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(familyID, id)
}

func (s *AssignmentStore) GetByID(familyID, id int64) (*model.Assignment, error) {
	row := s.db.QueryRow(`SELECT `+assignmentCols+` FROM chore_assignments WHERE family_id = ? AND id = ?`, familyID, id)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

func (s *AssignmentStore) List(familyID int64) ([]model.Assignment, error) {
	rows, err := s.db.Query(
		`SELECT `+assignmentCols+` FROM chore_assignments WHERE family_id = ? ORDER BY day_of_week ASC, person_id ASC, id ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

func (s *AssignmentStore) Update(familyID, id, personID, choreID int64, day model.DayOfWeek, reward *decimal.Decimal) (*model.Assignment, error) {
	_, err := s.db.Exec(
		`UPDATE chore_assignments SET person_id = ?, chore_id = ?, day_of_week = ?, reward = ? WHERE family_id = ? AND id = ?`,
		personID, choreID, int(day), nullReward(reward), familyID, id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("update assignment: %w", err)
	}
	return s.GetByID(familyID, id)
}

// Delete removes the assignment. Returns ErrInUse while a commission refers to it.
func (s *AssignmentStore) Delete(familyID, id int64) error {
	_, err := s.db.Exec(`DELETE FROM chore_assignments WHERE family_id = ? AND id = ?`, familyID, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrInUse
		}
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}
