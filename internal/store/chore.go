package store

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/model"
)

type ChoreStore struct {
	db *sql.DB
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db}
}

func scanChore(scanner interface{ Scan(...any) error }) (*model.Chore, error) {
	var c model.Chore
	err := scanner.Scan(&c.ID, &c.FamilyID, &c.Name, &c.Reward, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const choreCols = `id, family_id, name, reward, created_at, updated_at`

func (s *ChoreStore) Create(familyID int64, name string, reward decimal.Decimal) (*model.Chore, error) {
	result, err := s.db.Exec(
		`INSERT INTO chores (family_id, name, reward) VALUES (?, ?, ?)`,
		familyID, name, reward,
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(familyID, id)
}

func (s *ChoreStore) GetByID(familyID, id int64) (*model.Chore, error) {
	row := s.db.QueryRow(`SELECT `+choreCols+` FROM chores WHERE family_id = ? AND id = ?`, familyID, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

func (s *ChoreStore) List(familyID int64) ([]model.Chore, error) {
	rows, err := s.db.Query(`SELECT `+choreCols+` FROM chores WHERE family_id = ? ORDER BY name ASC, id ASC`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

func (s *ChoreStore) Update(familyID, id int64, name string, reward decimal.Decimal) (*model.Chore, error) {
	_, err := s.db.Exec(
		`UPDATE chores SET name = ?, reward = ? WHERE family_id = ? AND id = ?`,
		name, reward, familyID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update chore: %w", err)
	}
	return s.GetByID(familyID, id)
}

// Delete removes the chore. Returns ErrInUse while an assignment refers to it.
func (s *ChoreStore) Delete(familyID, id int64) error {
	_, err := s.db.Exec(`DELETE FROM chores WHERE family_id = ? AND id = ?`, familyID, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrInUse
		}
		return fmt.Errorf("delete chore: %w", err)
	}
	return nil
}
