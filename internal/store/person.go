package store

import (
	"database/sql"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/dukerupert/allowance/internal/model"
)

type PersonStore struct {
	db *sql.DB
}

func NewPersonStore(db *sql.DB) *PersonStore {
	return &PersonStore{db: db}
}

func scanPerson(scanner interface{ Scan(...any) error }) (*model.Person, error) {
	var p model.Person
	var birthday string
	if err := scanner.Scan(&p.ID, &p.FamilyID, &p.Name, &birthday, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	d, err := civil.ParseDate(birthday)
	if err != nil {
		return nil, fmt.Errorf("parse birthday: %w", err)
	}
	p.Birthday = d
	return &p, nil
}

const personCols = `id, family_id, name, birthday, created_at, updated_at`

func (s *PersonStore) Create(familyID int64, name string, birthday civil.Date) (*model.Person, error) {
	result, err := s.db.Exec(
		"INSERT INTO people (family_id, name, birthday) VALUES (?, ?, ?)",
		familyID, name, birthday.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert person: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(familyID, id)
}

func (s *PersonStore) List(familyID int64) ([]model.Person, error) {
	rows, err := s.db.Query(
		"SELECT "+personCols+" FROM people WHERE family_id = ? ORDER BY id",
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("query people: %w", err)
	}
	defer rows.Close()

	var people []model.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		people = append(people, *p)
	}
	return people, rows.Err()
}

func (s *PersonStore) GetByID(familyID, id int64) (*model.Person, error) {
	row := s.db.QueryRow(
		"SELECT "+personCols+" FROM people WHERE family_id = ? AND id = ?",
		familyID, id,
	)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query person: %w", err)
	}
	return p, nil
}

func (s *PersonStore) Update(familyID, id int64, name string, birthday civil.Date) (*model.Person, error) {
	_, err := s.db.Exec(
		"UPDATE people SET name = ?, birthday = ? WHERE family_id = ? AND id = ?",
		name, birthday.String(), familyID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update person: %w", err)
	}
	return s.GetByID(familyID, id)
}

// Delete removes the person. Returns ErrInUse while an assignment refers to them.
func (s *PersonStore) Delete(familyID, id int64) error {
	_, err := s.db.Exec("DELETE FROM people WHERE family_id = ? AND id = ?", familyID, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrInUse
		}
		return fmt.Errorf("delete person: %w", err)
	}
	return nil
}
