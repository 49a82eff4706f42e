package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/allowance/internal/model"
)

type FamilyStore struct {
	db *sql.DB
}

func NewFamilyStore(db *sql.DB) *FamilyStore {
	return &FamilyStore{db: db}
}

func scanFamily(scanner interface{ Scan(...any) error }) (*model.Family, error) {
	var f model.Family
	var createdBy sql.NullInt64
	err := scanner.Scan(&f.ID, &f.Name, &f.PaymentCategories, &createdBy, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if createdBy.Valid {
		f.CreatedBy = &createdBy.Int64
	}
	return &f, nil
}

const familyCols = `id, name, payment_categories, created_by, created_at, updated_at`

// Create inserts the family and the creator's membership in one transaction.
func (s *FamilyStore) Create(name string, createdBy int64) (*model.Family, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO families (name, payment_categories, created_by) VALUES (?, ?, ?)`,
		name, model.PaymentCategories{}, createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert family: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO family_users (family_id, user_id) VALUES (?, ?)`,
		id, createdBy,
	); err != nil {
		return nil, fmt.Errorf("add family member: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *FamilyStore) GetByID(id int64) (*model.Family, error) {
	row := s.db.QueryRow(`SELECT `+familyCols+` FROM families WHERE id = ?`, id)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}
	return f, nil
}

// GetForUser returns the family only if userID is a member of it.
func (s *FamilyStore) GetForUser(userID, familyID int64) (*model.Family, error) {
	row := s.db.QueryRow(
		`SELECT f.id, f.name, f.payment_categories, f.created_by, f.created_at, f.updated_at
		 FROM families f
		 JOIN family_users fu ON f.id = fu.family_id
		 WHERE fu.user_id = ? AND f.id = ?`,
		userID, familyID,
	)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family for user: %w", err)
	}
	return f, nil
}

func (s *FamilyStore) ListForUser(userID int64) ([]model.Family, error) {
	rows, err := s.db.Query(
		`SELECT f.id, f.name, f.payment_categories, f.created_by, f.created_at, f.updated_at
		 FROM families f
		 JOIN family_users fu ON f.id = fu.family_id
		 WHERE fu.user_id = ?
		 ORDER BY f.name ASC, f.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list families for user: %w", err)
	}
	defer rows.Close()

	var families []model.Family
	for rows.Next() {
		f, err := scanFamily(rows)
		if err != nil {
			return nil, fmt.Errorf("scan family: %w", err)
		}
		families = append(families, *f)
	}
	return families, rows.Err()
}

func (s *FamilyStore) IsMember(familyID, userID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM family_users WHERE family_id = ? AND user_id = ?`,
		familyID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check family member: %w", err)
	}
	return n > 0, nil
}

func (s *FamilyStore) Update(id int64, name string) (*model.Family, error) {
	_, err := s.db.Exec(`UPDATE families SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return nil, fmt.Errorf("update family: %w", err)
	}
	return s.GetByID(id)
}

// UpdatePaymentCategories replaces the family's category list. Callers validate
// the list first.
func (s *FamilyStore) UpdatePaymentCategories(id int64, cats model.PaymentCategories) (*model.Family, error) {
	_, err := s.db.Exec(`UPDATE families SET payment_categories = ? WHERE id = ?`, cats, id)
	if err != nil {
		return nil, fmt.Errorf("update payment categories: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes the family and everything it owns. Commissions go first so the
// RESTRICT references from commissions to assignments never block the cascade.
func (s *FamilyStore) Delete(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM commissions WHERE family_id = ?`,
		`DELETE FROM chore_assignments WHERE family_id = ?`,
		`DELETE FROM families WHERE id = ?`,
	} {
		if _, err := tx.Exec(stmt, id); err != nil {
			return fmt.Errorf("delete family: %w", err)
		}
	}
	return tx.Commit()
}
