package store

import (
	"database/sql"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/model"
)

type CommissionStore struct {
	db *sql.DB
}

func NewCommissionStore(db *sql.DB) *CommissionStore {
	return &CommissionStore{db: db}
}

func scanCommission(scanner interface{ Scan(...any) error }) (*model.Commission, error) {
	var c model.Commission
	var choreID, assignmentID sql.NullInt64
	var date string
	var paidAt sql.NullTime
	err := scanner.Scan(
		&c.ID, &c.FamilyID, &c.PersonID, &c.PersonName, &choreID, &c.ChoreName, &assignmentID,
		&date, &c.BaseAmount, &c.Rating, &c.FinalAmount, &c.Balance, &paidAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if choreID.Valid {
		c.ChoreID = &choreID.Int64
	}
	if assignmentID.Valid {
		c.AssignmentID = &assignmentID.Int64
	}
	if paidAt.Valid {
		c.PaidAt = &paidAt.Time
	}
	d, err := civil.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("parse commission date: %w", err)
	}
	c.Date = d
	return &c, nil
}

// commissionSelect joins the person and chore names so a commission reads the
// same whether it came from a chore record or an ad-hoc label.
const commissionSelect = `SELECT c.id, c.family_id, c.person_id, p.name, c.chore_id,
	COALESCE(ch.name, c.chore_name, ''), c.assignment_id, c.date, c.base_amount, c.rating,
	c.final_amount, c.balance, c.paid_at, c.created_at, c.updated_at
	FROM commissions c
	JOIN people p ON p.id = c.person_id
	LEFT JOIN chores ch ON ch.id = c.chore_id`

func (s *CommissionStore) queryCommissions(query string, args ...any) ([]model.Commission, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commissions []model.Commission
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan commission: %w", err)
		}
		commissions = append(commissions, *c)
	}
	return commissions, rows.Err()
}

// Create records a commission with balance equal to its final amount.
// Returns ErrConflict if the person already has the chore recorded for the date.
func (s *CommissionStore) Create(n model.NewCommission) (*model.Commission, error) {
	rating := n.Rating
	if rating == 0 {
		rating = model.RatingMeetsExpectations
	}
	var choreName sql.NullString
	if n.ChoreID == nil {
		choreName = sql.NullString{String: n.ChoreName, Valid: true}
	}
	final := n.FinalAmount()
	result, err := s.db.Exec(
		`INSERT INTO commissions
		 (family_id, person_id, chore_id, chore_name, assignment_id, date, base_amount, rating, final_amount, balance)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.FamilyID, n.PersonID, n.ChoreID, choreName, n.AssignmentID, n.Date.String(),
		n.BaseAmount, int(rating), final, final,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("insert commission: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(n.FamilyID, id)
}

func (s *CommissionStore) GetByID(familyID, id int64) (*model.Commission, error) {
	row := s.db.QueryRow(commissionSelect+` WHERE c.family_id = ? AND c.id = ?`, familyID, id)
	c, err := scanCommission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get commission: %w", err)
	}
	return c, nil
}

// ListForDate returns every commission the family recorded on date.
func (s *CommissionStore) ListForDate(familyID int64, date civil.Date) ([]model.Commission, error) {
	commissions, err := s.queryCommissions(
		commissionSelect+` WHERE c.family_id = ? AND c.date = ? ORDER BY c.id ASC`,
		familyID, date.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list commissions for date: %w", err)
	}
	return commissions, nil
}

// List returns the family's commissions, newest date first.
func (s *CommissionStore) List(familyID int64) ([]model.Commission, error) {
	commissions, err := s.queryCommissions(
		commissionSelect+` WHERE c.family_id = ? ORDER BY c.date DESC, c.person_id DESC, c.id DESC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list commissions: %w", err)
	}
	return commissions, nil
}

// ListOutstanding returns the person's unpaid commissions, oldest first.
func (s *CommissionStore) ListOutstanding(familyID, personID int64) ([]model.Commission, error) {
	commissions, err := s.queryCommissions(
		commissionSelect+` WHERE c.family_id = ? AND c.person_id = ? AND c.paid_at IS NULL ORDER BY c.date ASC, c.id ASC`,
		familyID, personID,
	)
	if err != nil {
		return nil, fmt.Errorf("list outstanding commissions: %w", err)
	}
	return commissions, nil
}

// AmountDue sums the person's outstanding balances.
func (s *CommissionStore) AmountDue(familyID, personID int64) (decimal.Decimal, error) {
	outstanding, err := s.ListOutstanding(familyID, personID)
	if err != nil {
		return decimal.Zero, err
	}
	return sumBalances(outstanding), nil
}

func sumBalances(commissions []model.Commission) decimal.Decimal {
	total := decimal.Zero
	for _, c := range commissions {
		total = total.Add(c.Balance)
	}
	return total
}

// Delete removes an unpaid commission. Returns ErrPaid if it has been paid and
// ErrNotFound if it no longer exists.
func (s *CommissionStore) Delete(familyID, id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var paidAt sql.NullTime
	err = tx.QueryRow(`SELECT paid_at FROM commissions WHERE family_id = ? AND id = ?`, familyID, id).Scan(&paidAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get commission: %w", err)
	}
	if paidAt.Valid {
		return ErrPaid
	}
	if _, err := tx.Exec(`DELETE FROM commissions WHERE family_id = ? AND id = ?`, familyID, id); err != nil {
		return fmt.Errorf("delete commission: %w", err)
	}
	return tx.Commit()
}

// MarkPaid zeroes the balance and stamps paid_at on every unpaid commission of
// the person with a non-zero balance. It returns how many commissions were paid
// and their total. Zero-balance commissions stay unpaid, so paying when nothing
// is due changes nothing.
func (s *CommissionStore) MarkPaid(familyID, personID int64, now time.Time) (int64, decimal.Decimal, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT id, balance FROM commissions WHERE family_id = ? AND person_id = ? AND paid_at IS NULL`,
		familyID, personID,
	)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("query outstanding balances: %w", err)
	}
	var ids []int64
	total := decimal.Zero
	for rows.Next() {
		var id int64
		var balance decimal.Decimal
		if err := rows.Scan(&id, &balance); err != nil {
			rows.Close()
			return 0, decimal.Zero, fmt.Errorf("scan balance: %w", err)
		}
		if balance.IsZero() {
			continue
		}
		ids = append(ids, id)
		total = total.Add(balance)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, decimal.Zero, fmt.Errorf("iterate balances: %w", err)
	}
	if len(ids) == 0 {
		return 0, decimal.Zero, nil
	}

	paidAt := now.UTC().Format(dateLayout)
	for _, id := range ids {
		if _, err := tx.Exec(
			`UPDATE commissions SET balance = '0', paid_at = ? WHERE family_id = ? AND id = ?`,
			paidAt, familyID, id,
		); err != nil {
			return 0, decimal.Zero, fmt.Errorf("mark commission %d paid: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, decimal.Zero, fmt.Errorf("commit: %w", err)
	}
	return int64(len(ids)), total, nil
}
