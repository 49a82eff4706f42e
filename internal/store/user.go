package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/allowance/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(&u.ID, &u.Email, &u.DisplayName, &u.ImageURL, &u.HasPassword, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, email, display_name, image_url, password_hash IS NOT NULL, created_at, updated_at`

// Create inserts a password user. Returns ErrConflict if the email is taken.
func (s *UserStore) Create(email, displayName, passwordHash string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (email, display_name, password_hash) VALUES (?, ?, ?)`,
		email, displayName, passwordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetPasswordHash returns the bcrypt hash for the user with the given email.
// The hash is empty when the user does not exist or signs in only through OAuth.
func (s *UserStore) GetPasswordHash(email string) (int64, string, error) {
	var id int64
	var hash sql.NullString
	err := s.db.QueryRow(`SELECT id, password_hash FROM users WHERE email = ?`, email).Scan(&id, &hash)
	if err == sql.ErrNoRows {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("get password hash: %w", err)
	}
	return id, hash.String, nil
}

// UpsertOAuth creates the user on first OAuth sign-in, or refreshes the display
// name and image of an existing user with the same email.
func (s *UserStore) UpsertOAuth(email, displayName, imageURL string) (*model.User, error) {
	_, err := s.db.Exec(
		`INSERT INTO users (email, display_name, image_url) VALUES (?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET
		   display_name = excluded.display_name,
		   image_url = excluded.image_url,
		   updated_at = CURRENT_TIMESTAMP`,
		email, displayName, imageURL,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert oauth user: %w", err)
	}
	return s.GetByEmail(email)
}

func (s *UserStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
