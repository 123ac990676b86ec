package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/huddle/internal/model"
)

type AdminStore struct {
	db *sql.DB
}

func NewAdminStore(db *sql.DB) *AdminStore {
	return &AdminStore{db: db}
}

func scanAdmin(scanner interface{ Scan(...any) error }) (*model.AdminUser, error) {
	var a model.AdminUser
	var active int
	err := scanner.Scan(&a.ID, &a.Username, &a.PasswordHash, &active, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.IsActive = active != 0
	return &a, nil
}

const adminCols = `id, username, password_hash, is_active, created_at`

func (s *AdminStore) Create(username, passwordHash string) (*model.AdminUser, error) {
	result, err := s.db.Exec(
		`INSERT INTO admin_users (username, password_hash) VALUES (?, ?)`,
		username, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert admin user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+adminCols+` FROM admin_users WHERE id = ?`, id)
	return scanAdmin(row)
}

func (s *AdminStore) GetByUsername(username string) (*model.AdminUser, error) {
	row := s.db.QueryRow(`SELECT `+adminCols+` FROM admin_users WHERE username = ?`, username)
	a, err := scanAdmin(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get admin user: %w", err)
	}
	return a, nil
}

// SetActive toggles an admin principal. It reports false when no such
// username exists.
func (s *AdminStore) SetActive(username string, active bool) (bool, error) {
	var v int
	if active {
		v = 1
	}
	result, err := s.db.Exec(`UPDATE admin_users SET is_active = ? WHERE username = ?`, v, username)
	if err != nil {
		return false, fmt.Errorf("set admin active: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *AdminStore) List() ([]model.AdminUser, error) {
	rows, err := s.db.Query(`SELECT ` + adminCols + ` FROM admin_users ORDER BY username ASC`)
	if err != nil {
		return nil, fmt.Errorf("list admin users: %w", err)
	}
	defer rows.Close()

	var admins []model.AdminUser
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan admin user: %w", err)
		}
		admins = append(admins, *a)
	}
	return admins, rows.Err()
}
