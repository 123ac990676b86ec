package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/huddle/internal/model"
)

// ErrTokenConsumed is returned by Exchange when the record being consumed
// was already deleted by a concurrent caller.
var ErrTokenConsumed = errors.New("verification token already consumed")

// VerificationTokenStore holds hashed one-time secrets. Rows are inserted and
// deleted, never updated.
type VerificationTokenStore struct {
	db *sql.DB
}

func NewVerificationTokenStore(db *sql.DB) *VerificationTokenStore {
	return &VerificationTokenStore{db: db}
}

func scanVerificationToken(scanner interface{ Scan(...any) error }) (*model.VerificationToken, error) {
	var v model.VerificationToken
	err := scanner.Scan(&v.ID, &v.Identifier, &v.TokenHash, &v.ExpiresAt, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

const verificationTokenCols = `id, identifier, token_hash, expires_at, created_at`

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertVerificationToken(db execer, identifier, tokenHash string, expiresAt time.Time) (int64, error) {
	result, err := db.Exec(
		`INSERT INTO verification_tokens (identifier, token_hash, expires_at) VALUES (?, ?, ?)`,
		identifier, tokenHash, expiresAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert verification token: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func (s *VerificationTokenStore) GetByID(id int64) (*model.VerificationToken, error) {
	row := s.db.QueryRow(`SELECT `+verificationTokenCols+` FROM verification_tokens WHERE id = ?`, id)
	v, err := scanVerificationToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get verification token: %w", err)
	}
	return v, nil
}

func (s *VerificationTokenStore) Create(identifier, tokenHash string, expiresAt time.Time) (*model.VerificationToken, error) {
	id, err := insertVerificationToken(s.db, identifier, tokenHash, expiresAt)
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// ListByIdentifier returns every record for identifier, newest first,
// including expired ones. Callers filter on expiry.
func (s *VerificationTokenStore) ListByIdentifier(identifier string) ([]model.VerificationToken, error) {
	rows, err := s.db.Query(
		`SELECT `+verificationTokenCols+` FROM verification_tokens WHERE identifier = ? ORDER BY created_at DESC, id DESC`,
		identifier,
	)
	if err != nil {
		return nil, fmt.Errorf("list verification tokens: %w", err)
	}
	defer rows.Close()

	var tokens []model.VerificationToken
	for rows.Next() {
		v, err := scanVerificationToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification token: %w", err)
		}
		tokens = append(tokens, *v)
	}
	return tokens, rows.Err()
}

// Delete removes a record and reports whether it was still present.
func (s *VerificationTokenStore) Delete(id int64) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM verification_tokens WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete verification token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *VerificationTokenStore) DeleteByIdentifier(identifier string) error {
	_, err := s.db.Exec(`DELETE FROM verification_tokens WHERE identifier = ?`, identifier)
	if err != nil {
		return fmt.Errorf("delete verification tokens by identifier: %w", err)
	}
	return nil
}

// Replace deletes all records for identifier and inserts a new one in a
// single transaction, leaving exactly one record for the identifier.
func (s *VerificationTokenStore) Replace(identifier, tokenHash string, expiresAt time.Time) (*model.VerificationToken, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM verification_tokens WHERE identifier = ?`, identifier); err != nil {
		return nil, fmt.Errorf("delete previous verification tokens: %w", err)
	}
	id, err := insertVerificationToken(tx, identifier, tokenHash, expiresAt)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(`SELECT `+verificationTokenCols+` FROM verification_tokens WHERE id = ?`, id)
	v, err := scanVerificationToken(row)
	if err != nil {
		return nil, fmt.Errorf("read verification token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return v, nil
}

// Exchange consumes the record consumedID and replaces every record for
// identifier with a new one, atomically. It returns ErrTokenConsumed when
// consumedID no longer exists.
func (s *VerificationTokenStore) Exchange(consumedID int64, identifier, tokenHash string, expiresAt time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`DELETE FROM verification_tokens WHERE id = ?`, consumedID)
	if err != nil {
		return fmt.Errorf("consume verification token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrTokenConsumed
	}

	if _, err := tx.Exec(`DELETE FROM verification_tokens WHERE identifier = ?`, identifier); err != nil {
		return fmt.Errorf("delete previous verification tokens: %w", err)
	}
	if _, err := insertVerificationToken(tx, identifier, tokenHash, expiresAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *VerificationTokenStore) DeleteExpired(now time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM verification_tokens WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired verification tokens: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

// CountByIdentifier returns the number of records for identifier.
func (s *VerificationTokenStore) CountByIdentifier(identifier string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM verification_tokens WHERE identifier = ?`, identifier).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count verification tokens: %w", err)
	}
	return n, nil
}
