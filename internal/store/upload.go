package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/huddle/internal/model"
)

type UploadStore struct {
	db *sql.DB
}

func NewUploadStore(db *sql.DB) *UploadStore {
	return &UploadStore{db: db}
}

func scanUpload(scanner interface{ Scan(...any) error }) (*model.Upload, error) {
	var u model.Upload
	err := scanner.Scan(&u.ID, &u.UserID, &u.ObjectKey, &u.Filename, &u.ContentType, &u.Size, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const uploadCols = `id, user_id, object_key, filename, content_type, size, created_at`

func (s *UploadStore) Create(userID int64, objectKey, filename, contentType string, size int64) (*model.Upload, error) {
	result, err := s.db.Exec(
		`INSERT INTO uploads (user_id, object_key, filename, content_type, size) VALUES (?, ?, ?, ?, ?)`,
		userID, objectKey, filename, contentType, size,
	)
	if err != nil {
		return nil, fmt.Errorf("insert upload: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id, userID)
}

// GetByID returns the upload only when it belongs to userID.
func (s *UploadStore) GetByID(id, userID int64) (*model.Upload, error) {
	row := s.db.QueryRow(`SELECT `+uploadCols+` FROM uploads WHERE id = ? AND user_id = ?`, id, userID)
	u, err := scanUpload(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get upload: %w", err)
	}
	return u, nil
}

func (s *UploadStore) ListByUser(userID int64) ([]model.Upload, error) {
	rows, err := s.db.Query(`SELECT `+uploadCols+` FROM uploads WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var uploads []model.Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		uploads = append(uploads, *u)
	}
	return uploads, rows.Err()
}

func (s *UploadStore) Delete(id, userID int64) error {
	_, err := s.db.Exec(`DELETE FROM uploads WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}

func (s *UploadStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM uploads`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count uploads: %w", err)
	}
	return n, nil
}
