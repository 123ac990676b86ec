// Package backup takes encrypted snapshots of the SQLite database and keeps
// them in the file storage bucket.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dukerupert/huddle/internal/storage"
)

// KeyPrefix is where snapshots live in the bucket.
const KeyPrefix = "backups/"

// MaxSnapshotSize caps how much Restore will download.
const MaxSnapshotSize = 1 << 30

var (
	ErrNoPassphrase = errors.New("backup passphrase is not configured")
	ErrBadKey       = errors.New("not a backup key")
	ErrDestExists   = errors.New("restore destination already exists")
)

type Manager struct {
	db         *sql.DB
	bucket     *storage.Bucket
	passphrase string
	now        func() time.Time
	logger     *slog.Logger
}

// New returns a Manager. db may be nil when the Manager is only used to
// restore.
func New(db *sql.DB, bucket *storage.Bucket, passphrase string, logger *slog.Logger) *Manager {
	return &Manager{
		db:         db,
		bucket:     bucket,
		passphrase: passphrase,
		now:        time.Now,
		logger:     logger.With("component", "backup"),
	}
}

func (m *Manager) check() error {
	if m.passphrase == "" {
		return ErrNoPassphrase
	}
	if !m.bucket.Enabled() {
		return storage.ErrDisabled
	}
	return nil
}

// Result describes a stored snapshot.
type Result struct {
	Key  string
	Size int64
}

// Create writes a consistent copy of the live database with VACUUM INTO,
// seals it and uploads it.
func (m *Manager) Create(ctx context.Context) (*Result, error) {
	if err := m.check(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "huddle-backup-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	snapPath := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", snapPath); err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}
	plain, err := os.ReadFile(snapPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	sealed, err := Seal(plain, m.passphrase)
	if err != nil {
		return nil, fmt.Errorf("encrypt snapshot: %w", err)
	}

	key := KeyPrefix + m.now().UTC().Format("20060102T150405Z") + ".db.enc"
	if err := m.bucket.Put(ctx, key, bytes.NewReader(sealed), int64(len(sealed)), "application/octet-stream"); err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}

	m.logger.Info("backup stored", "key", key, "bytes", len(sealed))
	return &Result{Key: key, Size: int64(len(sealed))}, nil
}

// Restore downloads the snapshot at key, decrypts it, checks its integrity
// and writes it to dst. dst must not exist; the live database is never
// replaced in place.
func (m *Manager) Restore(ctx context.Context, key, dst string) error {
	if err := m.check(); err != nil {
		return err
	}
	if !strings.HasPrefix(key, KeyPrefix) {
		return ErrBadKey
	}
	if _, err := os.Stat(dst); err == nil {
		return ErrDestExists
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat destination: %w", err)
	}

	obj, err := m.bucket.Get(ctx, key)
	if err != nil {
		return err
	}
	defer obj.Body.Close()

	sealed, err := io.ReadAll(io.LimitReader(obj.Body, MaxSnapshotSize+1))
	if err != nil {
		return fmt.Errorf("download snapshot: %w", err)
	}
	if len(sealed) > MaxSnapshotSize {
		return fmt.Errorf("snapshot %s is larger than %d bytes", key, MaxSnapshotSize)
	}

	plain, err := Open(sealed, m.passphrase)
	if err != nil {
		return fmt.Errorf("decrypt snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".restore-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(plain); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	if err := integrityCheck(tmpPath); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("move snapshot into place: %w", err)
	}

	m.logger.Info("backup restored", "key", key, "path", dst)
	return nil
}

func integrityCheck(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
