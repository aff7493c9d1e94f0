// Package blobstore is the device-local attachment store: a durable mapping
// from expense record id to the captured receipt bytes. Blobs never leave
// the device; the remote record only carries a flag and a mime type.
package blobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// FormatVersion tags every stored blob so a future encoding change has a
// migration path. Rows with an unknown version read as absent.
const FormatVersion = 1

// Store maps expense ids to attachment blobs in a local sqlite file.
// The underlying handle is opened lazily on first use and cached for the
// process lifetime; concurrent first uses share a single initialization.
type Store struct {
	path string
	log  zerolog.Logger

	once sync.Once
	db   *sql.DB
	err  error
}

// New creates a Store for the sqlite file at path. Nothing is opened until
// the first operation.
func New(path string, log zerolog.Logger) *Store {
	return &Store{path: path, log: log}
}

func (s *Store) handle() (*sql.DB, error) {
	s.once.Do(func() {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			s.err = fmt.Errorf("create blob store directory: %w", err)
			return
		}

		db, err := sql.Open("sqlite", s.path)
		if err != nil {
			s.err = fmt.Errorf("open blob store: %w", err)
			return
		}
		if err := db.Ping(); err != nil {
			db.Close()
			s.err = fmt.Errorf("ping blob store: %w", err)
			return
		}
		if err := runMigrations(s.path); err != nil {
			db.Close()
			s.err = err
			return
		}
		s.db = db
	})
	return s.db, s.err
}

// Put stores the blob for an expense id, overwriting any previous entry.
// Callers treat a failure as non-fatal: the record still exists remotely
// without its attachment.
func (s *Store) Put(ctx context.Context, id string, data []byte) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO attachments (expense_id, format_version, data)
		VALUES (?, ?, ?)
		ON CONFLICT(expense_id) DO UPDATE SET
			format_version = excluded.format_version,
			data           = excluded.data,
			stored_at      = CURRENT_TIMESTAMP
	`, id, FormatVersion, data)
	if err != nil {
		return fmt.Errorf("store attachment %s: %w", id, err)
	}
	return nil
}

// Get returns the blob for an expense id. Absence is a normal, displayable
// state, not an error: a missing key, an unopenable store, and an unknown
// format version all report (nil, false).
func (s *Store) Get(ctx context.Context, id string) ([]byte, bool) {
	db, err := s.handle()
	if err != nil {
		s.log.Warn().Err(err).Str("expense_id", id).Msg("Blob store unavailable, treating attachment as absent")
		return nil, false
	}

	var version int
	var data []byte
	row := db.QueryRowContext(ctx, `SELECT format_version, data FROM attachments WHERE expense_id = ?`, id)
	if err := row.Scan(&version, &data); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Warn().Err(err).Str("expense_id", id).Msg("Failed to read attachment, treating as absent")
		}
		return nil, false
	}

	if version != FormatVersion {
		s.log.Warn().Int("format_version", version).Str("expense_id", id).Msg("Unknown blob format version, treating as absent")
		return nil, false
	}
	return data, true
}

// Delete removes the blob for an expense id. Deleting a missing entry is
// not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM attachments WHERE expense_id = ?`, id); err != nil {
		return fmt.Errorf("delete attachment %s: %w", id, err)
	}
	return nil
}

// Close releases the cached handle if one was ever opened.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
