package lockstore

import (
	"context"
	"database/sql"
	"errors"
	"iter"

	"github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS locks (
	path       TEXT PRIMARY KEY,
	id         TEXT NOT NULL UNIQUE,
	locked_at  TEXT NOT NULL,
	owner_name TEXT NOT NULL
);`

// scanPageSize bounds each keyset page read by SQLiteStore.Scan
const scanPageSize = 100

// SQLiteStore keeps locks in a local SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at dbPath
func OpenSQLite(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, &Error{Op: "Open", Err: err}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, &Error{Op: "InitSchema", Err: err}
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) get(ctx context.Context, op, query, arg string) (Record, error) {
	var rec Record
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&rec.Path, &rec.ID, &rec.LockedAt, &rec.OwnerName)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, &Error{Op: op, Err: err}
	}
	return rec, nil
}

func (s *SQLiteStore) GetByPath(ctx context.Context, path string) (Record, error) {
	return s.get(ctx, "GetByPath", `SELECT path, id, locked_at, owner_name FROM locks WHERE path = ?`, path)
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (Record, error) {
	return s.get(ctx, "GetByID", `SELECT path, id, locked_at, owner_name FROM locks WHERE id = ?`, id)
}

func (s *SQLiteStore) page(ctx context.Context, after string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, id, locked_at, owner_name FROM locks WHERE path > ? ORDER BY path LIMIT ?`,
		after, scanPageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Path, &rec.ID, &rec.LockedAt, &rec.OwnerName); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Scan pages through the table in path order using the last path seen as the
// continuation token
func (s *SQLiteStore) Scan(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		after := ""
		for {
			records, err := s.page(ctx, after)
			if err != nil {
				yield(Record{}, &Error{Op: "Scan", Err: err})
				return
			}
			for _, rec := range records {
				if !yield(rec, nil) {
					return
				}
			}
			if len(records) < scanPageSize {
				return
			}
			after = records[len(records)-1].Path
		}
	}
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

func (s *SQLiteStore) Create(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO locks(path, id, locked_at, owner_name) VALUES(?, ?, ?, ?)`,
		rec.Path, rec.ID, rec.LockedAt, rec.OwnerName)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrAlreadyExists
		}
		return &Error{Op: "Create", Err: err}
	}
	return nil
}

func (s *SQLiteStore) DeleteByPath(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM locks WHERE path = ?`, path); err != nil {
		return &Error{Op: "DeleteByPath", Err: err}
	}
	return nil
}
