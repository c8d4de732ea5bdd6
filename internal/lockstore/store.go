// Package lockstore persists Git LFS lock records keyed by path with a
// secondary lookup by lock id.
package lockstore

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/stefando/lfsS3/internal/lfs"
)

var (
	// ErrNotFound is returned when no record matches a path or id
	ErrNotFound = errors.New("lock not found")

	// ErrAlreadyExists is returned by Create when the path is already locked
	ErrAlreadyExists = errors.New("lock already exists")
)

// Error wraps a failed lock store call
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("lockstore: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Record is a persisted lock. Path is the primary key; ID is unique and indexed.
type Record struct {
	Path      string `dynamodbav:"path"`
	ID        string `dynamodbav:"id"`
	LockedAt  string `dynamodbav:"lockedAt"`
	OwnerName string `dynamodbav:"ownerName"`
}

// Lock projects the record into its API representation
func (r Record) Lock() lfs.Lock {
	return lfs.Lock{
		ID:       r.ID,
		Path:     r.Path,
		LockedAt: r.LockedAt,
		Owner:    lfs.LockOwner{Name: r.OwnerName},
	}
}

// LockStore is the persistence interface used by the lock manager
type LockStore interface {
	// GetByPath returns the record locking path or ErrNotFound
	GetByPath(ctx context.Context, path string) (Record, error)

	// GetByID looks a record up through the id index or returns ErrNotFound.
	// The index may lag behind writes.
	GetByID(ctx context.Context, id string) (Record, error)

	// Scan yields every record, fetching further pages as iteration proceeds.
	// Iteration stops after the first error.
	Scan(ctx context.Context) iter.Seq2[Record, error]

	// Create stores rec unless its path is already locked, in which case it
	// returns ErrAlreadyExists.
	Create(ctx context.Context, rec Record) error

	DeleteByPath(ctx context.Context, path string) error
}

// ScanAll drains Scan into a slice
func ScanAll(ctx context.Context, store LockStore) ([]Record, error) {
	var records []Record
	for rec, err := range store.Scan(ctx) {
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
