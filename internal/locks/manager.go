// Package locks implements the Git LFS file locking API on top of a LockStore.
package locks

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/stefando/lfsS3/internal/lfs"
	"github.com/stefando/lfsS3/internal/lockstore"
	"github.com/stefando/lfsS3/internal/metrics"
)

// Lock operations, as reported to metrics
const (
	OpList   = "list"
	OpVerify = "verify"
	OpCreate = "create"
	OpUnlock = "unlock"
)

// Errors returned by the manager. Each maps onto the LFS locking API status codes.
var (
	ErrMissingPath = lfs.BadRequest("Missing path")

	ErrLockNotFound = &lfs.HTTPError{
		Status:    http.StatusInternalServerError,
		ErrorType: lfs.ErrorTypeInternal,
		Message:   "lock not found",
	}

	ErrNotOwner = &lfs.HTTPError{
		Status:    http.StatusForbidden,
		ErrorType: lfs.ErrorTypeForbidden,
		Message:   "use force flag to delete lock owned by another user",
	}
)

// Manager serves lock requests for authenticated callers
type Manager struct {
	store    lockstore.LockStore
	now      func() time.Time
	newID    func() string
	observer *metrics.Observer
}

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the clock used for locked_at
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithIDGenerator overrides lock id generation
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) {
		m.newID = newID
	}
}

// WithObserver records lock operation outcomes
func WithObserver(o *metrics.Observer) Option {
	return func(m *Manager) {
		m.observer = o
	}
}

// NewManager creates a Manager backed by store
func NewManager(store lockstore.LockStore, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func conflict(lock *lfs.Lock) *lfs.HTTPError {
	return &lfs.HTTPError{
		Status:    http.StatusConflict,
		ErrorType: lfs.ErrorTypeConflict,
		Message:   "already created lock",
		Lock:      lock,
	}
}

// record reports the outcome of op with the status the API will answer with
func (m *Manager) record(op string, okStatus int, err error) {
	status := okStatus
	if err != nil {
		status = http.StatusInternalServerError
		var httpErr *lfs.HTTPError
		if errors.As(err, &httpErr) {
			status = httpErr.Status
		}
	}
	m.observer.RecordLockOperation(op, status)
}

// List returns the lock with the given id, else the lock on path, else all locks
func (m *Manager) List(ctx context.Context, username, id, path string) (_ *lfs.LockList, err error) {
	defer func() { m.record(OpList, http.StatusOK, err) }()
	if username == "" {
		return nil, lfs.ErrMissingUsername
	}

	list := &lfs.LockList{Locks: []lfs.Lock{}}
	var rec lockstore.Record
	switch {
	case id != "":
		rec, err = m.store.GetByID(ctx, id)
	case path != "":
		rec, err = m.store.GetByPath(ctx, path)
	default:
		for rec, err := range m.store.Scan(ctx) {
			if err != nil {
				return nil, err
			}
			list.Locks = append(list.Locks, rec.Lock())
		}
		return list, nil
	}

	if errors.Is(err, lockstore.ErrNotFound) {
		return list, nil
	}
	if err != nil {
		return nil, err
	}
	list.Locks = append(list.Locks, rec.Lock())
	return list, nil
}

// Verify partitions all locks into those owned by username and the rest
func (m *Manager) Verify(ctx context.Context, username string) (_ *lfs.VerifyList, err error) {
	defer func() { m.record(OpVerify, http.StatusOK, err) }()
	if username == "" {
		return nil, lfs.ErrMissingUsername
	}

	list := &lfs.VerifyList{Ours: []lfs.Lock{}, Theirs: []lfs.Lock{}}
	for rec, err := range m.store.Scan(ctx) {
		if err != nil {
			return nil, err
		}
		if rec.OwnerName == username {
			list.Ours = append(list.Ours, rec.Lock())
		} else {
			list.Theirs = append(list.Theirs, rec.Lock())
		}
	}
	return list, nil
}

// Create locks req.Path for username. If the path is already locked the
// returned error is a 409 carrying the current lock.
func (m *Manager) Create(ctx context.Context, username string, req lfs.CreateLockRequest) (_ *lfs.LockResponse, err error) {
	defer func() { m.record(OpCreate, http.StatusCreated, err) }()
	if username == "" {
		return nil, lfs.ErrMissingUsername
	}
	if req.Path == "" {
		return nil, ErrMissingPath
	}

	rec := lockstore.Record{
		Path:      req.Path,
		ID:        m.newID(),
		LockedAt:  lfs.ISODateString(m.now()),
		OwnerName: username,
	}
	err = m.store.Create(ctx, rec)
	if errors.Is(err, lockstore.ErrAlreadyExists) {
		existing, getErr := m.store.GetByPath(ctx, req.Path)
		if errors.Is(getErr, lockstore.ErrNotFound) {
			// released between the write and the read
			return nil, conflict(nil)
		}
		if getErr != nil {
			return nil, getErr
		}
		lock := existing.Lock()
		slog.InfoContext(ctx, "Path already locked", "path", req.Path, "owner", existing.OwnerName, "user", username)
		return nil, conflict(&lock)
	}
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Created lock", "id", rec.ID, "path", rec.Path, "user", username)
	lock := rec.Lock()
	return &lfs.LockResponse{Lock: &lock}, nil
}

// Unlock releases the lock with the given id. Only the owner may release a
// lock unless req.Force is set.
func (m *Manager) Unlock(ctx context.Context, username, id string, req lfs.UnlockRequest) (_ *lfs.LockResponse, err error) {
	defer func() { m.record(OpUnlock, http.StatusOK, err) }()
	if username == "" {
		return nil, lfs.ErrMissingUsername
	}

	rec, err := m.store.GetByID(ctx, id)
	if errors.Is(err, lockstore.ErrNotFound) {
		return nil, ErrLockNotFound
	}
	if err != nil {
		return nil, err
	}

	if rec.OwnerName != username && !req.Force {
		return nil, ErrNotOwner
	}

	if err := m.store.DeleteByPath(ctx, rec.Path); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Released lock", "id", rec.ID, "path", rec.Path, "user", username, "force", req.Force)
	lock := rec.Lock()
	return &lfs.LockResponse{Lock: &lock}, nil
}
