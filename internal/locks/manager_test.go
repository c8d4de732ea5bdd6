package locks

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefando/lfsS3/internal/lfs"
	"github.com/stefando/lfsS3/internal/lockstore"
	"github.com/stefando/lfsS3/internal/metrics"
)

var fixedNow = time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)

func newTestManager(store lockstore.LockStore, opts ...Option) *Manager {
	seq := 0
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("lock-%d", seq)
		}),
	}, opts...)
	return NewManager(store, opts...)
}

func requireStatus(t *testing.T, err error, status int, message string) *lfs.HTTPError {
	t.Helper()
	var httpErr *lfs.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, status, httpErr.Status)
	assert.Equal(t, message, httpErr.Message)
	return httpErr
}

func TestCreateAndConflict(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(lockstore.NewMemoryStore())

	resp, err := m.Create(ctx, "alice", lfs.CreateLockRequest{Path: "/p"})
	require.NoError(t, err)
	require.NotNil(t, resp.Lock)
	assert.Equal(t, lfs.Lock{
		ID:       "lock-1",
		Path:     "/p",
		LockedAt: "2024-02-03T04:05:06Z",
		Owner:    lfs.LockOwner{Name: "alice"},
	}, *resp.Lock)

	_, err = m.Create(ctx, "bob", lfs.CreateLockRequest{Path: "/p"})
	httpErr := requireStatus(t, err, http.StatusConflict, "already created lock")
	require.NotNil(t, httpErr.Lock)
	assert.Equal(t, *resp.Lock, *httpErr.Lock)

	list, err := m.List(ctx, "bob", "", "/p")
	require.NoError(t, err)
	assert.Equal(t, []lfs.Lock{*resp.Lock}, list.Locks)
}

func TestCreateRequiresPath(t *testing.T) {
	m := newTestManager(lockstore.NewMemoryStore())
	_, err := m.Create(context.Background(), "alice", lfs.CreateLockRequest{})
	requireStatus(t, err, http.StatusBadRequest, "Missing path")
}

func TestMissingUsername(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(lockstore.NewMemoryStore())

	_, err := m.List(ctx, "", "", "")
	requireStatus(t, err, http.StatusBadRequest, "Missing username")
	_, err = m.Verify(ctx, "")
	requireStatus(t, err, http.StatusBadRequest, "Missing username")
	_, err = m.Create(ctx, "", lfs.CreateLockRequest{Path: "/p"})
	requireStatus(t, err, http.StatusBadRequest, "Missing username")
	_, err = m.Unlock(ctx, "", "id", lfs.UnlockRequest{})
	requireStatus(t, err, http.StatusBadRequest, "Missing username")
}

func TestUnlock(t *testing.T) {
	ctx := context.Background()
	store := lockstore.NewMemoryStore()
	m := newTestManager(store)

	created, err := m.Create(ctx, "alice", lfs.CreateLockRequest{Path: "/p"})
	require.NoError(t, err)
	id := created.Lock.ID

	_, err = m.Unlock(ctx, "bob", id, lfs.UnlockRequest{})
	requireStatus(t, err, http.StatusForbidden, "use force flag to delete lock owned by another user")
	_, err = store.GetByPath(ctx, "/p")
	require.NoError(t, err, "lock must survive a rejected unlock")

	resp, err := m.Unlock(ctx, "bob", id, lfs.UnlockRequest{Force: true})
	require.NoError(t, err)
	assert.Equal(t, created.Lock, resp.Lock)

	_, err = store.GetByPath(ctx, "/p")
	require.ErrorIs(t, err, lockstore.ErrNotFound)
}

func TestUnlockByOwner(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(lockstore.NewMemoryStore())

	created, err := m.Create(ctx, "alice", lfs.CreateLockRequest{Path: "/p"})
	require.NoError(t, err)

	_, err = m.Unlock(ctx, "alice", created.Lock.ID, lfs.UnlockRequest{})
	require.NoError(t, err)

	list, err := m.List(ctx, "alice", created.Lock.ID, "")
	require.NoError(t, err)
	assert.Empty(t, list.Locks)
}

func TestUnlockUnknownID(t *testing.T) {
	m := newTestManager(lockstore.NewMemoryStore())
	_, err := m.Unlock(context.Background(), "alice", "unknownid", lfs.UnlockRequest{})
	httpErr := requireStatus(t, err, http.StatusInternalServerError, "lock not found")
	assert.Nil(t, httpErr.Lock)
}

func testRecords() []lockstore.Record {
	return []lockstore.Record{
		{Path: "/a", ID: "id-a", LockedAt: "2024-01-01T00:00:00Z", OwnerName: "alice"},
		{Path: "/b", ID: "id-b", LockedAt: "2024-01-01T00:00:00Z", OwnerName: "bob"},
		{Path: "/c", ID: "id-c", LockedAt: "2024-01-01T00:00:00Z", OwnerName: "alice"},
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(lockstore.NewMemoryStore(testRecords()...))

	all, err := m.List(ctx, "alice", "", "")
	require.NoError(t, err)
	assert.Len(t, all.Locks, 3)

	byID, err := m.List(ctx, "alice", "id-b", "")
	require.NoError(t, err)
	require.Len(t, byID.Locks, 1)
	assert.Equal(t, "/b", byID.Locks[0].Path)

	byPath, err := m.List(ctx, "alice", "", "/c")
	require.NoError(t, err)
	require.Len(t, byPath.Locks, 1)
	assert.Equal(t, "id-c", byPath.Locks[0].ID)

	missing, err := m.List(ctx, "alice", "nope", "")
	require.NoError(t, err)
	assert.NotNil(t, missing.Locks)
	assert.Empty(t, missing.Locks)

	// id wins over path
	both, err := m.List(ctx, "alice", "id-a", "/b")
	require.NoError(t, err)
	require.Len(t, both.Locks, 1)
	assert.Equal(t, "/a", both.Locks[0].Path)
}

func TestVerifyPartitionsLocks(t *testing.T) {
	m := newTestManager(lockstore.NewMemoryStore(testRecords()...))

	list, err := m.Verify(context.Background(), "alice")
	require.NoError(t, err)

	var ours, theirs []string
	for _, l := range list.Ours {
		assert.Equal(t, "alice", l.Owner.Name)
		ours = append(ours, l.ID)
	}
	for _, l := range list.Theirs {
		assert.NotEqual(t, "alice", l.Owner.Name)
		theirs = append(theirs, l.ID)
	}
	assert.ElementsMatch(t, []string{"id-a", "id-c"}, ours)
	assert.ElementsMatch(t, []string{"id-b"}, theirs)

	empty, err := newTestManager(lockstore.NewMemoryStore()).Verify(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotNil(t, empty.Ours)
	assert.NotNil(t, empty.Theirs)
}

// failingStore fails every call with err
type failingStore struct {
	err error
}

func (s failingStore) GetByPath(context.Context, string) (lockstore.Record, error) {
	return lockstore.Record{}, s.err
}

func (s failingStore) GetByID(context.Context, string) (lockstore.Record, error) {
	return lockstore.Record{}, s.err
}

func (s failingStore) Scan(context.Context) iter.Seq2[lockstore.Record, error] {
	return func(yield func(lockstore.Record, error) bool) {
		yield(lockstore.Record{}, s.err)
	}
}

func (s failingStore) Create(context.Context, lockstore.Record) error { return s.err }

func (s failingStore) DeleteByPath(context.Context, string) error { return s.err }

func TestUpstreamErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("throttled")
	m := newTestManager(failingStore{err: boom})

	_, err := m.List(ctx, "alice", "", "")
	require.ErrorIs(t, err, boom)
	_, err = m.List(ctx, "alice", "id", "")
	require.ErrorIs(t, err, boom)
	_, err = m.Verify(ctx, "alice")
	require.ErrorIs(t, err, boom)
	_, err = m.Create(ctx, "alice", lfs.CreateLockRequest{Path: "/p"})
	require.ErrorIs(t, err, boom)
	_, err = m.Unlock(ctx, "alice", "id", lfs.UnlockRequest{})
	require.ErrorIs(t, err, boom)
}

func TestRecordsLockMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	observer, err := metrics.New("test", reg)
	require.NoError(t, err)
	m := newTestManager(lockstore.NewMemoryStore(), WithObserver(observer))

	_, err = m.Create(ctx, "alice", lfs.CreateLockRequest{Path: "/p"})
	require.NoError(t, err)
	_, err = m.Create(ctx, "bob", lfs.CreateLockRequest{Path: "/p"})
	require.Error(t, err)

	count, err := testutil.GatherAndCount(reg, "test_lock_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series each for 201 and 409")
}
