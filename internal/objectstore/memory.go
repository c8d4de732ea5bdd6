package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/stefando/lfsS3/internal/lfs"
)

// ErrNoSuchUpload is returned by MemoryStore when completing an unknown upload
var ErrNoSuchUpload = errors.New("no such upload")

type memoryUpload struct {
	bucket      string
	key         string
	contentType string
}

type memoryBackend struct {
	mu       sync.RWMutex
	objects  map[string]map[string][]byte
	uploads  map[string]memoryUpload
	failures map[string]error
	nextID   int
}

// MemoryStore is an in-process ObjectStore with deterministic presigning.
// URLs have the form https://<bucket>.s3.memory.local/<key>?<params>.
type MemoryStore struct {
	backend *memoryBackend
	bucket  string
}

// NewMemoryStore creates an empty store bound to bucket
func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{
		backend: &memoryBackend{
			objects:  make(map[string]map[string][]byte),
			uploads:  make(map[string]memoryUpload),
			failures: make(map[string]error),
		},
		bucket: bucket,
	}
}

// Bucket returns a view of the same backend bound to name
func (m *MemoryStore) Bucket(name string) ObjectStore {
	return &MemoryStore{backend: m.backend, bucket: name}
}

// Put stores data under key in this store's bucket
func (m *MemoryStore) Put(key string, data []byte) {
	m.backend.mu.Lock()
	defer m.backend.mu.Unlock()
	bucket, ok := m.backend.objects[m.bucket]
	if !ok {
		bucket = make(map[string][]byte)
		m.backend.objects[m.bucket] = bucket
	}
	bucket[key] = data
}

// Has reports whether key exists in this store's bucket
func (m *MemoryStore) Has(key string) bool {
	m.backend.mu.RLock()
	defer m.backend.mu.RUnlock()
	_, ok := m.backend.objects[m.bucket][key]
	return ok
}

// PendingUploads returns the number of multipart uploads not yet completed
func (m *MemoryStore) PendingUploads() int {
	m.backend.mu.RLock()
	defer m.backend.mu.RUnlock()
	return len(m.backend.uploads)
}

// FailOn makes every subsequent call of op (e.g. "HeadObject") return err.
// A nil err clears the failure.
func (m *MemoryStore) FailOn(op string, err error) {
	m.backend.mu.Lock()
	defer m.backend.mu.Unlock()
	if err == nil {
		delete(m.backend.failures, op)
		return
	}
	m.backend.failures[op] = err
}

func (m *MemoryStore) failure(op, key string) error {
	m.backend.mu.RLock()
	defer m.backend.mu.RUnlock()
	if err, ok := m.backend.failures[op]; ok {
		return &Error{Op: op, Key: key, Err: err}
	}
	return nil
}

func (m *MemoryStore) url(key string, params url.Values) string {
	return fmt.Sprintf("https://%s.s3.memory.local/%s?%s", m.bucket, key, params.Encode())
}

func (m *MemoryStore) HeadObject(_ context.Context, key string) error {
	if err := m.failure("HeadObject", key); err != nil {
		return err
	}
	if !m.Has(key) {
		return &Error{Op: "HeadObject", Key: key, Err: ErrNotFound}
	}
	return nil
}

func (m *MemoryStore) PresignGetObject(_ context.Context, key string, expires time.Duration) (string, error) {
	if err := m.failure("PresignGetObject", key); err != nil {
		return "", err
	}
	return m.url(key, url.Values{
		"X-Method":  {"GET"},
		"X-Expires": {strconv.Itoa(int(expires / time.Second))},
	}), nil
}

func (m *MemoryStore) PresignPutObject(_ context.Context, key, contentType string, expires time.Duration) (string, error) {
	if err := m.failure("PresignPutObject", key); err != nil {
		return "", err
	}
	return m.url(key, url.Values{
		"X-Method":       {"PUT"},
		"X-Content-Type": {contentType},
		"X-Expires":      {strconv.Itoa(int(expires / time.Second))},
	}), nil
}

func (m *MemoryStore) CreateMultipartUpload(_ context.Context, key, contentType string) (string, error) {
	if err := m.failure("CreateMultipartUpload", key); err != nil {
		return "", err
	}
	m.backend.mu.Lock()
	defer m.backend.mu.Unlock()
	m.backend.nextID++
	uploadID := fmt.Sprintf("upload-%d", m.backend.nextID)
	m.backend.uploads[uploadID] = memoryUpload{bucket: m.bucket, key: key, contentType: contentType}
	return uploadID, nil
}

func (m *MemoryStore) PresignUploadPart(_ context.Context, key, uploadID string, partNumber int32, expires time.Duration) (string, error) {
	if err := m.failure("PresignUploadPart", key); err != nil {
		return "", err
	}
	return m.url(key, url.Values{
		"X-Method":   {"PUT"},
		"X-Expires":  {strconv.Itoa(int(expires / time.Second))},
		"partNumber": {strconv.Itoa(int(partNumber))},
		"uploadId":   {uploadID},
	}), nil
}

// CompleteMultipartUpload materialises the object as an empty payload; part
// bodies never pass through the store in tests.
func (m *MemoryStore) CompleteMultipartUpload(_ context.Context, key, uploadID string, upload lfs.CompletedMultipartUpload) error {
	if err := m.failure("CompleteMultipartUpload", key); err != nil {
		return err
	}
	m.backend.mu.Lock()
	pending, ok := m.backend.uploads[uploadID]
	if !ok || pending.bucket != m.bucket || pending.key != key {
		m.backend.mu.Unlock()
		return &Error{Op: "CompleteMultipartUpload", Key: key, Err: ErrNoSuchUpload}
	}
	if len(upload.Parts) == 0 {
		m.backend.mu.Unlock()
		return &Error{Op: "CompleteMultipartUpload", Key: key, Err: errors.New("no parts specified")}
	}
	delete(m.backend.uploads, uploadID)
	m.backend.mu.Unlock()

	m.Put(key, []byte{})
	return nil
}

func (m *MemoryStore) GetObject(_ context.Context, key string) ([]byte, error) {
	if err := m.failure("GetObject", key); err != nil {
		return nil, err
	}
	m.backend.mu.RLock()
	defer m.backend.mu.RUnlock()
	data, ok := m.backend.objects[m.bucket][key]
	if !ok {
		return nil, &Error{Op: "GetObject", Key: key, Err: ErrNotFound}
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) DeleteObject(_ context.Context, key string) error {
	if err := m.failure("DeleteObject", key); err != nil {
		return err
	}
	m.backend.mu.Lock()
	defer m.backend.mu.Unlock()
	delete(m.backend.objects[m.bucket], key)
	return nil
}
