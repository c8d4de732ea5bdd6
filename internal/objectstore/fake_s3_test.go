package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefando/lfsS3/internal/lfs"
)

const testBucket = "lfs-bucket"

const initiateMultipartUploadResult = `<?xml version="1.0" encoding="UTF-8"?>
<InitiateMultipartUploadResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Bucket>lfs-bucket</Bucket><Key>%s</Key><UploadId>upload-1</UploadId>
</InitiateMultipartUploadResult>`

const completeMultipartUploadResult = `<?xml version="1.0" encoding="UTF-8"?>
<CompleteMultipartUploadResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Location>http://s3.test/lfs-bucket/%[1]s</Location><Bucket>lfs-bucket</Bucket><Key>%[1]s</Key><ETag>"assembled-2"</ETag>
</CompleteMultipartUploadResult>`

const noSuchKeyError = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>%s</Key><RequestId>req</RequestId></Error>`

// fakeS3 is a path-style S3 endpoint holding one bucket. The key "denied"
// always answers 403.
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string][]byte
	completed map[string]string // key -> uploadId and request body
}

func newFakeS3(t *testing.T, objects map[string][]byte) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{objects: objects, completed: make(map[string]string)}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket != testBucket {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	query := r.URL.Query()
	switch {
	case key == "denied":
		w.WriteHeader(http.StatusForbidden)

	case r.Method == http.MethodHead || r.Method == http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, noSuchKeyError, key)
			return
		}
		w.Header().Set("ETag", `"etag-`+key+`"`)
		w.Header().Set("Last-Modified", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Format(http.TimeFormat))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(body)
		}

	case r.Method == http.MethodPost && query.Has("uploads"):
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, initiateMultipartUploadResult, key)

	case r.Method == http.MethodPost && query.Get("uploadId") != "":
		body, _ := io.ReadAll(r.Body)
		f.completed[key] = query.Get("uploadId") + " " + string(body)
		f.objects[key] = []byte("assembled")
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, completeMultipartUploadResult, key)

	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (f *fakeS3) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func (f *fakeS3) completion(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed[key]
}

// checkStoreAgainstFake drives every ObjectStore call through an adapter
// pointed at a fakeS3
func checkStoreAgainstFake(t *testing.T, store ObjectStore, fake *fakeS3) {
	t.Helper()
	ctx := context.Background()

	t.Run("head", func(t *testing.T) {
		exists, err := Exists(ctx, store, "present")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = Exists(ctx, store, "missing")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = Exists(ctx, store, "denied")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
		var storeErr *Error
		require.ErrorAs(t, err, &storeErr)
		assert.Equal(t, "HeadObject", storeErr.Op)
	})

	t.Run("presign", func(t *testing.T) {
		href, err := store.PresignGetObject(ctx, "present", lfs.URLExpiry)
		require.NoError(t, err)
		u, err := url.Parse(href)
		require.NoError(t, err)
		assert.Equal(t, "/"+testBucket+"/present", u.Path)
		assert.Equal(t, "21600", u.Query().Get("X-Amz-Expires"))

		href, err = store.PresignPutObject(ctx, "new", lfs.OctetStream, lfs.URLExpiry)
		require.NoError(t, err)
		q := presignedQuery(t, href)
		assert.Equal(t, "21600", q.Get("X-Amz-Expires"))
		assert.Contains(t, q.Get("X-Amz-SignedHeaders"), "content-type")

		href, err = store.PresignUploadPart(ctx, "big", "upload-1", 3, lfs.URLExpiry)
		require.NoError(t, err)
		q = presignedQuery(t, href)
		assert.Equal(t, "3", q.Get("partNumber"))
		assert.Equal(t, "upload-1", q.Get("uploadId"))
		assert.Equal(t, "21600", q.Get("X-Amz-Expires"))
	})

	t.Run("multipart", func(t *testing.T) {
		uploadID, err := store.CreateMultipartUpload(ctx, "big", lfs.OctetStream)
		require.NoError(t, err)
		assert.Equal(t, "upload-1", uploadID)

		err = store.CompleteMultipartUpload(ctx, "big", uploadID, lfs.CompletedMultipartUpload{Parts: []lfs.CompletedPart{
			{ETag: `"e1"`, PartNumber: 1},
			{ETag: `"e2"`, PartNumber: 2},
		}})
		require.NoError(t, err)
		completion := fake.completion("big")
		assert.True(t, strings.HasPrefix(completion, "upload-1 "), completion)
		assert.Contains(t, completion, "<PartNumber>1</PartNumber>")
		assert.Contains(t, completion, "<PartNumber>2</PartNumber>")
		assert.True(t, fake.has("big"))
	})

	t.Run("get and delete", func(t *testing.T) {
		body, err := store.GetObject(ctx, "sentinel")
		require.NoError(t, err)
		assert.Equal(t, `{"UploadId":"upload-1"}`, string(body))

		require.NoError(t, store.DeleteObject(ctx, "sentinel"))
		assert.False(t, fake.has("sentinel"))

		_, err = store.GetObject(ctx, "sentinel")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func fakeObjects() map[string][]byte {
	return map[string][]byte{
		"present":  []byte("hello"),
		"sentinel": []byte(`{"UploadId":"upload-1"}`),
	}
}
