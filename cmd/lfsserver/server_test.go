package main

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefando/lfsS3/internal/auth"
	"github.com/stefando/lfsS3/internal/config"
	"github.com/stefando/lfsS3/internal/lockstore"
	"github.com/stefando/lfsS3/internal/objectstore"
)

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "https://minio:9000", endpointURL("minio:9000", true))
	assert.Equal(t, "http://minio:9000", endpointURL("minio:9000", false))
	assert.Equal(t, "http://localstack:4566", endpointURL("http://localstack:4566", true))
}

func TestServeFlagsBindToConfig(t *testing.T) {
	v := config.NewViper()
	cmd := newServeCommand(v)
	require.NoError(t, cmd.Flags().Parse([]string{"--bucket", "objects", "--users", "alice:pw", "--s3-use-ssl=false"}))

	cfg := config.FromViper(v)
	assert.Equal(t, "objects", cfg.BucketName)
	assert.Equal(t, "alice:pw", cfg.Users)
	assert.False(t, cfg.S3UseSSL)
	assert.Equal(t, "lfs-locks.db", cfg.LockDB)
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestHandlerServesAPIAndMetrics(t *testing.T) {
	objects := objectstore.NewMemoryStore("objects")
	b := &backend{objects: objects, buckets: objects, locks: lockstore.NewMemoryStore()}
	cfg := &config.Config{CompletionSuffix: ".completedmultipartupload", WebhookToken: "secret"}
	authenticate := auth.Middleware(auth.NewAuthenticator(auth.StaticUsers{"alice": "pw"}, nil))

	handler, err := newHandler(b, authenticate, cfg, prometheus.NewRegistry())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/locks", strings.NewReader(`{"path":"/a.bin"}`))
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("alice:pw")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `lfs_lock_operations_total{operation="create",status="201"} 1`)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events/s3", strings.NewReader(`{"Records":[]}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
