package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreenshotKey(t *testing.T) {
	id := uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	assert.Equal(t, "screenshots/acme/7c9e6679-7425-40de-944b-e07fc1f90ae7/20260304T050607Z.jpg", ScreenshotKey("acme", id, at))
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()
	data := []byte{1, 2, 3}
	key, err := m.Put(context.Background(), "a/b.jpg", "image/jpeg", data)
	require.NoError(t, err)
	assert.Equal(t, "a/b.jpg", key)

	data[0] = 9
	obj, err := m.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, obj.Data)
	assert.Equal(t, "image/jpeg", obj.ContentType)
	assert.Equal(t, []string{"a/b.jpg"}, m.Keys())

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Put(context.Background(), "", "image/jpeg", data)
	assert.Error(t, err)
}

func TestNewS3StoreRequiresSettings(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{Bucket: "b", AccessKey: "a", SecretKey: "s"})
	assert.ErrorContains(t, err, "endpoint")
	_, err = NewS3Store(context.Background(), S3Config{Endpoint: "localhost:1", AccessKey: "a", SecretKey: "s"})
	assert.ErrorContains(t, err, "bucket")
	_, err = NewS3Store(context.Background(), S3Config{Endpoint: "localhost:1", Bucket: "b"})
	assert.ErrorContains(t, err, "access key")
}

func TestS3StorePutUsesPathStyleWithChecksum(t *testing.T) {
	var (
		mu       sync.Mutex
		method   string
		path     string
		metaHash string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		method, path, metaHash = r.Method, r.URL.Path, r.Header.Get("X-Amz-Meta-Sha256")
		mu.Unlock()
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := NewS3Store(context.Background(), S3Config{
		Endpoint:       strings.TrimPrefix(srv.URL, "http://"),
		Bucket:         "run-artifacts",
		AccessKey:      "key",
		SecretKey:      "secret",
		DisableTLS:     true,
		ForcePathStyle: true,
	})
	require.NoError(t, err)

	data := []byte("jpeg bytes")
	key, err := store.Put(context.Background(), "screenshots/acme/run.jpg", "image/jpeg", data)
	require.NoError(t, err)
	assert.Equal(t, "screenshots/acme/run.jpg", key)

	sum := sha256.Sum256(data)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/run-artifacts/screenshots/acme/run.jpg", path)
	assert.Equal(t, hex.EncodeToString(sum[:]), metaHash)
}

func TestS3StorePutReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<?xml version="1.0"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`))
	}))
	defer srv.Close()

	store, err := NewS3Store(context.Background(), S3Config{
		Endpoint: srv.URL, Bucket: "b", AccessKey: "k", SecretKey: "s", ForcePathStyle: true,
	})
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "k.jpg", "image/jpeg", []byte("x"))
	assert.ErrorContains(t, err, "put s3://b/k.jpg")
}

func TestNewS3StoreHonoursCABundle(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bundle := filepath.Join(t.TempDir(), "ca.pem")
	block := &pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw}
	require.NoError(t, os.WriteFile(bundle, pem.EncodeToMemory(block), 0o600))
	t.Setenv("AWS_CA_BUNDLE", bundle)

	store, err := NewS3Store(context.Background(), S3Config{
		Endpoint:       srv.URL,
		Bucket:         "run-artifacts",
		AccessKey:      "key",
		SecretKey:      "secret",
		ForcePathStyle: true,
	})
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "screenshots/a.jpg", "image/jpeg", []byte{0xff, 0xd8})
	assert.NoError(t, err)
}
