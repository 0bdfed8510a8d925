package gcs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/angelmondragon/ltv-backend/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type fakeGCS struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string]string
}

func newFakeGCS(buckets ...string) *fakeGCS {
	f := &fakeGCS{buckets: map[string]bool{}, objects: map[string]string{}}
	for _, b := range buckets {
		f.buckets[b] = true
	}
	return f
}

func (f *fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/storage/v1/b/"):
		name := strings.TrimPrefix(r.URL.Path, "/storage/v1/b/")
		if !f.buckets[name] {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"code":404,"message":"Not Found"}}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"name": name})
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/upload/storage/v1/b/"):
		bucket := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/upload/storage/v1/b/"), "/o")
		body, _ := io.ReadAll(r.Body)
		name := r.URL.Query().Get("name")
		if name == "" {
			name = objectNameFromMultipart(string(body))
		}
		f.objects[bucket+"/"+name] = string(body)
		_ = json.NewEncoder(w).Encode(map[string]any{"name": name, "bucket": bucket, "generation": "1"})
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

// objectNameFromMultipart pulls the name out of the JSON metadata part.
func objectNameFromMultipart(body string) string {
	idx := strings.Index(body, `"name":"`)
	if idx < 0 {
		return ""
	}
	rest := body[idx+len(`"name":"`):]
	return rest[:strings.Index(rest, `"`)]
}

func (f *fakeGCS) object(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.objects[key]
	return v, ok
}

func newTestClient(t *testing.T, fake *fakeGCS, cfg config.GCSConfig) (*Client, error) {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewClient(context.Background(), cfg, config.GCPConfig{}, nil,
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
}

func TestNewClientRequiresBucket(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCSConfig{}, config.GCPConfig{}, nil)
	require.ErrorIs(t, err, errBucketRequired)
}

func TestNewClientChecksBucket(t *testing.T) {
	_, err := newTestClient(t, newFakeGCS("other"), config.GCSConfig{Bucket: "archive"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `bucket "archive" does not exist`)
}

func TestUploadWritesObject(t *testing.T) {
	fake := newFakeGCS("archive")
	client, err := newTestClient(t, fake, config.GCSConfig{Bucket: "archive", ArchivePrefix: "/snapshots/"})
	require.NoError(t, err)

	name := client.ObjectName("latest.csv")
	assert.Equal(t, "snapshots/latest.csv", name)

	err = client.Upload(context.Background(), name, "text/csv", strings.NewReader("date,country\n2023-03-01,Paraguay\n"))
	require.NoError(t, err)

	body, ok := fake.object("archive/snapshots/latest.csv")
	require.True(t, ok, "object not stored")
	assert.Contains(t, body, "2023-03-01,Paraguay")
}

func TestUploadRejectsEmptyName(t *testing.T) {
	client, err := newTestClient(t, newFakeGCS("archive"), config.GCSConfig{Bucket: "archive"})
	require.NoError(t, err)
	require.ErrorIs(t, client.Upload(context.Background(), " ", "text/csv", strings.NewReader("x")), errObjectNameMissing)
	assert.Equal(t, "x.csv", client.ObjectName("x.csv"))
}

func TestNilClient(t *testing.T) {
	var client *Client
	assert.ErrorIs(t, client.Ping(context.Background()), errNotInitialized)
	assert.ErrorIs(t, client.Upload(context.Background(), "a", "text/csv", strings.NewReader("")), errNotInitialized)
	assert.Empty(t, client.Bucket())
}
