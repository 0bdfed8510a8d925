package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/ltv-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

func TestRequestIDKeepsSaneCallerID(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "mw-test", Output: buf})
	handler := RequestID(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logg.Info(r.Context(), "inside")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "edge-42.a")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(requestIDHeader); got != "edge-42.a" {
		t.Fatalf("expected caller id echoed, got %q", got)
	}
	if !strings.Contains(buf.String(), `"request_id":"edge-42.a"`) {
		t.Fatalf("expected request id on log entry, got %s", buf.String())
	}
}

func TestRequestIDReplacesUnsafeCallerID(t *testing.T) {
	handler := RequestID(nil)(passThrough())
	for _, bad := range []string{"", "has space", "<script>", strings.Repeat("x", maxRequestIDLen+1)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, bad)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		got := rec.Header().Get(requestIDHeader)
		if got == bad || len(got) != 36 {
			t.Fatalf("expected fresh uuid for %q, got %q", bad, got)
		}
	}
}

func TestRecovererWritesInternalEnvelope(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("bad facts row")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"INTERNAL_ERROR"`) {
		t.Fatalf("expected internal error code, got %s", rec.Body.String())
	}
}

func TestLoggingRecordsStatusAndBytes(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "mw-test", Output: buf})
	handler := Logging(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("down"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	out := buf.String()
	for _, want := range []string{`"status":503`, `"bytes":4`, `"path":"/health/ready"`, `"level":"warn"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestLoggingRecordsRoutePattern(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "mw-test", Output: buf})
	r := chi.NewRouter()
	r.Use(Logging(logg))
	r.Get("/api/v1/pipeline/runs/{runId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/pipeline/runs/abc", nil))

	if !strings.Contains(buf.String(), `"route":"/api/v1/pipeline/runs/{runId}"`) {
		t.Fatalf("expected route pattern in %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"status":204`) {
		t.Fatalf("expected status 204 in %s", buf.String())
	}
}
