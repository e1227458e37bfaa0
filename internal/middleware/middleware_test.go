package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"dvmap-service/internal/metrics"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r)
	}))

	t.Run("client id is kept", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if seen != "abc-123" || rec.Header().Get("X-Request-ID") != "abc-123" {
			t.Errorf("seen %q, header %q", seen, rec.Header().Get("X-Request-ID"))
		}
	})

	t.Run("oversized id is replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", strings.Repeat("x", 200))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if len(seen) != 36 || rec.Header().Get("X-Request-ID") != seen {
			t.Errorf("generated id %q", seen)
		}
	})
}

func TestLimitBytes(t *testing.T) {
	var readErr error
	h := LimitBytes(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	t.Run("declared length over the limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("streamed body over the limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(strings.NewReader("0123456789")))
		req.ContentLength = -1
		h.ServeHTTP(httptest.NewRecorder(), req)
		var mbe *http.MaxBytesError
		if !errors.As(readErr, &mbe) {
			t.Errorf("want MaxBytesError, got %v", readErr)
		}
	})

	t.Run("small body passes", func(t *testing.T) {
		readErr = nil
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("ok")))
		if readErr != nil {
			t.Errorf("read: %v", readErr)
		}
	})
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	t.Run("listed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/schema", nil)
		req.Header.Set("Origin", "http://lab.local")
		rec := httptest.NewRecorder()
		CORS([]string{"http://lab.local"})(next).ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://lab.local" {
			t.Errorf("allow-origin = %q", got)
		}
		if rec.Code != http.StatusTeapot {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("unlisted origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/schema", nil)
		req.Header.Set("Origin", "http://evil.local")
		rec := httptest.NewRecorder()
		CORS([]string{"http://lab.local"})(next).ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("allow-origin = %q", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		CORS([]string{"*"})(next).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/convert", nil))
		if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("preflight: %d %v", rec.Code, rec.Header())
		}
	})
}

func TestRecover(t *testing.T) {
	var logs bytes.Buffer
	h := Recover(zerolog.New(&logs))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError || rec.Body.String() != `{"error":"internal"}` {
		t.Errorf("response: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(logs.String(), "boom") {
		t.Errorf("panic not logged: %s", logs.String())
	}
}

func TestLoggingAndMetrics(t *testing.T) {
	var logs bytes.Buffer
	m := metrics.New()

	r := chi.NewRouter()
	r.Use(RequestID(), Logging(zerolog.New(&logs)), Metrics(m))
	r.Get("/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("{}"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/42", nil))

	line := logs.String()
	for _, want := range []string{`"status":404`, `"path":"/runs/42"`, `"level":"warn"`, `"rid":`} {
		if !strings.Contains(line, want) {
			t.Errorf("log line lacks %s: %s", want, line)
		}
	}

	scrape := httptest.NewRecorder()
	m.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	want := `dvmap_http_requests_total{method="GET",route="/runs/{id}",status="404"} 1`
	if !strings.Contains(scrape.Body.String(), want) {
		t.Errorf("metrics lack %s", want)
	}
}
