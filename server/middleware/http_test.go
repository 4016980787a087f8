package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/tablemut/logger"
	"github.com/kbukum/tablemut/server/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	e := gin.New()
	e.Use(mw...)
	return e
}

func serve(e *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	return rr
}

// ---------------------------------------------------------------------------
// Recovery
// ---------------------------------------------------------------------------

func TestRecovery_NoPanic(t *testing.T) {
	e := newEngine(middleware.Recovery(logger.Nop()))
	e.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	rr := serve(e, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRecovery_Panic(t *testing.T) {
	var buf bytes.Buffer
	e := newEngine(middleware.Recovery(logger.NewWithWriter(&buf, "error")))
	e.GET("/test", func(*gin.Context) { panic("test panic") })

	rr := serve(e, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body.Error.Code != "INTERNAL_ERROR" {
		t.Fatalf("unexpected error code: %s", body.Error.Code)
	}
	if !strings.Contains(buf.String(), "test panic") {
		t.Errorf("panic not logged: %s", buf.String())
	}
}

// ---------------------------------------------------------------------------
// RequestID
// ---------------------------------------------------------------------------

func TestRequestID_GeneratesID(t *testing.T) {
	var seen string
	e := newEngine(middleware.RequestID())
	e.GET("/", func(c *gin.Context) {
		seen = middleware.GetRequestID(c)
		if c.Request.Header.Get(middleware.HeaderRequestID) == "" {
			t.Error("expected X-Request-Id in request headers")
		}
		c.Status(http.StatusOK)
	})

	rr := serve(e, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	got := rr.Header().Get(middleware.HeaderRequestID)
	if got == "" {
		t.Fatal("expected X-Request-Id in response headers")
	}
	if got != seen {
		t.Errorf("handler saw %q, response has %q", seen, got)
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := newEngine(middleware.RequestID())
	e.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set(middleware.HeaderRequestID, "my-id-123")
	rr := serve(e, req)

	if got := rr.Header().Get(middleware.HeaderRequestID); got != "my-id-123" {
		t.Fatalf("expected my-id-123, got %q", got)
	}
}

// ---------------------------------------------------------------------------
// BodySizeLimit
// ---------------------------------------------------------------------------

func TestBodySizeLimit(t *testing.T) {
	e := newEngine(middleware.BodySizeLimit(4))
	e.POST("/", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	tests := []struct {
		body string
		want int
	}{
		{"abcd", http.StatusOK},
		{"abcde", http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		rr := serve(e, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)))
		if rr.Code != tt.want {
			t.Errorf("body %q: expected %d, got %d", tt.body, tt.want, rr.Code)
		}
	}
}

// ---------------------------------------------------------------------------
// RequestLogger
// ---------------------------------------------------------------------------

type recorder struct {
	mu      sync.Mutex
	started int
	routes  []string
	codes   []int
}

func (r *recorder) RecordRequestStart(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *recorder) RecordRequestEnd(_ context.Context, route, _ string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
	r.codes = append(r.codes, status)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	rec := &recorder{}
	e := newEngine(middleware.RequestID(), middleware.RequestLogger(logger.NewWithWriter(&buf, "debug"), rec))
	e.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	e.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(e, httptest.NewRequest(http.MethodGet, "/items/7?x=1", http.NoBody))
	serve(e, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	if rec.started != 1 {
		t.Fatalf("expected 1 recorded request, got %d", rec.started)
	}
	if rec.routes[0] != "/items/:id" || rec.codes[0] != http.StatusNotFound {
		t.Errorf("recorded %v %v", rec.routes, rec.codes)
	}

	var entry map[string]any
	line, _, _ := strings.Cut(buf.String(), "\n")
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["level"] != "warn" || entry["route"] != "/items/:id" || entry["query"] != "x=1" {
		t.Errorf("unexpected log entry: %v", entry)
	}
	if entry[logger.FieldRequestID] == "" || entry[logger.FieldRequestID] == nil {
		t.Errorf("request id missing: %v", entry)
	}
	if strings.Contains(buf.String(), "/health") {
		t.Error("health checks should not be logged")
	}
}

func TestRequestLogger_NilRecorder(t *testing.T) {
	e := newEngine(middleware.RequestLogger(logger.Nop(), nil))
	e.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	if rr := serve(e, httptest.NewRequest(http.MethodGet, "/", http.NoBody)); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
