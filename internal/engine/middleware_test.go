package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracingMiddleware(t *testing.T) {
	var seen string
	h := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, "trace-1")
	h.ServeHTTP(rec, req)
	assert.Equal(t, "trace-1", seen)
	assert.Equal(t, "trace-1", rec.Header().Get(TraceHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "trace-1", seen)
	assert.Equal(t, seen, rec.Header().Get(TraceHeader))
}

func TestTraceIDFallback(t *testing.T) {
	assert.Equal(t, "00000000-0000-0000-0000-000000000000", TraceID(context.Background()))
}

func TestParseSignal(t *testing.T) {
	id, flag, ok := parseSignal("session:abc:true")
	assert.True(t, ok)
	assert.Equal(t, "session:abc", id)
	assert.True(t, flag)

	_, flag, ok = parseSignal("abc:off")
	assert.True(t, ok)
	assert.False(t, flag)

	_, _, ok = parseSignal("garbage")
	assert.False(t, ok)
	_, _, ok = parseSignal("abc:")
	assert.False(t, ok)
}
