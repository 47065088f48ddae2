package log

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(component string) (*Logger, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	return New(Config{
		Handler:   slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		Component: component,
	}), buf
}

func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		out = append(out, rec)
	}
	return out
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, slog.LevelInfo, cfg.Level)
	assert.Equal(t, ComponentApp, cfg.Component)
	assert.NotNil(t, cfg.Output)
}

func TestWithComponentReplacesComponent(t *testing.T) {
	logger, buf := newBufferLogger(ComponentApp)

	worker := logger.With("extra", "x").WithComponent(ComponentWorker)
	assert.Equal(t, ComponentWorker, worker.Component())
	worker.Info("tick")

	recs := records(t, buf)
	require.Len(t, recs, 1)
	assert.Equal(t, ComponentWorker, recs[0][FieldComponent])
	assert.NotContains(t, recs[0], "extra")
}

func TestCtxAddsRequestID(t *testing.T) {
	logger, buf := newBufferLogger(ComponentAuth)

	ctx := context.WithValue(context.Background(), RequestIDContextKey, "abc")
	logger.Ctx(ctx).Info("with id")
	logger.Ctx(context.Background()).Info("without id")
	logger.Err(ctx, OpCreate, assert.AnError)

	recs := records(t, buf)
	require.Len(t, recs, 3)
	assert.Equal(t, "abc", recs[0][FieldRequestID])
	assert.NotContains(t, recs[1], FieldRequestID)
	assert.Equal(t, "ERROR", recs[2]["level"])
	assert.Equal(t, OpCreate, recs[2][FieldOperation])
	assert.Equal(t, assert.AnError.Error(), recs[2][FieldError])
}

func TestFromContextFallsBack(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)
	assert.Equal(t, "unknown", logger.Component())

	own, _ := newBufferLogger(ComponentHTTP)
	assert.Same(t, own, FromContext(NewContext(context.Background(), own)))
}

func TestMiddleware(t *testing.T) {
	logger, buf := newBufferLogger(ComponentHTTP)

	var seenID string
	var seenLogger *Logger
	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = RequestID(r.Context())
		seenLogger = FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", http.NoBody)
	req.RemoteAddr = "10.0.0.7:5555"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	id := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err, "generated request id should be a uuid")
	assert.Equal(t, id, seenID)
	assert.Equal(t, ComponentHTTP, seenLogger.Component())

	recs := records(t, buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "request completed", recs[0]["msg"])
	assert.Equal(t, id, recs[0][FieldRequestID])
	assert.EqualValues(t, http.StatusTeapot, recs[0][FieldStatusCode])
	assert.Equal(t, "10.0.0.7", recs[0][FieldClientIP])
	assert.Equal(t, "/api/me", recs[0][FieldPath])
}

func TestMiddlewareRequestIDHeader(t *testing.T) {
	logger, buf := newBufferLogger(ComponentHTTP)
	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	given := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set(RequestIDHeader, given)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, given, w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set(RequestIDHeader, "not a uuid\r\n")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.NotEqual(t, "not a uuid\r\n", w.Header().Get(RequestIDHeader))

	recs := records(t, buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "ERROR", recs[0]["level"])
}
