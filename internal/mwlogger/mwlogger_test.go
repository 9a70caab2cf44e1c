package mwlogger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	return entry
}

func TestLoggerFromContext_FallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	prev := zlog.Logger
	zlog.Logger = zerolog.New(&buf)
	t.Cleanup(func() { zlog.Logger = prev })

	l := LoggerFromContext(context.Background())
	l.Info().Msg("hello")

	require.Equal(t, "hello", decodeLine(t, &buf)["message"])
}

func TestWithSession(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), zerolog.New(&buf).With().Str("request_id", "r-1").Logger())
	ctx = WithSession(ctx, "s-1")

	l := LoggerFromContext(ctx)
	l.Info().Msg("render")

	entry := decodeLine(t, &buf)
	require.Equal(t, "r-1", entry["request_id"])
	require.Equal(t, "s-1", entry["session_id"])
}

func TestNewMWLogger(t *testing.T) {
	tests := []struct {
		name      string
		requestID string
	}{
		{name: "request id passed through", requestID: "abc-123"},
		{name: "request id generated", requestID: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			prev := zlog.Logger
			zlog.Logger = zerolog.New(&buf)
			t.Cleanup(func() { zlog.Logger = prev })

			h := NewMWLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				l := LoggerFromContext(r.Context())
				l.Info().Msg("inside")
				w.WriteHeader(http.StatusNoContent)
			}))

			req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
			if tt.requestID != "" {
				req.Header.Set(RequestIDHeader, tt.requestID)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			require.Equal(t, http.StatusNoContent, w.Code)
			gotID := w.Header().Get(RequestIDHeader)
			require.NotEmpty(t, gotID)
			if tt.requestID != "" {
				require.Equal(t, tt.requestID, gotID)
			}

			entry := decodeLine(t, &buf)
			require.Equal(t, gotID, entry["request_id"])
			require.Equal(t, "GET", entry["method"])
			require.Equal(t, "/sessions", entry["path"])
		})
	}
}
