package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestRequests(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  string
	}{
		{"success", http.StatusOK, "info"},
		{"client error", http.StatusNotFound, "info"},
		{"server error", http.StatusBadGateway, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf)

			handler := Requests(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				log.Ctx(r.Context()).Debug().Msg("inside handler")
				w.WriteHeader(tt.status)
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/2/footprints", nil))
			require.Equal(t, tt.status, rec.Code)

			lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
			var entry map[string]any
			require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
			require.Equal(t, tt.level, entry["level"])
			require.Equal(t, "GET", entry["method"])
			require.Equal(t, "/2/footprints", entry["path"])
			require.EqualValues(t, tt.status, entry["status"])
		})
	}
}

func TestRequestsDefaultsStatus(t *testing.T) {
	var buf bytes.Buffer
	handler := Requests(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.EqualValues(t, http.StatusOK, entry["status"])
}
