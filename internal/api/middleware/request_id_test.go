package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqicast/aqicast/internal/api/middleware"
)

// serveWithID runs RequestID with the given inbound header values and returns
// the id seen by the handler and the id echoed to the client.
func serveWithID(t *testing.T, inbound ...string) (seen, echoed string) {
	t.Helper()

	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetRequestID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/predict_live/xgboost", http.NoBody)
	if len(inbound) > 0 {
		req.Header["X-Request-Id"] = inbound
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return seen, rec.Header().Get("X-Request-Id")
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name    string
		inbound []string
		keep    bool
	}{
		{"none sent", nil, false},
		{"client id kept", []string{"mobile-7f3a"}, true},
		{"max length kept", []string{strings.Repeat("a", 64)}, true},
		{"too long", []string{strings.Repeat("a", 65)}, false},
		{"contains space", []string{"abc def"}, false},
		{"header injection", []string{"abc\r\nX-Evil: 1"}, false},
		{"non ascii", []string{"zoné"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen, echoed := serveWithID(t, tt.inbound...)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, echoed, "handler and client see the same id")
			if tt.keep {
				assert.Equal(t, tt.inbound[0], seen)
			} else {
				assert.True(t, strings.HasPrefix(seen, "req_"), "generated id %q", seen)
				assert.Len(t, seen, len("req_")+22)
			}
		})
	}
}

func TestRequestID_GeneratedIDsAreUnique(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for range 100 {
		id, _ := serveWithID(t)
		_, dup := seen[id]
		require.False(t, dup, "duplicate request id %s", id)
		seen[id] = struct{}{}
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	assert.Empty(t, middleware.GetRequestID(httptest.NewRequest(http.MethodGet, "/", http.NoBody).Context()))
}
