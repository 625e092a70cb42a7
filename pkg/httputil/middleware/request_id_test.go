package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/edgeflare/kafkaform/pkg/httputil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	testCases := []struct {
		name     string
		ctxID    string
		headerID string
		want     string // empty: expect a generated UUID
	}{
		{name: "generated when absent"},
		{name: "context id wins", ctxID: "from-ctx", headerID: "from-client", want: "from-ctx"},
		{name: "client id accepted", headerID: "apply-7f3a", want: "apply-7f3a"},
		{name: "oversized client id replaced", headerID: strings.Repeat("x", maxRequestIDLen+1)},
		{name: "client id with spaces replaced", headerID: "two words"},
		{name: "client id with control bytes replaced", headerID: "id\x1b[31m"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = httputil.RequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/v1/subpaths", nil)
			if tc.ctxID != "" {
				req = req.WithContext(context.WithValue(req.Context(), httputil.RequestIDCtxKey, tc.ctxID))
			}
			if tc.headerID != "" {
				req.Header.Set(RequestIDHeader, tc.headerID)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
			if tc.want != "" {
				assert.Equal(t, tc.want, seen)
				return
			}
			_, err := uuid.Parse(seen)
			require.NoError(t, err, "expected a generated UUID, got %q", seen)
		})
	}
}

func TestRequestIDUnique(t *testing.T) {
	ids := map[string]bool{}
	h := RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	for range 5 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		ids[rec.Header().Get(RequestIDHeader)] = true
	}
	assert.Len(t, ids, 5)
}
