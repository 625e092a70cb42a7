package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCORSWithOptions(t *testing.T) {
	scoped := &CORSOptions{
		AllowedOrigins:   []string{"https://console.example.com", "https://ops.example.com"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}

	testCases := []struct {
		name        string
		options     *CORSOptions
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantHeaders map[string]string
		wantNext    bool
	}{
		{
			name:       "defaults send wildcard",
			method:     http.MethodGet,
			origin:     "https://anywhere.example.com",
			wantStatus: http.StatusOK,
			wantNext:   true,
			wantHeaders: map[string]string{
				"Access-Control-Allow-Origin":      "*",
				"Access-Control-Allow-Methods":     "",
				"Access-Control-Allow-Credentials": "",
			},
		},
		{
			name:       "defaults preflight",
			method:     http.MethodOptions,
			origin:     "https://anywhere.example.com",
			preflight:  true,
			wantStatus: http.StatusNoContent,
			wantHeaders: map[string]string{
				"Access-Control-Allow-Origin":  "*",
				"Access-Control-Allow-Methods": "GET,POST,OPTIONS",
				"Access-Control-Allow-Headers": "Content-Type,Content-Length,Accept-Encoding,Authorization,Accept,Origin,X-Request-Id",
				"Access-Control-Max-Age":       "600",
			},
		},
		{
			name:       "allowed origin is echoed",
			options:    scoped,
			method:     http.MethodPost,
			origin:     "https://ops.example.com",
			wantStatus: http.StatusOK,
			wantNext:   true,
			wantHeaders: map[string]string{
				"Access-Control-Allow-Origin":      "https://ops.example.com",
				"Access-Control-Allow-Credentials": "true",
				"Vary":                             "Origin",
			},
		},
		{
			name:       "allowed origin preflight",
			options:    scoped,
			method:     http.MethodOptions,
			origin:     "https://console.example.com",
			preflight:  true,
			wantStatus: http.StatusNoContent,
			wantHeaders: map[string]string{
				"Access-Control-Allow-Origin":  "https://console.example.com",
				"Access-Control-Allow-Methods": "GET,POST",
				"Access-Control-Allow-Headers": "Content-Type",
				"Access-Control-Max-Age":       "",
			},
		},
		{
			name:        "unknown origin passes through without headers",
			options:     scoped,
			method:      http.MethodGet,
			origin:      "https://evil.example.com",
			wantStatus:  http.StatusOK,
			wantNext:    true,
			wantHeaders: map[string]string{"Access-Control-Allow-Origin": ""},
		},
		{
			name:        "unknown origin preflight is forbidden",
			options:     scoped,
			method:      http.MethodOptions,
			origin:      "https://evil.example.com",
			preflight:   true,
			wantStatus:  http.StatusForbidden,
			wantHeaders: map[string]string{"Access-Control-Allow-Methods": ""},
		},
		{
			name:       "plain OPTIONS reaches the handler",
			method:     http.MethodOptions,
			origin:     "https://anywhere.example.com",
			wantStatus: http.StatusOK,
			wantNext:   true,
		},
		{
			name:        "max age",
			options:     &CORSOptions{AllowedOrigins: []string{"*"}, MaxAge: time.Hour},
			method:      http.MethodOptions,
			origin:      "https://anywhere.example.com",
			preflight:   true,
			wantStatus:  http.StatusNoContent,
			wantHeaders: map[string]string{"Access-Control-Max-Age": "3600"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var reached bool
			h := CORSWithOptions(tc.options)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tc.method, "/v1/plan", nil)
			req.Header.Set("Origin", tc.origin)
			if tc.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantNext, reached)
			for k, v := range tc.wantHeaders {
				assert.Equal(t, v, rec.Header().Get(k), "header %s", k)
			}
		})
	}
}
