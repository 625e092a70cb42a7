package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/edgeflare/kafkaform/pkg/httputil"
)

// CORSOptions configures CORSWithOptions. A zero MaxAge omits
// Access-Control-Max-Age.
type CORSOptions struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

func defaultCORSOptions() *CORSOptions {
	return &CORSOptions{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "Accept", "Origin", RequestIDHeader},
		MaxAge:         10 * time.Minute,
	}
}

// CORSWithOptions answers preflight requests itself and adds the allow-origin
// headers to every other request. nil options means the defaults.
//
// A "*" origin is sent as is. Any other allowed origin is echoed back with
// Vary: Origin. A preflight from an origin not allowed gets a 403.
func CORSWithOptions(options *CORSOptions) httputil.Middleware {
	if options == nil {
		options = defaultCORSOptions()
	}
	wildcard := slices.Contains(options.AllowedOrigins, "*")
	methods := strings.Join(options.AllowedMethods, ",")
	headers := strings.Join(options.AllowedHeaders, ",")
	maxAge := strconv.Itoa(int(options.MaxAge.Seconds()))

	allowOrigin := func(h http.Header, origin string) bool {
		switch {
		case wildcard:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(options.AllowedOrigins, origin):
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		default:
			return false
		}
		if options.AllowCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		return true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed := allowOrigin(w.Header(), r.Header.Get("Origin"))

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if !preflight {
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				httputil.Error(w, http.StatusForbidden, "origin not allowed")
				return
			}

			if methods != "" {
				w.Header().Set("Access-Control-Allow-Methods", methods)
			}
			if headers != "" {
				w.Header().Set("Access-Control-Allow-Headers", headers)
			}
			if options.MaxAge > 0 {
				w.Header().Set("Access-Control-Max-Age", maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
