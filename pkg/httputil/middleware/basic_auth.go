package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/edgeflare/kafkaform/pkg/httputil"
	"go.uber.org/zap"
)

const defaultRealm = "kafkaform"

// BasicAuthConfig maps usernames to passwords. Realm is sent in the
// WWW-Authenticate challenge.
type BasicAuthConfig struct {
	Credentials map[string]string
	Realm       string
}

// BasicAuthCreds builds a BasicAuthConfig for the default realm.
func BasicAuthCreds(credentials map[string]string) *BasicAuthConfig {
	return &BasicAuthConfig{Credentials: credentials, Realm: defaultRealm}
}

// VerifyBasicAuth rejects requests without valid credentials with a JSON 401.
// The authenticated username is stored under httputil.BasicAuthCtxKey.
func VerifyBasicAuth(config *BasicAuthConfig) httputil.Middleware {
	realm := config.Realm
	if realm == "" {
		realm = defaultRealm
	}
	challenge := `Basic realm="` + realm + `"`

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", challenge)
				httputil.Error(w, http.StatusUnauthorized, "missing or malformed basic credentials")
				return
			}

			if !config.valid(username, password) {
				httputil.Logger(r.Context(), defaultLogger).Warn("basic auth rejected", zap.String("user", username))
				w.Header().Set("WWW-Authenticate", challenge)
				httputil.Error(w, http.StatusUnauthorized, "invalid credentials")
				return
			}

			ctx := context.WithValue(r.Context(), httputil.BasicAuthCtxKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (c *BasicAuthConfig) valid(username, password string) bool {
	want, known := c.Credentials[username]
	if !known {
		want = password + "\x00"
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1 && known
}
