// Package middleware holds the HTTP middleware used by kafkaform serve.
package middleware

import (
	"fmt"
	"net/http"

	"github.com/edgeflare/kafkaform/pkg/httputil"
	"go.uber.org/zap"
)

// Chain composes middlewares into one. The first is the outermost.
func Chain(middlewares ...httputil.Middleware) httputil.Middleware {
	return func(h http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			h = middlewares[i](h)
		}
		return h
	}
}

// Recover turns a handler panic into a JSON 500 and logs it with the request
// scoped logger. http.ErrAbortHandler is re-raised.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			httputil.Logger(r.Context(), defaultLogger).Error("panic recovered",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("panic", fmt.Sprint(rec)),
				zap.Stack("stack"))
			httputil.Error(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		}()
		next.ServeHTTP(w, r)
	})
}
