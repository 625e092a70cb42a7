package httputil

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/edgeflare/kafkaform/pkg/util"
	"go.uber.org/zap"
)

// Middleware defines a function type that represents a middleware. Middleware functions wrap an
// http.Handler to modify or enhance its behavior.
type Middleware func(http.Handler) http.Handler

// RouterOptions is a function type that represents options to configure a Router.
type RouterOptions func(*Router)

// Router is the main structure for handling HTTP routing and middleware.
//
// Middleware added to the root router wraps the whole mux, so it also sees
// requests that match no route (CORS preflights, 404s). Middleware added to
// a group only wraps the routes registered on that group.
type Router struct {
	mux        *http.ServeMux
	server     *http.Server
	logger     *zap.Logger
	prefix     string
	middleware []Middleware
	group      bool
	err        error
	mu         sync.RWMutex
}

// NewRouter creates a new instance of Router with the given options.
func NewRouter(opts ...RouterOptions) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		server: &http.Server{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithServerOptions returns a RouterOptions function that sets custom http.Server options.
func WithServerOptions(opts ...func(*http.Server)) RouterOptions {
	return func(r *Router) {
		for _, opt := range opts {
			opt(r.server)
		}
	}
}

func WithLogger(logger *zap.Logger) RouterOptions {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTLS enables HTTPS. Empty paths fall back to a self-signed certificate
// under ./tls, generated on first use. A certificate that cannot be loaded
// makes ListenAndServe fail.
func WithTLS(certFile, keyFile string) RouterOptions {
	return func(r *Router) {
		if certFile == "" || keyFile == "" {
			certFile, keyFile = "./tls/tls.crt", "./tls/tls.key"
		}
		cert, err := util.LoadOrGenerateCert(certFile, keyFile)
		if err != nil {
			r.err = fmt.Errorf("error loading TLS certificate: %w", err)
			return
		}
		r.server.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
	}
}

// Use adds one or more middleware to the router. Middleware functions are
// applied in the order they are added.
func (r *Router) Use(mw Middleware, additional ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw)
	r.middleware = append(r.middleware, additional...)
}

// Group creates a sub-router with a specified prefix. Routes registered on
// it still pass through the root router's middleware; a group's own
// middleware is inherited by its nested groups.
func (r *Router) Group(prefix string) *Router {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g := &Router{
		mux:    r.mux,
		server: r.server,
		logger: r.logger,
		prefix: r.prefix + prefix,
		group:  true,
	}
	if r.group {
		g.middleware = slices.Clone(r.middleware)
	}
	return g
}

// Handle registers a handler for a method and pattern using the
// [Go 1.22 routing syntax](https://go.dev/blog/routing-enhancements).
// `METHOD /pattern` on a group with a /prefix resolves to `METHOD /prefix/pattern`.
// It panics on a malformed pattern, as http.ServeMux does.
func (r *Router) Handle(methodPattern string, handler http.Handler) {
	method, pattern, ok := strings.Cut(methodPattern, " ")
	if !ok {
		panic(fmt.Sprintf("invalid method pattern: %s", methodPattern))
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	final := handler
	if r.group {
		final = wrap(handler, r.middleware)
	}
	r.mux.Handle(fmt.Sprintf("%s %s%s", method, r.prefix, pattern), final)
}

// ServeHTTP dispatches the request through the root middleware and the mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler().ServeHTTP(w, req)
}

// ListenAndServe starts the server, choosing HTTPS when TLS is configured.
func (r *Router) ListenAndServe(addr string) error {
	if r.err != nil {
		return r.err
	}

	r.server.Addr = addr
	r.server.Handler = r.handler()

	if r.server.TLSConfig != nil {
		r.logger.Info("starting server", zap.String("addr", addr), zap.Bool("tls", true))
		return r.server.ListenAndServeTLS("", "")
	}
	r.logger.Info("starting server", zap.String("addr", addr))
	return r.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (r *Router) Shutdown(ctx context.Context) error {
	r.logger.Info("shutting down server")
	return r.server.Shutdown(ctx)
}

func (r *Router) handler() http.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.group {
		return r.mux
	}
	return wrap(r.mux, r.middleware)
}

func wrap(h http.Handler, mws []Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
