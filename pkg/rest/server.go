package rest

import (
	"net/http"

	"github.com/edgeflare/kafkaform/pkg/connector"
	"github.com/edgeflare/kafkaform/pkg/httputil"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies; resource documents are small.
const maxBodyBytes = 4 << 20

type Server struct {
	conn       *connector.Connector
	logger     *zap.Logger
	middleware []httputil.Middleware
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAPIMiddleware wraps the /v1 routes only, leaving /healthz open.
func WithAPIMiddleware(mws ...httputil.Middleware) Option {
	return func(s *Server) {
		s.middleware = append(s.middleware, mws...)
	}
}

func NewServer(conn *connector.Connector, opts ...Option) *Server {
	s := &Server{conn: conn, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register mounts the API on r under /v1 and a health probe at /healthz.
func (s *Server) Register(r *httputil.Router) {
	r.Handle("GET /healthz", http.HandlerFunc(s.handleHealth))

	v1 := r.Group("/v1")
	v1.Use(limitBody, s.middleware...)
	v1.Handle("GET /filter", http.HandlerFunc(s.handleFilter))
	v1.Handle("GET /subpaths", http.HandlerFunc(s.handleSubpaths))
	v1.Handle("GET /list", http.HandlerFunc(s.handleList))
	v1.Handle("GET /get", http.HandlerFunc(s.handleGet))
	v1.Handle("POST /plan", http.HandlerFunc(s.handlePlan))
	v1.Handle("POST /op_exec", http.HandlerFunc(s.handleOpExec))
	v1.Handle("POST /diag", http.HandlerFunc(s.handleDiag))
	v1.Handle("POST /eq", http.HandlerFunc(s.handleEq))
	v1.Handle("GET /skeletons", http.HandlerFunc(s.handleSkeletons))
	v1.Handle("POST /task_exec", http.HandlerFunc(s.handleTaskExec))
	v1.Handle("POST /reload", http.HandlerFunc(s.handleReload))
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

// fail writes err with its mapped status. Server side failures are logged
// with the request scoped logger.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log(r).Error("request failed",
			zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	httputil.Error(w, status, err.Error())
}

// log returns the request scoped logger, tagged with the authenticated user
// when there is one.
func (s *Server) log(r *http.Request) *zap.Logger {
	l := httputil.Logger(r.Context(), s.logger)
	if user, ok := httputil.BasicAuthUser(r); ok {
		l = l.With(zap.String("user", user))
	}
	return l
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.conn.Config() == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "connector not initialized")
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
