package kafkaform

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/edgeflare/kafkaform/pkg/connector"
	"github.com/edgeflare/kafkaform/pkg/httputil"
	mw "github.com/edgeflare/kafkaform/pkg/httputil/middleware"
	"github.com/edgeflare/kafkaform/pkg/metrics"
	"github.com/edgeflare/kafkaform/pkg/rest"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Serve the connector over HTTP",
		Long:    `Starts an HTTP server exposing filter, list, get, plan, op_exec and the other connector calls under /v1.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.StringP("listen-addr", "l", ":8080", "HTTP listen address")
	f.Bool("tls", false, "serve HTTPS, with a self-signed certificate unless --tls-cert and --tls-key are set")
	f.String("tls-cert", "", "TLS certificate file")
	f.String("tls-key", "", "TLS key file")
	f.Bool("metrics", false, "expose prometheus metrics")
	f.String("metrics-addr", ":9100", "metrics listen address")
	a.v.BindPFlag("serve.listenAddr", f.Lookup("listen-addr"))
	a.v.BindPFlag("serve.tls", f.Lookup("tls"))
	a.v.BindPFlag("serve.tlsCertFile", f.Lookup("tls-cert"))
	a.v.BindPFlag("serve.tlsKeyFile", f.Lookup("tls-key"))
	a.v.BindPFlag("metrics.enabled", f.Lookup("metrics"))
	a.v.BindPFlag("metrics.addr", f.Lookup("metrics-addr"))
	return cmd
}

func (a *app) serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if a.cfg.Metrics.Enabled {
		metrics.StartPrometheusServer(ctx, &wg, &metrics.PromServerOpts{Addr: a.cfg.Metrics.Addr, Logger: a.logger})
	}

	conn, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	router := a.router(conn)

	errCh := make(chan error, 1)
	go func() {
		errCh <- router.ListenAndServe(a.cfg.Serve.ListenAddr)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			stop()
			wg.Wait()
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	if err := router.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	wg.Wait()
	a.logger.Info("server stopped")
	return nil
}

// router assembles the HTTP stack: request ids and access logs for every
// request, CORS when origins are configured, basic auth on the API only.
func (a *app) router(conn *connector.Connector) *httputil.Router {
	sc := a.cfg.Serve

	var opts []httputil.RouterOptions
	opts = append(opts, httputil.WithLogger(a.logger), httputil.WithServerOptions(func(s *http.Server) {
		s.ReadHeaderTimeout = 10 * time.Second
	}))
	if sc.TLS || sc.TLSCertFile != "" {
		opts = append(opts, httputil.WithTLS(sc.TLSCertFile, sc.TLSKeyFile))
	}

	r := httputil.NewRouter(opts...)
	r.Use(mw.RequestID, mw.LoggerWithOptions(&mw.LoggerOptions{Logger: a.logger}), mw.Recover)
	if len(sc.CORSOrigins) > 0 {
		r.Use(mw.CORSWithOptions(&mw.CORSOptions{
			AllowedOrigins: sc.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization", mw.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}))
	}

	var apiMW []httputil.Middleware
	if len(sc.BasicAuth) > 0 {
		apiMW = append(apiMW, mw.VerifyBasicAuth(mw.BasicAuthCreds(sc.BasicAuth)))
	}
	rest.NewServer(conn, rest.WithLogger(a.logger), rest.WithAPIMiddleware(apiMW...)).Register(r)
	return r
}

func (a *app) shutdownTimeout() time.Duration {
	if a.cfg.Serve.ShutdownTimeout > 0 {
		return a.cfg.Serve.ShutdownTimeout
	}
	return 10 * time.Second
}
