package metrics

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Result label values.
const (
	ResultOK             = "ok"
	ResultError          = "error"
	ResultNotImplemented = "not_implemented"
)

var (
	Ops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafkaform_ops_total",
			Help: "Total number of executed operations by cluster, op and result",
		},
		[]string{"cluster", "op", "result"},
	)

	OpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafkaform_op_duration_seconds",
			Help:    "Duration of remote operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"cluster", "op"},
	)

	InFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafkaform_requests_in_flight",
			Help: "Remote requests currently holding a permit",
		},
		[]string{"cluster"},
	)

	Plans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafkaform_plans_total",
			Help: "Total number of plan computations by resource kind and result",
		},
		[]string{"kind", "result"},
	)

	AuditPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kafkaform_audit_publish_errors_total",
			Help: "Total number of audit records that could not be published",
		},
	)
)

// ObserveOp records one executed operation.
func ObserveOp(cluster, op, result string, elapsed time.Duration) {
	Ops.WithLabelValues(cluster, op, result).Inc()
	if result != ResultNotImplemented {
		OpDuration.WithLabelValues(cluster, op).Observe(elapsed.Seconds())
	}
}

type PromServerOpts struct {
	Addr              string
	Path              string        // defaults to "/metrics"
	ShutdownTimeout   time.Duration // defaults to 5 seconds
	ReadHeaderTimeout time.Duration // defaults to 3 seconds
	Logger            *zap.Logger
}

func defaultPrometheusServerOptions() PromServerOpts {
	return PromServerOpts{
		Addr:              ":9100",
		Path:              "/metrics",
		ShutdownTimeout:   5 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		Logger:            zap.NewNop(),
	}
}

// StartPrometheusServer serves the default registry until ctx is canceled.
func StartPrometheusServer(ctx context.Context, wg *sync.WaitGroup, opts *PromServerOpts) {
	o := defaultPrometheusServerOptions()
	if opts != nil {
		o.Addr = cmp.Or(opts.Addr, o.Addr)
		o.Path = cmp.Or(opts.Path, o.Path)
		o.ShutdownTimeout = cmp.Or(opts.ShutdownTimeout, o.ShutdownTimeout)
		o.ReadHeaderTimeout = cmp.Or(opts.ReadHeaderTimeout, o.ReadHeaderTimeout)
		if opts.Logger != nil {
			o.Logger = opts.Logger
		}
	}

	mux := http.NewServeMux()
	mux.Handle(o.Path, promhttp.Handler())
	server := &http.Server{
		Addr:              o.Addr,
		Handler:           mux,
		ReadHeaderTimeout: o.ReadHeaderTimeout,
	}

	serverClosed := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.Logger.Info("starting metrics server", zap.String("addr", o.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			o.Logger.Error("metrics server error", zap.Error(err))
		}
		close(serverClosed)
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), o.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			o.Logger.Error("error shutting down metrics server", zap.Error(err))
		}

		select {
		case <-serverClosed:
			o.Logger.Info("metrics server shutdown complete")
		case <-shutdownCtx.Done():
			o.Logger.Warn("metrics server shutdown timed out")
		}
	}()
}
