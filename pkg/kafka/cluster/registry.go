// Package cluster keeps one admin handle per configured Kafka cluster and
// gates every remote request through a shared permit pool.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/edgeflare/kafkaform/pkg/config"
	"github.com/edgeflare/kafkaform/pkg/kafka/client"
	"github.com/edgeflare/kafkaform/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrClusterNotFound is returned for a cluster name absent from the active config.
var ErrClusterNotFound = errors.New("cluster not found")

type NotFoundError struct {
	Cluster string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cluster %q not found in configuration", e.Cluster)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrClusterNotFound
}

const connectRetries = 3

// Registry maps cluster names to admin handles. Init and Close take the
// lock exclusively; Do holds it shared for the whole request, so a reload
// waits for in-flight requests before closing the old handles.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]client.Admin
	config  *config.Connector
	sem     *semaphore.Weighted

	factory    client.AdminFactory
	newBackOff func() backoff.BackOff
	logger     *zap.Logger
}

type Option func(*Registry)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithBackOff sets the policy between connect attempts.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(r *Registry) {
		r.newBackOff = fn
	}
}

func NewRegistry(factory client.AdminFactory, opts ...Option) *Registry {
	r := &Registry{
		factory: factory,
		logger:  zap.NewNop(),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Init connects to every cluster in cfg and replaces the current handles.
// On failure the handles built so far are closed and the previous state is
// kept.
func (r *Registry) Init(ctx context.Context, cfg *config.Connector) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	timeout := cfg.OperationTimeout()
	clients := make(map[string]client.Admin, len(cfg.Clusters))
	for _, name := range cfg.ClusterNames() {
		admin, err := r.connect(ctx, name, cfg.Clusters[name], timeout)
		if err != nil {
			closeAll(clients, r.logger)
			return fmt.Errorf("failed to connect to cluster %s: %w", name, err)
		}
		clients[name] = admin
	}

	r.mu.Lock()
	old := r.clients
	r.clients = clients
	r.config = cfg
	r.sem = semaphore.NewWeighted(int64(cfg.ConcurrentRequests))
	r.mu.Unlock()

	for name, admin := range old {
		if clients[name] == admin {
			continue
		}
		if err := admin.Close(); err != nil {
			r.logger.Warn("failed to close previous admin", zap.String("cluster", name), zap.Error(err))
		}
	}

	r.logger.Info("cluster registry initialized",
		zap.Strings("clusters", cfg.ClusterNames()),
		zap.Int("concurrent_requests", cfg.ConcurrentRequests),
		zap.Duration("operation_timeout", timeout))
	return nil
}

func (r *Registry) connect(ctx context.Context, name string, c config.Cluster, timeout time.Duration) (client.Admin, error) {
	var admin client.Admin
	attempt := 0
	operation := func() error {
		attempt++
		a, err := r.factory(ctx, name, c, timeout)
		if err != nil {
			r.logger.Warn("connect attempt failed",
				zap.String("cluster", name),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		admin = a
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), connectRetries), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return nil, err
	}
	return admin, nil
}

// Do runs fn against the named cluster while holding one request permit.
// fn receives a context bounded by the operation timeout. The permit is
// released when fn returns, whatever the outcome.
func (r *Registry) Do(ctx context.Context, name string, fn func(ctx context.Context, admin client.Admin) error) error {
	_, err := r.DoIf(ctx, name, nil, fn)
	return err
}

// DoIf is Do guarded by allow, which sees the config the call would run
// under. When allow returns false, fn is not run, no permit is taken and
// DoIf returns false. Cluster lookup, allow and fn share one read lock, so a
// concurrent Init cannot swap the config between them.
func (r *Registry) DoIf(ctx context.Context, name string, allow func(cfg *config.Connector) bool,
	fn func(ctx context.Context, admin client.Admin) error) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	admin, ok := r.clients[name]
	if !ok {
		return false, &NotFoundError{Cluster: name}
	}
	if allow != nil && !allow(r.config) {
		return false, nil
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return true, fmt.Errorf("failed to acquire request permit: %w", err)
	}
	defer r.sem.Release(1)

	inFlight := metrics.InFlight.WithLabelValues(name)
	inFlight.Inc()
	defer inFlight.Dec()

	ctx, cancel := context.WithTimeout(ctx, r.config.OperationTimeout())
	defer cancel()

	return true, fn(ctx, admin)
}

// Has reports whether name is a configured cluster.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[name]
	return ok
}

// Clusters returns the configured cluster names, sorted.
func (r *Registry) Clusters() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Config returns the active connector config, nil before Init. The returned
// value must be treated as read-only.
func (r *Registry) Config() *config.Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := closeAll(r.clients, r.logger)
	r.clients = nil
	return err
}

func closeAll(clients map[string]client.Admin, logger *zap.Logger) error {
	var errs []error
	for name, admin := range clients {
		if err := admin.Close(); err != nil {
			logger.Warn("failed to close admin", zap.String("cluster", name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
