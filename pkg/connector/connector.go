// Package connector exposes the Kafka reconciliation contract: addresses are
// filtered, listed, fetched, planned and executed through a single Connector
// bound to a repository prefix.
package connector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/edgeflare/kafkaform/pkg/config"
	"github.com/edgeflare/kafkaform/pkg/kafka/addr"
	"github.com/edgeflare/kafkaform/pkg/kafka/client"
	"github.com/edgeflare/kafkaform/pkg/kafka/cluster"
	"github.com/edgeflare/kafkaform/pkg/kafka/exec"
	"go.uber.org/zap"
)

// PublisherFactory opens the audit publisher for a cluster and topic.
type PublisherFactory func(c config.Cluster, topic string, timeout time.Duration, logger *zap.Logger) (client.Publisher, error)

type Connector struct {
	prefix   string
	registry *cluster.Registry
	executor *exec.Executor
	logger   *zap.Logger

	adminFactory     client.AdminFactory
	publisherFactory PublisherFactory
	registryOpts     []cluster.Option

	auditMu sync.Mutex
	audit   client.Publisher
}

type Option func(*Connector)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Connector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAdminFactory replaces the sarama admin, mostly for tests.
func WithAdminFactory(f client.AdminFactory) Option {
	return func(c *Connector) {
		c.adminFactory = f
	}
}

func WithPublisherFactory(f PublisherFactory) Option {
	return func(c *Connector) {
		c.publisherFactory = f
	}
}

// WithConnectBackOff sets the retry policy used when connecting to clusters.
func WithConnectBackOff(fn func() backoff.BackOff) Option {
	return func(c *Connector) {
		c.registryOpts = append(c.registryOpts, cluster.WithBackOff(fn))
	}
}

// New creates a connector for the repository rooted at prefix. Init must be
// called before any cluster-bound operation.
func New(prefix string, opts ...Option) *Connector {
	c := &Connector{
		prefix:           prefix,
		logger:           zap.NewNop(),
		publisherFactory: client.NewPublisher,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.adminFactory == nil {
		c.adminFactory = client.SaramaFactory(c.logger)
	}

	c.registry = cluster.NewRegistry(c.adminFactory, append([]cluster.Option{cluster.WithLogger(c.logger)}, c.registryOpts...)...)
	c.executor = exec.New(c.registry, exec.WithLogger(c.logger))
	return c
}

// Init loads <prefix>/kafka/config.yaml, or the defaults when it is absent,
// and connects to every configured cluster.
func (c *Connector) Init(ctx context.Context) error {
	cfg, err := config.LoadConnector(c.prefix)
	if err != nil {
		return err
	}
	return c.InitWith(ctx, cfg)
}

// InitWith initializes the connector from an already loaded config.
func (c *Connector) InitWith(ctx context.Context, cfg *config.Connector) error {
	if err := c.registry.Init(ctx, cfg); err != nil {
		return err
	}
	return c.openAudit(cfg)
}

// Reload re-reads the config and swaps every cluster handle.
func (c *Connector) Reload(ctx context.Context) error {
	c.logger.Info("reloading connector config", zap.String("prefix", c.prefix))
	return c.Init(ctx)
}

func (c *Connector) openAudit(cfg *config.Connector) error {
	var pub client.Publisher
	if cfg.Audit != nil {
		var err error
		pub, err = c.publisherFactory(cfg.Clusters[cfg.Audit.Cluster], cfg.Audit.Topic, cfg.OperationTimeout(), c.logger)
		if err != nil {
			return fmt.Errorf("failed to open audit publisher: %w", err)
		}
	}

	c.auditMu.Lock()
	old := c.audit
	c.audit = pub
	c.auditMu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			c.logger.Warn("failed to close audit publisher", zap.Error(err))
		}
	}
	return nil
}

func (c *Connector) Close() error {
	c.auditMu.Lock()
	pub := c.audit
	c.audit = nil
	c.auditMu.Unlock()

	var errs []error
	if pub != nil {
		errs = append(errs, pub.Close())
	}
	errs = append(errs, c.registry.Close())
	return errors.Join(errs...)
}

// Prefix is the repository root the connector was created for.
func (c *Connector) Prefix() string {
	return c.prefix
}

// Config returns the active connector config, nil before Init.
func (c *Connector) Config() *config.Connector {
	return c.registry.Config()
}

type FilterResponse int

const (
	FilterNone FilterResponse = iota
	FilterConfig
	FilterResource
)

func (f FilterResponse) String() string {
	switch f {
	case FilterConfig:
		return "config"
	case FilterResource:
		return "resource"
	}
	return "none"
}

// Filter classifies a path. It never fails: paths that are not addresses
// are simply not handled by this connector.
func (c *Connector) Filter(path string) FilterResponse {
	a, err := addr.Decode(path)
	if err != nil {
		return FilterNone
	}
	if a.Kind == addr.KindConfig {
		return FilterConfig
	}
	return FilterResource
}

// Subpaths returns one path per configured cluster.
func (c *Connector) Subpaths() []string {
	clusters := c.registry.Clusters()
	paths := make([]string, 0, len(clusters))
	for _, name := range clusters {
		paths = append(paths, addr.ClusterPath(name))
	}
	return paths
}
