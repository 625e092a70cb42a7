// Package exec applies a single planned op to the cluster its address is
// bound to.
package exec

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edgeflare/kafkaform/pkg/config"
	"github.com/edgeflare/kafkaform/pkg/kafka/addr"
	"github.com/edgeflare/kafkaform/pkg/kafka/client"
	"github.com/edgeflare/kafkaform/pkg/kafka/cluster"
	"github.com/edgeflare/kafkaform/pkg/kafka/op"
	"github.com/edgeflare/kafkaform/pkg/kafka/resource"
	"github.com/edgeflare/kafkaform/pkg/metrics"
	"go.uber.org/zap"
)

var (
	// ErrNoResultReturned means the broker accepted a request but reported
	// no per-item result for it.
	ErrNoResultReturned = errors.New("no result returned")
	ErrInvalidOp        = errors.New("invalid operation")
)

type InvalidOpError struct {
	Address addr.Address
	Op      string
}

func (e *InvalidOpError) Error() string {
	return fmt.Sprintf("invalid operation %s for address %s", e.Op, e.Address)
}

func (e *InvalidOpError) Is(target error) bool {
	return target == ErrInvalidOp
}

// RemoteOperationError carries the broker's message for a failed item.
type RemoteOperationError struct {
	Action   string
	Resource string
	Err      error
}

func (e *RemoteOperationError) Error() string {
	return fmt.Sprintf("failed to %s '%s': %v", e.Action, e.Resource, e.Err)
}

func (e *RemoteOperationError) Unwrap() error {
	return e.Err
}

// Result confirms an executed op. NotImplemented marks ops accepted without
// any remote call.
type Result struct {
	Outputs        map[string]string
	Message        string
	NotImplemented bool
}

const (
	aclNotImplemented   = "ACL operation not yet implemented"
	quotaNotImplemented = "Quota operation not yet implemented"
)

type Executor struct {
	registry *cluster.Registry
	logger   *zap.Logger
}

type Option func(*Executor)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func New(registry *cluster.Registry, opts ...Option) *Executor {
	e := &Executor{registry: registry, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Exec runs o against the cluster a is bound to. ACL and quota ops only
// reach the cluster when enabled under capabilities in the connector config.
func (e *Executor) Exec(ctx context.Context, a addr.Address, o op.Op) (*Result, error) {
	if !a.IsResource() || o.Kind() != a.Kind {
		return nil, &InvalidOpError{Address: a, Op: o.Name()}
	}

	var res *Result
	start := time.Now()
	ran, err := e.registry.DoIf(ctx, a.Cluster, func(cfg *config.Connector) bool {
		return executable(a.Kind, cfg.Capabilities)
	}, func(ctx context.Context, admin client.Admin) error {
		var err error
		res, err = run(ctx, admin, a, o)
		return err
	})
	elapsed := time.Since(start)

	if !ran && err == nil {
		e.logger.Warn("operation not yet implemented",
			zap.String("cluster", a.Cluster),
			zap.Stringer("address", a),
			zap.String("op", o.Name()))
		metrics.ObserveOp(a.Cluster, o.Name(), metrics.ResultNotImplemented, 0)
		return &Result{Message: notImplementedMessage(a.Kind), NotImplemented: true}, nil
	}
	if !ran {
		return nil, err
	}

	if err != nil {
		metrics.ObserveOp(a.Cluster, o.Name(), metrics.ResultError, elapsed)
		e.logger.Error("operation failed",
			zap.String("cluster", a.Cluster),
			zap.Stringer("address", a),
			zap.String("op", o.Name()),
			zap.Error(err))
		return nil, err
	}

	metrics.ObserveOp(a.Cluster, o.Name(), metrics.ResultOK, elapsed)
	e.logger.Info("operation executed",
		zap.String("cluster", a.Cluster),
		zap.Stringer("address", a),
		zap.String("op", o.Name()),
		zap.Duration("elapsed", elapsed))
	return res, nil
}

// executable reports whether ops on kind may reach the cluster.
func executable(kind addr.Kind, caps config.Capabilities) bool {
	switch kind {
	case addr.KindAcl:
		return caps.Acl.Exec
	case addr.KindQuota:
		return caps.Quota.Exec
	}
	return true
}

func notImplementedMessage(kind addr.Kind) string {
	if kind == addr.KindAcl {
		return aclNotImplemented
	}
	return quotaNotImplemented
}

func run(ctx context.Context, admin client.Admin, a addr.Address, o op.Op) (*Result, error) {
	switch o := o.(type) {
	case op.CreateTopic:
		rs, err := admin.CreateTopics(ctx, []client.TopicSpec{{Name: a.Name, Topic: o.Topic}})
		if err := check("create topic", a.Name, rs, err); err != nil {
			return nil, err
		}
		return &Result{
			Outputs: map[string]string{"cluster": a.Cluster, "topic": a.Name},
			Message: fmt.Sprintf("Created topic '%s' in cluster '%s'", a.Name, a.Cluster),
		}, nil

	case op.UpdateTopicPartitions:
		rs, err := admin.CreatePartitions(ctx, []client.PartitionSpec{{Topic: a.Name, Count: o.Partitions}})
		if err := check("update partitions for topic", a.Name, rs, err); err != nil {
			return nil, err
		}
		return &Result{
			Message: fmt.Sprintf("Increased partitions for topic '%s' to %d in cluster '%s'", a.Name, o.Partitions, a.Cluster),
		}, nil

	case op.UpdateTopicConfig:
		rs, err := admin.AlterConfigs(ctx, []client.ConfigSpec{{Topic: a.Name, Config: o.Config}})
		if err := check("alter config for topic", a.Name, rs, err); err != nil {
			return nil, err
		}
		return &Result{
			Message: fmt.Sprintf("Altered config for topic '%s' in cluster '%s'", a.Name, a.Cluster),
		}, nil

	case op.DeleteTopic:
		rs, err := admin.DeleteTopics(ctx, []string{a.Name})
		if err := check("delete topic", a.Name, rs, err); err != nil {
			return nil, err
		}
		return &Result{
			Message: fmt.Sprintf("Deleted topic '%s' from cluster '%s'", a.Name, a.Cluster),
		}, nil

	case op.CreateAcl:
		rs, err := admin.CreateACLs(ctx, []resource.Acl{o.Acl})
		if err := check("create ACL", a.Name, rs, err); err != nil {
			return nil, err
		}
		return &Result{
			Outputs: map[string]string{"cluster": a.Cluster, "acl": a.Name},
			Message: fmt.Sprintf("Created ACL for %s on %s in cluster '%s'", o.Acl.Principal, o.Acl.ResourceName, a.Cluster),
		}, nil

	case op.DeleteAcl:
		rs, err := admin.DeleteACLs(ctx, []resource.Acl{o.Acl})
		if err := check("delete ACL", a.Name, rs, err); err != nil {
			return nil, err
		}
		return &Result{
			Message: fmt.Sprintf("Deleted ACL for %s on %s from cluster '%s'", o.Acl.Principal, o.Acl.ResourceName, a.Cluster),
		}, nil

	case op.CreateQuota:
		rs, err := admin.AlterQuotas(ctx, []client.QuotaSpec{{Name: a.Name, Quota: o.Quota}})
		if err := check("create quota", a.Name, rs, err); err != nil {
			return nil, err
		}
		return &Result{
			Outputs: map[string]string{"cluster": a.Cluster, "quota": a.Name},
			Message: fmt.Sprintf("Created quota '%s' in cluster '%s'", a.Name, a.Cluster),
		}, nil

	case op.UpdateQuota:
		rs, err := admin.AlterQuotas(ctx, []client.QuotaSpec{{Name: a.Name, Quota: o.Quota}})
		if err := check("update quota", a.Name, rs, err); err != nil {
			return nil, err
		}
		return &Result{
			Message: fmt.Sprintf("Updated quota '%s' in cluster '%s'", a.Name, a.Cluster),
		}, nil

	case op.DeleteQuota:
		rs, err := admin.AlterQuotas(ctx, []client.QuotaSpec{{Name: a.Name, Quota: o.Quota, Remove: true}})
		if err := check("delete quota", a.Name, rs, err); err != nil {
			return nil, err
		}
		return &Result{
			Message: fmt.Sprintf("Deleted quota '%s' from cluster '%s'", a.Name, a.Cluster),
		}, nil
	}
	return nil, &InvalidOpError{Address: a, Op: o.Name()}
}

// check interprets the outcome of a one-item admin call. Call and item
// failures both become a RemoteOperationError; an empty result list is
// ErrNoResultReturned.
func check(action, name string, results []client.ItemResult, err error) error {
	if err != nil {
		return &RemoteOperationError{Action: action, Resource: name, Err: err}
	}
	if len(results) == 0 {
		return fmt.Errorf("failed to %s '%s': %w", action, name, ErrNoResultReturned)
	}
	if results[0].Err != nil {
		return &RemoteOperationError{Action: action, Resource: cmp.Or(results[0].Name, name), Err: results[0].Err}
	}
	return nil
}
