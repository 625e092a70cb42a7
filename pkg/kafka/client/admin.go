// Package client is the remote side of the connector: an Admin capability
// per cluster, backed by sarama.
package client

import (
	"context"
	"time"

	"github.com/edgeflare/kafkaform/pkg/config"
	"github.com/edgeflare/kafkaform/pkg/kafka/resource"
)

// Admin is everything the connector needs from a cluster. Write methods
// return one ItemResult per requested item; a non-nil error means the call
// as a whole failed.
type Admin interface {
	// ListTopics returns user topic names, sorted. Internal "__" topics are skipped.
	ListTopics(ctx context.Context) ([]string, error)
	// DescribeTopic returns nil, nil when the topic does not exist.
	DescribeTopic(ctx context.Context, topic string) (*TopicDescription, error)
	CreateTopics(ctx context.Context, topics []TopicSpec) ([]ItemResult, error)
	CreatePartitions(ctx context.Context, partitions []PartitionSpec) ([]ItemResult, error)
	AlterConfigs(ctx context.Context, configs []ConfigSpec) ([]ItemResult, error)
	DeleteTopics(ctx context.Context, topics []string) ([]ItemResult, error)
	CreateACLs(ctx context.Context, acls []resource.Acl) ([]ItemResult, error)
	DeleteACLs(ctx context.Context, acls []resource.Acl) ([]ItemResult, error)
	AlterQuotas(ctx context.Context, quotas []QuotaSpec) ([]ItemResult, error)
	Close() error
}

// AdminFactory connects to the named cluster.
type AdminFactory func(ctx context.Context, name string, cluster config.Cluster, timeout time.Duration) (Admin, error)

// ItemResult is the outcome for one requested item. Err carries the remote
// error message when the item failed.
type ItemResult struct {
	Name string
	Err  error
}

// TopicDescription is the live state of a topic. Config holds only entries
// set on the topic itself, sorted by name.
type TopicDescription struct {
	Name              string
	Partitions        int32
	ReplicationFactor int16
	Config            resource.ConfigMap
}

func (d TopicDescription) Topic() resource.Topic {
	return resource.Topic{
		Partitions:        d.Partitions,
		ReplicationFactor: d.ReplicationFactor,
		Config:            d.Config,
	}
}

type TopicSpec struct {
	Name  string
	Topic resource.Topic
}

// PartitionSpec sets the total partition count of a topic.
type PartitionSpec struct {
	Topic string
	Count int32
}

// ConfigSpec replaces the full config of a topic.
type ConfigSpec struct {
	Topic  string
	Config resource.ConfigMap
}

// QuotaSpec sets or removes the rates of a quota. With Remove set every rate
// of the entity is cleared.
type QuotaSpec struct {
	Name   string
	Quota  resource.Quota
	Remove bool
}
