package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/edgeflare/kafkaform/pkg/config"
	"github.com/edgeflare/kafkaform/pkg/kafka/resource"
	"go.uber.org/zap"
)

type saramaAdmin struct {
	name   string
	admin  sarama.ClusterAdmin
	logger *zap.Logger
}

// NewSaramaAdmin connects a sarama.ClusterAdmin to the cluster.
func NewSaramaAdmin(ctx context.Context, name string, cluster config.Cluster, timeout time.Duration, logger *zap.Logger) (Admin, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conf, err := ToSaramaConfig(cluster, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create sarama config: %w", err)
	}

	var admin sarama.ClusterAdmin
	err = call(ctx, func() error {
		var err error
		admin, err = sarama.NewClusterAdmin(cluster.Brokers(), conf)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cluster admin: %w", err)
	}

	logger.Info("connected to cluster",
		zap.String("cluster", name),
		zap.Strings("brokers", cluster.Brokers()),
		zap.String("security_protocol", SecurityProtocol(cluster)))

	return &saramaAdmin{name: name, admin: admin, logger: logger}, nil
}

// SaramaFactory is an AdminFactory producing sarama backed admins.
func SaramaFactory(logger *zap.Logger) AdminFactory {
	return func(ctx context.Context, name string, cluster config.Cluster, timeout time.Duration) (Admin, error) {
		return NewSaramaAdmin(ctx, name, cluster, timeout, logger)
	}
}

// call runs a blocking sarama call, returning early when ctx is done. The
// call itself keeps running until sarama's own timeout.
func call(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// itemError separates per-item broker errors from failures of the call.
func itemError(err error) (itemErr error, callErr error) {
	if err == nil {
		return nil, nil
	}
	var topicErr *sarama.TopicError
	var kerr sarama.KError
	if errors.As(err, &topicErr) || errors.As(err, &kerr) {
		return err, nil
	}
	return nil, err
}

func (a *saramaAdmin) ListTopics(ctx context.Context) ([]string, error) {
	var topics map[string]sarama.TopicDetail
	err := call(ctx, func() error {
		var err error
		topics, err = a.admin.ListTopics()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}

	names := make([]string, 0, len(topics))
	for name := range topics {
		if strings.HasPrefix(name, "__") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (a *saramaAdmin) DescribeTopic(ctx context.Context, topic string) (*TopicDescription, error) {
	var metadata []*sarama.TopicMetadata
	err := call(ctx, func() error {
		var err error
		metadata, err = a.admin.DescribeTopics([]string{topic})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe topic %s: %w", topic, err)
	}
	if len(metadata) == 0 || errors.Is(metadata[0].Err, sarama.ErrUnknownTopicOrPartition) {
		return nil, nil
	}
	md := metadata[0]
	if md.Err != sarama.ErrNoError {
		return nil, fmt.Errorf("failed to describe topic %s: %w", topic, md.Err)
	}

	desc := &TopicDescription{Name: topic, Partitions: int32(len(md.Partitions))}
	if len(md.Partitions) > 0 {
		desc.ReplicationFactor = int16(len(md.Partitions[0].Replicas))
	}

	var entries []sarama.ConfigEntry
	err = call(ctx, func() error {
		var err error
		entries, err = a.admin.DescribeConfig(sarama.ConfigResource{Type: sarama.TopicResource, Name: topic})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe config of topic %s: %w", topic, err)
	}
	desc.Config = topicConfig(entries)
	return desc, nil
}

// topicConfig keeps the entries set on the topic itself, sorted by name.
func topicConfig(entries []sarama.ConfigEntry) resource.ConfigMap {
	kept := make([]sarama.ConfigEntry, 0, len(entries))
	for _, e := range entries {
		if e.ReadOnly || e.Sensitive {
			continue
		}
		switch e.Source {
		case sarama.SourceTopic:
		case sarama.SourceUnknown:
			if e.Default {
				continue
			}
		default:
			continue
		}
		kept = append(kept, e)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Name < kept[j].Name })

	var m resource.ConfigMap
	for _, e := range kept {
		m.Set(e.Name, e.Value)
	}
	return m
}

func configEntries(m resource.ConfigMap) map[string]*string {
	entries := make(map[string]*string, m.Len())
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		entries[k] = &v
	}
	return entries
}

func (a *saramaAdmin) CreateTopics(ctx context.Context, topics []TopicSpec) ([]ItemResult, error) {
	results := make([]ItemResult, 0, len(topics))
	for _, t := range topics {
		detail := &sarama.TopicDetail{
			NumPartitions:     t.Topic.Partitions,
			ReplicationFactor: t.Topic.ReplicationFactor,
			ConfigEntries:     configEntries(t.Topic.Config),
		}
		itemErr, err := itemError(call(ctx, func() error {
			return a.admin.CreateTopic(t.Name, detail, false)
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to create topic: %w", err)
		}
		results = append(results, ItemResult{Name: t.Name, Err: itemErr})
	}
	return results, nil
}

func (a *saramaAdmin) CreatePartitions(ctx context.Context, partitions []PartitionSpec) ([]ItemResult, error) {
	results := make([]ItemResult, 0, len(partitions))
	for _, p := range partitions {
		itemErr, err := itemError(call(ctx, func() error {
			return a.admin.CreatePartitions(p.Topic, p.Count, nil, false)
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to create partitions: %w", err)
		}
		results = append(results, ItemResult{Name: p.Topic, Err: itemErr})
	}
	return results, nil
}

func (a *saramaAdmin) AlterConfigs(ctx context.Context, configs []ConfigSpec) ([]ItemResult, error) {
	results := make([]ItemResult, 0, len(configs))
	for _, c := range configs {
		entries := configEntries(c.Config)
		itemErr, err := itemError(call(ctx, func() error {
			return a.admin.AlterConfig(sarama.TopicResource, c.Topic, entries, false)
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to alter config: %w", err)
		}
		results = append(results, ItemResult{Name: c.Topic, Err: itemErr})
	}
	return results, nil
}

func (a *saramaAdmin) DeleteTopics(ctx context.Context, topics []string) ([]ItemResult, error) {
	results := make([]ItemResult, 0, len(topics))
	for _, name := range topics {
		itemErr, err := itemError(call(ctx, func() error {
			return a.admin.DeleteTopic(name)
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to delete topic: %w", err)
		}
		results = append(results, ItemResult{Name: name, Err: itemErr})
	}
	return results, nil
}

func (a *saramaAdmin) CreateACLs(ctx context.Context, acls []resource.Acl) ([]ItemResult, error) {
	results := make([]ItemResult, 0, len(acls))
	for _, acl := range acls {
		res, binding := ToSaramaAcl(acl)
		itemErr, err := itemError(call(ctx, func() error {
			return a.admin.CreateACL(res, binding)
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to create ACL: %w", err)
		}
		a.logger.Debug("ACL added", zap.String("cluster", a.name), zap.Any("resource", res), zap.Any("acl", binding))
		results = append(results, ItemResult{Name: acl.ResourceName, Err: itemErr})
	}
	return results, nil
}

func (a *saramaAdmin) DeleteACLs(ctx context.Context, acls []resource.Acl) ([]ItemResult, error) {
	results := make([]ItemResult, 0, len(acls))
	for _, acl := range acls {
		filter := ToSaramaAclFilter(acl)
		var matching []sarama.MatchingAcl
		itemErr, err := itemError(call(ctx, func() error {
			var err error
			matching, err = a.admin.DeleteACL(filter, false)
			return err
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to delete ACL: %w", err)
		}
		for _, m := range matching {
			if m.Err != sarama.ErrNoError && itemErr == nil {
				itemErr = m.Err
				if m.ErrMsg != nil && *m.ErrMsg != "" {
					itemErr = fmt.Errorf("%w: %s", m.Err, *m.ErrMsg)
				}
			}
		}
		a.logger.Debug("ACL deleted", zap.String("cluster", a.name), zap.Int("matched", len(matching)))
		results = append(results, ItemResult{Name: acl.ResourceName, Err: itemErr})
	}
	return results, nil
}

// quotaKeys are the Kafka quota config names, in a fixed order.
var quotaKeys = []string{"producer_byte_rate", "consumer_byte_rate", "request_percentage"}

func quotaRates(q resource.Quota) map[string]*float64 {
	return map[string]*float64{
		"producer_byte_rate": q.ProducerByteRate,
		"consumer_byte_rate": q.ConsumerByteRate,
		"request_percentage": q.RequestPercentage,
	}
}

// AlterQuotas issues one alteration per rate: set rates are written, unset
// rates are removed so the quota is an atomic overwrite.
func (a *saramaAdmin) AlterQuotas(ctx context.Context, quotas []QuotaSpec) ([]ItemResult, error) {
	results := make([]ItemResult, 0, len(quotas))
	for _, q := range quotas {
		entity := ToSaramaQuotaEntity(q.Quota.Entities)
		rates := quotaRates(q.Quota)

		var itemErr error
		for _, key := range quotaKeys {
			op := sarama.ClientQuotasOp{Key: key, Remove: true}
			if v := rates[key]; v != nil && !q.Remove {
				op = sarama.ClientQuotasOp{Key: key, Value: *v}
			}
			ie, err := itemError(call(ctx, func() error {
				return a.admin.AlterClientQuotas(entity, op, false)
			}))
			if err != nil {
				return nil, fmt.Errorf("failed to alter quota: %w", err)
			}
			if ie != nil {
				itemErr = ie
				break
			}
		}
		results = append(results, ItemResult{Name: q.Name, Err: itemErr})
	}
	return results, nil
}

func (a *saramaAdmin) Close() error {
	if a.admin != nil {
		return a.admin.Close()
	}
	return nil
}
