package connector

import (
	"fmt"

	"github.com/edgeflare/kafkaform/pkg/config"
	"github.com/edgeflare/kafkaform/pkg/kafka/addr"
	"github.com/edgeflare/kafkaform/pkg/kafka/resource"
)

// Skeleton is a template document for one address shape. Placeholders in
// brackets are meant to be replaced.
type Skeleton struct {
	Path string `json:"addr"`
	Body []byte `json:"body"`
}

const (
	placeholderCluster = "[cluster_name]"
	placeholderTopic   = "[topic_name]"
	placeholderAcl     = "[acl_identifier]"
	placeholderQuota   = "[quota_identifier]"
)

func (c *Connector) Skeletons() ([]Skeleton, error) {
	cfg, err := config.MarshalConnector(config.DefaultConnector())
	if err != nil {
		return nil, fmt.Errorf("failed to render config skeleton: %w", err)
	}
	out := []Skeleton{{Path: addr.Encode(addr.Config()), Body: cfg}}

	topic := resource.Topic{
		Partitions:        3,
		ReplicationFactor: 2,
		Config:            resource.NewConfigMap("retention.ms", "604800000", "compression.type", "snappy"),
	}
	templates := []struct {
		a addr.Address
		r resource.Resource
	}{
		{addr.Topic(placeholderCluster, placeholderTopic), topic},
		{addr.Acl(placeholderCluster, placeholderAcl), resource.DefaultAcl()},
		{addr.Quota(placeholderCluster, placeholderQuota), resource.Quota{Entities: []resource.QuotaEntity{}}},
	}
	for _, t := range templates {
		body, err := resource.Serialize(t.r)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s skeleton: %w", t.a.Kind, err)
		}
		out = append(out, Skeleton{Path: addr.Encode(t.a), Body: body})
	}
	return out, nil
}
