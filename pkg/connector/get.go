package connector

import (
	"context"
	"fmt"

	"github.com/edgeflare/kafkaform/pkg/kafka/addr"
	"github.com/edgeflare/kafkaform/pkg/kafka/client"
	"github.com/edgeflare/kafkaform/pkg/kafka/resource"
	"go.uber.org/zap"
)

// GetResponse holds the serialized remote state of a resource.
type GetResponse struct {
	ResourceDefinition []byte `json:"resource_definition"`
}

// Get fetches the current state at path, nil when the resource does not
// exist. ACLs and quotas are not fetched and always read as absent.
func (c *Connector) Get(ctx context.Context, path string) (*GetResponse, error) {
	a, err := addr.Decode(path)
	if err != nil {
		return nil, err
	}

	switch a.Kind {
	case addr.KindTopic:
		return c.getTopic(ctx, a)
	case addr.KindAcl:
		c.logger.Warn("ACL fetching not yet implemented", zap.String("cluster", a.Cluster), zap.String("acl", a.Name))
	case addr.KindQuota:
		c.logger.Warn("Quota fetching not yet implemented", zap.String("cluster", a.Cluster), zap.String("quota", a.Name))
	}
	return nil, nil
}

func (c *Connector) getTopic(ctx context.Context, a addr.Address) (*GetResponse, error) {
	var desc *client.TopicDescription
	err := c.registry.Do(ctx, a.Cluster, func(ctx context.Context, admin client.Admin) error {
		var err error
		desc, err = admin.DescribeTopic(ctx, a.Name)
		return err
	})
	if err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, nil
	}

	data, err := resource.Serialize(desc.Topic())
	if err != nil {
		return nil, fmt.Errorf("failed to serialize topic %s: %w", a.Name, err)
	}
	return &GetResponse{ResourceDefinition: data}, nil
}
