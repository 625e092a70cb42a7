package connector

import (
	"context"
	"slices"
	"sort"

	"github.com/edgeflare/kafkaform/pkg/kafka/addr"
	"github.com/edgeflare/kafkaform/pkg/kafka/client"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// List returns the addresses of every topic in the clusters matching
// subpath, sorted. A cluster that cannot be listed is logged and skipped.
func (c *Connector) List(ctx context.Context, subpath string) ([]string, error) {
	var clusters []string
	for _, name := range c.registry.Clusters() {
		if addr.MatchesFilter(addr.ClusterPath(name), subpath) {
			clusters = append(clusters, name)
		}
	}

	found := make([][]string, len(clusters))
	g, ctx := errgroup.WithContext(ctx)
	for i, name := range clusters {
		g.Go(func() error {
			var topics []string
			err := c.registry.Do(ctx, name, func(ctx context.Context, admin client.Admin) error {
				var err error
				topics, err = admin.ListTopics(ctx)
				return err
			})
			if err != nil {
				c.logger.Warn("failed to list topics", zap.String("cluster", name), zap.Error(err))
				return nil
			}

			paths := make([]string, 0, len(topics))
			for _, topic := range topics {
				a := addr.Topic(name, topic)
				if a.Validate() != nil {
					c.logger.Debug("skipping topic without a valid address", zap.String("cluster", name), zap.String("topic", topic))
					continue
				}
				paths = append(paths, addr.Encode(a))
			}
			found[i] = paths

			c.logger.Warn("ACL and quota listing not yet implemented", zap.String("cluster", name))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := slices.Concat(found...)
	sort.Strings(results)
	return results, nil
}
