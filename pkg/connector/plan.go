package connector

import (
	"context"
	"fmt"

	"github.com/edgeflare/kafkaform/pkg/kafka/addr"
	"github.com/edgeflare/kafkaform/pkg/kafka/op"
	"github.com/edgeflare/kafkaform/pkg/kafka/plan"
	"github.com/edgeflare/kafkaform/pkg/metrics"
	"go.uber.org/zap"
)

// PlanStep is a planned op in its wire form.
type PlanStep struct {
	Op              string `json:"op_definition"`
	FriendlyMessage string `json:"friendly_message,omitempty"`
}

// Plan computes the ops that turn current into desired at path. A nil
// payload means the resource is absent on that side.
func (c *Connector) Plan(ctx context.Context, path string, current, desired []byte) ([]PlanStep, error) {
	a, err := addr.Decode(path)
	if err != nil {
		return nil, err
	}

	steps, err := plan.Plan(a, current, desired)
	if err != nil {
		metrics.Plans.WithLabelValues(a.Kind.String(), metrics.ResultError).Inc()
		c.logger.Debug("plan rejected", zap.Stringer("address", a), zap.Error(err))
		return nil, err
	}
	metrics.Plans.WithLabelValues(a.Kind.String(), metrics.ResultOK).Inc()

	out := make([]PlanStep, 0, len(steps))
	for _, s := range steps {
		data, err := op.Marshal(s.Op)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", s.Op.Name(), err)
		}
		out = append(out, PlanStep{Op: string(data), FriendlyMessage: s.Description})
	}
	return out, nil
}
