package connector

import (
	"context"
	"encoding/json"
	"time"

	"github.com/edgeflare/kafkaform/pkg/kafka/addr"
	"github.com/edgeflare/kafkaform/pkg/kafka/op"
	"github.com/edgeflare/kafkaform/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OpExecResponse struct {
	Outputs         map[string]string `json:"outputs,omitempty"`
	FriendlyMessage string            `json:"friendly_message,omitempty"`
}

// OpExec decodes an op in its wire form and executes it against path. The
// outcome is recorded in the audit trail whether or not it succeeded.
func (c *Connector) OpExec(ctx context.Context, path string, opDefinition string) (*OpExecResponse, error) {
	a, err := addr.Decode(path)
	if err != nil {
		return nil, err
	}
	o, err := op.Unmarshal([]byte(opDefinition))
	if err != nil {
		return nil, err
	}

	res, err := c.executor.Exec(ctx, a, o)
	rec := auditRecord{
		ID:      uuid.NewString(),
		Address: addr.Encode(a),
		Op:      o.Name(),
		Time:    time.Now().UTC(),
	}
	if err != nil {
		rec.Error = err.Error()
		c.record(ctx, rec)
		return nil, err
	}
	rec.Message = res.Message
	rec.NotImplemented = res.NotImplemented
	c.record(ctx, rec)

	return &OpExecResponse{Outputs: res.Outputs, FriendlyMessage: res.Message}, nil
}

type auditRecord struct {
	ID             string    `json:"id"`
	Address        string    `json:"address"`
	Op             string    `json:"op"`
	Message        string    `json:"message,omitempty"`
	NotImplemented bool      `json:"not_implemented,omitempty"`
	Error          string    `json:"error,omitempty"`
	Time           time.Time `json:"time"`
}

// record logs rec and publishes it to the audit topic when one is
// configured. Publish failures never fail the op.
func (c *Connector) record(ctx context.Context, rec auditRecord) {
	c.logger.Info("audit",
		zap.String("id", rec.ID),
		zap.String("address", rec.Address),
		zap.String("op", rec.Op),
		zap.String("message", rec.Message),
		zap.String("error", rec.Error))

	c.auditMu.Lock()
	pub := c.audit
	c.auditMu.Unlock()
	if pub == nil {
		return
	}

	data, err := json.Marshal(rec)
	if err != nil {
		c.logger.Error("failed to encode audit record", zap.String("id", rec.ID), zap.Error(err))
		return
	}
	if err := pub.Publish(ctx, rec.Address, data); err != nil {
		metrics.AuditPublishErrors.Inc()
		c.logger.Warn("failed to publish audit record", zap.String("id", rec.ID), zap.Error(err))
	}
}
