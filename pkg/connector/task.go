package connector

import (
	"context"

	"github.com/edgeflare/kafkaform/pkg/kafka/addr"
)

type TaskExecResponse struct {
	State           []byte            `json:"state,omitempty"`
	Outputs         map[string]string `json:"outputs,omitempty"`
	FriendlyMessage string            `json:"friendly_message,omitempty"`
}

// TaskExec runs a task step. No tasks are defined, so every valid address
// completes immediately with an empty response.
func (c *Connector) TaskExec(ctx context.Context, path string, body, arg, state []byte) (*TaskExecResponse, error) {
	if _, err := addr.Decode(path); err != nil {
		return nil, err
	}
	return &TaskExecResponse{}, nil
}
