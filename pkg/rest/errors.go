package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/edgeflare/kafkaform/pkg/config"
	"github.com/edgeflare/kafkaform/pkg/kafka/addr"
	"github.com/edgeflare/kafkaform/pkg/kafka/cluster"
	"github.com/edgeflare/kafkaform/pkg/kafka/exec"
	"github.com/edgeflare/kafkaform/pkg/kafka/op"
	"github.com/edgeflare/kafkaform/pkg/kafka/plan"
	"github.com/edgeflare/kafkaform/pkg/kafka/resource"
)

var badRequest = []error{
	addr.ErrInvalidAddress,
	resource.ErrDeserialize,
	resource.ErrKindMismatch,
	resource.ErrNotResource,
	plan.ErrImmutableField,
	plan.ErrUnsupportedTransition,
	op.ErrMalformed,
	exec.ErrInvalidOp,
	config.ErrInvalidConnector,
}

// statusFor maps a connector error to an HTTP status code.
func statusFor(err error) int {
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}

	var remote *exec.RemoteOperationError
	switch {
	case errors.Is(err, cluster.ErrClusterNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &remote), errors.Is(err, exec.ErrNoResultReturned):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
