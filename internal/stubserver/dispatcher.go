package stubserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/inference-client/pkg/transport"
)

const dispatchLogPrefix = "stubserver:dispatch"

// Dispatcher routes decoded COMMS requests to a handler.
type Dispatcher struct {
	handler transport.Handler
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(h transport.Handler) *Dispatcher {
	return &Dispatcher{handler: h}
}

// Dispatch decodes data as the envelope for op, calls the handler and wraps
// the outcome in a Reply.
func (d *Dispatcher) Dispatch(ctx context.Context, op transport.Operation, data []byte) *transport.Reply {
	switch op {
	case transport.OpPredict, transport.OpWorkflow:
		var req transport.Request
		if err := transport.Decode(data, &req); err != nil {
			return errorReply("", "INVALID_REQUEST", "Failed to decode request", false)
		}
		slog.Debug(fmt.Sprintf("%s - op=%s id=%s resource=%s", dispatchLogPrefix, op, req.ID, req.ResourceID))
		req.Operation = op
		resp, err := d.handler.Predict(ctx, &req)
		if err != nil {
			return errorReply(req.ID, "INTERNAL_ERROR", err.Error(), true)
		}
		return &transport.Reply{ID: req.ID, Ok: true, Result: resp}

	case transport.OpDescribe:
		var req transport.DescribeRequest
		if err := transport.Decode(data, &req); err != nil {
			return errorReply("", "INVALID_REQUEST", "Failed to decode request", false)
		}
		slog.Debug(fmt.Sprintf("%s - op=%s id=%s resource=%s", dispatchLogPrefix, op, req.ID, req.ResourceID))
		resp, err := d.handler.Describe(ctx, &req)
		if err != nil {
			return errorReply(req.ID, "INTERNAL_ERROR", err.Error(), true)
		}
		return &transport.Reply{ID: req.ID, Ok: true, Result: resp}
	}
	return errorReply("", "OPERATION_NOT_FOUND", fmt.Sprintf("Unknown operation: %s", op), false)
}

func errorReply(id, code, message string, retryable bool) *transport.Reply {
	return &transport.Reply{
		ID: id,
		Ok: false,
		Error: &transport.ErrorDetail{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
	}
}
