// Package deploy drives a remote call to completion while its target resource
// is still deploying.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/morezero/inference-client/pkg/apierr"
	"github.com/morezero/inference-client/pkg/backoff"
	"github.com/morezero/inference-client/pkg/events"
	"github.com/morezero/inference-client/pkg/ref"
	"github.com/morezero/inference-client/pkg/transport"
)

const logPrefix = "deploy:driver"

// DefaultCeiling is how long a deploying resource is waited on before the
// call fails.
const DefaultCeiling = 600 * time.Second

// Op describes the call being driven.
type Op struct {
	// Name prefixes failure messages, e.g. "Model Predict".
	Name      string
	Operation transport.Operation
	Resource  ref.Ref
}

// AttemptFunc performs one remote call.
type AttemptFunc func(ctx context.Context) (*transport.Response, error)

// Driver retries calls against deploying resources with backoff until a
// wall-clock ceiling. A Driver holds no per-call state and may be shared.
type Driver struct {
	// Clock defaults to the wall clock.
	Clock clock.Clock
	// Ceiling defaults to DefaultCeiling.
	Ceiling time.Duration
	// Publisher is notified on every retry. Optional.
	Publisher events.EventPublisher
	// Metrics is optional.
	Metrics *Metrics
	// Tracer defaults to the global tracer provider.
	Tracer trace.Tracer
}

func (d *Driver) clock() clock.Clock {
	if d.Clock == nil {
		return clock.WallClock
	}
	return d.Clock
}

func (d *Driver) ceiling() time.Duration {
	if d.Ceiling <= 0 {
		return DefaultCeiling
	}
	return d.Ceiling
}

func (d *Driver) tracer() trace.Tracer {
	if d.Tracer == nil {
		return otel.Tracer("github.com/morezero/inference-client/pkg/deploy")
	}
	return d.Tracer
}

// Call issues attempt until it returns a final status.
//
// A transport error ends the call immediately with TRANSPORT_FAILURE. A
// deploying status seen before the ceiling schedules another attempt after
// backoff.Delay; any other non-success status, including deploying after the
// ceiling, ends the call with REMOTE_STATUS_FAILURE carrying that status.
func (d *Driver) Call(ctx context.Context, op Op, attempt AttemptFunc) (*transport.Response, error) {
	clk := d.clock()
	ceiling := d.ceiling()
	start := clk.Now()

	ctx, span := d.tracer().Start(ctx, op.Name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("inference.operation", string(op.Operation)),
			attribute.String("inference.resource", op.Resource.String()),
		),
	)
	defer span.End()

	var (
		resp     *transport.Response
		final    error
		attempts int
	)
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			attempts++
			span.SetAttributes(attribute.Int("inference.attempts", attempts))
			r, err := attempt(ctx)
			if err != nil {
				d.Metrics.attempt(op.Name, OutcomeTransport)
				d.Metrics.call(op.Name, OutcomeTransport)
				span.RecordError(err)
				span.SetStatus(codes.Error, "transport failure")
				final = apierr.Transport(op.Name, err)
				return final
			}
			resp = r
			return d.classify(op, span, r.Status, clk.Now().Sub(start), ceiling, &final)
		},
		IsFatalError: func(err error) bool {
			return err != errStillDeploying
		},
		NotifyFunc: func(_ error, i int) {
			n := i - 1
			delay := backoff.Delay(n)
			d.Metrics.attempt(op.Name, OutcomeDeploying)
			slog.Info(fmt.Sprintf("%s - %s is still deploying, please wait...", logPrefix, op.Resource.ResourceID))
			span.AddEvent("deploying", trace.WithAttributes(
				attribute.Int("attempt", n),
				attribute.Int64("delay_ms", delay.Milliseconds()),
			))
			d.publish(ctx, clk, op, n, delay, clk.Now().Sub(start), resp.Status)
			d.Metrics.wait(op.Name, delay.Seconds())
		},
		Attempts: -1,
		Delay:    backoff.First,
		BackoffFunc: func(_ time.Duration, i int) time.Duration {
			return backoff.Delay(i - 1)
		},
		Clock: clk,
		Stop:  ctx.Done(),
	})
	switch {
	case err == nil:
		d.Metrics.attempt(op.Name, OutcomeSuccess)
		d.Metrics.call(op.Name, OutcomeSuccess)
		span.SetStatus(codes.Ok, "")
		return resp, nil
	case final != nil:
		return nil, final
	case ctx.Err() != nil:
		d.Metrics.call(op.Name, OutcomeFailure)
		span.RecordError(ctx.Err())
		span.SetStatus(codes.Error, "cancelled")
		return nil, fmt.Errorf("%s - %s cancelled while %s was deploying: %w",
			logPrefix, op.Name, op.Resource.ResourceID, ctx.Err())
	default:
		return nil, fmt.Errorf("%s - %s: %w", logPrefix, op.Name, err)
	}
}

// errStillDeploying is the only retryable attempt outcome.
var errStillDeploying = errors.New("still deploying")

// classify maps one response status to nil (done), errStillDeploying (retry),
// or a final failure stored in final.
func (d *Driver) classify(op Op, span trace.Span, st transport.Status, elapsed, ceiling time.Duration, final *error) error {
	span.SetAttributes(attribute.Int("inference.status_code", st.Code))
	switch {
	case st.Code == transport.StatusModelDeploying && elapsed < ceiling:
		return errStillDeploying
	case st.Code != transport.StatusSuccess:
		d.Metrics.attempt(op.Name, OutcomeFailure)
		d.Metrics.call(op.Name, OutcomeFailure)
		span.SetStatus(codes.Error, st.Description)
		if st.Code == transport.StatusModelDeploying {
			slog.Warn(fmt.Sprintf("%s - %s still deploying after %s, giving up", logPrefix, op.Resource.ResourceID, elapsed))
		}
		*final = apierr.RemoteStatus(op.Name, st.Description, st)
		return *final
	}
	return nil
}

func (d *Driver) publish(ctx context.Context, clk clock.Clock, op Op, n int, delay, elapsed time.Duration, st transport.Status) {
	if d.Publisher == nil {
		return
	}
	event := &events.DeployingEvent{
		UserID:      op.Resource.UserID,
		AppID:       op.Resource.AppID,
		ResourceID:  op.Resource.ResourceID,
		Operation:   string(op.Operation),
		Attempt:     n,
		DelayMs:     delay.Milliseconds(),
		ElapsedMs:   elapsed.Milliseconds(),
		StatusCode:  st.Code,
		Description: st.Description,
		Timestamp:   clk.Now().UTC().Format(time.RFC3339),
	}
	if err := d.Publisher.PublishDeploying(ctx, event); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish deploying event: %v", logPrefix, err))
	}
}
