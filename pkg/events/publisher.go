package events

import "context"

// EventPublisher is the interface for publishing deploying events.
type EventPublisher interface {
	PublishDeploying(ctx context.Context, event *DeployingEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing.
type NoOpPublisher struct{}

// PublishDeploying is a no-op.
func (p *NoOpPublisher) PublishDeploying(_ context.Context, _ *DeployingEvent) error {
	return nil
}

// CallbackPublisher is an EventPublisher that calls a callback function.
type CallbackPublisher struct {
	callback func(ctx context.Context, event *DeployingEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *DeployingEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishDeploying calls the callback.
func (p *CallbackPublisher) PublishDeploying(ctx context.Context, event *DeployingEvent) error {
	return p.callback(ctx, event)
}
