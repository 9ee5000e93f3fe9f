package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/inference-client/pkg/ref"
	"github.com/morezero/inference-client/pkg/transport"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// SubjectDeploying is the global subject deploying events are published on
// under the default prefix.
const SubjectDeploying = transport.DefaultSubjectPrefix + ".deploying"

// DeployingSubject returns the global deploying subject under prefix.
func DeployingSubject(prefix string) string {
	return prefix + ".deploying"
}

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// SubjectPrefix roots the per-resource subject. Defaults to "inference".
	SubjectPrefix string
	// GlobalSubject overrides DeployingSubject(SubjectPrefix).
	GlobalSubject string
}

// CommsPublisher publishes deploying events to COMMS subjects.
type CommsPublisher struct {
	nc            *comms.Conn
	prefix        string
	globalSubject string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	p := &CommsPublisher{nc: nc, prefix: transport.DefaultSubjectPrefix}
	if opts != nil {
		if opts.SubjectPrefix != "" {
			p.prefix = opts.SubjectPrefix
		}
		p.globalSubject = opts.GlobalSubject
	}
	if p.globalSubject == "" {
		p.globalSubject = DeployingSubject(p.prefix)
	}
	return p
}

// GlobalSubject returns the subject every event is published on.
func (p *CommsPublisher) GlobalSubject() string {
	return p.globalSubject
}

// ResourceSubject returns the per-resource subject, e.g.
// "inference.deploying.<user>.<app>.<resource>".
func (p *CommsPublisher) ResourceSubject(event *DeployingEvent) string {
	r := ref.Ref{UserID: event.UserID, AppID: event.AppID, ResourceID: event.ResourceID}
	return r.Subject(p.prefix, "deploying")
}

// PublishDeploying publishes a DeployingEvent to both the per-resource and
// global subjects.
func (p *CommsPublisher) PublishDeploying(_ context.Context, event *DeployingEvent) error {
	data, err := transport.Encode(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	subject := p.ResourceSubject(event)
	if err := p.nc.Publish(subject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, subject, err))
		return err
	}

	if err := p.nc.Publish(p.globalSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, p.globalSubject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - Published deploying event for %s attempt %d", commsPublisherLogPrefix, event.ResourceID, event.Attempt))
	return nil
}
