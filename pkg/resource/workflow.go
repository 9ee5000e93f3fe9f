package resource

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/morezero/inference-client/pkg/apierr"
	"github.com/morezero/inference-client/pkg/deploy"
	"github.com/morezero/inference-client/pkg/ref"
	"github.com/morezero/inference-client/pkg/transport"
)

// MaxWorkflowInputs is the most inputs one workflow call accepts.
const MaxWorkflowInputs = 32

// Workflow is a handle on one remote workflow.
type Workflow struct {
	ref       ref.Ref
	output    *transport.OutputConfig
	transport transport.Handler
	driver    *deploy.Driver
}

// NewWorkflow resolves cfg against defaults and returns a handle.
func NewWorkflow(cfg WorkflowConfig, defaults Defaults, deps Deps) (*Workflow, error) {
	r, err := cfg.resolve(defaults)
	if err != nil {
		return nil, err
	}
	if deps.Transport == nil {
		return nil, invalidConfig("a transport is required")
	}
	w := &Workflow{ref: r, transport: deps.Transport, driver: deps.driver()}
	if cfg.MinValue != 0 {
		w.output = &transport.OutputConfig{MinValue: cfg.MinValue}
	}
	return w, nil
}

// Ref returns the workflow locator.
func (w *Workflow) Ref() ref.Ref {
	return w.ref
}

// Predict runs the workflow on inputs, retrying while it is deploying.
// stateID is optional and reuses server-side workflow state.
func (w *Workflow) Predict(ctx context.Context, inputs []transport.Input, stateID string) (*transport.Response, error) {
	if len(inputs) > MaxWorkflowInputs {
		return nil, apierr.New(apierr.CodeTooManyInputs,
			fmt.Sprintf("Too many inputs. Max is %d.", MaxWorkflowInputs))
	}
	req := &transport.Request{
		ID:              uuid.NewString(),
		Operation:       transport.OpWorkflow,
		UserAppID:       transport.UserAppID{UserID: w.ref.UserID, AppID: w.ref.AppID},
		ResourceID:      w.ref.ResourceID,
		VersionID:       w.ref.VersionID,
		Inputs:          inputs,
		OutputConfig:    w.output,
		WorkflowStateID: stateID,
	}
	op := deploy.Op{Name: "Workflow Predict", Operation: transport.OpWorkflow, Resource: w.ref}
	return w.driver.Call(ctx, op, func(ctx context.Context) (*transport.Response, error) {
		return w.transport.Predict(ctx, req)
	})
}
