// Package stubserver is a development server that plays the remote side of
// the inference protocol: it answers describe calls from a signature file and
// predict calls with a scripted run of deploying statuses before succeeding.
package stubserver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/morezero/inference-client/pkg/ref"
	"github.com/morezero/inference-client/pkg/signature"
	"github.com/morezero/inference-client/pkg/transport"
)

const backendLogPrefix = "stubserver:backend"

// StatusFailure is returned for requests naming a method the resource does
// not publish.
const StatusFailure = 10020

// Backend answers transport requests. It implements transport.Handler.
type Backend struct {
	signatures signature.Source
	deploying  int

	mu    sync.Mutex
	calls map[string]int

	requests *prometheus.CounterVec
}

// BackendOpts configures a Backend.
type BackendOpts struct {
	Signatures signature.Source
	// DeployingCalls is how many predict calls per resource answer
	// MODEL_DEPLOYING before the resource is ready.
	DeployingCalls int
	// Registerer receives the stub's request counter. Optional.
	Registerer prometheus.Registerer
}

// NewBackend creates a Backend.
func NewBackend(opts BackendOpts) *Backend {
	b := &Backend{
		signatures: opts.Signatures,
		deploying:  opts.DeployingCalls,
		calls:      make(map[string]int),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inference_stub",
			Name:      "requests_total",
			Help:      "Requests answered by the stub server.",
		}, []string{"operation", "code"}),
	}
	if opts.Registerer != nil {
		opts.Registerer.MustRegister(b.requests)
	}
	return b
}

// Requests exposes the request counter.
func (b *Backend) Requests() *prometheus.CounterVec {
	return b.requests
}

func requestRef(kind ref.Kind, app transport.UserAppID, id, version string) ref.Ref {
	return ref.Ref{UserID: app.UserID, AppID: app.AppID, Kind: kind, ResourceID: id, VersionID: version}
}

// ready counts a call against the resource and reports whether it has
// finished deploying.
func (b *Backend) ready(key string) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.calls[key]
	b.calls[key] = n + 1
	return n, n >= b.deploying
}

// Reset forgets every resource's call count.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = make(map[string]int)
}

// Predict answers predict and workflow requests.
func (b *Backend) Predict(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	kind := ref.KindModel
	if req.Operation == transport.OpWorkflow {
		kind = ref.KindWorkflow
	}
	r := requestRef(kind, req.UserAppID, req.ResourceID, req.VersionID)
	resp := &transport.Response{ID: req.ID}

	if n, ok := b.ready(r.String()); !ok {
		slog.Debug(fmt.Sprintf("%s - %s deploying (call %d of %d)", backendLogPrefix, r.String(), n+1, b.deploying))
		resp.Status = transport.Status{Code: transport.StatusModelDeploying, Description: "Model is deploying"}
		b.count(req.Operation, resp.Status.Code)
		return resp, nil
	}

	if req.Method != "" && b.signatures != nil {
		set, err := b.signatures.Describe(ctx, r)
		if err != nil {
			return nil, err
		}
		if _, err := set.Method(req.Method); err != nil {
			resp.Status = transport.Status{Code: StatusFailure, Description: "Failure", Details: err.Error()}
			b.count(req.Operation, resp.Status.Code)
			return resp, nil
		}
	}

	resp.Status = transport.Status{Code: transport.StatusSuccess, Description: "Ok"}
	outputs := make([]transport.Output, len(req.Inputs))
	for i := range req.Inputs {
		in := req.Inputs[i]
		outputs[i] = transport.Output{
			ID:     fmt.Sprintf("out-%d", i),
			Status: &transport.Status{Code: transport.StatusSuccess},
			Input:  &in,
			Data:   in.Data,
		}
	}
	if req.Operation == transport.OpWorkflow {
		resp.Results = make([]transport.WorkflowResult, len(outputs))
		for i := range outputs {
			resp.Results[i] = transport.WorkflowResult{
				ID:      outputs[i].ID,
				Status:  outputs[i].Status,
				Input:   outputs[i].Input,
				Outputs: []transport.Output{outputs[i]},
			}
		}
		if req.WorkflowStateID != "" {
			resp.WorkflowState = &transport.WorkflowState{ID: req.WorkflowStateID}
		}
	} else {
		resp.Outputs = outputs
	}
	b.count(req.Operation, resp.Status.Code)
	return resp, nil
}

// Describe answers describe requests from the signature source.
func (b *Backend) Describe(ctx context.Context, req *transport.DescribeRequest) (*transport.DescribeResponse, error) {
	resp := &transport.DescribeResponse{ID: req.ID}
	if b.signatures == nil {
		resp.Status = transport.Status{Code: transport.StatusSuccess, Description: "Ok"}
		b.count(transport.OpDescribe, resp.Status.Code)
		return resp, nil
	}
	set, err := b.signatures.Describe(ctx, requestRef(ref.KindModel, req.UserAppID, req.ResourceID, req.VersionID))
	if err != nil {
		return nil, err
	}
	resp.Status = transport.Status{Code: transport.StatusSuccess, Description: "Ok"}
	resp.Version = set.Version
	resp.Methods = set.Methods
	b.count(transport.OpDescribe, resp.Status.Code)
	return resp, nil
}

func (b *Backend) count(op transport.Operation, code int) {
	b.requests.WithLabelValues(string(op), fmt.Sprint(code)).Inc()
}
