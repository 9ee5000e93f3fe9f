package resource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/morezero/inference-client/pkg/args"
	"github.com/morezero/inference-client/pkg/deploy"
	"github.com/morezero/inference-client/pkg/parts"
	"github.com/morezero/inference-client/pkg/ref"
	"github.com/morezero/inference-client/pkg/sigcache"
	"github.com/morezero/inference-client/pkg/signature"
	"github.com/morezero/inference-client/pkg/transport"
	"github.com/morezero/inference-client/pkg/validate"
)

const logPrefix = "resource:model"

// Deps are the collaborators shared by resource handles.
type Deps struct {
	// Transport is required.
	Transport transport.Handler
	// Signatures defaults to a describe call over Transport.
	Signatures signature.Source
	// Cache is an optional signature cache shared between handles.
	Cache sigcache.Cache
	// Driver defaults to a zero Driver.
	Driver *deploy.Driver
}

func (d Deps) driver() *deploy.Driver {
	if d.Driver == nil {
		return &deploy.Driver{}
	}
	return d.Driver
}

// Model is a handle on one remote model.
type Model struct {
	ref       ref.Ref
	runner    *transport.RunnerSelector
	transport transport.Handler
	resolver  *sigcache.Resolver
	driver    *deploy.Driver

	mu   sync.Mutex
	sigs *signature.Set
}

// NewModel resolves cfg against defaults and returns a handle.
func NewModel(cfg ModelConfig, defaults Defaults, deps Deps) (*Model, error) {
	r, err := cfg.resolve(defaults)
	if err != nil {
		return nil, err
	}
	if deps.Transport == nil {
		return nil, invalidConfig("a transport is required")
	}
	src := deps.Signatures
	if src == nil {
		src = &transport.DescribeSource{Handler: deps.Transport}
	}
	return &Model{
		ref:       r,
		runner:    cfg.Runner.selector(r),
		transport: deps.Transport,
		resolver:  &sigcache.Resolver{Source: src, Cache: deps.Cache, Constraint: cfg.SignatureConstraint},
		driver:    deps.driver(),
	}, nil
}

// Ref returns the model locator.
func (m *Model) Ref() ref.Ref {
	return m.ref
}

// signatures fetches the method signatures once per handle.
func (m *Model) signatures(ctx context.Context) (*signature.Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sigs != nil {
		return m.sigs, nil
	}
	set, err := m.resolver.Describe(ctx, m.ref)
	if err != nil {
		return nil, err
	}
	slog.Debug(fmt.Sprintf("%s - fetched %d method signatures for %s", logPrefix, len(set.Methods), m.ref.String()))
	m.sigs = set
	return set, nil
}

// AvailableMethods lists the model's method names in signature order.
func (m *Model) AvailableMethods(ctx context.Context) ([]string, error) {
	set, err := m.signatures(ctx)
	if err != nil {
		return nil, err
	}
	return set.Names(), nil
}

// MethodSignature returns the signature of one method.
func (m *Model) MethodSignature(ctx context.Context, name string) (*signature.Method, error) {
	set, err := m.signatures(ctx)
	if err != nil {
		return nil, err
	}
	return set.Method(name)
}

// Encode validates in against method and returns the single input a predict
// call carries: payload parts followed by parameter parts.
func Encode(method *signature.Method, in *args.Args) (transport.Input, error) {
	if in == nil {
		in = args.New()
	}
	params := method.Params()
	if err := validate.Params(paramView(in, method.InputFields), params); err != nil {
		return transport.Input{}, err
	}
	c, err := parts.Classify(in, method.InputFields)
	if err != nil {
		return transport.Input{}, err
	}
	payload, err := parts.EncodePayload(c.Payload, method.Payload())
	if err != nil {
		return transport.Input{}, err
	}
	paramParts, err := parts.EncodeParams(c.Params, params)
	if err != nil {
		return transport.Input{}, err
	}
	return transport.Input{Data: parts.WireData{Parts: append(payload, paramParts...)}}, nil
}

// paramView selects the arguments the validator sees: parameter-role keys
// and undeclared keys, so unknown names are rejected before encoding.
func paramView(in *args.Args, fields []signature.FieldSpec) *args.Args {
	out := args.New()
	in.Each(func(key string, v interface{}) bool {
		if f := signature.Find(fields, key); f == nil || f.IsParam {
			out.Set(key, v)
		}
		return true
	})
	return out
}

// Predict calls method with in, retrying while the model is deploying.
func (m *Model) Predict(ctx context.Context, method string, in *args.Args) (*transport.Response, error) {
	sig, err := m.MethodSignature(ctx, method)
	if err != nil {
		return nil, err
	}
	input, err := Encode(sig, in)
	if err != nil {
		return nil, err
	}
	return m.call(ctx, method, []transport.Input{input})
}

// Generate is Predict with the "generate" method.
func (m *Model) Generate(ctx context.Context, in *args.Args) (*transport.Response, error) {
	return m.Predict(ctx, "generate", in)
}

// PredictInputs sends caller-built inputs without consulting signatures.
func (m *Model) PredictInputs(ctx context.Context, inputs []transport.Input) (*transport.Response, error) {
	return m.call(ctx, "", inputs)
}

func (m *Model) call(ctx context.Context, method string, inputs []transport.Input) (*transport.Response, error) {
	req := &transport.Request{
		ID:         uuid.NewString(),
		Operation:  transport.OpPredict,
		UserAppID:  transport.UserAppID{UserID: m.ref.UserID, AppID: m.ref.AppID},
		ResourceID: m.ref.ResourceID,
		VersionID:  m.ref.VersionID,
		Method:     method,
		Inputs:     inputs,
		Runner:     m.runner,
	}
	op := deploy.Op{Name: "Model Predict", Operation: transport.OpPredict, Resource: m.ref}
	return m.driver.Call(ctx, op, func(ctx context.Context) (*transport.Response, error) {
		return m.transport.Predict(ctx, req)
	})
}

// OutputData returns the data of the first output of a predict response.
func OutputData(resp *transport.Response) (*parts.WireData, error) {
	if resp == nil || len(resp.Outputs) == 0 {
		return nil, fmt.Errorf("%s - response carries no outputs", logPrefix)
	}
	return &resp.Outputs[0].Data, nil
}
