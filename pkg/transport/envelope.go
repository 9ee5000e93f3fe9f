// Package transport carries encoded inference requests to the platform over
// COMMS (NATS request/reply) or gRPC.
package transport

import (
	"github.com/morezero/inference-client/pkg/parts"
	"github.com/morezero/inference-client/pkg/signature"
)

// Operation names the remote call a Request performs.
type Operation string

const (
	OpPredict  Operation = "predict"
	OpWorkflow Operation = "workflow"
	OpDescribe Operation = "describe"
)

// Platform status codes.
const (
	StatusSuccess = 10000
	// StatusModelDeploying means the resource is not ready yet and the call
	// should be retried.
	StatusModelDeploying = 21350
)

// UserAppID scopes a request to an application.
type UserAppID struct {
	UserID string `json:"user_id"`
	AppID  string `json:"app_id"`
}

// Input is one input of a predict or workflow request.
type Input struct {
	ID   string         `json:"id,omitempty"`
	Data parts.WireData `json:"data"`
}

// RunnerSelector routes a model call to a dedicated deployment.
type RunnerSelector struct {
	NodepoolID   string `json:"nodepool_id,omitempty"`
	DeploymentID string `json:"deployment_id,omitempty"`
	// UserID owns the deployment.
	UserID string `json:"user_id,omitempty"`
}

// OutputConfig tunes workflow outputs.
type OutputConfig struct {
	MinValue float64 `json:"min_value,omitempty"`
}

// Request is the envelope for predict and workflow calls.
type Request struct {
	ID              string          `json:"id"`
	Operation       Operation       `json:"operation"`
	UserAppID       UserAppID       `json:"user_app_id"`
	ResourceID      string          `json:"resource_id"`
	VersionID       string          `json:"version_id,omitempty"`
	Method          string          `json:"method,omitempty"`
	Inputs          []Input         `json:"inputs"`
	Runner          *RunnerSelector `json:"runner_selector,omitempty"`
	OutputConfig    *OutputConfig   `json:"output_config,omitempty"`
	WorkflowStateID string          `json:"workflow_state_id,omitempty"`
}

// Status is the platform outcome of a call.
type Status struct {
	Code        int    `json:"code"`
	Description string `json:"description,omitempty"`
	Details     string `json:"details,omitempty"`
}

// Output is one result produced for an input.
type Output struct {
	ID     string         `json:"id,omitempty"`
	Status *Status        `json:"status,omitempty"`
	Input  *Input         `json:"input,omitempty"`
	Data   parts.WireData `json:"data"`
}

// WorkflowState identifies server-side workflow state reusable across calls.
type WorkflowState struct {
	ID string `json:"id"`
}

// WorkflowResult holds the outputs every workflow node produced for one input.
type WorkflowResult struct {
	ID      string   `json:"id,omitempty"`
	Status  *Status  `json:"status,omitempty"`
	Input   *Input   `json:"input,omitempty"`
	Outputs []Output `json:"outputs,omitempty"`
}

// Response is the envelope returned for predict and workflow calls.
type Response struct {
	ID            string           `json:"id"`
	Status        Status           `json:"status"`
	Outputs       []Output         `json:"outputs,omitempty"`
	Results       []WorkflowResult `json:"results,omitempty"`
	WorkflowState *WorkflowState   `json:"workflow_state,omitempty"`
}

// DescribeRequest asks a resource for its method signatures.
type DescribeRequest struct {
	ID         string    `json:"id"`
	UserAppID  UserAppID `json:"user_app_id"`
	ResourceID string    `json:"resource_id"`
	VersionID  string    `json:"version_id,omitempty"`
}

// DescribeResponse lists the method signatures of a resource.
type DescribeResponse struct {
	ID      string             `json:"id"`
	Status  Status             `json:"status"`
	Version string             `json:"version,omitempty"`
	Methods []signature.Method `json:"methods,omitempty"`
}

// Reply wraps every COMMS response. Ok is false only when the request could
// not be handled at all; platform statuses travel inside Result.
type Reply struct {
	ID     string       `json:"id"`
	Ok     bool         `json:"ok"`
	Result interface{}  `json:"result,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail describes a request that failed before reaching a resource.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}
