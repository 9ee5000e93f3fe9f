// Package resource exposes remote models and workflows: it resolves their
// locators, fetches method signatures and drives predict calls through the
// deploying-aware retry loop.
package resource

import (
	"fmt"

	"github.com/morezero/inference-client/pkg/apierr"
	"github.com/morezero/inference-client/pkg/ref"
	"github.com/morezero/inference-client/pkg/transport"
)

// Defaults fill in the owner of resources addressed by id rather than URL.
type Defaults struct {
	UserID string
	AppID  string
}

// RunnerConfig routes model calls to a dedicated deployment.
type RunnerConfig struct {
	NodepoolID   string
	DeploymentID string
	// DeploymentUserID defaults to the model's user.
	DeploymentUserID string
}

// ModelConfig locates a model. Exactly one of URL or ModelID is set, and
// UserID/AppID may only accompany ModelID.
type ModelConfig struct {
	URL            string
	ModelID        string
	ModelVersionID string
	UserID         string
	AppID          string
	Runner         *RunnerConfig
	// SignatureConstraint is an optional semver constraint on the fetched
	// signature version, e.g. "^1.2".
	SignatureConstraint string
}

func invalidConfig(format string, a ...interface{}) *apierr.Error {
	return apierr.New(apierr.CodeInvalidConfig, fmt.Sprintf(format, a...))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c *ModelConfig) resolve(d Defaults) (ref.Ref, error) {
	if c.URL != "" && c.ModelID != "" {
		return ref.Ref{}, invalidConfig("You can only specify one of url or model_id.")
	}
	if c.URL != "" && (c.UserID != "" || c.AppID != "") {
		return ref.Ref{}, invalidConfig("You can only specify one of url or user_id/app_id.")
	}
	if c.URL == "" && c.ModelID == "" {
		return ref.Ref{}, invalidConfig("You must specify one of url or model_id.")
	}

	var r ref.Ref
	if c.URL != "" {
		parsed, err := ref.ParseURL(c.URL)
		if err != nil {
			return ref.Ref{}, &apierr.Error{Code: apierr.CodeInvalidConfig, Message: "invalid model url", Cause: err}
		}
		if parsed.Kind != ref.KindModel {
			return ref.Ref{}, invalidConfig("%s is not a model url", c.URL)
		}
		r = *parsed
	} else {
		r = ref.Ref{
			UserID:     firstNonEmpty(c.UserID, d.UserID),
			AppID:      firstNonEmpty(c.AppID, d.AppID),
			Kind:       ref.KindModel,
			ResourceID: c.ModelID,
		}
	}
	if c.ModelVersionID != "" {
		r.VersionID = c.ModelVersionID
	}
	if err := r.Validate(); err != nil {
		return ref.Ref{}, &apierr.Error{Code: apierr.CodeInvalidConfig, Message: "invalid model locator", Cause: err}
	}
	return r, nil
}

// selector builds the runner selector for r. The deployment user defaults to
// the model's user.
func (c *RunnerConfig) selector(r ref.Ref) *transport.RunnerSelector {
	if c == nil {
		return nil
	}
	return &transport.RunnerSelector{
		NodepoolID:   c.NodepoolID,
		DeploymentID: c.DeploymentID,
		UserID:       firstNonEmpty(c.DeploymentUserID, r.UserID),
	}
}

// WorkflowConfig locates a workflow. Exactly one of URL or WorkflowID is set.
type WorkflowConfig struct {
	URL        string
	WorkflowID string
	VersionID  string
	UserID     string
	AppID      string
	// MinValue filters concept outputs below this score.
	MinValue float64
}

func (c *WorkflowConfig) resolve(d Defaults) (ref.Ref, error) {
	if c.URL != "" && c.WorkflowID != "" {
		return ref.Ref{}, invalidConfig("You can only specify one of url or workflow_id.")
	}
	if c.URL == "" && c.WorkflowID == "" {
		return ref.Ref{}, invalidConfig("You must specify one of url or workflow_id.")
	}

	var r ref.Ref
	if c.URL != "" {
		parsed, err := ref.ParseURL(c.URL)
		if err != nil {
			return ref.Ref{}, &apierr.Error{Code: apierr.CodeInvalidConfig, Message: "invalid workflow url", Cause: err}
		}
		if parsed.Kind != ref.KindWorkflow {
			return ref.Ref{}, invalidConfig("%s is not a workflow url", c.URL)
		}
		r = *parsed
	} else {
		r = ref.Ref{
			UserID:     firstNonEmpty(c.UserID, d.UserID),
			AppID:      firstNonEmpty(c.AppID, d.AppID),
			Kind:       ref.KindWorkflow,
			ResourceID: c.WorkflowID,
			VersionID:  c.VersionID,
		}
	}
	if r.VersionID == "" {
		r.VersionID = c.VersionID
	}
	if err := r.Validate(); err != nil {
		return ref.Ref{}, &apierr.Error{Code: apierr.CodeInvalidConfig, Message: "invalid workflow locator", Cause: err}
	}
	return r, nil
}
