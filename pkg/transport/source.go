package transport

import (
	"context"

	"github.com/google/uuid"

	"github.com/morezero/inference-client/pkg/apierr"
	"github.com/morezero/inference-client/pkg/ref"
	"github.com/morezero/inference-client/pkg/signature"
)

// DescribeSource fetches signatures with a describe call.
type DescribeSource struct {
	Handler Handler
}

// Describe implements signature.Source.
func (s *DescribeSource) Describe(ctx context.Context, r ref.Ref) (*signature.Set, error) {
	resp, err := s.Handler.Describe(ctx, &DescribeRequest{
		ID:         uuid.NewString(),
		UserAppID:  UserAppID{UserID: r.UserID, AppID: r.AppID},
		ResourceID: r.ResourceID,
		VersionID:  r.VersionID,
	})
	if err != nil {
		return nil, apierr.Transport("Describe", err)
	}
	if resp.Status.Code != StatusSuccess {
		return nil, apierr.RemoteStatus("Describe", resp.Status.Description, resp.Status)
	}
	set := &signature.Set{Resource: r.String(), Version: resp.Version, Methods: resp.Methods}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}
