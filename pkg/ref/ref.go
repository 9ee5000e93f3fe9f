// Package ref parses platform resource locators and checks signature version constraints.
package ref

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const logPrefix = "ref:parser"

// Kind is the resource family a locator points at.
type Kind string

const (
	KindModel    Kind = "models"
	KindWorkflow Kind = "workflows"
)

// Ref identifies one remote resource.
type Ref struct {
	UserID     string
	AppID      string
	Kind       Kind
	ResourceID string
	// VersionID is empty when the locator does not pin a version.
	VersionID string
}

var (
	idRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)
)

// ParseURL parses a platform URL.
//
// Supported formats:
//   - https://clarifai.com/<user>/<app>/models/<id>
//   - https://clarifai.com/<user>/<app>/models/<id>/model_version/<version>
//   - https://clarifai.com/<user>/<app>/models/<id>/versions/<version>
//   - https://clarifai.com/<user>/<app>/workflows/<id>[/versions/<version>]
func ParseURL(raw string) (*Ref, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%s - invalid url %q: %w", logPrefix, raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s - url must be absolute: %s", logPrefix, raw)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) != 4 && len(segments) != 6 {
		return nil, fmt.Errorf("%s - unexpected url path %q, want /<user>/<app>/<models|workflows>/<id>[/<versions>/<version>]", logPrefix, u.Path)
	}

	r := &Ref{
		UserID:     segments[0],
		AppID:      segments[1],
		Kind:       Kind(segments[2]),
		ResourceID: segments[3],
	}
	if r.Kind != KindModel && r.Kind != KindWorkflow {
		return nil, fmt.Errorf("%s - unsupported resource type %q in %s", logPrefix, segments[2], raw)
	}
	if len(segments) == 6 {
		if segments[4] != "versions" && segments[4] != "model_version" {
			return nil, fmt.Errorf("%s - unexpected version segment %q in %s", logPrefix, segments[4], raw)
		}
		r.VersionID = segments[5]
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks that all identifiers are present and well formed.
func (r *Ref) Validate() error {
	ids := []struct{ name, value string }{
		{"user", r.UserID},
		{"app", r.AppID},
		{"resource", r.ResourceID},
	}
	for _, id := range ids {
		if !idRegex.MatchString(id.value) {
			return fmt.Errorf("%s - invalid %s id %q", logPrefix, id.name, id.value)
		}
	}
	if r.VersionID != "" && !idRegex.MatchString(r.VersionID) {
		return fmt.Errorf("%s - invalid version id %q", logPrefix, r.VersionID)
	}
	return nil
}

// String returns the canonical key "<user>/<app>/<kind>/<id>[@<version>]".
func (r Ref) String() string {
	base := fmt.Sprintf("%s/%s/%s/%s", r.UserID, r.AppID, r.Kind, r.ResourceID)
	if r.VersionID != "" {
		return base + "@" + r.VersionID
	}
	return base
}

// Subject builds a COMMS subject for an operation on this resource.
func (r Ref) Subject(prefix, op string) string {
	safe := func(s string) string { return strings.ReplaceAll(s, ".", "_") }
	return fmt.Sprintf("%s.%s.%s.%s.%s", prefix, op, safe(r.UserID), safe(r.AppID), safe(r.ResourceID))
}
