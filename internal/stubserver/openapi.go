package stubserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/morezero/inference-client/pkg/signature"
	"github.com/morezero/inference-client/pkg/transport"
)

// openAPI3 types for generating specs from describe output.
type openAPI3Spec struct {
	OpenAPI string                      `json:"openapi"`
	Info    openAPI3Info                `json:"info"`
	Paths   map[string]openAPI3PathItem `json:"paths"`
}

type openAPI3Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

type openAPI3PathItem struct {
	Post *openAPI3Operation `json:"post,omitempty"`
}

type openAPI3Operation struct {
	Summary     string                      `json:"summary"`
	OperationID string                      `json:"operationId"`
	RequestBody *openAPI3RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]openAPI3Response `json:"responses"`
}

type openAPI3RequestBody struct {
	Required bool                         `json:"required"`
	Content  map[string]openAPI3MediaType `json:"content"`
}

type openAPI3Response struct {
	Description string `json:"description"`
}

type openAPI3MediaType struct {
	Schema map[string]interface{} `json:"schema,omitempty"`
}

// fieldSchema maps a declared field to a JSON schema fragment.
func fieldSchema(f signature.FieldSpec) map[string]interface{} {
	schema := map[string]interface{}{}
	switch f.Type {
	case signature.KindStr, signature.KindText:
		schema["type"] = "string"
	case signature.KindInt:
		schema["type"] = "integer"
	case signature.KindFloat:
		schema["type"] = "number"
	case signature.KindBool:
		schema["type"] = "boolean"
	case signature.KindBytes:
		schema["type"] = "string"
		schema["format"] = "byte"
	case signature.KindJSONData:
		schema["type"] = "object"
	case signature.KindNamedFields:
		schema["type"] = "object"
		if len(f.TypeArgs) > 0 {
			schema["properties"] = fieldProperties(f.TypeArgs)
		}
	case signature.KindList, signature.KindTuple:
		schema["type"] = "array"
		if len(f.TypeArgs) > 0 {
			schema["items"] = fieldSchema(f.TypeArgs[0])
		}
	default:
		// media kinds accept a URL, raw bytes or a structured object
		schema["description"] = f.Type.String()
	}
	if f.Description != "" {
		schema["description"] = f.Description
	}
	if f.Default != nil {
		schema["default"] = f.Default
	}
	return schema
}

func fieldProperties(fields []signature.FieldSpec) map[string]interface{} {
	props := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		props[f.Name] = fieldSchema(f)
	}
	return props
}

// buildOpenAPISpec builds an OpenAPI 3.0 spec from a signature set (one path per method).
func buildOpenAPISpec(title string, set *signature.Set) *openAPI3Spec {
	version := set.Version
	if version == "" {
		version = "unversioned"
	}
	spec := &openAPI3Spec{
		OpenAPI: "3.0.3",
		Info:    openAPI3Info{Title: title, Version: version},
		Paths:   make(map[string]openAPI3PathItem, len(set.Methods)),
	}
	for _, m := range set.Methods {
		var required []string
		for _, f := range m.InputFields {
			if f.Required {
				required = append(required, f.Name)
			}
		}
		schema := map[string]interface{}{
			"type":       "object",
			"properties": fieldProperties(m.InputFields),
		}
		if len(required) > 0 {
			schema["required"] = required
		}
		spec.Paths["/"+m.Name] = openAPI3PathItem{Post: &openAPI3Operation{
			Summary:     m.Description,
			OperationID: m.Name,
			RequestBody: &openAPI3RequestBody{
				Required: len(required) > 0,
				Content:  map[string]openAPI3MediaType{"application/json": {Schema: schema}},
			},
			Responses: map[string]openAPI3Response{"200": {Description: "Prediction result"}},
		}}
	}
	return spec
}

// handleOpenAPI serves /openapi/<user>/<app>/<model>[/<version>] from the
// handler's describe answer.
func (s *Server) handleOpenAPI() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		segments := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/openapi/"), "/"), "/")
		if len(segments) != 3 && len(segments) != 4 {
			http.NotFound(w, r)
			return
		}
		req := &transport.DescribeRequest{
			ID:         uuid.NewString(),
			UserAppID:  transport.UserAppID{UserID: segments[0], AppID: segments[1]},
			ResourceID: segments[2],
		}
		if len(segments) == 4 {
			req.VersionID = segments[3]
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
		defer cancel()
		resp, err := s.opts.Handler.Describe(ctx, req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if resp.Status.Code != transport.StatusSuccess || len(resp.Methods) == 0 {
			http.NotFound(w, r)
			return
		}

		title := fmt.Sprintf("%s/%s/models/%s", req.UserAppID.UserID, req.UserAppID.AppID, req.ResourceID)
		spec := buildOpenAPISpec(title, &signature.Set{Version: resp.Version, Methods: resp.Methods})
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=60")
		if err := json.NewEncoder(w).Encode(spec); err != nil {
			slog.Error(fmt.Sprintf("%s - openapi json encode: %v", logPrefix, err))
		}
	}
}
