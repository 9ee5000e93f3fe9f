// Package signature holds the method signatures a remote resource publishes:
// the field descriptors each named method accepts.
package signature

import (
	"fmt"
	"strings"

	"github.com/morezero/inference-client/pkg/apierr"
)

// FieldSpec is one declared field of a method signature.
type FieldSpec struct {
	Name        string      `json:"name" yaml:"name"`
	Type        DataKind    `json:"type" yaml:"type"`
	IsParam     bool        `json:"isParam,omitempty" yaml:"isParam,omitempty"`
	Required    bool        `json:"required,omitempty" yaml:"required,omitempty"`
	TypeArgs    []FieldSpec `json:"typeArgs,omitempty" yaml:"typeArgs,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Default     interface{} `json:"default,omitempty" yaml:"default,omitempty"`
}

// Method is a named remote operation and its input/output fields.
type Method struct {
	Name         string      `json:"name" yaml:"name"`
	Description  string      `json:"description,omitempty" yaml:"description,omitempty"`
	InputFields  []FieldSpec `json:"inputFields" yaml:"inputFields"`
	OutputFields []FieldSpec `json:"outputFields,omitempty" yaml:"outputFields,omitempty"`
}

// Params returns the input fields in the parameter role.
func (m *Method) Params() []FieldSpec {
	return filterRole(m.InputFields, true)
}

// Payload returns the input fields in the payload role.
func (m *Method) Payload() []FieldSpec {
	return filterRole(m.InputFields, false)
}

func filterRole(fields []FieldSpec, param bool) []FieldSpec {
	out := make([]FieldSpec, 0, len(fields))
	for _, f := range fields {
		if f.IsParam == param {
			out = append(out, f)
		}
	}
	return out
}

// Find returns the field named name, or nil.
func Find(fields []FieldSpec, name string) *FieldSpec {
	for i := range fields {
		if fields[i].Name == name {
			return &fields[i]
		}
	}
	return nil
}

// Set is the immutable collection of method signatures fetched for one resource.
type Set struct {
	Resource string   `json:"resource,omitempty" yaml:"resource,omitempty"`
	Version  string   `json:"version,omitempty" yaml:"version,omitempty"`
	Methods  []Method `json:"methods" yaml:"methods"`
}

// Names returns the method names in signature order.
func (s *Set) Names() []string {
	names := make([]string, len(s.Methods))
	for i, m := range s.Methods {
		names[i] = m.Name
	}
	return names
}

// Method looks up a method by name.
func (s *Set) Method(name string) (*Method, error) {
	if err := s.CheckCompatible(); err != nil {
		return nil, err
	}
	for i := range s.Methods {
		if s.Methods[i].Name == name {
			return &s.Methods[i], nil
		}
	}
	return nil, &apierr.Error{
		Code: apierr.CodeInvalidMethodName,
		Message: fmt.Sprintf("Invalid method name %q. Available methods: %s",
			name, strings.Join(s.Names(), ", ")),
		Details: s.Names(),
	}
}

// CheckCompatible fails when the resource publishes no method signatures.
func (s *Set) CheckCompatible() error {
	if s == nil || len(s.Methods) == 0 {
		resource := ""
		if s != nil {
			resource = s.Resource
		}
		return &apierr.Error{
			Code:    apierr.CodeIncompatibleResource,
			Message: fmt.Sprintf("Resource %s is incompatible: no method signatures found", resource),
		}
	}
	return nil
}

// Validate checks structural invariants: unique method names and unique
// field names among siblings.
func (s *Set) Validate() error {
	seen := make(map[string]bool, len(s.Methods))
	for _, m := range s.Methods {
		if m.Name == "" {
			return fmt.Errorf("signature:types - method with empty name in %s", s.Resource)
		}
		if seen[m.Name] {
			return fmt.Errorf("signature:types - duplicate method %q in %s", m.Name, s.Resource)
		}
		seen[m.Name] = true
		if err := validateFields(m.Name, m.InputFields); err != nil {
			return err
		}
	}
	return nil
}

func validateFields(path string, fields []FieldSpec) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		// positional type arguments may be unnamed
		if f.Name != "" && seen[f.Name] {
			return fmt.Errorf("signature:types - duplicate field %q in %s", f.Name, path)
		}
		seen[f.Name] = true
		if len(f.TypeArgs) > 0 {
			if err := validateFields(path+"."+f.Name, f.TypeArgs); err != nil {
				return err
			}
		}
	}
	return nil
}
