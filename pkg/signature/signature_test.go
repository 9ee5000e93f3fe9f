package signature

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/morezero/inference-client/pkg/apierr"
	"github.com/morezero/inference-client/pkg/ref"
)

const signatureTestPrefix = "signature:signature_test"

const fixture = `
name: test
resources:
  meta/Llama-3/models/llama-3-8b:
    version: 1.4.0
    methods:
      - name: predict
        inputFields:
          - name: prompt
            type: STR
            required: true
          - name: image
            type: IMAGE
          - name: max_tokens
            type: 3
            isParam: true
      - name: generate
        inputFields:
          - name: prompt
            type: str
  meta/Llama-3/models/llama-3-8b@v2:
    version: 2.0.0
    methods:
      - name: chat
        inputFields: []
`

func TestDataKind(t *testing.T) {
	if KindNamedFields.String() != "NAMED_FIELDS" || DataKind(42).String() != "42" {
		t.Errorf("%s - unexpected String() values", signatureTestPrefix)
	}
	if DataKind(42).Known() || !KindList.Known() {
		t.Errorf("%s - unexpected Known() values", signatureTestPrefix)
	}

	for in, want := range map[string]DataKind{"JSON_DATA": KindJSONData, "image": KindImage, "17": KindList, "-1": KindUnrecognized} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("%s - ParseKind(%q) = %v, %v; want %v", signatureTestPrefix, in, got, err, want)
		}
	}
	if _, err := ParseKind("HOLOGRAM"); err == nil {
		t.Errorf("%s - expected error for unknown kind name", signatureTestPrefix)
	}

	var f FieldSpec
	if err := json.Unmarshal([]byte(`{"name":"x","type":"FLOAT"}`), &f); err != nil || f.Type != KindFloat {
		t.Errorf("%s - name form decoded to %v, %v", signatureTestPrefix, f.Type, err)
	}
	if err := json.Unmarshal([]byte(`{"name":"x","type":16}`), &f); err != nil || f.Type != KindTuple {
		t.Errorf("%s - ordinal form decoded to %v, %v", signatureTestPrefix, f.Type, err)
	}
	out, _ := json.Marshal(FieldSpec{Name: "x", Type: KindBool})
	if !strings.Contains(string(out), `"type":5`) {
		t.Errorf("%s - kinds should encode as ordinals: %s", signatureTestPrefix, out)
	}
}

func TestMethodRoles(t *testing.T) {
	m := Method{Name: "predict", InputFields: []FieldSpec{
		{Name: "prompt", Type: KindStr},
		{Name: "max_tokens", Type: KindInt, IsParam: true},
		{Name: "image", Type: KindImage},
	}}
	if p := m.Params(); len(p) != 1 || p[0].Name != "max_tokens" {
		t.Errorf("%s - Params() = %+v", signatureTestPrefix, p)
	}
	if p := m.Payload(); len(p) != 2 || p[0].Name != "prompt" || p[1].Name != "image" {
		t.Errorf("%s - Payload() = %+v", signatureTestPrefix, p)
	}
	if Find(m.InputFields, "image") == nil || Find(m.InputFields, "nope") != nil {
		t.Errorf("%s - Find returned unexpected results", signatureTestPrefix)
	}
}

func TestSet_Method(t *testing.T) {
	s := &Set{Resource: "u/a/models/m", Methods: []Method{{Name: "predict"}, {Name: "generate"}}}
	if m, err := s.Method("generate"); err != nil || m.Name != "generate" {
		t.Fatalf("%s - Method(generate) = %v, %v", signatureTestPrefix, m, err)
	}

	_, err := s.Method("chat")
	if !errors.Is(err, apierr.ErrInvalidMethodName) {
		t.Fatalf("%s - expected INVALID_METHOD_NAME, got %v", signatureTestPrefix, err)
	}
	if !strings.Contains(err.Error(), "Available methods: predict, generate") {
		t.Errorf("%s - message should list methods: %v", signatureTestPrefix, err)
	}

	empty := &Set{Resource: "u/a/models/m"}
	if _, err := empty.Method("predict"); !errors.Is(err, apierr.ErrIncompatibleResource) {
		t.Errorf("%s - expected INCOMPATIBLE_RESOURCE, got %v", signatureTestPrefix, err)
	}
	var nilSet *Set
	if err := nilSet.CheckCompatible(); !errors.Is(err, apierr.ErrIncompatibleResource) {
		t.Errorf("%s - nil set should be incompatible, got %v", signatureTestPrefix, err)
	}
}

func TestSet_Validate(t *testing.T) {
	tests := []struct {
		name    string
		set     Set
		wantErr string
	}{
		{"ok", Set{Methods: []Method{{Name: "a", InputFields: []FieldSpec{{Name: "x"}, {Name: "y"}}}}}, ""},
		{"empty method name", Set{Methods: []Method{{}}}, "empty name"},
		{"duplicate method", Set{Methods: []Method{{Name: "a"}, {Name: "a"}}}, "duplicate method"},
		{"duplicate field", Set{Methods: []Method{{Name: "a", InputFields: []FieldSpec{{Name: "x"}, {Name: "x"}}}}}, "duplicate field"},
		{"unnamed type args", Set{Methods: []Method{{Name: "a", InputFields: []FieldSpec{
			{Name: "pair", Type: KindTuple, TypeArgs: []FieldSpec{{Type: KindInt}, {Type: KindStr}}},
		}}}}, ""},
		{"duplicate nested field", Set{Methods: []Method{{Name: "a", InputFields: []FieldSpec{
			{Name: "rec", Type: KindNamedFields, TypeArgs: []FieldSpec{{Name: "k"}, {Name: "k"}}},
		}}}}, "a.rec"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.set.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("%s - unexpected error: %v", signatureTestPrefix, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("%s - error = %v, want containing %q", signatureTestPrefix, err, tt.wantErr)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	f, err := ParseFile([]byte(fixture))
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", signatureTestPrefix, err)
	}
	set := f.Resources["meta/Llama-3/models/llama-3-8b"]
	if set == nil || set.Resource != "meta/Llama-3/models/llama-3-8b" || set.Version != "1.4.0" {
		t.Fatalf("%s - unexpected set %+v", signatureTestPrefix, set)
	}
	in := set.Methods[0].InputFields
	if in[0].Type != KindStr || !in[0].Required || in[1].Type != KindImage || in[2].Type != KindInt || !in[2].IsParam {
		t.Errorf("%s - unexpected fields %+v", signatureTestPrefix, in)
	}
	if set.Methods[1].InputFields[0].Type != KindStr {
		t.Errorf("%s - lower-case kind names should parse", signatureTestPrefix)
	}

	if _, err := ParseFile([]byte("resources:\n  u/a/models/m:\n")); err == nil {
		t.Errorf("%s - expected error for a resource without signatures", signatureTestPrefix)
	}
	if _, err := ParseFile([]byte("resources: [")); err == nil {
		t.Errorf("%s - expected error for malformed YAML", signatureTestPrefix)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	good := filepath.Join(dir, "good.yaml")
	if err := os.WriteFile(bad, []byte("resources: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(good, []byte(fixture), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := LoadFile("", filepath.Join(dir, "missing.yaml"), bad, good)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", signatureTestPrefix, err)
	}
	if f.Name != "test" {
		t.Errorf("%s - loaded %q, want the good file", signatureTestPrefix, f.Name)
	}

	if _, err := LoadFile(bad); err == nil {
		t.Errorf("%s - expected error when no file parses", signatureTestPrefix)
	}
}

func TestFileSource(t *testing.T) {
	f, err := ParseFile([]byte(fixture))
	if err != nil {
		t.Fatal(err)
	}
	src := NewFileSource(f)
	r := ref.Ref{UserID: "meta", AppID: "Llama-3", Kind: ref.KindModel, ResourceID: "llama-3-8b"}

	tests := []struct {
		name      string
		version   string
		resource  string
		wantNames string
	}{
		{"unversioned", "", "llama-3-8b", "predict,generate"},
		{"pinned version", "v2", "llama-3-8b", "chat"},
		{"unknown version falls back", "v9", "llama-3-8b", "predict,generate"},
		{"absent resource", "", "other", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := r
			rr.VersionID = tt.version
			rr.ResourceID = tt.resource
			set, err := src.Describe(context.Background(), rr)
			if err != nil {
				t.Fatalf("%s - unexpected error: %v", signatureTestPrefix, err)
			}
			if got := strings.Join(set.Names(), ","); got != tt.wantNames {
				t.Errorf("%s - names = %q, want %q", signatureTestPrefix, got, tt.wantNames)
			}
		})
	}
}

func TestLoadFile_StubFixture(t *testing.T) {
	f, err := LoadFile(filepath.Join("..", "..", "configs", "stub-signatures.yaml"))
	if err != nil {
		t.Fatalf("%s - shipped fixture does not load: %v", signatureTestPrefix, err)
	}
	set := f.Resources["meta/Llama-3/models/llama-3-8b"]
	if set == nil || strings.Join(set.Names(), ",") != "predict,generate" {
		t.Fatalf("%s - unexpected fixture content %+v", signatureTestPrefix, set)
	}
	m, _ := set.Method("predict")
	if len(m.Params()) != 3 || len(m.Payload()) != 2 {
		t.Errorf("%s - predict params=%d payload=%d", signatureTestPrefix, len(m.Params()), len(m.Payload()))
	}
}
