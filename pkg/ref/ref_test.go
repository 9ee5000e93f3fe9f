package ref

import (
	"strings"
	"testing"
)

const refTestPrefix = "ref:ref_test"

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    Ref
		wantErr string
	}{
		{
			name: "model",
			url:  "https://clarifai.com/meta/Llama-3/models/llama-3-8b",
			want: Ref{UserID: "meta", AppID: "Llama-3", Kind: KindModel, ResourceID: "llama-3-8b"},
		},
		{
			name: "model version",
			url:  "https://clarifai.com/meta/Llama-3/models/llama-3-8b/model_version/abc123",
			want: Ref{UserID: "meta", AppID: "Llama-3", Kind: KindModel, ResourceID: "llama-3-8b", VersionID: "abc123"},
		},
		{
			name: "versions segment and trailing slash",
			url:  " https://clarifai.com/u/a/models/m/versions/v2/ ",
			want: Ref{UserID: "u", AppID: "a", Kind: KindModel, ResourceID: "m", VersionID: "v2"},
		},
		{
			name: "workflow",
			url:  "https://clarifai.com/clarifai/main/workflows/General",
			want: Ref{UserID: "clarifai", AppID: "main", Kind: KindWorkflow, ResourceID: "General"},
		},
		{name: "relative", url: "/meta/app/models/m", wantErr: "absolute"},
		{name: "short path", url: "https://clarifai.com/meta/app/models", wantErr: "unexpected url path"},
		{name: "bad kind", url: "https://clarifai.com/meta/app/datasets/d", wantErr: "unsupported resource type"},
		{name: "bad version segment", url: "https://clarifai.com/u/a/models/m/tags/v1", wantErr: "unexpected version segment"},
		{name: "bad id", url: "https://clarifai.com/u/a/models/-m", wantErr: "invalid resource id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURL(tt.url)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("%s - ParseURL(%q) error = %v, want containing %q", refTestPrefix, tt.url, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("%s - ParseURL(%q) unexpected error: %v", refTestPrefix, tt.url, err)
			}
			if *got != tt.want {
				t.Errorf("%s - ParseURL(%q) = %+v, want %+v", refTestPrefix, tt.url, *got, tt.want)
			}
		})
	}
}

func TestRef_StringAndSubject(t *testing.T) {
	r := Ref{UserID: "meta", AppID: "Llama-3", Kind: KindModel, ResourceID: "llama.3"}
	if got := r.String(); got != "meta/Llama-3/models/llama.3" {
		t.Errorf("%s - String() = %q", refTestPrefix, got)
	}
	r.VersionID = "v1"
	if got := r.String(); got != "meta/Llama-3/models/llama.3@v1" {
		t.Errorf("%s - String() = %q", refTestPrefix, got)
	}
	if got := r.Subject("inference", "predict"); got != "inference.predict.meta.Llama-3.llama_3" {
		t.Errorf("%s - Subject() = %q", refTestPrefix, got)
	}
}

func TestCheckConstraint(t *testing.T) {
	tests := []struct {
		version    string
		constraint string
		ok         bool
	}{
		{"1.2.3", "", true},
		{"", "", true},
		{"1.2.3", "^1.2.0", true},
		{"2.0.0", "^1.2.0", false},
		{"2.5.0", ">=2, <3", true},
		{"", "^1", false},
		{"not-a-version", "^1", false},
		{"1.0.0", "not a constraint", false},
	}
	for _, tt := range tests {
		err := CheckConstraint(tt.version, tt.constraint)
		if (err == nil) != tt.ok {
			t.Errorf("%s - CheckConstraint(%q, %q) = %v, want ok=%v", refTestPrefix, tt.version, tt.constraint, err, tt.ok)
		}
	}
}
