package rig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/Benny93/rigweave/internal/graph"
)

const sampleOverrides = `
kind "TwoBoneIK" {
  module = "IKarms_v2"

  build_arg "twistJoints" {
    param = "twistJoints"
  }
  build_arg "addon" {
    param = "addon"
    map   = { None = "NULL", SquashAndStretch = "squash" }
  }
  build_arg "side" {
    value = "L"
  }
}

kind "foot" {
  template = "stage"
  template_arg "scale" {
    value = 1.5
  }
}
`

func TestParseOverrides(t *testing.T) {
	t.Parallel()

	got, err := ParseOverrides([]byte(sampleOverrides), "builders.hcl")
	require.NoError(t, err)
	require.Len(t, got, 2)

	arm := got[graph.KindTwoBoneIK]
	assert.Equal(t, "IKarms_v2", arm.Module)
	assert.Equal(t, "template", arm.Template, "unset fields keep the catalog value")
	assert.Equal(t, "twoBoneIK", arm.Build)
	require.Len(t, arm.BuildArgs, 3)
	assert.Equal(t, map[string]any{"None": "NULL", "SquashAndStretch": "squash"}, arm.BuildArgs[1].Map)
	assert.Equal(t, "L", arm.BuildArgs[2].Value)

	foot := got[graph.KindFoot]
	assert.Equal(t, "stage", foot.Template)
	require.Len(t, foot.TemplateArgs, 1)
	assert.Equal(t, 1.5, foot.TemplateArgs[0].Value)
	assert.Len(t, foot.BuildArgs, 1)

	params := graph.Params{"twistJoints": 1, "addon": "SquashAndStretch"}
	assert.Equal(t, "squash", arm.BuildArgs[1].Resolve(params))
}

func TestParseOverrides_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
	}{
		{"Syntax", `kind "foot" {`},
		{"UnknownKind", `kind "Wing" {}`},
		{"UnknownAttribute", `kind "foot" { colour = "red" }`},
		{"UnknownParam", `
kind "foot" {
  build_arg "x" {
    param = "numJoints"
  }
}`},
		{"EmptyArg", `
kind "foot" {
  build_arg "x" {}
}`},
		{"MapNotObject", `
kind "foot" {
  build_arg "addon" {
    param = "addon"
    map   = "nope"
  }
}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseOverrides([]byte(tt.src), "bad.hcl")
			assert.Error(t, err)
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "builders.hcl")
	require.NoError(t, os.WriteFile(path, []byte(sampleOverrides), 0o644))

	got, err := LoadOverrides(path)
	require.NoError(t, err)
	assert.Contains(t, got, graph.KindFoot)

	_, err = LoadOverrides(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)
}

func TestCtyValueToInterface(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   cty.Value
		want any
	}{
		{"Null", cty.NullVal(cty.String), nil},
		{"String", cty.StringVal("x"), "x"},
		{"WholeNumber", cty.NumberIntVal(4), 4},
		{"Fraction", cty.NumberFloatVal(0.25), 0.25},
		{"Bool", cty.True, true},
		{"Object", cty.ObjectVal(map[string]cty.Value{"a": cty.NumberIntVal(1)}), map[string]any{"a": 1}},
		{"Tuple", cty.TupleVal([]cty.Value{cty.StringVal("a"), cty.False}), []any{"a", false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ctyValueToInterface(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
