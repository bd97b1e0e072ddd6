package rig

import (
	"fmt"
	"math/big"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/Benny93/rigweave/internal/graph"
)

// hclOverridesFile is the top-level structure of a builders file:
//
//	kind "TwoBoneIK" {
//	  module = "IKarms_v2"
//	  build_arg "addon" {
//	    param = "addon"
//	    map   = { None = "NULL" }
//	  }
//	}
type hclOverridesFile struct {
	Kinds []*hclKind `hcl:"kind,block"`
}

type hclKind struct {
	Kind         string    `hcl:"kind,label"`
	Module       *string   `hcl:"module,optional"`
	Template     *string   `hcl:"template,optional"`
	Build        *string   `hcl:"build,optional"`
	TemplateArgs []*hclArg `hcl:"template_arg,block"`
	BuildArgs    []*hclArg `hcl:"build_arg,block"`
}

type hclArg struct {
	Name  string         `hcl:"name,label"`
	Param *string        `hcl:"param,optional"`
	Map   hcl.Expression `hcl:"map,optional"`
	Value hcl.Expression `hcl:"value,optional"`
}

// LoadOverrides reads dispatch overrides from an HCL file. Each kind block
// starts from the catalog record and replaces only what it sets; argument
// blocks, when present, replace the whole argument list.
func LoadOverrides(path string) (map[graph.NodeKind]graph.DispatchSpec, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	return decodeOverrides(file.Body, path)
}

// ParseOverrides is LoadOverrides for in-memory source.
func ParseOverrides(src []byte, filename string) (map[graph.NodeKind]graph.DispatchSpec, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	return decodeOverrides(file.Body, filename)
}

func decodeOverrides(body hcl.Body, filename string) (map[graph.NodeKind]graph.DispatchSpec, error) {
	var parsed hclOverridesFile
	if diags := gohcl.DecodeBody(body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	out := make(map[graph.NodeKind]graph.DispatchSpec, len(parsed.Kinds))
	for _, k := range parsed.Kinds {
		spec, err := graph.LookupKind(graph.NodeKind(k.Kind))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}

		d := spec.Dispatch
		if k.Module != nil {
			d.Module = *k.Module
		}
		if k.Template != nil {
			d.Template = *k.Template
		}
		if k.Build != nil {
			d.Build = *k.Build
		}
		if len(k.TemplateArgs) > 0 {
			if d.TemplateArgs, err = decodeArgs(spec, k.TemplateArgs); err != nil {
				return nil, fmt.Errorf("%s: kind %q: %w", filename, k.Kind, err)
			}
		}
		if len(k.BuildArgs) > 0 {
			if d.BuildArgs, err = decodeArgs(spec, k.BuildArgs); err != nil {
				return nil, fmt.Errorf("%s: kind %q: %w", filename, k.Kind, err)
			}
		}
		out[spec.Kind] = d
	}
	return out, nil
}

func decodeArgs(spec *graph.KindSpec, args []*hclArg) ([]graph.ArgBinding, error) {
	out := make([]graph.ArgBinding, 0, len(args))
	for _, a := range args {
		b := graph.ArgBinding{Arg: a.Name}
		if a.Param != nil {
			if _, ok := spec.Param(*a.Param); !ok {
				return nil, fmt.Errorf("argument %q: unknown parameter %q", a.Name, *a.Param)
			}
			b.Param = *a.Param
		}

		value, err := evalExpr(a.Value)
		if err != nil {
			return nil, fmt.Errorf("argument %q: value: %w", a.Name, err)
		}
		b.Value = value

		m, err := evalExpr(a.Map)
		if err != nil {
			return nil, fmt.Errorf("argument %q: map: %w", a.Name, err)
		}
		if m != nil {
			mm, ok := m.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("argument %q: map must be an object", a.Name)
			}
			b.Map = mm
		}

		if b.Param == "" && b.Value == nil {
			return nil, fmt.Errorf("argument %q needs param or value", a.Name)
		}
		out = append(out, b)
	}
	return out, nil
}

func evalExpr(expr hcl.Expression) (any, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	return ctyValueToInterface(val)
}

// ctyValueToInterface converts a cty.Value to a Go value. Whole numbers
// become int.
func ctyValueToInterface(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	if val.Type().IsPrimitiveType() {
		switch val.Type() {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			bf := val.AsBigFloat()
			if bf.IsInt() {
				if i, acc := bf.Int64(); acc == big.Exact {
					return int(i), nil
				}
			}
			f, _ := bf.Float64()
			return f, nil
		case cty.Bool:
			return val.True(), nil
		default:
			return nil, fmt.Errorf("unsupported primitive type: %s", val.Type().FriendlyName())
		}
	}
	if val.Type().IsObjectType() || val.Type().IsMapType() {
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			valInterface, err := ctyValueToInterface(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = valInterface
		}
		return out, nil
	}
	if val.Type().IsTupleType() || val.Type().IsListType() {
		var out []any
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			valInterface, err := ctyValueToInterface(v)
			if err != nil {
				return nil, err
			}
			out = append(out, valInterface)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported cty.Type for conversion: %s", val.Type().FriendlyName())
}
