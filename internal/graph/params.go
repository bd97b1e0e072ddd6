package graph

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ParamType is the value kind of a node parameter.
type ParamType string

const (
	ParamInt    ParamType = "int"
	ParamString ParamType = "string"
	ParamText   ParamType = "text"
)

// ParamSpec describes one user-editable parameter of a node kind.
type ParamSpec struct {
	// Name is the key used in documents and dispatch bindings.
	Name string

	// Label is shown in the editor.
	Label string

	// Type is the value kind.
	Type ParamType

	// Default is the value a new node starts with.
	Default any

	// Choices enumerates the legal values of a string parameter.
	Choices []string

	// Min and Max bound an int parameter, inclusive.
	Min, Max int
}

var validate = validator.New()

// Rule returns the validator tag enforced for this parameter.
func (p ParamSpec) Rule() string {
	switch p.Type {
	case ParamInt:
		return fmt.Sprintf("min=%d,max=%d", p.Min, p.Max)
	case ParamString:
		if len(p.Choices) == 0 {
			return ""
		}
		quoted := make([]string, len(p.Choices))
		for i, c := range p.Choices {
			if strings.ContainsRune(c, ' ') {
				c = "'" + c + "'"
			}
			quoted[i] = c
		}
		return "oneof=" + strings.Join(quoted, " ")
	default:
		return "max=4096"
	}
}

// Normalize coerces v to the parameter's value kind and validates it.
// JSON numbers arrive as float64 and strings typed into the editor arrive as
// strings; both are accepted for int parameters.
func (p ParamSpec) Normalize(v any) (any, error) {
	var out any
	switch p.Type {
	case ParamInt:
		n, err := toInt(v)
		if err != nil {
			return nil, invalid("set param", ErrInvalidParam, "%s: %v", p.Name, err)
		}
		out = n
	default:
		s, ok := v.(string)
		if !ok {
			return nil, invalid("set param", ErrInvalidParam, "%s: want string, got %T", p.Name, v)
		}
		out = s
	}
	if rule := p.Rule(); rule != "" {
		if err := validate.Var(out, rule); err != nil {
			return nil, invalid("set param", ErrInvalidParam, "%s=%v violates %q", p.Name, out, rule)
		}
	}
	return out, nil
}

// Values enumerates the legal values for cycling in the editor. Int ranges
// wider than 16 values and free text return nil.
func (p ParamSpec) Values() []any {
	switch p.Type {
	case ParamString:
		out := make([]any, len(p.Choices))
		for i, c := range p.Choices {
			out[i] = c
		}
		return out
	case ParamInt:
		if p.Max-p.Min >= 16 {
			return nil
		}
		out := make([]any, 0, p.Max-p.Min+1)
		for i := p.Min; i <= p.Max; i++ {
			out = append(out, i)
		}
		return out
	}
	return nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("want integer, got %T", v)
	}
}

// Params holds a node's parameter values keyed by name.
type Params map[string]any

// Int returns the named value as an int, or 0.
func (p Params) Int(name string) int {
	n, _ := toInt(p[name])
	return n
}

// String returns the named value as a string, or "".
func (p Params) String(name string) string {
	s, _ := p[name].(string)
	return s
}

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
