package graph

import "math"

// NodeKind tags the variant of a node. The string values match the "kind"
// field of saved documents.
type NodeKind string

const (
	KindControl          NodeKind = "Control"
	KindTwoBoneIK        NodeKind = "TwoBoneIK"
	KindSplineSpineIK    NodeKind = "splineSpineIK"
	KindFKChain          NodeKind = "FKChain"
	KindFoot             NodeKind = "foot"
	KindSquashAndStretch NodeKind = "SquashAndStretch"
	KindGeneric          NodeKind = "BaseNode"
)

// NoHandle marks a socket that takes no value from the build tuple.
const NoHandle = math.MinInt

// SocketSpec declares one socket of a kind.
type SocketSpec struct {
	Name string
	Type SocketType

	// HandleIndex selects the build tuple element stored as this socket's
	// attachment. Negative values count from the end of the tuple.
	HandleIndex int
}

// ArgBinding derives one builder argument. When Param is set the argument
// takes that parameter's value, translated through Map if the value has an
// entry there; otherwise the argument is the constant Value.
type ArgBinding struct {
	Arg   string
	Param string
	Map   map[string]any
	Value any
}

// Resolve computes the argument value for the given parameters.
func (b ArgBinding) Resolve(params Params) any {
	if b.Param == "" {
		return b.Value
	}
	v := params[b.Param]
	if s, ok := v.(string); ok && b.Map != nil {
		if mapped, ok := b.Map[s]; ok {
			return mapped
		}
	}
	return v
}

// DispatchSpec tells the orchestrator which external builder realises a kind.
type DispatchSpec struct {
	// Module is the builder module name on the host side.
	Module string

	// Template is the staging operation; empty when the kind has none.
	Template string

	// Build is the build operation; empty for kinds that cannot be built.
	Build string

	TemplateArgs []ArgBinding
	BuildArgs    []ArgBinding
}

// KindSpec is the static description of a node kind.
type KindSpec struct {
	Kind     NodeKind
	Label    string
	Inputs   []SocketSpec
	Outputs  []SocketSpec
	Params   []ParamSpec
	Dispatch DispatchSpec
}

// Param returns the spec for the named parameter.
func (k *KindSpec) Param(name string) (ParamSpec, bool) {
	for _, p := range k.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// Defaults returns a fresh parameter set holding every default value.
func (k *KindSpec) Defaults() Params {
	out := make(Params, len(k.Params))
	for _, p := range k.Params {
		out[p.Name] = p.Default
	}
	return out
}

var (
	shapeChoices  = []string{"circle", "arrow", "cube", "cylinder", "scapula", "square"}
	colourChoices = []string{"red", "yellow", "blue", "orange", "light blue", "green"}
	addonChoices  = []string{"None", "SquashAndStretch"}

	// The host expects NULL for "no add-on".
	addonMap = map[string]any{"None": "NULL"}
)

func notesParam() ParamSpec {
	return ParamSpec{Name: "notes", Label: "Notes", Type: ParamText, Default: ""}
}

func shapeParam() ParamSpec {
	return ParamSpec{Name: "controlShape", Label: "Control Shape", Type: ParamString, Default: "circle", Choices: shapeChoices}
}

func colourParam() ParamSpec {
	return ParamSpec{Name: "controlColour", Label: "Control Colour", Type: ParamString, Default: "red", Choices: colourChoices}
}

func addonParam() ParamSpec {
	return ParamSpec{Name: "addon", Label: "Add-on", Type: ParamString, Default: "None", Choices: addonChoices}
}

func anySockets(names ...string) []SocketSpec {
	out := make([]SocketSpec, len(names))
	for i, n := range names {
		out[i] = SocketSpec{Name: n, Type: TypeAny, HandleIndex: i}
	}
	return out
}

var kindOrder = []NodeKind{
	KindControl,
	KindTwoBoneIK,
	KindSplineSpineIK,
	KindFKChain,
	KindFoot,
	KindSquashAndStretch,
	KindGeneric,
}

var catalog = map[NodeKind]*KindSpec{
	KindControl: {
		Kind:    KindControl,
		Label:   "Control",
		Inputs:  anySockets("scale_in", "controlFK_in"),
		Outputs: []SocketSpec{{Name: "control_out", Type: TypeAny, HandleIndex: 2}},
		Params:  []ParamSpec{shapeParam(), colourParam(), notesParam()},
		Dispatch: DispatchSpec{
			Module:   "Control",
			Template: "template",
			Build:    "Control",
			BuildArgs: []ArgBinding{
				{Arg: "Control", Param: "controlShape"},
				{Arg: "Colour", Param: "controlColour"},
			},
		},
	},
	KindTwoBoneIK: {
		Kind:    KindTwoBoneIK,
		Label:   "Two Bone IK",
		Inputs:  anySockets("scale_in", "shoulderIK_in", "poleVectorIK_in", "shoulderFK_in"),
		Outputs: []SocketSpec{{Name: "wrist_out", Type: TypeAny, HandleIndex: 4}},
		Params: []ParamSpec{
			{Name: "twistJoints", Label: "Twist Joints", Type: ParamInt, Default: 0, Min: 0, Max: 3},
			addonParam(),
			notesParam(),
		},
		Dispatch: DispatchSpec{
			Module:   "IKarms",
			Template: "template",
			Build:    "twoBoneIK",
			BuildArgs: []ArgBinding{
				{Arg: "twistJoints", Param: "twistJoints"},
				{Arg: "addon", Param: "addon", Map: addonMap},
			},
		},
	},
	KindSplineSpineIK: {
		Kind:   KindSplineSpineIK,
		Label:  "Spline Spine IK",
		Inputs: anySockets("scale_in"),
		Outputs: []SocketSpec{
			{Name: "pelvis_out", Type: TypeVector, HandleIndex: 1},
			{Name: "spineTop_out", Type: TypeVector, HandleIndex: 2},
		},
		Params: []ParamSpec{
			{Name: "numControlJoints", Label: "Control Joints", Type: ParamInt, Default: 3, Min: 2, Max: 5},
			{Name: "numJoints", Label: "Joints", Type: ParamInt, Default: 5, Min: 2, Max: 999},
			addonParam(),
			notesParam(),
		},
		Dispatch: DispatchSpec{
			Module:   "splineSpineIK",
			Template: "template",
			Build:    "splineSpineIK",
			TemplateArgs: []ArgBinding{
				{Arg: "numControlJoints", Param: "numControlJoints"},
			},
			BuildArgs: []ArgBinding{
				{Arg: "numControlJoints", Param: "numControlJoints"},
				{Arg: "numJoints", Param: "numJoints"},
				{Arg: "addon", Param: "addon", Map: addonMap},
			},
		},
	},
	KindFKChain: {
		Kind:    KindFKChain,
		Label:   "FK Chain",
		Inputs:  anySockets("scale_in", "FKChain_in"),
		Outputs: []SocketSpec{{Name: "FKChain_out", Type: TypeVector, HandleIndex: 2}},
		Params: []ParamSpec{
			{Name: "numJoints", Label: "Joints", Type: ParamInt, Default: 3, Min: 2, Max: 5},
			shapeParam(),
			colourParam(),
			notesParam(),
		},
		Dispatch: DispatchSpec{
			Module:   "FKChain",
			Template: "template",
			Build:    "FKChain",
			TemplateArgs: []ArgBinding{
				{Arg: "numJoints", Param: "numJoints"},
			},
			BuildArgs: []ArgBinding{
				{Arg: "Control", Param: "controlShape"},
				{Arg: "Colour", Param: "controlColour"},
				{Arg: "numJoints", Param: "numJoints"},
			},
		},
	},
	KindFoot: {
		Kind:    KindFoot,
		Label:   "Foot",
		Inputs:  anySockets("scale_in", "ankle_in", "ball_in", "toe_in"),
		Outputs: []SocketSpec{{Name: "toe_out", Type: TypeAny, HandleIndex: 4}},
		Params:  []ParamSpec{addonParam(), notesParam()},
		Dispatch: DispatchSpec{
			Module:   "foot",
			Template: "template",
			Build:    "foot",
			BuildArgs: []ArgBinding{
				{Arg: "addon", Param: "addon", Map: addonMap},
			},
		},
	},
	KindSquashAndStretch: {
		Kind:    KindSquashAndStretch,
		Label:   "Squash & Stretch",
		Inputs:  []SocketSpec{{Name: "temp_in", Type: TypeAny, HandleIndex: 0}},
		Outputs: []SocketSpec{{Name: "squash_and_stretch_out", Type: TypeAny, HandleIndex: 0}},
		Params:  []ParamSpec{notesParam()},
		Dispatch: DispatchSpec{
			Module: "addon_SquashAndStretch",
			Build:  "addon_SquashAndStretch",
		},
	},
	KindGeneric: {
		Kind:   KindGeneric,
		Label:  "Generic",
		Params: []ParamSpec{notesParam()},
	},
}

// LookupKind returns the spec for a kind tag.
func LookupKind(kind NodeKind) (*KindSpec, error) {
	spec, ok := catalog[kind]
	if !ok {
		return nil, notFound(ErrUnknownKind, string(kind))
	}
	return spec, nil
}

// Kinds returns every kind spec in palette order, generic last.
func Kinds() []*KindSpec {
	out := make([]*KindSpec, 0, len(kindOrder))
	for _, k := range kindOrder {
		out = append(out, catalog[k])
	}
	return out
}

// PaletteKinds returns the kinds a user can place, excluding the generic
// substitute.
func PaletteKinds() []*KindSpec {
	all := Kinds()
	return all[:len(all)-1]
}
