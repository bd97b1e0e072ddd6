package graph

import "sort"

// SocketType names the data carried by a socket.
type SocketType string

const (
	TypeAny       SocketType = "any"
	TypeNumeric   SocketType = "numeric"
	TypeInt       SocketType = "int"
	TypeFloat     SocketType = "float"
	TypeVector    SocketType = "vector"
	TypePoint     SocketType = "point"
	TypeDirection SocketType = "direction"
	TypeTransform SocketType = "transform"
	TypeMatrix    SocketType = "matrix"
)

// DefaultHierarchy is the category table used by DefaultTypeRegistry.
func DefaultHierarchy() map[SocketType][]SocketType {
	return map[SocketType][]SocketType{
		TypeAny:       nil,
		TypeNumeric:   {TypeInt, TypeFloat},
		TypeVector:    {TypePoint, TypeDirection},
		TypeTransform: {TypeMatrix},
		TypeMatrix:    nil,
	}
}

// TypeRegistry decides which socket types may be connected.
//
// Categories are resolved by membership lookup in the table the registry was
// built from. Nested categories are followed, so a table that grows deeper
// than one level keeps working.
type TypeRegistry struct {
	subtypes map[SocketType]map[SocketType]struct{}
}

// NewTypeRegistry builds a registry from a category → subtypes table.
func NewTypeRegistry(hierarchy map[SocketType][]SocketType) *TypeRegistry {
	r := &TypeRegistry{subtypes: make(map[SocketType]map[SocketType]struct{}, len(hierarchy))}
	for category, children := range hierarchy {
		set := make(map[SocketType]struct{}, len(children))
		for _, child := range children {
			set[child] = struct{}{}
		}
		r.subtypes[category] = set
	}
	return r
}

// DefaultTypeRegistry returns a registry over DefaultHierarchy.
func DefaultTypeRegistry() *TypeRegistry {
	return NewTypeRegistry(DefaultHierarchy())
}

// Compatible reports whether a socket of type source may connect to a socket
// of type target. The check is symmetric.
func (r *TypeRegistry) Compatible(source, target SocketType) bool {
	if source == TypeAny || target == TypeAny {
		return true
	}
	if source == target {
		return true
	}
	return r.IsSubtype(source, target) || r.IsSubtype(target, source)
}

// IsSubtype reports whether t is listed under category, directly or through a
// nested category.
func (r *TypeRegistry) IsSubtype(category, t SocketType) bool {
	seen := map[SocketType]bool{category: true}
	queue := []SocketType{category}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for child := range r.subtypes[current] {
			if child == t {
				return true
			}
			if !seen[child] {
				seen[child] = true
				queue = append(queue, child)
			}
		}
	}
	return false
}

// Known reports whether t appears anywhere in the table.
func (r *TypeRegistry) Known(t SocketType) bool {
	if _, ok := r.subtypes[t]; ok {
		return true
	}
	for _, children := range r.subtypes {
		if _, ok := children[t]; ok {
			return true
		}
	}
	return false
}

// Types returns every type in the table, sorted.
func (r *TypeRegistry) Types() []SocketType {
	set := make(map[SocketType]struct{})
	for category, children := range r.subtypes {
		set[category] = struct{}{}
		for child := range children {
			set[child] = struct{}{}
		}
	}
	out := make([]SocketType, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
