// Package types represents the static type vocabulary the type inferencer
// assigns to expressions and symbols: concrete PHP types, unions of them,
// and a pre-inference sentinel.
package types

import "sort"

// Concrete is a single concrete PHP type.
type Concrete uint8

const (
	Null Concrete = iota
	Bool
	Int
	Float
	String
	Array
	Object
	Callable
	Resource
	Void
	concreteCount
)

func (c Concrete) String() string {
	switch c {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	case Callable:
		return "callable"
	case Resource:
		return "resource"
	case Void:
		return "void"
	default:
		return "unknown"
	}
}

// Type is an inferred type: either a single concrete type or a canonical
// (sorted, deduplicated) non-empty union of concrete types. The zero value
// is Unknown, used before inference completes; committed IR must never
// carry it.
type Type struct {
	// bits is a bitset over Concrete values, one bit per concrete type.
	// bits == 0 means Unknown.
	bits uint16
}

// Unknown is the pre-inference placeholder type.
var Unknown = Type{}

// Of constructs a single-concrete-type Type.
func Of(c Concrete) Type {
	return Type{bits: 1 << c}
}

// IsUnknown reports whether t is the pre-inference placeholder.
func (t Type) IsUnknown() bool {
	return t.bits == 0
}

// IsUnion reports whether t carries more than one concrete type.
func (t Type) IsUnion() bool {
	return popcount(t.bits) > 1
}

// IsConcrete reports whether t carries exactly one concrete type, and
// returns it.
func (t Type) IsConcrete() (Concrete, bool) {
	if popcount(t.bits) != 1 {
		return 0, false
	}
	for c := Concrete(0); c < concreteCount; c++ {
		if t.bits&(1<<c) != 0 {
			return c, true
		}
	}
	return 0, false
}

// Members returns the concrete types in t, in ascending Concrete order.
func (t Type) Members() []Concrete {
	out := make([]Concrete, 0, popcount(t.bits))
	for c := Concrete(0); c < concreteCount; c++ {
		if t.bits&(1<<c) != 0 {
			out = append(out, c)
		}
	}
	return out
}

// Union canonicalizes the union of a and b. Unioning with Unknown yields
// the other operand unchanged (inference has not yet contributed
// information from that side).
func Union(a, b Type) Type {
	if a.IsUnknown() {
		return b
	}
	if b.IsUnknown() {
		return a
	}
	return Type{bits: a.bits | b.bits}
}

// Equal reports whether a and b carry exactly the same members.
func (t Type) Equal(other Type) bool {
	return t.bits == other.bits
}

// Contains reports whether c is one of t's members.
func (t Type) Contains(c Concrete) bool {
	return t.bits&(1<<c) != 0
}

// String renders a concrete type plainly, or a union as "a|b|c" with
// member names sorted alphabetically (canonical form).
func (t Type) String() string {
	if t.IsUnknown() {
		return "unknown"
	}
	members := t.Members()
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.String()
	}
	sort.Strings(names)
	out := names[0]
	for _, n := range names[1:] {
		out += "|" + n
	}
	return out
}

// Conservative returns the union of every concrete type except Void, the
// fallback the inferencer assigns to a call of unknown or not-yet-inferred
// return type.
func Conservative() Type {
	var t Type
	for c := Concrete(0); c < concreteCount; c++ {
		if c == Void {
			continue
		}
		t = Union(t, Of(c))
	}
	return t
}

func popcount(bits uint16) int {
	n := 0
	for bits != 0 {
		bits &= bits - 1
		n++
	}
	return n
}
