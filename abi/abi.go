// Package abi describes the runtime ABI the emitted program binds against:
// the names and signatures of the extern runtime functions, and the
// discriminant vocabulary of the opaque PHPValue tagged union. The core
// never knows the layout of PHPValue, only its name and its variants.
package abi

// ValueKind is a PHPValue discriminant. The core treats PHPValue as an
// opaque boundary type; it only needs to name the tag, never lay it out.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
	KindCallable
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindCallable:
		return "callable"
	default:
		return "unknown"
	}
}

// Function describes one extern runtime function the generated code may
// call: its name and its parameter/return signature. It has no
// implementation field; the core only ever emits calls and extern
// declarations naming these functions.
type Function struct {
	Name       string
	Parameters []string
	Return     string
}

// ValueConstructor names the php_value_create_* constructor for kind, or
// the empty string if kind has no dedicated constructor (callable values
// are always produced by closures, never a create call).
func ValueConstructor(kind ValueKind) string {
	for _, fn := range ValueConstructors {
		if fn.kind == kind {
			return fn.Name
		}
	}
	return ""
}

type namedConstructor struct {
	Function
	kind ValueKind
}

// ValueConstructors enumerates every php_value_create_{kind} extern the
// runtime exports, in a fixed order matching ValueKind's declaration
// order.
var ValueConstructors = []namedConstructor{
	{Function{"php_value_create_null", nil, "*mut PHPValue"}, KindNull},
	{Function{"php_value_create_bool", []string{"bool"}, "*mut PHPValue"}, KindBool},
	{Function{"php_value_create_int", []string{"i64"}, "*mut PHPValue"}, KindInt},
	{Function{"php_value_create_float", []string{"f64"}, "*mut PHPValue"}, KindFloat},
	{Function{"php_value_create_string", []string{"*const PHPString"}, "*mut PHPValue"}, KindString},
	{Function{"php_value_create_array", nil, "*mut PHPValue"}, KindArray},
	{Function{"php_value_create_object", []string{"*const PHPString"}, "*mut PHPValue"}, KindObject},
}

// RefcountHooks are the runtime's GC retain/release externs. The IR
// generator never declares them, so emitted modules do not bind against
// them.
var RefcountHooks = []Function{
	{"php_gc_retain", []string{"*mut PHPValue"}, "void"},
	{"php_gc_release", []string{"*mut PHPValue"}, "void"},
}

// IOFunctions are the externs backing PHP's output statements.
var IOFunctions = []Function{
	{"php_echo", []string{"*mut PHPValue"}, "void"},
	{"php_print", []string{"*mut PHPValue"}, "i64"},
}

// All returns the full fixed ABI surface, in a stable order suitable for
// deterministic extern-declaration emission.
func All() []Function {
	out := make([]Function, 0, len(ValueConstructors)+len(RefcountHooks)+len(IOFunctions))
	for _, c := range ValueConstructors {
		out = append(out, c.Function)
	}
	out = append(out, RefcountHooks...)
	out = append(out, IOFunctions...)
	return out
}

// Lookup finds a runtime function descriptor by name.
func Lookup(name string) (Function, bool) {
	for _, fn := range All() {
		if fn.Name == name {
			return fn, true
		}
	}
	return Function{}, false
}
