package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wudi/phpaot/types"
)

func buildTrivialFunction(name string) *Function {
	fn := NewFunction(name)
	entry := fn.AddBlock(fn.NewBlockLabel("entry"))
	r := fn.AllocRegister()
	entry.Instructions = append(entry.Instructions, Instruction{
		Op:       OpConstInt,
		Operands: []Operand{ImmOperand(int64(1))},
		Result:   &r,
		Type:     types.Of(types.Int),
	})
	entry.Terminator = &Terminator{Kind: TermRet, RetValue: &r}
	return fn
}

func TestValidatePassesOnWellFormedModule(t *testing.T) {
	m := NewModule("demo", "demo.php")
	m.AddFunction(buildTrivialFunction("main"))
	require.NoError(t, Validate(m))
	assert.True(t, NoUnknownTypes(m))
}

func TestValidateCatchesMissingTerminator(t *testing.T) {
	fn := NewFunction("broken")
	fn.AddBlock(fn.NewBlockLabel("entry"))
	m := NewModule("demo", "demo.php")
	m.AddFunction(fn)

	err := Validate(m)
	require.Error(t, err)
	var iv *InvariantViolation
	assert.ErrorAs(t, err, &iv)
}

func TestValidateCatchesDuplicateRegister(t *testing.T) {
	fn := NewFunction("dup")
	b := fn.AddBlock(fn.NewBlockLabel("entry"))
	r := fn.AllocRegister()
	b.Instructions = []Instruction{
		{Op: OpConstInt, Result: &r, Type: types.Of(types.Int)},
		{Op: OpConstInt, Result: &r, Type: types.Of(types.Int)},
	}
	b.Terminator = &Terminator{Kind: TermRet, RetValue: &r}

	m := NewModule("demo", "demo.php")
	m.AddFunction(fn)
	require.Error(t, Validate(m))
}

func TestValidateCatchesBadBranchTarget(t *testing.T) {
	fn := NewFunction("badbr")
	b := fn.AddBlock(fn.NewBlockLabel("entry"))
	b.Terminator = &Terminator{Kind: TermBr, Target: "nowhere"}

	m := NewModule("demo", "demo.php")
	m.AddFunction(fn)
	require.Error(t, Validate(m))
}

func TestDeterministicExternOrdering(t *testing.T) {
	m := NewModule("demo", "demo.php")
	m.DeclareExtern("php_echo")
	m.DeclareExtern("php_value_create_int")
	m.DeclareExtern("php_echo")
	assert.Equal(t, []string{"php_echo", "php_value_create_int"}, m.Externs())
}

func TestPrintIsHumanReadable(t *testing.T) {
	m := NewModule("demo", "demo.php")
	m.AddFunction(buildTrivialFunction("main"))
	out := Print(m)
	assert.True(t, strings.Contains(out, "module demo"))
	assert.True(t, strings.Contains(out, "func main"))
	assert.True(t, strings.Contains(out, "ret r0"))
}
