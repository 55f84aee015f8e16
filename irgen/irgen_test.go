package irgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wudi/phpaot/ast"
	"github.com/wudi/phpaot/diag"
	"github.com/wudi/phpaot/ir"
	"github.com/wudi/phpaot/symtab"
	"github.com/wudi/phpaot/typeinfer"
)

func generate(t *testing.T, tree *ast.Tree) (*ir.Module, *diag.Engine) {
	t.Helper()
	tab := symtab.NewTable()
	diags := diag.NewEngine("t.php")
	res := typeinfer.Infer(tree, tab, diags)
	m := Generate(tree, res, tab, diags, "demo", "t.php")
	return m, diags
}

func TestEmptyProgramProducesMainReturningNull(t *testing.T) {
	b := ast.NewBuilder()
	tree := b.Program()

	m, diags := generate(t, tree)
	require.NoError(t, ir.Validate(m))
	assert.False(t, diags.HasErrors())

	main, ok := m.FunctionByName("main")
	require.True(t, ok)
	require.Len(t, main.Blocks, 1)
	require.NotNil(t, main.Blocks[0].Terminator)
	assert.Equal(t, ir.TermRet, main.Blocks[0].Terminator.Kind)
	require.NotNil(t, main.Blocks[0].Terminator.RetValue)
}

func TestFunctionWithParametersStoresThemBeforeBody(t *testing.T) {
	b := ast.NewBuilder()
	a := b.Param("a")
	bp := b.Param("b")
	sum := b.Binary("+", b.Variable("a"), b.Variable("b"))
	fn := b.FuncDecl("add", []int{a, bp}, b.Block(b.Return(sum)))
	tree := b.Program(fn)

	m, diags := generate(t, tree)
	require.NoError(t, ir.Validate(m))
	assert.False(t, diags.HasErrors())

	add, ok := m.FunctionByName("add")
	require.True(t, ok)
	require.Len(t, add.Parameters, 2)

	entry := add.Blocks[0]
	require.GreaterOrEqual(t, len(entry.Instructions), 2)
	assert.Equal(t, ir.OpStoreVar, entry.Instructions[0].Op)
	assert.Equal(t, ir.OpStoreVar, entry.Instructions[1].Op)
}

func TestCallSiteLowersCalleeLabel(t *testing.T) {
	b := ast.NewBuilder()
	greetFn := b.FuncDecl("greet", nil, b.Block(b.Echo(b.StringLit("hi"))))
	call := b.Call("greet")
	tree := b.Program(greetFn, b.ExprStmt(call))

	m, diags := generate(t, tree)
	require.NoError(t, ir.Validate(m))
	assert.False(t, diags.HasErrors())

	main, ok := m.FunctionByName("main")
	require.True(t, ok)
	found := false
	for _, inst := range main.Blocks[0].Instructions {
		if inst.Op == ir.OpCall {
			found = true
			require.NotEmpty(t, inst.Operands)
			assert.Equal(t, ir.OperandLabel, inst.Operands[0].Kind)
			assert.Equal(t, "greet", inst.Operands[0].Label)
		}
	}
	assert.True(t, found)
}

func TestIfStmtAllocatesThenElseJoinBlocks(t *testing.T) {
	b := ast.NewBuilder()
	cond := b.BoolLit(true)
	then := b.Block(b.ExprStmt(b.Assign(b.Variable("x"), b.IntLit(1))))
	els := b.Block(b.ExprStmt(b.Assign(b.Variable("x"), b.IntLit(2))))
	ifStmt := b.If(cond, then, els)
	tree := b.Program(ifStmt)

	m, diags := generate(t, tree)
	require.NoError(t, ir.Validate(m))
	assert.False(t, diags.HasErrors())

	main, _ := m.FunctionByName("main")
	assert.Equal(t, 4, len(main.Blocks)) // entry, then, else, join
}

func TestIfStmtWithoutElseSkipsElseBlock(t *testing.T) {
	b := ast.NewBuilder()
	cond := b.BoolLit(true)
	then := b.Block(b.ExprStmt(b.Assign(b.Variable("x"), b.IntLit(1))))
	ifStmt := b.If(cond, then, ast.NoChild)
	tree := b.Program(ifStmt)

	m, diags := generate(t, tree)
	require.NoError(t, ir.Validate(m))
	assert.False(t, diags.HasErrors())

	main, _ := m.FunctionByName("main")
	assert.Equal(t, 3, len(main.Blocks)) // entry, then, join
}

func TestWhileLoopFormsHeaderBodyLatchExit(t *testing.T) {
	b := ast.NewBuilder()
	cond := b.BoolLit(true)
	body := b.Block(b.ExprStmt(b.Assign(b.Variable("x"), b.IntLit(1))))
	loop := b.While(cond, body)
	tree := b.Program(loop)

	m, diags := generate(t, tree)
	require.NoError(t, ir.Validate(m))
	assert.False(t, diags.HasErrors())

	main, _ := m.FunctionByName("main")
	assert.Equal(t, 5, len(main.Blocks)) // entry, header, body, latch, exit
}

func TestMixedIntFloatArithmeticInsertsCoercion(t *testing.T) {
	b := ast.NewBuilder()
	add := b.Binary("+", b.IntLit(1), b.FloatLit(2.5))
	tree := b.Program(b.ExprStmt(add))

	m, diags := generate(t, tree)
	require.NoError(t, ir.Validate(m))
	assert.False(t, diags.HasErrors())

	main, _ := m.FunctionByName("main")
	found := false
	for _, inst := range main.Blocks[0].Instructions {
		if inst.Op == ir.OpIntToFloat {
			found = true
		}
	}
	assert.True(t, found)
}

func TestStatementAfterReturnIsDroppedWithWarning(t *testing.T) {
	b := ast.NewBuilder()
	ret := b.Return(b.IntLit(1))
	echo := b.Echo(b.StringLit("never"))
	fn := b.FuncDecl("f", nil, b.Block(ret, echo))
	tree := b.Program(fn)

	m, diags := generate(t, tree)
	require.NoError(t, ir.Validate(m))

	_, warns := diags.Counts()
	assert.True(t, warns > 0)

	f, _ := m.FunctionByName("f")
	for _, inst := range f.Blocks[0].Instructions {
		assert.NotEqual(t, ir.OpEcho, inst.Op)
	}
}
