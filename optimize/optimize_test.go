package optimize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wudi/phpaot/ir"
	"github.com/wudi/phpaot/types"
)

func reg(r ir.Register) *ir.Register { return &r }

func TestPassConfigForMatchesRequiredTable(t *testing.T) {
	none := PassConfigFor(Debug)
	assert.Equal(t, PassConfig{}, none)

	basic := PassConfigFor(ReleaseSafe)
	assert.True(t, basic.DeadCodeElimination)
	assert.True(t, basic.ConstantPropagation)
	assert.False(t, basic.CommonSubexpressionElimination)
	assert.False(t, basic.StrengthReduction)
	assert.False(t, basic.FunctionInlining)
	assert.False(t, basic.TypeSpecialization)

	aggressive := PassConfigFor(ReleaseFast)
	assert.True(t, aggressive.DeadCodeElimination)
	assert.True(t, aggressive.ConstantPropagation)
	assert.True(t, aggressive.CommonSubexpressionElimination)
	assert.True(t, aggressive.StrengthReduction)
	assert.True(t, aggressive.FunctionInlining)
	assert.True(t, aggressive.TypeSpecialization)

	size := PassConfigFor(ReleaseSmall)
	assert.True(t, size.DeadCodeElimination)
	assert.True(t, size.ConstantPropagation)
	assert.True(t, size.CommonSubexpressionElimination)
	assert.True(t, size.StrengthReduction)
	assert.False(t, size.FunctionInlining)
	assert.True(t, size.TypeSpecialization)
}

func TestPassConfigCountIsMonotonic(t *testing.T) {
	none := PassConfigFor(Debug).CountEnabled()
	basic := PassConfigFor(ReleaseSafe).CountEnabled()
	aggressive := PassConfigFor(ReleaseFast).CountEnabled()
	assert.LessOrEqual(t, none, basic)
	assert.LessOrEqual(t, basic, aggressive)
}

func TestLLVMInlineThresholdNeverExceedsCap(t *testing.T) {
	for _, lvl := range []OptLevel{Debug, ReleaseSafe, ReleaseFast, ReleaseSmall} {
		cfg := LLVMConfigFor(lvl)
		assert.LessOrEqual(t, cfg.InlineThreshold, 1000)
	}
}

func TestParseOptLevelAcceptsBothVocabularies(t *testing.T) {
	cases := map[string]OptLevel{
		"none": Debug, "debug": Debug,
		"basic": ReleaseSafe, "release-safe": ReleaseSafe,
		"aggressive": ReleaseFast, "release-fast": ReleaseFast,
		"size": ReleaseSmall, "release-small": ReleaseSmall,
	}
	for input, want := range cases {
		got, err := ParseOptLevel(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseOptLevel("bogus")
	assert.Error(t, err)
}

// buildModule constructs a single-function module with one block built
// from the given instructions and terminator, for direct pass testing.
func buildModule(instrs []ir.Instruction, term ir.Terminator, nextReg int) *ir.Module {
	m := ir.NewModule("demo", "t.php")
	fn := ir.NewFunction("main")
	fn.ReturnType = types.Conservative()
	b := fn.AddBlock(fn.NewBlockLabel("entry"))
	b.Instructions = instrs
	b.Terminator = &term
	for i := 0; i < nextReg; i++ {
		fn.AllocRegister()
	}
	m.AddFunction(fn)
	return m
}

func TestDeadCodeEliminationDropsUnusedResultAndUnreachableBlock(t *testing.T) {
	m := ir.NewModule("demo", "t.php")
	fn := ir.NewFunction("main")
	fn.ReturnType = types.Of(types.Null)
	entry := fn.AddBlock(fn.NewBlockLabel("entry"))
	dead := fn.AddBlock(fn.NewBlockLabel("dead"))
	fn.AllocRegister() // r0: dead, unused
	fn.AllocRegister() // r1: used in ret
	entry.Instructions = []ir.Instruction{
		{Op: ir.OpConstInt, Operands: []ir.Operand{ir.ImmOperand(int64(7))}, Result: reg(0), Type: types.Of(types.Int)},
		{Op: ir.OpConstNull, Operands: []ir.Operand{ir.ImmOperand(nil)}, Result: reg(1), Type: types.Of(types.Null)},
	}
	entry.Terminator = &ir.Terminator{Kind: ir.TermRet, RetValue: reg(1)}
	dead.Instructions = nil
	dead.Terminator = &ir.Terminator{Kind: ir.TermUnreachable}
	m.AddFunction(fn)

	o := New(ReleaseFast)
	stats := o.Run(m)

	require.Len(t, fn.Blocks, 1)
	require.Len(t, fn.Blocks[0].Instructions, 1)
	assert.Equal(t, ir.OpConstNull, fn.Blocks[0].Instructions[0].Op)
	assert.GreaterOrEqual(t, stats.DeadInstructionsRemoved, 1)
	require.NoError(t, ir.Validate(m))
}

func TestConstantPropagationFoldsIntArithmetic(t *testing.T) {
	m := buildModule([]ir.Instruction{
		{Op: ir.OpConstInt, Operands: []ir.Operand{ir.ImmOperand(int64(2))}, Result: reg(0), Type: types.Of(types.Int)},
		{Op: ir.OpConstInt, Operands: []ir.Operand{ir.ImmOperand(int64(3))}, Result: reg(1), Type: types.Of(types.Int)},
		{Op: ir.OpAdd, Operands: []ir.Operand{ir.RegOperand(0), ir.RegOperand(1)}, Result: reg(2), Type: types.Of(types.Int)},
	}, ir.Terminator{Kind: ir.TermRet, RetValue: reg(2)}, 3)

	o := New(ReleaseSafe)
	stats := o.Run(m)

	fn, _ := m.FunctionByName("main")
	last := fn.Blocks[0].Instructions[len(fn.Blocks[0].Instructions)-1]
	assert.Equal(t, ir.OpConstInt, last.Op)
	assert.Equal(t, int64(5), last.Operands[0].Imm)
	assert.Equal(t, 1, stats.ConstantsPropagated)
}

func TestConstantPropagationSkipsDivisionByZero(t *testing.T) {
	m := buildModule([]ir.Instruction{
		{Op: ir.OpConstInt, Operands: []ir.Operand{ir.ImmOperand(int64(2))}, Result: reg(0), Type: types.Of(types.Int)},
		{Op: ir.OpConstInt, Operands: []ir.Operand{ir.ImmOperand(int64(0))}, Result: reg(1), Type: types.Of(types.Int)},
		{Op: ir.OpDiv, Operands: []ir.Operand{ir.RegOperand(0), ir.RegOperand(1)}, Result: reg(2), Type: types.Of(types.Int)},
	}, ir.Terminator{Kind: ir.TermRet, RetValue: reg(2)}, 3)

	o := New(ReleaseSafe)
	o.Run(m)

	fn, _ := m.FunctionByName("main")
	last := fn.Blocks[0].Instructions[len(fn.Blocks[0].Instructions)-1]
	assert.Equal(t, ir.OpDiv, last.Op)
}

func TestCommonSubexpressionEliminationMergesDuplicateAdd(t *testing.T) {
	// Both adds feed the mul, so neither is dead; CSE merges the second
	// into the first and the mul sees the same register twice.
	m := buildModule([]ir.Instruction{
		{Op: ir.OpLoadVar, Operands: []ir.Operand{ir.ImmOperand("x")}, Result: reg(0), Type: types.Of(types.Int)},
		{Op: ir.OpLoadVar, Operands: []ir.Operand{ir.ImmOperand("y")}, Result: reg(1), Type: types.Of(types.Int)},
		{Op: ir.OpAdd, Operands: []ir.Operand{ir.RegOperand(0), ir.RegOperand(1)}, Result: reg(2), Type: types.Of(types.Int)},
		{Op: ir.OpAdd, Operands: []ir.Operand{ir.RegOperand(0), ir.RegOperand(1)}, Result: reg(3), Type: types.Of(types.Int)},
		{Op: ir.OpMul, Operands: []ir.Operand{ir.RegOperand(2), ir.RegOperand(3)}, Result: reg(4), Type: types.Of(types.Int)},
	}, ir.Terminator{Kind: ir.TermRet, RetValue: reg(4)}, 5)

	o := New(ReleaseFast)
	stats := o.Run(m)

	fn, _ := m.FunctionByName("main")
	require.NoError(t, ir.Validate(m))
	assert.Equal(t, 1, stats.CommonSubexpressionsEliminated)

	adds := 0
	for _, inst := range fn.Blocks[0].Instructions {
		if inst.Op == ir.OpAdd {
			adds++
			require.NotNil(t, inst.Result)
			assert.Equal(t, ir.Register(2), *inst.Result)
		}
		if inst.Op == ir.OpMul {
			assert.Equal(t, ir.Register(2), inst.Operands[0].Reg)
			assert.Equal(t, ir.Register(2), inst.Operands[1].Reg)
		}
	}
	assert.Equal(t, 1, adds)
}

func TestStrengthReductionSimplifiesMulByOneAndAddZero(t *testing.T) {
	m := buildModule([]ir.Instruction{
		{Op: ir.OpLoadVar, Operands: []ir.Operand{ir.ImmOperand("x")}, Result: reg(0), Type: types.Of(types.Int)},
		{Op: ir.OpConstInt, Operands: []ir.Operand{ir.ImmOperand(int64(1))}, Result: reg(1), Type: types.Of(types.Int)},
		{Op: ir.OpMul, Operands: []ir.Operand{ir.RegOperand(0), ir.RegOperand(1)}, Result: reg(2), Type: types.Of(types.Int)},
		{Op: ir.OpConstInt, Operands: []ir.Operand{ir.ImmOperand(int64(0))}, Result: reg(3), Type: types.Of(types.Int)},
		{Op: ir.OpAdd, Operands: []ir.Operand{ir.RegOperand(2), ir.RegOperand(3)}, Result: reg(4), Type: types.Of(types.Int)},
	}, ir.Terminator{Kind: ir.TermRet, RetValue: reg(4)}, 5)

	o := New(ReleaseFast)
	stats := o.Run(m)

	fn, _ := m.FunctionByName("main")
	require.NoError(t, ir.Validate(m))
	assert.GreaterOrEqual(t, stats.StrengthReductions, 2)
	assert.Equal(t, ir.Register(0), *fn.Blocks[0].Terminator.RetValue)
}

func TestTypeSpecializationNarrowsUnionAfterConcreteOperands(t *testing.T) {
	m := buildModule([]ir.Instruction{
		{Op: ir.OpConstInt, Operands: []ir.Operand{ir.ImmOperand(int64(2))}, Result: reg(0), Type: types.Of(types.Int)},
		{Op: ir.OpConstInt, Operands: []ir.Operand{ir.ImmOperand(int64(4))}, Result: reg(1), Type: types.Of(types.Int)},
		{Op: ir.OpMul, Operands: []ir.Operand{ir.RegOperand(0), ir.RegOperand(1)}, Result: reg(2), Type: types.Union(types.Of(types.Int), types.Of(types.String))},
	}, ir.Terminator{Kind: ir.TermRet, RetValue: reg(2)}, 3)

	o := New(ReleaseFast)
	// ConstantPropagation folds this particular Mul away before
	// TypeSpecialization runs, so drive the pass directly to exercise its
	// narrowing logic in isolation.
	_ = o
	var stats Stats
	fn, _ := m.FunctionByName("main")
	specializeBlock(fn.Blocks[0], &stats)
	assert.False(t, fn.Blocks[0].Instructions[2].Type.IsUnion())
	assert.Equal(t, 1, stats.TypeSpecializations)
}

func TestTypeSpecializationNeverNarrowsDiv(t *testing.T) {
	// 7/2 is 3.5 at runtime, so an int/int div keeps its int|float union
	// even when both operand types are statically known.
	m := buildModule([]ir.Instruction{
		{Op: ir.OpLoadVar, Operands: []ir.Operand{ir.ImmOperand("x")}, Result: reg(0), Type: types.Of(types.Int)},
		{Op: ir.OpLoadVar, Operands: []ir.Operand{ir.ImmOperand("y")}, Result: reg(1), Type: types.Of(types.Int)},
		{Op: ir.OpDiv, Operands: []ir.Operand{ir.RegOperand(0), ir.RegOperand(1)}, Result: reg(2), Type: types.Union(types.Of(types.Int), types.Of(types.Float))},
	}, ir.Terminator{Kind: ir.TermRet, RetValue: reg(2)}, 3)

	var stats Stats
	fn, _ := m.FunctionByName("main")
	specializeBlock(fn.Blocks[0], &stats)

	assert.True(t, fn.Blocks[0].Instructions[2].Type.IsUnion())
	assert.Equal(t, 0, stats.TypeSpecializations)
}

func TestOptimizerIsIdempotent(t *testing.T) {
	m := buildModule([]ir.Instruction{
		{Op: ir.OpConstInt, Operands: []ir.Operand{ir.ImmOperand(int64(2))}, Result: reg(0), Type: types.Of(types.Int)},
		{Op: ir.OpConstInt, Operands: []ir.Operand{ir.ImmOperand(int64(3))}, Result: reg(1), Type: types.Of(types.Int)},
		{Op: ir.OpAdd, Operands: []ir.Operand{ir.RegOperand(0), ir.RegOperand(1)}, Result: reg(2), Type: types.Of(types.Int)},
	}, ir.Terminator{Kind: ir.TermRet, RetValue: reg(2)}, 3)

	o := New(ReleaseFast)
	o.Run(m)
	second := o.Run(m)

	assert.Equal(t, Stats{}, second)
	require.NoError(t, ir.Validate(m))
}

func TestFunctionInliningSplicesTrivialCallee(t *testing.T) {
	m := ir.NewModule("demo", "t.php")

	callee := ir.NewFunction("double")
	callee.ReturnType = types.Of(types.Int)
	p := callee.AllocRegister()
	callee.Parameters = []ir.Param{{Reg: p, Type: types.Of(types.Int)}}
	cb := callee.AddBlock(callee.NewBlockLabel("entry"))
	cb.Instructions = []ir.Instruction{
		{Op: ir.OpStoreVar, Operands: []ir.Operand{ir.ImmOperand("n"), ir.RegOperand(p)}},
		{Op: ir.OpLoadVar, Operands: []ir.Operand{ir.ImmOperand("n")}, Result: reg(1), Type: types.Of(types.Int)},
		{Op: ir.OpLoadVar, Operands: []ir.Operand{ir.ImmOperand("n")}, Result: reg(2), Type: types.Of(types.Int)},
		{Op: ir.OpAdd, Operands: []ir.Operand{ir.RegOperand(1), ir.RegOperand(2)}, Result: reg(3), Type: types.Of(types.Int)},
	}
	cb.Terminator = &ir.Terminator{Kind: ir.TermRet, RetValue: reg(3)}
	callee.AllocRegister() // r1
	callee.AllocRegister() // r2
	callee.AllocRegister() // r3
	m.AddFunction(callee)

	caller := ir.NewFunction("main")
	caller.ReturnType = types.Of(types.Null)
	argReg := caller.AllocRegister()
	resultReg := caller.AllocRegister()
	entry := caller.AddBlock(caller.NewBlockLabel("entry"))
	entry.Instructions = []ir.Instruction{
		{Op: ir.OpConstInt, Operands: []ir.Operand{ir.ImmOperand(int64(5))}, Result: reg(argReg), Type: types.Of(types.Int)},
		{Op: ir.OpCall, Operands: []ir.Operand{ir.LabelOperand("double"), ir.RegOperand(argReg)}, Result: reg(resultReg), Type: types.Of(types.Int)},
	}
	entry.Terminator = &ir.Terminator{Kind: ir.TermRet, RetValue: reg(resultReg)}
	m.AddFunction(caller)

	o := New(ReleaseFast)
	stats := o.Run(m)

	require.NoError(t, ir.Validate(m))
	assert.Equal(t, 1, stats.FunctionsInlined)
	for _, inst := range caller.Blocks[0].Instructions {
		assert.NotEqual(t, ir.OpCall, inst.Op)
	}
}
