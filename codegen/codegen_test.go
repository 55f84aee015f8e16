package codegen

import (
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wudi/phpaot/ir"
	"github.com/wudi/phpaot/optimize"
	"github.com/wudi/phpaot/target"
	"github.com/wudi/phpaot/types"
)

func buildSampleModule() *ir.Module {
	m := ir.NewModule("sample", "sample.php")
	m.DeclareExtern("php_echo")

	fn := ir.NewFunction("greet")
	blk := fn.AddBlock(fn.NewBlockLabel("entry"))
	reg := fn.AllocRegister()
	blk.Instructions = append(blk.Instructions, ir.Instruction{
		Op: ir.OpConstStr, Operands: []ir.Operand{ir.ImmOperand("Hello")}, Result: &reg, Type: types.Of(types.String),
	})
	blk.Instructions = append(blk.Instructions, ir.Instruction{
		Op: ir.OpEcho, Operands: []ir.Operand{ir.RegOperand(reg)},
	})
	blk.Terminator = &ir.Terminator{Kind: ir.TermRet}
	m.AddFunction(fn)

	main := ir.NewFunction("main")
	mainBlk := main.AddBlock(main.NewBlockLabel("entry"))
	retReg := main.AllocRegister()
	mainBlk.Instructions = append(mainBlk.Instructions, ir.Instruction{Op: ir.OpConstNull, Result: &retReg, Type: types.Of(types.Null)})
	mainBlk.Terminator = &ir.Terminator{Kind: ir.TermRet, RetValue: &retReg}
	m.AddFunction(main)

	return m
}

func TestEmitIsDeterministicAcrossRuns(t *testing.T) {
	m := buildSampleModule()
	tgt, err := target.FromString("x86_64-linux-gnu")
	require.NoError(t, err)

	first := Emit(m, tgt, optimize.ReleaseSafe)
	second := Emit(m, tgt, optimize.ReleaseSafe)

	if first != second {
		dmp := diffmatchpatch.New()
		diffs := dmp.DiffMain(first, second, true)
		t.Fatalf("emitter is not deterministic:\n%s", dmp.DiffPrettyText(diffs))
	}
}

func TestEmitDeclaresExternsAndProgramEntry(t *testing.T) {
	m := buildSampleModule()
	tgt, _ := target.FromString("x86_64-linux-gnu")

	out := Emit(m, tgt, optimize.Debug)

	assert.Contains(t, out, "extern fn php_echo(*mut PHPValue) void;")
	assert.Contains(t, out, "fn greet(")
	assert.Contains(t, out, "fn main(")
	assert.Contains(t, out, "pub fn entry() void {\n    main();\n}\n")
}

func TestLowerTypeMapping(t *testing.T) {
	assert.Equal(t, "i64", lowerType(types.Of(types.Int)))
	assert.Equal(t, "f64", lowerType(types.Of(types.Float)))
	assert.Equal(t, "bool", lowerType(types.Of(types.Bool)))
	assert.Equal(t, "*const PHPString", lowerType(types.Of(types.String)))
	assert.Equal(t, "*mut PHPValue", lowerType(types.Of(types.Array)))
	assert.Equal(t, "*mut PHPValue", lowerType(types.Union(types.Of(types.Int), types.Of(types.String))))
}

func TestFileNameUsesModuleNameAndBackendExtension(t *testing.T) {
	m := ir.NewModule("sample", "sample.php")
	assert.Equal(t, "sample.zig", FileName(m))
}
