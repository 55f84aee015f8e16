// Package codegen deterministically lowers an ir.Module to back-end
// surface-language text: extern declarations for every runtime symbol the
// module uses, one back-end function per IR function, and a program entry
// point that calls main. For identical IR, target, and optimization level,
// the emitted bytes are identical across runs. Insertion-order slices
// only, never a map iteration.
package codegen

import (
	"fmt"
	"strings"

	"github.com/wudi/phpaot/abi"
	"github.com/wudi/phpaot/ir"
	"github.com/wudi/phpaot/optimize"
	"github.com/wudi/phpaot/target"
	"github.com/wudi/phpaot/types"
)

// Emit lowers m to back-end source text for tgt at optimization level opt.
// opt only affects a leading comment identifying the compilation unit's
// parameters; it never changes the generated instructions, since the
// IR handed to Emit has already had level-appropriate optimization passes
// applied upstream.
func Emit(m *ir.Module, tgt target.Target, opt optimize.OptLevel) string {
	var b strings.Builder

	fmt.Fprintf(&b, "// module %s\n", m.Name)
	fmt.Fprintf(&b, "// source %s\n", m.SourceFile)
	fmt.Fprintf(&b, "// target %s\n", tgt.ToTriple())
	fmt.Fprintf(&b, "// opt %s\n\n", opt)

	for _, name := range m.Externs() {
		emitExtern(&b, name)
	}
	b.WriteString("\n")

	for _, fn := range m.Functions {
		emitFunction(&b, fn)
		b.WriteString("\n")
	}

	b.WriteString("pub fn entry() void {\n")
	b.WriteString("    main();\n")
	b.WriteString("}\n")

	return b.String()
}

func emitExtern(b *strings.Builder, name string) {
	fn, ok := abi.Lookup(name)
	if !ok {
		fmt.Fprintf(b, "extern fn %s() void;\n", name)
		return
	}
	fmt.Fprintf(b, "extern fn %s(%s) %s;\n", fn.Name, strings.Join(fn.Parameters, ", "), fn.Return)
}

func emitFunction(b *strings.Builder, fn *ir.Function) {
	params := make([]string, len(fn.Parameters))
	for i, p := range fn.Parameters {
		params[i] = fmt.Sprintf("r%d: %s", p.Reg, lowerType(p.Type))
	}
	fmt.Fprintf(b, "fn %s(%s) %s {\n", fn.Name, strings.Join(params, ", "), lowerType(fn.ReturnType))
	for _, blk := range fn.Blocks {
		fmt.Fprintf(b, "%s:\n", blk.Label)
		for _, inst := range blk.Instructions {
			b.WriteString("    ")
			b.WriteString(emitInstruction(inst))
			b.WriteString("\n")
		}
		b.WriteString("    ")
		b.WriteString(emitTerminator(blk.Terminator))
		b.WriteString("\n")
	}
	b.WriteString("}\n")
}

// lowerType maps an inferred type onto the back-end's surface type
// vocabulary. Unions and every other concrete type fall back to the
// opaque boxed representation.
func lowerType(t types.Type) string {
	if c, ok := t.IsConcrete(); ok {
		switch c {
		case types.Int:
			return "i64"
		case types.Float:
			return "f64"
		case types.Bool:
			return "bool"
		case types.String:
			return "*const PHPString"
		}
	}
	return "*mut PHPValue"
}

func emitInstruction(inst ir.Instruction) string {
	operands := make([]string, len(inst.Operands))
	for i, op := range inst.Operands {
		operands[i] = emitOperand(op)
	}
	rhs := fmt.Sprintf("%s(%s)", inst.Op, strings.Join(operands, ", "))
	if inst.Result != nil {
		return fmt.Sprintf("let r%d: %s = %s;", *inst.Result, lowerType(inst.Type), rhs)
	}
	return rhs + ";"
}

func emitOperand(op ir.Operand) string {
	switch op.Kind {
	case ir.OperandRegister:
		return fmt.Sprintf("r%d", op.Reg)
	case ir.OperandLabel:
		return fmt.Sprintf("%q", op.Label)
	default:
		return formatImmediate(op.Imm)
	}
}

func formatImmediate(v interface{}) string {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", val)
	}
}

func emitTerminator(t *ir.Terminator) string {
	switch t.Kind {
	case ir.TermRet:
		if t.RetValue == nil {
			return "return;"
		}
		return fmt.Sprintf("return r%d;", *t.RetValue)
	case ir.TermBr:
		return fmt.Sprintf("goto %s;", t.Target)
	case ir.TermCondBr:
		return fmt.Sprintf("if (r%d) goto %s; else goto %s;", t.Cond, t.TrueLabel, t.FalseLabel)
	default:
		return "unreachable();"
	}
}

// FileName derives the intermediate source file name for module m:
// "<module>.<backend-ext>".
func FileName(m *ir.Module) string {
	return m.Name + ".zig"
}
