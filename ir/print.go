package ir

import (
	"fmt"
	"strings"
)

// Print renders a textual, human-readable listing of m: module, functions,
// blocks, and instructions in insertion order. This is the --emit-ir
// debugging format: one-way, not meant to be re-parsed.
func Print(m *Module) string {
	var b strings.Builder
	fmt.Fprintf(&b, "module %s (%s)\n", m.Name, m.SourceFile)
	for _, name := range m.Externs() {
		fmt.Fprintf(&b, "  extern %s\n", name)
	}
	for _, fn := range m.Functions {
		printFunction(&b, fn)
	}
	return b.String()
}

func printFunction(b *strings.Builder, fn *Function) {
	params := make([]string, len(fn.Parameters))
	for i, p := range fn.Parameters {
		params[i] = fmt.Sprintf("r%d: %s", p.Reg, p.Type)
	}
	fmt.Fprintf(b, "\nfunc %s(%s) -> %s {\n", fn.Name, strings.Join(params, ", "), fn.ReturnType)
	for _, blk := range fn.Blocks {
		fmt.Fprintf(b, "%s:\n", blk.Label)
		for _, inst := range blk.Instructions {
			fmt.Fprintf(b, "  %s\n", printInstruction(inst))
		}
		fmt.Fprintf(b, "  %s\n", printTerminator(blk.Terminator))
	}
	fmt.Fprintf(b, "}\n")
}

func printInstruction(inst Instruction) string {
	operands := make([]string, len(inst.Operands))
	for i, op := range inst.Operands {
		operands[i] = printOperand(op)
	}
	rhs := fmt.Sprintf("%s %s", inst.Op, strings.Join(operands, ", "))
	if inst.Result != nil {
		return fmt.Sprintf("r%d: %s = %s", *inst.Result, inst.Type, rhs)
	}
	return rhs
}

func printOperand(op Operand) string {
	switch op.Kind {
	case OperandRegister:
		return fmt.Sprintf("r%d", op.Reg)
	case OperandLabel:
		return op.Label
	default:
		return fmt.Sprintf("%v", op.Imm)
	}
}

func printTerminator(t *Terminator) string {
	switch t.Kind {
	case TermRet:
		if t.RetValue == nil {
			return "ret"
		}
		return fmt.Sprintf("ret r%d", *t.RetValue)
	case TermBr:
		return fmt.Sprintf("br %s", t.Target)
	case TermCondBr:
		return fmt.Sprintf("cond_br r%d, %s, %s", t.Cond, t.TrueLabel, t.FalseLabel)
	default:
		return "unreachable"
	}
}
