package optimize

import (
	"fmt"

	"github.com/wudi/phpaot/ir"
)

// inliningPass splices trivial callees directly into their call sites: a
// callee is eligible when its entire body is one block ending in ret and
// it makes no calls of its own, so inlining it can never introduce a new
// control-flow edge or recurse into itself. Each inlined copy gets freshly
// allocated registers and every OpLoadVar/OpStoreVar variable name
// disambiguated by a per-call-site suffix, so the callee's locals can
// never alias the caller's own variables of the same name.
type inliningPass struct{}

func (p *inliningPass) Name() string { return "function_inlining" }

func (p *inliningPass) Apply(m *ir.Module, stats *Stats) bool {
	changed := false
	counter := 0
	for _, fn := range m.Functions {
		for _, b := range fn.Blocks {
			if inlineBlock(m, fn, b, &counter, stats) {
				changed = true
			}
		}
	}
	return changed
}

// inlineEligible reports whether callee can be spliced verbatim: a single
// block ending in ret, with no calls of its own.
func inlineEligible(callee *ir.Function) bool {
	if len(callee.Blocks) != 1 {
		return false
	}
	body := callee.Blocks[0]
	if body.Terminator == nil || body.Terminator.Kind != ir.TermRet {
		return false
	}
	for _, inst := range body.Instructions {
		if inst.Op == ir.OpCall {
			return false
		}
	}
	return true
}

func inlineBlock(m *ir.Module, fn *ir.Function, b *ir.BasicBlock, counter *int, stats *Stats) bool {
	rewriter := make(regRewriter)
	changed := false
	var out []ir.Instruction
	for _, inst := range b.Instructions {
		inst.Operands = rewriter.rewriteOperands(inst.Operands)
		if inst.Op != ir.OpCall {
			out = append(out, inst)
			continue
		}
		calleeName := inst.Operands[0].Label
		callee, ok := m.FunctionByName(calleeName)
		if !ok || callee == fn || !inlineEligible(callee) {
			out = append(out, inst)
			continue
		}

		*counter++
		suffix := fmt.Sprintf("$inline%d", *counter)
		regMap := make(map[ir.Register]ir.Register)
		for i, param := range callee.Parameters {
			argReg, _ := regOperand(inst.Operands[i+1])
			regMap[param.Reg] = argReg
		}

		for _, ci := range callee.Blocks[0].Instructions {
			out = append(out, renameInlinedInstruction(ci, regMap, fn, suffix))
		}

		if inst.Result != nil {
			if rv := callee.Blocks[0].Terminator.RetValue; rv != nil {
				rewriter[*inst.Result] = mapReg(*rv, regMap, fn)
			} else {
				out = append(out, ir.Instruction{Op: ir.OpConstNull, Result: inst.Result, Type: inst.Type})
			}
		}
		changed = true
		stats.FunctionsInlined++
	}
	b.Instructions = out
	rewriter.rewriteTerminator(b.Terminator)
	return changed
}

// renameInlinedInstruction copies inst into the caller's function,
// remapping every register operand/result through regMap (allocating a
// fresh caller register the first time a callee register is seen) and
// suffixing every OpLoadVar/OpStoreVar variable name so it cannot collide
// with a caller local of the same name.
func renameInlinedInstruction(inst ir.Instruction, regMap map[ir.Register]ir.Register, fn *ir.Function, suffix string) ir.Instruction {
	newOps := make([]ir.Operand, len(inst.Operands))
	for i, op := range inst.Operands {
		switch {
		case op.Kind == ir.OperandRegister:
			newOps[i] = ir.RegOperand(mapReg(op.Reg, regMap, fn))
		case i == 0 && (inst.Op == ir.OpLoadVar || inst.Op == ir.OpStoreVar):
			newOps[i] = ir.ImmOperand(op.Imm.(string) + suffix)
		default:
			newOps[i] = op
		}
	}
	var newResult *ir.Register
	if inst.Result != nil {
		r := mapReg(*inst.Result, regMap, fn)
		newResult = &r
	}
	return ir.Instruction{Op: inst.Op, Operands: newOps, Result: newResult, Type: inst.Type, Loc: inst.Loc}
}

func mapReg(reg ir.Register, regMap map[ir.Register]ir.Register, fn *ir.Function) ir.Register {
	if mapped, ok := regMap[reg]; ok {
		return mapped
	}
	fresh := fn.AllocRegister()
	regMap[reg] = fresh
	return fresh
}
