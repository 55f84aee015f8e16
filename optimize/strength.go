package optimize

import "github.com/wudi/phpaot/ir"

// strengthReductionPass rewrites arithmetic instructions with an
// identity-element constant operand into a cheaper equivalent: a direct
// register copy (for x*1, x+0) or a constant (for x*0), redirecting later
// references via a regRewriter the same way csePass does.
type strengthReductionPass struct{}

func (p *strengthReductionPass) Name() string { return "strength_reduction" }

func (p *strengthReductionPass) Apply(m *ir.Module, stats *Stats) bool {
	changed := false
	for _, fn := range m.Functions {
		for _, b := range fn.Blocks {
			if strengthReduceBlock(b, stats) {
				changed = true
			}
		}
	}
	return changed
}

func strengthReduceBlock(b *ir.BasicBlock, stats *Stats) bool {
	rewriter := make(regRewriter)
	consts := make(map[ir.Register]int64)
	changed := false

	var kept []ir.Instruction
	for _, inst := range b.Instructions {
		inst.Operands = rewriter.rewriteOperands(inst.Operands)

		if inst.Op == ir.OpConstInt {
			consts[*inst.Result] = inst.Operands[0].Imm.(int64)
			kept = append(kept, inst)
			continue
		}

		if (inst.Op == ir.OpMul || inst.Op == ir.OpAdd) && inst.Result != nil {
			lr, lok := regOperand(inst.Operands[0])
			rr, rok := regOperand(inst.Operands[1])
			if lok && rok {
				if reduced, ok := reduceIdentity(inst.Op, lr, rr, consts); ok {
					rewriter[*inst.Result] = reduced
					changed = true
					stats.StrengthReductions++
					continue
				}
				if zero, ok := reduceZero(inst.Op, lr, rr, consts); ok {
					result := inst.Result
					newInst := ir.Instruction{Op: ir.OpConstInt, Operands: []ir.Operand{ir.ImmOperand(zero)}, Result: result, Type: inst.Type}
					consts[*result] = zero
					kept = append(kept, newInst)
					changed = true
					stats.StrengthReductions++
					continue
				}
			}
		}
		kept = append(kept, inst)
	}
	b.Instructions = kept
	rewriter.rewriteTerminator(b.Terminator)
	return changed
}

// reduceIdentity returns the surviving operand register for x*1, 1*x,
// x+0 or 0+x.
func reduceIdentity(op ir.Opcode, l, r ir.Register, consts map[ir.Register]int64) (ir.Register, bool) {
	lc, lok := consts[l]
	rc, rok := consts[r]
	switch op {
	case ir.OpMul:
		if rok && rc == 1 {
			return l, true
		}
		if lok && lc == 1 {
			return r, true
		}
	case ir.OpAdd:
		if rok && rc == 0 {
			return l, true
		}
		if lok && lc == 0 {
			return r, true
		}
	}
	return 0, false
}

// reduceZero returns the folded constant for x*0 or 0*x.
func reduceZero(op ir.Opcode, l, r ir.Register, consts map[ir.Register]int64) (int64, bool) {
	if op != ir.OpMul {
		return 0, false
	}
	if rc, ok := consts[r]; ok && rc == 0 {
		return 0, true
	}
	if lc, ok := consts[l]; ok && lc == 0 {
		return 0, true
	}
	return 0, false
}
