package optimize

import "github.com/wudi/phpaot/ir"

// constantPropagationPass folds arithmetic and concatenation instructions
// whose operands are both compile-time constants (literal constants or the
// result of an earlier fold) into a single const instruction, within each
// block.
type constantPropagationPass struct{}

func (p *constantPropagationPass) Name() string { return "constant_propagation" }

func (p *constantPropagationPass) Apply(m *ir.Module, stats *Stats) bool {
	changed := false
	for _, fn := range m.Functions {
		for _, b := range fn.Blocks {
			if foldBlock(b, stats) {
				changed = true
			}
		}
	}
	return changed
}

type constVal struct {
	op ir.Opcode // OpConstInt, OpConstFloat, OpConstStr or OpConstBool
	i  int64
	f  float64
	s  string
	b  bool
}

func foldBlock(b *ir.BasicBlock, stats *Stats) bool {
	consts := make(map[ir.Register]constVal)
	changed := false

	for i := range b.Instructions {
		inst := &b.Instructions[i]
		switch inst.Op {
		case ir.OpConstInt:
			consts[*inst.Result] = constVal{op: ir.OpConstInt, i: inst.Operands[0].Imm.(int64)}
		case ir.OpConstFloat:
			consts[*inst.Result] = constVal{op: ir.OpConstFloat, f: inst.Operands[0].Imm.(float64)}
		case ir.OpConstStr:
			consts[*inst.Result] = constVal{op: ir.OpConstStr, s: inst.Operands[0].Imm.(string)}
		case ir.OpConstBool:
			consts[*inst.Result] = constVal{op: ir.OpConstBool, b: inst.Operands[0].Imm.(bool)}

		case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod:
			lr, lok := regOperand(inst.Operands[0])
			rr, rok := regOperand(inst.Operands[1])
			if !lok || !rok {
				continue
			}
			lc, lcok := consts[lr]
			rc, rcok := consts[rr]
			if !lcok || !rcok || lc.op != ir.OpConstInt || rc.op != ir.OpConstInt {
				continue
			}
			folded, ok := foldIntArith(inst.Op, lc.i, rc.i)
			if !ok {
				continue
			}
			result := inst.Result
			*inst = ir.Instruction{Op: ir.OpConstInt, Operands: []ir.Operand{ir.ImmOperand(folded)}, Result: result, Type: inst.Type}
			consts[*result] = constVal{op: ir.OpConstInt, i: folded}
			changed = true
			stats.ConstantsPropagated++

		case ir.OpConcat:
			lr, lok := regOperand(inst.Operands[0])
			rr, rok := regOperand(inst.Operands[1])
			if !lok || !rok {
				continue
			}
			lc, lcok := consts[lr]
			rc, rcok := consts[rr]
			if !lcok || !rcok || lc.op != ir.OpConstStr || rc.op != ir.OpConstStr {
				continue
			}
			result := inst.Result
			folded := lc.s + rc.s
			*inst = ir.Instruction{Op: ir.OpConstStr, Operands: []ir.Operand{ir.ImmOperand(folded)}, Result: result, Type: inst.Type}
			consts[*result] = constVal{op: ir.OpConstStr, s: folded}
			changed = true
			stats.ConstantsPropagated++
		}
	}
	return changed
}

func foldIntArith(op ir.Opcode, l, r int64) (int64, bool) {
	switch op {
	case ir.OpAdd:
		return l + r, true
	case ir.OpSub:
		return l - r, true
	case ir.OpMul:
		return l * r, true
	case ir.OpDiv:
		// Integer division in PHP yields a float unless it is exact, so
		// only the exact case folds to an int constant.
		if r == 0 || l%r != 0 {
			return 0, false
		}
		return l / r, true
	case ir.OpMod:
		if r == 0 {
			return 0, false
		}
		return l % r, true
	default:
		return 0, false
	}
}
