package optimize

import "github.com/wudi/phpaot/ir"

// regRewriter redirects a register to its canonical replacement, used by
// CSE and strength reduction when an instruction is dropped in favor of an
// earlier equivalent (or a simpler one) and every later reference to its
// result must follow the substitution.
type regRewriter map[ir.Register]ir.Register

func (r regRewriter) canon(reg ir.Register) ir.Register {
	for {
		next, ok := r[reg]
		if !ok {
			return reg
		}
		reg = next
	}
}

func (r regRewriter) rewriteOperands(ops []ir.Operand) []ir.Operand {
	if len(r) == 0 {
		return ops
	}
	out := make([]ir.Operand, len(ops))
	for i, op := range ops {
		if op.Kind == ir.OperandRegister {
			op.Reg = r.canon(op.Reg)
		}
		out[i] = op
	}
	return out
}

func (r regRewriter) rewriteTerminator(t *ir.Terminator) {
	if t == nil || len(r) == 0 {
		return
	}
	switch t.Kind {
	case ir.TermRet:
		if t.RetValue != nil {
			v := r.canon(*t.RetValue)
			t.RetValue = &v
		}
	case ir.TermCondBr:
		t.Cond = r.canon(t.Cond)
	}
}

// regOperand returns the register a register-kind operand holds.
func regOperand(op ir.Operand) (ir.Register, bool) {
	if op.Kind == ir.OperandRegister {
		return op.Reg, true
	}
	return 0, false
}
