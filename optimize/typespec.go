package optimize

import (
	"github.com/wudi/phpaot/ir"
	"github.com/wudi/phpaot/types"
)

// typeSpecializationPass narrows an arithmetic instruction's union-typed
// result to a single concrete type once its two operand registers carry
// the same concrete int or float type: ConstProp only folds int/int and str/str, so
// after it has run, a surviving union-typed OpAdd/OpSub/OpMul/OpMod over
// two now-concrete-typed registers can be narrowed even without folding
// the value itself (e.g. one operand is still a runtime load).
type typeSpecializationPass struct{}

func (p *typeSpecializationPass) Name() string { return "type_specialization" }

func (p *typeSpecializationPass) Apply(m *ir.Module, stats *Stats) bool {
	changed := false
	for _, fn := range m.Functions {
		for _, b := range fn.Blocks {
			if specializeBlock(b, stats) {
				changed = true
			}
		}
	}
	return changed
}

// arithOps are the opcodes whose int/int result type is safe to narrow.
// OpDiv is excluded: PHP's / yields a float for inexact integer division,
// so an int/int div stays union-typed unless constprop proved it exact.
// OpMod is always exact, so it narrows.
var arithOps = map[ir.Opcode]bool{
	ir.OpAdd: true, ir.OpSub: true, ir.OpMul: true, ir.OpMod: true,
}

func specializeBlock(b *ir.BasicBlock, stats *Stats) bool {
	concrete := make(map[ir.Register]types.Concrete)
	changed := false

	for i := range b.Instructions {
		inst := &b.Instructions[i]
		if c, ok := inst.Type.IsConcrete(); ok && inst.Result != nil {
			concrete[*inst.Result] = c
		}

		if !arithOps[inst.Op] || inst.Result == nil || !inst.Type.IsUnion() {
			continue
		}
		lr, lok := regOperand(inst.Operands[0])
		rr, rok := regOperand(inst.Operands[1])
		if !lok || !rok {
			continue
		}
		lc, lcok := concrete[lr]
		rc, rcok := concrete[rr]
		if !lcok || !rcok || lc != rc || (lc != types.Int && lc != types.Float) {
			continue
		}
		inst.Type = types.Of(lc)
		concrete[*inst.Result] = lc
		changed = true
		stats.TypeSpecializations++
	}
	return changed
}
