package optimize

import "github.com/wudi/phpaot/ir"

// deadCodePass removes basic blocks unreachable from the entry block and
// instructions whose result register is never used, iterating each
// function to its own local fixpoint (removing an instruction can make its
// own operands' producers dead in turn).
type deadCodePass struct{}

func (p *deadCodePass) Name() string { return "dead_code_elimination" }

func (p *deadCodePass) Apply(m *ir.Module, stats *Stats) bool {
	changed := false
	for _, fn := range m.Functions {
		if eliminateUnreachableBlocks(fn, stats) {
			changed = true
		}
		for eliminateDeadInstructions(fn, stats) {
			changed = true
		}
	}
	return changed
}

func eliminateUnreachableBlocks(fn *ir.Function, stats *Stats) bool {
	if len(fn.Blocks) == 0 {
		return false
	}

	reachable := map[string]bool{fn.EntryLabel: true}
	queue := []string{fn.EntryLabel}
	for len(queue) > 0 {
		label := queue[0]
		queue = queue[1:]
		blk, ok := fn.BlockByLabel(label)
		if !ok || blk.Terminator == nil {
			continue
		}
		switch blk.Terminator.Kind {
		case ir.TermBr:
			if !reachable[blk.Terminator.Target] {
				reachable[blk.Terminator.Target] = true
				queue = append(queue, blk.Terminator.Target)
			}
		case ir.TermCondBr:
			for _, l := range []string{blk.Terminator.TrueLabel, blk.Terminator.FalseLabel} {
				if !reachable[l] {
					reachable[l] = true
					queue = append(queue, l)
				}
			}
		}
	}

	var kept []*ir.BasicBlock
	removed := 0
	for _, b := range fn.Blocks {
		if reachable[b.Label] {
			kept = append(kept, b)
		} else {
			removed += len(b.Instructions)
		}
	}
	if len(kept) == len(fn.Blocks) {
		return false
	}
	stats.DeadInstructionsRemoved += removed
	fn.Blocks = kept
	return true
}

// impure reports whether op always survives dead-instruction elimination
// even when its result register is unused: call and print may have
// runtime side effects beyond the value they produce.
func impure(op ir.Opcode) bool {
	return op == ir.OpCall || op == ir.OpPrint
}

func eliminateDeadInstructions(fn *ir.Function, stats *Stats) bool {
	used := make(map[ir.Register]bool)
	for _, b := range fn.Blocks {
		for _, inst := range b.Instructions {
			for _, op := range inst.Operands {
				if r, ok := regOperand(op); ok {
					used[r] = true
				}
			}
		}
		if b.Terminator != nil {
			switch b.Terminator.Kind {
			case ir.TermRet:
				if b.Terminator.RetValue != nil {
					used[*b.Terminator.RetValue] = true
				}
			case ir.TermCondBr:
				used[b.Terminator.Cond] = true
			}
		}
	}

	changed := false
	for _, b := range fn.Blocks {
		before := len(b.Instructions)
		var kept []ir.Instruction
		for _, inst := range b.Instructions {
			keep := inst.Result == nil || impure(inst.Op) || used[*inst.Result]
			if keep {
				kept = append(kept, inst)
			} else {
				stats.DeadInstructionsRemoved++
			}
		}
		b.Instructions = kept
		if len(kept) != before {
			changed = true
		}
	}
	return changed
}
