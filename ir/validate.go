package ir

import "fmt"

// InvariantViolation reports a broken IR invariant. The optimizer treats
// this as fatal.
type InvariantViolation struct {
	Function string
	Message  string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("internal IR invariant violated in function %q: %s", e.Function, e.Message)
}

// Validate checks every invariant that is checkable purely structurally:
// every block has exactly one terminator
// (enforced by construction via *Terminator, so this checks it is
// non-nil), every result register is unique within its function, and
// every branch target resolves to a block in the same function.
func Validate(m *Module) error {
	for _, fn := range m.Functions {
		if len(fn.Blocks) == 0 {
			return &InvariantViolation{fn.Name, "function has no blocks"}
		}

		seen := make(map[Register]bool)
		labels := make(map[string]bool)
		for _, b := range fn.Blocks {
			labels[b.Label] = true
		}

		for _, b := range fn.Blocks {
			if b.Terminator == nil {
				return &InvariantViolation{fn.Name, fmt.Sprintf("block %q has no terminator", b.Label)}
			}
			for _, inst := range b.Instructions {
				if inst.Result != nil {
					if seen[*inst.Result] {
						return &InvariantViolation{fn.Name, fmt.Sprintf("register r%d assigned more than once", *inst.Result)}
					}
					seen[*inst.Result] = true
				}
			}
			if err := validateTerminator(fn.Name, b, labels); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateTerminator(fnName string, b *BasicBlock, labels map[string]bool) error {
	t := b.Terminator
	switch t.Kind {
	case TermBr:
		if !labels[t.Target] {
			return &InvariantViolation{fnName, fmt.Sprintf("br target %q is not a block in this function", t.Target)}
		}
	case TermCondBr:
		if !labels[t.TrueLabel] || !labels[t.FalseLabel] {
			return &InvariantViolation{fnName, fmt.Sprintf("cond_br targets %q/%q not both in this function", t.TrueLabel, t.FalseLabel)}
		}
	}
	return nil
}

// NoUnknownTypes reports whether any instruction in m still carries
// types.Unknown. Committed IR (post-optimization) must never do so.
func NoUnknownTypes(m *Module) bool {
	for _, fn := range m.Functions {
		for _, b := range fn.Blocks {
			for _, inst := range b.Instructions {
				if inst.Type.IsUnknown() {
					return false
				}
			}
		}
	}
	return true
}
