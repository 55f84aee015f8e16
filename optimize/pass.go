package optimize

import "github.com/wudi/phpaot/ir"

// Pass is one optimization transformation over an ir.Module. Apply reports
// whether it changed anything, so the optimizer can decide whether a
// fixpoint was reached.
type Pass interface {
	Name() string
	Apply(m *ir.Module, stats *Stats) bool
}

// Optimizer runs the fixed pass sequence (DCE, ConstProp, CSE,
// StrengthRed, Inline, TypeSpec in that order), skipping whichever passes
// level's PassConfig disables.
type Optimizer struct {
	level  OptLevel
	config PassConfig
}

// New creates an Optimizer for level.
func New(level OptLevel) *Optimizer {
	return &Optimizer{level: level, config: PassConfigFor(level)}
}

// Level returns the level this optimizer was built for.
func (o *Optimizer) Level() OptLevel { return o.level }

// Config returns the resolved pass bitmap.
func (o *Optimizer) Config() PassConfig { return o.config }

// Run repeats the enabled pass sequence, in the fixed order, until a full
// sweep changes nothing, and returns the accumulated statistics. Reaching
// that fixpoint is what makes Run idempotent: a second Run over the same
// module changes nothing and returns zero stats.
func (o *Optimizer) Run(m *ir.Module) Stats {
	var stats Stats
	passes := o.enabledPasses()
	for {
		changed := false
		for _, p := range passes {
			if p.Apply(m, &stats) {
				changed = true
			}
		}
		if !changed {
			return stats
		}
	}
}

func (o *Optimizer) enabledPasses() []Pass {
	var passes []Pass
	if o.config.DeadCodeElimination {
		passes = append(passes, &deadCodePass{})
	}
	if o.config.ConstantPropagation {
		passes = append(passes, &constantPropagationPass{})
	}
	if o.config.CommonSubexpressionElimination {
		passes = append(passes, &csePass{})
	}
	if o.config.StrengthReduction {
		passes = append(passes, &strengthReductionPass{})
	}
	if o.config.FunctionInlining {
		passes = append(passes, &inliningPass{})
	}
	if o.config.TypeSpecialization {
		passes = append(passes, &typeSpecializationPass{})
	}
	return passes
}
