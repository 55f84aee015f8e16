package optimize

// PassConfig is the core IR pass bitmap resolved from an OptLevel.
type PassConfig struct {
	DeadCodeElimination            bool
	ConstantPropagation            bool
	CommonSubexpressionElimination bool
	StrengthReduction              bool
	FunctionInlining               bool
	TypeSpecialization             bool
}

// CountEnabled reports how many of the six flags are set, used to check
// the monotonicity property (aggressive ⊇ basic ⊇ none).
func (c PassConfig) CountEnabled() int {
	n := 0
	for _, b := range []bool{
		c.DeadCodeElimination, c.ConstantPropagation, c.CommonSubexpressionElimination,
		c.StrengthReduction, c.FunctionInlining, c.TypeSpecialization,
	} {
		if b {
			n++
		}
	}
	return n
}

// PassConfigFor returns the exact bitmap for level.
func PassConfigFor(level OptLevel) PassConfig {
	switch level {
	case Debug:
		return PassConfig{}
	case ReleaseSafe:
		return PassConfig{DeadCodeElimination: true, ConstantPropagation: true}
	case ReleaseFast:
		return PassConfig{
			DeadCodeElimination: true, ConstantPropagation: true, CommonSubexpressionElimination: true,
			StrengthReduction: true, FunctionInlining: true, TypeSpecialization: true,
		}
	case ReleaseSmall:
		return PassConfig{
			DeadCodeElimination: true, ConstantPropagation: true, CommonSubexpressionElimination: true,
			StrengthReduction: true, TypeSpecialization: true,
		}
	default:
		return PassConfig{}
	}
}

// LLVMPassConfig mirrors the same four levels for the back end.
// InlineThreshold never exceeds 1000; release-small disables LoopUnroll
// and enables GlobalDCE; debug disables InlineFunctions, LoopUnroll, and
// GVN.
type LLVMPassConfig struct {
	InstCombine     bool
	SimplifyCFG     bool
	GVN             bool
	LICM            bool
	LoopUnroll      bool
	InlineFunctions bool
	GlobalDCE       bool
	InlineThreshold int
}

// LLVMConfigFor returns the back-end pass descriptor for level.
func LLVMConfigFor(level OptLevel) LLVMPassConfig {
	var cfg LLVMPassConfig
	switch level {
	case Debug:
		cfg = LLVMPassConfig{InlineThreshold: 0}
	case ReleaseSafe:
		cfg = LLVMPassConfig{
			InstCombine: true, SimplifyCFG: true, GVN: true, LICM: true,
			LoopUnroll: true, InlineFunctions: true, InlineThreshold: 225,
		}
	case ReleaseFast:
		cfg = LLVMPassConfig{
			InstCombine: true, SimplifyCFG: true, GVN: true, LICM: true,
			LoopUnroll: true, InlineFunctions: true, InlineThreshold: 1000,
		}
	case ReleaseSmall:
		cfg = LLVMPassConfig{
			InstCombine: true, SimplifyCFG: true, GVN: true, LICM: true,
			InlineFunctions: true, InlineThreshold: 75,
		}
	}

	if level == Debug {
		cfg.InlineFunctions = false
		cfg.LoopUnroll = false
		cfg.GVN = false
	}
	if level == ReleaseSmall {
		cfg.LoopUnroll = false
		cfg.GlobalDCE = true
	}
	if cfg.InlineThreshold > 1000 {
		cfg.InlineThreshold = 1000
	}
	return cfg
}
