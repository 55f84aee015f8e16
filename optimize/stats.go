package optimize

// Stats accumulates per-run optimization counters. The zero value is the
// correct "no optimizations ran yet" state; each run gets a freshly zeroed
// struct rather than a shared, resettable one.
type Stats struct {
	DeadInstructionsRemoved        int
	ConstantsPropagated            int
	CommonSubexpressionsEliminated int
	StrengthReductions             int
	FunctionsInlined               int
	TypeSpecializations            int
}
