// Package ir is the compiler's intermediate representation: a module of
// functions, each a control-flow graph of basic blocks holding typed
// instructions. Functions/blocks/instructions are held in ordered slices
// (insertion order is preserved end to end) rather than a pointer graph.
package ir

import (
	"fmt"

	"github.com/wudi/phpaot/diag"
	"github.com/wudi/phpaot/types"
)

// Register is a dense per-function virtual result name, assigned in
// IR-generation order.
type Register int

// OperandKind tags what an Operand holds.
type OperandKind int

const (
	OperandRegister OperandKind = iota
	OperandImmediate
	OperandLabel
)

// Operand is a tagged union: a register reference, an immediate constant,
// or a symbolic block-label reference.
type Operand struct {
	Kind  OperandKind
	Reg   Register
	Imm   interface{}
	Label string
}

func RegOperand(r Register) Operand    { return Operand{Kind: OperandRegister, Reg: r} }
func ImmOperand(v interface{}) Operand { return Operand{Kind: OperandImmediate, Imm: v} }
func LabelOperand(l string) Operand    { return Operand{Kind: OperandLabel, Label: l} }

// Instruction is one IR op. Result is nil for instructions with no
// result register (e.g. store_var, echo).
type Instruction struct {
	Op       Opcode
	Operands []Operand
	Result   *Register
	Type     types.Type
	Loc      *diag.Location
}

// TerminatorKind tags which of the four terminator shapes a block ends
// with.
type TerminatorKind int

const (
	TermRet TerminatorKind = iota
	TermBr
	TermCondBr
	TermUnreachable
)

// Terminator is the control-transferring instruction that must end every
// basic block, exactly one per block and never followed by another
// instruction.
type Terminator struct {
	Kind       TerminatorKind
	RetValue   *Register // TermRet, nil for a bare "ret"
	Target     string    // TermBr
	Cond       Register  // TermCondBr
	TrueLabel  string    // TermCondBr
	FalseLabel string    // TermCondBr
}

// BasicBlock is a maximal straight-line instruction sequence ending in
// exactly one Terminator.
type BasicBlock struct {
	Label        string
	Instructions []Instruction
	Terminator   *Terminator
}

// Param is one function parameter: its register and its static type.
type Param struct {
	Reg  Register
	Type types.Type
}

// Function is one IR function: an ordered list of basic blocks forming a
// CFG, the first of which is always the entry block.
type Function struct {
	Name           string
	Parameters     []Param
	ReturnType     types.Type
	Blocks         []*BasicBlock
	EntryLabel     string
	nextRegister   int
	nextBlockLabel int
}

// NewFunction creates an empty function with no blocks yet.
func NewFunction(name string) *Function {
	return &Function{Name: name}
}

// AllocRegister returns the next unused register in this function.
func (f *Function) AllocRegister() Register {
	r := Register(f.nextRegister)
	f.nextRegister++
	return r
}

// NewBlockLabel returns a fresh, function-unique block label with the
// given hint prefix (e.g. "then", "join").
func (f *Function) NewBlockLabel(hint string) string {
	label := fmt.Sprintf("%s%d", hint, f.nextBlockLabel)
	f.nextBlockLabel++
	return label
}

// AddBlock appends a new block and, if it is the function's first block,
// records it as the entry block.
func (f *Function) AddBlock(label string) *BasicBlock {
	b := &BasicBlock{Label: label}
	if len(f.Blocks) == 0 {
		f.EntryLabel = label
	}
	f.Blocks = append(f.Blocks, b)
	return b
}

// BlockByLabel finds a block by label within this function.
func (f *Function) BlockByLabel(label string) (*BasicBlock, bool) {
	for _, b := range f.Blocks {
		if b.Label == label {
			return b, true
		}
	}
	return nil, false
}

// Module is the top-level compilation unit: an ordered list of functions
// plus the set of extern runtime symbols referenced anywhere in it.
type Module struct {
	Name       string
	SourceFile string
	Functions  []*Function
	externs    []string
	externSet  map[string]bool
}

// NewModule creates an empty module.
func NewModule(name, sourceFile string) *Module {
	return &Module{Name: name, SourceFile: sourceFile, externSet: make(map[string]bool)}
}

// AddFunction appends fn to the module in insertion order.
func (m *Module) AddFunction(fn *Function) {
	m.Functions = append(m.Functions, fn)
}

// FunctionByName finds a function by name.
func (m *Module) FunctionByName(name string) (*Function, bool) {
	for _, fn := range m.Functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return nil, false
}

// DeclareExtern records that the module uses the named runtime symbol. The
// set preserves first-use insertion order (never a Go map iteration) so
// emitted extern declarations are deterministic.
func (m *Module) DeclareExtern(name string) {
	if m.externSet[name] {
		return
	}
	m.externSet[name] = true
	m.externs = append(m.externs, name)
}

// Externs returns the extern symbol names in first-use order.
func (m *Module) Externs() []string {
	return m.externs
}
