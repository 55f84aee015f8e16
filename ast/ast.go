// Package ast is the input contract the IR generator consumes: a flat,
// dense-indexed arena of AST nodes plus a string interning table. The PHP
// lexer/parser is the producer of this shape; this package only defines
// it.
package ast

import "github.com/wudi/phpaot/diag"

// Kind tags what a Node represents and how to interpret its Children,
// Str, Int, Float and Op fields.
type Kind uint8

const (
	KindProgram Kind = iota
	KindIntLit
	KindFloatLit
	KindStringLit
	KindBoolLit
	KindNullLit
	KindVariable
	KindBinaryExpr   // Children = [lhs, rhs]; Op = operator token
	KindUnaryExpr    // Children = [operand]; Op = operator token
	KindAssignExpr   // Children = [target, value]
	KindCallExpr     // Children = [arg...]; Str = callee name
	KindArrayExpr    // Children = [elem...]
	KindArrayElem    // Children = [key?, value]; key is -1 when absent
	KindIndexExpr    // Children = [base, index]
	KindExprStmt     // Children = [expr]
	KindBlockStmt    // Children = [stmt...]
	KindIfStmt       // Children = [cond, then, else?]; else is -1 when absent
	KindWhileStmt    // Children = [cond, body]
	KindDoWhileStmt  // Children = [body, cond]
	KindForStmt      // Children = [init?, cond?, post?, body]; -1 when absent
	KindReturnStmt   // Children = [expr?]; -1 when absent (bare return)
	KindEchoStmt     // Children = [expr...]
	KindPrintExpr    // Children = [expr]
	KindFuncDecl     // Children = [param..., body]; Str = function name; Int = param count
	KindParam        // Str = parameter name
)

func (k Kind) String() string {
	names := [...]string{
		"Program", "IntLit", "FloatLit", "StringLit", "BoolLit", "NullLit",
		"Variable", "BinaryExpr", "UnaryExpr", "AssignExpr", "CallExpr",
		"ArrayExpr", "ArrayElem", "IndexExpr", "ExprStmt", "BlockStmt",
		"IfStmt", "WhileStmt", "DoWhileStmt", "ForStmt", "ReturnStmt",
		"EchoStmt", "PrintExpr", "FuncDecl", "Param",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// NoChild marks an absent optional child slot (an omitted else-branch, a
// bare return, a missing for-loop clause).
const NoChild = -1

// Node is one arena entry. Children index into the same Tree's Nodes
// slice; never a pointer, so the arena is trivially serializable and
// cycle-free.
type Node struct {
	Kind     Kind
	Loc      diag.Location
	Children []int
	Str      int // index into the Tree's StringTable, or -1
	Int      int64
	Float    float64
	Bool     bool
	Op       string
}

// Tree is the full flat AST arena for one compilation unit, plus the
// string interning table the out-of-scope parser produced alongside it.
type Tree struct {
	Nodes   []Node
	Root    int
	Strings *StringTable
}

// Add appends a node and returns its index.
func (t *Tree) Add(n Node) int {
	t.Nodes = append(t.Nodes, n)
	return len(t.Nodes) - 1
}

// At returns the node at idx. Panics on an out-of-range index, mirroring
// the arena's "never a dangling pointer" invariant: an index into this
// Tree's Nodes is always valid by construction.
func (t *Tree) At(idx int) *Node {
	return &t.Nodes[idx]
}

// StringTable is the append-only string interning table nodes reference by
// index instead of embedding string data inline.
type StringTable struct {
	strings []string
	index   map[string]int
}

// NewStringTable creates an empty interning table.
func NewStringTable() *StringTable {
	return &StringTable{index: make(map[string]int)}
}

// Intern returns the stable index for s, interning it if this is the first
// occurrence.
func (st *StringTable) Intern(s string) int {
	if i, ok := st.index[s]; ok {
		return i
	}
	i := len(st.strings)
	st.strings = append(st.strings, s)
	st.index[s] = i
	return i
}

// Lookup resolves an interned index back to its string. Panics on an
// out-of-range index.
func (st *StringTable) Lookup(idx int) string {
	return st.strings[idx]
}
