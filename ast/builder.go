package ast

// Builder provides convenience constructors for hand-assembling a Tree,
// used by tests and by the demo CLI in lieu of a real PHP front-end.
type Builder struct {
	tree *Tree
}

// NewBuilder creates a Builder backed by a fresh Tree and StringTable.
func NewBuilder() *Builder {
	return &Builder{tree: &Tree{Strings: NewStringTable()}}
}

// Tree returns the Tree being built.
func (b *Builder) Tree() *Tree {
	return b.tree
}

// Intern interns s in the builder's string table.
func (b *Builder) Intern(s string) int {
	return b.tree.Strings.Intern(s)
}

func (b *Builder) add(n Node) int {
	return b.tree.Add(n)
}

func (b *Builder) IntLit(v int64) int {
	return b.add(Node{Kind: KindIntLit, Int: v, Str: -1})
}

func (b *Builder) FloatLit(v float64) int {
	return b.add(Node{Kind: KindFloatLit, Float: v, Str: -1})
}

func (b *Builder) NullLit() int {
	return b.add(Node{Kind: KindNullLit, Str: -1})
}

func (b *Builder) StringLit(s string) int {
	return b.add(Node{Kind: KindStringLit, Str: b.Intern(s)})
}

func (b *Builder) BoolLit(v bool) int {
	return b.add(Node{Kind: KindBoolLit, Bool: v, Str: -1})
}

func (b *Builder) Variable(name string) int {
	return b.add(Node{Kind: KindVariable, Str: b.Intern(name)})
}

func (b *Builder) Binary(op string, lhs, rhs int) int {
	return b.add(Node{Kind: KindBinaryExpr, Op: op, Children: []int{lhs, rhs}, Str: -1})
}

func (b *Builder) Assign(target, value int) int {
	return b.add(Node{Kind: KindAssignExpr, Children: []int{target, value}, Str: -1})
}

func (b *Builder) Call(callee string, args ...int) int {
	return b.add(Node{Kind: KindCallExpr, Str: b.Intern(callee), Children: args})
}

func (b *Builder) ExprStmt(expr int) int {
	return b.add(Node{Kind: KindExprStmt, Children: []int{expr}, Str: -1})
}

func (b *Builder) Echo(exprs ...int) int {
	return b.add(Node{Kind: KindEchoStmt, Children: exprs, Str: -1})
}

func (b *Builder) Return(expr int) int {
	children := []int{expr}
	if expr == NoChild {
		children = nil
	}
	return b.add(Node{Kind: KindReturnStmt, Children: children, Str: -1})
}

func (b *Builder) Block(stmts ...int) int {
	return b.add(Node{Kind: KindBlockStmt, Children: stmts, Str: -1})
}

func (b *Builder) If(cond, then, els int) int {
	return b.add(Node{Kind: KindIfStmt, Children: []int{cond, then, els}, Str: -1})
}

func (b *Builder) While(cond, body int) int {
	return b.add(Node{Kind: KindWhileStmt, Children: []int{cond, body}, Str: -1})
}

func (b *Builder) DoWhile(body, cond int) int {
	return b.add(Node{Kind: KindDoWhileStmt, Children: []int{body, cond}, Str: -1})
}

// For builds a for-loop node. Pass NoChild for any absent clause.
func (b *Builder) For(init, cond, post, body int) int {
	return b.add(Node{Kind: KindForStmt, Children: []int{init, cond, post, body}, Str: -1})
}

func (b *Builder) Unary(op string, operand int) int {
	return b.add(Node{Kind: KindUnaryExpr, Op: op, Children: []int{operand}, Str: -1})
}

func (b *Builder) Index(base, index int) int {
	return b.add(Node{Kind: KindIndexExpr, Children: []int{base, index}, Str: -1})
}

func (b *Builder) Print(expr int) int {
	return b.add(Node{Kind: KindPrintExpr, Children: []int{expr}, Str: -1})
}

// ArrayElem builds one array-literal element. Pass NoChild for key to get
// an auto-indexed element.
func (b *Builder) ArrayElem(key, value int) int {
	return b.add(Node{Kind: KindArrayElem, Children: []int{key, value}, Str: -1})
}

func (b *Builder) Array(elems ...int) int {
	return b.add(Node{Kind: KindArrayExpr, Children: elems, Str: -1})
}

func (b *Builder) Param(name string) int {
	return b.add(Node{Kind: KindParam, Str: b.Intern(name)})
}

func (b *Builder) FuncDecl(name string, params []int, body int) int {
	children := append(append([]int{}, params...), body)
	return b.add(Node{Kind: KindFuncDecl, Str: b.Intern(name), Int: int64(len(params)), Children: children})
}

// Program finalizes the tree with the given top-level statement/decl
// indices as the program root's children.
func (b *Builder) Program(children ...int) *Tree {
	root := b.add(Node{Kind: KindProgram, Children: children, Str: -1})
	b.tree.Root = root
	return b.tree
}
