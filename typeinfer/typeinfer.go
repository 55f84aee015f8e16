// Package typeinfer implements the bottom-up static type inferencer: it
// walks the flat ast.Tree and assigns every expression
// node, and every symbol it touches, an inferred types.Type, widening to a
// union and warning on contradiction rather than ever aborting.
package typeinfer

import (
	"fmt"

	"github.com/wudi/phpaot/ast"
	"github.com/wudi/phpaot/diag"
	"github.com/wudi/phpaot/symtab"
	"github.com/wudi/phpaot/types"
)

// Result is the output of a type-inference run: the inferred type of every
// expression node, keyed by its index in the source Tree.
type Result struct {
	Types map[int]types.Type
}

// TypeOf returns the inferred type of node idx, or types.Unknown if idx was
// never visited (e.g. a statement node, which carries no type itself).
func (r *Result) TypeOf(idx int) types.Type {
	if t, ok := r.Types[idx]; ok {
		return t
	}
	return types.Unknown
}

type inferencer struct {
	tree   *ast.Tree
	tab    *symtab.Table
	diags  *diag.Engine
	result *Result

	returnStack []types.Type
}

// Infer runs type inference over tree's top-level statements and function
// declarations, declaring/updating symbols in tab and reporting
// contradiction warnings and undeclared-callee/wrong-arity errors to diags.
func Infer(tree *ast.Tree, tab *symtab.Table, diags *diag.Engine) *Result {
	inf := &inferencer{tree: tree, tab: tab, diags: diags, result: &Result{Types: make(map[int]types.Type)}}
	inf.run()
	return inf.result
}

func (inf *inferencer) run() {
	root := inf.tree.At(inf.tree.Root)

	// Forward-declare every top-level function first so call sites can
	// resolve callees regardless of declaration order. A user-authored
	// "main" collides with the reserved synthesized entry point and is
	// rejected here, before IR generation ever runs.
	inf.tab.Declare("main", symtab.Function, types.Unknown, nil)
	for _, c := range root.Children {
		node := inf.tree.At(c)
		if node.Kind != ast.KindFuncDecl {
			continue
		}
		name := inf.tree.Strings.Lookup(node.Str)
		sym, err := inf.tab.Declare(name, symtab.Function, types.Unknown, &node.Loc)
		if err != nil {
			inf.diags.Report(diag.Error, fmt.Sprintf("function %q already declared", name), &node.Loc)
			continue
		}
		sym.ParamCount = int(node.Int)
	}

	inf.returnStack = append(inf.returnStack, types.Unknown) // implicit top-level "main"
	for _, c := range root.Children {
		inf.stmt(c)
	}
	inf.returnStack = inf.returnStack[:len(inf.returnStack)-1]
}

func (inf *inferencer) pushReturnFrame() {
	inf.returnStack = append(inf.returnStack, types.Unknown)
}

func (inf *inferencer) popReturnFrame() types.Type {
	n := len(inf.returnStack) - 1
	t := inf.returnStack[n]
	inf.returnStack = inf.returnStack[:n]
	if t.IsUnknown() {
		return types.Of(types.Void)
	}
	return t
}

func (inf *inferencer) recordReturn(t types.Type) {
	n := len(inf.returnStack) - 1
	inf.returnStack[n] = types.Union(inf.returnStack[n], t)
}

func (inf *inferencer) stmt(idx int) {
	if idx == ast.NoChild {
		return
	}
	node := inf.tree.At(idx)
	switch node.Kind {
	case ast.KindExprStmt:
		inf.expr(node.Children[0])

	case ast.KindEchoStmt:
		for _, c := range node.Children {
			inf.expr(c)
		}

	case ast.KindBlockStmt:
		inf.tab.EnterScope(symtab.Block)
		for _, c := range node.Children {
			inf.stmt(c)
		}
		inf.tab.LeaveScope()

	case ast.KindIfStmt:
		inf.expr(node.Children[0])
		inf.stmt(node.Children[1])
		if len(node.Children) > 2 {
			inf.stmt(node.Children[2])
		}

	case ast.KindWhileStmt:
		inf.expr(node.Children[0])
		inf.stmt(node.Children[1])

	case ast.KindDoWhileStmt:
		inf.stmt(node.Children[0])
		inf.expr(node.Children[1])

	case ast.KindForStmt:
		init, cond, post, body := node.Children[0], node.Children[1], node.Children[2], node.Children[3]
		if init != ast.NoChild {
			inf.expr(init)
		}
		if cond != ast.NoChild {
			inf.expr(cond)
		}
		if post != ast.NoChild {
			inf.expr(post)
		}
		inf.stmt(body)

	case ast.KindReturnStmt:
		if len(node.Children) == 0 {
			inf.recordReturn(types.Of(types.Void))
			return
		}
		inf.recordReturn(inf.expr(node.Children[0]))

	case ast.KindFuncDecl:
		inf.funcDecl(idx)
	}
}

func (inf *inferencer) funcDecl(idx int) {
	node := inf.tree.At(idx)
	name := inf.tree.Strings.Lookup(node.Str)
	paramCount := int(node.Int)
	params := node.Children[:paramCount]
	body := node.Children[paramCount]

	inf.tab.EnterScope(symtab.FunctionScope)
	for _, p := range params {
		pnode := inf.tree.At(p)
		pname := inf.tree.Strings.Lookup(pnode.Str)
		inf.tab.Declare(pname, symtab.Parameter, types.Conservative(), &pnode.Loc)
	}

	inf.pushReturnFrame()
	inf.stmt(body)
	retType := inf.popReturnFrame()
	inf.tab.LeaveScope()

	if sym, ok := inf.tab.Lookup(name, symtab.Function); ok {
		sym.Type = retType
	}
}

// lookupVariable resolves a $name reference: PHP parameters are ordinary
// variables inside the function body, so both kinds are checked.
func (inf *inferencer) lookupVariable(name string) (*symtab.Symbol, bool) {
	if sym, ok := inf.tab.Lookup(name, symtab.Variable); ok {
		return sym, true
	}
	return inf.tab.Lookup(name, symtab.Parameter)
}

func (inf *inferencer) expr(idx int) types.Type {
	node := inf.tree.At(idx)
	var t types.Type

	switch node.Kind {
	case ast.KindIntLit:
		t = types.Of(types.Int)
	case ast.KindFloatLit:
		t = types.Of(types.Float)
	case ast.KindStringLit:
		t = types.Of(types.String)
	case ast.KindBoolLit:
		t = types.Of(types.Bool)
	case ast.KindNullLit:
		t = types.Of(types.Null)

	case ast.KindVariable:
		name := inf.tree.Strings.Lookup(node.Str)
		if sym, ok := inf.lookupVariable(name); ok {
			t = sym.Type
		} else {
			sym, _ := inf.tab.Declare(name, symtab.Variable, types.Of(types.Null), &node.Loc)
			inf.diags.Report(diag.Warning, fmt.Sprintf("undefined variable $%s", name), &node.Loc)
			t = sym.Type
		}

	case ast.KindAssignExpr:
		valType := inf.expr(node.Children[1])
		target := inf.tree.At(node.Children[0])
		if target.Kind == ast.KindVariable {
			name := inf.tree.Strings.Lookup(target.Str)
			sym, ok := inf.lookupVariable(name)
			if !ok {
				sym, _ = inf.tab.Declare(name, symtab.Variable, types.Unknown, &node.Loc)
			}
			sym.UpdateType(valType)
			t = sym.Type
		} else {
			inf.expr(node.Children[0])
			t = valType
		}

	case ast.KindBinaryExpr:
		lt := inf.expr(node.Children[0])
		rt := inf.expr(node.Children[1])
		t = inf.binaryType(node.Op, lt, rt, &node.Loc)

	case ast.KindUnaryExpr:
		operand := inf.expr(node.Children[0])
		switch node.Op {
		case "!":
			t = types.Of(types.Bool)
		default: // unary +/-
			t = operand
		}

	case ast.KindCallExpr:
		for _, a := range node.Children {
			inf.expr(a)
		}
		name := inf.tree.Strings.Lookup(node.Str)
		sym, ok := inf.tab.Lookup(name, symtab.Function)
		switch {
		case !ok:
			inf.diags.Report(diag.Error, fmt.Sprintf("call to undeclared function %s()", name), &node.Loc)
			t = types.Conservative()
		case len(node.Children) != sym.ParamCount:
			inf.diags.Report(diag.Error, fmt.Sprintf("%s() expects %d argument(s), %d given", name, sym.ParamCount, len(node.Children)), &node.Loc)
			t = types.Conservative()
		case sym.Type.IsUnknown():
			inf.diags.Report(diag.Warning, fmt.Sprintf("return type of %s() not yet known at this call site", name), &node.Loc)
			t = types.Conservative()
		default:
			t = sym.Type
		}

	case ast.KindIndexExpr:
		inf.expr(node.Children[0])
		inf.expr(node.Children[1])
		t = types.Conservative()

	case ast.KindArrayExpr:
		for _, c := range node.Children {
			inf.expr(c)
		}
		t = types.Of(types.Array)

	case ast.KindArrayElem:
		key, value := node.Children[0], node.Children[1]
		if key != ast.NoChild {
			inf.expr(key)
		}
		t = inf.expr(value)

	case ast.KindPrintExpr:
		inf.expr(node.Children[0])
		t = types.Of(types.Int)

	default:
		t = types.Unknown
	}

	inf.result.Types[idx] = t
	return t
}

func (inf *inferencer) binaryType(op string, lt, rt types.Type, loc *diag.Location) types.Type {
	switch op {
	case "+", "-", "*":
		lc, lok := lt.IsConcrete()
		rc, rok := rt.IsConcrete()
		if lok && rok && lc == types.Int && rc == types.Int {
			return types.Of(types.Int)
		}
		if (lok && lc == types.Float) || (rok && rc == types.Float) {
			return types.Of(types.Float)
		}
		if (lok && lc == types.String) || (rok && rc == types.String) {
			inf.diags.Report(diag.Warning, "numeric string operand widened via PHP coercion", loc)
			return types.Union(types.Of(types.Int), types.Of(types.Float))
		}
		return types.Union(types.Of(types.Int), types.Of(types.Float))

	case "/":
		return types.Union(types.Of(types.Int), types.Of(types.Float))

	case "%":
		return types.Of(types.Int)

	case ".":
		return types.Of(types.String)

	case "==", "!=", "===", "!==", "<", "<=", ">", ">=",
		"&&", "||", "and", "or", "xor":
		return types.Of(types.Bool)

	default:
		return types.Conservative()
	}
}
