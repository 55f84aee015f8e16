// Package irgen lowers a type-annotated ast.Tree into an ir.Module.
// Top-level statements are synthesized into a function named "main"; each
// FuncDecl becomes its own ir.Function. Variables are not assigned
// registers directly: they lower to stack-slot load_var/store_var pairs
// keyed by name, so the generator never needs SSA phi nodes at merge
// points.
package irgen

import (
	"fmt"

	"github.com/wudi/phpaot/ast"
	"github.com/wudi/phpaot/diag"
	"github.com/wudi/phpaot/ir"
	"github.com/wudi/phpaot/symtab"
	"github.com/wudi/phpaot/typeinfer"
	"github.com/wudi/phpaot/types"
)

// Generate lowers tree to an ir.Module named moduleName, reporting
// malformed-subtree errors to diags rather than aborting.
func Generate(tree *ast.Tree, infer *typeinfer.Result, tab *symtab.Table, diags *diag.Engine, moduleName, sourceFile string) *ir.Module {
	module := ir.NewModule(moduleName, sourceFile)
	root := tree.At(tree.Root)

	var topLevel []int
	var funcDecls []int
	for _, c := range root.Children {
		if tree.At(c).Kind == ast.KindFuncDecl {
			funcDecls = append(funcDecls, c)
		} else {
			topLevel = append(topLevel, c)
		}
	}

	for _, fd := range funcDecls {
		g := &generator{tree: tree, infer: infer, tab: tab, diags: diags, module: module}
		module.AddFunction(g.genFuncDecl(fd))
	}

	g := &generator{tree: tree, infer: infer, tab: tab, diags: diags, module: module}
	module.AddFunction(g.genMain(topLevel))

	return module
}

// generator holds the bookkeeping for lowering a single ir.Function: the
// function under construction and the basic block instructions are
// currently being appended to.
type generator struct {
	tree   *ast.Tree
	infer  *typeinfer.Result
	tab    *symtab.Table
	diags  *diag.Engine
	module *ir.Module

	fn  *ir.Function
	cur *ir.BasicBlock

	deadCodeWarned bool
}

func (g *generator) emit(inst ir.Instruction) {
	g.cur.Instructions = append(g.cur.Instructions, inst)
}

func (g *generator) newReg() ir.Register {
	return g.fn.AllocRegister()
}

func (g *generator) genFuncDecl(idx int) *ir.Function {
	node := g.tree.At(idx)
	name := g.tree.Strings.Lookup(node.Str)
	paramCount := int(node.Int)
	paramNodes := node.Children[:paramCount]
	bodyIdx := node.Children[paramCount]

	fn := ir.NewFunction(name)
	if sym, ok := g.tab.Lookup(name, symtab.Function); ok {
		fn.ReturnType = sym.Type
	}

	entry := fn.AddBlock(fn.NewBlockLabel("entry"))
	g.fn = fn
	g.cur = entry

	for _, p := range paramNodes {
		pnode := g.tree.At(p)
		reg := fn.AllocRegister()
		fn.Parameters = append(fn.Parameters, ir.Param{Reg: reg, Type: types.Conservative()})
		pname := g.tree.Strings.Lookup(pnode.Str)
		g.emit(ir.Instruction{Op: ir.OpStoreVar, Operands: []ir.Operand{ir.ImmOperand(pname), ir.RegOperand(reg)}, Type: types.Of(types.Void)})
	}

	g.genStmt(bodyIdx)
	g.finalizeFunction(false)
	return fn
}

func (g *generator) genMain(topLevel []int) *ir.Function {
	fn := ir.NewFunction("main")
	fn.ReturnType = types.Of(types.Null)

	entry := fn.AddBlock(fn.NewBlockLabel("entry"))
	g.fn = fn
	g.cur = entry

	for _, s := range topLevel {
		if g.cur.Terminator != nil {
			g.warnDeadCode(s)
			break
		}
		g.genStmt(s)
	}
	g.finalizeFunction(true)
	return fn
}

// finalizeFunction terminates the current block with a default return if
// the body fell off the end without one. main's implicit return value is
// null; a user function's is a bare void return.
func (g *generator) finalizeFunction(defaultRetNull bool) {
	if g.cur.Terminator != nil {
		return
	}
	if defaultRetNull {
		reg := g.newReg()
		g.emit(ir.Instruction{Op: ir.OpConstNull, Result: &reg, Type: types.Of(types.Null)})
		g.cur.Terminator = &ir.Terminator{Kind: ir.TermRet, RetValue: &reg}
		return
	}
	g.cur.Terminator = &ir.Terminator{Kind: ir.TermRet}
}

func (g *generator) warnDeadCode(idx int) {
	if g.deadCodeWarned {
		return
	}
	g.deadCodeWarned = true
	loc := g.tree.At(idx).Loc
	g.diags.Report(diag.Warning, "unreachable statement after return", &loc)
}

func (g *generator) genStmt(idx int) {
	if idx == ast.NoChild {
		return
	}
	node := g.tree.At(idx)

	switch node.Kind {
	case ast.KindExprStmt:
		g.genExpr(node.Children[0])

	case ast.KindEchoStmt:
		for _, c := range node.Children {
			reg := g.genExpr(c)
			g.module.DeclareExtern("php_echo")
			g.emit(ir.Instruction{Op: ir.OpEcho, Operands: []ir.Operand{ir.RegOperand(reg)}, Type: types.Of(types.Void)})
		}

	case ast.KindBlockStmt:
		for _, c := range node.Children {
			if g.cur.Terminator != nil {
				g.warnDeadCode(c)
				break
			}
			g.genStmt(c)
		}

	case ast.KindIfStmt:
		g.genIf(node)

	case ast.KindWhileStmt:
		g.genWhile(node)

	case ast.KindDoWhileStmt:
		g.genDoWhile(node)

	case ast.KindForStmt:
		g.genFor(node)

	case ast.KindReturnStmt:
		g.genReturn(node)

	default:
		g.diags.Report(diag.Error, fmt.Sprintf("malformed statement node %s", node.Kind), &node.Loc)
		g.cur.Terminator = &ir.Terminator{Kind: ir.TermUnreachable}
	}
}

func (g *generator) genIf(node *ast.Node) {
	condReg := g.genExpr(node.Children[0])

	thenLabel := g.fn.NewBlockLabel("then")
	joinLabel := g.fn.NewBlockLabel("join")
	hasElse := len(node.Children) > 2 && node.Children[2] != ast.NoChild

	falseTarget := joinLabel
	var elseLabel string
	if hasElse {
		elseLabel = g.fn.NewBlockLabel("else")
		falseTarget = elseLabel
	}
	g.cur.Terminator = &ir.Terminator{Kind: ir.TermCondBr, Cond: condReg, TrueLabel: thenLabel, FalseLabel: falseTarget}

	thenBlock := g.fn.AddBlock(thenLabel)
	g.cur = thenBlock
	g.genStmt(node.Children[1])
	if g.cur.Terminator == nil {
		g.cur.Terminator = &ir.Terminator{Kind: ir.TermBr, Target: joinLabel}
	}

	if hasElse {
		elseBlock := g.fn.AddBlock(elseLabel)
		g.cur = elseBlock
		g.genStmt(node.Children[2])
		if g.cur.Terminator == nil {
			g.cur.Terminator = &ir.Terminator{Kind: ir.TermBr, Target: joinLabel}
		}
	}

	joinBlock := g.fn.AddBlock(joinLabel)
	g.cur = joinBlock
}

func (g *generator) genWhile(node *ast.Node) {
	headerLabel := g.fn.NewBlockLabel("while_header")
	bodyLabel := g.fn.NewBlockLabel("while_body")
	latchLabel := g.fn.NewBlockLabel("while_latch")
	exitLabel := g.fn.NewBlockLabel("while_exit")

	g.cur.Terminator = &ir.Terminator{Kind: ir.TermBr, Target: headerLabel}

	header := g.fn.AddBlock(headerLabel)
	g.cur = header
	condReg := g.genExpr(node.Children[0])
	header.Terminator = &ir.Terminator{Kind: ir.TermCondBr, Cond: condReg, TrueLabel: bodyLabel, FalseLabel: exitLabel}

	body := g.fn.AddBlock(bodyLabel)
	g.cur = body
	g.genStmt(node.Children[1])
	if g.cur.Terminator == nil {
		g.cur.Terminator = &ir.Terminator{Kind: ir.TermBr, Target: latchLabel}
	}

	latch := g.fn.AddBlock(latchLabel)
	latch.Terminator = &ir.Terminator{Kind: ir.TermBr, Target: headerLabel}

	exit := g.fn.AddBlock(exitLabel)
	g.cur = exit
}

func (g *generator) genDoWhile(node *ast.Node) {
	bodyLabel := g.fn.NewBlockLabel("do_body")
	latchLabel := g.fn.NewBlockLabel("do_latch")
	exitLabel := g.fn.NewBlockLabel("do_exit")

	g.cur.Terminator = &ir.Terminator{Kind: ir.TermBr, Target: bodyLabel}

	body := g.fn.AddBlock(bodyLabel)
	g.cur = body
	g.genStmt(node.Children[0])
	if g.cur.Terminator == nil {
		g.cur.Terminator = &ir.Terminator{Kind: ir.TermBr, Target: latchLabel}
	}

	latch := g.fn.AddBlock(latchLabel)
	g.cur = latch
	condReg := g.genExpr(node.Children[1])
	latch.Terminator = &ir.Terminator{Kind: ir.TermCondBr, Cond: condReg, TrueLabel: bodyLabel, FalseLabel: exitLabel}

	exit := g.fn.AddBlock(exitLabel)
	g.cur = exit
}

func (g *generator) genFor(node *ast.Node) {
	init, cond, post, body := node.Children[0], node.Children[1], node.Children[2], node.Children[3]
	if init != ast.NoChild {
		g.genExpr(init)
	}

	headerLabel := g.fn.NewBlockLabel("for_header")
	bodyLabel := g.fn.NewBlockLabel("for_body")
	latchLabel := g.fn.NewBlockLabel("for_latch")
	exitLabel := g.fn.NewBlockLabel("for_exit")

	g.cur.Terminator = &ir.Terminator{Kind: ir.TermBr, Target: headerLabel}

	header := g.fn.AddBlock(headerLabel)
	g.cur = header
	var condReg ir.Register
	if cond != ast.NoChild {
		condReg = g.genExpr(cond)
	} else {
		condReg = g.newReg()
		g.emit(ir.Instruction{Op: ir.OpConstBool, Operands: []ir.Operand{ir.ImmOperand(true)}, Result: &condReg, Type: types.Of(types.Bool)})
	}
	header.Terminator = &ir.Terminator{Kind: ir.TermCondBr, Cond: condReg, TrueLabel: bodyLabel, FalseLabel: exitLabel}

	bodyBlock := g.fn.AddBlock(bodyLabel)
	g.cur = bodyBlock
	g.genStmt(body)
	if g.cur.Terminator == nil {
		g.cur.Terminator = &ir.Terminator{Kind: ir.TermBr, Target: latchLabel}
	}

	latch := g.fn.AddBlock(latchLabel)
	g.cur = latch
	if post != ast.NoChild {
		g.genExpr(post)
	}
	latch.Terminator = &ir.Terminator{Kind: ir.TermBr, Target: headerLabel}

	exit := g.fn.AddBlock(exitLabel)
	g.cur = exit
}

func (g *generator) genReturn(node *ast.Node) {
	if len(node.Children) == 0 {
		g.cur.Terminator = &ir.Terminator{Kind: ir.TermRet}
		return
	}
	reg := g.genExpr(node.Children[0])
	g.cur.Terminator = &ir.Terminator{Kind: ir.TermRet, RetValue: &reg}
}

// exprStackFrame is one entry of genExpr's explicit work-stack: a node
// awaiting either expansion (push its operand dependencies) or emission
// (its dependencies are already in regOf).
type exprStackFrame struct {
	idx      int
	expanded bool
}

// genExpr lowers the expression rooted at idx to a register. It is a
// non-recursive post-order walk: every node's operand children carry a
// strictly smaller arena index than the node itself (a builder invariant),
// so pushing dependencies before the node and popping/emitting once they
// are all resolved reaches the same bottom-up order a recursive walk
// would, without growing the Go call stack with expression depth.
func (g *generator) genExpr(rootIdx int) ir.Register {
	regOf := make(map[int]ir.Register)
	stack := []exprStackFrame{{idx: rootIdx}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if !top.expanded {
			top.expanded = true
			deps := g.exprOperands(top.idx)
			for i := len(deps) - 1; i >= 0; i-- {
				stack = append(stack, exprStackFrame{idx: deps[i]})
			}
			continue
		}
		regOf[top.idx] = g.emitExprNode(top.idx, regOf)
		stack = stack[:len(stack)-1]
	}

	return regOf[rootIdx]
}

// exprOperands returns the child node indices whose registers must be
// computed before idx's own instruction can be emitted. Literals and
// variable reads have none; an assignment to a plain variable needs only
// its value (the target name, not a register); an array literal's
// elements are flattened to their raw key/value expression indices rather
// than the intervening ArrayElem node, which never gets its own register.
func (g *generator) exprOperands(idx int) []int {
	node := g.tree.At(idx)
	switch node.Kind {
	case ast.KindBinaryExpr, ast.KindIndexExpr, ast.KindUnaryExpr, ast.KindPrintExpr, ast.KindCallExpr:
		return node.Children

	case ast.KindArrayExpr:
		var deps []int
		for _, elemIdx := range node.Children {
			elem := g.tree.At(elemIdx)
			if elem.Children[0] != ast.NoChild {
				deps = append(deps, elem.Children[0])
			}
			deps = append(deps, elem.Children[1])
		}
		return deps

	case ast.KindAssignExpr:
		target := g.tree.At(node.Children[0])
		if target.Kind == ast.KindIndexExpr {
			return []int{target.Children[0], target.Children[1], node.Children[1]}
		}
		return []int{node.Children[1]}

	default:
		return nil
	}
}

func (g *generator) emitExprNode(idx int, regOf map[int]ir.Register) ir.Register {
	node := g.tree.At(idx)
	t := g.infer.TypeOf(idx)

	switch node.Kind {
	case ast.KindIntLit:
		reg := g.newReg()
		g.emit(ir.Instruction{Op: ir.OpConstInt, Operands: []ir.Operand{ir.ImmOperand(node.Int)}, Result: &reg, Type: t})
		return reg

	case ast.KindFloatLit:
		reg := g.newReg()
		g.emit(ir.Instruction{Op: ir.OpConstFloat, Operands: []ir.Operand{ir.ImmOperand(node.Float)}, Result: &reg, Type: t})
		return reg

	case ast.KindStringLit:
		reg := g.newReg()
		str := g.tree.Strings.Lookup(node.Str)
		g.emit(ir.Instruction{Op: ir.OpConstStr, Operands: []ir.Operand{ir.ImmOperand(str)}, Result: &reg, Type: t})
		return reg

	case ast.KindBoolLit:
		reg := g.newReg()
		g.emit(ir.Instruction{Op: ir.OpConstBool, Operands: []ir.Operand{ir.ImmOperand(node.Bool)}, Result: &reg, Type: t})
		return reg

	case ast.KindNullLit:
		reg := g.newReg()
		g.emit(ir.Instruction{Op: ir.OpConstNull, Result: &reg, Type: t})
		return reg

	case ast.KindVariable:
		name := g.tree.Strings.Lookup(node.Str)
		reg := g.newReg()
		g.emit(ir.Instruction{Op: ir.OpLoadVar, Operands: []ir.Operand{ir.ImmOperand(name)}, Result: &reg, Type: t})
		return reg

	case ast.KindAssignExpr:
		return g.emitAssign(node, regOf)

	case ast.KindBinaryExpr:
		return g.emitBinary(node, t, regOf)

	case ast.KindUnaryExpr:
		return g.emitUnary(node, t, regOf[node.Children[0]])

	case ast.KindCallExpr:
		return g.emitCall(node, t, regOf)

	case ast.KindIndexExpr:
		base, index := regOf[node.Children[0]], regOf[node.Children[1]]
		reg := g.newReg()
		g.emit(ir.Instruction{Op: ir.OpArrayGet, Operands: []ir.Operand{ir.RegOperand(base), ir.RegOperand(index)}, Result: &reg, Type: t})
		return reg

	case ast.KindArrayExpr:
		return g.emitArray(node, t, regOf)

	case ast.KindPrintExpr:
		arg := regOf[node.Children[0]]
		g.module.DeclareExtern("php_print")
		reg := g.newReg()
		g.emit(ir.Instruction{Op: ir.OpPrint, Operands: []ir.Operand{ir.RegOperand(arg)}, Result: &reg, Type: t})
		return reg

	default:
		g.diags.Report(diag.Error, fmt.Sprintf("malformed expression node %s", node.Kind), &node.Loc)
		reg := g.newReg()
		g.emit(ir.Instruction{Op: ir.OpConstNull, Result: &reg, Type: types.Of(types.Null)})
		return reg
	}
}

func (g *generator) emitAssign(node *ast.Node, regOf map[int]ir.Register) ir.Register {
	valReg := regOf[node.Children[1]]
	target := g.tree.At(node.Children[0])

	if target.Kind == ast.KindVariable {
		name := g.tree.Strings.Lookup(target.Str)
		g.emit(ir.Instruction{Op: ir.OpStoreVar, Operands: []ir.Operand{ir.ImmOperand(name), ir.RegOperand(valReg)}, Type: types.Of(types.Void)})
		return valReg
	}

	if target.Kind == ast.KindIndexExpr {
		base, index := regOf[target.Children[0]], regOf[target.Children[1]]
		g.emit(ir.Instruction{Op: ir.OpArraySet, Operands: []ir.Operand{ir.RegOperand(base), ir.RegOperand(index), ir.RegOperand(valReg)}, Type: types.Of(types.Void)})
		return valReg
	}

	g.diags.Report(diag.Error, "assignment target is not an lvalue", &node.Loc)
	return valReg
}

func (g *generator) emitBinary(node *ast.Node, t types.Type, regOf map[int]ir.Register) ir.Register {
	lreg, rreg := regOf[node.Children[0]], regOf[node.Children[1]]
	lt, rt := g.infer.TypeOf(node.Children[0]), g.infer.TypeOf(node.Children[1])

	op, ok := binaryOpcode[node.Op]
	if !ok {
		g.diags.Report(diag.Error, fmt.Sprintf("unknown binary operator %q", node.Op), &node.Loc)
		op = ir.OpAdd
	}

	if op.IsArithmetic() {
		lc, lok := lt.IsConcrete()
		rc, rok := rt.IsConcrete()
		if lok && rok && lc == types.Int && rc == types.Float {
			lreg = g.coerceIntToFloat(lreg)
		} else if lok && rok && lc == types.Float && rc == types.Int {
			rreg = g.coerceIntToFloat(rreg)
		}
	}

	reg := g.newReg()
	g.emit(ir.Instruction{Op: op, Operands: []ir.Operand{ir.RegOperand(lreg), ir.RegOperand(rreg)}, Result: &reg, Type: t})
	return reg
}

var binaryOpcode = map[string]ir.Opcode{
	"+": ir.OpAdd, "-": ir.OpSub, "*": ir.OpMul, "/": ir.OpDiv, "%": ir.OpMod,
	".":  ir.OpConcat,
	"==": ir.OpEq, "!=": ir.OpNe, "===": ir.OpEq, "!==": ir.OpNe,
	"<": ir.OpLt, "<=": ir.OpLe, ">": ir.OpGt, ">=": ir.OpGe,
	"&&": ir.OpAnd, "and": ir.OpAnd, "||": ir.OpOr, "or": ir.OpOr,
}

func (g *generator) emitUnary(node *ast.Node, t types.Type, operand ir.Register) ir.Register {
	switch node.Op {
	case "+":
		return operand
	case "!":
		reg := g.newReg()
		g.emit(ir.Instruction{Op: ir.OpNot, Operands: []ir.Operand{ir.RegOperand(operand)}, Result: &reg, Type: t})
		return reg
	case "-":
		reg := g.newReg()
		g.emit(ir.Instruction{Op: ir.OpNeg, Operands: []ir.Operand{ir.RegOperand(operand)}, Result: &reg, Type: t})
		return reg
	default:
		g.diags.Report(diag.Error, fmt.Sprintf("unknown unary operator %q", node.Op), &node.Loc)
		return operand
	}
}

func (g *generator) emitCall(node *ast.Node, t types.Type, regOf map[int]ir.Register) ir.Register {
	name := g.tree.Strings.Lookup(node.Str)
	operands := []ir.Operand{ir.LabelOperand(name)}
	for _, a := range node.Children {
		operands = append(operands, ir.RegOperand(regOf[a]))
	}
	reg := g.newReg()
	g.emit(ir.Instruction{Op: ir.OpCall, Operands: operands, Result: &reg, Type: t})
	return reg
}

func (g *generator) emitArray(node *ast.Node, t types.Type, regOf map[int]ir.Register) ir.Register {
	reg := g.newReg()
	g.emit(ir.Instruction{Op: ir.OpAllocArray, Result: &reg, Type: t})
	for _, elemIdx := range node.Children {
		elem := g.tree.At(elemIdx)
		keyIdx, valIdx := elem.Children[0], elem.Children[1]
		valReg := regOf[valIdx]

		var keyOperand ir.Operand
		if keyIdx != ast.NoChild {
			keyOperand = ir.RegOperand(regOf[keyIdx])
		} else {
			keyOperand = ir.ImmOperand(nil)
		}
		g.emit(ir.Instruction{Op: ir.OpArraySet, Operands: []ir.Operand{ir.RegOperand(reg), keyOperand, ir.RegOperand(valReg)}, Type: types.Of(types.Void)})
	}
	return reg
}

func (g *generator) coerceIntToFloat(reg ir.Register) ir.Register {
	out := g.newReg()
	g.emit(ir.Instruction{Op: ir.OpIntToFloat, Operands: []ir.Operand{ir.RegOperand(reg)}, Result: &out, Type: types.Of(types.Float)})
	return out
}
