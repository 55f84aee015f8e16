package optimize

import (
	"fmt"
	"strings"

	"github.com/wudi/phpaot/ir"
)

// csePass merges instructions within a block that recompute a value an
// earlier instruction already produced, redirecting every later reference
// to the earlier result via a regRewriter. Only pure opcodes (no observable
// side effect beyond the result register) are eligible.
type csePass struct{}

func (p *csePass) Name() string { return "common_subexpression_elimination" }

func (p *csePass) Apply(m *ir.Module, stats *Stats) bool {
	changed := false
	for _, fn := range m.Functions {
		for _, b := range fn.Blocks {
			if cseBlock(b, stats) {
				changed = true
			}
		}
	}
	return changed
}

// pureCSE lists opcodes safe to deduplicate: same opcode + same operands
// always yields the same result with no other effect.
var pureCSE = map[ir.Opcode]bool{
	ir.OpAdd: true, ir.OpSub: true, ir.OpMul: true, ir.OpDiv: true, ir.OpMod: true,
	ir.OpNeg: true, ir.OpConcat: true, ir.OpIntToFloat: true,
	ir.OpEq: true, ir.OpNe: true, ir.OpLt: true, ir.OpLe: true, ir.OpGt: true, ir.OpGe: true,
	ir.OpAnd: true, ir.OpOr: true, ir.OpNot: true,
	ir.OpArrayGet: true,
}

func cseBlock(b *ir.BasicBlock, stats *Stats) bool {
	rewriter := make(regRewriter)
	seen := make(map[string]ir.Register)
	changed := false

	var kept []ir.Instruction
	for _, inst := range b.Instructions {
		inst.Operands = rewriter.rewriteOperands(inst.Operands)

		// A store or call may overwrite array contents, so cached
		// array_get results are no longer trustworthy past it.
		if inst.Op == ir.OpArraySet || inst.Op == ir.OpCall {
			prefix := fmt.Sprintf("%d|", ir.OpArrayGet)
			for key := range seen {
				if strings.HasPrefix(key, prefix) {
					delete(seen, key)
				}
			}
		}

		if !pureCSE[inst.Op] || inst.Result == nil {
			kept = append(kept, inst)
			continue
		}
		key := cseKey(inst)
		if prior, ok := seen[key]; ok {
			rewriter[*inst.Result] = prior
			changed = true
			stats.CommonSubexpressionsEliminated++
			continue
		}
		seen[key] = *inst.Result
		kept = append(kept, inst)
	}
	b.Instructions = kept
	rewriter.rewriteTerminator(b.Terminator)
	return changed
}

func cseKey(inst ir.Instruction) string {
	key := fmt.Sprintf("%d", inst.Op)
	for _, op := range inst.Operands {
		switch op.Kind {
		case ir.OperandRegister:
			key += fmt.Sprintf("|r%d", op.Reg)
		case ir.OperandImmediate:
			key += fmt.Sprintf("|i%v", op.Imm)
		case ir.OperandLabel:
			key += fmt.Sprintf("|l%s", op.Label)
		}
	}
	return key
}
