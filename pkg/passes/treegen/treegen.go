// Package treegen implements the TreeGen pass (spec.md §4.3): folds
// single-use, same-block expressions into their consumer, turning a
// flat straight-line body into a forest of expression trees for later
// tiling.
//
// Grounded on the teacher's selection pass (pkg/selection/expr.go),
// which already builds a CminorSel expression tree out of a flatter
// Cminor AST; TreeGen generalizes that one-shot build into a use-count
// driven fold over SSA instructions, and on the design note "Side-effect
// ordering in TreeGen" for the barrier-counter technique below.
package treegen

import (
	"github.com/muvm/muc/pkg/ir"
	"github.com/muvm/muc/pkg/vm"
)

// Pass implements pass.Pass.
type Pass struct{}

func New() *Pass { return &Pass{} }

func (*Pass) Name() string { return "TreeGen" }

// pendingDef is a single-use, not-yet-folded definition awaiting its
// unique consumer within the current block.
type pendingDef struct {
	op       ir.Expr
	operands []ir.TreeNode
	ty       ir.Type
	barrier  int
	bodyIdx  int
}

func (*Pass) Execute(_ *vm.VM, fv *ir.FuncVersion) error {
	for _, id := range fv.OrderedBlockIDs() {
		blk := fv.Block(id)
		if blk.Content == nil {
			continue
		}
		treegenBlock(fv.Ctx, blk)
	}
	return nil
}

func treegenBlock(ctx *ir.FuncVerContext, blk *ir.Block) {
	body := blk.Content.Body
	n := len(body)
	newBody := make([]ir.Instruction, n)
	removed := make([]bool, n)
	candidates := make(map[ir.ID]*pendingDef)
	barrier := 0

	for idx, instr := range body {
		instr = substituteInstr(instr, ctx, candidates, barrier, removed)
		newBody[idx] = instr

		if instrEffectful(instr) {
			barrier++
		}

		if assign, ok := instr.(ir.Assign); ok && len(assign.Results) == 1 && len(assign.ResultTy) == 1 {
			id := assign.Results[0]
			if entry := ctx.Get(id); entry != nil && entry.Uses == 1 {
				candidates[id] = &pendingDef{
					op: assign.Op, operands: assign.Operands, ty: assign.ResultTy[0],
					barrier: barrier, bodyIdx: idx,
				}
			}
		}
	}

	out := make([]ir.Instruction, 0, n)
	for idx, instr := range newBody {
		if removed[idx] {
			continue
		}
		out = append(out, instr)
	}
	blk.Content.Body = out
}

func instrEffectful(instr ir.Instruction) bool {
	switch i := instr.(type) {
	case ir.Assign:
		return ir.MayEffect(i.Op)
	case ir.Fence:
		return true
	default:
		// Terminators: effectfulness only matters for instructions that
		// can precede a fold site within the same block, which a
		// terminator (always last) never does.
		return true
	}
}

func substituteInstr(instr ir.Instruction, ctx *ir.FuncVerContext, candidates map[ir.ID]*pendingDef, barrier int, removed []bool) ir.Instruction {
	ops := ir.InstrOperands(instr)
	if len(ops) > 0 {
		newOps := make([]ir.TreeNode, len(ops))
		for i, op := range ops {
			newOps[i] = substituteTree(op, ctx, candidates, barrier, removed)
		}
		instr = ir.SetInstrOperands(instr, newOps)
	}
	dests := ir.Destinations(instr)
	if len(dests) > 0 {
		changed := false
		newDests := make([]ir.Destination, len(dests))
		for i, d := range dests {
			newArgs := make([]ir.DestArg, len(d.Args))
			for j, a := range d.Args {
				if fresh, ok := a.(ir.ArgFresh); ok {
					nv := substituteTree(fresh.Value, ctx, candidates, barrier, removed)
					newArgs[j] = ir.ArgFresh{Value: nv}
					changed = true
				} else {
					newArgs[j] = a
				}
			}
			newDests[i] = ir.Destination{Target: d.Target, Args: newArgs}
		}
		if changed {
			instr = ir.SetDestinations(instr, newDests)
		}
	}
	return instr
}

func substituteTree(node ir.TreeNode, ctx *ir.FuncVerContext, candidates map[ir.ID]*pendingDef, barrier int, removed []bool) ir.TreeNode {
	switch n := node.(type) {
	case ir.ValueNode:
		if n.Kind == ir.KindSSAVar {
			if cand, ok := candidates[n.Value]; ok && cand.barrier == barrier {
				delete(candidates, n.Value)
				removed[cand.bodyIdx] = true
				if entry := ctx.Get(n.Value); entry != nil {
					entry.Folded = true
					entry.FoldedOp = cand.op
				}
				return ir.ExprNode{Op: cand.op, Operands: cand.operands, ResultTy: cand.ty}
			}
		}
		return n
	case ir.ExprNode:
		newOps := make([]ir.TreeNode, len(n.Operands))
		for i, op := range n.Operands {
			newOps[i] = substituteTree(op, ctx, candidates, barrier, removed)
		}
		n.Operands = newOps
		return n
	default:
		return node
	}
}
