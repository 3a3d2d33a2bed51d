// Package genmovphi implements the GenMovPhi pass (spec.md §4.4):
// eliminates destination-argument (phi) passing by inserting, for every
// terminator destination that carries at least one argument, a fresh
// intermediate block of moves followed by an unconditional branch.
//
// Grounded directly on the original implementation's
// src/compiler/passes/gen_mov_phi.rs, which collects per-destination
// "IntermediateBlockInfo" before rewriting the terminator — reproduced
// here as the two-pass buildMoves/rewrite shape below — and on the
// teacher's block-insertion style in pkg/linearize (new blocks keyed by
// synthesized identities, spliced back into the function's block map).
package genmovphi

import (
	"fmt"

	"github.com/muvm/muc/pkg/cerr"
	"github.com/muvm/muc/pkg/ir"
	"github.com/muvm/muc/pkg/vm"
)

// Pass implements pass.Pass.
type Pass struct{}

func New() *Pass { return &Pass{} }

func (*Pass) Name() string { return "GenMovPhi" }

func (*Pass) Execute(m *vm.VM, fv *ir.FuncVersion) error {
	newBlocks := make(map[ir.ID]*ir.Block)

	for _, id := range fv.OrderedBlockIDs() {
		blk := fv.Block(id)
		if blk.Content == nil || len(blk.Content.Body) == 0 {
			continue
		}
		term := blk.Terminator()
		dests := ir.Destinations(term)
		if len(dests) == 0 {
			continue
		}
		pool := ir.InstrOperands(term)

		changed := false
		newDests := make([]ir.Destination, len(dests))
		for i, d := range dests {
			if len(d.Args) == 0 {
				newDests[i] = d
				continue
			}
			target := fv.Block(d.Target)
			if target == nil || target.Content == nil {
				return cerr.New(cerr.IRMalformed, fv.Name, "branch targets undeclared block %v", d.Target)
			}
			if len(d.Args) != len(target.Content.Args) {
				return cerr.New(cerr.IRMalformed, fv.Name,
					"destination passes %d args, target %v expects %d", len(d.Args), d.Target, len(target.Content.Args))
			}
			moves, anyMove := buildMoves(target, d, pool)
			if !anyMove {
				// Every argument trivially matched its formal (the
				// "self-branch" elision case) -- no edge split needed,
				// just clear the argument list.
				newDests[i] = ir.Destination{Target: d.Target}
				changed = true
				continue
			}
			edgeID, err := m.NewInternalID()
			if err != nil {
				return err
			}
			body := append(moves, ir.Instruction(ir.Branch1{Dest: ir.Destination{Target: d.Target}}))
			edgeBlk := &ir.Block{
				Header:  ir.Header{ID: edgeID, Name: fmt.Sprintf("%s.movphi.%d", blk.Name, i)},
				Content: &ir.BlockContent{Body: body},
			}
			newBlocks[edgeID] = edgeBlk
			newDests[i] = ir.Destination{Target: edgeID}
			changed = true
		}
		if changed {
			blk.SetTerminator(ir.SetDestinations(term, newDests))
		}
	}

	for id, b := range newBlocks {
		fv.Blocks[id] = b
	}
	return nil
}

// buildMoves returns the move sequence implementing d's argument
// passing into target's formals, and whether at least one real move was
// needed (false means every argument was a self-branch elision,
// source-arg == target-arg, per spec.md §4.4).
func buildMoves(target *ir.Block, d ir.Destination, pool []ir.TreeNode) ([]ir.Instruction, bool) {
	var moves []ir.Instruction
	any := false
	for i, arg := range d.Args {
		formal := target.Content.Args[i]
		formalTy := target.Content.ArgTys[i]

		var src ir.TreeNode
		switch a := arg.(type) {
		case ir.ArgNormal:
			if a.Index >= 0 && a.Index < len(pool) {
				src = pool[a.Index]
			}
		case ir.ArgFresh:
			src = a.Value
		}
		if src == nil {
			continue
		}
		if sv, ok := src.(ir.ValueNode); ok && sv.Kind == ir.KindSSAVar && sv.Value == formal {
			continue
		}
		any = true
		moves = append(moves, ir.Assign{
			Results:  []ir.ID{formal},
			ResultTy: []ir.Type{formalTy},
			Op:       ir.Move{},
			Operands: []ir.TreeNode{src},
		})
	}
	return moves, any
}
