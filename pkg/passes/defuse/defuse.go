// Package defuse implements the DefUse pass (spec.md §4.2): sweeps every
// operand slot of every instruction in every block and increments the
// use-count on the referenced SSA entry.
//
// Grounded on the teacher's liveness sweep shape (pkg/regalloc, a
// fixed-point walk over every instruction's Args) but simplified to a
// single forward counting pass, since DefUse has no fixed-point
// structure of its own.
package defuse

import (
	"github.com/muvm/muc/pkg/cerr"
	"github.com/muvm/muc/pkg/ir"
	"github.com/muvm/muc/pkg/vm"
)

// Pass implements pass.Pass.
type Pass struct{}

func New() *Pass { return &Pass{} }

func (*Pass) Name() string { return "DefUse" }

// Execute resets every entry's use count to zero (Idempotent only when
// reset between runs, per spec.md §4.2) then re-derives it from the
// current operand graph.
func (p *Pass) Execute(_ *vm.VM, fv *ir.FuncVersion) error {
	for _, e := range fv.Ctx.Vars {
		e.Uses = 0
	}
	for _, id := range fv.OrderedBlockIDs() {
		blk := fv.Block(id)
		if blk.Content == nil {
			continue
		}
		for _, instr := range blk.Content.Body {
			if err := countInstr(fv, instr); err != nil {
				return err
			}
		}
	}
	return nil
}

func countInstr(fv *ir.FuncVersion, instr ir.Instruction) error {
	for _, op := range ir.InstrOperands(instr) {
		if err := countTree(fv, op); err != nil {
			return err
		}
	}
	for _, dest := range ir.Destinations(instr) {
		for _, arg := range dest.Args {
			if fresh, ok := arg.(ir.ArgFresh); ok {
				if err := countTree(fv, fresh.Value); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func countTree(fv *ir.FuncVersion, node ir.TreeNode) error {
	uses := ir.CollectSSAUses(node, nil)
	for _, id := range uses {
		entry := fv.Ctx.Get(id)
		if entry == nil {
			return cerr.New(cerr.IRMalformed, fv.Name, "operand refers to undeclared SSA identity %v", id)
		}
		entry.Uses++
	}
	return nil
}
