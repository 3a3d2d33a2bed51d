// Package cfa implements ControlFlowAnalysis (spec.md §4.5): for each
// block, records its terminator's destinations as successor edges
// tagged Forward/Backward with a probability, then populates the
// symmetric predecessor lists in a second sweep.
//
// Grounded on the teacher's linearize.computeOrder DFS (used there to
// pick a block ordering for Linear code) repurposed here purely to
// obtain a reverse-postorder numbering for forward/backward
// classification, and on its blockSuccessors switch, generalized from
// Lbranch/Lcond/Ljumptable to the full Mu terminator set.
package cfa

import (
	"github.com/muvm/muc/pkg/ir"
	"github.com/muvm/muc/pkg/vm"
)

// Pass implements pass.Pass.
type Pass struct{}

func New() *Pass { return &Pass{} }

func (*Pass) Name() string { return "ControlFlow" }

func (*Pass) Execute(_ *vm.VM, fv *ir.FuncVersion) error {
	order := rpo(fv)
	pos := make(map[ir.ID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}

	for _, id := range fv.OrderedBlockIDs() {
		blk := fv.Block(id)
		if blk.Content == nil {
			blk.CF = ir.ControlFlow{}
			continue
		}
		term := blk.Terminator()
		edges := successorEdges(term)
		srcPos, known := pos[id]
		for i := range edges {
			tgtPos, ok := pos[edges[i].Target]
			if known && ok && tgtPos <= srcPos {
				edges[i].Kind = ir.Backward
			} else {
				edges[i].Kind = ir.Forward
			}
		}
		blk.CF.Succs = edges
		blk.CF.Preds = nil
	}

	for _, id := range fv.OrderedBlockIDs() {
		src := fv.Block(id)
		for _, e := range src.CF.Succs {
			tgt := fv.Block(e.Target)
			if tgt == nil {
				continue
			}
			tgt.CF.Preds = append(tgt.CF.Preds, id)
		}
	}
	return nil
}

// successorEdges derives the successor-edge list (with probability and
// exceptional flag, but Kind left zero for the caller to fill in) from a
// terminator.
func successorEdges(term ir.Instruction) []ir.Edge {
	switch t := term.(type) {
	case ir.Branch1:
		return []ir.Edge{{Target: t.Dest.Target, Probability: 1.0}}
	case ir.Branch2:
		p := t.TrueProb
		if p == 0 {
			p = 0.5
		}
		return []ir.Edge{
			{Target: t.TrueDest.Target, Probability: p},
			{Target: t.FalseDest.Target, Probability: 1 - p},
		}
	case ir.Switch:
		n := len(t.Cases) + 1
		share := 1.0 / float64(n)
		edges := make([]ir.Edge, 0, n)
		for _, c := range t.Cases {
			edges = append(edges, ir.Edge{Target: c.Dest.Target, Probability: share})
		}
		edges = append(edges, ir.Edge{Target: t.Default.Target, Probability: share})
		return edges
	case ir.Watchpoint:
		return []ir.Edge{
			{Target: t.Disabled.Target, Probability: 0.99},
			{Target: t.Enabled.Target, Probability: 0.01},
		}
	case ir.WPBranch:
		return []ir.Edge{
			{Target: t.Fallthrough.Target, Probability: 0.99},
			{Target: t.Dest.Target, Probability: 0.01},
		}
	case ir.Call:
		if t.HasExn {
			return []ir.Edge{
				{Target: t.Resumption.Normal.Target, Probability: 0.99},
				{Target: t.Resumption.Exception.Target, Probability: 0.01, Exceptional: true},
			}
		}
		return []ir.Edge{{Target: t.Resumption.Normal.Target, Probability: 1.0}}
	case ir.SwapStack:
		if t.HasExn {
			return []ir.Edge{
				{Target: t.Resumption.Normal.Target, Probability: 0.99},
				{Target: t.Resumption.Exception.Target, Probability: 0.01, Exceptional: true},
			}
		}
		return []ir.Edge{{Target: t.Resumption.Normal.Target, Probability: 1.0}}
	case ir.ExceptionalWrapper:
		if t.HasExn {
			return []ir.Edge{
				{Target: t.Resumption.Normal.Target, Probability: 0.99},
				{Target: t.Resumption.Exception.Target, Probability: 0.01, Exceptional: true},
			}
		}
		return []ir.Edge{{Target: t.Resumption.Normal.Target, Probability: 1.0}}
	default:
		return nil
	}
}

// rpo returns block identities in reverse postorder from the entry
// block, used only to classify edges as forward/backward; blocks not
// reached from the entry are visited afterwards in OrderedBlockIDs order
// so every block still gets a position, which after the reversal places
// them ahead of the entry block.
func rpo(fv *ir.FuncVersion) []ir.ID {
	visited := make(map[ir.ID]bool)
	var post []ir.ID
	var visit func(id ir.ID)
	visit = func(id ir.ID) {
		if visited[id] {
			return
		}
		visited[id] = true
		blk := fv.Block(id)
		if blk != nil && blk.Content != nil {
			for _, e := range successorEdges(blk.Terminator()) {
				visit(e.Target)
			}
		}
		post = append(post, id)
	}
	if fv.Entry != 0 {
		visit(fv.Entry)
	}
	for _, id := range fv.OrderedBlockIDs() {
		visit(id)
	}
	// reverse
	out := make([]ir.ID, len(post))
	for i, id := range post {
		out[len(post)-1-i] = id
	}
	return out
}
