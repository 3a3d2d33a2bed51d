// Package tracegen implements TraceGen (spec.md §4.6): produces a
// linear block ordering that places each block's hottest successor
// immediately after it, so fall-through is the common case and
// CodeEmission can elide most unconditional jumps.
//
// Grounded on the teacher's pkg/linearize.computeOrder (DFS-derived
// block ordering, later used to elide fall-through gotos) generalized
// from plain reverse-postorder to the hotness-greedy trace algorithm
// spec.md §4.6 specifies, and on the boundary test in spec.md §8
// ("get_hottest_succ on edges [(A,0.2),(B,0.7),(C,0.1)] returns B").
package tracegen

import "github.com/muvm/muc/pkg/ir"
import "github.com/muvm/muc/pkg/vm"

// Pass implements pass.Pass.
type Pass struct{}

func New() *Pass { return &Pass{} }

func (*Pass) Name() string { return "TraceGen" }

func (*Pass) Execute(_ *vm.VM, fv *ir.FuncVersion) error {
	fv.BlockTrace = BuildTrace(fv)
	return nil
}

// GetHottestSucc returns the target of the highest-probability edge in
// succs. Ties favor the earliest edge in succs, matching a stable sort.
func GetHottestSucc(succs []ir.Edge) (ir.ID, bool) {
	best := ir.ID(0)
	bestP := -1.0
	found := false
	for _, e := range succs {
		if e.Probability > bestP {
			bestP = e.Probability
			best = e.Target
			found = true
		}
	}
	return best, found
}

// BuildTrace runs the greedy trace-selection algorithm over fv, whose
// blocks must already carry ControlFlowAnalysis's Succs/Kind
// annotations.
func BuildTrace(fv *ir.FuncVersion) []ir.ID {
	placed := make(map[ir.ID]bool, len(fv.Blocks))
	order := fv.OrderedBlockIDs() // stable fallback enumeration order
	var trace []ir.ID

	place := func(id ir.ID) {
		if !placed[id] {
			placed[id] = true
			trace = append(trace, id)
		}
	}

	cur := fv.Entry
	if cur == 0 && len(order) > 0 {
		cur = order[0]
	}

	for cur != 0 {
		place(cur)
		next := hottestUnplacedForwardSucc(fv, cur, placed)
		if next == 0 {
			next = hottestUnplacedReachableByForwardEdge(fv, placed, order)
		}
		if next == 0 {
			next = firstUnplaced(order, placed)
		}
		cur = next
	}
	return trace
}

func hottestUnplacedForwardSucc(fv *ir.FuncVersion, id ir.ID, placed map[ir.ID]bool) ir.ID {
	blk := fv.Block(id)
	if blk == nil {
		return 0
	}
	best := ir.ID(0)
	bestP := -1.0
	for _, e := range blk.CF.Succs {
		if e.Kind == ir.Backward || placed[e.Target] {
			continue
		}
		if e.Probability > bestP {
			bestP = e.Probability
			best = e.Target
		}
	}
	return best
}

func hottestUnplacedReachableByForwardEdge(fv *ir.FuncVersion, placed map[ir.ID]bool, order []ir.ID) ir.ID {
	best := ir.ID(0)
	bestP := -1.0
	for _, id := range order {
		blk := fv.Block(id)
		if blk == nil {
			continue
		}
		for _, e := range blk.CF.Succs {
			if e.Kind == ir.Backward || placed[e.Target] {
				continue
			}
			if e.Probability > bestP {
				bestP = e.Probability
				best = e.Target
			}
		}
	}
	return best
}

func firstUnplaced(order []ir.ID, placed map[ir.ID]bool) ir.ID {
	for _, id := range order {
		if !placed[id] {
			return id
		}
	}
	return 0
}
