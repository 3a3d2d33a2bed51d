// Package regalloc implements RegisterAllocation (spec.md §4.8) via
// Iterated Register Coalescing over an mcode.Sequence.
//
// Adapted in place from the teacher's pkg/regalloc (interference.go,
// irc.go, transform.go originally worked over pkg/rtl.Reg/Function); the
// adaptation here retargets every piece from rtl's register/instruction
// types to mcode.Reg/mcode.Sequence, since RegisterAllocation in this
// repo runs after architecture-neutral instruction selection rather than
// directly on RTL. liveness.go is new: the teacher's own
// pkg/regalloc package ships liveness_test.go but not the liveness
// analysis itself in this retrieval, so it is written fresh here in the
// same def/use/live-in/live-out shape the tests and BuildInterferenceGraph
// already assume.
package regalloc

import "github.com/muvm/muc/pkg/mcode"

// RegSet is a set of registers.
type RegSet map[mcode.Reg]struct{}

func NewRegSet() RegSet { return make(RegSet) }

func (s RegSet) Add(r mcode.Reg)            { s[r] = struct{}{} }
func (s RegSet) Contains(r mcode.Reg) bool  { _, ok := s[r]; return ok }
func (s RegSet) Copy() RegSet {
	out := make(RegSet, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}
func (s RegSet) Slice() []mcode.Reg {
	out := make([]mcode.Reg, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	return out
}

// LivenessInfo holds per-instruction-index def/use/live-in/live-out sets
// plus a loop-depth estimate per index, the input the spec's spill-cost
// heuristic weighs use count against.
type LivenessInfo struct {
	Def      []RegSet
	Use      []RegSet
	LiveIn   []RegSet
	LiveOut  []RegSet
	LoopDepth []int
}

// AnalyzeLiveness computes backward dataflow liveness over seq, which
// must already have LinkCFG's Succs/Preds populated.
func AnalyzeLiveness(seq *mcode.Sequence) *LivenessInfo {
	n := len(seq.Insts)
	li := &LivenessInfo{
		Def:      make([]RegSet, n),
		Use:      make([]RegSet, n),
		LiveIn:   make([]RegSet, n),
		LiveOut:  make([]RegSet, n),
		LoopDepth: loopDepths(seq),
	}
	for i, inst := range seq.Insts {
		li.Def[i] = NewRegSet()
		li.Use[i] = NewRegSet()
		for _, r := range inst.Defs {
			li.Def[i].Add(r)
		}
		for _, r := range inst.Uses {
			li.Use[i].Add(r)
		}
		li.LiveIn[i] = NewRegSet()
		li.LiveOut[i] = NewRegSet()
	}

	changed := true
	for changed {
		changed = false
		for i := n - 1; i >= 0; i-- {
			out := NewRegSet()
			for _, s := range seq.Succs[i] {
				for r := range li.LiveIn[s] {
					out.Add(r)
				}
			}
			in := NewRegSet()
			for r := range li.Use[i] {
				in.Add(r)
			}
			for r := range out {
				if !li.Def[i].Contains(r) {
					in.Add(r)
				}
			}
			if !setEqual(in, li.LiveIn[i]) || !setEqual(out, li.LiveOut[i]) {
				li.LiveIn[i] = in
				li.LiveOut[i] = out
				changed = true
			}
		}
	}
	return li
}

func setEqual(a, b RegSet) bool {
	if len(a) != len(b) {
		return false
	}
	for r := range a {
		if !b.Contains(r) {
			return false
		}
	}
	return true
}

// loopDepths estimates, for each instruction index, how many enclosing
// back edges (a successor edge whose target index <= its source index,
// the same forward/backward classification pkg/passes/cfa performs on
// the IR) contain that index in their [target, source] span.
func loopDepths(seq *mcode.Sequence) []int {
	n := len(seq.Insts)
	depths := make([]int, n)
	for i, succs := range seq.Succs {
		for _, t := range succs {
			if t <= i {
				for j := t; j <= i; j++ {
					depths[j]++
				}
			}
		}
	}
	return depths
}
