package regalloc

import "github.com/muvm/muc/pkg/mcode"

// InterferenceGraph represents the register interference graph. Two
// registers interfere if they are both live at the same program point.
//
// Adapted from the teacher's interference.go (rtl.Reg -> mcode.Reg;
// rtl.Function -> mcode.Sequence); structure and method set unchanged.
type InterferenceGraph struct {
	Nodes           RegSet
	Edges           map[mcode.Reg]RegSet
	Preferences     map[mcode.Reg]RegSet
	LiveAcrossCalls RegSet
}

func NewInterferenceGraph() *InterferenceGraph {
	return &InterferenceGraph{
		Nodes:           NewRegSet(),
		Edges:           make(map[mcode.Reg]RegSet),
		Preferences:     make(map[mcode.Reg]RegSet),
		LiveAcrossCalls: NewRegSet(),
	}
}

func (g *InterferenceGraph) AddNode(r mcode.Reg) {
	g.Nodes.Add(r)
	if g.Edges[r] == nil {
		g.Edges[r] = NewRegSet()
	}
	if g.Preferences[r] == nil {
		g.Preferences[r] = NewRegSet()
	}
}

func (g *InterferenceGraph) AddEdge(r1, r2 mcode.Reg) {
	if r1 == r2 {
		return
	}
	g.AddNode(r1)
	g.AddNode(r2)
	g.Edges[r1].Add(r2)
	g.Edges[r2].Add(r1)
}

func (g *InterferenceGraph) AddPreference(r1, r2 mcode.Reg) {
	if r1 == r2 {
		return
	}
	g.AddNode(r1)
	g.AddNode(r2)
	g.Preferences[r1].Add(r2)
	g.Preferences[r2].Add(r1)
}

func (g *InterferenceGraph) HasEdge(r1, r2 mcode.Reg) bool {
	if edges, ok := g.Edges[r1]; ok {
		return edges.Contains(r2)
	}
	return false
}

func (g *InterferenceGraph) Degree(r mcode.Reg) int {
	if edges, ok := g.Edges[r]; ok {
		return len(edges)
	}
	return 0
}

func (g *InterferenceGraph) Neighbors(r mcode.Reg) RegSet {
	if edges, ok := g.Edges[r]; ok {
		return edges.Copy()
	}
	return NewRegSet()
}

func (g *InterferenceGraph) RemoveNode(r mcode.Reg) {
	if edges, ok := g.Edges[r]; ok {
		for neighbor := range edges {
			delete(g.Edges[neighbor], r)
		}
	}
	if prefs, ok := g.Preferences[r]; ok {
		for neighbor := range prefs {
			delete(g.Preferences[neighbor], r)
		}
	}
	delete(g.Nodes, r)
	delete(g.Edges, r)
	delete(g.Preferences, r)
}

func (g *InterferenceGraph) MoveRelated(r mcode.Reg) bool {
	return len(g.Preferences[r]) > 0
}

// BuildInterferenceGraph constructs the interference graph from
// liveness info over a selected machine-code sequence: a defined
// register interferes with every register live at that instruction's
// exit, except the source of a move it was copied from (so moves
// between otherwise-non-interfering registers remain coalescing
// candidates).
func BuildInterferenceGraph(seq *mcode.Sequence, liveness *LivenessInfo) *InterferenceGraph {
	g := NewInterferenceGraph()

	for _, inst := range seq.Insts {
		for _, r := range inst.Defs {
			g.AddNode(r)
		}
		for _, r := range inst.Uses {
			g.AddNode(r)
		}
	}

	for i, inst := range seq.Insts {
		if inst.Nop {
			continue
		}
		for _, defReg := range inst.Defs {
			for liveReg := range liveness.LiveOut[i] {
				if inst.IsMove && len(inst.Uses) == 1 && inst.Uses[0] == liveReg {
					continue
				}
				g.AddEdge(defReg, liveReg)
			}
		}
		if inst.Call {
			for liveReg := range liveness.LiveOut[i] {
				g.LiveAcrossCalls.Add(liveReg)
			}
		}
	}

	for _, inst := range seq.Insts {
		if inst.IsMove && len(inst.Defs) == 1 && len(inst.Uses) == 1 {
			g.AddPreference(inst.Defs[0], inst.Uses[0])
		}
	}

	return g
}
