package regalloc

import "github.com/muvm/muc/pkg/mcode"

// Allocator performs register allocation using Iterated Register
// Coalescing (Briggs-style conservative coalescing), adapted from the
// teacher's pkg/regalloc Allocator (rtl.Reg -> mcode.Reg; the LTL
// location output is replaced by Loc below since this repo's backend
// has no LTL stage). selectSpill departs from the teacher's plain
// max-degree heuristic: this repo weighs a node's spill cost by how
// often it is used and how deeply nested that use is, per the spec's
// heuristic spill weight ≈ Σ(use count × 10^loop-depth) ÷ degree — the
// teacher's original simply spilled whichever high-degree node had the
// most neighbors, which starves hot loop variables.
type Allocator struct {
	graph    *InterferenceGraph
	liveness *LivenessInfo
	seq      *mcode.Sequence
	K        int
	physRegs []string

	colors    map[mcode.Reg]int
	spillSlot map[mcode.Reg]int

	simplifyWorklist []mcode.Reg
	freezeWorklist   []mcode.Reg
	spillWorklist    []mcode.Reg
	coalescedNodes   RegSet
	coloredNodes     RegSet
	spilledNodes     RegSet
	selectStack      []mcode.Reg

	alias map[mcode.Reg]mcode.Reg

	coalescedMoves   [][2]mcode.Reg
	constrainedMoves [][2]mcode.Reg
	frozenMoves      [][2]mcode.Reg
	worklistMoves    [][2]mcode.Reg
	activeMoves      [][2]mcode.Reg

	nextSpillSlot int64

	// weight caches the spill-cost weight of every node, computed once
	// from liveness before the main loop runs.
	weight map[mcode.Reg]float64
}

// Loc is where RegisterAllocation finally placed a virtual register:
// either a physical register name or a stack spill slot offset.
type Loc struct {
	Reg      string
	IsStack  bool
	SlotOfs  int64
}

// AllocationResult holds the result of register allocation.
type AllocationResult struct {
	RegToLoc    map[mcode.Reg]Loc
	SpilledRegs RegSet
	StackSize   int64
}

// NewAllocator creates an allocator targeting the given physical
// register name pool (caller-supplied per ISA, e.g. x0..x28 for arm64).
func NewAllocator(seq *mcode.Sequence, graph *InterferenceGraph, liveness *LivenessInfo, physRegs []string) *Allocator {
	return &Allocator{
		seq:            seq,
		graph:          graph,
		liveness:       liveness,
		K:              len(physRegs),
		physRegs:       physRegs,
		colors:         make(map[mcode.Reg]int),
		spillSlot:      make(map[mcode.Reg]int),
		coalescedNodes: NewRegSet(),
		coloredNodes:   NewRegSet(),
		spilledNodes:   NewRegSet(),
		alias:          make(map[mcode.Reg]mcode.Reg),
		weight:         make(map[mcode.Reg]float64),
	}
}

func (a *Allocator) Allocate() *AllocationResult {
	a.computeWeights()
	a.buildWorklists()

	for {
		switch {
		case len(a.simplifyWorklist) > 0:
			a.simplify()
		case len(a.worklistMoves) > 0:
			a.coalesce()
		case len(a.freezeWorklist) > 0:
			a.freeze()
		case len(a.spillWorklist) > 0:
			a.selectSpill()
		default:
			a.assignColors()
			return a.buildResult()
		}
	}
}

// computeWeights assigns every node a spill-cost weight: the sum, over
// every instruction that uses the register, of 1 * 10^loopDepth at that
// instruction, divided by the node's interference degree (a high-degree
// node is cheaper to free per spill, so it divides the benefit down).
func (a *Allocator) computeWeights() {
	uses := make(map[mcode.Reg]float64)
	for i, inst := range a.seq.Insts {
		if inst.Nop {
			continue
		}
		depthFactor := 1.0
		for d := 0; d < a.liveness.LoopDepth[i]; d++ {
			depthFactor *= 10
		}
		for _, r := range inst.Uses {
			uses[r] += depthFactor
		}
	}
	for r := range a.graph.Nodes {
		deg := a.Degree(r)
		if deg == 0 {
			deg = 1
		}
		a.weight[r] = uses[r] / float64(deg)
	}
}

func (a *Allocator) Degree(r mcode.Reg) int { return a.degree(r) }

func (a *Allocator) buildWorklists() {
	for r := range a.graph.Nodes {
		if r.IsPhysical() {
			a.colors[r] = a.physIndex(r)
			a.coloredNodes.Add(r)
			continue
		}
		if a.degree(r) >= a.K {
			a.spillWorklist = append(a.spillWorklist, r)
		} else if a.graph.MoveRelated(r) {
			a.freezeWorklist = append(a.freezeWorklist, r)
		} else {
			a.simplifyWorklist = append(a.simplifyWorklist, r)
		}
	}
	for r, prefs := range a.graph.Preferences {
		for p := range prefs {
			if r.Virtual && p.Virtual && r.ID < p.ID {
				a.worklistMoves = append(a.worklistMoves, [2]mcode.Reg{r, p})
			}
		}
	}
}

func (a *Allocator) physIndex(r mcode.Reg) int {
	for i, name := range a.physRegs {
		if name == r.Phys {
			return i
		}
	}
	return -1
}

func (a *Allocator) degree(r mcode.Reg) int {
	deg := 0
	for neighbor := range a.graph.Edges[r] {
		if !a.coalescedNodes.Contains(neighbor) {
			deg++
		}
	}
	return deg
}

func (a *Allocator) simplify() {
	n := len(a.simplifyWorklist) - 1
	r := a.simplifyWorklist[n]
	a.simplifyWorklist = a.simplifyWorklist[:n]
	a.selectStack = append(a.selectStack, r)
	for neighbor := range a.graph.Edges[r] {
		a.decrementDegree(neighbor)
	}
}

func (a *Allocator) decrementDegree(r mcode.Reg) {
	if a.coalescedNodes.Contains(r) || r.IsPhysical() {
		return
	}
	if a.degree(r) == a.K-1 {
		a.removeFromWorklist(r, &a.spillWorklist)
		if a.graph.MoveRelated(r) {
			a.freezeWorklist = append(a.freezeWorklist, r)
		} else {
			a.simplifyWorklist = append(a.simplifyWorklist, r)
		}
	}
}

func (a *Allocator) removeFromWorklist(r mcode.Reg, list *[]mcode.Reg) {
	for i, reg := range *list {
		if reg == r {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}

func (a *Allocator) coalesce() {
	n := len(a.worklistMoves) - 1
	m := a.worklistMoves[n]
	a.worklistMoves = a.worklistMoves[:n]

	x := a.getAlias(m[0])
	y := a.getAlias(m[1])

	u, v := x, y
	if !regLess(u, v) {
		u, v = y, x
	}

	switch {
	case u == v:
		a.coalescedMoves = append(a.coalescedMoves, m)
		a.addToWorklist(u)
	case a.graph.HasEdge(u, v):
		a.constrainedMoves = append(a.constrainedMoves, m)
		a.addToWorklist(u)
		a.addToWorklist(v)
	case a.conservativeCoalesce(u, v):
		a.coalescedMoves = append(a.coalescedMoves, m)
		a.combine(u, v)
		a.addToWorklist(u)
	default:
		a.activeMoves = append(a.activeMoves, m)
	}
}

func regLess(a, b mcode.Reg) bool {
	if a.Virtual != b.Virtual {
		return a.Virtual
	}
	if a.Virtual {
		return a.ID < b.ID
	}
	return a.Phys < b.Phys
}

func (a *Allocator) getAlias(r mcode.Reg) mcode.Reg {
	if a.coalescedNodes.Contains(r) {
		return a.getAlias(a.alias[r])
	}
	return r
}

func (a *Allocator) conservativeCoalesce(u, v mcode.Reg) bool {
	highDegree := 0
	neighbors := NewRegSet()
	for n := range a.graph.Edges[u] {
		if !a.coalescedNodes.Contains(n) {
			neighbors.Add(n)
		}
	}
	for n := range a.graph.Edges[v] {
		if !a.coalescedNodes.Contains(n) {
			neighbors.Add(n)
		}
	}
	for n := range neighbors {
		if a.degree(n) >= a.K {
			highDegree++
		}
	}
	return highDegree < a.K
}

func (a *Allocator) combine(u, v mcode.Reg) {
	a.removeFromWorklist(v, &a.freezeWorklist)
	a.removeFromWorklist(v, &a.spillWorklist)
	a.coalescedNodes.Add(v)
	a.alias[v] = u

	if a.graph.LiveAcrossCalls.Contains(v) {
		a.graph.LiveAcrossCalls.Add(u)
	}
	for n := range a.graph.Edges[v] {
		if !a.coalescedNodes.Contains(n) && n != u {
			a.graph.AddEdge(u, n)
			a.decrementDegree(n)
		}
	}
	for n := range a.graph.Preferences[v] {
		if n != u {
			a.graph.AddPreference(u, n)
		}
	}
	a.weight[u] += a.weight[v]
	if a.degree(u) >= a.K {
		a.removeFromWorklist(u, &a.freezeWorklist)
		a.spillWorklist = append(a.spillWorklist, u)
	}
}

func (a *Allocator) addToWorklist(r mcode.Reg) {
	if a.coalescedNodes.Contains(r) || r.IsPhysical() {
		return
	}
	if a.degree(r) < a.K && !a.graph.MoveRelated(r) {
		a.removeFromWorklist(r, &a.freezeWorklist)
		a.simplifyWorklist = append(a.simplifyWorklist, r)
	}
}

func (a *Allocator) freeze() {
	n := len(a.freezeWorklist) - 1
	r := a.freezeWorklist[n]
	a.freezeWorklist = a.freezeWorklist[:n]
	a.simplifyWorklist = append(a.simplifyWorklist, r)
	a.freezeMovesFor(r)
}

func (a *Allocator) freezeMovesFor(r mcode.Reg) {
	var remaining [][2]mcode.Reg
	for _, m := range a.activeMoves {
		if m[0] == r || m[1] == r {
			a.frozenMoves = append(a.frozenMoves, m)
			other := m[1]
			if m[1] == r {
				other = m[0]
			}
			a.addToWorklist(other)
		} else {
			remaining = append(remaining, m)
		}
	}
	a.activeMoves = remaining
}

// selectSpill picks the spill-worklist node with the lowest spill-cost
// weight — the one least worth keeping in a register — per the spec's
// use-count/loop-depth/degree heuristic computed in computeWeights.
func (a *Allocator) selectSpill() {
	minIdx := -1
	var minWeight float64
	for i, r := range a.spillWorklist {
		w := a.weight[r]
		if minIdx == -1 || w < minWeight {
			minWeight = w
			minIdx = i
		}
	}
	if minIdx >= 0 {
		r := a.spillWorklist[minIdx]
		a.spillWorklist = append(a.spillWorklist[:minIdx], a.spillWorklist[minIdx+1:]...)
		a.simplifyWorklist = append(a.simplifyWorklist, r)
		a.freezeMovesFor(r)
	}
}

func (a *Allocator) assignColors() {
	for len(a.selectStack) > 0 {
		n := len(a.selectStack) - 1
		r := a.selectStack[n]
		a.selectStack = a.selectStack[:n]

		used := make(map[int]bool)
		for neighbor := range a.graph.Edges[r] {
			alias := a.getAlias(neighbor)
			if a.coloredNodes.Contains(alias) {
				used[a.colors[alias]] = true
			}
		}

		color := -1
		for c := 0; c < a.K; c++ {
			if !used[c] {
				color = c
				break
			}
		}
		if color >= 0 {
			a.coloredNodes.Add(r)
			a.colors[r] = color
		} else {
			a.spilledNodes.Add(r)
			a.spillSlot[r] = int(a.nextSpillSlot)
			a.nextSpillSlot += 8
		}
	}

	for r := range a.coalescedNodes {
		alias := a.getAlias(r)
		if a.coloredNodes.Contains(alias) {
			a.colors[r] = a.colors[alias]
			a.coloredNodes.Add(r)
		} else if a.spilledNodes.Contains(alias) {
			a.spilledNodes.Add(r)
			a.spillSlot[r] = a.spillSlot[alias]
		}
	}
}

func (a *Allocator) buildResult() *AllocationResult {
	result := &AllocationResult{
		RegToLoc:    make(map[mcode.Reg]Loc),
		SpilledRegs: a.spilledNodes.Copy(),
		StackSize:   a.nextSpillSlot,
	}
	for r := range a.coloredNodes {
		if r.IsPhysical() {
			continue
		}
		color := a.colors[r]
		if color >= 0 && color < len(a.physRegs) {
			result.RegToLoc[r] = Loc{Reg: a.physRegs[color]}
		}
	}
	for r := range a.spilledNodes {
		result.RegToLoc[r] = Loc{IsStack: true, SlotOfs: int64(a.spillSlot[r])}
	}
	return result
}

// AllocateSequence runs liveness analysis, interference-graph
// construction and IRC allocation over seq.
func AllocateSequence(seq *mcode.Sequence, physRegs []string) *AllocationResult {
	liveness := AnalyzeLiveness(seq)
	graph := BuildInterferenceGraph(seq, liveness)
	allocator := NewAllocator(seq, graph, liveness, physRegs)
	return allocator.Allocate()
}

// AllocateAndValidate runs the same pipeline as AllocateSequence and
// additionally cross-checks the result against the interference graph
// it was computed from (see Validate). Callers that disable validation
// for speed should call AllocateSequence directly instead.
func AllocateAndValidate(seq *mcode.Sequence, physRegs []string) (*AllocationResult, error) {
	liveness := AnalyzeLiveness(seq)
	graph := BuildInterferenceGraph(seq, liveness)
	allocator := NewAllocator(seq, graph, liveness, physRegs)
	result := allocator.Allocate()
	if err := Validate(graph, result); err != nil {
		return nil, err
	}
	return result, nil
}
