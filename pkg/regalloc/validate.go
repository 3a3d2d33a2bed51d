package regalloc

import (
	"github.com/muvm/muc/pkg/cerr"
	"github.com/muvm/muc/pkg/mcode"
)

// Validate cross-checks a completed allocation against the
// interference graph it was computed from: no two interfering
// registers may resolve to the same physical register, and every
// precolored (physical) node must still resolve to its own name.
// Both collapse to one check, since a physical node always resolves
// to itself: finding the same physical name on both ends of an edge
// means either two live ranges were miscolored into the same
// register, or a value was colored into a register a call (or the
// calling convention itself) had already claimed.
func Validate(graph *InterferenceGraph, result *AllocationResult) error {
	for r := range graph.Nodes {
		name, ok := locationOf(r, result)
		if !ok {
			continue
		}
		for n := range graph.Edges[r] {
			other, ok := locationOf(n, result)
			if !ok {
				continue
			}
			if name == other {
				return cerr.New(cerr.RegallocInvariant, "", "interfering registers %v and %v both colored to %s", r, n, name)
			}
		}
	}
	return nil
}

// locationOf reports the physical register name r resolves to, if
// any. A physical register node always resolves to itself; a spilled
// virtual has no register location and is excluded from the check.
func locationOf(r mcode.Reg, result *AllocationResult) (string, bool) {
	if r.IsPhysical() {
		return r.Phys, true
	}
	loc, ok := result.RegToLoc[r]
	if !ok || loc.IsStack {
		return "", false
	}
	return loc.Reg, true
}
