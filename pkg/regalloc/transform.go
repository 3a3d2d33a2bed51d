package regalloc

import "github.com/muvm/muc/pkg/mcode"

// ApplyAllocation rewrites seq in place into its final physical form,
// adapted from the teacher's transform.go (which materialized an
// rtl.Function's register allocation into an ltl.Function by rewriting
// rtl.Reg operands to ltl.Loc). Since this repo's pipeline allocates
// directly over the architecture-neutral mcode.Sequence rather than a
// separate LTL stage, applying an allocation means two things: renaming
// every register that got a real color to its physical name, and, for
// every register the allocator gave up on, splicing in explicit
// spill-load/spill-store instructions around each use and def so that
// Uses/Defs never reference a location that was never promoted to a
// register.
func ApplyAllocation(seq *mcode.Sequence, result *AllocationResult, scratch []string) {
	for vreg, loc := range result.RegToLoc {
		if !loc.IsStack {
			seq.ReplaceReg(vreg, mcode.PReg(loc.Reg))
		}
	}
	if len(result.SpilledRegs) == 0 {
		return
	}

	oldToNew := make([]int, len(seq.Insts)+1)
	var out []mcode.Instr
	scratchIdx := 0
	nextScratch := func() mcode.Reg {
		name := scratch[scratchIdx%len(scratch)]
		scratchIdx++
		return mcode.PReg(name)
	}

	for i, inst := range seq.Insts {
		oldToNew[i] = len(out)
		if inst.Nop {
			out = append(out, inst)
			continue
		}

		subst := make(map[mcode.Reg]mcode.Reg)
		for _, r := range inst.Uses {
			if loc, ok := result.RegToLoc[r]; ok && loc.IsStack {
				if _, done := subst[r]; !done {
					tmp := nextScratch()
					out = append(out, mcode.Instr{
						Mnemonic: "spill-load",
						Defs:     []mcode.Reg{tmp},
						Operands: "stack-reload",
					})
					subst[r] = tmp
				}
			}
		}

		newInst := inst
		newInst.Uses = substituteRegs(inst.Uses, subst)
		defSubst := make(map[mcode.Reg]mcode.Reg)
		for _, r := range inst.Defs {
			if loc, ok := result.RegToLoc[r]; ok && loc.IsStack {
				tmp := nextScratch()
				defSubst[r] = tmp
			}
		}
		newInst.Defs = substituteRegs(inst.Defs, defSubst)
		out = append(out, newInst)

		for _, r := range inst.Defs {
			if tmp, ok := defSubst[r]; ok {
				out = append(out, mcode.Instr{
					Mnemonic: "spill-store",
					Uses:     []mcode.Reg{tmp},
					Operands: "stack-spill",
				})
			}
		}
	}
	oldToNew[len(seq.Insts)] = len(out)

	for label, idx := range seq.Labels {
		seq.Labels[label] = oldToNew[idx]
	}
	for label, rng := range seq.Ranges {
		seq.Ranges[label] = [2]int{oldToNew[rng[0]], oldToNew[rng[1]]}
	}

	seq.Insts = out
	seq.LinkCFG()
}

func substituteRegs(regs []mcode.Reg, subst map[mcode.Reg]mcode.Reg) []mcode.Reg {
	if len(subst) == 0 {
		return regs
	}
	out := make([]mcode.Reg, len(regs))
	for i, r := range regs {
		if tmp, ok := subst[r]; ok {
			out[i] = tmp
		} else {
			out[i] = r
		}
	}
	return out
}
