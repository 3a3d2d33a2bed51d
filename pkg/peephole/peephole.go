// Package peephole implements PeepholeOptimization (spec.md §4.9) over
// an already register-allocated mcode.Sequence.
//
// Grounded on original_source/src/compiler/backend/peephole_opt.rs's
// PeepholeOptimization pass (remove_redundant_move / remove_unnecessary_jump,
// implemented against the MachineCode trait's is_move/is_using_mem_op/
// get_inst_reg_uses/defines/set_inst_nop — all mirrored directly by
// mcode.Sequence) and on the teacher's pkg/linearize/tunneling.go branch
// tunneling, generalized from linear.Label chains to mcode label chains.
package peephole

import "github.com/muvm/muc/pkg/mcode"

// Optimize mutates seq in place: redundant register-to-register moves
// (src and dst already the same physical register after allocation) are
// nop'd out, unconditional jumps to the label immediately following them
// are nop'd out, and jump chains ("goto L1" where L1 is itself just
// "goto L2") are tunneled to their ultimate target. seq.LinkCFG is
// rerun at the end since tunneling changes Targets.
func Optimize(seq *mcode.Sequence) {
	removeRedundantMoves(seq)
	tunnelJumpChains(seq)
	removeUnnecessaryJumps(seq)
	seq.LinkCFG()
}

// removeRedundantMoves nops out any move whose source and destination
// are the same physical register post-allocation. Mirrors
// remove_redundant_move: a move to/from memory is never redundant this
// way, and a move with no register source (materializing an immediate)
// is never redundant either.
func removeRedundantMoves(seq *mcode.Sequence) {
	for i := range seq.Insts {
		inst := &seq.Insts[i]
		if inst.Nop || !inst.IsMove || inst.UsesMemory {
			continue
		}
		if len(inst.Uses) != 1 || len(inst.Defs) != 1 {
			continue
		}
		if inst.Uses[0] == inst.Defs[0] {
			seq.SetNop(i)
		}
	}
}

// removeUnnecessaryJumps nops out an unconditional branch whose sole
// target is the label immediately following it, per
// remove_unnecessary_jump: "if this inst jumps to a label that directly
// follows it, we can set it to nop".
func removeUnnecessaryJumps(seq *mcode.Sequence) {
	for i, inst := range seq.Insts {
		if inst.Nop || !inst.Branch || len(inst.Targets) != 1 {
			continue
		}
		next := nextNonNop(seq, i)
		if next < 0 {
			continue
		}
		if labelAt(seq, next) == inst.Targets[0] {
			seq.SetNop(i)
		}
	}
}

func nextNonNop(seq *mcode.Sequence, i int) int {
	for j := i + 1; j < len(seq.Insts); j++ {
		if !seq.Insts[j].Nop {
			return j
		}
	}
	return -1
}

// labelAt returns the block label whose range starts at index i, or ""
// if no block begins there.
func labelAt(seq *mcode.Sequence, i int) string {
	for label, rng := range seq.Ranges {
		if rng[0] == i {
			return label
		}
	}
	return ""
}

// tunnelJumpChains shortcuts chains of unconditional jumps: a block
// that is nothing but "b Lx" has every branch into it retargeted
// straight to Lx, following chains (and stopping at a detected cycle)
// exactly as the teacher's resolveLabel does.
func tunnelJumpChains(seq *mcode.Sequence) {
	jumpTargets := make(map[string]string)
	for label, rng := range seq.Ranges {
		start, end := rng[0], rng[1]
		if end-start != 1 {
			continue
		}
		inst := seq.Insts[start]
		if inst.Branch && len(inst.Targets) == 1 && inst.Mnemonic != "" {
			jumpTargets[label] = inst.Targets[0]
		}
	}

	resolved := make(map[string]string, len(jumpTargets))
	for label := range jumpTargets {
		resolved[label] = resolveLabel(label, jumpTargets)
	}

	for i := range seq.Insts {
		inst := &seq.Insts[i]
		if inst.Nop || !inst.Branch {
			continue
		}
		for j, t := range inst.Targets {
			if final, ok := resolved[t]; ok {
				inst.Targets[j] = final
			}
		}
	}
}

func resolveLabel(label string, jumpTargets map[string]string) string {
	visited := make(map[string]bool)
	current := label
	for {
		if visited[current] {
			return current
		}
		visited[current] = true
		target, ok := jumpTargets[current]
		if !ok {
			return current
		}
		current = target
	}
}
