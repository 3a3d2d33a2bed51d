package regalloc

import (
	"testing"

	"github.com/muvm/muc/pkg/ir"
	"github.com/muvm/muc/pkg/mcode"
)

var testPhysRegs = []string{"x0", "x1", "x2"}

func TestAllocateSequenceSimple(t *testing.T) {
	r1, r2, r3 := mcode.VReg(1), mcode.VReg(2), mcode.VReg(3)
	seq := seqOf(
		mcode.Instr{Mnemonic: "mov", Defs: []mcode.Reg{r1}, Operands: "#1"},
		mcode.Instr{Mnemonic: "mov", Defs: []mcode.Reg{r2}, Operands: "#2"},
		mcode.Instr{Mnemonic: "add", Defs: []mcode.Reg{r3}, Uses: []mcode.Reg{r1, r2}},
		mcode.Instr{Mnemonic: "ret", Uses: []mcode.Reg{r3}, Branch: true},
	)
	result := AllocateSequence(seq, testPhysRegs)

	for _, r := range []mcode.Reg{r1, r2, r3} {
		loc, ok := result.RegToLoc[r]
		if !ok {
			t.Fatalf("expected an allocation for %v", r)
		}
		if loc.IsStack {
			t.Errorf("did not expect %v to spill with 3 physical regs available", r)
		}
	}
	if result.RegToLoc[r1].Reg == result.RegToLoc[r2].Reg {
		t.Errorf("r1 and r2 interfere at the add and must not share a register")
	}
}

func TestAllocateSequenceCoalescesMove(t *testing.T) {
	r1, r2 := mcode.VReg(1), mcode.VReg(2)
	seq := seqOf(
		mcode.Instr{Mnemonic: "mov", Defs: []mcode.Reg{r1}, Operands: "#42"},
		mcode.Instr{Mnemonic: "mov", Defs: []mcode.Reg{r2}, Uses: []mcode.Reg{r1}, IsMove: true},
		mcode.Instr{Mnemonic: "ret", Uses: []mcode.Reg{r2}, Branch: true},
	)
	result := AllocateSequence(seq, testPhysRegs)
	if result.RegToLoc[r1].Reg != result.RegToLoc[r2].Reg {
		t.Errorf("expected the non-interfering move's src/dst to coalesce onto the same register")
	}
}

func TestAllocateSequenceSpillsUnderPressure(t *testing.T) {
	regs := make([]mcode.Reg, 6)
	var insts []mcode.Instr
	for i := range regs {
		regs[i] = mcode.VReg(ir.ID(ir0 + uint64(i)))
		insts = append(insts, mcode.Instr{Mnemonic: "mov", Defs: []mcode.Reg{regs[i]}, Operands: "#1"})
	}
	var sumUses []mcode.Reg
	sumUses = append(sumUses, regs...)
	insts = append(insts, mcode.Instr{Mnemonic: "addall", Uses: sumUses, Branch: true})

	seq := seqOf(insts...)
	result := AllocateSequence(seq, testPhysRegs)

	spilled := 0
	for _, r := range regs {
		if result.RegToLoc[r].IsStack {
			spilled++
		}
	}
	if spilled == 0 {
		t.Errorf("expected at least one spill with 6 simultaneously-live regs and 3 physical registers")
	}
}

func TestApplyAllocationRewritesPhysicalRegs(t *testing.T) {
	r1, r2 := mcode.VReg(1), mcode.VReg(2)
	seq := seqOf(
		mcode.Instr{Mnemonic: "mov", Defs: []mcode.Reg{r1}, Operands: "#1"},
		mcode.Instr{Mnemonic: "ret", Uses: []mcode.Reg{r1, r2}, Branch: true},
	)
	result := &AllocationResult{RegToLoc: map[mcode.Reg]Loc{
		r1: {Reg: "x0"},
		r2: {Reg: "x1"},
	}}
	ApplyAllocation(seq, result, []string{"x8", "x9"})

	if seq.Insts[0].Defs[0] != mcode.PReg("x0") {
		t.Errorf("expected r1 rewritten to x0, got %v", seq.Insts[0].Defs[0])
	}
	if seq.Insts[1].Uses[1] != mcode.PReg("x1") {
		t.Errorf("expected r2 rewritten to x1, got %v", seq.Insts[1].Uses[1])
	}
}

func TestApplyAllocationInsertsSpillCode(t *testing.T) {
	r1 := mcode.VReg(1)
	seq := seqOf(
		mcode.Instr{Mnemonic: "mov", Defs: []mcode.Reg{r1}, Operands: "#1"},
		mcode.Instr{Mnemonic: "ret", Uses: []mcode.Reg{r1}, Branch: true},
	)
	result := &AllocationResult{
		RegToLoc:    map[mcode.Reg]Loc{r1: {IsStack: true, SlotOfs: 0}},
		SpilledRegs: func() RegSet { s := NewRegSet(); s.Add(r1); return s }(),
	}
	ApplyAllocation(seq, result, []string{"x8", "x9"})

	var foundStore, foundLoad bool
	for _, inst := range seq.Insts {
		if inst.Mnemonic == "spill-store" {
			foundStore = true
		}
		if inst.Mnemonic == "spill-load" {
			foundLoad = true
		}
	}
	if !foundStore || !foundLoad {
		t.Errorf("expected both a spill-store after the def and a spill-load before the use, got %+v", seq.Insts)
	}
}

const ir0 = 100
