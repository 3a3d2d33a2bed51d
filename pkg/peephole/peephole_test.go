package peephole

import (
	"testing"

	"github.com/muvm/muc/pkg/mcode"
)

func TestOptimizeRemovesRedundantMove(t *testing.T) {
	x0 := mcode.PReg("x0")
	seq := mcode.New()
	seq.AppendBlock("entry", []mcode.Instr{
		{Mnemonic: "mov", IsMove: true, Defs: []mcode.Reg{x0}, Uses: []mcode.Reg{x0}},
		{Mnemonic: "ret", Branch: true},
	})
	seq.LinkCFG()
	Optimize(seq)

	if !seq.Insts[0].Nop {
		t.Errorf("expected a same-register move to be nop'd out")
	}
}

func TestOptimizeKeepsMemoryMove(t *testing.T) {
	x0 := mcode.PReg("x0")
	seq := mcode.New()
	seq.AppendBlock("entry", []mcode.Instr{
		{Mnemonic: "mov", IsMove: true, UsesMemory: true, Defs: []mcode.Reg{x0}, Uses: []mcode.Reg{x0}},
		{Mnemonic: "ret", Branch: true},
	})
	seq.LinkCFG()
	Optimize(seq)

	if seq.Insts[0].Nop {
		t.Errorf("a memory-operand move must never be treated as redundant")
	}
}

func TestOptimizeRemovesJumpToNextLabel(t *testing.T) {
	seq := mcode.New()
	seq.AppendBlock("entry", []mcode.Instr{
		{Mnemonic: "b", Branch: true, Targets: []string{"next"}},
	})
	seq.AppendBlock("next", []mcode.Instr{
		{Mnemonic: "ret", Branch: true},
	})
	seq.LinkCFG()
	Optimize(seq)

	if !seq.Insts[0].Nop {
		t.Errorf("expected a jump straight to the following label to be nop'd out")
	}
}

func TestOptimizeTunnelsJumpChain(t *testing.T) {
	seq := mcode.New()
	seq.AppendBlock("start", []mcode.Instr{
		{Mnemonic: "b", Branch: true, Targets: []string{"mid"}},
	})
	seq.AppendBlock("mid", []mcode.Instr{
		{Mnemonic: "b", Branch: true, Targets: []string{"end"}},
	})
	seq.AppendBlock("end", []mcode.Instr{
		{Mnemonic: "ret", Branch: true},
	})
	seq.LinkCFG()
	Optimize(seq)

	if seq.Insts[0].Targets[0] != "end" {
		t.Errorf("expected the chained jump to tunnel straight to end, got %v", seq.Insts[0].Targets)
	}
}
