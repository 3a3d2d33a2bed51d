package regalloc

import (
	"testing"

	"github.com/muvm/muc/pkg/mcode"
)

func seqOf(insts ...mcode.Instr) *mcode.Sequence {
	seq := mcode.New()
	seq.AppendBlock("entry", insts)
	seq.LinkCFG()
	return seq
}

func TestAnalyzeLivenessSimpleChain(t *testing.T) {
	r1, r2 := mcode.VReg(1), mcode.VReg(2)
	seq := seqOf(
		mcode.Instr{Mnemonic: "mov", Defs: []mcode.Reg{r1}, Operands: "#42"},
		mcode.Instr{Mnemonic: "add", Defs: []mcode.Reg{r2}, Uses: []mcode.Reg{r1, r1}},
		mcode.Instr{Mnemonic: "ret", Uses: []mcode.Reg{r2}, Branch: true},
	)
	li := AnalyzeLiveness(seq)

	if !li.LiveOut[0].Contains(r1) {
		t.Errorf("expected r1 live out of instr 0")
	}
	if li.LiveOut[1].Contains(r1) {
		t.Errorf("expected r1 dead after instr 1")
	}
	if !li.LiveIn[2].Contains(r2) {
		t.Errorf("expected r2 live into instr 2")
	}
}

func TestAnalyzeLivenessCall(t *testing.T) {
	r1, r2, r3 := mcode.VReg(1), mcode.VReg(2), mcode.VReg(3)
	seq := seqOf(
		mcode.Instr{Mnemonic: "bl", Defs: []mcode.Reg{r3}, Uses: []mcode.Reg{r1, r2}, Call: true},
		mcode.Instr{Mnemonic: "ret", Uses: []mcode.Reg{r3}, Branch: true},
	)
	li := AnalyzeLiveness(seq)
	if !li.Use[0].Contains(r1) || !li.Use[0].Contains(r2) {
		t.Fatalf("expected call to use both args")
	}
	if !li.Def[0].Contains(r3) {
		t.Fatalf("expected call to define its result")
	}
}

func TestAnalyzeLivenessBranch(t *testing.T) {
	r1, r2 := mcode.VReg(1), mcode.VReg(2)
	seq := mcode.New()
	seq.AppendBlock("entry", []mcode.Instr{
		{Mnemonic: "mov", Defs: []mcode.Reg{r1}, Operands: "#1"},
		{Mnemonic: "cbnz", Uses: []mcode.Reg{r1}, Branch: true, Targets: []string{"ifso"}},
	})
	seq.AppendBlock("ifnot", []mcode.Instr{
		{Mnemonic: "mov", Defs: []mcode.Reg{r2}, Operands: "#10"},
		{Mnemonic: "b", Branch: true, Targets: []string{"join"}},
	})
	seq.AppendBlock("ifso", []mcode.Instr{
		{Mnemonic: "mov", Defs: []mcode.Reg{r2}, Operands: "#20"},
	})
	seq.AppendBlock("join", []mcode.Instr{
		{Mnemonic: "ret", Uses: []mcode.Reg{r2}, Branch: true},
	})
	seq.LinkCFG()

	li := AnalyzeLiveness(seq)
	if !li.LiveOut[len(seq.Insts)-2].Contains(r2) {
		t.Errorf("expected r2 live out of the ifso block's mov")
	}
}

func TestLoopDepths(t *testing.T) {
	r1 := mcode.VReg(1)
	seq := mcode.New()
	seq.AppendBlock("loop", []mcode.Instr{
		{Mnemonic: "sub", Defs: []mcode.Reg{r1}, Uses: []mcode.Reg{r1}},
		{Mnemonic: "cbnz", Uses: []mcode.Reg{r1}, Branch: true, Targets: []string{"loop"}},
	})
	seq.LinkCFG()
	li := AnalyzeLiveness(seq)
	if li.LoopDepth[0] == 0 {
		t.Errorf("expected the loop body instruction to have nonzero loop depth")
	}
}
