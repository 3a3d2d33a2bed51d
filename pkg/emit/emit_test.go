package emit

import (
	"strings"
	"testing"

	"github.com/muvm/muc/pkg/ir"
	"github.com/muvm/muc/pkg/mcode"
	"github.com/muvm/muc/pkg/vm"
)

func TestFunctionArtifactHasStartAndEndLabels(t *testing.T) {
	seq := mcode.New()
	x0 := mcode.PReg("x0")
	seq.AppendBlock("entry", []mcode.Instr{
		{Mnemonic: "movz", Defs: []mcode.Reg{x0}, Operands: "#1"},
		{Mnemonic: "ret", Branch: true},
	})
	seq.LinkCFG()

	p := NewPrinter()
	out := p.FunctionArtifact("add_one", seq, []string{"add_one_L3_exn"})

	if !strings.Contains(out, "add_one:") {
		t.Errorf("missing function start label: %s", out)
	}
	if !strings.Contains(out, "add_one_end:") {
		t.Errorf("missing function end label: %s", out)
	}
	if !strings.Contains(out, ".globl\tadd_one_L3_exn") {
		t.Errorf("missing exception landing-pad global: %s", out)
	}
	if !strings.Contains(out, "movz\tx0, #1") {
		t.Errorf("expected defs rendered before the immediate operand text, got: %s", out)
	}
}

func TestFunctionArtifactSkipsNops(t *testing.T) {
	seq := mcode.New()
	seq.AppendBlock("entry", []mcode.Instr{
		{Mnemonic: "mov", Nop: true, Operands: "x0, x0"},
		{Mnemonic: "ret", Branch: true},
	})
	seq.LinkCFG()

	out := NewPrinter().FunctionArtifact("f", seq, nil)
	if strings.Contains(out, "mov\tx0, x0") {
		t.Errorf("nop'd instruction must not be printed: %s", out)
	}
}

func TestContextArtifactReservesGlobals(t *testing.T) {
	m := vm.New()
	if _, err := m.DeclareGlobal("counter", ir.Int{Bits: 64}); err != nil {
		t.Fatalf("DeclareGlobal: %v", err)
	}

	out, err := NewPrinter().ContextArtifact(m)
	if err != nil {
		t.Fatalf("ContextArtifact: %v", err)
	}
	if !strings.Contains(out, ".comm\tcounter, 8, 8") {
		t.Errorf("expected an 8-byte .comm reservation for counter, got: %s", out)
	}
	if !strings.Contains(out, "mu_boot_context:") {
		t.Errorf("expected the boot context symbol, got: %s", out)
	}
}
