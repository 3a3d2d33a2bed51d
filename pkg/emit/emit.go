// Package emit implements CodeEmission (spec.md §4.10) and the boot
// context artifact (spec.md §6 Egress): per-function GNU-as assembly
// text plus one context.s carrying exported symbol/global reservations
// and a serialized VM boot snapshot.
//
// Grounded on the teacher's pkg/asm.Printer (GNU `as` directive style:
// `.globl`/`.align`/`.type`/`.size`, Darwin underscore-prefixing) and on
// original_source/src/compiler/mod.rs's per-CompiledFunction
// start/end-label and exception-table emission, generalized from one
// fixed per-opcode instruction set to mcode.Instr's generic
// Mnemonic/Defs/Uses/Operands shape.
package emit

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/muvm/muc/pkg/ir"
	"github.com/muvm/muc/pkg/mcode"
	"github.com/muvm/muc/pkg/vm"
	"gopkg.in/yaml.v3"
)

// Printer renders mcode.Sequence values as GNU-as text, matching the
// teacher's asm.Printer's Darwin-vs-Linux symbol-prefixing behavior.
type Printer struct {
	isDarwin bool
}

func NewPrinter() *Printer { return &Printer{isDarwin: runtime.GOOS == "darwin"} }

func (p *Printer) symbolName(name string) string {
	if p.isDarwin {
		return "_" + name
	}
	return name
}

// FunctionArtifact renders one compiled function's <name>.s contents:
// the function body between exported start/end labels, plus a .globl
// for every exception-landing-pad label the selected code references
// (spec.md §6 "every callsite with exception destinations emits an
// additional global label used to populate the exception-table
// section").
func (p *Printer) FunctionArtifact(name string, seq *mcode.Sequence, exceptionLabels []string) string {
	var b strings.Builder
	sym := p.symbolName(name)
	endSym := p.symbolName(name + "_end")

	fmt.Fprintf(&b, "\t.text\n")
	fmt.Fprintf(&b, "\t.align\t2\n")
	fmt.Fprintf(&b, "\t.globl\t%s\n", sym)
	if !p.isDarwin {
		fmt.Fprintf(&b, "\t.type\t%s, %%function\n", sym)
	}
	for _, l := range exceptionLabels {
		fmt.Fprintf(&b, "\t.globl\t%s\n", p.symbolName(l))
	}
	fmt.Fprintf(&b, "%s:\n", sym)

	for _, label := range seq.Blocks {
		rng, ok := seq.BlockRange(label)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s:\n", label)
		for i := rng[0]; i < rng[1]; i++ {
			p.printInstr(&b, seq.Insts[i])
		}
	}

	if !p.isDarwin {
		fmt.Fprintf(&b, "\t.size\t%s, .-%s\n", sym, sym)
	}
	fmt.Fprintf(&b, "\t.globl\t%s\n", endSym)
	fmt.Fprintf(&b, "%s:\n", endSym)
	return b.String()
}

func (p *Printer) printInstr(b *strings.Builder, inst mcode.Instr) {
	if inst.Nop {
		return
	}
	var operands []string
	for _, r := range inst.Defs {
		operands = append(operands, r.String())
	}
	for _, r := range inst.Uses {
		operands = append(operands, r.String())
	}
	if inst.Operands != "" {
		operands = append(operands, inst.Operands)
	}
	if len(operands) == 0 {
		fmt.Fprintf(b, "\t%s\n", inst.Mnemonic)
		return
	}
	fmt.Fprintf(b, "\t%s\t%s\n", inst.Mnemonic, strings.Join(operands, ", "))
}

// BootContext is the serialized snapshot embedded in context.s's .asciz
// block: everything a freshly-started runtime needs before it can trust
// the rest of the image (spec.md §6 Egress "serialized snapshot of VM
// state required at boot: type tables, signatures, primordial-thread
// descriptor").
type BootContext struct {
	Types       map[string]ir.Type  `yaml:"types"`
	Sigs        map[string]*ir.Sig  `yaml:"sigs"`
	Functions   []FunctionSymbol    `yaml:"functions"`
	Globals     []GlobalReservation `yaml:"globals"`
	Primordial  *PrimordialSnapshot `yaml:"primordial,omitempty"`
}

type FunctionSymbol struct {
	Name string `yaml:"name"`
	Sig  string `yaml:"sig"`
}

type GlobalReservation struct {
	Name  string `yaml:"name"`
	Size  uint64 `yaml:"size"`
	Align uint64 `yaml:"align"`
}

type PrimordialSnapshot struct {
	FuncID uint64          `yaml:"func_id"`
	HasArg bool            `yaml:"has_arg"`
	Args   []ir.ConstValue `yaml:"args,omitempty"`
}

// BuildBootContext gathers everything ContextArtifact needs from the
// VM's declared state.
func BuildBootContext(m *vm.VM) (*BootContext, []GlobalReservation) {
	ctx := &BootContext{
		Types: make(map[string]ir.Type),
		Sigs:  make(map[string]*ir.Sig),
	}
	for id, ty := range m.TypesSnapshot() {
		ctx.Types[itoa(uint64(id))] = ty
	}
	for id, sig := range m.SigsSnapshot() {
		ctx.Sigs[itoa(uint64(id))] = sig
	}
	for _, fn := range m.FuncsSnapshot() {
		sigKey := ""
		if fn.Sig != nil {
			sigKey = fn.Sig.Key()
		}
		ctx.Functions = append(ctx.Functions, FunctionSymbol{Name: fn.Name, Sig: sigKey})
	}
	sort.Slice(ctx.Functions, func(i, j int) bool { return ctx.Functions[i].Name < ctx.Functions[j].Name })

	var reservations []GlobalReservation
	for _, g := range m.GlobalsSnapshot() {
		size := ir.SizeOf(g.Ty, m)
		align := ir.AlignOf(g.Ty, m)
		reservations = append(reservations, GlobalReservation{Name: g.Name, Size: size, Align: align})
	}
	sort.Slice(reservations, func(i, j int) bool { return reservations[i].Name < reservations[j].Name })
	ctx.Globals = reservations

	if pt := m.Primordial(); pt != nil {
		ctx.Primordial = &PrimordialSnapshot{FuncID: uint64(pt.FuncID), HasArg: pt.HasArg, Args: pt.Args}
	}
	return ctx, reservations
}

// ContextArtifact renders context.s: .bss .comm reservations for every
// declared global, followed by a .data block holding the YAML-serialized
// BootContext as a single .asciz string.
func (p *Printer) ContextArtifact(m *vm.VM) (string, error) {
	ctx, globals := BuildBootContext(m)

	encoded, err := yaml.Marshal(ctx)
	if err != nil {
		return "", fmt.Errorf("emit: marshal boot context: %w", err)
	}

	var b strings.Builder
	if len(globals) > 0 {
		fmt.Fprintf(&b, "\t.bss\n")
		for _, g := range globals {
			fmt.Fprintf(&b, "\t.comm\t%s, %d, %d\n", p.symbolName(g.Name), g.Size, g.Align)
		}
		fmt.Fprintf(&b, "\n")
	}

	fmt.Fprintf(&b, "\t.data\n")
	fmt.Fprintf(&b, "\t.globl\t%s\n", p.symbolName("mu_boot_context"))
	fmt.Fprintf(&b, "%s:\n", p.symbolName("mu_boot_context"))
	fmt.Fprintf(&b, "\t.asciz\t%q\n", escapeForAsciz(string(encoded)))
	return b.String(), nil
}

func escapeForAsciz(s string) string {
	return strings.ReplaceAll(s, "\n", "\\n")
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
