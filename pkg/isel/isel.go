// Package isel defines the architecture-neutral instruction-selection
// contract: a Target lowers one function version's post-TraceGen IR into
// an mcode.Sequence. Concrete selectors live in pkg/isel/amd64 and
// pkg/isel/arm64 (spec.md §4.7 "one ISA-specific selector per target").
//
// Grounded on the teacher's pkg/selection.SelectionContext recursive
// per-node translation (cminor.Expr -> cminorsel.Expr, "maximal munch"
// one tree level at a time) generalized from a single target (the
// teacher compiles only to its own cminorsel dialect) to the Target
// interface so a driver can pick a selector by name, the same shape
// wazevo's backend.Machine interface uses to let one compiler core drive
// either its amd64 or arm64 lowering (see other_examples' wazevo amd64
// machine.go for the analogous SSA-instruction-to-machine-instruction
// dispatch).
package isel

import (
	"github.com/muvm/muc/pkg/ir"
	"github.com/muvm/muc/pkg/mcode"
	"github.com/muvm/muc/pkg/vm"
)

// Target lowers one function version to machine code for a specific ISA.
type Target interface {
	Name() string
	Select(m *vm.VM, fv *ir.FuncVersion) (*mcode.Sequence, error)
	// AllocatableRegs lists the physical registers RegisterAllocation
	// may assign, in the target's calling-convention argument order
	// where applicable (spec.md §4.8 "K colors").
	AllocatableRegs() []string
	// ScratchRegs lists registers AllocatableRegs excludes and that
	// spill-code insertion (pkg/regalloc.ApplyAllocation) may borrow
	// for the load/store pair bracketing a spilled use or def.
	ScratchRegs() []string
}

// Registry maps ISA selector names (spec.md §6 CLI --target) to Targets.
type Registry map[string]Target

func NewRegistry(targets ...Target) Registry {
	r := make(Registry, len(targets))
	for _, t := range targets {
		r[t.Name()] = t
	}
	return r
}
