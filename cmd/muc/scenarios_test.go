package main

import (
	"fmt"
	"strings"
	"testing"

	"github.com/muvm/muc/pkg/config"
	"github.com/muvm/muc/pkg/emit"
	"github.com/muvm/muc/pkg/isel"
	"github.com/muvm/muc/pkg/isel/amd64"
	"github.com/muvm/muc/pkg/isel/arm64"
	"github.com/muvm/muc/pkg/mcode"
	"github.com/muvm/muc/pkg/peephole"
	"github.com/muvm/muc/pkg/regalloc"
	"github.com/muvm/muc/pkg/vm"
)

// runPipeline drives one function version through the same stages
// compileVersion does, short of writing artifacts to disk, and
// returns the allocator's own AllocationResult plus the emitted text
// for white-box assertions.
func runPipeline(t *testing.T, m *vm.VM, cfg *config.Config, sel isel.Target, verID vm.ID) (*regalloc.AllocationResult, string) {
	t.Helper()
	log, err := newLogger(cfg)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	fv, ok := m.Version(verID)
	if !ok {
		t.Fatalf("unknown version %v", verID)
	}

	mgr := newManager(log, cfg)
	if err := mgr.Run(m, fv); err != nil {
		t.Fatalf("pass manager: %v", err)
	}

	seq, err := sel.Select(m, fv)
	if err != nil {
		t.Fatalf("instruction selection: %v", err)
	}

	result, err := regalloc.AllocateAndValidate(seq, sel.AllocatableRegs())
	if err != nil {
		t.Fatalf("register allocation: %v", err)
	}
	regalloc.ApplyAllocation(seq, result, sel.ScratchRegs())
	peephole.Optimize(seq)

	printer := emit.NewPrinter()
	artifact := printer.FunctionArtifact(fv.Name, seq, nil)
	return result, artifact
}

func callerSavedSet(sel isel.Target) map[string]bool {
	set := map[string]bool{}
	switch sel.Name() {
	case "arm64":
		for _, name := range []string{
			"x0", "x1", "x2", "x3", "x4", "x5", "x6", "x7",
			"x8", "x9", "x10", "x11", "x12", "x13", "x14", "x15", "x16", "x17",
		} {
			set[name] = true
		}
	case "amd64":
		for _, name := range []string{"rax", "rcx", "rdx", "rsi", "rdi", "r8", "r9", "r10", "r11"} {
			set[name] = true
		}
	}
	return set
}

func testTargets() []isel.Target {
	return []isel.Target{arm64.New(), amd64.New()}
}

// TestAddAndCatchKeepsValueLiveAcrossCallOutOfClobberedRegisters is the
// regression test for call instructions failing to model caller-saved
// clobbers: add_and_catch's argument is used both before and after the
// call, so the allocator must not place it in a register the callee is
// free to stomp.
func TestAddAndCatchKeepsValueLiveAcrossCallOutOfClobberedRegisters(t *testing.T) {
	for _, sel := range testTargets() {
		sel := sel
		t.Run(sel.Name(), func(t *testing.T) {
			m := vm.New()
			ids, err := buildAddAndCatchBundle(m)
			if err != nil {
				t.Fatalf("buildAddAndCatchBundle: %v", err)
			}
			cfg := config.Default()
			result, artifact := runPipeline(t, m, cfg, sel, ids.Version)

			loc, ok := result.RegToLoc[mcode.VReg(ids.Arg)]
			if !ok {
				t.Fatalf("expected an allocation for the argument, got none")
			}
			if loc.IsStack {
				t.Fatalf("did not expect the argument to spill with plenty of callee-saved registers free")
			}
			clobbered := callerSavedSet(sel)
			if clobbered[loc.Reg] {
				t.Errorf("argument live across the call was colored to caller-saved register %s", loc.Reg)
			}

			normalLabel := fmt.Sprintf("add_and_catch_v1.L%d", ids.Normal)
			excLabel := fmt.Sprintf("add_and_catch_v1.L%d", ids.Except)
			if !strings.Contains(artifact, normalLabel+":") {
				t.Errorf("expected normal-path block label %s:\n%s", normalLabel, artifact)
			}
			if !strings.Contains(artifact, excLabel+":") {
				t.Errorf("expected exception-path block label %s:\n%s", excLabel, artifact)
			}
		})
	}
}

// TestThrowCatchSequenceCallsMuThrowOnThrowPath exercises ir.Throw's
// lowering and its interaction with register allocation validation: the
// throw block calls mu_throw, and both branch targets get their labels.
func TestThrowCatchSequenceCallsMuThrowOnThrowPath(t *testing.T) {
	for _, sel := range testTargets() {
		sel := sel
		t.Run(sel.Name(), func(t *testing.T) {
			m := vm.New()
			ids, err := buildThrowCatchBundle(m)
			if err != nil {
				t.Fatalf("buildThrowCatchBundle: %v", err)
			}
			cfg := config.Default()
			_, artifact := runPipeline(t, m, cfg, sel, ids.Version)

			if !strings.Contains(artifact, "mu_throw") {
				t.Errorf("expected a call to mu_throw on the throw path:\n%s", artifact)
			}
			throwLabel := fmt.Sprintf("throw_catch_v1.L%d", ids.Throw)
			returnLabel := fmt.Sprintf("throw_catch_v1.L%d", ids.Return)
			if !strings.Contains(artifact, throwLabel+":") {
				t.Errorf("expected throw block label %s:\n%s", throwLabel, artifact)
			}
			if !strings.Contains(artifact, returnLabel+":") {
				t.Errorf("expected return block label %s:\n%s", returnLabel, artifact)
			}
		})
	}
}
