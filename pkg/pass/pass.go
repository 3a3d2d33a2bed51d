// Package pass implements the compiler's pass manager (spec.md §4.1):
// an ordered list of passes, each given mutable access to one function
// version and read-only access to the VM.
//
// Grounded on the teacher's CLI driver (cmd/ralph-cc/main.go), which
// chains doParse -> doClight -> ... -> doAsm as a fixed sequence of
// named stages, each re-dumpable on demand, and on the original source's
// CompilerPass trait (src/compiler/mod.rs / passes/mod.rs) which names a
// pass and gives it a visit_function hook.
package pass

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/muvm/muc/pkg/ir"
	"github.com/muvm/muc/pkg/vm"
)

// Pass is the unit of work the manager sequences. Name identifies the
// pass for logging and for diagnostic dump file naming; Execute performs
// the pass's mutation or analysis over one function version.
type Pass interface {
	Name() string
	Execute(m *vm.VM, fv *ir.FuncVersion) error
}

// FuncVisitor is implemented by passes whose logic is naturally
// expressed per-function (as opposed to needing the whole-version
// structure up front); Manager calls VisitFunction once per registered
// pass that implements it, after the pass's own Execute (if any)
// completes. Most passes implement only Pass; FuncVisitor exists for
// passes layered on top of a shared traversal (e.g. diagnostic dumps).
type FuncVisitor interface {
	VisitFunction(m *vm.VM, fv *ir.FuncVersion) error
}

// DumpFunc optionally renders fv for diagnostics after a pass runs;
// registered passes may implement this to participate in -dXXX-style
// dumping gated by Manager.DumpDir.
type DumpFunc interface {
	Dump(fv *ir.FuncVersion) string
}

// Manager runs a fixed, ordered sequence of passes over a function
// version, matching spec.md §2's ten-stage pipeline.
type Manager struct {
	Passes  []Pass
	DumpDir string // empty disables dumping
	Log     *logrus.Logger
}

// NewManager returns a manager with no passes registered; callers
// append passes via Add (cmd/muc appends the six IR passes, Inlining
// through TraceGen).
func NewManager(log *logrus.Logger) *Manager {
	return &Manager{Log: log}
}

// Add appends a pass to the end of the pipeline.
func (m *Manager) Add(p Pass) *Manager {
	m.Passes = append(m.Passes, p)
	return m
}

// Run executes every registered pass in order against fv. A pass
// returning an error aborts the remaining pipeline immediately and the
// error is reported upward unchanged (spec.md §7 "Cancellation": no
// continuation after a failed pass).
func (m *Manager) Run(v *vm.VM, fv *ir.FuncVersion) error {
	for _, p := range m.Passes {
		if m.Log != nil {
			m.Log.WithFields(logrus.Fields{"pass": p.Name(), "func": fv.Name}).Debug("running pass")
		}
		if err := p.Execute(v, fv); err != nil {
			if m.Log != nil {
				m.Log.WithFields(logrus.Fields{"pass": p.Name(), "func": fv.Name}).Error(err)
			}
			return fmt.Errorf("pass %s on %s: %w", p.Name(), fv.Name, err)
		}
		if fvis, ok := p.(FuncVisitor); ok {
			if err := fvis.VisitFunction(v, fv); err != nil {
				return fmt.Errorf("pass %s on %s: %w", p.Name(), fv.Name, err)
			}
		}
		if dp, ok := p.(DumpFunc); ok && m.DumpDir != "" {
			if err := writeDump(m.DumpDir, fv.Name, p.Name(), dp.Dump(fv)); err != nil {
				return err
			}
		}
		if m.Log != nil {
			m.Log.WithFields(logrus.Fields{"pass": p.Name(), "func": fv.Name,
				"blocks": len(fv.Blocks)}).Trace("pass complete")
		}
	}
	return nil
}
