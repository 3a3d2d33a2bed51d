// Command muc is the thin CLI driver wiring the pass manager, the
// per-ISA instruction selectors, register allocation, the peephole
// optimizer and the assembly/context emitter into a single `compile`
// subcommand (spec.md §6 "CLI/config", SPEC_FULL.md `[CLI]`).
//
// Grounded on cmd/ralph-cc/main.go's cobra-based newRootCmd/run shape:
// one root command, flags bound once, RunE doing the real work. Unlike
// the teacher, this driver takes no source file — bundle loading is an
// external collaborator (spec.md §1 "out of scope") — so `compile`
// always compiles the built-in demo bundle (see demo.go) and writes its
// emitted artifacts to the configured AOT emit directory.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/muvm/muc/pkg/config"
	"github.com/muvm/muc/pkg/emit"
	"github.com/muvm/muc/pkg/ir"
	"github.com/muvm/muc/pkg/isel"
	"github.com/muvm/muc/pkg/isel/amd64"
	"github.com/muvm/muc/pkg/isel/arm64"
	"github.com/muvm/muc/pkg/pass"
	"github.com/muvm/muc/pkg/passes/cfa"
	"github.com/muvm/muc/pkg/passes/defuse"
	"github.com/muvm/muc/pkg/passes/genmovphi"
	"github.com/muvm/muc/pkg/passes/inline"
	"github.com/muvm/muc/pkg/passes/tracegen"
	"github.com/muvm/muc/pkg/passes/treegen"
	"github.com/muvm/muc/pkg/peephole"
	"github.com/muvm/muc/pkg/regalloc"
	"github.com/muvm/muc/pkg/vm"
)

var version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	cfg := config.Default()
	var target string

	rootCmd := &cobra.Command{
		Use:           "muc",
		Short:         "muc is the Mu IR compiler backend CLI",
		Long:          `muc runs the Mu IR compilation pipeline over a loaded bundle and emits ahead-of-time assembly plus a serialized VM boot context.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	compileCmd := &cobra.Command{
		Use:   "compile",
		Short: "run the pipeline over the loaded bundle and emit assembly",
		RunE: func(cmd *cobra.Command, args []string) error {
			return doCompile(cfg, target, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cfg.BindFlags(compileCmd)
	compileCmd.Flags().StringVar(&target, "target", "arm64", "ISA to compile for: arm64 or amd64")

	rootCmd.AddCommand(compileCmd)
	return rootCmd
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	lvl, err := cfg.LogrusLevel()
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetLevel(lvl)
	return log, nil
}

func newRegistry() isel.Registry {
	return isel.NewRegistry(arm64.New(), amd64.New())
}

func newManager(log *logrus.Logger, cfg *config.Config) *pass.Manager {
	m := pass.NewManager(log)
	m.DumpDir = cfg.DumpDir
	if !cfg.DisableInline {
		m.Add(inline.New())
	}
	m.Add(defuse.New())
	m.Add(treegen.New())
	m.Add(genmovphi.New())
	m.Add(cfa.New())
	m.Add(tracegen.New())
	return m
}

func doCompile(cfg *config.Config, targetName string, stdout, stderr io.Writer) error {
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	m := vm.New()
	m.Log = log

	if _, err := buildDemoBundle(m); err != nil {
		return fmt.Errorf("muc: building bundle: %w", err)
	}

	registry := newRegistry()
	sel, ok := registry[targetName]
	if !ok {
		return fmt.Errorf("muc: unknown target %q", targetName)
	}

	if err := os.MkdirAll(cfg.AOTEmitDir, 0o755); err != nil {
		return fmt.Errorf("muc: creating emit directory: %w", err)
	}

	versionIDs := m.VersionIDs()
	g := new(errgroup.Group)
	for _, vid := range versionIDs {
		vid := vid
		g.Go(func() error {
			return compileVersion(m, log, cfg, sel, vid)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	printer := emit.NewPrinter()
	ctx, err := printer.ContextArtifact(m)
	if err != nil {
		return fmt.Errorf("muc: building context artifact: %w", err)
	}
	if err := os.WriteFile(filepath.Join(cfg.AOTEmitDir, "context.s"), []byte(ctx), 0o644); err != nil {
		return fmt.Errorf("muc: writing context.s: %w", err)
	}

	fmt.Fprintf(stderr, "muc: wrote %d function artifact(s) and context.s to %s\n", len(versionIDs), cfg.AOTEmitDir)
	return nil
}

// compileVersion runs one function version through the pass pipeline,
// instruction selection, register allocation, peephole optimization and
// assembly emission, writing its <name>.s artifact to disk. One
// goroutine per version holds only that version's writer lock (spec.md
// §5 "Multiple function versions may be compiled in parallel").
func compileVersion(m *vm.VM, log *logrus.Logger, cfg *config.Config, sel isel.Target, versionID ir.ID) error {
	unlock := m.LockVersion(versionID)
	defer unlock()

	fv, ok := m.Version(versionID)
	if !ok {
		return fmt.Errorf("muc: unknown function version %v", versionID)
	}

	mgr := newManager(log, cfg)
	if err := mgr.Run(m, fv); err != nil {
		return err
	}

	seq, err := sel.Select(m, fv)
	if err != nil {
		return fmt.Errorf("muc: instruction selection for %s: %w", fv.Name, err)
	}

	var result *regalloc.AllocationResult
	if cfg.DisableRegallocValidate {
		result = regalloc.AllocateSequence(seq, sel.AllocatableRegs())
	} else {
		result, err = regalloc.AllocateAndValidate(seq, sel.AllocatableRegs())
		if err != nil {
			return fmt.Errorf("muc: register allocation for %s: %w", fv.Name, err)
		}
	}
	regalloc.ApplyAllocation(seq, result, sel.ScratchRegs())
	peephole.Optimize(seq)

	fn, _ := m.Func(fv.OwnerFunc)
	fnName := fv.Name
	if fn != nil && fn.Name != "" {
		fnName = fn.Name
	}

	cf := &ir.CompiledFunction{
		FuncID:    fv.OwnerFunc,
		VersionID: fv.ID,
		Frame:     ir.FrameDescriptor{Size: result.StackSize},
		Start:     fnName,
		End:       fnName + "_end",
	}
	m.PutCompiled(cf)

	printer := emit.NewPrinter()
	artifact := printer.FunctionArtifact(fnName, seq, exceptionLabels(cf))
	outPath := filepath.Join(cfg.AOTEmitDir, fnName+".s")
	if err := os.WriteFile(outPath, []byte(artifact), 0o644); err != nil {
		return fmt.Errorf("muc: writing %s: %w", outPath, err)
	}
	log.WithFields(logrus.Fields{"func": fnName, "target": sel.Name(), "spilled": len(result.SpilledRegs)}).Info("compiled function version")
	return nil
}

func exceptionLabels(cf *ir.CompiledFunction) []string {
	labels := make([]string, 0, len(cf.Frame.ExceptionTable))
	for _, e := range cf.Frame.ExceptionTable {
		labels = append(labels, e.CallsiteEndLabel)
	}
	return labels
}
