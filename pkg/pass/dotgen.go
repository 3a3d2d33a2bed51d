package pass

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/muvm/muc/pkg/ir"
)

// writeDump persists a textual pass dump to <dir>/<func>.<pass>.txt,
// mirroring the teacher's per-stage dump files
// (<name>.parsed.c, <name>.rtl.0, <name>.ltl, ...).
func writeDump(dir, fn, passName, content string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	safe := strings.NewReplacer("/", "_", " ", "_").Replace(passName)
	path := filepath.Join(dir, fmt.Sprintf("%s.%s.txt", fn, safe))
	return os.WriteFile(path, []byte(content), 0o644)
}

// DotGraph renders fv's control-flow graph as Graphviz dot, ported from
// the original implementation's src/compiler/passes/dot_gen.rs and
// exposed as an ambient diagnostic artifact (spec.md §4.1 "Passes may
// emit diagnostic artifacts (textual IR dumps, Graphviz dot)").
func DotGraph(fv *ir.FuncVersion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", fv.Name)
	for _, id := range fv.OrderedBlockIDs() {
		blk := fv.Block(id)
		label := blk.Header.String()
		if blk.IsLandingPad() {
			label += " [landing pad]"
		}
		fmt.Fprintf(&b, "  %q [label=%q];\n", idLabel(id), label)
	}
	for _, id := range fv.OrderedBlockIDs() {
		blk := fv.Block(id)
		for _, e := range blk.CF.Succs {
			style := "solid"
			if e.Exceptional {
				style = "dashed"
			}
			fmt.Fprintf(&b, "  %q -> %q [label=%.2f style=%s];\n",
				idLabel(id), idLabel(e.Target), e.Probability, style)
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func idLabel(id ir.ID) string { return fmt.Sprintf("b%d", id) }
