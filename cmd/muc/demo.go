package main

import (
	"github.com/muvm/muc/pkg/ir"
	"github.com/muvm/muc/pkg/vm"
)

// buildDemoBundle populates m with one canonical function,
// add_one(i64) -> i64, entirely through the ingress API (DeclareFuncSig,
// DeclareFunc, DefineFuncVersion, SetPrimordialThread). A real bundle
// loader is an external collaborator this backend never implements
// (spec.md §1 "out of scope"); this stands in for one so `compile` has
// something to drive the pipeline over, the same role
// original_source/src/vm/api/localtests/api_impl.rs's hand-built mock
// bundles play for the original's own API conformance tests.
func buildDemoBundle(m *vm.VM) (ir.ID, error) {
	i64 := ir.Int{Bits: 64}

	sigID, err := m.DeclareFuncSig("add_one_sig", []ir.Type{i64}, []ir.Type{i64})
	if err != nil {
		return 0, err
	}
	funcID, err := m.DeclareFunc("add_one", sigID)
	if err != nil {
		return 0, err
	}

	verID, err := m.NewInternalID()
	if err != nil {
		return 0, err
	}
	entryID, err := m.NewInternalID()
	if err != nil {
		return 0, err
	}
	argID, err := m.NewInternalID()
	if err != nil {
		return 0, err
	}
	resultID, err := m.NewInternalID()
	if err != nil {
		return 0, err
	}

	fv := ir.NewFuncVersion(verID, "add_one_v1", funcID)
	fv.Entry = entryID
	fv.Ctx.Declare(argID, i64)
	fv.Ctx.Declare(resultID, i64)

	one := ir.ValueNode{Kind: ir.KindConst, Const: ir.ConstValue{I64: 1}, ValTy: i64}
	argRef := ir.ValueNode{Kind: ir.KindSSAVar, Value: argID, ValTy: i64}

	body := []ir.Instruction{
		ir.Assign{
			Results:  []ir.ID{resultID},
			ResultTy: []ir.Type{i64},
			Op:       ir.BinOp{Kind: ir.Add},
			Operands: []ir.TreeNode{argRef, one},
		},
		ir.Return{Operands: []ir.TreeNode{ir.ValueNode{Kind: ir.KindSSAVar, Value: resultID, ValTy: i64}}},
	}

	fv.Blocks[entryID] = &ir.Block{
		Header: ir.Header{ID: entryID, Name: "entry"},
		Content: &ir.BlockContent{
			Args:   []ir.ID{argID},
			ArgTys: []ir.Type{i64},
			Body:   body,
		},
	}

	if err := m.DefineFuncVersion(fv); err != nil {
		return 0, err
	}
	if err := m.SetPrimordialThread(funcID, false, nil); err != nil {
		return 0, err
	}
	return funcID, nil
}
