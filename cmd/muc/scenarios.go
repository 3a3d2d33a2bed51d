package main

import (
	"github.com/muvm/muc/pkg/ir"
	"github.com/muvm/muc/pkg/vm"
)

// addAndCatchIDs names the identities a caller needs to inspect the
// compiled result of buildAddAndCatchBundle: where the argument lives,
// and which blocks the call's two destinations land on.
type addAndCatchIDs struct {
	Version ir.ID
	Arg     ir.ID
	Normal  ir.ID
	Except  ir.ID
}

// buildAddAndCatchBundle registers add_and_catch(i64) -> i64, which
// calls an external identity(i64) -> i64 foreign function and, on
// normal return, adds its own argument to the call's result; on the
// callee's exception edge it returns -1. The argument stays live
// across the call, so this is the bundle a caller-saved-clobber
// regression belongs against: if the call instruction did not define
// the ABI's caller-saved registers, the allocator would be free to
// color the argument into one of them and the callee would stomp it.
func buildAddAndCatchBundle(m *vm.VM) (addAndCatchIDs, error) {
	i64 := ir.Int{Bits: 64}

	identitySigID, err := m.DeclareFuncSig("identity_sig", []ir.Type{i64}, []ir.Type{i64})
	if err != nil {
		return addAndCatchIDs{}, err
	}
	identityFuncID, err := m.DeclareFunc("identity", identitySigID)
	if err != nil {
		return addAndCatchIDs{}, err
	}

	sigID, err := m.DeclareFuncSig("add_and_catch_sig", []ir.Type{i64}, []ir.Type{i64})
	if err != nil {
		return addAndCatchIDs{}, err
	}
	funcID, err := m.DeclareFunc("add_and_catch", sigID)
	if err != nil {
		return addAndCatchIDs{}, err
	}

	verID, err := m.NewInternalID()
	if err != nil {
		return addAndCatchIDs{}, err
	}
	entryID, err := m.NewInternalID()
	if err != nil {
		return addAndCatchIDs{}, err
	}
	normalID, err := m.NewInternalID()
	if err != nil {
		return addAndCatchIDs{}, err
	}
	excID, err := m.NewInternalID()
	if err != nil {
		return addAndCatchIDs{}, err
	}
	argID, err := m.NewInternalID()
	if err != nil {
		return addAndCatchIDs{}, err
	}
	callResultID, err := m.NewInternalID()
	if err != nil {
		return addAndCatchIDs{}, err
	}
	sumID, err := m.NewInternalID()
	if err != nil {
		return addAndCatchIDs{}, err
	}

	fv := ir.NewFuncVersion(verID, "add_and_catch_v1", funcID)
	fv.Entry = entryID
	fv.Ctx.Declare(argID, i64)
	fv.Ctx.Declare(callResultID, i64)
	fv.Ctx.Declare(sumID, i64)

	argRef := ir.ValueNode{Kind: ir.KindSSAVar, Value: argID, ValTy: i64}
	identitySig := &ir.Sig{Args: []ir.Type{i64}, Returns: []ir.Type{i64}}
	callee := ir.ValueNode{Kind: ir.KindGlobal, Value: identityFuncID, ValTy: ir.FuncRef{Sig: identitySig}}

	fv.Blocks[entryID] = &ir.Block{
		Header: ir.Header{ID: entryID, Name: "entry"},
		Content: &ir.BlockContent{
			Args:   []ir.ID{argID},
			ArgTys: []ir.Type{i64},
			Body: []ir.Instruction{
				ir.Call{
					Results:  []ir.ID{callResultID},
					ResultTy: []ir.Type{i64},
					Callee:   callee,
					Sig:      identitySig,
					Conv:     ir.CallConvForeignC,
					Args:     []ir.TreeNode{argRef},
					HasExn:   true,
					Resumption: ir.ResumptionData{
						Normal:    ir.Destination{Target: normalID},
						Exception: ir.Destination{Target: excID},
					},
				},
			},
		},
	}

	fv.Blocks[normalID] = &ir.Block{
		Header: ir.Header{ID: normalID, Name: "normal"},
		Content: &ir.BlockContent{
			Body: []ir.Instruction{
				ir.Assign{
					Results:  []ir.ID{sumID},
					ResultTy: []ir.Type{i64},
					Op:       ir.BinOp{Kind: ir.Add},
					Operands: []ir.TreeNode{
						ir.ValueNode{Kind: ir.KindSSAVar, Value: callResultID, ValTy: i64},
						argRef,
					},
				},
				ir.Return{Operands: []ir.TreeNode{ir.ValueNode{Kind: ir.KindSSAVar, Value: sumID, ValTy: i64}}},
			},
		},
	}

	fv.Blocks[excID] = &ir.Block{
		Header: ir.Header{ID: excID, Name: "exception"},
		Content: &ir.BlockContent{
			Body: []ir.Instruction{
				ir.Return{Operands: []ir.TreeNode{ir.ValueNode{Kind: ir.KindConst, Const: ir.ConstValue{I64: -1}, ValTy: i64}}},
			},
		},
	}

	if err := m.DefineFuncVersion(fv); err != nil {
		return addAndCatchIDs{}, err
	}
	return addAndCatchIDs{Version: verID, Arg: argID, Normal: normalID, Except: excID}, nil
}

// throwCatchIDs names the identities a caller needs to inspect the
// compiled result of buildThrowCatchBundle.
type throwCatchIDs struct {
	Version ir.ID
	Throw   ir.ID
	Return  ir.ID
}

// buildThrowCatchBundle registers throw_catch(i64) -> i64, which
// throws its own argument as an exception when it is nonzero and
// otherwise returns it unchanged, exercising ir.Throw's "bl/call
// mu_throw" lowering alongside a plain two-way branch.
func buildThrowCatchBundle(m *vm.VM) (throwCatchIDs, error) {
	i64 := ir.Int{Bits: 64}

	sigID, err := m.DeclareFuncSig("throw_catch_sig", []ir.Type{i64}, []ir.Type{i64})
	if err != nil {
		return throwCatchIDs{}, err
	}
	funcID, err := m.DeclareFunc("throw_catch", sigID)
	if err != nil {
		return throwCatchIDs{}, err
	}

	verID, err := m.NewInternalID()
	if err != nil {
		return throwCatchIDs{}, err
	}
	entryID, err := m.NewInternalID()
	if err != nil {
		return throwCatchIDs{}, err
	}
	throwID, err := m.NewInternalID()
	if err != nil {
		return throwCatchIDs{}, err
	}
	returnID, err := m.NewInternalID()
	if err != nil {
		return throwCatchIDs{}, err
	}
	argID, err := m.NewInternalID()
	if err != nil {
		return throwCatchIDs{}, err
	}

	fv := ir.NewFuncVersion(verID, "throw_catch_v1", funcID)
	fv.Entry = entryID
	fv.Ctx.Declare(argID, i64)

	argRef := ir.ValueNode{Kind: ir.KindSSAVar, Value: argID, ValTy: i64}
	zero := ir.ValueNode{Kind: ir.KindConst, Const: ir.ConstValue{I64: 0}, ValTy: i64}

	fv.Blocks[entryID] = &ir.Block{
		Header: ir.Header{ID: entryID, Name: "entry"},
		Content: &ir.BlockContent{
			Args:   []ir.ID{argID},
			ArgTys: []ir.Type{i64},
			Body: []ir.Instruction{
				ir.Branch2{
					Cond:      ir.ExprNode{Op: ir.CmpOp{Kind: ir.CmpNE}, Operands: []ir.TreeNode{argRef, zero}},
					TrueDest:  ir.Destination{Target: throwID},
					FalseDest: ir.Destination{Target: returnID},
				},
			},
		},
	}

	fv.Blocks[throwID] = &ir.Block{
		Header: ir.Header{ID: throwID, Name: "throw"},
		Content: &ir.BlockContent{
			Body: []ir.Instruction{ir.Throw{Operand: argRef}},
		},
	}

	fv.Blocks[returnID] = &ir.Block{
		Header: ir.Header{ID: returnID, Name: "return"},
		Content: &ir.BlockContent{
			Body: []ir.Instruction{ir.Return{Operands: []ir.TreeNode{argRef}}},
		},
	}

	if err := m.DefineFuncVersion(fv); err != nil {
		return throwCatchIDs{}, err
	}
	return throwCatchIDs{Version: verID, Throw: throwID, Return: returnID}, nil
}
