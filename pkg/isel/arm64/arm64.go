// Package arm64 implements instruction selection for AArch64
// (spec.md §4.7), including MOVZ/MOVN/MOVK immediate materialization and
// the ARMv8 logical-immediate fast path for bitwise operators.
//
// Grounded on the teacher's pkg/asmgen/transform.go loadIntConstant
// (the MOVi/MOVN/MOVZ+MOVK selection ladder reproduced in
// selectIntConstant below) and pkg/selection's recursive per-node
// translation shape, generalized from cminor.Expr to ir.TreeNode and
// from a fixed cminorsel target vocabulary to mcode.Instr.
package arm64

import (
	"fmt"

	"github.com/muvm/muc/pkg/cerr"
	"github.com/muvm/muc/pkg/ir"
	"github.com/muvm/muc/pkg/mcode"
	"github.com/muvm/muc/pkg/vm"
)

type Selector struct{}

func New() *Selector { return &Selector{} }

func (*Selector) Name() string { return "arm64" }

// AllocatableRegs is AArch64's general-purpose caller/callee-saved set,
// excluding x18 (platform register), x29 (frame pointer), x30 (link
// register) and x31/sp, all reserved by the calling convention this
// backend's prologue/epilogue relies on.
func (*Selector) AllocatableRegs() []string {
	return []string{
		"x0", "x1", "x2", "x3", "x4", "x5", "x6", "x7",
		"x8", "x9", "x10", "x11", "x12", "x13", "x14", "x15",
		"x19", "x20", "x21", "x22", "x23", "x24", "x25", "x26", "x27", "x28",
	}
}

// ScratchRegs holds back x16/x17 (the AAPCS64 intra-procedure-call
// temporaries) for spill-code insertion, since those are never in
// AllocatableRegs and the runtime/linker expect them clobbered freely.
func (*Selector) ScratchRegs() []string { return []string{"x16", "x17"} }

// callerSavedRegs is AAPCS64's full caller-saved set, x0-x17. Every
// call instruction defines these so the interference graph forbids
// allocating a value live across the call into any of them.
func callerSavedRegs() []string {
	return []string{
		"x0", "x1", "x2", "x3", "x4", "x5", "x6", "x7",
		"x8", "x9", "x10", "x11", "x12", "x13", "x14", "x15", "x16", "x17",
	}
}

func callerSavedRegSlice() []mcode.Reg {
	names := callerSavedRegs()
	out := make([]mcode.Reg, len(names))
	for i, name := range names {
		out[i] = mcode.PReg(name)
	}
	return out
}

type ctx struct {
	m       *vm.VM
	fv      *ir.FuncVersion
	seq     *mcode.Sequence
	labelOf func(ir.ID) string
}

func (s *Selector) Select(m *vm.VM, fv *ir.FuncVersion) (*mcode.Sequence, error) {
	c := &ctx{m: m, fv: fv, seq: mcode.New(), labelOf: func(id ir.ID) string { return fmt.Sprintf("%s.L%d", fv.Name, id) }}
	for _, id := range fv.OrderedBlockIDs() {
		blk := fv.Block(id)
		if blk.Content == nil {
			continue
		}
		var insts []mcode.Instr
		for _, instr := range blk.Content.Body {
			out, err := c.selectInstr(instr)
			if err != nil {
				return nil, err
			}
			insts = append(insts, out...)
		}
		c.seq.AppendBlock(c.labelOf(id), insts)
	}
	c.seq.LinkCFG()
	return c.seq, nil
}

func (c *ctx) selectInstr(instr ir.Instruction) ([]mcode.Instr, error) {
	switch in := instr.(type) {
	case ir.Assign:
		return c.selectAssign(in)
	case ir.Fence:
		return []mcode.Instr{{Mnemonic: "dmb", Operands: fenceOperand(in.Order)}}, nil
	case ir.Branch1:
		return []mcode.Instr{{Mnemonic: "b", Branch: true, Targets: []string{c.labelOf(in.Dest.Target)}}}, nil
	case ir.Branch2:
		var out []mcode.Instr
		cond, o, err := c.selectOperand(in.Cond)
		if err != nil {
			return nil, err
		}
		out = append(out, o...)
		out = append(out, mcode.Instr{Mnemonic: "cbnz", Uses: []mcode.Reg{cond}, Branch: true, Targets: []string{c.labelOf(in.TrueDest.Target)}})
		out = append(out, mcode.Instr{Mnemonic: "b", Branch: true, Targets: []string{c.labelOf(in.FalseDest.Target)}})
		return out, nil
	case ir.Return:
		var out []mcode.Instr
		for i, op := range in.Operands {
			reg, o, err := c.selectOperand(op)
			if err != nil {
				return nil, err
			}
			out = append(out, o...)
			out = append(out, mcode.Instr{Mnemonic: "mov", Defs: []mcode.Reg{mcode.PReg(retRegName(i))}, Uses: []mcode.Reg{reg}, IsMove: true})
		}
		out = append(out, mcode.Instr{Mnemonic: "ret", Branch: true})
		return out, nil
	case ir.ThreadExit:
		return []mcode.Instr{{Mnemonic: "bl", Defs: callerSavedRegSlice(), Operands: "mu_thread_exit", Call: true}}, nil
	case ir.Throw:
		reg, o, err := c.selectOperand(in.Operand)
		if err != nil {
			return nil, err
		}
		o = append(o, mcode.Instr{Mnemonic: "bl", Defs: callerSavedRegSlice(), Uses: []mcode.Reg{reg}, Operands: "mu_throw", Call: true})
		return o, nil
	case ir.Call:
		return c.selectCall(in)
	case ir.Switch, ir.Watchpoint, ir.WPBranch, ir.SwapStack, ir.TailCall, ir.ExceptionalWrapper:
		return nil, cerr.New(cerr.UnsupportedOp, c.fv.Name, "arm64 selector: %T not yet lowered", instr)
	default:
		return nil, cerr.New(cerr.UnsupportedOp, c.fv.Name, "arm64 selector: unknown instruction %T", instr)
	}
}

func retRegName(i int) string {
	if i == 0 {
		return "x0"
	}
	return fmt.Sprintf("x%d", i)
}

func fenceOperand(o ir.MemOrd) string {
	if o.IsAtomic() {
		return "ish"
	}
	return "ishst"
}

func (c *ctx) selectAssign(a ir.Assign) ([]mcode.Instr, error) {
	dst := mcode.VReg(resultID(a))
	out, err := c.selectExprInto(a.Op, a.Operands, dst)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func resultID(a ir.Assign) ir.ID {
	if len(a.Results) > 0 {
		return a.Results[0]
	}
	return 0
}

// selectExprInto lowers op/operands, writing the final value into dst.
func (c *ctx) selectExprInto(op ir.Expr, operands []ir.TreeNode, dst mcode.Reg) ([]mcode.Instr, error) {
	switch o := op.(type) {
	case ir.Move:
		src, out, err := c.selectOperand(operands[0])
		if err != nil {
			return nil, err
		}
		return append(out, mcode.Instr{Mnemonic: "mov", Defs: []mcode.Reg{dst}, Uses: []mcode.Reg{src}, IsMove: true}), nil
	case ir.BinOp:
		return c.selectBinOp(o, operands, dst)
	case ir.CmpOp:
		return c.selectCmpOp(o, operands, dst)
	case ir.ConvOp:
		src, out, err := c.selectOperand(operands[0])
		if err != nil {
			return nil, err
		}
		return append(out, mcode.Instr{Mnemonic: convMnemonic(o.Kind), Defs: []mcode.Reg{dst}, Uses: []mcode.Reg{src}}), nil
	case ir.ConstExpr:
		return c.selectIntConstant(o.Value.I64, dst, true), nil
	case ir.Load:
		addr, out, err := c.selectOperand(operands[0])
		if err != nil {
			return nil, err
		}
		return append(out, mcode.Instr{Mnemonic: "ldr", Defs: []mcode.Reg{dst}, Uses: []mcode.Reg{addr}, UsesMemory: true}), nil
	case ir.GetFieldIRef, ir.GetElemIRef, ir.ShiftIRef, ir.GetVarPartIRef, ir.GetIRef:
		base, out, err := c.selectOperand(operands[0])
		if err != nil {
			return nil, err
		}
		return append(out, mcode.Instr{Mnemonic: "add", Defs: []mcode.Reg{dst}, Uses: []mcode.Reg{base}}), nil
	case ir.New, ir.Alloca, ir.NewHybrid, ir.AllocaHybrid:
		return []mcode.Instr{{Mnemonic: "bl", Defs: append([]mcode.Reg{dst}, callerSavedRegSlice()...), Operands: allocSymbol(o), Call: true}}, nil
	case ir.CmpXchg, ir.AtomicRMW, ir.NewThread, ir.NewStack, ir.FrameCursorOp:
		return nil, cerr.New(cerr.UnsupportedOp, c.fv.Name, "arm64 selector: %T not yet lowered", op)
	default:
		return nil, cerr.New(cerr.UnsupportedOp, c.fv.Name, "arm64 selector: unknown expr %T", op)
	}
}

func allocSymbol(op ir.Expr) string {
	switch op.(type) {
	case ir.New:
		return "mu_new"
	case ir.Alloca:
		return "mu_alloca"
	case ir.NewHybrid:
		return "mu_new_hybrid"
	default:
		return "mu_alloca_hybrid"
	}
}

func convMnemonic(k ir.ConvOpKind) string {
	switch k {
	case ir.Trunc:
		return "uxtw"
	case ir.Zext:
		return "uxtw"
	case ir.Sext:
		return "sxtw"
	case ir.FPTrunc:
		return "fcvt"
	case ir.FPExt:
		return "fcvt"
	case ir.FPToUI:
		return "fcvtzu"
	case ir.FPToSI:
		return "fcvtzs"
	case ir.UIToFP:
		return "ucvtf"
	case ir.SIToFP:
		return "scvtf"
	default:
		return "mov"
	}
}

func (c *ctx) selectBinOp(o ir.BinOp, operands []ir.TreeNode, dst mcode.Reg) ([]mcode.Instr, error) {
	lhs, out1, err := c.selectOperand(operands[0])
	if err != nil {
		return nil, err
	}
	rhs, out2, err := c.selectOperand(operands[1])
	if err != nil {
		return nil, err
	}
	out := append(out1, out2...)
	mnem := binMnemonic(o.Kind)
	if isLogical(o.Kind) {
		if imm, isImm, ok := constOperand(operands[1]); isImm && ok {
			if _, _, _, okEnc := EncodeLogicalImm(uint64(imm), 64); okEnc {
				return append(out, mcode.Instr{Mnemonic: mnem, Defs: []mcode.Reg{dst}, Uses: []mcode.Reg{lhs}, Operands: fmt.Sprintf("#0x%x", imm)}), nil
			}
		}
	}
	return append(out, mcode.Instr{Mnemonic: mnem, Defs: []mcode.Reg{dst}, Uses: []mcode.Reg{lhs, rhs}}), nil
}

func isLogical(k ir.BinOpKind) bool { return k == ir.And || k == ir.Or || k == ir.Xor }

func constOperand(n ir.TreeNode) (int64, bool, bool) {
	v, ok := n.(ir.ValueNode)
	if !ok || v.Kind != ir.KindConst || v.Const.IsFloat || v.Const.IsDouble {
		return 0, false, false
	}
	return v.Const.I64, true, true
}

func binMnemonic(k ir.BinOpKind) string {
	names := map[ir.BinOpKind]string{
		ir.Add: "add", ir.Sub: "sub", ir.Mul: "mul", ir.Sdiv: "sdiv", ir.Udiv: "udiv",
		ir.Srem: "sdiv", ir.Urem: "udiv", ir.Shl: "lsl", ir.Lshr: "lsr", ir.Ashr: "asr",
		ir.And: "and", ir.Or: "orr", ir.Xor: "eor",
		ir.FAdd: "fadd", ir.FSub: "fsub", ir.FMul: "fmul", ir.FDiv: "fdiv",
	}
	if n, ok := names[k]; ok {
		return n
	}
	return "udf"
}

func (c *ctx) selectCmpOp(o ir.CmpOp, operands []ir.TreeNode, dst mcode.Reg) ([]mcode.Instr, error) {
	lhs, out1, err := c.selectOperand(operands[0])
	if err != nil {
		return nil, err
	}
	rhs, out2, err := c.selectOperand(operands[1])
	if err != nil {
		return nil, err
	}
	out := append(out1, out2...)
	out = append(out, mcode.Instr{Mnemonic: "cmp", Uses: []mcode.Reg{lhs, rhs}})
	return append(out, mcode.Instr{Mnemonic: "cset", Defs: []mcode.Reg{dst}, Operands: cmpCond(o.Kind)}), nil
}

func cmpCond(k ir.CmpOpKind) string {
	switch k {
	case ir.CmpEQ, ir.CmpFOEQ:
		return "eq"
	case ir.CmpNE, ir.CmpFONE:
		return "ne"
	case ir.CmpSGE:
		return "ge"
	case ir.CmpSGT:
		return "gt"
	case ir.CmpSLE:
		return "le"
	case ir.CmpSLT:
		return "lt"
	case ir.CmpUGE:
		return "hs"
	case ir.CmpUGT:
		return "hi"
	case ir.CmpULE:
		return "ls"
	case ir.CmpULT:
		return "lo"
	default:
		return "al"
	}
}

// selectOperand resolves a tree node to a register, emitting whatever
// instructions are needed to materialize it (constants, folded
// subtrees from TreeGen).
func (c *ctx) selectOperand(n ir.TreeNode) (mcode.Reg, []mcode.Instr, error) {
	switch v := n.(type) {
	case ir.ValueNode:
		switch v.Kind {
		case ir.KindSSAVar:
			return mcode.VReg(v.Value), nil, nil
		case ir.KindGlobal:
			return mcode.VReg(v.Value), []mcode.Instr{{Mnemonic: "adrp", Defs: []mcode.Reg{mcode.VReg(v.Value)}, Operands: fmt.Sprintf("=%d", v.Value)}}, nil
		case ir.KindMemLoc:
			return mcode.VReg(v.MemLoc.Base), nil, nil
		default:
			id, err := c.m.NewInternalID()
			if err != nil {
				return mcode.Reg{}, nil, err
			}
			fresh := mcode.VReg(id)
			return fresh, c.selectIntConstant(v.Const.I64, fresh, !v.Const.IsFloat && !v.Const.IsDouble), nil
		}
	case ir.ExprNode:
		id, err := c.m.NewInternalID()
		if err != nil {
			return mcode.Reg{}, nil, err
		}
		fresh := mcode.VReg(id)
		out, err := c.selectExprInto(v.Op, v.Operands, fresh)
		return fresh, out, err
	default:
		return mcode.Reg{}, nil, cerr.New(cerr.IRMalformed, c.fv.Name, "unrecognized tree node %T", n)
	}
}

// selectIntConstant materializes val into dst, preferring the shortest
// ARM64 sequence: MOVi for 0..65535, MOVN for small negatives, otherwise
// a MOVZ/MOVK ladder one 16-bit chunk at a time.
//
// Direct structural port of the teacher's loadIntConstant
// (pkg/asmgen/transform.go).
func (c *ctx) selectIntConstant(val int64, dst mcode.Reg, is64 bool) []mcode.Instr {
	if val >= 0 && val <= 65535 {
		return []mcode.Instr{{Mnemonic: "movz", Defs: []mcode.Reg{dst}, Operands: fmt.Sprintf("#%d", val)}}
	}
	if val < 0 && val >= -65536 {
		return []mcode.Instr{{Mnemonic: "movn", Defs: []mcode.Reg{dst}, Operands: fmt.Sprintf("#%d", ^val)}}
	}
	var out []mcode.Instr
	out = append(out, mcode.Instr{Mnemonic: "movz", Defs: []mcode.Reg{dst}, Operands: fmt.Sprintf("#%d", val&0xFFFF)})
	if (val>>16)&0xFFFF != 0 {
		out = append(out, mcode.Instr{Mnemonic: "movk", Defs: []mcode.Reg{dst}, Uses: []mcode.Reg{dst}, Operands: fmt.Sprintf("#%d, lsl #16", (val>>16)&0xFFFF)})
	}
	if is64 {
		if (val>>32)&0xFFFF != 0 {
			out = append(out, mcode.Instr{Mnemonic: "movk", Defs: []mcode.Reg{dst}, Uses: []mcode.Reg{dst}, Operands: fmt.Sprintf("#%d, lsl #32", (val>>32)&0xFFFF)})
		}
		if (val>>48)&0xFFFF != 0 {
			out = append(out, mcode.Instr{Mnemonic: "movk", Defs: []mcode.Reg{dst}, Uses: []mcode.Reg{dst}, Operands: fmt.Sprintf("#%d, lsl #48", (val>>48)&0xFFFF)})
		}
	}
	return out
}

func (c *ctx) selectCall(call ir.Call) ([]mcode.Instr, error) {
	var out []mcode.Instr
	for i, arg := range call.Args {
		reg, o, err := c.selectOperand(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, o...)
		out = append(out, mcode.Instr{Mnemonic: "mov", Defs: []mcode.Reg{mcode.PReg(argRegName(i))}, Uses: []mcode.Reg{reg}, IsMove: true})
	}
	callee, o, err := c.selectOperand(call.Callee)
	if err != nil {
		return nil, err
	}
	out = append(out, o...)
	out = append(out, mcode.Instr{Mnemonic: "blr", Defs: callerSavedRegSlice(), Uses: []mcode.Reg{callee}, Call: true, Branch: true,
		Targets: []string{c.labelOf(call.Resumption.Normal.Target)}})
	for i, r := range call.Results {
		out = append(out, mcode.Instr{Mnemonic: "mov", Defs: []mcode.Reg{mcode.VReg(r)}, Uses: []mcode.Reg{mcode.PReg(retRegName(i))}, IsMove: true})
	}
	out = append(out, mcode.Instr{Mnemonic: "b", Branch: true, Targets: []string{c.labelOf(call.Resumption.Normal.Target)}})
	return out, nil
}

func argRegName(i int) string { return fmt.Sprintf("x%d", i) }
