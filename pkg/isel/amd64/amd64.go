// Package amd64 implements instruction selection for x86-64 (spec.md
// §4.7's second ISA target, dual-backend per the original's
// src/compiler/backend/arch/{aarch64,x86_64}).
//
// Grounded on other_examples' wazero wazevo amd64 backend (machine.go):
// a per-SSA-instruction lowering switch producing register-to-register
// ALU/load/store/call instructions, the AT&T-ish two-operand shape
// reproduced here via mcode.Instr's Defs/Uses/Operands fields instead of
// wazevo's own operand/instruction node types, since pkg/mcode already
// generalizes both ISA backends' instruction representation (see
// pkg/mcode's package doc). The recursive per-tree-node lowering
// structure otherwise mirrors pkg/isel/arm64's selectOperand/
// selectExprInto, which in turn mirrors the teacher's
// pkg/selection.SelectionContext.
package amd64

import (
	"fmt"

	"github.com/muvm/muc/pkg/cerr"
	"github.com/muvm/muc/pkg/ir"
	"github.com/muvm/muc/pkg/mcode"
	"github.com/muvm/muc/pkg/vm"
)

type Selector struct{}

func New() *Selector { return &Selector{} }

func (*Selector) Name() string { return "amd64" }

// AllocatableRegs excludes rsp and rbp (stack/frame pointers, owned by
// this backend's prologue/epilogue) from the sixteen general-purpose
// registers.
func (*Selector) AllocatableRegs() []string {
	return []string{
		"rax", "rbx", "rcx", "rdx", "rsi", "rdi",
		"r8", "r9", "r10", "r12", "r13", "r14", "r15",
	}
}

// ScratchRegs holds back r11 for spill-code insertion; it is
// caller-saved and never assigned a fixed role by this backend's
// calling convention.
func (*Selector) ScratchRegs() []string { return []string{"r11"} }

// callerSavedRegs is the System V AMD64 ABI's caller-saved set. Every
// call instruction defines these so the interference graph forbids
// allocating a value live across the call into any of them.
func callerSavedRegs() []string {
	return []string{"rax", "rcx", "rdx", "rsi", "rdi", "r8", "r9", "r10", "r11"}
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
		dst := mcode.VReg(resultID(in))
		return c.selectExprInto(in.Op, in.Operands, dst)
	case ir.Fence:
		return []mcode.Instr{{Mnemonic: "mfence"}}, nil
	case ir.Branch1:
		return []mcode.Instr{{Mnemonic: "jmp", Branch: true, Targets: []string{c.labelOf(in.Dest.Target)}}}, nil
	case ir.Branch2:
		cond, out, err := c.selectOperand(in.Cond)
		if err != nil {
			return nil, err
		}
		out = append(out, mcode.Instr{Mnemonic: "test", Uses: []mcode.Reg{cond, cond}})
		out = append(out, mcode.Instr{Mnemonic: "jnz", Branch: true, Targets: []string{c.labelOf(in.TrueDest.Target)}})
		out = append(out, mcode.Instr{Mnemonic: "jmp", Branch: true, Targets: []string{c.labelOf(in.FalseDest.Target)}})
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
		return []mcode.Instr{{Mnemonic: "call", Defs: callerSavedRegSlice(), Operands: "mu_thread_exit", Call: true}}, nil
	case ir.Throw:
		reg, o, err := c.selectOperand(in.Operand)
		if err != nil {
			return nil, err
		}
		o = append(o, mcode.Instr{Mnemonic: "call", Defs: callerSavedRegSlice(), Uses: []mcode.Reg{reg}, Operands: "mu_throw", Call: true})
		return o, nil
	case ir.Call:
		return c.selectCall(in)
	case ir.Switch, ir.Watchpoint, ir.WPBranch, ir.SwapStack, ir.TailCall, ir.ExceptionalWrapper:
		return nil, cerr.New(cerr.UnsupportedOp, c.fv.Name, "amd64 selector: %T not yet lowered", instr)
	default:
		return nil, cerr.New(cerr.UnsupportedOp, c.fv.Name, "amd64 selector: unknown instruction %T", instr)
	}
}

func retRegName(i int) string {
	names := []string{"rax", "rdx"}
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("r%d", 8+i)
}

func argRegName(i int) string {
	names := []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("stack+%d", (i-len(names))*8)
}

func resultID(a ir.Assign) ir.ID {
	if len(a.Results) > 0 {
		return a.Results[0]
	}
	return 0
}

func (c *ctx) selectExprInto(op ir.Expr, operands []ir.TreeNode, dst mcode.Reg) ([]mcode.Instr, error) {
	switch o := op.(type) {
	case ir.Move:
		src, out, err := c.selectOperand(operands[0])
		if err != nil {
			return nil, err
		}
		return append(out, mcode.Instr{Mnemonic: "mov", Defs: []mcode.Reg{dst}, Uses: []mcode.Reg{src}, IsMove: true}), nil
	case ir.BinOp:
		lhs, out1, err := c.selectOperand(operands[0])
		if err != nil {
			return nil, err
		}
		rhs, out2, err := c.selectOperand(operands[1])
		if err != nil {
			return nil, err
		}
		out := append(out1, out2...)
		out = append(out, mcode.Instr{Mnemonic: "mov", Defs: []mcode.Reg{dst}, Uses: []mcode.Reg{lhs}, IsMove: true})
		return append(out, mcode.Instr{Mnemonic: binMnemonic(o.Kind), Defs: []mcode.Reg{dst}, Uses: []mcode.Reg{dst, rhs}}), nil
	case ir.CmpOp:
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
		return append(out, mcode.Instr{Mnemonic: "set" + cmpCond(o.Kind), Defs: []mcode.Reg{dst}}), nil
	case ir.ConvOp:
		src, out, err := c.selectOperand(operands[0])
		if err != nil {
			return nil, err
		}
		return append(out, mcode.Instr{Mnemonic: convMnemonic(o.Kind), Defs: []mcode.Reg{dst}, Uses: []mcode.Reg{src}}), nil
	case ir.ConstExpr:
		return []mcode.Instr{{Mnemonic: "mov", Defs: []mcode.Reg{dst}, Operands: fmt.Sprintf("$%d", o.Value.I64)}}, nil
	case ir.Load:
		addr, out, err := c.selectOperand(operands[0])
		if err != nil {
			return nil, err
		}
		return append(out, mcode.Instr{Mnemonic: "mov", Defs: []mcode.Reg{dst}, Uses: []mcode.Reg{addr}, UsesMemory: true}), nil
	case ir.GetFieldIRef, ir.GetElemIRef, ir.ShiftIRef, ir.GetVarPartIRef, ir.GetIRef:
		base, out, err := c.selectOperand(operands[0])
		if err != nil {
			return nil, err
		}
		return append(out, mcode.Instr{Mnemonic: "lea", Defs: []mcode.Reg{dst}, Uses: []mcode.Reg{base}}), nil
	case ir.New, ir.Alloca, ir.NewHybrid, ir.AllocaHybrid:
		return []mcode.Instr{{Mnemonic: "call", Defs: append([]mcode.Reg{dst}, callerSavedRegSlice()...), Operands: allocSymbol(o), Call: true}}, nil
	default:
		return nil, cerr.New(cerr.UnsupportedOp, c.fv.Name, "amd64 selector: unknown expr %T", op)
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

func binMnemonic(k ir.BinOpKind) string {
	names := map[ir.BinOpKind]string{
		ir.Add: "add", ir.Sub: "sub", ir.Mul: "imul", ir.Sdiv: "idiv", ir.Udiv: "div",
		ir.Srem: "idiv", ir.Urem: "div", ir.Shl: "shl", ir.Lshr: "shr", ir.Ashr: "sar",
		ir.And: "and", ir.Or: "or", ir.Xor: "xor",
		ir.FAdd: "addsd", ir.FSub: "subsd", ir.FMul: "mulsd", ir.FDiv: "divsd",
	}
	if n, ok := names[k]; ok {
		return n
	}
	return "ud2"
}

func cmpCond(k ir.CmpOpKind) string {
	switch k {
	case ir.CmpEQ, ir.CmpFOEQ:
		return "e"
	case ir.CmpNE, ir.CmpFONE:
		return "ne"
	case ir.CmpSGE:
		return "ge"
	case ir.CmpSGT:
		return "g"
	case ir.CmpSLE:
		return "le"
	case ir.CmpSLT:
		return "l"
	case ir.CmpUGE:
		return "ae"
	case ir.CmpUGT:
		return "a"
	case ir.CmpULE:
		return "be"
	case ir.CmpULT:
		return "b"
	default:
		return "e"
	}
}

func convMnemonic(k ir.ConvOpKind) string {
	switch k {
	case ir.Trunc:
		return "mov"
	case ir.Zext:
		return "movzx"
	case ir.Sext:
		return "movsx"
	case ir.FPTrunc, ir.FPExt:
		return "cvtsd2ss"
	case ir.FPToUI, ir.FPToSI:
		return "cvttsd2si"
	case ir.UIToFP, ir.SIToFP:
		return "cvtsi2sd"
	default:
		return "mov"
	}
}

func (c *ctx) selectOperand(n ir.TreeNode) (mcode.Reg, []mcode.Instr, error) {
	switch v := n.(type) {
	case ir.ValueNode:
		switch v.Kind {
		case ir.KindSSAVar:
			return mcode.VReg(v.Value), nil, nil
		case ir.KindGlobal:
			return mcode.VReg(v.Value), []mcode.Instr{{Mnemonic: "lea", Defs: []mcode.Reg{mcode.VReg(v.Value)}, Operands: fmt.Sprintf("sym(%d)(%%rip)", v.Value)}}, nil
		case ir.KindMemLoc:
			return mcode.VReg(v.MemLoc.Base), nil, nil
		default:
			id, err := c.m.NewInternalID()
			if err != nil {
				return mcode.Reg{}, nil, err
			}
			fresh := mcode.VReg(id)
			return fresh, []mcode.Instr{{Mnemonic: "mov", Defs: []mcode.Reg{fresh}, Operands: fmt.Sprintf("$%d", v.Const.I64)}}, nil
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
	out = append(out, mcode.Instr{Mnemonic: "call", Defs: callerSavedRegSlice(), Uses: []mcode.Reg{callee}, Call: true})
	for i, r := range call.Results {
		out = append(out, mcode.Instr{Mnemonic: "mov", Defs: []mcode.Reg{mcode.VReg(r)}, Uses: []mcode.Reg{mcode.PReg(retRegName(i))}, IsMove: true})
	}
	out = append(out, mcode.Instr{Mnemonic: "jmp", Branch: true, Targets: []string{c.labelOf(call.Resumption.Normal.Target)}})
	return out, nil
}
