// Package mcode is the architecture-neutral machine-code sequence
// produced by instruction selection and consumed by RegisterAllocation,
// PeepholeOptimization and CodeEmission.
//
// Grounded on original_source/src/compiler/machine_code.rs's
// MachineCode trait: an index-addressed instruction sequence queried by
// def/use sets, move/memory-operand classification, successor/
// predecessor indices and per-block index ranges, with in-place
// mutation via ReplaceReg/SetNop rather than rebuilding the sequence.
// Where the original models this as a trait object per architecture
// (one Rust impl per ISA backend), this rendition uses one concrete Reg-
// operand Instr shape shared by both pkg/isel/amd64 and pkg/isel/arm64
// — the teacher's own asm/mach packages instead model each opcode as a
// distinct Go struct (ADD, MOVZ, CMPi, ...), which is the right shape
// for a single fixed ISA's pretty-printer but would force RegisterAlloc
// and PeepholeOptimization to carry a type switch per architecture per
// opcode; collapsing to one generic Instr keeps those two passes ISA-
// agnostic, with the architecture-specific opcode vocabulary living only
// in each pkg/isel/<arch> package's mnemonic strings.
package mcode

import "github.com/muvm/muc/pkg/ir"

// Reg is either a virtual temp (by SSA/compiled-temp identity) or a
// physical machine register, discriminated by Virtual.
type Reg struct {
	Virtual bool
	ID      ir.ID  // valid when Virtual
	Phys    string // physical register name, valid when !Virtual
}

func VReg(id ir.ID) Reg       { return Reg{Virtual: true, ID: id} }
func PReg(name string) Reg    { return Reg{Virtual: false, Phys: name} }
func (r Reg) IsPhysical() bool { return !r.Virtual }

// String renders a physical register by its assembler name, or a
// virtual one as %v<id> — CodeEmission only ever sees the former, since
// RegisterAllocation replaces every virtual register before emission;
// the %v form exists so dumps taken before allocation stay readable.
func (r Reg) String() string {
	if r.IsPhysical() {
		return r.Phys
	}
	return "%v" + itoaID(r.ID)
}

func itoaID(id ir.ID) string {
	if id == 0 {
		return "0"
	}
	n := uint64(id)
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// Instr is one machine instruction: a mnemonic, its non-register operand
// text (CodeEmission prints the Defs registers, then the Uses registers,
// then Operands verbatim, comma-separated), and the metadata
// RegisterAllocation/PeepholeOptimization need without parsing the
// mnemonic.
type Instr struct {
	Mnemonic   string
	Defs       []Reg
	Uses       []Reg
	Operands   string // human/assembler-facing operand text, printed after the registers
	UsesMemory bool
	IsMove     bool     // true for register-to-register copies (coalescing candidates)
	Branch     bool     // true if this instruction can transfer control away from fallthrough
	Targets    []string // label names this instruction may branch to
	Call       bool
	Nop        bool // set by PeepholeOptimization instead of removing the slot, preserving indices
}

// Sequence is one function version's machine code: instructions in
// final order, a label->index map, and per-index successor/predecessor
// lists mirroring get_succs/get_preds.
type Sequence struct {
	Insts   []Instr
	Labels  map[string]int
	Succs   [][]int
	Preds   [][]int
	Blocks  []string   // block label in instruction order, parallel to block ranges
	Ranges  map[string][2]int // block label -> [start,end) index range
	LiveIn  map[string][]ir.ID
	LiveOut map[string][]ir.ID
}

func New() *Sequence {
	return &Sequence{
		Labels:  make(map[string]int),
		Ranges:  make(map[string][2]int),
		LiveIn:  make(map[string][]ir.ID),
		LiveOut: make(map[string][]ir.ID),
	}
}

func (s *Sequence) NumInsts() int { return len(s.Insts) }

func (s *Sequence) IsMove(i int) bool       { return s.Insts[i].IsMove && !s.Insts[i].Nop }
func (s *Sequence) UsesMem(i int) bool      { return s.Insts[i].UsesMemory }
func (s *Sequence) RegUses(i int) []Reg     { return s.Insts[i].Uses }
func (s *Sequence) RegDefines(i int) []Reg  { return s.Insts[i].Defs }

func (s *Sequence) BlockLiveIn(block string) ([]ir.ID, bool) {
	v, ok := s.LiveIn[block]
	return v, ok
}

func (s *Sequence) BlockLiveOut(block string) ([]ir.ID, bool) {
	v, ok := s.LiveOut[block]
	return v, ok
}

func (s *Sequence) SetBlockLiveIn(block string, set []ir.ID)  { s.LiveIn[block] = set }
func (s *Sequence) SetBlockLiveOut(block string, set []ir.ID) { s.LiveOut[block] = set }

func (s *Sequence) BlockRange(block string) ([2]int, bool) {
	r, ok := s.Ranges[block]
	return r, ok
}

// ReplaceReg substitutes every occurrence of from with to, in both defs
// and uses, across the whole sequence — used by the register allocator
// to apply a coalescing decision without rebuilding instruction structs
// one at a time.
func (s *Sequence) ReplaceReg(from, to Reg) {
	for i := range s.Insts {
		replaceInSlice(s.Insts[i].Defs, from, to)
		replaceInSlice(s.Insts[i].Uses, from, to)
	}
}

func replaceInSlice(regs []Reg, from, to Reg) {
	for i, r := range regs {
		if r == from {
			regs[i] = to
		}
	}
}

// SetNop marks index i as eliminated. Indices are never removed from
// Insts directly so that Labels/Succs/Preds/Ranges, all index-addressed,
// stay valid; CodeEmission skips Nop instructions when printing.
func (s *Sequence) SetNop(i int) { s.Insts[i].Nop = true }

// AppendBlock appends instructions belonging to one IR block, recording
// its index range and entry label.
func (s *Sequence) AppendBlock(label string, insts []Instr) {
	start := len(s.Insts)
	s.Labels[label] = start
	s.Insts = append(s.Insts, insts...)
	s.Blocks = append(s.Blocks, label)
	s.Ranges[label] = [2]int{start, len(s.Insts)}
}

// LinkCFG derives Succs/Preds for every non-Nop instruction: fallthrough
// to the next instruction unless Branch is set, plus a jump to each
// label in Targets resolved through Labels.
func (s *Sequence) LinkCFG() {
	s.Succs = make([][]int, len(s.Insts))
	s.Preds = make([][]int, len(s.Insts))
	for i, inst := range s.Insts {
		var succs []int
		for _, t := range inst.Targets {
			if idx, ok := s.Labels[t]; ok {
				succs = append(succs, idx)
			}
		}
		if !inst.Branch || len(inst.Targets) == 0 {
			if i+1 < len(s.Insts) {
				succs = append(succs, i+1)
			}
		}
		s.Succs[i] = succs
	}
	for i, succs := range s.Succs {
		for _, t := range succs {
			s.Preds[t] = append(s.Preds[t], i)
		}
	}
}
