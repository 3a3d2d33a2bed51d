package ir

// SSAVarEntry records everything the pipeline tracks about one SSA
// identity in a function version's context: its static type, its use
// count (filled by DefUse), and, after TreeGen, the defining expression
// if that definition was folded into a consumer's tree rather than left
// as a standalone body instruction.
type SSAVarEntry struct {
	Ty       Type
	Uses     int
	Folded   bool
	FoldedOp Expr
}

// FuncVerContext is the function-version-wide table mapping every SSA
// value identity to its SSAVarEntry. The context owns these entries
// outright; tree nodes elsewhere hold shared (by-ID) references to the
// values, never a private copy, so a folded expression can appear under
// several consumers without cloning its subtree (design note "Shared vs
// unique ownership").
type FuncVerContext struct {
	Vars map[ID]*SSAVarEntry
}

// NewFuncVerContext returns an empty context.
func NewFuncVerContext() *FuncVerContext {
	return &FuncVerContext{Vars: make(map[ID]*SSAVarEntry)}
}

// Declare registers a fresh SSA identity with its type, zero uses.
func (c *FuncVerContext) Declare(id ID, ty Type) {
	c.Vars[id] = &SSAVarEntry{Ty: ty}
}

// Get returns the entry for id, or nil if undeclared.
func (c *FuncVerContext) Get(id ID) *SSAVarEntry { return c.Vars[id] }

// FuncVersion is a concrete IR body: a block map keyed by block
// identity, an entry-block identity, and the function context.
type FuncVersion struct {
	Header
	OwnerFunc ID
	Blocks    map[ID]*Block
	Entry     ID
	Ctx       *FuncVerContext

	// BlockTrace is the linear block ordering TraceGen produces
	// (spec.md §4.6); nil until that pass runs.
	BlockTrace []ID
}

// NewFuncVersion returns an empty version owned by fn.
func NewFuncVersion(id ID, name string, fn ID) *FuncVersion {
	return &FuncVersion{
		Header:    Header{ID: id, Name: name},
		OwnerFunc: fn,
		Blocks:    make(map[ID]*Block),
		Ctx:       NewFuncVerContext(),
	}
}

// Block looks up a block by identity.
func (v *FuncVersion) Block(id ID) *Block { return v.Blocks[id] }

// EntryBlock returns the version's entry block.
func (v *FuncVersion) EntryBlock() *Block { return v.Blocks[v.Entry] }

// OrderedBlockIDs returns block identities in BlockTrace order if
// available, else in ascending numeric order (a stable fallback used
// before TraceGen has run, e.g. by diagnostic dumps).
func (v *FuncVersion) OrderedBlockIDs() []ID {
	if len(v.BlockTrace) > 0 {
		return v.BlockTrace
	}
	ids := make([]ID, 0, len(v.Blocks))
	for id := range v.Blocks {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

func sortIDs(ids []ID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

// Function is a named, signed declaration; it may own several versions
// (for redefinition) with one currently active.
type Function struct {
	Header
	Sig            *Sig
	Versions       []ID
	ActiveVersion  ID
}

// CompiledFunction is the artifact a function version acquires after
// CodeEmission: the emitted machine code (kept abstract — see
// pkg/mcode.Sequence), a frame descriptor, a temp->register map, and the
// symbolic start/end labels. Registered in the VM's compiled-function
// map, keyed by function-version identity (spec.md §3 "Lifecycles").
type CompiledFunction struct {
	FuncID    ID
	VersionID ID
	// Temps maps a source SSA identity to the machine-register identity
	// (or stack-slot marker) it was finally assigned. cmd/muc leaves it
	// nil: RegisterAllocation reports its result as a regalloc
	// AllocationResult, and CodeEmission reads the rewritten
	// mcode.Sequence instead of this map.
	Temps map[ID]ID
	Frame FrameDescriptor
	Start string
	End   string
}

// FrameDescriptor records everything a caller/unwinder needs to know
// about a compiled function's stack frame.
type FrameDescriptor struct {
	Size            int64
	CalleeSaved     []string
	UsesFramePtr    bool
	ExceptionTable  []ExceptionEntry
}

// ExceptionEntry maps one callsite-end label to its landing-pad label,
// per spec.md §4.10/§9 "Exception tables".
type ExceptionEntry struct {
	CallsiteEndLabel string
	LandingPadLabel  string
}
