package ir

// EdgeKind classifies a successor edge by whether its target's position
// in the current block ordering is ahead of or behind the source.
type EdgeKind int

const (
	Forward EdgeKind = iota
	Backward
)

// Edge is one successor/predecessor record attached to a block by
// ControlFlowAnalysis (spec.md §4.5).
type Edge struct {
	Target      ID
	Kind        EdgeKind
	Probability float64
	Exceptional bool
}

// ControlFlow holds the predecessor/successor bookkeeping ControlFlow
// analysis computes; zero value means "not yet analyzed".
type ControlFlow struct {
	Preds []ID
	Succs []Edge
}

// BlockContent is the populated body of a block: formal arguments, an
// optional exception argument (bound when the block is an exception
// destination's landing pad), the instruction body, and an optional
// keep-alive set (values the IR builder asserts must remain live
// through the block even if otherwise unused).
type BlockContent struct {
	Args      []ID
	ArgTys    []Type
	ExnArg    ID // 0 if this block is not a landing pad
	ExnArgTy  Type
	Body      []Instruction
	KeepAlive []ID
}

// Block is a basic block: a header plus optional content and control
// flow record. A declared-but-unpopulated block (rare; only transiently
// during construction) has Content == nil.
type Block struct {
	Header
	Content *BlockContent
	CF      ControlFlow
}

// IsLandingPad reports whether this block receives a thrown reference,
// i.e. is the target of some ResumptionData.Exception.
func (b *Block) IsLandingPad() bool {
	return b.Content != nil && b.Content.ExnArg != 0
}

// Terminator returns the block's terminator instruction, which by
// invariant is always the last instruction of Content.Body.
func (b *Block) Terminator() Instruction {
	n := len(b.Content.Body)
	if n == 0 {
		return nil
	}
	return b.Content.Body[n-1]
}

// SetTerminator replaces the block's terminator in place.
func (b *Block) SetTerminator(instr Instruction) {
	n := len(b.Content.Body)
	b.Content.Body[n-1] = instr
}
