// Package cerr defines the compiler's error taxonomy.
// Every fatal condition the pipeline can raise is one of a small set of
// kinds; callers match on kind with errors.Is, not on message text.
package cerr

import "fmt"

// Kind identifies which class of failure a CompileError represents.
type Kind int

const (
	// IRMalformed covers structural defects in the input IR: an operand
	// index out of range, a block with no terminator, a destination
	// referencing an undeclared block, or a tag collision with an
	// incompatible prior declaration.
	IRMalformed Kind = iota
	// TypeMismatch covers an instruction whose operand types disagree
	// with its opcode's signature.
	TypeMismatch
	// IdOverflow covers exhaustion of one of the three identity ranges.
	IdOverflow
	// UnsupportedOp covers an opcode or encoding not yet implemented for
	// the target ISA.
	UnsupportedOp
	// SpillBudgetExceeded covers a register allocator that fails to
	// color after its iteration budget.
	SpillBudgetExceeded
	// RegallocInvariant covers a post-allocation coloring that violates
	// an interference constraint: two interfering registers sharing a
	// location, or a precolored register losing its own color.
	RegallocInvariant
	// IOFailure covers emission that cannot create or write output.
	IOFailure
)

func (k Kind) String() string {
	switch k {
	case IRMalformed:
		return "IRMalformed"
	case TypeMismatch:
		return "TypeMismatch"
	case IdOverflow:
		return "IdOverflow"
	case UnsupportedOp:
		return "UnsupportedOp"
	case SpillBudgetExceeded:
		return "SpillBudgetExceeded"
	case RegallocInvariant:
		return "RegallocInvariant"
	case IOFailure:
		return "IOFailure"
	default:
		return "Unknown"
	}
}

// CompileError is a fatal, kind-tagged error carrying the identity of the
// function/block/value it was raised against, for diagnostics.
type CompileError struct {
	Kind    Kind
	Where   string // function/block/value name or numeric id, for humans
	Message string
	Cause   error
}

func (e *CompileError) Error() string {
	if e.Where != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Where, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CompileError) Unwrap() error { return e.Cause }

// Is reports whether target is a *CompileError of the same Kind, so that
// errors.Is(err, cerr.New(cerr.IRMalformed, "", "")) works as a kind test.
func (e *CompileError) Is(target error) bool {
	t, ok := target.(*CompileError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs a CompileError of the given kind.
func New(kind Kind, where, format string, args ...interface{}) *CompileError {
	return &CompileError{Kind: kind, Where: where, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs a CompileError of the given kind wrapping cause.
func Wrap(kind Kind, where string, cause error, format string, args ...interface{}) *CompileError {
	return &CompileError{Kind: kind, Where: where, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Sentinel kind-test values for use with errors.Is(err, cerr.ErrIRMalformed) etc.
var (
	ErrIRMalformed        = &CompileError{Kind: IRMalformed}
	ErrTypeMismatch       = &CompileError{Kind: TypeMismatch}
	ErrIdOverflow         = &CompileError{Kind: IdOverflow}
	ErrUnsupportedOp      = &CompileError{Kind: UnsupportedOp}
	ErrSpillBudgetExceed  = &CompileError{Kind: SpillBudgetExceeded}
	ErrRegallocInvariant  = &CompileError{Kind: RegallocInvariant}
	ErrIOFailure          = &CompileError{Kind: IOFailure}
)
