package ir

// Type is a Mu type. Struct and Hybrid are the only recursive variants:
// they carry a tag, not a field list, so a cyclic type graph (T = struct
// { ref<T> }) is expressed by routing through the two process-wide
// tag->definition maps owned by the VM (pkg/vm) rather than by direct
// recursion in the type term itself.
type Type interface {
	implType()
	// Key returns a string that two structurally-equal types always
	// share, used to deduplicate types by structural value equality.
	Key() string
}

// Int is a sized integer type, width in bits (1, 8, 16, 32, 64, ... any
// Mu-legal width).
type Int struct{ Bits int }

// Float is IEEE-754 single precision.
type Float struct{}

// Double is IEEE-754 double precision.
type Double struct{}

// Void carries no value.
type Void struct{}

// Ref is a GC-traced reference to a value of type To.
type Ref struct{ To Type }

// IRef is an internal reference: a typed pointer into the interior of a
// heap object, still subject to GC.
type IRef struct{ To Type }

// WeakRef is a non-rooting reference to a value of type To.
type WeakRef struct{ To Type }

// UPtr is an untraced native pointer to a value of type To.
type UPtr struct{ To Type }

// Struct names a struct definition by tag; the field-type list lives in
// the VM's struct tag map, keyed by Tag.
type Struct struct{ Tag string }

// Hybrid names a hybrid definition (fixed fields plus one trailing
// variable-length tail type) by tag, resolved the same way as Struct.
type Hybrid struct{ Tag string }

// Array is a fixed-length homogeneous aggregate.
type Array struct {
	Elem Type
	Len  uint64
}

// Vector is a SIMD-style fixed-length homogeneous aggregate.
type Vector struct {
	Elem Type
	Len  uint64
}

// FuncRef is a reference to Mu code with the given signature.
type FuncRef struct{ Sig *Sig }

// UFuncPtr is an untraced native function pointer with the given
// signature.
type UFuncPtr struct{ Sig *Sig }

// ThreadRef denotes a Mu thread handle.
type ThreadRef struct{}

// StackRef denotes a Mu stack handle.
type StackRef struct{}

// FrameCursorRef denotes a cursor into a stack's frame list.
type FrameCursorRef struct{}

// TagRef64 is a 64-bit NaN-tagged polymorphic value.
type TagRef64 struct{}

func (Int) implType()            {}
func (Float) implType()          {}
func (Double) implType()         {}
func (Void) implType()           {}
func (Ref) implType()            {}
func (IRef) implType()           {}
func (WeakRef) implType()        {}
func (UPtr) implType()           {}
func (Struct) implType()         {}
func (Hybrid) implType()         {}
func (Array) implType()          {}
func (Vector) implType()         {}
func (FuncRef) implType()        {}
func (UFuncPtr) implType()       {}
func (ThreadRef) implType()      {}
func (StackRef) implType()       {}
func (FrameCursorRef) implType() {}
func (TagRef64) implType()       {}

func (t Int) Key() string     { return "i" + itoa(t.Bits) }
func (Float) Key() string     { return "float" }
func (Double) Key() string    { return "double" }
func (Void) Key() string      { return "void" }
func (t Ref) Key() string     { return "ref<" + t.To.Key() + ">" }
func (t IRef) Key() string    { return "iref<" + t.To.Key() + ">" }
func (t WeakRef) Key() string { return "weakref<" + t.To.Key() + ">" }
func (t UPtr) Key() string    { return "uptr<" + t.To.Key() + ">" }
func (t Struct) Key() string  { return "struct:" + t.Tag }
func (t Hybrid) Key() string  { return "hybrid:" + t.Tag }
func (t Array) Key() string   { return "array<" + t.Elem.Key() + "," + itoa(int(t.Len)) + ">" }
func (t Vector) Key() string  { return "vector<" + t.Elem.Key() + "," + itoa(int(t.Len)) + ">" }
func (t FuncRef) Key() string { return "funcref<" + t.Sig.Key() + ">" }
func (t UFuncPtr) Key() string {
	return "ufuncptr<" + t.Sig.Key() + ">"
}
func (ThreadRef) Key() string      { return "threadref" }
func (StackRef) Key() string       { return "stackref" }
func (FrameCursorRef) Key() string { return "framecursorref" }
func (TagRef64) Key() string       { return "tagref64" }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// StructDef is the shared, process-wide definition a Struct tag resolves
// to: an ordered list of field types.
type StructDef struct {
	Tag    string
	Fields []Type
}

// HybridDef is the shared, process-wide definition a Hybrid tag resolves
// to: fixed leading fields plus one trailing variable-length element
// type.
type HybridDef struct {
	Tag    string
	Fixed  []Type
	VarTy  Type
}
