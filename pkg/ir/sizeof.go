package ir

// TagResolver looks up a named struct/hybrid tag's field layout. SizeOf
// and AlignOf take one because the tag tables themselves live in pkg/vm
// (process-wide, to let two struct tags refer to each other), not in
// ir — the type term here only ever carries the tag name.
type TagResolver interface {
	StructTag(tag string) (*StructDef, bool)
	HybridTag(tag string) (*HybridDef, bool)
}

// wordSize is the emitted backend's native pointer/word size; both
// pkg/isel/arm64 and pkg/isel/amd64 target 64-bit hosts.
const wordSize = 8

// SizeOf returns a type's size in bytes, for global `.comm` reservations
// (spec.md §6 Egress) and stack/field layout.
func SizeOf(t Type, r TagResolver) uint64 {
	switch v := t.(type) {
	case Int:
		return uint64((v.Bits + 7) / 8)
	case Float:
		return 4
	case Double:
		return 8
	case Void:
		return 0
	case Ref, IRef, WeakRef, UPtr, FuncRef, UFuncPtr, ThreadRef, StackRef, FrameCursorRef, TagRef64:
		return wordSize
	case Array:
		return v.Len * SizeOf(v.Elem, r)
	case Vector:
		return v.Len * SizeOf(v.Elem, r)
	case Struct:
		def, ok := r.StructTag(v.Tag)
		if !ok {
			return 0
		}
		return structSize(def.Fields, r)
	case Hybrid:
		def, ok := r.HybridTag(v.Tag)
		if !ok {
			return 0
		}
		// A hybrid's static size covers only its fixed part; the
		// variable tail is sized per-instance at allocation time
		// (NewHybrid/AllocaHybrid carry the element count).
		return structSize(def.Fixed, r)
	default:
		return 0
	}
}

// AlignOf returns a type's required alignment in bytes.
func AlignOf(t Type, r TagResolver) uint64 {
	switch v := t.(type) {
	case Int:
		sz := SizeOf(v, r)
		if sz == 0 {
			return 1
		}
		return sz
	case Float:
		return 4
	case Double:
		return 8
	case Void:
		return 1
	case Ref, IRef, WeakRef, UPtr, FuncRef, UFuncPtr, ThreadRef, StackRef, FrameCursorRef, TagRef64:
		return wordSize
	case Array:
		return AlignOf(v.Elem, r)
	case Vector:
		return AlignOf(v.Elem, r)
	case Struct:
		def, ok := r.StructTag(v.Tag)
		if !ok {
			return 1
		}
		return structAlign(def.Fields, r)
	case Hybrid:
		def, ok := r.HybridTag(v.Tag)
		if !ok {
			return 1
		}
		a := structAlign(def.Fixed, r)
		if tailA := AlignOf(def.VarTy, r); tailA > a {
			a = tailA
		}
		return a
	default:
		return 1
	}
}

func structSize(fields []Type, r TagResolver) uint64 {
	var offset uint64
	var maxAlign uint64 = 1
	for _, f := range fields {
		a := AlignOf(f, r)
		if a > maxAlign {
			maxAlign = a
		}
		offset = alignUp(offset, a)
		offset += SizeOf(f, r)
	}
	return alignUp(offset, maxAlign)
}

func structAlign(fields []Type, r TagResolver) uint64 {
	var maxAlign uint64 = 1
	for _, f := range fields {
		if a := AlignOf(f, r); a > maxAlign {
			maxAlign = a
		}
	}
	return maxAlign
}

func alignUp(offset, align uint64) uint64 {
	if align <= 1 {
		return offset
	}
	rem := offset % align
	if rem == 0 {
		return offset
	}
	return offset + (align - rem)
}
