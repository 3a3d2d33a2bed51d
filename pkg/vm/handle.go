package vm

import (
	"sync/atomic"

	"github.com/muvm/muc/pkg/ir"
)

// Handle is an opaque reference the out-of-scope client API uses to
// address a VM-resident value without exposing a raw pointer, ported
// from the original implementation's handle layer
// (src/vm/handle.rs, src/vm/api/localtests/api_impl.rs). This backend
// never dereferences a Handle's Value itself — interpreting it is the
// client API's job — but owns allocation so handle identities never
// collide with the three IR identity ranges.
type Handle struct {
	id    uint64
	Ty    HandleType
	Value interface{}
}

// HandleType classifies what a Handle addresses, mirroring the
// MuValue variant the original API layer exposed (int/float/ref/etc.),
// kept abstract here since interpreting the payload is out of scope.
type HandleType int

const (
	HandleInt HandleType = iota
	HandleFloat
	HandleDouble
	HandleRef
	HandleIRef
	HandleStruct
	HandleThread
	HandleStack
)

// HandlePool allocates and tracks outstanding handles for one VM.
type HandlePool struct {
	next uint64
}

// NewHandlePool returns an empty pool whose identities start above the
// user identity range.
func NewHandlePool() *HandlePool { return &HandlePool{next: uint64(ir.UserIDLimit)} }

// New allocates a fresh handle wrapping value.
func (p *HandlePool) New(ty HandleType, value interface{}) *Handle {
	id := atomic.AddUint64(&p.next, 1)
	return &Handle{id: id, Ty: ty, Value: value}
}

// ID returns the handle's opaque numeric identity.
func (h *Handle) ID() uint64 { return h.id }
