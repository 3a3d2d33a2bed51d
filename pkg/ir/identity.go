// Package ir is the Mu IR data model: entities, types, signatures,
// function versions, blocks, tree nodes, and instructions.
//
// Modeled on the teacher's rtl/cminorsel/mach ASTs (node/instruction
// marker interfaces, one concrete struct per opcode) but generalized to
// Mu's SSA, multi-return, exception-bearing instruction set.
package ir

import (
	"sync/atomic"

	"github.com/muvm/muc/pkg/cerr"
)

// ID is a globally unique numeric identity. It is the sole key for
// equality and hashing of any named artifact (function, version, block,
// type, value, signature); symbolic names exist only for diagnostics.
type ID uint64

// Three disjoint identity ranges are reserved so that machine-register
// identities, internal compiler temporaries, and user-declared entities
// never alias each other and never need renaming.
const (
	MachineIDBase  ID = 1
	MachineIDLimit ID = 1 << 16

	InternalIDBase  ID = MachineIDLimit
	InternalIDLimit ID = 1 << 32

	UserIDBase  ID = InternalIDLimit
	UserIDLimit ID = 1<<63 - 1
)

// IDAllocator hands out fresh identities from one of the three ranges
// via atomic add-and-fetch, matching the concurrency model's requirement
// that identity allocation never observes a partial increment.
type IDAllocator struct {
	machine  uint64
	internal uint64
	user     uint64
}

// NewIDAllocator returns an allocator with each counter seeded to the
// start of its range.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{
		machine:  uint64(MachineIDBase),
		internal: uint64(InternalIDBase),
		user:     uint64(UserIDBase),
	}
}

// NextMachine allocates the next machine-register identity.
func (a *IDAllocator) NextMachine() (ID, error) {
	v := atomic.AddUint64(&a.machine, 1)
	if ID(v) >= MachineIDLimit {
		return 0, cerr.New(cerr.IdOverflow, "", "machine identity range exhausted")
	}
	return ID(v - 1), nil
}

// NextInternal allocates the next internal-compiler-temporary identity.
func (a *IDAllocator) NextInternal() (ID, error) {
	v := atomic.AddUint64(&a.internal, 1)
	if ID(v) >= InternalIDLimit {
		return 0, cerr.New(cerr.IdOverflow, "", "internal identity range exhausted")
	}
	return ID(v - 1), nil
}

// NextUser allocates the next user-declared-entity identity.
func (a *IDAllocator) NextUser() (ID, error) {
	v := atomic.AddUint64(&a.user, 1)
	if ID(v) >= UserIDLimit {
		return 0, cerr.New(cerr.IdOverflow, "", "user identity range exhausted")
	}
	return ID(v - 1), nil
}

// Header is the common prefix every named artifact carries: an identity
// and an optional symbolic name used only for diagnostics.
type Header struct {
	ID   ID
	Name string
}

func (h Header) String() string {
	if h.Name != "" {
		return h.Name
	}
	return idString(h.ID)
}

func idString(id ID) string {
	const hextable = "0123456789abcdef"
	if id == 0 {
		return "#0"
	}
	buf := make([]byte, 0, 20)
	buf = append(buf, '#')
	started := false
	for shift := 60; shift >= 0; shift -= 4 {
		nib := (uint64(id) >> uint(shift)) & 0xf
		if nib != 0 || started || shift == 0 {
			started = true
			buf = append(buf, hextable[nib])
		}
	}
	return string(buf)
}
