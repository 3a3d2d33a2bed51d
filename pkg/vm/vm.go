// Package vm holds the process-wide, lock-protected VM state: the
// function/type/compiled-function/name maps, the struct/hybrid tag
// maps, and identity allocation. It also exposes the bundle-loader
// ingress API (spec.md §6) as methods on *VM.
//
// Locking follows spec.md §5: VM globals sit behind a single shared
// multiple-reader/single-writer lock (sync.RWMutex — the stdlib is the
// idiomatic and only sensible choice here; no third-party reader/writer
// lock in the example corpus improves on it), while each function
// version additionally has its own exclusive writer lock so independent
// versions can compile in parallel without contending on the shared
// lock for anything but brief declare/lookup windows.
package vm

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/muvm/muc/pkg/cerr"
	"github.com/muvm/muc/pkg/ir"
)

// PrimordialThread nominates the boot entry point (spec.md §6
// "set_primordial_thread").
type PrimordialThread struct {
	FuncID ID
	HasArg bool
	Args   []ir.ConstValue
}

type ID = ir.ID

// Global is a declared global cell (spec.md §6 "declare_global").
type Global struct {
	ID   ID
	Name string
	Ty   ir.Type
}

// ConstDecl is a declared constant (spec.md §6 "declare_const").
type ConstDecl struct {
	ID    ID
	Ty    ir.Type
	Value ir.ConstValue
}

// VM is the process-wide compiler state.
type VM struct {
	mu sync.RWMutex

	ids *ir.IDAllocator

	types    map[ID]ir.Type
	consts   map[ID]*ConstDecl
	globals  map[ID]*Global
	sigs     map[ID]*ir.Sig
	funcs    map[ID]*ir.Function
	versions map[ID]*ir.FuncVersion
	compiled map[ID]*ir.CompiledFunction
	names    map[string]ID

	tagMu      sync.RWMutex
	structTags map[string]*ir.StructDef
	hybridTags map[string]*ir.HybridDef

	verLockMu sync.Mutex
	verLocks  map[ID]*sync.Mutex

	primordial *PrimordialThread

	Log *logrus.Logger
}

// New returns an empty VM with a fresh identity allocator.
func New() *VM {
	return &VM{
		ids:        ir.NewIDAllocator(),
		types:      make(map[ID]ir.Type),
		consts:     make(map[ID]*ConstDecl),
		globals:    make(map[ID]*Global),
		sigs:       make(map[ID]*ir.Sig),
		funcs:      make(map[ID]*ir.Function),
		versions:   make(map[ID]*ir.FuncVersion),
		compiled:   make(map[ID]*ir.CompiledFunction),
		names:      make(map[string]ID),
		structTags: make(map[string]*ir.StructDef),
		hybridTags: make(map[string]*ir.HybridDef),
		verLocks:   make(map[ID]*sync.Mutex),
		Log:        logrus.New(),
	}
}

func (vm *VM) bindName(name string, id ID) {
	if name != "" {
		vm.names[name] = id
	}
}

// DeclareType registers a named, freshly-allocated type identity mapped
// to body. Returns IRMalformed if name is already bound to a different
// entity.
func (vm *VM) DeclareType(name string, body ir.Type) (ID, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if existing, ok := vm.names[name]; ok {
		if t, ok := vm.types[existing]; ok && t.Key() != body.Key() {
			return 0, cerr.New(cerr.IRMalformed, name, "type redeclared with incompatible body")
		}
		return existing, nil
	}
	id, err := vm.ids.NextUser()
	if err != nil {
		return 0, err
	}
	vm.types[id] = body
	vm.bindName(name, id)
	return id, nil
}

// GetType returns the type registered under id.
func (vm *VM) GetType(id ID) (ir.Type, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	t, ok := vm.types[id]
	return t, ok
}

// DeclareConst registers a named constant of the given type and value.
func (vm *VM) DeclareConst(name string, ty ir.Type, value ir.ConstValue) (ID, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	id, err := vm.ids.NextUser()
	if err != nil {
		return 0, err
	}
	vm.consts[id] = &ConstDecl{ID: id, Ty: ty, Value: value}
	vm.bindName(name, id)
	return id, nil
}

// DeclareGlobal registers a named global cell of the given type.
func (vm *VM) DeclareGlobal(name string, ty ir.Type) (ID, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	id, err := vm.ids.NextUser()
	if err != nil {
		return 0, err
	}
	vm.globals[id] = &Global{ID: id, Name: name, Ty: ty}
	vm.bindName(name, id)
	return id, nil
}

// DeclareFuncSig registers a named function signature.
func (vm *VM) DeclareFuncSig(name string, argTys, retTys []ir.Type) (ID, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	id, err := vm.ids.NextUser()
	if err != nil {
		return 0, err
	}
	vm.sigs[id] = &ir.Sig{Args: argTys, Returns: retTys}
	vm.bindName(name, id)
	return id, nil
}

// DeclareFunc registers a named function with the given signature
// identity.
func (vm *VM) DeclareFunc(name string, sigID ID) (ID, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	sig, ok := vm.sigs[sigID]
	if !ok {
		return 0, cerr.New(cerr.IRMalformed, name, "declare_func: unknown signature id %v", sigID)
	}
	id, err := vm.ids.NextUser()
	if err != nil {
		return 0, err
	}
	vm.funcs[id] = &ir.Function{Header: ir.Header{ID: id, Name: name}, Sig: sig}
	vm.bindName(name, id)
	return id, nil
}

// DefineFuncVersion registers a freshly-built version as the active
// version of its owning function.
func (vm *VM) DefineFuncVersion(version *ir.FuncVersion) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	fn, ok := vm.funcs[version.OwnerFunc]
	if !ok {
		return cerr.New(cerr.IRMalformed, version.Name, "define_func_version: unknown owning function %v", version.OwnerFunc)
	}
	vm.versions[version.ID] = version
	fn.Versions = append(fn.Versions, version.ID)
	fn.ActiveVersion = version.ID
	vm.verLockMu.Lock()
	vm.verLocks[version.ID] = &sync.Mutex{}
	vm.verLockMu.Unlock()
	return nil
}

// SetPrimordialThread nominates the boot entry point.
func (vm *VM) SetPrimordialThread(funcID ID, hasArg bool, args []ir.ConstValue) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if _, ok := vm.funcs[funcID]; !ok {
		return cerr.New(cerr.IRMalformed, "", "set_primordial_thread: unknown function %v", funcID)
	}
	vm.primordial = &PrimordialThread{FuncID: funcID, HasArg: hasArg, Args: args}
	return nil
}

// Primordial returns the current primordial-thread descriptor, if set.
func (vm *VM) Primordial() *PrimordialThread {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.primordial
}

// PutStructTag registers (or idempotently re-confirms) a struct
// definition under tag. A redeclaration with a structurally different
// body is a fatal IRMalformed error (spec.md §5 "Struct/hybrid tag
// maps").
func (vm *VM) PutStructTag(def *ir.StructDef) error {
	vm.tagMu.Lock()
	defer vm.tagMu.Unlock()
	if existing, ok := vm.structTags[def.Tag]; ok {
		if !sameFields(existing.Fields, def.Fields) {
			return cerr.New(cerr.IRMalformed, def.Tag, "struct tag redeclared with incompatible body")
		}
		return nil
	}
	vm.structTags[def.Tag] = def
	return nil
}

// StructTag looks up a struct definition by tag.
func (vm *VM) StructTag(tag string) (*ir.StructDef, bool) {
	vm.tagMu.RLock()
	defer vm.tagMu.RUnlock()
	d, ok := vm.structTags[tag]
	return d, ok
}

// PutHybridTag registers (or idempotently re-confirms) a hybrid
// definition under tag.
func (vm *VM) PutHybridTag(def *ir.HybridDef) error {
	vm.tagMu.Lock()
	defer vm.tagMu.Unlock()
	if existing, ok := vm.hybridTags[def.Tag]; ok {
		if !sameFields(existing.Fixed, def.Fixed) || existing.VarTy.Key() != def.VarTy.Key() {
			return cerr.New(cerr.IRMalformed, def.Tag, "hybrid tag redeclared with incompatible body")
		}
		return nil
	}
	vm.hybridTags[def.Tag] = def
	return nil
}

// HybridTag looks up a hybrid definition by tag.
func (vm *VM) HybridTag(tag string) (*ir.HybridDef, bool) {
	vm.tagMu.RLock()
	defer vm.tagMu.RUnlock()
	d, ok := vm.hybridTags[tag]
	return d, ok
}

func sameFields(a, b []ir.Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key() != b[i].Key() {
			return false
		}
	}
	return true
}

// NewInternalID allocates a fresh internal-compiler-temporary identity,
// used for blocks and temporaries synthesized by passes (e.g. GenMovPhi
// edge-split blocks, Inlining's renamed results, instruction-selection
// operand temporaries). cmd/muc's demo and scenario bundles also draw
// their version, block and value identities from it.
func (vm *VM) NewInternalID() (ID, error) { return vm.ids.NextInternal() }

// NewMachineID allocates a fresh machine-register identity.
func (vm *VM) NewMachineID() (ID, error) { return vm.ids.NextMachine() }

// Version returns the function version registered under id.
func (vm *VM) Version(id ID) (*ir.FuncVersion, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	v, ok := vm.versions[id]
	return v, ok
}

// VersionIDs returns every registered function version identity, in
// ascending order, for drivers that compile "everything" (e.g. the CLI).
func (vm *VM) VersionIDs() []ID {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	ids := make([]ID, 0, len(vm.versions))
	for id := range vm.versions {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}

// LockVersion acquires the exclusive writer lock for function version
// id, returning an unlock function. cmd/muc's compileVersion calls this
// once before running a version through the pipeline; the pipeline
// never needs to re-enter it.
func (vm *VM) LockVersion(id ID) func() {
	vm.verLockMu.Lock()
	l, ok := vm.verLocks[id]
	if !ok {
		l = &sync.Mutex{}
		vm.verLocks[id] = l
	}
	vm.verLockMu.Unlock()
	l.Lock()
	return l.Unlock
}

// PutCompiled registers the compiled artifact for a function version.
func (vm *VM) PutCompiled(cf *ir.CompiledFunction) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.compiled[cf.VersionID] = cf
}

// Compiled returns the compiled artifact for a function version, if any.
func (vm *VM) Compiled(versionID ID) (*ir.CompiledFunction, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	cf, ok := vm.compiled[versionID]
	return cf, ok
}

// Func returns the function registered under id.
func (vm *VM) Func(id ID) (*ir.Function, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	f, ok := vm.funcs[id]
	return f, ok
}

// NameOf resolves a symbolic name to its identity.
func (vm *VM) NameOf(name string) (ID, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	id, ok := vm.names[name]
	return id, ok
}

// GlobalsSnapshot returns every declared global, for CodeEmission's
// .bss reservations.
func (vm *VM) GlobalsSnapshot() []*Global {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	out := make([]*Global, 0, len(vm.globals))
	for _, g := range vm.globals {
		out = append(out, g)
	}
	return out
}

// TypesSnapshot returns every declared named type, for the boot context
// snapshot's type table (spec.md §6 Egress).
func (vm *VM) TypesSnapshot() map[ID]ir.Type {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	out := make(map[ID]ir.Type, len(vm.types))
	for id, ty := range vm.types {
		out[id] = ty
	}
	return out
}

// SigsSnapshot returns every declared function signature, for the boot
// context snapshot's signature table.
func (vm *VM) SigsSnapshot() map[ID]*ir.Sig {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	out := make(map[ID]*ir.Sig, len(vm.sigs))
	for id, sig := range vm.sigs {
		out[id] = sig
	}
	return out
}

// FuncsSnapshot returns every declared function, for CodeEmission's
// exported-symbol table.
func (vm *VM) FuncsSnapshot() []*ir.Function {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	out := make([]*ir.Function, 0, len(vm.funcs))
	for _, f := range vm.funcs {
		out = append(out, f)
	}
	return out
}
