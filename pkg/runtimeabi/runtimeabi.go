// Package runtimeabi is the fixed table of runtime entry points
// (spec.md §6 Egress): symbol name and C-level signature only, never a
// body — the runtime that links against emitted assembly supplies the
// implementation. No other package imports it: instruction selection
// emits its own runtime call names (mu_throw, mu_new, mu_thread_exit,
// ...) rather than the muentry_* symbols listed here.
//
// Grounded on original_source/src/runtime/entrypoints.rs's
// RuntimeEntrypoint table. Each entry additionally carries Safepoint,
// which is true for the entries whose call may enter the garbage
// collector, the unwinder or a stack switch.
package runtimeabi

import "github.com/muvm/muc/pkg/ir"

// Entry describes one fixed runtime symbol: its call signature and
// whether a call to it is a safe point (a call that may run the GC or
// walk the stack, so a stack map / GC root set may be needed at its
// return address).
type Entry struct {
	Symbol    string
	Sig       ir.Sig
	Safepoint bool
}

var (
	address  = ir.UPtr{To: ir.Void{}}
	uint64Ty = ir.Int{Bits: 64}
	doubleTy = ir.Double{}
)

// Table is the complete fixed runtime ABI, keyed by symbol name.
var Table = map[string]Entry{
	"muentry_get_thread_local": {
		Symbol: "muentry_get_thread_local",
		Sig:    ir.Sig{Returns: []ir.Type{address}},
	},
	"muentry_swap_back_to_native_stack": {
		Symbol:    "muentry_swap_back_to_native_stack",
		Sig:       ir.Sig{Args: []ir.Type{address}},
		Safepoint: true,
	},
	"muentry_alloc_fast": {
		Symbol: "muentry_alloc_fast",
		Sig:    ir.Sig{Args: []ir.Type{address, uint64Ty, uint64Ty}, Returns: []ir.Type{address}},
	},
	"muentry_alloc_slow": {
		Symbol:    "muentry_alloc_slow",
		Sig:       ir.Sig{Args: []ir.Type{address, uint64Ty, uint64Ty}, Returns: []ir.Type{address}},
		Safepoint: true,
	},
	"muentry_alloc_large": {
		Symbol:    "muentry_alloc_large",
		Sig:       ir.Sig{Args: []ir.Type{address, uint64Ty, uint64Ty}, Returns: []ir.Type{address}},
		Safepoint: true,
	},
	"muentry_init_object": {
		Symbol: "muentry_init_object",
		Sig:    ir.Sig{Args: []ir.Type{address, address, uint64Ty}},
	},
	"muentry_init_hybrid": {
		Symbol: "muentry_init_hybrid",
		Sig:    ir.Sig{Args: []ir.Type{address, address, uint64Ty, uint64Ty}},
	},
	"muentry_throw_exception": {
		Symbol:    "muentry_throw_exception",
		Sig:       ir.Sig{Args: []ir.Type{address}},
		Safepoint: true,
	},
	"muentry_frem": {
		Symbol: "muentry_frem",
		Sig:    ir.Sig{Args: []ir.Type{doubleTy, doubleTy}, Returns: []ir.Type{doubleTy}},
	},
	"muentry_print_hex": {
		Symbol: "muentry_print_hex",
		Sig:    ir.Sig{Args: []ir.Type{uint64Ty}},
	},
}

// Lookup returns the entry for symbol, if it names a known runtime
// entry point.
func Lookup(symbol string) (Entry, bool) {
	e, ok := Table[symbol]
	return e, ok
}
