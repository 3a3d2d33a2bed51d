package runtimeabi

import "testing"

func TestLookupKnownSymbol(t *testing.T) {
	e, ok := Lookup("muentry_alloc_fast")
	if !ok {
		t.Fatal("expected muentry_alloc_fast to be a known runtime entry")
	}
	if len(e.Sig.Args) != 3 || len(e.Sig.Returns) != 1 {
		t.Errorf("unexpected signature shape: %+v", e.Sig)
	}
	if e.Safepoint {
		t.Errorf("fast-path bump alloc must not be a safepoint")
	}
}

func TestLookupUnknownSymbol(t *testing.T) {
	if _, ok := Lookup("not_a_real_entry"); ok {
		t.Errorf("expected an unknown symbol to miss")
	}
}

func TestAllocSlowIsSafepoint(t *testing.T) {
	e, ok := Lookup("muentry_alloc_slow")
	if !ok {
		t.Fatal("expected muentry_alloc_slow to be registered")
	}
	if !e.Safepoint {
		t.Errorf("the GC-triggering slow alloc path must be marked a safepoint")
	}
}
