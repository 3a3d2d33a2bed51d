package main

import (
	"testing"

	"github.com/muvm/muc/pkg/vm"
)

func TestBuildDemoBundleRegistersPrimordialThread(t *testing.T) {
	m := vm.New()
	funcID, err := buildDemoBundle(m)
	if err != nil {
		t.Fatalf("buildDemoBundle: %v", err)
	}

	p := m.Primordial()
	if p == nil {
		t.Fatal("expected a primordial thread to be set")
	}
	if p.FuncID != funcID {
		t.Errorf("primordial FuncID = %v, want %v", p.FuncID, funcID)
	}

	if len(m.VersionIDs()) != 1 {
		t.Errorf("expected exactly one function version, got %d", len(m.VersionIDs()))
	}
}
