package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestCompileFlagsExist(t *testing.T) {
	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)

	compileCmd, _, err := root.Find([]string{"compile"})
	if err != nil {
		t.Fatalf("Find(compile): %v", err)
	}

	expected := []string{"target", "log-level", "opt-level", "aot-frametable", "gc-nthreads", "aot-emit-dir"}
	for _, name := range expected {
		if compileCmd.Flags().Lookup(name) == nil {
			t.Errorf("expected flag --%s on compile", name)
		}
	}
}

func TestCompileRejectsUnknownTarget(t *testing.T) {
	dir := t.TempDir()
	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs([]string{"compile", "--target", "riscv", "--aot-emit-dir", dir})
	if err := root.Execute(); err == nil {
		t.Fatal("expected an error for an unknown --target")
	}
}

func TestCompileEmitsArm64Artifacts(t *testing.T) {
	dir := t.TempDir()
	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs([]string{"compile", "--target", "arm64", "--aot-emit-dir", dir})
	if err := root.Execute(); err != nil {
		t.Fatalf("compile: %v (stderr: %s)", err, errOut.String())
	}

	addOnePath := filepath.Join(dir, "add_one.s")
	data, err := os.ReadFile(addOnePath)
	if err != nil {
		t.Fatalf("reading %s: %v", addOnePath, err)
	}
	asm := string(data)
	if !strings.Contains(asm, "add_one:") {
		t.Errorf("missing function start label:\n%s", asm)
	}
	if !strings.Contains(asm, "add_one_end:") {
		t.Errorf("missing function end label:\n%s", asm)
	}

	if _, err := os.Stat(filepath.Join(dir, "context.s")); err != nil {
		t.Errorf("expected context.s to be written: %v", err)
	}
}

func TestCompileEmitsAmd64Artifacts(t *testing.T) {
	dir := t.TempDir()
	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs([]string{"compile", "--target", "amd64", "--aot-emit-dir", dir})
	if err := root.Execute(); err != nil {
		t.Fatalf("compile: %v (stderr: %s)", err, errOut.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "add_one.s")); err != nil {
		t.Errorf("expected add_one.s to be written: %v", err)
	}
}
