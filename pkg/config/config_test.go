package config

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestDefaultMatchesOriginalDocoptDefaults(t *testing.T) {
	c := Default()
	if c.LogLevel != "trace" {
		t.Errorf("LogLevel = %q, want trace", c.LogLevel)
	}
	if c.GCNumThreads != 8 {
		t.Errorf("GCNumThreads = %d, want 8", c.GCNumThreads)
	}
	if c.OptLevel != 0 {
		t.Errorf("OptLevel = %d, want 0", c.OptLevel)
	}
	if c.AOTFrameTable {
		t.Errorf("AOTFrameTable should default false")
	}
}

func TestBindFlagsParsesArgs(t *testing.T) {
	c := Default()
	cmd := &cobra.Command{Use: "muc", RunE: func(*cobra.Command, []string) error { return nil }}
	c.BindFlags(cmd)

	cmd.SetArgs([]string{
		"--log-level", "debug",
		"--opt-level", "2",
		"--aot-frametable",
		"--gc-nthreads", "4",
		"--bootimage-external-lib", "pthread",
		"--bootimage-external-lib", "m",
	})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if c.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", c.LogLevel)
	}
	if c.OptLevel != 2 {
		t.Errorf("OptLevel = %d, want 2", c.OptLevel)
	}
	if !c.AOTFrameTable {
		t.Errorf("AOTFrameTable should be true")
	}
	if c.GCNumThreads != 4 {
		t.Errorf("GCNumThreads = %d, want 4", c.GCNumThreads)
	}
	if len(c.BootimageExternalLib) != 2 || c.BootimageExternalLib[0] != "pthread" || c.BootimageExternalLib[1] != "m" {
		t.Errorf("BootimageExternalLib = %v, want [pthread m]", c.BootimageExternalLib)
	}
}

func TestLogrusLevel(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"none", false},
		{"error", false},
		{"warn", false},
		{"info", false},
		{"debug", false},
		{"trace", false},
		{"bogus", true},
	}
	for _, tt := range tests {
		c := &Config{LogLevel: tt.name}
		_, err := c.LogrusLevel()
		if (err != nil) != tt.wantErr {
			t.Errorf("LogrusLevel(%q) err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}
