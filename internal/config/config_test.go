package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsMatchSupportedTarget(t *testing.T) {
	d := Defaults()
	if d.TargetVM != "lua51" {
		t.Fatalf("expected default target lua51, got %q", d.TargetVM)
	}
	if !d.FlattenControlFlow {
		t.Fatalf("expected flattening enabled by default")
	}
}

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "luaobf.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadFileOverlaysOnlySetFields(t *testing.T) {
	path := writeTempConfig(t, `
[obfuscate]
log_level = "debug"
`)

	opts, err := LoadFile(path, Defaults())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.LogLevel != "debug" {
		t.Fatalf("expected log_level overridden to debug, got %q", opts.LogLevel)
	}
	if opts.TargetVM != "lua51" {
		t.Fatalf("expected target_vm to keep its default, got %q", opts.TargetVM)
	}
}

func TestLoadFileCanDisableFlattening(t *testing.T) {
	path := writeTempConfig(t, `
[obfuscate]
flatten_control_flow = false
`)

	opts, err := LoadFile(path, Defaults())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.FlattenControlFlow {
		t.Fatalf("expected flatten_control_flow to be overridden to false")
	}
}

func TestValidateRejectsUnsupportedTarget(t *testing.T) {
	opts := Defaults()
	opts.TargetVM = "lua54"
	if err := Validate(opts); err == nil {
		t.Fatalf("expected an error for an unsupported target VM")
	}
}

func TestValidateAcceptsLua51(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
