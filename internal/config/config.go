// Package config resolves the obfuscation driver's options from, in
// increasing precedence: built-in defaults, an optional TOML file, and CLI
// flags. Nothing here touches the flattening algorithm itself.
package config

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Options is the fully-resolved set of knobs the driver acts on.
type Options struct {
	FlattenControlFlow bool   `toml:"flatten_control_flow"`
	TargetVM           string `toml:"target_vm"`
	LogLevel           string `toml:"log_level"`
}

// Defaults matches spec.md §6's only supported target and a quiet-by-default
// log level.
func Defaults() Options {
	return Options{
		FlattenControlFlow: true,
		TargetVM:           "lua51",
		LogLevel:           "info",
	}
}

// fileOptions mirrors Options under an `[obfuscate]` table, per §9.
type fileOptions struct {
	Obfuscate Options `toml:"obfuscate"`
}

// LoadFile reads path and overlays any fields it sets onto base. A field
// absent from the file (the zero value for its type) leaves base's value
// untouched, so a file may override just one knob.
func LoadFile(path string, base Options) (Options, error) {
	var parsed fileOptions
	if _, err := toml.DecodeFile(path, &parsed); err != nil {
		return base, errors.Wrapf(err, "load config %s", path)
	}

	out := base
	f := parsed.Obfuscate
	if f.TargetVM != "" {
		out.TargetVM = f.TargetVM
	}
	if f.LogLevel != "" {
		out.LogLevel = f.LogLevel
	}
	// FlattenControlFlow has no "unset" sentinel in TOML's bool type, so the
	// file is consulted for this field only when its [obfuscate] table sets
	// flatten_control_flow explicitly.
	if hasObfuscateTable(path) {
		out.FlattenControlFlow = f.FlattenControlFlow
	}
	return out, nil
}

// hasObfuscateTable reports whether path's [obfuscate] table sets the
// flatten_control_flow key, distinguishing "file sets flatten_control_flow =
// false" from "file doesn't mention it at all".
func hasObfuscateTable(path string) bool {
	var meta struct {
		Obfuscate map[string]any `toml:"obfuscate"`
	}
	if _, err := toml.DecodeFile(path, &meta); err != nil {
		return false
	}
	_, hasFlatten := meta.Obfuscate["flatten_control_flow"]
	return hasFlatten
}

// Validate rejects a TargetVM this VM generation does not implement.
func Validate(opts Options) error {
	if opts.TargetVM != "lua51" {
		return errors.Errorf("unsupported target_vm %q: only \"lua51\" is implemented", opts.TargetVM)
	}
	return nil
}
