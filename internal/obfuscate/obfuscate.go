// Package obfuscate is the importable core: deserialize a compiled Lua 5.1
// module, flatten every function prototype's control flow, and re-serialize
// the result. Everything ambient (CLI, config file, logging) lives outside
// this package; Flatten takes and returns plain bytes.
package obfuscate

import (
	"github.com/pkg/errors"

	"github.com/lua-obf/luaobf/internal/bytecode"
	"github.com/lua-obf/luaobf/internal/flatten"
	"github.com/lua-obf/luaobf/internal/telemetry"
)

// Options selects which passes run. Only one pass exists today, but the
// struct shape leaves room for spec.md's named non-goals (additional
// encryption passes, other VM generations) to land as new fields without
// breaking the Flatten signature.
type Options struct {
	FlattenControlFlow bool
	TargetVM           string
}

// DefaultOptions matches this VM generation's only supported target.
func DefaultOptions() Options {
	return Options{FlattenControlFlow: true, TargetVM: "lua51"}
}

// Pass transforms one function prototype tree in place, returning the
// (possibly new) root prototype.
type Pass interface {
	Name() string
	Run(header bytecode.Header, proto *bytecode.Prototype) (*bytecode.Prototype, error)
}

type flattenPass struct{}

func (flattenPass) Name() string { return "flatten-control-flow" }
func (flattenPass) Run(header bytecode.Header, proto *bytecode.Prototype) (*bytecode.Prototype, error) {
	return flatten.Flatten(header, proto)
}

// Flatten deserializes src, applies the passes opts selects, and
// re-serializes the result. stats, if non-nil, is populated with counts
// from the run.
func Flatten(src []byte, opts Options, stats *telemetry.Stats) ([]byte, error) {
	if opts.TargetVM != "lua51" {
		return nil, errors.Errorf("unsupported target VM %q", opts.TargetVM)
	}

	header, proto, err := bytecode.Deserialize(src)
	if err != nil {
		return nil, errors.Wrap(err, "deserialize")
	}

	var passes []Pass
	if opts.FlattenControlFlow {
		passes = append(passes, flattenPass{})
	}

	for _, pass := range passes {
		proto, err = pass.Run(header, proto)
		if err != nil {
			return nil, errors.Wrapf(err, "pass %s", pass.Name())
		}
	}

	if stats != nil {
		stats.Accumulate(proto)
	}

	out, err := bytecode.Serialize(header, proto)
	if err != nil {
		return nil, errors.Wrap(err, "serialize")
	}
	return out, nil
}
