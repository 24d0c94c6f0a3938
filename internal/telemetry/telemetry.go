// Package telemetry wraps structured logging and run-accounting for the
// obfuscation driver. It carries no flattening semantics of its own.
package telemetry

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/lua-obf/luaobf/internal/bytecode"
)

// NewLogger builds a logrus.Logger at the given level, logging structured
// fields to stderr so stdout stays free for `inspect` output. An
// unrecognized level falls back to info rather than failing the run.
func NewLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.Out = os.Stderr
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}

// Stats accumulates counts across one Flatten call, surfaced both in the
// CLI's summary log line and to tests. It records totals only (prototypes,
// instructions, constants after the run, largest MaxStackSize); it does not
// count deduplicated constants.
type Stats struct {
	PrototypesVisited    int
	InstructionsEmitted  int
	ConstantsAfter       int
	MaxRegisterHighWater int
}

// Accumulate walks proto and its nested prototypes, adding their counts to
// the running totals. Safe to call more than once across a multi-pass run;
// each call folds in whatever tree it's handed.
func (s *Stats) Accumulate(proto *bytecode.Prototype) {
	if proto == nil {
		return
	}
	s.PrototypesVisited++
	s.InstructionsEmitted += len(proto.Instructions)
	s.ConstantsAfter += len(proto.Constants)
	if int(proto.MaxStackSize) > s.MaxRegisterHighWater {
		s.MaxRegisterHighWater = int(proto.MaxStackSize)
	}
	for _, nested := range proto.Prototypes {
		s.Accumulate(nested)
	}
}

// Fields renders s as a logrus.Fields map for a single summary log line.
func (s Stats) Fields() logrus.Fields {
	return logrus.Fields{
		"prototypes_visited":     s.PrototypesVisited,
		"instructions_emitted":   s.InstructionsEmitted,
		"constants_after":        s.ConstantsAfter,
		"max_register_high_water": s.MaxRegisterHighWater,
	}
}
