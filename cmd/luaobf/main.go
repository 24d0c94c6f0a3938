// Command luaobf drives the control-flow-flattening obfuscator over a
// compiled Lua 5.1 module.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lua-obf/luaobf/internal/bytecode"
	"github.com/lua-obf/luaobf/internal/config"
	"github.com/lua-obf/luaobf/internal/flatten"
	"github.com/lua-obf/luaobf/internal/obfuscate"
	"github.com/lua-obf/luaobf/internal/telemetry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "luaobf",
		Short: "Control-flow-flattening obfuscator for 5.1-generation Lua bytecode",
	}

	var (
		flattenCF  bool
		targetVM   string
		logLevel   string
		configPath string
	)

	flattenCmd := &cobra.Command{
		Use:   "flatten <in.luac> <out.luac>",
		Short: "Flatten every function prototype's control flow",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := config.Defaults()
			if configPath != "" {
				var err error
				opts, err = config.LoadFile(configPath, opts)
				if err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("flatten-control-flow") {
				opts.FlattenControlFlow = flattenCF
			}
			if cmd.Flags().Changed("target-vm") {
				opts.TargetVM = targetVM
			}
			if cmd.Flags().Changed("log-level") {
				opts.LogLevel = logLevel
			}
			if env := os.Getenv("LUAOBF_LOG_LEVEL"); env != "" {
				opts.LogLevel = env
			}
			if err := config.Validate(opts); err != nil {
				return err
			}

			log := telemetry.NewLogger(opts.LogLevel)
			return runFlatten(log, args[0], args[1], opts)
		},
	}
	flattenCmd.Flags().BoolVar(&flattenCF, "flatten-control-flow", true, "apply the control-flow flattening pass")
	flattenCmd.Flags().StringVar(&targetVM, "target-vm", "lua51", "target VM generation (only \"lua51\" is implemented)")
	flattenCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flattenCmd.Flags().StringVar(&configPath, "config", "", "TOML config file overlaying the defaults below CLI flags")

	inspectCmd := &cobra.Command{
		Use:   "inspect <in.luac>",
		Short: "Dump the module's header and prototype tree without mutating it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(args[0])
		},
	}

	rootCmd.AddCommand(flattenCmd, inspectCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func runFlatten(log *logrus.Logger, inPath, outPath string, opts config.Options) error {
	src, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}

	log.WithField("in", inPath).Debug("read input module")

	stats := &telemetry.Stats{}
	out, err := obfuscate.Flatten(src, obfuscate.Options{
		FlattenControlFlow: opts.FlattenControlFlow,
		TargetVM:           opts.TargetVM,
	}, stats)
	if err != nil {
		log.WithError(err).Error("flatten failed")
		return err
	}

	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return err
	}

	log.WithFields(stats.Fields()).WithField("bytes_in", len(src)).WithField("bytes_out", len(out)).
		Info("flatten complete")
	return nil
}

func runInspect(inPath string) error {
	src, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	header, proto, err := bytecode.Deserialize(src)
	if err != nil {
		return err
	}
	fmt.Printf("header: int_size=%d size_t_size=%d instr_size=%d number_size=%d\n",
		header.IntSize, header.SizeTSize, header.InstructionSize, header.NumberSize)
	dumpPrototype(proto, 0)
	return nil
}

func dumpPrototype(proto *bytecode.Prototype, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	fmt.Printf("%sprototype %q: params=%d upvalues=%d maxstack=%d instructions=%d constants=%d nested=%d\n",
		indent, proto.Source, proto.NumParams, proto.NumUpvalues, proto.MaxStackSize,
		len(proto.Instructions), len(proto.Constants), len(proto.Prototypes))
	for _, nested := range proto.Prototypes {
		dumpPrototype(nested, depth+1)
	}
}

// exitCodeFor maps a fatal fault to a process exit code. A recognized
// flattener fault gets a distinct code from ordinary CLI/IO failures so
// scripts can tell the two apart without parsing messages.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var fault flatten.Fault
	if errors.As(err, &fault) {
		switch fault.Kind() {
		case "register-exhausted":
			return 3
		default:
			return 2
		}
	}
	return 1
}
