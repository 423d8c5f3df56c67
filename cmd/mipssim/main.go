// Package main provides the entry point for mipssim, a functional MIPS
// simulator.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/mipssim/arch"
	"github.com/sarchlab/mipssim/emu"
	"github.com/sarchlab/mipssim/insts"
	"github.com/sarchlab/mipssim/loader"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args, runs the program they name and returns the exit status.
func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("mipssim", flag.ContinueOnError)
	flags.SetOutput(stderr)

	configPath := flags.String("config", "", "Path to an arch configuration file (JSON or YAML)")
	verbose := flags.Bool("v", false, "Verbose output")
	trace := flags.Bool("trace", false, "Log every step and register access")
	maxInsts := flags.Uint64("max", 0, "Maximum instructions to execute (0 = no limit)")
	dump := flags.Bool("dump", false, "Print the registers on exit")

	if err := flags.Parse(args); err != nil {
		return 2
	}

	if flags.NArg() < 1 {
		fmt.Fprintf(stderr, "Usage: mipssim [options] <program.elf>\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		flags.PrintDefaults()
		return 1
	}

	logger := newLogger(stderr, *verbose, *trace)
	programPath := flags.Arg(0)

	prog, err := loader.Load(programPath)
	if err != nil {
		logger.WithError(err).Error("Failed to load program")
		return 1
	}

	if *configPath != "" {
		prog.Config, err = arch.LoadConfigOver(prog.Config, *configPath)
		if err != nil {
			logger.WithError(err).Error("Failed to load config")
			return 1
		}
	}

	logger.WithFields(logrus.Fields{
		"program":  programPath,
		"entry":    fmt.Sprintf("0x%X", prog.EntryPoint),
		"segments": len(prog.Segments),
		"arch":     prog.Config.Name,
	}).Info("Loaded program")

	emulator := emu.NewEmulator(
		emu.WithConfig(prog.Config),
		emu.WithStdout(stdout),
		emu.WithStderr(stderr),
		emu.WithLogger(logger),
		emu.WithStackPointer(prog.InitialSP),
		emu.WithMaxInstructions(*maxInsts),
	)
	if *trace {
		emulator.RegFile().AcceptHook(emu.NewTraceHook(logger))
	}
	emulator.LoadProgram(prog.EntryPoint, prog.NewMemory())

	exitCode := emulator.Run()

	stats := emulator.RegFile().Stats()
	logger.WithFields(logrus.Fields{
		"exit_code":    exitCode,
		"instructions": emulator.InstructionCount(),
		"reads":        stats.Reads,
		"writes":       stats.Writes,
		"discarded":    stats.Discarded,
		"accumulates":  stats.Accumulates,
		"touches":      stats.Touches,
	}).Info("Program finished")

	if *dump {
		dumpRegisters(stdout, emulator.RegFile())
	}

	return int(exitCode)
}

func newLogger(out io.Writer, verbose, trace bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	switch {
	case trace:
		logger.SetLevel(logrus.DebugLevel)
	case verbose:
		logger.SetLevel(logrus.InfoLevel)
	default:
		logger.SetLevel(logrus.WarnLevel)
	}

	return logger
}

// dumpRegisters prints the general purpose registers, HI and LO.
func dumpRegisters(w io.Writer, rf *emu.RegFile) {
	digits := int(rf.Config().NativeWidth / 4)
	snapshot := rf.Snapshot()

	for r := insts.RegZero; r <= insts.RegLO; r++ {
		v := snapshot[r]
		fmt.Fprintf(w, "%-6s 0x%0*x\n", r, digits, v.Uint64())
	}
}
