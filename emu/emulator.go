// Package emu provides functional MIPS emulation.
package emu

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/mipssim/arch"
	"github.com/sarchlab/mipssim/insts"
)

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Exited is true if the program terminated (via exit syscall).
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64

	// Err is set if an error occurred during execution.
	Err error
}

// Emulator executes MIPS instructions functionally.
//
// Each step reads the instruction's sources from the register file, computes
// the result into the instruction, and hands it back to the register file
// for write-back. Branches have one delay slot.
type Emulator struct {
	config         *arch.Config
	regFile        *RegFile
	memory         *Memory
	decoder        *insts.Decoder
	syscallHandler SyscallHandler
	userSyscall    SyscallHandler

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	// I/O
	stdout io.Writer
	stderr io.Writer
	logger logrus.FieldLogger
	trace  bool

	// Execution state
	pc               uint64
	npc              uint64
	stackPointer     *uint64
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithConfig sets the ISA configuration. The default is arch.MIPS32.
func WithConfig(config *arch.Config) EmulatorOption {
	return func(e *Emulator) {
		e.config = config.Clone()
	}
}

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stdout = w
	}
}

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stderr = w
	}
}

// WithLogger sets the logger used for step tracing and error reports.
func WithLogger(logger logrus.FieldLogger) EmulatorOption {
	return func(e *Emulator) {
		e.logger = logger
	}
}

// WithSyscallHandler sets a custom syscall handler.
func WithSyscallHandler(handler SyscallHandler) EmulatorOption {
	return func(e *Emulator) {
		e.userSyscall = handler
	}
}

// WithStackPointer sets the initial stack pointer value.
func WithStackPointer(sp uint64) EmulatorOption {
	return func(e *Emulator) {
		e.stackPointer = &sp
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// NewEmulator creates a new MIPS emulator.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		config:  arch.MIPS32(),
		decoder: insts.NewDecoder(),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		logger := logrus.New()
		logger.SetOutput(e.stderr)
		e.logger = logger
	}

	e.trace = debugEnabled(e.logger)
	e.build(NewMemoryWithOrder(e.config.Order()))

	return e
}

// debugEnabled reports whether logger would emit debug entries.
func debugEnabled(logger logrus.FieldLogger) bool {
	switch l := logger.(type) {
	case *logrus.Logger:
		return l.IsLevelEnabled(logrus.DebugLevel)
	case *logrus.Entry:
		return l.Logger.IsLevelEnabled(logrus.DebugLevel)
	default:
		return true
	}
}

// build creates the register file and execution units around memory.
func (e *Emulator) build(memory *Memory) {
	e.regFile = NewRegFile(e.config)
	if e.stackPointer != nil {
		e.regFile.WriteReg(insts.RegSP, *e.stackPointer)
	}
	e.attach(memory)
}

// attach connects the execution units to memory.
func (e *Emulator) attach(memory *Memory) {
	e.memory = memory
	e.alu = NewALU(e.config)
	e.lsu = NewLoadStoreUnit(e.config, memory)
	e.branchUnit = NewBranchUnit(e.config, e.alu)
	if e.userSyscall != nil {
		e.syscallHandler = e.userSyscall
		return
	}
	e.syscallHandler = NewDefaultSyscallHandler(e.regFile, memory, e.stdout, e.stderr)
}

// Config returns a copy of the emulator's ISA configuration.
func (e *Emulator) Config() *arch.Config {
	return e.config.Clone()
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// PC returns the address of the next instruction to execute.
func (e *Emulator) PC() uint64 {
	return e.pc
}

// SetPC redirects execution to pc, discarding any pending delay slot.
func (e *Emulator) SetPC(pc uint64) {
	e.pc = pc
	e.npc = pc + 4
}

// LoadProgram loads a program into memory and sets the entry point.
// The program can be either a []byte or a *Memory.
func (e *Emulator) LoadProgram(entry uint64, program interface{}) {
	switch p := program.(type) {
	case []byte:
		e.memory.LoadProgram(entry, p)
	case *Memory:
		e.attach(p)
	}
	e.SetPC(entry)
}

// Reset resets the emulator to its initial state.
func (e *Emulator) Reset() {
	e.build(NewMemoryWithOrder(e.config.Order()))
	e.instructionCount = 0
	e.SetPC(0)
}

// Step executes a single instruction.
// Returns a StepResult indicating whether execution should continue.
func (e *Emulator) Step() StepResult {
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{
			Err: fmt.Errorf("max instructions reached"),
		}
	}

	// 1. Fetch
	word := e.memory.Read32(e.pc)

	// 2. Decode
	inst := e.decoder.Decode(word)

	if e.trace {
		e.logger.WithFields(logrus.Fields{
			"pc":   fmt.Sprintf("0x%X", e.pc),
			"word": fmt.Sprintf("0x%08X", word),
			"op":   inst.Op.String(),
		}).Debug("CPU step")
	}

	// 3. Execute and write back
	result := e.execute(inst)

	e.instructionCount++

	return result
}

// Run executes instructions until the program exits or an error occurs.
// Returns the exit code (-1 if error).
func (e *Emulator) Run() int64 {
	for {
		result := e.Step()
		if result.Exited {
			return result.ExitCode
		}
		if result.Err != nil {
			e.logger.WithError(result.Err).Error("Emulation error")
			return -1
		}
	}
}

// execute reads the sources of inst, computes its result and writes it back.
func (e *Emulator) execute(inst *insts.Instruction) StepResult {
	switch inst.Op {
	case insts.OpUnknown:
		return StepResult{
			Err: fmt.Errorf("unknown instruction 0x%08X at PC=0x%X", inst.Raw, e.pc),
		}
	case insts.OpBREAK:
		return StepResult{
			Exited:   true,
			ExitCode: -1,
			Err:      fmt.Errorf("BREAK trap at PC=0x%X", e.pc),
		}
	}

	e.regFile.ReadSources(inst)

	next := e.npc + 4

	switch {
	case inst.Op == insts.OpSYSCALL:
		e.regFile.WriteDst(inst)
		e.advance(next)
		res := e.syscallHandler.Handle()
		return StepResult{Exited: res.Exited, ExitCode: res.ExitCode}

	case inst.IsBranch():
		if taken, target := e.branchUnit.Resolve(inst, e.pc); taken {
			next = target
		}

	case inst.IsLoad() || inst.IsStore():
		if err := e.lsu.Execute(inst); err != nil {
			return StepResult{Err: fmt.Errorf("%w at PC=0x%X", err, e.pc)}
		}

	default:
		if !e.alu.Execute(inst) {
			return StepResult{
				Err: fmt.Errorf("unimplemented op %v at PC=0x%X", inst.Op, e.pc),
			}
		}
	}

	e.regFile.WriteDst(inst)
	e.advance(next)

	return StepResult{}
}

// advance moves into the delay slot and queues next behind it.
func (e *Emulator) advance(next uint64) {
	e.pc = e.npc
	e.npc = next
}
