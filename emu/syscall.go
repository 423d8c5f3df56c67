// Package emu provides functional MIPS emulation.
package emu

import (
	"io"

	"github.com/sarchlab/mipssim/insts"
)

// MIPS Linux syscall numbers, o32 and n64 ABIs.
const (
	SyscallExit      uint64 = 4001
	SyscallRead      uint64 = 4003
	SyscallWrite     uint64 = 4004
	SyscallExitGroup uint64 = 4246

	SyscallRead64      uint64 = 5000
	SyscallWrite64     uint64 = 5001
	SyscallExit64      uint64 = 5058
	SyscallExitGroup64 uint64 = 5205
)

// Linux error codes.
const (
	EBADF  = 9  // Bad file descriptor
	ENOSYS = 89 // Function not implemented (MIPS numbering)
	EIO    = 5  // I/O error
)

// MaxIOSize caps the bytes moved by one read or write. Larger requests are
// served partially, as Linux does for its own transfer limit.
const MaxIOSize = 1 << 20

// SyscallResult represents the result of a syscall execution.
type SyscallResult struct {
	// Exited is true if the syscall caused program termination.
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64
}

// SyscallHandler is the interface for handling MIPS syscalls.
type SyscallHandler interface {
	// Handle executes the syscall indicated by the register file state.
	// MIPS Linux syscall convention:
	//   - Syscall number in $v0
	//   - Arguments in $a0-$a3
	//   - Return value in $v0, error flag in $a3
	Handle() SyscallResult
}

// DefaultSyscallHandler provides a basic syscall handler implementation.
type DefaultSyscallHandler struct {
	regFile *RegFile
	memory  *Memory
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

// NewDefaultSyscallHandler creates a default syscall handler.
func NewDefaultSyscallHandler(
	regFile *RegFile,
	memory *Memory,
	stdout, stderr io.Writer,
) *DefaultSyscallHandler {
	return &DefaultSyscallHandler{
		regFile: regFile,
		memory:  memory,
		stdout:  stdout,
		stderr:  stderr,
	}
}

// SetStdin sets the stdin reader for the syscall handler.
func (h *DefaultSyscallHandler) SetStdin(stdin io.Reader) {
	h.stdin = stdin
}

// Handle executes the syscall indicated by the register file state.
func (h *DefaultSyscallHandler) Handle() SyscallResult {
	switch h.regFile.ReadReg(insts.RegV0) {
	case SyscallRead, SyscallRead64:
		return h.handleRead()
	case SyscallWrite, SyscallWrite64:
		return h.handleWrite()
	case SyscallExit, SyscallExitGroup, SyscallExit64, SyscallExitGroup64:
		return h.handleExit()
	default:
		h.setError(ENOSYS)
		return SyscallResult{}
	}
}

func (h *DefaultSyscallHandler) handleExit() SyscallResult {
	return SyscallResult{
		Exited:   true,
		ExitCode: int64(int32(h.regFile.ReadReg(insts.RegA0))),
	}
}

func (h *DefaultSyscallHandler) handleRead() SyscallResult {
	fd := h.regFile.ReadReg(insts.RegA0)
	bufPtr := h.regFile.ReadReg(insts.RegA1)
	count := min(h.regFile.ReadReg(insts.RegA2), MaxIOSize)

	if fd != 0 {
		h.setError(EBADF)
		return SyscallResult{}
	}

	if h.stdin == nil {
		h.setResult(0)
		return SyscallResult{}
	}

	buf := make([]byte, count)
	n, err := h.stdin.Read(buf)
	if err != nil && n == 0 {
		h.setResult(0)
		return SyscallResult{}
	}

	h.memory.WriteBytes(bufPtr, buf[:n])
	h.setResult(uint64(n))
	return SyscallResult{}
}

func (h *DefaultSyscallHandler) handleWrite() SyscallResult {
	fd := h.regFile.ReadReg(insts.RegA0)
	bufPtr := h.regFile.ReadReg(insts.RegA1)
	count := min(h.regFile.ReadReg(insts.RegA2), MaxIOSize)

	var writer io.Writer
	switch fd {
	case 1:
		writer = h.stdout
	case 2:
		writer = h.stderr
	default:
		h.setError(EBADF)
		return SyscallResult{}
	}

	n, err := writer.Write(h.memory.ReadBytes(bufPtr, int(count)))
	if err != nil {
		h.setError(EIO)
		return SyscallResult{}
	}

	h.setResult(uint64(n))
	return SyscallResult{}
}

func (h *DefaultSyscallHandler) setResult(v uint64) {
	h.regFile.WriteReg(insts.RegV0, v)
	h.regFile.WriteReg(insts.RegA3, 0)
}

// setError reports errno in $v0 and raises the $a3 error flag.
func (h *DefaultSyscallHandler) setError(errno int) {
	h.regFile.WriteReg(insts.RegV0, uint64(errno))
	h.regFile.WriteReg(insts.RegA3, 1)
}
