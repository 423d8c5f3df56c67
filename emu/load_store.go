// Package emu provides functional MIPS emulation.
package emu

import (
	"fmt"

	"github.com/sarchlab/mipssim/arch"
	"github.com/sarchlab/mipssim/insts"
)

// LoadStoreUnit implements MIPS load and store operations. Loads leave the
// loaded value in the instruction for write-back; stores write memory
// directly.
type LoadStoreUnit struct {
	memory   *Memory
	addrMask uint64
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given memory.
func NewLoadStoreUnit(config *arch.Config, memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{
		memory:   memory,
		addrMask: ^uint64(0) >> (64 - config.NativeWidth),
	}
}

func accessSize(op insts.Op) uint64 {
	switch op {
	case insts.OpLB, insts.OpLBU, insts.OpSB:
		return 1
	case insts.OpLH, insts.OpLHU, insts.OpSH:
		return 2
	case insts.OpLW, insts.OpLWU, insts.OpSW:
		return 4
	default:
		return 8
	}
}

// Execute performs the memory access of inst. It returns an error for an
// unaligned address.
func (lsu *LoadStoreUnit) Execute(inst *insts.Instruction) error {
	addr := (inst.SrcValue(0) + inst.Imm) & lsu.addrMask
	size := accessSize(inst.Op)

	if addr%size != 0 {
		return fmt.Errorf("unaligned %v access to 0x%X", inst.Op, addr)
	}

	value := inst.SrcValue(1)

	switch inst.Op {
	case insts.OpLB:
		inst.SetDstUint64(uint64(int64(int8(lsu.memory.Read8(addr)))))
	case insts.OpLBU:
		inst.SetDstUint64(uint64(lsu.memory.Read8(addr)))
	case insts.OpLH:
		inst.SetDstUint64(uint64(int64(int16(lsu.memory.Read16(addr)))))
	case insts.OpLHU:
		inst.SetDstUint64(uint64(lsu.memory.Read16(addr)))
	case insts.OpLW:
		inst.SetDstUint64(sext32(lsu.memory.Read32(addr)))
	case insts.OpLWU:
		inst.SetDstUint64(uint64(lsu.memory.Read32(addr)))
	case insts.OpLD:
		inst.SetDstUint64(lsu.memory.Read64(addr))
	case insts.OpSB:
		lsu.memory.Write8(addr, uint8(value))
	case insts.OpSH:
		lsu.memory.Write16(addr, uint16(value))
	case insts.OpSW:
		lsu.memory.Write32(addr, uint32(value))
	case insts.OpSD:
		lsu.memory.Write64(addr, value)
	default:
		return fmt.Errorf("%v is not a memory instruction", inst.Op)
	}

	return nil
}
