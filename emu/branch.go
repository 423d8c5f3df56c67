// Package emu provides functional MIPS emulation.
package emu

import (
	"github.com/sarchlab/mipssim/arch"
	"github.com/sarchlab/mipssim/insts"
)

// BranchUnit resolves MIPS branches and jumps. Targets are computed relative
// to the delay slot, and linking instructions receive the address after it.
type BranchUnit struct {
	alu      *ALU
	addrMask uint64
}

// NewBranchUnit creates a new BranchUnit.
func NewBranchUnit(config *arch.Config, alu *ALU) *BranchUnit {
	return &BranchUnit{
		alu:      alu,
		addrMask: ^uint64(0) >> (64 - config.NativeWidth),
	}
}

// Resolve evaluates the branch at pc. It returns whether control transfers
// and where to. For JAL and JALR it also sets the link value on inst.
func (b *BranchUnit) Resolve(inst *insts.Instruction, pc uint64) (bool, uint64) {
	rs := inst.SrcValue(0)
	rt := inst.SrcValue(1)
	slot := (pc + 4) & b.addrMask

	switch inst.Op {
	case insts.OpJ:
		return true, (slot &^ 0x0FFFFFFF) | inst.Target
	case insts.OpJAL:
		inst.SetDstUint64((pc + 8) & b.addrMask)
		return true, (slot &^ 0x0FFFFFFF) | inst.Target
	case insts.OpJR:
		return true, rs & b.addrMask
	case insts.OpJALR:
		inst.SetDstUint64((pc + 8) & b.addrMask)
		return true, rs & b.addrMask
	}

	target := uint64(int64(slot)+inst.BranchOffset) & b.addrMask

	var taken bool
	switch inst.Op {
	case insts.OpBEQ:
		taken = b.alu.unsigned(rs) == b.alu.unsigned(rt)
	case insts.OpBNE:
		taken = b.alu.unsigned(rs) != b.alu.unsigned(rt)
	case insts.OpBLEZ:
		taken = b.alu.signed(rs) <= 0
	case insts.OpBGTZ:
		taken = b.alu.signed(rs) > 0
	}

	return taken, target
}
