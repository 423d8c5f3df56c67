// Package emu provides functional MIPS emulation.
package emu

import (
	"math/bits"

	"github.com/holiman/uint256"

	"github.com/sarchlab/mipssim/arch"
	"github.com/sarchlab/mipssim/insts"
)

// ALU computes destination values for arithmetic, logic, shift and
// multiply/divide instructions. It never touches the register file; the
// operands come from, and the result goes to, the instruction.
type ALU struct {
	native     uint
	nativeMask uint64
}

// NewALU creates an ALU for the register width of config.
func NewALU(config *arch.Config) *ALU {
	return &ALU{
		native:     config.NativeWidth,
		nativeMask: ^uint64(0) >> (64 - config.NativeWidth),
	}
}

// sext32 sign-extends a 32-bit result. On 32-bit cores the register file
// truncates it back to 32 bits.
func sext32(v uint32) uint64 {
	return uint64(int64(int32(v)))
}

// signed interprets v as a signed register value.
func (a *ALU) signed(v uint64) int64 {
	if a.native == 32 {
		return int64(int32(v))
	}
	return int64(v)
}

// unsigned truncates v to the register width.
func (a *ALU) unsigned(v uint64) uint64 {
	return v & a.nativeMask
}

func boolToUint64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// packHiLo builds the value that a write to insts.RegHiLo splits back into
// hi and lo: (hi << width) | lo.
func (a *ALU) packHiLo(hi, lo uint64) uint256.Int {
	var v, l uint256.Int
	v.SetUint64(hi & a.nativeMask)
	v.Lsh(&v, a.native)
	l.SetUint64(lo & a.nativeMask)
	v.Or(&v, &l)
	return v
}

// Execute computes the destination value of inst. It returns false if inst
// is not an ALU instruction.
func (a *ALU) Execute(inst *insts.Instruction) bool {
	rs := inst.SrcValue(0)
	rt := inst.SrcValue(1)

	switch inst.Op {
	case insts.OpSLL, insts.OpSRL, insts.OpSRA,
		insts.OpSLLV, insts.OpSRLV, insts.OpSRAV:
		inst.SetDstUint64(a.shift(inst, rs, rt))

	case insts.OpADDU:
		inst.SetDstUint64(sext32(uint32(rs) + uint32(rt)))
	case insts.OpSUBU:
		inst.SetDstUint64(sext32(uint32(rs) - uint32(rt)))
	case insts.OpDADDU:
		inst.SetDstUint64(rs + rt)
	case insts.OpDSUBU:
		inst.SetDstUint64(rs - rt)
	case insts.OpAND:
		inst.SetDstUint64(rs & rt)
	case insts.OpOR:
		inst.SetDstUint64(rs | rt)
	case insts.OpXOR:
		inst.SetDstUint64(rs ^ rt)
	case insts.OpNOR:
		inst.SetDstUint64(^(rs | rt))
	case insts.OpSLT:
		inst.SetDstUint64(boolToUint64(a.signed(rs) < a.signed(rt)))
	case insts.OpSLTU:
		inst.SetDstUint64(boolToUint64(a.unsigned(rs) < a.unsigned(rt)))

	case insts.OpADDIU:
		inst.SetDstUint64(sext32(uint32(rs) + uint32(inst.Imm)))
	case insts.OpDADDIU:
		inst.SetDstUint64(rs + inst.Imm)
	case insts.OpSLTI:
		inst.SetDstUint64(boolToUint64(a.signed(rs) < a.signed(inst.Imm)))
	case insts.OpSLTIU:
		inst.SetDstUint64(boolToUint64(a.unsigned(rs) < a.unsigned(inst.Imm)))
	case insts.OpANDI:
		inst.SetDstUint64(rs & inst.Imm)
	case insts.OpORI:
		inst.SetDstUint64(rs | inst.Imm)
	case insts.OpXORI:
		inst.SetDstUint64(rs ^ inst.Imm)
	case insts.OpLUI:
		inst.SetDstUint64(inst.Imm)

	case insts.OpMFHI, insts.OpMFLO, insts.OpMTHI, insts.OpMTLO:
		inst.SetDstUint64(rs)

	default:
		return a.executeMulDiv(inst, rs, rt)
	}

	return true
}

// shift handles the six shift instructions. Variable shift amounts use only
// the low five bits, so the amount is always below the operand width.
func (a *ALU) shift(inst *insts.Instruction, rs, rt uint64) uint64 {
	amount := uint32(inst.Shamt)
	switch inst.Op {
	case insts.OpSLLV, insts.OpSRLV, insts.OpSRAV:
		amount = uint32(rs) & 0x1F
	}

	switch inst.Op {
	case insts.OpSLL, insts.OpSLLV:
		return sext32(uint32(rt) << amount)
	case insts.OpSRL, insts.OpSRLV:
		return sext32(uint32(rt) >> amount)
	default:
		return sext32(uint32(int32(uint32(rt)) >> amount))
	}
}

// executeMulDiv handles instructions that produce wide results.
//
// MULT, DIV and their variants pack HI above LO at register width. The
// accumulating MADD/MSUB family hands the register file the plain 64-bit
// product, which it folds into the accumulator itself.
func (a *ALU) executeMulDiv(inst *insts.Instruction, rs, rt uint64) bool {
	switch inst.Op {
	case insts.OpMUL:
		inst.SetDstUint64(sext32(uint32(int32(rs) * int32(rt))))

	case insts.OpMULT:
		prod := int64(int32(rs)) * int64(int32(rt))
		inst.SetDstValue(a.packHiLo(sext32(uint32(prod>>32)), sext32(uint32(prod))))
	case insts.OpMULTU:
		prod := uint64(uint32(rs)) * uint64(uint32(rt))
		inst.SetDstValue(a.packHiLo(sext32(uint32(prod>>32)), sext32(uint32(prod))))

	case insts.OpDIV:
		if int32(rt) == 0 {
			inst.CancelWrite()
			break
		}
		quot := int32(rs) / int32(rt)
		rem := int32(rs) % int32(rt)
		inst.SetDstValue(a.packHiLo(sext32(uint32(rem)), sext32(uint32(quot))))
	case insts.OpDIVU:
		if uint32(rt) == 0 {
			inst.CancelWrite()
			break
		}
		quot := uint32(rs) / uint32(rt)
		rem := uint32(rs) % uint32(rt)
		inst.SetDstValue(a.packHiLo(sext32(rem), sext32(quot)))

	case insts.OpDMULT:
		hi, lo := bits.Mul64(rs, rt)
		if int64(rs) < 0 {
			hi -= rt
		}
		if int64(rt) < 0 {
			hi -= rs
		}
		inst.SetDstValue(a.packHiLo(hi, lo))
	case insts.OpDMULTU:
		hi, lo := bits.Mul64(rs, rt)
		inst.SetDstValue(a.packHiLo(hi, lo))

	case insts.OpMADD, insts.OpMSUB:
		inst.SetDstUint64(uint64(int64(int32(rs)) * int64(int32(rt))))
	case insts.OpMADDU, insts.OpMSUBU:
		inst.SetDstUint64(uint64(uint32(rs)) * uint64(uint32(rt)))

	default:
		return false
	}

	return true
}
