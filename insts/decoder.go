// Package insts provides MIPS instruction definitions and decoding.
package insts

import "github.com/holiman/uint256"

// Op represents a MIPS opcode.
type Op uint16

// MIPS opcodes.
const (
	OpUnknown Op = iota

	// Shifts
	OpSLL
	OpSRL
	OpSRA
	OpSLLV
	OpSRLV
	OpSRAV

	// Register ALU
	OpADDU
	OpSUBU
	OpAND
	OpOR
	OpXOR
	OpNOR
	OpSLT
	OpSLTU
	OpDADDU
	OpDSUBU

	// Immediate ALU
	OpADDIU
	OpDADDIU
	OpSLTI
	OpSLTIU
	OpANDI
	OpORI
	OpXORI
	OpLUI

	// HI/LO
	OpMFHI
	OpMTHI
	OpMFLO
	OpMTLO
	OpMULT
	OpMULTU
	OpDIV
	OpDIVU
	OpDMULT
	OpDMULTU
	OpMADD
	OpMADDU
	OpMSUB
	OpMSUBU
	OpMUL

	// Branches and jumps
	OpBEQ
	OpBNE
	OpBLEZ
	OpBGTZ
	OpJ
	OpJAL
	OpJR
	OpJALR

	// Loads and stores
	OpLB
	OpLBU
	OpLH
	OpLHU
	OpLW
	OpLWU
	OpLD
	OpSB
	OpSH
	OpSW
	OpSD

	// System
	OpSYSCALL
	OpBREAK
)

var opNames = map[Op]string{
	OpUnknown: "unknown",
	OpSLL:     "sll", OpSRL: "srl", OpSRA: "sra",
	OpSLLV: "sllv", OpSRLV: "srlv", OpSRAV: "srav",
	OpADDU: "addu", OpSUBU: "subu", OpAND: "and", OpOR: "or",
	OpXOR: "xor", OpNOR: "nor", OpSLT: "slt", OpSLTU: "sltu",
	OpDADDU: "daddu", OpDSUBU: "dsubu",
	OpADDIU: "addiu", OpDADDIU: "daddiu", OpSLTI: "slti", OpSLTIU: "sltiu",
	OpANDI: "andi", OpORI: "ori", OpXORI: "xori", OpLUI: "lui",
	OpMFHI: "mfhi", OpMTHI: "mthi", OpMFLO: "mflo", OpMTLO: "mtlo",
	OpMULT: "mult", OpMULTU: "multu", OpDIV: "div", OpDIVU: "divu",
	OpDMULT: "dmult", OpDMULTU: "dmultu",
	OpMADD: "madd", OpMADDU: "maddu", OpMSUB: "msub", OpMSUBU: "msubu",
	OpMUL: "mul",
	OpBEQ: "beq", OpBNE: "bne", OpBLEZ: "blez", OpBGTZ: "bgtz",
	OpJ: "j", OpJAL: "jal", OpJR: "jr", OpJALR: "jalr",
	OpLB: "lb", OpLBU: "lbu", OpLH: "lh", OpLHU: "lhu", OpLW: "lw",
	OpLWU: "lwu", OpLD: "ld", OpSB: "sb", OpSH: "sh", OpSW: "sw", OpSD: "sd",
	OpSYSCALL: "syscall", OpBREAK: "break",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "unknown"
}

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // Register (SPECIAL and SPECIAL2)
	FormatI              // Immediate
	FormatJ              // Jump
)

// AccumulateMode tells the register file how a destination write combines
// with the current HI/LO accumulator.
type AccumulateMode int8

// Accumulate modes.
const (
	AccumulateSub  AccumulateMode = -1
	AccumulateNone AccumulateMode = 0
	AccumulateAdd  AccumulateMode = 1
)

func (m AccumulateMode) String() string {
	switch m {
	case AccumulateNone:
		return "none"
	case AccumulateAdd:
		return "add"
	case AccumulateSub:
		return "sub"
	default:
		return "invalid"
	}
}

// Instruction represents a decoded MIPS instruction. It also carries the
// operand values read from, and the result written to, the register file.
type Instruction struct {
	Op     Op     // Operation code
	Format Format // Encoding format
	Raw    uint32 // Encoded instruction word

	// Encoded register fields
	Rs    Register
	Rt    Register
	Rd    Register
	Shamt uint8

	// Imm is the immediate, already sign- or zero-extended as the opcode requires.
	Imm uint64

	// BranchOffset is the signed branch offset in bytes, relative to PC+4.
	BranchOffset int64

	// Target is the jump target within the current 256MB region.
	Target uint64

	src       [2]Register
	srcVal    [2]uint256.Int
	dst       Register
	writesDst bool
	dstVal    uint256.Int
	acc       AccumulateMode
}

// SrcNum returns the register read by the given source slot (0 or 1).
func (i *Instruction) SrcNum(slot int) Register {
	return i.src[slot]
}

// SetSrcValue stores the value read for the given source slot.
func (i *Instruction) SetSrcValue(slot int, v uint256.Int) {
	i.srcVal[slot] = v
}

// SrcValue returns the low 64 bits of the value read for the given slot.
func (i *Instruction) SrcValue(slot int) uint64 {
	return i.srcVal[slot].Uint64()
}

// DstNum returns the destination register.
func (i *Instruction) DstNum() Register {
	return i.dst
}

// WritesDst returns true if the instruction writes its destination.
func (i *Instruction) WritesDst() bool {
	return i.writesDst
}

// DstValue returns the computed destination value.
func (i *Instruction) DstValue() uint256.Int {
	return i.dstVal
}

// SetDstValue sets the computed destination value.
func (i *Instruction) SetDstValue(v uint256.Int) {
	i.dstVal = v
}

// SetDstUint64 sets the computed destination value from a 64-bit word.
func (i *Instruction) SetDstUint64(v uint64) {
	i.dstVal.SetUint64(v)
}

// CancelWrite turns the instruction into one that does not write its
// destination. Division by zero uses this to leave HI/LO untouched.
func (i *Instruction) CancelWrite() {
	i.writesDst = false
}

// AccumulateMode returns how the destination write combines with HI/LO.
func (i *Instruction) AccumulateMode() AccumulateMode {
	return i.acc
}

// IsBranch returns true for conditional branches and jumps.
func (i *Instruction) IsBranch() bool {
	switch i.Op {
	case OpBEQ, OpBNE, OpBLEZ, OpBGTZ, OpJ, OpJAL, OpJR, OpJALR:
		return true
	}
	return false
}

// IsLoad returns true for memory loads.
func (i *Instruction) IsLoad() bool {
	switch i.Op {
	case OpLB, OpLBU, OpLH, OpLHU, OpLW, OpLWU, OpLD:
		return true
	}
	return false
}

// IsStore returns true for memory stores.
func (i *Instruction) IsStore() bool {
	switch i.Op {
	case OpSB, OpSH, OpSW, OpSD:
		return true
	}
	return false
}

// Decoder decodes MIPS machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new MIPS instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Primary opcodes (bits [31:26]).
const (
	opcSpecial  = 0x00
	opcJ        = 0x02
	opcJAL      = 0x03
	opcBEQ      = 0x04
	opcBNE      = 0x05
	opcBLEZ     = 0x06
	opcBGTZ     = 0x07
	opcADDIU    = 0x09
	opcSLTI     = 0x0A
	opcSLTIU    = 0x0B
	opcANDI     = 0x0C
	opcORI      = 0x0D
	opcXORI     = 0x0E
	opcLUI      = 0x0F
	opcDADDIU   = 0x19
	opcSpecial2 = 0x1C
	opcLB       = 0x20
	opcLH       = 0x21
	opcLW       = 0x23
	opcLBU      = 0x24
	opcLHU      = 0x25
	opcLWU      = 0x27
	opcSB       = 0x28
	opcSH       = 0x29
	opcSW       = 0x2B
	opcLD       = 0x37
	opcSD       = 0x3F
)

var specialOps = map[uint32]Op{
	0x00: OpSLL, 0x02: OpSRL, 0x03: OpSRA,
	0x04: OpSLLV, 0x06: OpSRLV, 0x07: OpSRAV,
	0x08: OpJR, 0x09: OpJALR,
	0x0C: OpSYSCALL, 0x0D: OpBREAK,
	0x10: OpMFHI, 0x11: OpMTHI, 0x12: OpMFLO, 0x13: OpMTLO,
	0x18: OpMULT, 0x19: OpMULTU, 0x1A: OpDIV, 0x1B: OpDIVU,
	0x1C: OpDMULT, 0x1D: OpDMULTU,
	0x21: OpADDU, 0x23: OpSUBU, 0x24: OpAND, 0x25: OpOR,
	0x26: OpXOR, 0x27: OpNOR, 0x2A: OpSLT, 0x2B: OpSLTU,
	0x2D: OpDADDU, 0x2F: OpDSUBU,
}

var special2Ops = map[uint32]Op{
	0x00: OpMADD, 0x01: OpMADDU, 0x02: OpMUL, 0x04: OpMSUB, 0x05: OpMSUBU,
}

var immOps = map[uint32]Op{
	opcBEQ: OpBEQ, opcBNE: OpBNE, opcBLEZ: OpBLEZ, opcBGTZ: OpBGTZ,
	opcADDIU: OpADDIU, opcSLTI: OpSLTI, opcSLTIU: OpSLTIU,
	opcANDI: OpANDI, opcORI: OpORI, opcXORI: OpXORI, opcLUI: OpLUI,
	opcDADDIU: OpDADDIU,
	opcLB: OpLB, opcLH: OpLH, opcLW: OpLW, opcLBU: OpLBU, opcLHU: OpLHU,
	opcLWU: OpLWU, opcLD: OpLD,
	opcSB: OpSB, opcSH: OpSH, opcSW: OpSW, opcSD: OpSD,
}

// Decode decodes a 32-bit MIPS instruction word.
// Unrecognised words decode to OpUnknown, which reads and writes nothing.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{Op: OpUnknown, Format: FormatUnknown, Raw: word}

	opcode := word >> 26 // bits [31:26]
	inst.Rs = GPR(word >> 21)
	inst.Rt = GPR(word >> 16)
	inst.Rd = GPR(word >> 11)
	inst.Shamt = uint8((word >> 6) & 0x1F)

	switch opcode {
	case opcSpecial:
		d.decodeSpecial(word, inst)
	case opcSpecial2:
		d.decodeSpecial2(word, inst)
	case opcJ, opcJAL:
		d.decodeJump(word, inst)
	default:
		d.decodeImm(word, inst)
	}

	return inst
}

// decodeSpecial decodes SPECIAL (opcode 0) register instructions.
// Format: 000000 | rs | rt | rd | shamt | funct
func (d *Decoder) decodeSpecial(word uint32, inst *Instruction) {
	op, ok := specialOps[word&0x3F]
	if !ok {
		return
	}
	inst.Op = op
	inst.Format = FormatR
	inst.src = [2]Register{inst.Rs, inst.Rt}

	switch op {
	case OpJR:
		inst.src[1] = RegZero
	case OpJALR:
		inst.src[1] = RegZero
		inst.setDst(inst.Rd)
	case OpSYSCALL, OpBREAK:
		inst.src = [2]Register{}
	case OpMFHI:
		inst.src = [2]Register{RegHI, RegZero}
		inst.setDst(inst.Rd)
	case OpMFLO:
		inst.src = [2]Register{RegLO, RegZero}
		inst.setDst(inst.Rd)
	case OpMTHI:
		inst.src[1] = RegZero
		inst.setDst(RegHI)
	case OpMTLO:
		inst.src[1] = RegZero
		inst.setDst(RegLO)
	case OpMULT, OpMULTU, OpDIV, OpDIVU, OpDMULT, OpDMULTU:
		inst.setDst(RegHiLo)
	default:
		inst.setDst(inst.Rd)
	}
}

// decodeSpecial2 decodes SPECIAL2 (opcode 0x1C) instructions.
// Format: 011100 | rs | rt | rd | 00000 | funct
func (d *Decoder) decodeSpecial2(word uint32, inst *Instruction) {
	op, ok := special2Ops[word&0x3F]
	if !ok {
		return
	}
	inst.Op = op
	inst.Format = FormatR
	inst.src = [2]Register{inst.Rs, inst.Rt}

	switch op {
	case OpMUL:
		inst.setDst(inst.Rd)
	case OpMADD, OpMADDU:
		inst.setDst(RegHiLo)
		inst.acc = AccumulateAdd
	case OpMSUB, OpMSUBU:
		inst.setDst(RegHiLo)
		inst.acc = AccumulateSub
	}
}

// decodeJump decodes J and JAL.
// Format: opcode | target(26)
func (d *Decoder) decodeJump(word uint32, inst *Instruction) {
	inst.Format = FormatJ
	inst.Target = uint64(word&0x3FFFFFF) << 2

	if word>>26 == opcJ {
		inst.Op = OpJ
		return
	}
	inst.Op = OpJAL
	inst.setDst(RegRA)
}

// decodeImm decodes I-type instructions.
// Format: opcode | rs | rt | imm16
func (d *Decoder) decodeImm(word uint32, inst *Instruction) {
	opcode := word >> 26
	op, ok := immOps[opcode]
	if !ok {
		return
	}
	inst.Op = op
	inst.Format = FormatI

	imm16 := word & 0xFFFF
	signed := uint64(int64(int16(imm16)))

	switch op {
	case OpANDI, OpORI, OpXORI:
		inst.Imm = uint64(imm16)
	case OpLUI:
		inst.Imm = uint64(int64(int32(imm16 << 16)))
	default:
		inst.Imm = signed
	}

	inst.src = [2]Register{inst.Rs, RegZero}

	switch {
	case op == OpBEQ || op == OpBNE:
		inst.src[1] = inst.Rt
		inst.BranchOffset = int64(signed) << 2
	case op == OpBLEZ || op == OpBGTZ:
		inst.BranchOffset = int64(signed) << 2
	case op == OpLUI:
		inst.src[0] = RegZero
		inst.setDst(inst.Rt)
	case inst.IsStore():
		inst.src[1] = inst.Rt
	default:
		inst.setDst(inst.Rt)
	}
}

func (i *Instruction) setDst(r Register) {
	i.dst = r
	i.writesDst = true
}
