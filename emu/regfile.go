// Package emu provides functional MIPS emulation.
package emu

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/mipssim/arch"
	"github.com/sarchlab/mipssim/insts"
)

// Hook positions reported by the register file.
var (
	// HookPosRegRead marks a register read.
	HookPosRegRead = &sim.HookPos{Name: "RegFile Read"}
	// HookPosRegWrite marks a value stored into a register slot.
	HookPosRegWrite = &sim.HookPos{Name: "RegFile Write"}
	// HookPosRegDiscard marks a write to the zero register.
	HookPosRegDiscard = &sim.HookPos{Name: "RegFile Discard"}
	// HookPosRegTouch marks a write-back that did not change any register.
	HookPosRegTouch = &sim.HookPos{Name: "RegFile Touch"}
)

// Access is the item carried by register file hooks.
type Access struct {
	Reg   insts.Register
	Value uint256.Int
	Mode  insts.AccumulateMode
}

// ContractViolation is the panic value raised when the register file is used
// in a way the ISA does not allow. It is a simulator bug, not a guest error.
type ContractViolation struct {
	Reason string
}

func (e *ContractViolation) Error() string {
	return "register file contract violation: " + e.Reason
}

func violate(format string, args ...interface{}) {
	panic(&ContractViolation{Reason: fmt.Sprintf(format, args...)})
}

// InstructionView is the part of an instruction the register file reads
// operands into and takes results from.
type InstructionView interface {
	SrcNum(slot int) insts.Register
	SetSrcValue(slot int, v uint256.Int)
	DstNum() insts.Register
	WritesDst() bool
	DstValue() uint256.Int
	AccumulateMode() insts.AccumulateMode
}

// RegFileStats counts register file traffic.
type RegFileStats struct {
	Reads       uint64
	Writes      uint64
	Discarded   uint64
	Accumulates uint64
	Touches     uint64
}

var (
	mask32 = uint256.NewInt(0xFFFFFFFF)
	mask64 = uint256.NewInt(^uint64(0))
)

// widthMask returns a value with the low w bits set.
func widthMask(w uint) uint256.Int {
	var m uint256.Int
	m.Lsh(uint256.NewInt(1), w)
	m.Sub(&m, uint256.NewInt(1))
	return m
}

// RegFile holds the architectural registers of one MIPS context.
//
// Register 0 always reads as zero. HI and LO are two ordinary slots that can
// also be written together through insts.RegHiLo, and read back together
// through ReadHiLo when the configuration has a wide destination.
type RegFile struct {
	sim.HookableBase

	config     *arch.Config
	slots      []uint256.Int
	nativeMask uint256.Int
	acc        accumulator
	stats      RegFileStats
}

// NewRegFile creates a zeroed register file shaped by config. It panics if
// config does not validate.
func NewRegFile(config *arch.Config) *RegFile {
	if err := config.Validate(); err != nil {
		violate("invalid config: %v", err)
	}

	r := &RegFile{
		config:     config.Clone(),
		slots:      make([]uint256.Int, config.Registers),
		nativeMask: widthMask(config.NativeWidth),
	}

	if config.HasWideDst() {
		r.acc = &wideAccumulator{
			rf:      r,
			native:  config.NativeWidth,
			dstMask: widthMask(config.DstWidth),
		}
	} else {
		r.acc = narrowAccumulator{}
	}

	return r
}

// Config returns a copy of the configuration the register file was built with.
func (r *RegFile) Config() *arch.Config {
	return r.config.Clone()
}

// HasWideDst returns true if HI/LO can be read back as one value.
func (r *RegFile) HasWideDst() bool {
	return r.config.HasWideDst()
}

// Stats returns the traffic counters.
func (r *RegFile) Stats() RegFileStats {
	return r.stats
}

// Snapshot returns a copy of every register slot, indexed by register
// number. The slot at insts.RegHiLo is reserved: writes to the accumulator
// land in HI and LO, so it always reads as zero.
func (r *RegFile) Snapshot() []uint256.Int {
	out := make([]uint256.Int, len(r.slots))
	copy(out, r.slots)
	return out
}

// Read returns the value of reg. The logical accumulator insts.RegHiLo cannot
// be read this way; use ReadHiLo.
func (r *RegFile) Read(reg insts.Register) uint256.Int {
	if reg.IsHiLo() {
		violate("%v must be read through ReadHiLo", reg)
	}
	return r.read(reg)
}

// ReadReg returns the low 64 bits of reg.
func (r *RegFile) ReadReg(reg insts.Register) uint64 {
	v := r.Read(reg)
	return v.Uint64()
}

// WriteReg writes a 64-bit value to reg, truncated to the register width.
func (r *RegFile) WriteReg(reg insts.Register, value uint64) {
	r.Write(reg, *uint256.NewInt(value), insts.AccumulateNone)
}

// ReadHiLo reassembles HI and LO into one value. With lane32 set the halves
// are taken as 32-bit lanes, as accumulating multiplies use them; otherwise
// HI sits above a full register width of LO. It panics if the configuration
// has no wide destination.
func (r *RegFile) ReadHiLo(lane32 bool) uint256.Int {
	return r.acc.readHiLo(lane32)
}

// Write is the single mutation path of the register file.
//
// Writes to register 0 are dropped. An accumulating mode first combines val
// with the current HI/LO value. A write to insts.RegHiLo is split and stored
// into HI and LO. Anything else is stored as is, truncated to the register
// width.
func (r *RegFile) Write(
	reg insts.Register,
	val uint256.Int,
	mode insts.AccumulateMode,
) {
	if reg.IsZero() {
		r.stats.Discarded++
		r.invoke(HookPosRegDiscard, reg, val, mode)
		return
	}

	accumulating := mode != insts.AccumulateNone
	if accumulating {
		val = r.accumulate(val, mode)
	}

	if !reg.IsHiLo() {
		r.store(reg, val)
		return
	}

	var hi, lo uint256.Int
	if accumulating {
		lo.And(&val, mask32)
		hi.Rsh(&val, 32)
		hi.And(&hi, mask32)
	} else {
		hi = r.acc.hiPart(&val)
		lo = val
	}

	r.store(insts.RegHI, hi)
	r.store(insts.RegLO, lo)
}

// ReadSource reads the register named by the given source slot of inst into
// the matching operand of inst.
func (r *RegFile) ReadSource(inst InstructionView, slot int) {
	inst.SetSrcValue(slot, r.Read(inst.SrcNum(slot)))
}

// ReadSources reads both source operands of inst, slot 0 first.
func (r *RegFile) ReadSources(inst InstructionView) {
	r.ReadSource(inst, 0)
	r.ReadSource(inst, 1)
}

// WriteDst commits the result of inst.
//
// Instructions that do not write, or that write register 0, still touch
// their destination once so that hooks see exactly one write-back per
// instruction. The touch never changes register state.
func (r *RegFile) WriteDst(inst InstructionView) {
	reg := inst.DstNum()
	mode := inst.AccumulateMode()

	if inst.WritesDst() && !reg.IsZero() {
		r.Write(reg, inst.DstValue(), mode)
		return
	}

	r.touch(reg, mode)
}

func (r *RegFile) touch(reg insts.Register, mode insts.AccumulateMode) {
	var v uint256.Int

	if reg.IsHiLo() {
		r.read(insts.RegHI)
		r.read(insts.RegLO)
	} else {
		v = r.read(reg)
	}

	if mode != insts.AccumulateNone {
		r.acc.readHiLo(true)
	}

	r.stats.Touches++
	r.invoke(HookPosRegTouch, reg, v, mode)
}

// accumulate folds a product into the 64-bit accumulate lane and combines it
// with the current HI/LO value.
func (r *RegFile) accumulate(
	val uint256.Int,
	mode insts.AccumulateMode,
) uint256.Int {
	cur := r.acc.readHiLo(true)
	folded := r.fold(&val)

	switch mode {
	case insts.AccumulateAdd:
		cur.Add(&cur, &folded)
	case insts.AccumulateSub:
		cur.Sub(&cur, &folded)
	default:
		violate("unknown accumulate mode %d", mode)
	}

	r.stats.Accumulates++

	return *cur.And(&cur, mask64)
}

// fold packs the low register word of val and the register word above it
// into 32-bit lanes: (hi << 32) | lo, truncated to 64 bits.
func (r *RegFile) fold(val *uint256.Int) uint256.Int {
	var hi, lo uint256.Int

	lo.And(val, &r.nativeMask)
	hi.Rsh(val, r.config.NativeWidth)
	hi.And(&hi, &r.nativeMask)
	hi.Lsh(&hi, 32)
	hi.Or(&hi, &lo)
	hi.And(&hi, mask64)

	return hi
}

func (r *RegFile) read(reg insts.Register) uint256.Int {
	v := r.slots[reg.Slot(len(r.slots))]

	r.stats.Reads++
	r.invoke(HookPosRegRead, reg, v, insts.AccumulateNone)

	return v
}

func (r *RegFile) store(reg insts.Register, val uint256.Int) {
	slot := reg.Slot(len(r.slots))
	val.And(&val, &r.nativeMask)
	r.slots[slot] = val

	r.stats.Writes++
	r.invoke(HookPosRegWrite, reg, val, insts.AccumulateNone)
}

func (r *RegFile) invoke(
	pos *sim.HookPos,
	reg insts.Register,
	val uint256.Int,
	mode insts.AccumulateMode,
) {
	if r.NumHooks() == 0 {
		return
	}

	r.InvokeHook(sim.HookCtx{
		Domain: r,
		Pos:    pos,
		Item:   Access{Reg: reg, Value: val, Mode: mode},
	})
}
