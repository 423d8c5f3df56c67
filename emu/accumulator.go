package emu

import (
	"github.com/holiman/uint256"

	"github.com/sarchlab/mipssim/insts"
)

// accumulator is the HI/LO behaviour that depends on whether destination
// values are wider than a register. NewRegFile picks one implementation.
type accumulator interface {
	readHiLo(lane32 bool) uint256.Int
	hiPart(val *uint256.Int) uint256.Int
}

// wideAccumulator serves configurations whose destination values span HI
// and LO.
type wideAccumulator struct {
	rf      *RegFile
	native  uint
	dstMask uint256.Int
}

func (a *wideAccumulator) readHiLo(lane32 bool) uint256.Int {
	hi := a.rf.read(insts.RegHI)
	lo := a.rf.read(insts.RegLO)

	if lane32 {
		lo.And(&lo, mask32)
		hi.Lsh(&hi, 32)
		hi.Or(&hi, &lo)
		hi.And(&hi, mask64)
		return hi
	}

	lo.And(&lo, &a.rf.nativeMask)
	hi.Lsh(&hi, a.native)
	hi.Or(&hi, &lo)
	hi.And(&hi, &a.dstMask)

	return hi
}

func (a *wideAccumulator) hiPart(val *uint256.Int) uint256.Int {
	var hi uint256.Int
	hi.Rsh(val, a.native)
	return hi
}

// narrowAccumulator serves configurations where a destination value fits in
// one register. HI/LO cannot be reassembled, so accumulation is illegal.
type narrowAccumulator struct{}

func (narrowAccumulator) readHiLo(bool) uint256.Int {
	violate("HI/LO cannot be read as one value without a wide destination")
	return uint256.Int{}
}

func (narrowAccumulator) hiPart(*uint256.Int) uint256.Int {
	return uint256.Int{}
}
