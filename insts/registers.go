package insts

import "fmt"

// Register identifies one MIPS architectural register.
//
// Indices 0-31 are the general-purpose registers. RegHI and RegLO are the two
// physical halves of the multiply/divide accumulator, and RegHiLo names the
// accumulator as one logical wide register.
type Register uint8

// Register indices.
const (
	RegZero Register = 0
	RegAT   Register = 1
	RegV0   Register = 2
	RegV1   Register = 3
	RegA0   Register = 4
	RegA1   Register = 5
	RegA2   Register = 6
	RegA3   Register = 7
	RegSP   Register = 29
	RegFP   Register = 30
	RegRA   Register = 31

	RegHI   Register = 32
	RegLO   Register = 33
	RegHiLo Register = 34
)

// NumGPR is the number of general-purpose registers.
const NumGPR = 32

// MaxReg is the number of register indices, including the accumulator. The
// slot behind RegHiLo holds no state of its own.
const MaxReg = 35

var gprNames = [NumGPR]string{
	"zero", "at", "v0", "v1", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "k0", "k1", "gp", "sp", "fp", "ra",
}

// GPR returns the general-purpose register with the given number.
func GPR(n uint32) Register {
	return Register(n & 0x1F)
}

// IsZero returns true for the hardwired zero register.
func (r Register) IsZero() bool {
	return r == RegZero
}

// IsHiLo returns true if r names the whole HI/LO accumulator.
func (r Register) IsHiLo() bool {
	return r == RegHiLo
}

// IsAccumulatorHalf returns true for RegHI and RegLO.
func (r Register) IsAccumulatorHalf() bool {
	return r == RegHI || r == RegLO
}

// RangeError reports a register index that does not fit a register array.
type RangeError struct {
	Reg   Register
	Count int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("register %v out of range (%d registers)", e.Reg, e.Count)
}

// Slot converts r into a storage slot of a register array with count entries.
// It panics with a *RangeError if r does not fit.
func (r Register) Slot(count int) int {
	if int(r) >= count {
		panic(&RangeError{Reg: r, Count: count})
	}
	return int(r)
}

func (r Register) String() string {
	switch {
	case r < NumGPR:
		return "$" + gprNames[r]
	case r == RegHI:
		return "$hi"
	case r == RegLO:
		return "$lo"
	case r == RegHiLo:
		return "$hilo"
	default:
		return fmt.Sprintf("$r%d", uint8(r))
	}
}
