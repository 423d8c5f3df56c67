// Package insts provides MIPS instruction definitions and decoding.
//
// This package implements decoding of MIPS machine code into structured
// instruction representations that double as the instruction view consumed
// by the register file. It supports:
//   - ALU instructions (register and immediate forms, 32- and 64-bit)
//   - Multiply/divide instructions that target the HI/LO accumulator
//   - Accumulating multiply instructions: MADD, MADDU, MSUB, MSUBU
//   - Loads, stores, branches, jumps and SYSCALL
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x24020005) // ADDIU $v0, $zero, 5
//	fmt.Printf("Op: %v, Dst: %v, Src: %v\n", inst.Op, inst.DstNum(), inst.SrcNum(0))
package insts
