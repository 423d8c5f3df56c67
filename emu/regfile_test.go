package emu_test

import (
	"github.com/holiman/uint256"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/mipssim/arch"
	"github.com/sarchlab/mipssim/emu"
	"github.com/sarchlab/mipssim/insts"
)

func u(v uint64) uint256.Int {
	return *uint256.NewInt(v)
}

// wide builds (hi << 64) | lo.
func wide(hi, lo uint64) uint256.Int {
	return uint256.Int{lo, hi, 0, 0}
}

// fakeInst is a minimal instruction view.
type fakeInst struct {
	src    [2]insts.Register
	srcVal [2]uint256.Int
	dst    insts.Register
	writes bool
	val    uint256.Int
	mode   insts.AccumulateMode
}

func (f *fakeInst) SrcNum(slot int) insts.Register       { return f.src[slot] }
func (f *fakeInst) SetSrcValue(slot int, v uint256.Int)  { f.srcVal[slot] = v }
func (f *fakeInst) DstNum() insts.Register               { return f.dst }
func (f *fakeInst) WritesDst() bool                      { return f.writes }
func (f *fakeInst) DstValue() uint256.Int                { return f.val }
func (f *fakeInst) AccumulateMode() insts.AccumulateMode { return f.mode }

type recordingHook struct {
	events []sim.HookCtx
}

func (h *recordingHook) Func(ctx sim.HookCtx) {
	h.events = append(h.events, ctx)
}

func (h *recordingHook) count(pos *sim.HookPos) int {
	n := 0
	for _, e := range h.events {
		if e.Pos == pos {
			n++
		}
	}
	return n
}

func (h *recordingHook) regs(pos *sim.HookPos) []insts.Register {
	var out []insts.Register
	for _, e := range h.events {
		if e.Pos == pos {
			out = append(out, e.Item.(emu.Access).Reg)
		}
	}
	return out
}

func expectViolation(f func()) {
	Expect(f).To(PanicWith(BeAssignableToTypeOf(&emu.ContractViolation{})))
}

var _ = Describe("RegFile", func() {
	// The 32 registers are the general purpose ones. HI, LO and the
	// reserved HI/LO slot bring the file to insts.MaxReg slots.
	Describe("Scenario: 32 registers, 32-bit words, 64-bit accumulator", func() {
		var rf *emu.RegFile

		BeforeEach(func() {
			rf = emu.NewRegFile(arch.MIPS32())
		})

		It("should read back an ordinary register", func() {
			rf.Write(3, u(5), insts.AccumulateNone)
			Expect(rf.Read(3)).To(Equal(u(5)))
		})

		It("should keep register 0 at zero", func() {
			rf.Write(insts.RegZero, u(0xDEAD), insts.AccumulateNone)
			Expect(rf.Read(insts.RegZero)).To(Equal(u(0)))
		})

		It("should split an accumulator write into HI and LO", func() {
			rf.Write(insts.RegHiLo, u(0x1_FFFFFFFF), insts.AccumulateNone)

			Expect(rf.Read(insts.RegHI)).To(Equal(u(0x1)))
			Expect(rf.Read(insts.RegLO)).To(Equal(u(0xFFFFFFFF)))
		})
	})

	Describe("plain registers", func() {
		It("should round-trip every non-zero register on a 32-bit core", func() {
			rf := emu.NewRegFile(arch.MIPS32())
			for r := insts.Register(1); r <= insts.RegLO; r++ {
				for _, v := range []uint64{0, 1, 0x7FFFFFFF, 0x80000000, 0xFFFFFFFF} {
					rf.Write(r, u(v), insts.AccumulateNone)
					Expect(rf.Read(r)).To(Equal(u(v)), "register %v", r)
				}
			}
		})

		It("should round-trip every non-zero register on a 64-bit core", func() {
			rf := emu.NewRegFile(arch.MIPS64())
			for r := insts.Register(1); r <= insts.RegLO; r++ {
				for _, v := range []uint64{1, 0xFFFFFFFF_00000000, ^uint64(0)} {
					rf.Write(r, u(v), insts.AccumulateNone)
					Expect(rf.ReadReg(r)).To(Equal(v), "register %v", r)
				}
			}
		})

		It("should truncate values to the register width", func() {
			rf := emu.NewRegFile(arch.MIPS32())
			rf.WriteReg(3, 0x1_0000_0005)
			Expect(rf.ReadReg(3)).To(Equal(uint64(5)))
		})

		It("should keep register 0 at zero whatever the prior state", func() {
			rf := emu.NewRegFile(arch.MIPS64())
			rf.WriteReg(1, 42)
			rf.Write(insts.RegHiLo, wide(3, 4), insts.AccumulateNone)

			for _, mode := range []insts.AccumulateMode{
				insts.AccumulateNone, insts.AccumulateAdd, insts.AccumulateSub,
			} {
				rf.Write(insts.RegZero, u(0xFFFF), mode)
				Expect(rf.Read(insts.RegZero)).To(Equal(u(0)))
			}
			Expect(rf.ReadReg(insts.RegHI)).To(Equal(uint64(3)))
		})

		It("should drop zero-register writes even on a narrow core", func() {
			rf := emu.NewRegFile(arch.MIPS32Narrow())
			Expect(func() {
				rf.Write(insts.RegZero, u(1), insts.AccumulateAdd)
			}).NotTo(Panic())
		})
	})

	Describe("wide accumulator", func() {
		It("should round-trip 64-bit halves on a 64-bit core", func() {
			rf := emu.NewRegFile(arch.MIPS64())
			hi, lo := uint64(0xDEADBEEFCAFEBABE), uint64(0x0123456789ABCDEF)

			rf.Write(insts.RegHiLo, wide(hi, lo), insts.AccumulateNone)

			Expect(rf.ReadReg(insts.RegHI)).To(Equal(hi))
			Expect(rf.ReadReg(insts.RegLO)).To(Equal(lo))
			Expect(rf.ReadHiLo(false)).To(Equal(wide(hi, lo)))
		})

		It("should reassemble 32-bit lanes", func() {
			rf := emu.NewRegFile(arch.MIPS32())
			rf.Write(insts.RegHiLo, u(0x1_FFFFFFFF), insts.AccumulateNone)

			Expect(rf.ReadHiLo(true)).To(Equal(u(0x1_FFFFFFFF)))
			Expect(rf.ReadHiLo(false)).To(Equal(u(0x1_FFFFFFFF)))
		})

		It("should mask LO to 32 bits when reading lanes on a 64-bit core", func() {
			rf := emu.NewRegFile(arch.MIPS64())
			rf.WriteReg(insts.RegHI, 0x2)
			rf.WriteReg(insts.RegLO, 0xFFFFFFFF_00000007)

			Expect(rf.ReadHiLo(true)).To(Equal(u(0x2_00000007)))
		})

		It("should refuse Read of the logical accumulator", func() {
			rf := emu.NewRegFile(arch.MIPS32())
			expectViolation(func() { rf.Read(insts.RegHiLo) })
		})

		It("should fold the word above the register width into the high lane", func() {
			rf := emu.NewRegFile(arch.MIPS64())
			rf.Write(insts.RegHiLo, wide(2, 5), insts.AccumulateAdd)

			Expect(rf.ReadReg(insts.RegHI)).To(Equal(uint64(2)))
			Expect(rf.ReadReg(insts.RegLO)).To(Equal(uint64(5)))
		})

		It("should wrap a subtraction below zero", func() {
			rf := emu.NewRegFile(arch.MIPS32())
			rf.Write(insts.RegHiLo, u(3), insts.AccumulateSub)

			Expect(rf.ReadReg(insts.RegHI)).To(Equal(uint64(0xFFFFFFFF)))
			Expect(rf.ReadReg(insts.RegLO)).To(Equal(uint64(0xFFFFFFFD)))
		})

		It("should reject an unknown accumulate mode", func() {
			rf := emu.NewRegFile(arch.MIPS32())
			expectViolation(func() {
				rf.Write(insts.RegHiLo, u(1), insts.AccumulateMode(3))
			})
		})

		DescribeTable("accumulate-add is additive",
			func(config *arch.Config, prior uint256.Int) {
				p1 := u(0xFFFFFFFF_00000001)
				p2 := u(0x00000002_FFFFFFFF)
				// The accumulate lane is 64 bits wide, so the combined
				// product wraps there.
				lane := u(^uint64(0))
				var sum uint256.Int
				sum.Add(&p1, &p2)
				sum.And(&sum, &lane)

				twice := emu.NewRegFile(config)
				twice.Write(insts.RegHiLo, prior, insts.AccumulateNone)
				twice.Write(insts.RegHiLo, p1, insts.AccumulateAdd)
				twice.Write(insts.RegHiLo, p2, insts.AccumulateAdd)

				once := emu.NewRegFile(config)
				once.Write(insts.RegHiLo, prior, insts.AccumulateNone)
				once.Write(insts.RegHiLo, sum, insts.AccumulateAdd)

				Expect(twice.ReadHiLo(true)).To(Equal(once.ReadHiLo(true)))
				Expect(twice.ReadReg(insts.RegHI)).To(Equal(uint64(0x12)))
				Expect(twice.ReadReg(insts.RegLO)).To(Equal(uint64(0x20)))
			},
			Entry("32-bit core", arch.MIPS32(), u(0x10_00000020)),
			Entry("64-bit core", arch.MIPS64(), wide(0x10, 0x20)),
		)

		DescribeTable("accumulate-subtract undoes accumulate-add",
			func(config *arch.Config, prior uint256.Int) {
				rf := emu.NewRegFile(config)
				rf.Write(insts.RegHiLo, prior, insts.AccumulateNone)
				before := rf.ReadHiLo(true)

				p := u(0x7FFFFFFF_FFFFFFFF)
				rf.Write(insts.RegHiLo, p, insts.AccumulateAdd)
				Expect(rf.ReadHiLo(true)).NotTo(Equal(before))

				rf.Write(insts.RegHiLo, p, insts.AccumulateSub)
				Expect(rf.ReadHiLo(true)).To(Equal(before))
				Expect(rf.ReadReg(insts.RegHI)).To(Equal(uint64(0x10)))
				Expect(rf.ReadReg(insts.RegLO)).To(Equal(uint64(0x20)))
			},
			Entry("32-bit core", arch.MIPS32(), u(0x10_00000020)),
			Entry("64-bit core", arch.MIPS64(), wide(0x10, 0x20)),
		)
	})

	Describe("narrow core", func() {
		var rf *emu.RegFile

		BeforeEach(func() {
			rf = emu.NewRegFile(arch.MIPS32Narrow())
		})

		It("should report no wide destination", func() {
			Expect(rf.HasWideDst()).To(BeFalse())
		})

		It("should write zero to HI on a plain accumulator write", func() {
			rf.WriteReg(insts.RegHI, 9)
			rf.Write(insts.RegHiLo, u(0x1_00000007), insts.AccumulateNone)

			Expect(rf.ReadReg(insts.RegHI)).To(Equal(uint64(0)))
			Expect(rf.ReadReg(insts.RegLO)).To(Equal(uint64(7)))
		})

		It("should fail loudly on a wide read", func() {
			expectViolation(func() { rf.ReadHiLo(true) })
			expectViolation(func() { rf.ReadHiLo(false) })
		})

		It("should fail loudly on an accumulating write", func() {
			expectViolation(func() {
				rf.Write(insts.RegHiLo, u(1), insts.AccumulateAdd)
			})
		})
	})

	Describe("bounds", func() {
		It("should panic on an out-of-range register", func() {
			rf := emu.NewRegFile(arch.MIPS32())
			Expect(func() { rf.Read(insts.Register(40)) }).To(
				PanicWith(BeAssignableToTypeOf(&insts.RangeError{})))
			Expect(func() { rf.WriteReg(insts.Register(35), 1) }).To(
				PanicWith(BeAssignableToTypeOf(&insts.RangeError{})))
		})

		It("should refuse an invalid config", func() {
			config := arch.MIPS32()
			config.NativeWidth = 8
			expectViolation(func() { emu.NewRegFile(config) })
		})
	})

	Describe("instruction adapters", func() {
		var (
			rf   *emu.RegFile
			hook *recordingHook
		)

		BeforeEach(func() {
			rf = emu.NewRegFile(arch.MIPS32())
			hook = &recordingHook{}
			rf.WriteReg(3, 30)
			rf.WriteReg(insts.RegHI, 7)
			rf.AcceptHook(hook)
		})

		It("should read both sources in slot order", func() {
			inst := &fakeInst{src: [2]insts.Register{3, insts.RegHI}}

			rf.ReadSources(inst)

			Expect(inst.srcVal[0]).To(Equal(u(30)))
			Expect(inst.srcVal[1]).To(Equal(u(7)))
			Expect(hook.regs(emu.HookPosRegRead)).To(Equal(
				[]insts.Register{3, insts.RegHI}))
		})

		It("should commit a destination write", func() {
			inst := &fakeInst{dst: 5, writes: true, val: u(99)}

			rf.WriteDst(inst)

			Expect(rf.ReadReg(5)).To(Equal(uint64(99)))
			Expect(hook.count(emu.HookPosRegWrite)).To(Equal(1))
			Expect(hook.count(emu.HookPosRegTouch)).To(Equal(0))
		})

		It("should pass the accumulate mode through", func() {
			rf.WriteReg(insts.RegHI, 0)
			rf.WriteReg(insts.RegLO, 10)
			inst := &fakeInst{
				dst: insts.RegHiLo, writes: true, val: u(5),
				mode: insts.AccumulateAdd,
			}

			rf.WriteDst(inst)

			Expect(rf.ReadReg(insts.RegLO)).To(Equal(uint64(15)))
			Expect(rf.Stats().Accumulates).To(Equal(uint64(1)))
		})

		DescribeTable("should leave state unchanged without a write",
			func(dst insts.Register, writes bool) {
				before := rf.Snapshot()
				inst := &fakeInst{dst: dst, writes: writes, val: u(0xABCD)}

				rf.WriteDst(inst)

				Expect(rf.Snapshot()).To(Equal(before))
				Expect(hook.count(emu.HookPosRegTouch)).To(Equal(1))
				Expect(hook.count(emu.HookPosRegWrite)).To(Equal(0))
			},
			Entry("zero register, no write", insts.RegZero, false),
			Entry("zero register, write", insts.RegZero, true),
			Entry("ordinary register", insts.Register(5), false),
			Entry("HI", insts.RegHI, false),
			Entry("LO", insts.RegLO, false),
			Entry("HI/LO", insts.RegHiLo, false),
		)

		It("should touch without a wide read on a narrow core", func() {
			narrow := emu.NewRegFile(arch.MIPS32Narrow())
			inst := &fakeInst{dst: insts.RegHiLo}

			Expect(func() { narrow.WriteDst(inst) }).NotTo(Panic())
			Expect(narrow.Stats().Touches).To(Equal(uint64(1)))
		})

		It("should report discarded zero-register writes", func() {
			rf.Write(insts.RegZero, u(1), insts.AccumulateNone)

			Expect(hook.count(emu.HookPosRegDiscard)).To(Equal(1))
			Expect(rf.Stats().Discarded).To(Equal(uint64(1)))
		})
	})

	Describe("Stats and Snapshot", func() {
		It("should count reads and writes", func() {
			rf := emu.NewRegFile(arch.MIPS32())
			rf.WriteReg(3, 1)
			rf.ReadReg(3)
			rf.Write(insts.RegHiLo, u(1), insts.AccumulateNone)

			stats := rf.Stats()
			Expect(stats.Writes).To(Equal(uint64(3)))
			Expect(stats.Reads).To(Equal(uint64(1)))
		})

		It("should return an independent snapshot", func() {
			rf := emu.NewRegFile(arch.MIPS32())
			rf.WriteReg(3, 1)

			snap := rf.Snapshot()
			Expect(snap).To(HaveLen(insts.MaxReg))
			Expect(snap[3]).To(Equal(u(1)))

			snap[3] = u(2)
			Expect(rf.ReadReg(3)).To(Equal(uint64(1)))
		})

		It("should keep the reserved accumulator slot at zero", func() {
			rf := emu.NewRegFile(arch.MIPS64())
			rf.Write(insts.RegHiLo, wide(3, 4), insts.AccumulateNone)
			rf.Write(insts.RegHiLo, u(5), insts.AccumulateAdd)

			snap := rf.Snapshot()
			Expect(snap[insts.RegHI]).NotTo(Equal(u(0)))
			Expect(snap[insts.RegHiLo]).To(Equal(u(0)))
		})

		It("should return a copy of its config", func() {
			rf := emu.NewRegFile(arch.MIPS64())
			config := rf.Config()
			config.NativeWidth = 32

			Expect(rf.Config().NativeWidth).To(Equal(uint(64)))
		})
	})
})
