// Package loader provides ELF binary loading for MIPS executables.
package loader

import (
	"debug/elf"
	"fmt"
	"io"

	"github.com/sarchlab/mipssim/arch"
	"github.com/sarchlab/mipssim/emu"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Stack top addresses for MIPS Linux user space.
const (
	DefaultStackTop32 = 0x7fff0000
	DefaultStackTop64 = 0x7ffffffff000
)

// DefaultStackSize is the default stack size (8MB).
const DefaultStackSize = 8 * 1024 * 1024

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the virtual address where this segment should be loaded.
	VirtAddr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint64
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program represents a loaded ELF program ready for execution.
type Program struct {
	// EntryPoint is the virtual address where execution should begin.
	EntryPoint uint64
	// Segments contains all loadable segments from the ELF file.
	Segments []Segment
	// InitialSP is the initial stack pointer value.
	InitialSP uint64
	// Config is the ISA configuration matching the ELF class and byte order.
	Config *arch.Config
}

// Load parses a MIPS ELF binary and returns a Program struct ready for
// loading into the emulator's memory.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return fromFile(f)
}

// Parse reads a MIPS ELF binary from r.
func Parse(r io.ReaderAt) (*Program, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF file: %w", err)
	}

	return fromFile(f)
}

func fromFile(f *elf.File) (*Program, error) {
	if f.Machine != elf.EM_MIPS {
		return nil, fmt.Errorf("not a MIPS ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{EntryPoint: f.Entry}

	switch f.Class {
	case elf.ELFCLASS32:
		prog.Config = arch.MIPS32()
		prog.InitialSP = DefaultStackTop32
	case elf.ELFCLASS64:
		prog.Config = arch.MIPS64()
		prog.InitialSP = DefaultStackTop64
	default:
		return nil, fmt.Errorf("unsupported ELF class %v", f.Class)
	}

	if f.Data == elf.ELFDATA2LSB {
		prog.Config.ByteOrder = arch.LittleEndian
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		seg, err := loadSegment(phdr)
		if err != nil {
			return nil, err
		}
		prog.Segments = append(prog.Segments, seg)
	}

	return prog, nil
}

func loadSegment(phdr *elf.Prog) (Segment, error) {
	data := make([]byte, phdr.Filesz)
	if phdr.Filesz > 0 {
		n, err := phdr.ReadAt(data, 0)
		if err != nil && err != io.EOF {
			return Segment{}, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
		}
		if uint64(n) != phdr.Filesz {
			return Segment{}, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
				phdr.Vaddr, n, phdr.Filesz)
		}
	}

	var flags SegmentFlags
	if phdr.Flags&elf.PF_X != 0 {
		flags |= SegmentFlagExecute
	}
	if phdr.Flags&elf.PF_W != 0 {
		flags |= SegmentFlagWrite
	}
	if phdr.Flags&elf.PF_R != 0 {
		flags |= SegmentFlagRead
	}

	return Segment{
		VirtAddr: phdr.Vaddr,
		Data:     data,
		MemSize:  phdr.Memsz,
		Flags:    flags,
	}, nil
}

// NewMemory builds a guest memory in the program's byte order holding every
// segment. BSS tails need no copy since unwritten memory reads as zero.
func (p *Program) NewMemory() *emu.Memory {
	mem := emu.NewMemoryWithOrder(p.Config.Order())
	for _, seg := range p.Segments {
		mem.LoadProgram(seg.VirtAddr, seg.Data)
	}
	return mem
}
