package emu

import "encoding/binary"

const (
	pageBits = 12
	pageSize = 1 << pageBits
	pageMask = pageSize - 1
)

// Memory is a sparse, byte-addressed guest memory. Unwritten bytes read as 0.
type Memory struct {
	pages map[uint64][]byte
	order binary.ByteOrder
}

// NewMemory creates an empty big-endian memory.
func NewMemory() *Memory {
	return NewMemoryWithOrder(binary.BigEndian)
}

// NewMemoryWithOrder creates an empty memory using the given byte order for
// multi-byte accesses.
func NewMemoryWithOrder(order binary.ByteOrder) *Memory {
	return &Memory{
		pages: make(map[uint64][]byte),
		order: order,
	}
}

// Order returns the byte order used for multi-byte accesses.
func (m *Memory) Order() binary.ByteOrder {
	return m.order
}

func (m *Memory) page(addr uint64, create bool) []byte {
	p, ok := m.pages[addr>>pageBits]
	if !ok && create {
		p = make([]byte, pageSize)
		m.pages[addr>>pageBits] = p
	}
	return p
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint64) uint8 {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	return p[addr&pageMask]
}

// Write8 writes one byte.
func (m *Memory) Write8(addr uint64, value uint8) {
	m.page(addr, true)[addr&pageMask] = value
}

// ReadBytes reads n bytes starting at addr.
func (m *Memory) ReadBytes(addr uint64, n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = m.Read8(addr + uint64(i))
	}
	return buf
}

// WriteBytes writes data starting at addr.
func (m *Memory) WriteBytes(addr uint64, data []byte) {
	for i, b := range data {
		m.Write8(addr+uint64(i), b)
	}
}

// Read16 reads a halfword.
func (m *Memory) Read16(addr uint64) uint16 {
	return m.order.Uint16(m.ReadBytes(addr, 2))
}

// Write16 writes a halfword.
func (m *Memory) Write16(addr uint64, value uint16) {
	buf := make([]byte, 2)
	m.order.PutUint16(buf, value)
	m.WriteBytes(addr, buf)
}

// Read32 reads a word.
func (m *Memory) Read32(addr uint64) uint32 {
	return m.order.Uint32(m.ReadBytes(addr, 4))
}

// Write32 writes a word.
func (m *Memory) Write32(addr uint64, value uint32) {
	buf := make([]byte, 4)
	m.order.PutUint32(buf, value)
	m.WriteBytes(addr, buf)
}

// Read64 reads a doubleword.
func (m *Memory) Read64(addr uint64) uint64 {
	return m.order.Uint64(m.ReadBytes(addr, 8))
}

// Write64 writes a doubleword.
func (m *Memory) Write64(addr uint64, value uint64) {
	buf := make([]byte, 8)
	m.order.PutUint64(buf, value)
	m.WriteBytes(addr, buf)
}

// LoadProgram copies program bytes into memory at addr.
func (m *Memory) LoadProgram(addr uint64, program []byte) {
	m.WriteBytes(addr, program)
}
