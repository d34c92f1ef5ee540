package smush

import (
	"encoding/binary"

	"github.com/edsrzf/mmap-go"
)

const (
	bufferSize = 256 << 10
	headerSize = 4

	flagBlankNode  uint32 = 1 << 30
	flagNormalized uint32 = 1 << 31
	lengthMask     uint32 = 1<<30 - 1
)

// Handle addresses a record in an arena: buffer index in the high 32 bits,
// offset in the low 32 bits.
type Handle uint64

func makeHandle(buffer, offset int) Handle {
	return Handle(uint64(buffer)<<32 | uint64(uint32(offset)))
}

func (h Handle) buffer() int { return int(h >> 32) }
func (h Handle) offset() int { return int(uint32(h)) }

// arena stores strings in append-only buffers outside the Go heap when the
// platform allows anonymous mappings. Each record is a 4-byte header holding
// two flags and the length, followed by the string bytes.
type arena struct {
	buffers [][]byte
	mapped  []mmap.MMap
	used    int
}

func newArena() *arena {
	return &arena{}
}

// allocate returns a zeroed buffer of at least size bytes.
func (a *arena) allocate(size int) []byte {
	m, err := mmap.MapRegion(nil, size, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return make([]byte, size)
	}
	a.mapped = append(a.mapped, m)
	return m
}

func (a *arena) add(s string, flags uint32) Handle {
	need := headerSize + len(s)
	if len(a.buffers) == 0 || a.used+need > len(a.buffers[len(a.buffers)-1]) {
		size := bufferSize
		if need > size {
			size = need
		}
		a.buffers = append(a.buffers, a.allocate(size))
		a.used = 0
	}
	index := len(a.buffers) - 1
	buf := a.buffers[index]
	binary.LittleEndian.PutUint32(buf[a.used:], flags|uint32(len(s)))
	copy(buf[a.used+headerSize:], s)
	h := makeHandle(index, a.used)
	a.used += need
	return h
}

func (a *arena) header(h Handle) uint32 {
	return binary.LittleEndian.Uint32(a.buffers[h.buffer()][h.offset():])
}

func (a *arena) bytes(h Handle) []byte {
	start := h.offset() + headerSize
	return a.buffers[h.buffer()][start : start+int(a.header(h)&lengthMask)]
}

func (a *arena) flags(h Handle) uint32 {
	return a.header(h) &^ lengthMask
}

func (a *arena) setFlags(h Handle, flags uint32) {
	buf := a.buffers[h.buffer()][h.offset():]
	binary.LittleEndian.PutUint32(buf, binary.LittleEndian.Uint32(buf)|flags)
}

// size is the number of bytes reserved by the arena.
func (a *arena) size() int {
	n := 0
	for _, b := range a.buffers {
		n += len(b)
	}
	return n
}

// release unmaps the buffers; the arena must not be used afterwards.
func (a *arena) release() error {
	var first error
	for _, m := range a.mapped {
		if err := m.Unmap(); err != nil && first == nil {
			first = err
		}
	}
	a.buffers, a.mapped = nil, nil
	return first
}
