package smush

import (
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"

	"github.com/geoknoesis/rdfstream/rdf"
)

// Code is the dense integer assigned to a resource by a Dictionary. The zero
// Code means absent.
type Code uint32

// ErrNotResource is returned when encoding a term that is neither an IRI nor
// a blank node.
var ErrNotResource = errors.New("smush: only IRIs and blank nodes can be encoded")

// ErrDictionaryFull is returned when every code is in use.
var ErrDictionaryFull = errors.New("smush: dictionary full")

// blankSeed separates the hashes of a blank node and an IRI with the same text.
const blankSeed = 0x9e3779b97f4a7c15

// Dictionary interns resources into codes starting at 1. The strings live in
// an arena; lookups go through an open-addressing table of packed slots
// (hash tag in the high 32 bits, code in the low 32 bits).
//
// A Dictionary is not safe for concurrent writes. Reads may run concurrently
// once writes have stopped.
type Dictionary struct {
	arena   *arena
	handles []Handle
	slots   []uint64
	mask    uint64
}

// NewDictionary returns a dictionary sized for about expected resources.
func NewDictionary(expected int) *Dictionary {
	capacity := 1024
	for capacity < expected*2 {
		capacity <<= 1
	}
	return &Dictionary{
		arena:   newArena(),
		handles: make([]Handle, 1, expected+1),
		slots:   make([]uint64, capacity),
		mask:    uint64(capacity - 1),
	}
}

func termKey(t rdf.Term) (string, uint32, bool) {
	switch v := t.(type) {
	case rdf.IRI:
		return v.Value, 0, true
	case rdf.BlankNode:
		return v.ID, flagBlankNode, true
	}
	return "", 0, false
}

func hashKey(s string, kind uint32) uint64 {
	h := xxhash.Sum64String(s)
	if kind == flagBlankNode {
		h ^= blankSeed
	}
	return h
}

// find returns the slot index holding the resource, or the empty slot where
// it would be inserted, and its code (0 when absent).
func (d *Dictionary) find(s string, kind uint32, hash uint64) (uint64, Code) {
	tag := hash >> 32
	for i := hash & d.mask; ; i = (i + 1) & d.mask {
		slot := d.slots[i]
		if slot == 0 {
			return i, 0
		}
		if slot>>32 != tag {
			continue
		}
		code := Code(uint32(slot))
		h := d.handles[code]
		if d.arena.flags(h)&flagBlankNode == kind && string(d.arena.bytes(h)) == s {
			return i, code
		}
	}
}

// Encode returns the code of t, assigning a new one if needed.
func (d *Dictionary) Encode(t rdf.Term) (Code, error) {
	s, kind, ok := termKey(t)
	if !ok {
		return 0, errors.Wrapf(ErrNotResource, "encode %v", t)
	}
	hash := hashKey(s, kind)
	i, code := d.find(s, kind, hash)
	if code != 0 {
		return code, nil
	}
	if uint64(len(d.handles)) > math.MaxUint32 {
		return 0, ErrDictionaryFull
	}
	if uint64(len(s)) > uint64(lengthMask) {
		return 0, errors.Errorf("smush: resource of %d bytes is too long", len(s))
	}
	code = Code(len(d.handles))
	d.handles = append(d.handles, d.arena.add(s, kind))
	d.slots[i] = hash>>32<<32 | uint64(code)
	if (len(d.handles)-1)*2 > len(d.slots) {
		d.rehash()
	}
	return code, nil
}

// Lookup returns the code of t, or 0 if t was never encoded.
func (d *Dictionary) Lookup(t rdf.Term) Code {
	s, kind, ok := termKey(t)
	if !ok {
		return 0
	}
	_, code := d.find(s, kind, hashKey(s, kind))
	return code
}

// Decode returns the resource with the given code, or nil.
func (d *Dictionary) Decode(c Code) rdf.Term {
	if c == 0 || int(c) >= len(d.handles) {
		return nil
	}
	h := d.handles[c]
	s := string(d.arena.bytes(h))
	if d.arena.flags(h)&flagBlankNode != 0 {
		return rdf.BlankNode{ID: s}
	}
	return rdf.IRI{Value: s}
}

// Len returns the number of encoded resources.
func (d *Dictionary) Len() int { return len(d.handles) - 1 }

// Bytes returns the memory reserved for strings and the lookup table.
func (d *Dictionary) Bytes() int {
	return d.arena.size() + 8*len(d.slots) + 8*cap(d.handles)
}

// Close releases the arena.
func (d *Dictionary) Close() error {
	d.slots, d.handles = nil, nil
	return d.arena.release()
}

func (d *Dictionary) rehash() {
	slots := make([]uint64, 2*len(d.slots))
	mask := uint64(len(slots) - 1)
	for _, slot := range d.slots {
		if slot == 0 {
			continue
		}
		h := d.handles[Code(uint32(slot))]
		hash := hashKeyBytes(d.arena.bytes(h), d.arena.flags(h)&flagBlankNode)
		i := hash & mask
		for slots[i] != 0 {
			i = (i + 1) & mask
		}
		slots[i] = slot
	}
	d.slots, d.mask = slots, mask
}

func hashKeyBytes(b []byte, kind uint32) uint64 {
	h := xxhash.Sum64(b)
	if kind == flagBlankNode {
		h ^= blankSeed
	}
	return h
}

func (d *Dictionary) isBlankNode(c Code) bool {
	return d.arena.flags(d.handles[c])&flagBlankNode != 0
}

func (d *Dictionary) normalized(c Code) bool {
	return d.arena.flags(d.handles[c])&flagNormalized != 0
}

func (d *Dictionary) markNormalized(c Code) {
	d.arena.setFlags(d.handles[c], flagNormalized)
}

// text returns the stored bytes of c without copying.
func (d *Dictionary) text(c Code) []byte {
	return d.arena.bytes(d.handles[c])
}
