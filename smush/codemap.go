package smush

import (
	"math/bits"
	"sort"

	"github.com/geoknoesis/rdfstream/pipeline"
)

// CodeMap maps codes to codes. The zero Code is never a valid key.
type CodeMap interface {
	Get(k Code) (Code, bool)
	Put(k, v Code)
	// Range calls fn for every entry until fn returns false.
	Range(fn func(k, v Code) bool)
	Len() int
}

// Names accepted by NewCodeMap.
const (
	MapBoxed = "boxed"
	MapOpen  = "open"
)

type codeMapFactory func(expected int) CodeMap

var codeMaps = map[string]codeMapFactory{
	MapBoxed: func(expected int) CodeMap { return make(boxedMap, expected) },
	MapOpen:  func(expected int) CodeMap { return newOpenMap(expected) },
}

// NewCodeMap returns the implementation registered under name, sized for
// about expected entries.
func NewCodeMap(name string, expected int) (CodeMap, error) {
	factory, ok := codeMaps[name]
	if !ok {
		return nil, pipeline.Configf("smush", "unknown map %q, expected one of %v", name, CodeMapNames())
	}
	return factory(expected), nil
}

// CodeMapNames lists the available CodeMap implementations.
func CodeMapNames() []string {
	names := make([]string, 0, len(codeMaps))
	for name := range codeMaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type boxedMap map[Code]Code

func (m boxedMap) Get(k Code) (Code, bool) {
	v, ok := m[k]
	return v, ok
}

func (m boxedMap) Put(k, v Code) { m[k] = v }

func (m boxedMap) Range(fn func(k, v Code) bool) {
	for k, v := range m {
		if !fn(k, v) {
			return
		}
	}
}

func (m boxedMap) Len() int { return len(m) }

// openMap is an open-addressing table with linear probing over parallel key
// and value slices. It grows when three quarters full.
type openMap struct {
	keys []Code
	vals []Code
	size  int
	mask  uint32
	shift uint
}

func newOpenMap(expected int) *openMap {
	capacity := 16
	for capacity*3 < expected*4 {
		capacity <<= 1
	}
	m := &openMap{
		keys: make([]Code, capacity),
		vals: make([]Code, capacity),
	}
	m.resized()
	return m
}

func (m *openMap) slot(k Code) uint32 {
	// Fibonacci hashing: the high bits of the product index the table.
	return (uint32(k) * 0x9e3779b9) >> m.shift
}

func (m *openMap) resized() {
	m.mask = uint32(len(m.keys) - 1)
	m.shift = uint(32 - bits.TrailingZeros(uint(len(m.keys))))
}

func (m *openMap) Get(k Code) (Code, bool) {
	for i := m.slot(k); ; i = (i + 1) & m.mask {
		switch m.keys[i] {
		case k:
			return m.vals[i], true
		case 0:
			return 0, false
		}
	}
}

func (m *openMap) Put(k, v Code) {
	if k == 0 {
		panic("smush: zero code used as map key")
	}
	for i := m.slot(k); ; i = (i + 1) & m.mask {
		switch m.keys[i] {
		case k:
			m.vals[i] = v
			return
		case 0:
			m.keys[i], m.vals[i] = k, v
			m.size++
			if m.size*4 > len(m.keys)*3 {
				m.grow()
			}
			return
		}
	}
}

func (m *openMap) grow() {
	keys, vals := m.keys, m.vals
	m.keys = make([]Code, 2*len(keys))
	m.vals = make([]Code, 2*len(vals))
	m.resized()
	for i, k := range keys {
		if k == 0 {
			continue
		}
		j := m.slot(k)
		for m.keys[j] != 0 {
			j = (j + 1) & m.mask
		}
		m.keys[j], m.vals[j] = k, vals[i]
	}
}

func (m *openMap) Range(fn func(k, v Code) bool) {
	for i, k := range m.keys {
		if k != 0 && !fn(k, m.vals[i]) {
			return
		}
	}
}

func (m *openMap) Len() int { return m.size }
