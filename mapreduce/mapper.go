// Package mapreduce groups a statement stream by key and reduces every group.
//
// A Mapper assigns keys to statements; statements are encoded as sortable
// records, grouped by an external sort, and each run of records sharing a key
// is handed to a Reducer. Reducers run on a bounded pool and their output is
// forwarded downstream only when the whole group reduced without error.
package mapreduce

import (
	"fmt"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/geoknoesis/rdfstream/pipeline"
	"github.com/geoknoesis/rdfstream/rdf"
)

// BypassKey makes the processor forward a statement directly, skipping the
// grouping and reduce phase.
var BypassKey rdf.Term = rdf.IRI{Value: "rdfpro:bypass"}

// Mapper extracts the grouping keys of a statement. It is called
// concurrently and must not retain q.
type Mapper interface {
	Map(q rdf.Quad) ([]rdf.Term, error)
}

// MapperFunc adapts a function to a Mapper.
type MapperFunc func(q rdf.Quad) ([]rdf.Term, error)

func (f MapperFunc) Map(q rdf.Quad) ([]rdf.Term, error) { return f(q) }

// Bypass maps statements matching pred to BypassKey and the others with m.
func Bypass(m Mapper, pred func(rdf.Quad) bool) Mapper {
	return MapperFunc(func(q rdf.Quad) ([]rdf.Term, error) {
		if pred(q) {
			return []rdf.Term{BypassKey}, nil
		}
		return m.Map(q)
	})
}

// FilterMapper maps statements matching pred with m and drops the others.
func FilterMapper(m Mapper, pred func(rdf.Quad) bool) Mapper {
	return MapperFunc(func(q rdf.Quad) ([]rdf.Term, error) {
		if pred(q) {
			return m.Map(q)
		}
		return nil, nil
	})
}

// ConcatMappers returns the keys of every mapper, without duplicates, in the
// order they are first produced.
func ConcatMappers(ms ...Mapper) Mapper {
	if len(ms) == 1 {
		return ms[0]
	}
	return MapperFunc(func(q rdf.Quad) ([]rdf.Term, error) {
		var keys []rdf.Term
		for _, m := range ms {
			ks, err := m.Map(q)
			if err != nil {
				return nil, err
			}
			keys = appendUnique(keys, ks...)
		}
		return keys, nil
	})
}

func appendUnique(dst []rdf.Term, keys ...rdf.Term) []rdf.Term {
next:
	for _, k := range keys {
		for _, d := range dst {
			if d == k {
				continue next
			}
		}
		dst = append(dst, k)
	}
	return dst
}

// Component bits, also used as the record omission mask.
const (
	maskSubject   byte = 0x08
	maskPredicate byte = 0x04
	maskObject    byte = 0x02
	maskContext   byte = 0x01
)

// Select returns a mapper keying statements by the given components: any
// combination of the letters s, p, o and c. A single letter keys by that term
// (the default graph is the nil key). Several letters key by a blank node
// whose label hashes the selected terms. The special value "e" keys by the
// subject and, when it is a resource, by the object too.
func Select(components string) (Mapper, error) {
	sel := strings.ToLower(strings.TrimSpace(components))
	if sel == "e" {
		return MapperFunc(func(q rdf.Quad) ([]rdf.Term, error) {
			if rdf.IsResource(q.O) && q.O != q.S {
				return []rdf.Term{q.S, q.O}, nil
			}
			return []rdf.Term{q.S}, nil
		}), nil
	}
	var mask byte
	for _, c := range sel {
		var bit byte
		switch c {
		case 's':
			bit = maskSubject
		case 'p':
			bit = maskPredicate
		case 'o':
			bit = maskObject
		case 'c':
			bit = maskContext
		default:
			return nil, pipeline.Configf("mapreduce", "invalid component %q in %q", c, components)
		}
		if mask&bit != 0 {
			return nil, pipeline.Configf("mapreduce", "duplicate component %q in %q", c, components)
		}
		mask |= bit
	}
	switch mask {
	case 0:
		return nil, pipeline.Configf("mapreduce", "no component selected in %q", components)
	case maskSubject:
		return MapperFunc(func(q rdf.Quad) ([]rdf.Term, error) { return []rdf.Term{q.S}, nil }), nil
	case maskPredicate:
		return MapperFunc(func(q rdf.Quad) ([]rdf.Term, error) { return []rdf.Term{q.P}, nil }), nil
	case maskObject:
		return MapperFunc(func(q rdf.Quad) ([]rdf.Term, error) { return []rdf.Term{q.O}, nil }), nil
	case maskContext:
		return MapperFunc(func(q rdf.Quad) ([]rdf.Term, error) { return []rdf.Term{q.G}, nil }), nil
	}
	return MapperFunc(func(q rdf.Quad) ([]rdf.Term, error) {
		return []rdf.Term{hashKey(q, mask)}, nil
	}), nil
}

// hashKey builds a blank node identifying the selected components of q.
// The header records the kind of every selected term so that, say, an IRI
// and a plain literal with the same text never collide.
func hashKey(q rdf.Quad, mask byte) rdf.Term {
	var header uint32
	parts := make([]string, 0, 9)
	add := func(bit byte, shift uint, t rdf.Term) {
		if mask&bit == 0 {
			return
		}
		header |= classify(t) << shift
		parts = appendComponent(parts, t)
	}
	add(maskSubject, 24, q.S)
	add(maskPredicate, 16, q.P)
	add(maskObject, 8, q.O)
	add(maskContext, 0, q.G)

	h := murmur3.New128()
	var hdr [4]byte
	hdr[0], hdr[1], hdr[2], hdr[3] = byte(header>>24), byte(header>>16), byte(header>>8), byte(header)
	_, _ = h.Write(hdr[:])
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	hi, lo := h.Sum128()
	return rdf.BlankNode{ID: fmt.Sprintf("k%016x%016x", hi, lo)}
}

func classify(t rdf.Term) uint32 {
	switch v := t.(type) {
	case nil:
		return 0
	case rdf.BlankNode:
		return 0x11
	case rdf.IRI:
		return 0x21
	case rdf.Literal:
		switch {
		case v.Lang != "":
			return 0x52
		case v.Datatype.Value != "":
			return 0x42
		default:
			return 0x31
		}
	case rdf.TripleTerm:
		return 0x61
	}
	return 0
}

func appendComponent(parts []string, t rdf.Term) []string {
	switch v := t.(type) {
	case nil:
		return parts
	case rdf.IRI:
		return append(parts, v.Value)
	case rdf.BlankNode:
		return append(parts, v.ID)
	case rdf.Literal:
		parts = append(parts, v.Lexical)
		if v.Lang != "" {
			return append(parts, v.Lang)
		}
		if v.Datatype.Value != "" {
			return append(parts, v.Datatype.Value)
		}
		return parts
	default:
		return append(parts, t.String())
	}
}
