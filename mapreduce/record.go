package mapreduce

import (
	"math/bits"

	"github.com/pkg/errors"

	"github.com/geoknoesis/rdfstream/rdf"
	"github.com/geoknoesis/rdfstream/sorter"
)

// maskSequence flags a sequence number written right after the key.
const maskSequence byte = 0x10

// appendRecord encodes q under key as: key, the sequence number seq unless it
// is zero, the statement fields that differ from key, and a mask with one bit
// per omitted field. Records sort by key first, so a key's records are
// contiguous, then by sequence number, so they keep their mapping order.
func appendRecord(dst []byte, key rdf.Term, seq uint64, q rdf.Quad) []byte {
	dst = sorter.AppendTerm(dst, key)
	var mask byte
	if seq != 0 {
		dst = sorter.AppendSeq(dst, seq)
		mask |= maskSequence
	}
	field := func(bit byte, t rdf.Term) {
		if t == key {
			mask |= bit
		} else {
			dst = sorter.AppendTerm(dst, t)
		}
	}
	field(maskSubject, q.S)
	field(maskPredicate, q.P)
	field(maskObject, q.O)
	field(maskContext, q.G)
	return sorter.AppendUint(dst, uint64(mask))
}

// recordDecoder reads records written by appendRecord. It is not safe for
// concurrent use.
type recordDecoder struct {
	reader *sorter.Reader
}

func newRecordDecoder() *recordDecoder {
	return &recordDecoder{reader: sorter.NewReader(nil)}
}

// decode returns the key and statement of rec. The mask is the trailing
// decimal field: every field ends in a delimiter byte, so the digits before
// the final delimiter belong to the mask alone.
func (d *recordDecoder) decode(rec []byte) (rdf.Term, rdf.Quad, error) {
	var q rdf.Quad
	if n := len(rec); n > 0 && rec[n-1] == 0 {
		rec = rec[:n-1]
	}
	end := len(rec) - 1
	if end < 1 || rec[end] != 0x01 {
		return nil, q, errors.Wrap(sorter.ErrMalformedRecord, "missing mask")
	}
	start := end
	for start > 0 && rec[start-1] >= '0' && rec[start-1] <= '9' {
		start--
	}
	d.reader.Reset(rec[start:])
	m, err := d.reader.Uint()
	if err != nil {
		return nil, q, err
	}
	if m > 0x1f {
		return nil, q, errors.Wrapf(sorter.ErrMalformedRecord, "invalid mask %d", m)
	}
	mask := byte(m)

	d.reader.Reset(rec[:start])
	key, err := d.reader.Term()
	if err != nil {
		return nil, q, err
	}
	if mask&maskSequence != 0 {
		if _, err := d.reader.Seq(); err != nil {
			return nil, q, err
		}
	}
	terms := [4]rdf.Term{}
	masks := [4]byte{maskSubject, maskPredicate, maskObject, maskContext}
	for i, bit := range masks {
		if mask&bit != 0 {
			terms[i] = key
			continue
		}
		if terms[i], err = d.reader.Term(); err != nil {
			return nil, q, err
		}
	}
	if !d.reader.Done() {
		return nil, q, errors.Wrapf(sorter.ErrMalformedRecord, "%d fields expected", 5-bits.OnesCount8(mask&^maskSequence))
	}
	p, ok := terms[1].(rdf.IRI)
	if !ok || terms[0] == nil || terms[2] == nil {
		return nil, q, errors.Wrap(sorter.ErrMalformedRecord, "incomplete statement")
	}
	return key, rdf.NewQuad(terms[0], p, terms[2], terms[3]), nil
}
