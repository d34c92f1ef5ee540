// Package sorter groups byte records by sorting them, either through the
// operating system sort utility or with an in-process external merge sort.
//
// Records are built with AppendTerm and AppendUint and read back with a
// Reader. The encoding never produces a zero byte and is prefix free for a
// fixed field layout, so records sharing a leading run of fields sort next to
// each other under plain byte order (LC_ALL=C).
package sorter

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/geoknoesis/rdfstream/rdf"
)

// Field delimiters. Every field is its escaped content followed by exactly
// one delimiter byte; content bytes in [0x00, 0x08] are escaped as
// escapeByte followed by the byte plus escapeShift.
const (
	delimNull   byte = 0x01
	delimIRI    byte = 0x02
	delimBNode  byte = 0x03
	delimPlain  byte = 0x04
	delimLang   byte = 0x05
	delimTyped  byte = 0x06
	delimTriple byte = 0x07
	escapeByte  byte = 0x08
	escapeShift byte = 0x10
)

// ErrMalformedRecord is returned when a record does not decode.
var ErrMalformedRecord = errors.New("sorter: malformed record")

func appendContent(dst []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b <= escapeByte {
			dst = append(dst, escapeByte, b+escapeShift)
		} else {
			dst = append(dst, b)
		}
	}
	return dst
}

// AppendTerm appends the encoding of t to dst. A nil term is encoded as an
// empty null field.
func AppendTerm(dst []byte, t rdf.Term) []byte {
	switch v := t.(type) {
	case nil:
		return append(dst, delimNull)
	case rdf.IRI:
		return append(appendContent(dst, v.Value), delimIRI)
	case rdf.BlankNode:
		return append(appendContent(dst, v.ID), delimBNode)
	case rdf.Literal:
		dst = appendContent(dst, v.Lexical)
		switch {
		case v.Lang != "":
			dst = append(dst, delimLang)
			return append(appendContent(dst, v.Lang), delimPlain)
		case v.Datatype.Value != "":
			dst = append(dst, delimTyped)
			return append(appendContent(dst, v.Datatype.Value), delimIRI)
		default:
			return append(dst, delimPlain)
		}
	case rdf.TripleTerm:
		dst = append(dst, delimTriple)
		dst = AppendTerm(dst, v.S)
		dst = AppendTerm(dst, v.P)
		return AppendTerm(dst, v.O)
	default:
		panic("sorter: unsupported term type")
	}
}

// AppendQuad appends the four fields of q, graph last.
func AppendQuad(dst []byte, q rdf.Quad) []byte {
	dst = AppendTerm(dst, q.S)
	dst = AppendTerm(dst, q.P)
	dst = AppendTerm(dst, q.O)
	return AppendTerm(dst, q.G)
}

// AppendUint appends n in decimal as a null-delimited field.
func AppendUint(dst []byte, n uint64) []byte {
	return append(strconv.AppendUint(dst, n, 10), delimNull)
}

// seqDigits is the width of a sequence field.
const seqDigits = 16

// AppendSeq appends n as a fixed-width hexadecimal null-delimited field, so
// that sequence numbers sort numerically under byte order.
func AppendSeq(dst []byte, n uint64) []byte {
	const hex = "0123456789abcdef"
	for shift := 4 * (seqDigits - 1); shift >= 0; shift -= 4 {
		dst = append(dst, hex[(n>>uint(shift))&0xf])
	}
	return append(dst, delimNull)
}

// Reader decodes the fields of one record in order.
type Reader struct {
	rec []byte
	pos int
	buf []byte
}

// NewReader returns a reader over rec. A trailing zero terminator is ignored.
func NewReader(rec []byte) *Reader {
	if n := len(rec); n > 0 && rec[n-1] == 0 {
		rec = rec[:n-1]
	}
	return &Reader{rec: rec}
}

// Reset rewinds the reader onto a new record, keeping its scratch buffer.
func (r *Reader) Reset(rec []byte) {
	if n := len(rec); n > 0 && rec[n-1] == 0 {
		rec = rec[:n-1]
	}
	r.rec, r.pos = rec, 0
}

// Done reports whether every field has been consumed.
func (r *Reader) Done() bool {
	return r.pos >= len(r.rec)
}

// content reads escaped content up to the next delimiter and returns the
// unescaped string with the delimiter.
func (r *Reader) content() (string, byte, error) {
	r.buf = r.buf[:0]
	for r.pos < len(r.rec) {
		b := r.rec[r.pos]
		r.pos++
		switch {
		case b == escapeByte:
			if r.pos >= len(r.rec) {
				return "", 0, errors.Wrap(ErrMalformedRecord, "truncated escape")
			}
			e := r.rec[r.pos]
			if e < escapeShift || e > escapeShift+escapeByte {
				return "", 0, errors.Wrapf(ErrMalformedRecord, "invalid escape 0x%02x", e)
			}
			r.buf = append(r.buf, e-escapeShift)
			r.pos++
		case b < escapeByte:
			if b == 0 {
				return "", 0, errors.Wrap(ErrMalformedRecord, "unexpected terminator")
			}
			return string(r.buf), b, nil
		default:
			r.buf = append(r.buf, b)
		}
	}
	return "", 0, errors.Wrap(ErrMalformedRecord, "missing field delimiter")
}

// Term decodes the next field as a term; a null field yields nil.
func (r *Reader) Term() (rdf.Term, error) {
	s, delim, err := r.content()
	if err != nil {
		return nil, err
	}
	switch delim {
	case delimNull:
		if s != "" {
			return nil, errors.Wrap(ErrMalformedRecord, "number where term expected")
		}
		return nil, nil
	case delimIRI:
		return rdf.IRI{Value: s}, nil
	case delimBNode:
		return rdf.BlankNode{ID: s}, nil
	case delimPlain:
		return rdf.Literal{Lexical: s}, nil
	case delimLang:
		lang, d, err := r.content()
		if err != nil {
			return nil, err
		}
		if d != delimPlain {
			return nil, errors.Wrap(ErrMalformedRecord, "bad language tag delimiter")
		}
		return rdf.Literal{Lexical: s, Lang: lang}, nil
	case delimTyped:
		dt, d, err := r.content()
		if err != nil {
			return nil, err
		}
		if d != delimIRI {
			return nil, errors.Wrap(ErrMalformedRecord, "bad datatype delimiter")
		}
		return rdf.Literal{Lexical: s, Datatype: rdf.IRI{Value: dt}}, nil
	case delimTriple:
		if s != "" {
			return nil, errors.Wrap(ErrMalformedRecord, "content before triple term")
		}
		return r.tripleTerm()
	default:
		return nil, errors.Wrapf(ErrMalformedRecord, "unknown delimiter 0x%02x", delim)
	}
}

func (r *Reader) tripleTerm() (rdf.Term, error) {
	s, err := r.Term()
	if err != nil {
		return nil, err
	}
	p, err := r.IRI()
	if err != nil {
		return nil, err
	}
	o, err := r.Term()
	if err != nil {
		return nil, err
	}
	if s == nil || o == nil {
		return nil, errors.Wrap(ErrMalformedRecord, "incomplete triple term")
	}
	return rdf.TripleTerm{S: s, P: p, O: o}, nil
}

// IRI decodes the next field, which must be an IRI.
func (r *Reader) IRI() (rdf.IRI, error) {
	t, err := r.Term()
	if err != nil {
		return rdf.IRI{}, err
	}
	iri, ok := t.(rdf.IRI)
	if !ok {
		return rdf.IRI{}, errors.Wrapf(ErrMalformedRecord, "expected IRI, got %v", t)
	}
	return iri, nil
}

// Quad decodes four fields written by AppendQuad.
func (r *Reader) Quad() (rdf.Quad, error) {
	var q rdf.Quad
	var err error
	if q.S, err = r.Term(); err != nil {
		return q, err
	}
	if q.P, err = r.IRI(); err != nil {
		return q, err
	}
	if q.O, err = r.Term(); err != nil {
		return q, err
	}
	if q.G, err = r.Term(); err != nil {
		return q, err
	}
	if q.S == nil || q.O == nil {
		return q, errors.Wrap(ErrMalformedRecord, "incomplete statement")
	}
	return q, nil
}

// Uint decodes the next field as a number written by AppendUint.
func (r *Reader) Uint() (uint64, error) {
	s, delim, err := r.content()
	if err != nil {
		return 0, err
	}
	if delim != delimNull || s == "" {
		return 0, errors.Wrap(ErrMalformedRecord, "expected number")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrap(ErrMalformedRecord, err.Error())
	}
	return n, nil
}

// Seq decodes the next field as a number written by AppendSeq.
func (r *Reader) Seq() (uint64, error) {
	s, delim, err := r.content()
	if err != nil {
		return 0, err
	}
	if delim != delimNull || len(s) != seqDigits {
		return 0, errors.Wrap(ErrMalformedRecord, "expected sequence number")
	}
	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, errors.Wrap(ErrMalformedRecord, err.Error())
	}
	return n, nil
}
