package rdf

import (
	"fmt"
	"strings"
)

// TermKind identifies RDF term types.
type TermKind uint8

const (
	// TermIRI represents an IRI term.
	TermIRI TermKind = iota
	// TermBlankNode represents a blank node term.
	TermBlankNode
	// TermLiteral represents a literal term.
	TermLiteral
	// TermTriple represents an RDF-star triple term.
	TermTriple
)

// String returns the lowercase name of the kind.
func (k TermKind) String() string {
	switch k {
	case TermIRI:
		return "iri"
	case TermBlankNode:
		return "bnode"
	case TermLiteral:
		return "literal"
	case TermTriple:
		return "triple"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Term is a value that can appear in RDF statements.
type Term interface {
	Kind() TermKind
	String() string
}

// IRI represents an RDF IRI.
type IRI struct {
	// Value is the IRI string value.
	Value string
}

// Kind returns TermIRI.
func (i IRI) Kind() TermKind { return TermIRI }

// String returns the IRI value.
func (i IRI) String() string { return i.Value }

// BlankNode represents an RDF blank node.
type BlankNode struct {
	// ID is the blank node identifier.
	ID string
}

// Kind returns TermBlankNode.
func (b BlankNode) Kind() TermKind { return TermBlankNode }

// String returns the blank node identifier prefixed with "_:".
func (b BlankNode) String() string { return "_:" + b.ID }

// Literal represents an RDF literal.
type Literal struct {
	// Lexical is the lexical form of the literal.
	Lexical string
	// Datatype is the datatype IRI, if any.
	Datatype IRI
	// Lang is the language tag, if any.
	Lang string
}

// Kind returns TermLiteral.
func (l Literal) Kind() TermKind { return TermLiteral }

// String returns the N-Triples form of the literal.
func (l Literal) String() string {
	return renderTerm(l)
}

// TripleTerm is an RDF-star quoted triple term.
type TripleTerm struct {
	// S is the subject of the quoted triple.
	S Term
	// P is the predicate of the quoted triple.
	P IRI
	// O is the object of the quoted triple.
	O Term
}

// Kind returns TermTriple.
func (t TripleTerm) Kind() TermKind { return TermTriple }

// String returns a string representation of the triple term.
func (t TripleTerm) String() string {
	return fmt.Sprintf("<<%s %s %s>>", t.S.String(), t.P.String(), t.O.String())
}

// IsResource reports whether t is an IRI or a blank node.
func IsResource(t Term) bool {
	if t == nil {
		return false
	}
	k := t.Kind()
	return k == TermIRI || k == TermBlankNode
}

// Quad is an RDF statement: a triple plus an optional graph name.
type Quad struct {
	// S is the subject.
	S Term
	// P is the predicate.
	P IRI
	// O is the object.
	O Term
	// G is the graph name, or nil for the default graph.
	G Term
}

// NewQuad builds a quad; g may be nil.
func NewQuad(s Term, p IRI, o Term, g Term) Quad {
	return Quad{S: s, P: p, O: o, G: g}
}

// IsZero reports whether the quad has no subject/predicate/object.
func (q Quad) IsZero() bool {
	return q.S == nil && q.P.Value == "" && q.O == nil && q.G == nil
}

// InDefaultGraph reports whether the quad is in the default graph (no named graph).
func (q Quad) InDefaultGraph() bool {
	return q.G == nil
}

// Triple returns the quad moved to the default graph.
func (q Quad) Triple() Quad {
	return Quad{S: q.S, P: q.P, O: q.O}
}

// String returns the N-Quads line of the quad, without the trailing newline.
func (q Quad) String() string {
	var b strings.Builder
	b.WriteString(renderTerm(q.S))
	b.WriteByte(' ')
	b.WriteString(renderIRI(q.P))
	b.WriteByte(' ')
	b.WriteString(renderTerm(q.O))
	if q.G != nil {
		b.WriteByte(' ')
		b.WriteString(renderTerm(q.G))
	}
	b.WriteString(" .")
	return b.String()
}
