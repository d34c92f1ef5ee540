package smush

import (
	"bytes"

	"github.com/geoknoesis/rdfstream/rdf"
)

// Ranking orders the members of an equivalence cluster; the minimum becomes
// the canonical representative. IRIs come before blank nodes. Among IRIs,
// one starting with a ranked namespace comes first, an earlier namespace
// winning over a later one. Ties go to the shorter string, then to the
// lexicographically smaller one.
type Ranking struct {
	namespaces []string
}

// NewRanking returns a ranking preferring the given namespaces in order.
func NewRanking(namespaces ...string) Ranking {
	return Ranking{namespaces: append([]string(nil), namespaces...)}
}

// Namespaces returns the ranked namespaces.
func (r Ranking) Namespaces() []string {
	return append([]string(nil), r.namespaces...)
}

func (r Ranking) rank(s []byte) int {
	for i, ns := range r.namespaces {
		if len(s) >= len(ns) && string(s[:len(ns)]) == ns {
			return i
		}
	}
	return len(r.namespaces)
}

func (r Ranking) compare(aBlank bool, a []byte, bBlank bool, b []byte) int {
	if aBlank != bBlank {
		if bBlank {
			return -1
		}
		return 1
	}
	if !aBlank {
		if ra, rb := r.rank(a), r.rank(b); ra != rb {
			if ra < rb {
				return -1
			}
			return 1
		}
	}
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return bytes.Compare(a, b)
}

// Less reports whether resource a ranks before resource b.
func (r Ranking) Less(a, b rdf.Term) bool {
	as, aBlank := resourceText(a)
	bs, bBlank := resourceText(b)
	return r.compare(aBlank, []byte(as), bBlank, []byte(bs)) < 0
}

func resourceText(t rdf.Term) (string, bool) {
	switch v := t.(type) {
	case rdf.BlankNode:
		return v.ID, true
	case rdf.IRI:
		return v.Value, false
	}
	return "", true
}

// codeLess compares dictionary entries without decoding them.
func (r Ranking) codeLess(d *Dictionary) func(a, b Code) bool {
	return func(a, b Code) bool {
		return r.compare(d.isBlankNode(a), d.text(a), d.isBlankNode(b), d.text(b)) < 0
	}
}
