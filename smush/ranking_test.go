package smush

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/geoknoesis/rdfstream/rdf"
)

func TestRankingOrder(t *testing.T) {
	r := NewRanking("http://preferred.org/", "http://example.org/")
	terms := []rdf.Term{
		rdf.BlankNode{ID: "b10"},
		rdf.IRI{Value: "http://other.org/x"},
		rdf.IRI{Value: "http://example.org/long"},
		rdf.BlankNode{ID: "b2"},
		rdf.IRI{Value: "http://example.org/ab"},
		rdf.IRI{Value: "http://preferred.org/very/long/name"},
		rdf.IRI{Value: "http://example.org/aa"},
		rdf.IRI{Value: "http://a.org/y"},
	}
	sort.Slice(terms, func(i, j int) bool { return r.Less(terms[i], terms[j]) })
	assert.Equal(t, []rdf.Term{
		rdf.IRI{Value: "http://preferred.org/very/long/name"},
		rdf.IRI{Value: "http://example.org/aa"},
		rdf.IRI{Value: "http://example.org/ab"},
		rdf.IRI{Value: "http://example.org/long"},
		rdf.IRI{Value: "http://a.org/y"},
		rdf.IRI{Value: "http://other.org/x"},
		rdf.BlankNode{ID: "b2"},
		rdf.BlankNode{ID: "b10"},
	}, terms)
}

func TestRankingWithoutNamespaces(t *testing.T) {
	r := NewRanking()
	assert.True(t, r.Less(rdf.IRI{Value: "http://z.org/a"}, rdf.IRI{Value: "http://a.org/ab"}), "shorter first")
	assert.True(t, r.Less(rdf.IRI{Value: "http://z.org/very/long"}, rdf.BlankNode{ID: "b"}), "IRIs before blank nodes")
	assert.False(t, r.Less(rdf.IRI{Value: "http://a.org/"}, rdf.IRI{Value: "http://a.org/"}))
}
