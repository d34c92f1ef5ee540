package smush

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoknoesis/rdfstream/rdf"
)

type linker struct {
	t    *testing.T
	dict *Dictionary
	uf   *UnionFind
}

func newLinker(t *testing.T, mapKind string) *linker {
	t.Helper()
	dict := NewDictionary(0)
	t.Cleanup(func() { _ = dict.Close() })
	links, err := NewCodeMap(mapKind, 0)
	require.NoError(t, err)
	return &linker{t: t, dict: dict, uf: NewUnionFind(dict, links)}
}

func (l *linker) code(term rdf.Term) Code {
	c, err := l.dict.Encode(term)
	require.NoError(l.t, err)
	return c
}

func (l *linker) link(a, b rdf.Term) bool { return l.uf.Link(l.code(a), l.code(b)) }

func (l *linker) find(term rdf.Term) rdf.Term {
	return l.dict.Decode(l.uf.Find(l.dict.Lookup(term)))
}

func TestTransitiveLinks(t *testing.T) {
	for _, kind := range CodeMapNames() {
		t.Run(kind, func(t *testing.T) {
			l := newLinker(t, kind)
			a, b, c := ex("a"), ex("b"), ex("c")
			assert.True(t, l.link(a, b))
			assert.True(t, l.link(b, c))
			assert.False(t, l.link(c, a), "already in one class")
			assert.False(t, l.link(a, a))
			assert.ElementsMatch(t, []Code{l.code(a), l.code(b), l.code(c)}, l.uf.members(l.code(b)))

			resources, clusters := l.uf.Normalize(NewRanking().codeLess(l.dict))
			assert.Equal(t, 3, resources)
			assert.Equal(t, 1, clusters)
			for _, term := range []rdf.Term{a, b, c} {
				assert.Equal(t, rdf.Term(a), l.find(term))
			}
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	l := newLinker(t, MapOpen)
	for i := 0; i < 50; i++ {
		l.link(ex(fmt.Sprintf("n%d", i)), ex(fmt.Sprintf("n%d", (i*7+3)%50)))
		l.link(rdf.BlankNode{ID: fmt.Sprintf("b%d", i%5)}, ex(fmt.Sprintf("n%d", i)))
	}
	less := NewRanking().codeLess(l.dict)
	resources, clusters := l.uf.Normalize(less)
	require.Positive(t, clusters)

	first := map[Code]Code{}
	for c := 1; c <= l.dict.Len(); c++ {
		first[Code(c)] = l.uf.Find(Code(c))
	}
	again, againClusters := l.uf.Normalize(less)
	assert.Zero(t, again)
	assert.Zero(t, againClusters)
	for c, rep := range first {
		assert.Equal(t, rep, l.uf.Find(c))
		assert.Equal(t, rep, l.uf.Find(rep), "representative maps to itself")
	}
	assert.Equal(t, l.dict.Len(), resources)
}

func TestUnlinkedCodeIsOwnRepresentative(t *testing.T) {
	l := newLinker(t, MapBoxed)
	lonely := l.code(ex("lonely"))
	l.link(ex("a"), ex("b"))
	l.uf.Normalize(NewRanking().codeLess(l.dict))
	assert.Equal(t, lonely, l.uf.Find(lonely))
}
