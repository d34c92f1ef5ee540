package mapreduce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoknoesis/rdfstream/pipeline"
	"github.com/geoknoesis/rdfstream/rdf"
)

func reduceAll(t *testing.T, r Reducer, key rdf.Term, stmts ...rdf.Quad) []rdf.Quad {
	t.Helper()
	out := pipeline.NewBuffer()
	require.NoError(t, r.Reduce(key, stmts, out))
	return out.Statements()
}

func TestFilterReducer(t *testing.T) {
	typed := rdf.NewQuad(ex("s"), rdf.RDFType, ex("C"), nil)
	label := rdf.NewQuad(ex("s"), ex("label"), rdf.Literal{Lexical: "s"}, nil)
	isType := func(q rdf.Quad) bool { return q.P == rdf.RDFType }
	isIRIObject := func(q rdf.Quad) bool { return rdf.IsResource(q.O) }

	assert.Len(t, reduceAll(t, FilterReducer(Identity, isType, nil), ex("s"), typed, label), 2)
	assert.Empty(t, reduceAll(t, FilterReducer(Identity, isType, nil), ex("s"), label))
	assert.Empty(t, reduceAll(t, FilterReducer(Identity, nil, isIRIObject), ex("s"), typed, label))
	assert.Len(t, reduceAll(t, FilterReducer(Identity, isType, isIRIObject), ex("s"), typed), 1)
	assert.Empty(t, reduceAll(t, FilterReducer(Identity, isType, isIRIObject), ex("s"), typed, label))
}

func TestConcatReducers(t *testing.T) {
	q := rdf.NewQuad(ex("s"), ex("p"), ex("o"), nil)
	assert.Equal(t, []rdf.Quad{q, q}, reduceAll(t, ConcatReducers(Identity, Identity), ex("s"), q))
}

func TestAggregate(t *testing.T) {
	r, err := Aggregate("s <http://example.org/count> n")
	require.NoError(t, err)
	stmts := []rdf.Quad{
		rdf.NewQuad(ex("s"), ex("p"), ex("a"), nil),
		rdf.NewQuad(ex("s"), ex("p"), ex("b"), nil),
	}
	got := reduceAll(t, r, ex("s"), stmts...)
	assert.Equal(t, []rdf.Quad{
		rdf.NewQuad(ex("s"), ex("count"), rdf.Literal{Lexical: "2", Datatype: rdf.XSDLong}, nil),
	}, got)

	r, err = Aggregate("o p s c")
	require.NoError(t, err)
	lit := rdf.NewQuad(ex("s"), ex("p"), rdf.Literal{Lexical: "x"}, ex("g"))
	assert.Empty(t, reduceAll(t, r, ex("s"), lit), "literal subject")
	res := rdf.NewQuad(ex("s"), ex("p"), ex("o"), ex("g"))
	assert.Equal(t, []rdf.Quad{rdf.NewQuad(ex("o"), ex("p"), ex("s"), ex("g"))}, reduceAll(t, r, ex("s"), res))
}

func TestAggregateInvalid(t *testing.T) {
	for _, expr := range []string{"", "s p", "s p o c n", "s <unterminated n"} {
		_, err := Aggregate(expr)
		assert.True(t, pipeline.IsConfigurationError(err), "%q", expr)
	}
}
