package rules

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoknoesis/rdfstream/pipeline"
	"github.com/geoknoesis/rdfstream/rdf"
)

func loadRDFS(t *testing.T) *Ruleset {
	t.Helper()
	rs, err := LoadRulesetFile("testdata/rdfs.yaml")
	require.NoError(t, err)
	return rs
}

func evaluate(t *testing.T, rs *Ruleset, input []rdf.Quad, dedup bool, passes int) (*pipeline.Buffer, *logrustest.Hook) {
	t.Helper()
	logger, hook := logrustest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	engine, err := NewEngine(Naive, rs, logger)
	require.NoError(t, err)
	sink := pipeline.NewBuffer()
	src := pipeline.NewSliceSource(input, 4)
	require.NoError(t, pipeline.Apply(context.Background(), src, NewProcessor(engine, dedup), sink, passes))
	return sink, hook
}

func TestNaiveSubclassClosure(t *testing.T) {
	rex := ex("rex")
	input := []rdf.Quad{
		rdf.NewQuad(rex, rdf.RDFType, ex("Dog"), nil),
		rdf.NewQuad(ex("Dog"), subClassOf, ex("Mammal"), nil),
		rdf.NewQuad(ex("Mammal"), subClassOf, ex("Animal"), nil),
	}
	sink, hook := evaluate(t, loadRDFS(t), input, true, 1)

	want := append(append([]rdf.Quad(nil), input...),
		rdf.NewQuad(rex, rdf.RDFType, ex("Mammal"), nil),
		rdf.NewQuad(rex, rdf.RDFType, ex("Animal"), nil),
		rdf.NewQuad(ex("Dog"), subClassOf, ex("Animal"), nil),
		rdf.NewQuad(rex, rdf.IRI{Value: "http://www.w3.org/2000/01/rdf-schema#label"}, rdf.Literal{Lexical: "dog", Lang: "en"}, nil),
	)
	assert.ElementsMatch(t, want, sink.Statements())

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "rules", entry.Data["action"])
	assert.Contains(t, entry.Message, "rule evaluation completed")
}

func TestNaiveDeduplication(t *testing.T) {
	rs, err := NewRuleset(Rule{
		ID:   "knows",
		Body: []Pattern{{S: Variable("x"), P: Constant(ex("friend")), O: Variable("y")}},
		Head: []Pattern{{S: Variable("x"), P: Constant(ex("knows")), O: Variable("y")}},
	})
	require.NoError(t, err)
	a, b := ex("a"), ex("b")
	input := []rdf.Quad{
		rdf.NewQuad(a, ex("friend"), b, nil),
		rdf.NewQuad(a, ex("friend"), b, nil),
		rdf.NewQuad(a, ex("knows"), b, nil),
	}

	t.Run("deduplicated", func(t *testing.T) {
		sink, _ := evaluate(t, rs, input, true, 1)
		assert.ElementsMatch(t, []rdf.Quad{input[0], input[2]}, sink.Statements())
	})
	t.Run("raw", func(t *testing.T) {
		sink, _ := evaluate(t, rs, input, false, 1)
		assert.ElementsMatch(t, input, sink.Statements(), "input is forwarded as is and nothing new is derived")
	})
}

func TestNaiveGraphs(t *testing.T) {
	rs, err := NewRuleset(
		Rule{
			ID:   "copy",
			Body: []Pattern{{S: Variable("s"), P: Constant(ex("p")), O: Variable("o"), G: Variable("g")}},
			Head: []Pattern{{S: Variable("s"), P: Constant(ex("q")), O: Variable("o"), G: Variable("g")}},
		},
		Rule{
			ID:   "any",
			Body: []Pattern{{S: Variable("s"), P: Constant(ex("p")), O: Variable("o")}},
			Head: []Pattern{{S: Variable("o"), P: Constant(ex("r")), O: Variable("s")}},
		},
	)
	require.NoError(t, err)
	g := ex("g")
	input := []rdf.Quad{
		rdf.NewQuad(ex("s"), ex("p"), ex("o"), g),
		rdf.NewQuad(ex("t"), ex("p"), rdf.Literal{Lexical: "x"}, nil),
	}
	sink, _ := evaluate(t, rs, input, true, 1)
	assert.ElementsMatch(t, []rdf.Quad{
		input[0],
		input[1],
		rdf.NewQuad(ex("s"), ex("q"), ex("o"), g),
		rdf.NewQuad(ex("t"), ex("q"), rdf.Literal{Lexical: "x"}, nil),
		rdf.NewQuad(ex("o"), ex("r"), ex("s"), nil),
	}, sink.Statements(), "a literal never becomes a subject")
}

func TestNaiveVariablePredicate(t *testing.T) {
	rs, err := NewRuleset(Rule{
		ID: "symmetric",
		Body: []Pattern{
			{S: Variable("p"), P: Constant(rdf.RDFType), O: Constant(ex("Symmetric"))},
			{S: Variable("x"), P: Variable("p"), O: Variable("y")},
		},
		Head: []Pattern{{S: Variable("y"), P: Variable("p"), O: Variable("x")}},
	})
	require.NoError(t, err)
	input := []rdf.Quad{
		rdf.NewQuad(ex("near"), rdf.RDFType, ex("Symmetric"), nil),
		rdf.NewQuad(ex("a"), ex("near"), ex("b"), nil),
	}
	sink, _ := evaluate(t, rs, input, true, 1)
	assert.Contains(t, sink.Statements(), rdf.NewQuad(ex("b"), ex("near"), ex("a"), nil))
	assert.Len(t, sink.Statements(), 3)
}

func TestNaiveSeveralPasses(t *testing.T) {
	input := []rdf.Quad{
		rdf.NewQuad(ex("rex"), rdf.RDFType, ex("Dog"), nil),
		rdf.NewQuad(ex("Dog"), subClassOf, ex("Animal"), nil),
	}
	sink, _ := evaluate(t, loadRDFS(t), input, true, 2)
	assert.Equal(t, 2, sink.Passes())
	assert.Len(t, sink.Statements(), 4, "every pass starts from an empty model")
}

func TestEngineRegistry(t *testing.T) {
	assert.Contains(t, Engines(), Naive)

	_, err := NewEngine("rete", loadRDFS(t), nil)
	require.Error(t, err)
	assert.True(t, pipeline.IsConfigurationError(err))

	_, err = NewEngine(Naive, nil, nil)
	assert.True(t, pipeline.IsConfigurationError(err))

	Register("echo", func(*Ruleset, logrus.FieldLogger) (Engine, error) { return echoEngine{}, nil })
	engine, err := NewEngine("echo", loadRDFS(t), nil)
	require.NoError(t, err)
	assert.IsType(t, echoEngine{}, engine)
}

type echoEngine struct{}

func (echoEngine) Eval(sink pipeline.Handler, _ bool) pipeline.Handler { return sink }
