package rules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoknoesis/rdfstream/pipeline"
	"github.com/geoknoesis/rdfstream/rdf"
)

func ex(local string) rdf.IRI { return rdf.IRI{Value: "http://example.org/" + local} }

var subClassOf = rdf.IRI{Value: "http://www.w3.org/2000/01/rdf-schema#subClassOf"}

func TestTokenize(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{"?x a ?c", []string{"?x", "a", "?c"}},
		{`?x ex:p "two words"@en`, []string{"?x", "ex:p", `"two words"@en`}},
		{`?x <http://e.org/a b> "say \"hi\""`, []string{"?x", "<http://e.org/a b>", `"say \"hi\""`}},
		{"  ?s\t?p   ?o  ?g ", []string{"?s", "?p", "?o", "?g"}},
	}
	for _, tt := range tests {
		got, err := tokenize(tt.src)
		require.NoError(t, err, tt.src)
		assert.Equal(t, tt.want, got, tt.src)
	}

	_, err := tokenize(`?x ex:p "open`)
	assert.Error(t, err)
	_, err = tokenize(`?x <http://open ?o`)
	assert.Error(t, err)
}

func TestParsePattern(t *testing.T) {
	prefixes := map[string]string{"ex": "http://example.org/"}

	p, err := ParsePattern(`?x a ex:Dog`, prefixes)
	require.NoError(t, err)
	assert.Equal(t, Pattern{S: Variable("x"), P: Constant(rdf.RDFType), O: Constant(ex("Dog"))}, p)
	assert.Equal(t, "?x "+rdf.RDFType.Value+" http://example.org/Dog", p.String())

	p, err = ParsePattern(`_:b <http://example.org/p> "1"^^<http://www.w3.org/2001/XMLSchema#long> ?g`, prefixes)
	require.NoError(t, err)
	assert.Equal(t, Constant(rdf.BlankNode{ID: "b"}), p.S)
	assert.Equal(t, Constant(rdf.Literal{Lexical: "1", Datatype: rdf.XSDLong}), p.O)
	assert.Equal(t, Variable("g"), p.G)

	for _, src := range []string{
		"?x a",
		"?a ?b ?c ?d ?e",
		`?x "lit" ?o`,
		"?x zz:p ?o",
		"?x nocolon ?o",
		"? a ?c",
	} {
		_, err := ParsePattern(src, prefixes)
		assert.Error(t, err, src)
	}
}

func TestNewRulesetValidation(t *testing.T) {
	body := []Pattern{{S: Variable("x"), P: Constant(rdf.RDFType), O: Variable("c")}}
	head := []Pattern{{S: Variable("x"), P: Constant(rdf.RDFType), O: Constant(ex("Thing"))}}

	rs, err := NewRuleset(Rule{ID: "r1", Body: body, Head: head})
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Len())

	tests := map[string][]Rule{
		"no id":        {{Body: body, Head: head}},
		"duplicate id": {{ID: "r", Body: body, Head: head}, {ID: "r", Body: body, Head: head}},
		"empty body":   {{ID: "r", Head: head}},
		"empty head":   {{ID: "r", Body: body}},
		"unbound head": {{ID: "r", Body: body, Head: []Pattern{{S: Variable("y"), P: Constant(rdf.RDFType), O: Variable("c")}}}},
	}
	for name, rules := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewRuleset(rules...)
			require.Error(t, err)
			assert.True(t, pipeline.IsConfigurationError(err))
		})
	}
}

func TestLoadRulesetFile(t *testing.T) {
	rs, err := LoadRulesetFile("testdata/rdfs.yaml")
	require.NoError(t, err)
	require.Equal(t, 3, rs.Len())

	rules := rs.Rules()
	assert.Equal(t, "rdfs9", rules[0].ID)
	assert.Equal(t, Constant(subClassOf), rules[0].Body[1].P)
	assert.Equal(t, Constant(rdf.Literal{Lexical: "dog", Lang: "en"}), rules[2].Head[0].O)
}

func TestLoadRulesetErrors(t *testing.T) {
	tests := map[string]string{
		"unknown field":  "rules: []\nextra: 1\n",
		"bad pattern":    "rules:\n  - id: r\n    body: ['?x a']\n    head: ['?x a ?x']\n",
		"unknown prefix": "rules:\n  - id: r\n    body: ['?x zz:p ?y']\n    head: ['?x a ?y']\n",
		"invalid yaml":   "rules: [",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadRuleset(strings.NewReader(src))
			require.Error(t, err)
			assert.True(t, pipeline.IsConfigurationError(err))
		})
	}

	_, err := LoadRulesetFile("testdata/missing.yaml")
	assert.True(t, pipeline.IsConfigurationError(err))
}
