// Package rules evaluates Horn-style inference rules over a statement stream.
//
// A Ruleset is a list of rules whose body and head are statement patterns
// with ?variables. Rulesets are usually loaded from YAML:
//
//	prefixes:
//	  ex: http://example.org/
//	rules:
//	  - id: subclass
//	    body:
//	      - ?x a ?c
//	      - ?c rdfs:subClassOf ?d
//	    head:
//	      - ?x a ?d
//
// Engines are looked up by name in a registry; the naive forward-chaining
// engine is always available.
package rules

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/geoknoesis/rdfstream/pipeline"
	"github.com/geoknoesis/rdfstream/rdf"
)

// Node is a pattern position: a variable when Var is set, otherwise the
// constant Term. The zero Node is a wildcard in a body graph position and
// the default graph in a head.
type Node struct {
	Var  string
	Term rdf.Term
}

// Variable returns a variable node.
func Variable(name string) Node { return Node{Var: name} }

// Constant returns a constant node.
func Constant(t rdf.Term) Node { return Node{Term: t} }

func (n Node) isZero() bool { return n.Var == "" && n.Term == nil }

func (n Node) String() string {
	switch {
	case n.Var != "":
		return "?" + n.Var
	case n.Term == nil:
		return "*"
	}
	return n.Term.String()
}

// Pattern is a statement pattern.
type Pattern struct {
	S, P, O, G Node
}

func (p Pattern) nodes() [4]Node { return [4]Node{p.S, p.P, p.O, p.G} }

func (p Pattern) String() string {
	parts := []string{p.S.String(), p.P.String(), p.O.String()}
	if !p.G.isZero() {
		parts = append(parts, p.G.String())
	}
	return strings.Join(parts, " ")
}

// Rule derives the head patterns for every binding of the body patterns.
type Rule struct {
	ID   string
	Body []Pattern
	Head []Pattern
}

// Ruleset is a validated list of rules.
type Ruleset struct {
	rules []Rule
}

// NewRuleset validates the rules: ids must be unique, bodies and heads not
// empty, and every head variable must occur in the body.
func NewRuleset(rules ...Rule) (*Ruleset, error) {
	ids := map[string]bool{}
	for i, r := range rules {
		if r.ID == "" {
			return nil, pipeline.Configf("rules", "rule %d has no id", i)
		}
		if ids[r.ID] {
			return nil, pipeline.Configf("rules", "duplicate rule id %q", r.ID)
		}
		ids[r.ID] = true
		if len(r.Body) == 0 || len(r.Head) == 0 {
			return nil, pipeline.Configf("rules", "rule %q needs a body and a head", r.ID)
		}
		bound := map[string]bool{}
		for _, p := range r.Body {
			for _, n := range p.nodes() {
				if n.Var != "" {
					bound[n.Var] = true
				}
			}
		}
		for _, p := range r.Head {
			for _, n := range p.nodes() {
				if n.Var != "" && !bound[n.Var] {
					return nil, pipeline.Configf("rules", "rule %q: head variable ?%s not bound by the body", r.ID, n.Var)
				}
			}
		}
	}
	return &Ruleset{rules: append([]Rule(nil), rules...)}, nil
}

// Rules returns the rules in order.
func (rs *Ruleset) Rules() []Rule { return append([]Rule(nil), rs.rules...) }

// Len returns the number of rules.
func (rs *Ruleset) Len() int { return len(rs.rules) }

type rulesetFile struct {
	Prefixes map[string]string `yaml:"prefixes"`
	Rules    []struct {
		ID   string   `yaml:"id"`
		Body []string `yaml:"body"`
		Head []string `yaml:"head"`
	} `yaml:"rules"`
}

var defaultPrefixes = map[string]string{
	"rdf":  rdf.NamespaceRDF,
	"rdfs": "http://www.w3.org/2000/01/rdf-schema#",
	"owl":  rdf.NamespaceOWL,
	"xsd":  rdf.NamespaceXSD,
}

// LoadRuleset reads a YAML ruleset.
func LoadRuleset(r io.Reader) (*Ruleset, error) {
	var file rulesetFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, &pipeline.ConfigurationError{Op: "rules", Err: errors.Wrap(err, "decode ruleset")}
	}
	prefixes := map[string]string{}
	for k, v := range defaultPrefixes {
		prefixes[k] = v
	}
	for k, v := range file.Prefixes {
		prefixes[k] = v
	}
	rules := make([]Rule, 0, len(file.Rules))
	for _, fr := range file.Rules {
		rule := Rule{ID: fr.ID}
		for _, src := range fr.Body {
			p, err := ParsePattern(src, prefixes)
			if err != nil {
				return nil, pipeline.Configf("rules", "rule %q: %v", fr.ID, err)
			}
			rule.Body = append(rule.Body, p)
		}
		for _, src := range fr.Head {
			p, err := ParsePattern(src, prefixes)
			if err != nil {
				return nil, pipeline.Configf("rules", "rule %q: %v", fr.ID, err)
			}
			rule.Head = append(rule.Head, p)
		}
		rules = append(rules, rule)
	}
	return NewRuleset(rules...)
}

// LoadRulesetFile reads a YAML ruleset from path.
func LoadRulesetFile(path string) (*Ruleset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &pipeline.ConfigurationError{Op: "rules", Err: errors.Wrapf(err, "open ruleset %s", path)}
	}
	defer f.Close()
	return LoadRuleset(f)
}

// ParsePattern parses three or four whitespace separated nodes: ?variables,
// N-Triples terms, prefixed names, or "a" for rdf:type.
func ParsePattern(src string, prefixes map[string]string) (Pattern, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return Pattern{}, err
	}
	if len(tokens) != 3 && len(tokens) != 4 {
		return Pattern{}, errors.Errorf("pattern %q: expected 3 or 4 nodes, got %d", src, len(tokens))
	}
	var nodes [4]Node
	for i, tok := range tokens {
		if nodes[i], err = parseNode(tok, prefixes); err != nil {
			return Pattern{}, errors.Wrapf(err, "pattern %q", src)
		}
	}
	p := Pattern{S: nodes[0], P: nodes[1], O: nodes[2], G: nodes[3]}
	if p.P.Var == "" {
		if _, ok := p.P.Term.(rdf.IRI); !ok {
			return Pattern{}, errors.Errorf("pattern %q: predicate must be an IRI or a variable", src)
		}
	}
	return p, nil
}

func parseNode(tok string, prefixes map[string]string) (Node, error) {
	switch {
	case strings.HasPrefix(tok, "?"):
		if len(tok) == 1 {
			return Node{}, errors.New("empty variable name")
		}
		return Variable(tok[1:]), nil
	case tok == "a":
		return Constant(rdf.RDFType), nil
	case strings.HasPrefix(tok, "<"), strings.HasPrefix(tok, "\""), strings.HasPrefix(tok, "_:"):
		t, err := rdf.ParseTerm(tok)
		if err != nil {
			return Node{}, err
		}
		return Constant(t), nil
	}
	i := strings.IndexByte(tok, ':')
	if i < 0 {
		return Node{}, errors.Errorf("invalid node %q", tok)
	}
	ns, ok := prefixes[tok[:i]]
	if !ok {
		return Node{}, errors.Errorf("unknown prefix %q", tok[:i])
	}
	return Constant(rdf.IRI{Value: ns + tok[i+1:]}), nil
}

// tokenize splits on whitespace outside of quoted literals and IRIs.
func tokenize(src string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inQuote, inIRI, escaped := false, false, false
	for _, r := range src {
		switch {
		case escaped:
			escaped = false
		case inQuote && r == '\\':
			escaped = true
		case r == '"' && !inIRI:
			inQuote = !inQuote
		case r == '<' && !inQuote:
			inIRI = true
		case r == '>' && inIRI:
			inIRI = false
		case (r == ' ' || r == '\t') && !inQuote && !inIRI:
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
			continue
		}
		cur.WriteRune(r)
	}
	if inQuote || inIRI {
		return nil, errors.Errorf("unterminated term in %q", src)
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens, nil
}
