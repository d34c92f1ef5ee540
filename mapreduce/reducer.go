package mapreduce

import (
	"strconv"
	"strings"

	"github.com/geoknoesis/rdfstream/pipeline"
	"github.com/geoknoesis/rdfstream/rdf"
)

// Reducer processes the statements sharing a key, writing its results to
// out. Statements arrive in the order they were mapped unless the processor
// deduplicates. Reduce is called concurrently for different keys; stmts
// belongs to the call.
type Reducer interface {
	Reduce(key rdf.Term, stmts []rdf.Quad, out pipeline.Handler) error
}

// ReducerFunc adapts a function to a Reducer.
type ReducerFunc func(key rdf.Term, stmts []rdf.Quad, out pipeline.Handler) error

func (f ReducerFunc) Reduce(key rdf.Term, stmts []rdf.Quad, out pipeline.Handler) error {
	return f(key, stmts, out)
}

// Identity emits every statement of the group.
var Identity Reducer = ReducerFunc(func(_ rdf.Term, stmts []rdf.Quad, out pipeline.Handler) error {
	for _, q := range stmts {
		if err := out.Statement(q); err != nil {
			return err
		}
	}
	return nil
})

// FilterReducer applies r only to groups where some statement satisfies
// exists and every statement satisfies forAll. Nil predicates are ignored.
func FilterReducer(r Reducer, exists, forAll func(rdf.Quad) bool) Reducer {
	if exists == nil && forAll == nil {
		return r
	}
	return ReducerFunc(func(key rdf.Term, stmts []rdf.Quad, out pipeline.Handler) error {
		found := exists == nil
		for _, q := range stmts {
			if forAll != nil && !forAll(q) {
				return nil
			}
			if !found && exists(q) {
				found = true
				if forAll == nil {
					break
				}
			}
		}
		if !found {
			return nil
		}
		return r.Reduce(key, stmts, out)
	})
}

// ConcatReducers runs every reducer on the group, in order.
func ConcatReducers(rs ...Reducer) Reducer {
	if len(rs) == 1 {
		return rs[0]
	}
	return ReducerFunc(func(key rdf.Term, stmts []rdf.Quad, out pipeline.Handler) error {
		for _, r := range rs {
			if err := r.Reduce(key, stmts, out); err != nil {
				return err
			}
		}
		return nil
	})
}

// Aggregate returns a reducer emitting one statement per group, built from
// up to four whitespace separated tokens for subject, predicate, object and
// graph. The tokens s, p, o and c take the field of the first statement of
// the group, n the group size as an xsd:long literal; any other token is
// parsed as a constant term. A statement that would be invalid, such as one
// with a literal subject, is not emitted.
func Aggregate(expr string) (Reducer, error) {
	tokens := strings.Fields(expr)
	if len(tokens) < 3 || len(tokens) > 4 {
		return nil, pipeline.Configf("aggregate", "expected 3 or 4 components in %q", expr)
	}
	var parts [4]func(key rdf.Term, stmts []rdf.Quad) rdf.Term
	for i, tok := range tokens {
		part, err := aggregatePart(tok)
		if err != nil {
			return nil, pipeline.Configf("aggregate", "invalid component %q in %q: %v", tok, expr, err)
		}
		parts[i] = part
	}
	return ReducerFunc(func(key rdf.Term, stmts []rdf.Quad, out pipeline.Handler) error {
		if len(stmts) == 0 {
			return nil
		}
		var values [4]rdf.Term
		for i, part := range parts {
			if part != nil {
				values[i] = part(key, stmts)
			}
		}
		p, ok := values[1].(rdf.IRI)
		if !ok || !rdf.IsResource(values[0]) || values[2] == nil {
			return nil
		}
		q := rdf.NewQuad(values[0], p, values[2], nil)
		if rdf.IsResource(values[3]) {
			q.G = values[3]
		}
		return out.Statement(q)
	}), nil
}

func aggregatePart(tok string) (func(rdf.Term, []rdf.Quad) rdf.Term, error) {
	switch strings.ToLower(tok) {
	case "s":
		return func(_ rdf.Term, stmts []rdf.Quad) rdf.Term { return stmts[0].S }, nil
	case "p":
		return func(_ rdf.Term, stmts []rdf.Quad) rdf.Term { return stmts[0].P }, nil
	case "o":
		return func(_ rdf.Term, stmts []rdf.Quad) rdf.Term { return stmts[0].O }, nil
	case "c":
		return func(_ rdf.Term, stmts []rdf.Quad) rdf.Term { return stmts[0].G }, nil
	case "n":
		return func(_ rdf.Term, stmts []rdf.Quad) rdf.Term {
			return rdf.Literal{Lexical: strconv.Itoa(len(stmts)), Datatype: rdf.XSDLong}
		}, nil
	}
	t, err := rdf.ParseTerm(tok)
	if err != nil {
		return nil, err
	}
	return func(rdf.Term, []rdf.Quad) rdf.Term { return t }, nil
}
