package rules

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/geoknoesis/rdfstream/pipeline"
	"github.com/geoknoesis/rdfstream/rdf"
)

// Naive is the name of the in-memory forward-chaining engine. It buffers a
// pass, then applies every rule to the whole buffer until nothing new is
// derived.
const Naive = "naive"

func init() {
	Register(Naive, newNaiveEngine)
}

type naiveEngine struct {
	rules  []Rule
	logger logrus.FieldLogger
}

func newNaiveEngine(rs *Ruleset, logger logrus.FieldLogger) (Engine, error) {
	if rs == nil {
		return nil, pipeline.Configf("rules", "no ruleset")
	}
	return &naiveEngine{rules: rs.Rules(), logger: logger}, nil
}

func (e *naiveEngine) Eval(sink pipeline.Handler, deduplicate bool) pipeline.Handler {
	return &naiveHandler{Forwarder: pipeline.Forwarder{Next: sink}, engine: e, dedup: deduplicate}
}

type naiveHandler struct {
	pipeline.Forwarder
	engine *naiveEngine
	dedup  bool

	mu      sync.Mutex
	model   *model
	input   int
	started time.Time
}

func (h *naiveHandler) Start() error {
	h.model = newModel()
	h.input = 0
	h.started = time.Now()
	return h.Next.Start()
}

func (h *naiveHandler) Statement(q rdf.Quad) error {
	h.mu.Lock()
	h.input++
	h.model.add(q)
	h.mu.Unlock()
	if h.dedup {
		return nil
	}
	return h.Next.Statement(q)
}

func (h *naiveHandler) End() error {
	derived := h.engine.closure(h.model)
	out := derived
	if h.dedup {
		out = h.model.all
	}
	for _, q := range out {
		if err := h.Next.Statement(q); err != nil {
			return err
		}
	}
	h.engine.logger.WithField("action", "rules").
		WithField("engine", Naive).
		WithField("took", time.Since(h.started)).
		Debugf("rule evaluation completed: %d input statements, %d derived", h.input, len(derived))
	h.model = nil
	return h.Next.End()
}

// model is a set of statements indexed by predicate, keeping insertion order.
type model struct {
	set    map[rdf.Quad]struct{}
	all    []rdf.Quad
	byPred map[rdf.IRI][]rdf.Quad
}

func newModel() *model {
	return &model{set: map[rdf.Quad]struct{}{}, byPred: map[rdf.IRI][]rdf.Quad{}}
}

func (m *model) has(q rdf.Quad) bool {
	_, ok := m.set[q]
	return ok
}

func (m *model) add(q rdf.Quad) bool {
	if m.has(q) {
		return false
	}
	m.set[q] = struct{}{}
	m.all = append(m.all, q)
	m.byPred[q.P] = append(m.byPred[q.P], q)
	return true
}

type binding map[string]rdf.Term

// closure adds to m everything the rules derive from it and returns the
// derived statements in derivation order.
func (e *naiveEngine) closure(m *model) []rdf.Quad {
	var derived []rdf.Quad
	for {
		var fresh []rdf.Quad
		pending := map[rdf.Quad]struct{}{}
		for _, r := range e.rules {
			solve(m, r.Body, binding{}, func(b binding) {
				for _, head := range r.Head {
					q, ok := instantiate(head, b)
					if !ok || m.has(q) {
						continue
					}
					if _, dup := pending[q]; dup {
						continue
					}
					pending[q] = struct{}{}
					fresh = append(fresh, q)
				}
			})
		}
		if len(fresh) == 0 {
			return derived
		}
		for _, q := range fresh {
			m.add(q)
		}
		derived = append(derived, fresh...)
	}
}

func solve(m *model, body []Pattern, b binding, emit func(binding)) {
	if len(body) == 0 {
		emit(b)
		return
	}
	p := body[0]
	candidates := m.all
	if pred, ok := resolve(p.P, b).(rdf.IRI); ok {
		candidates = m.byPred[pred]
	}
	for _, q := range candidates {
		if next, ok := match(p, q, b); ok {
			solve(m, body[1:], next, emit)
		}
	}
}

// resolve returns the constant or bound value of n, or nil.
func resolve(n Node, b binding) rdf.Term {
	if n.Var != "" {
		return b[n.Var]
	}
	return n.Term
}

func match(p Pattern, q rdf.Quad, b binding) (binding, bool) {
	nodes := p.nodes()
	terms := [4]rdf.Term{q.S, q.P, q.O, q.G}
	out := b
	copied := false
	for i, n := range nodes {
		switch {
		case n.Var != "":
			if v, bound := out[n.Var]; bound {
				if v != terms[i] {
					return nil, false
				}
				continue
			}
			if !copied {
				out = make(binding, len(b)+2)
				for k, v := range b {
					out[k] = v
				}
				copied = true
			}
			out[n.Var] = terms[i]
		case n.Term != nil:
			if n.Term != terms[i] {
				return nil, false
			}
		}
	}
	return out, true
}

func instantiate(p Pattern, b binding) (rdf.Quad, bool) {
	s := resolve(p.S, b)
	pred, ok := resolve(p.P, b).(rdf.IRI)
	o := resolve(p.O, b)
	g := resolve(p.G, b)
	if !ok || !rdf.IsResource(s) || o == nil || (g != nil && !rdf.IsResource(g)) {
		return rdf.Quad{}, false
	}
	return rdf.NewQuad(s, pred, o, g), true
}
