// Package smush replaces resources declared equivalent by owl:sameAs
// statements with one canonical representative per equivalence class.
//
// The first pass over the input collects the equivalence links into a
// compact dictionary and union-find; the following passes rewrite every
// statement. When the links come from a separate source the stage needs no
// extra pass.
package smush

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/willf/bloom"

	"github.com/geoknoesis/rdfstream/internal/monitoring"
	"github.com/geoknoesis/rdfstream/pipeline"
	"github.com/geoknoesis/rdfstream/rdf"
)

// DefaultExpectedResources sizes the dictionary when no estimate is given.
const DefaultExpectedResources = 1 << 16

// Processor is the smushing stage.
type Processor struct {
	ranking    Ranking
	emitSameAs bool
	mapKind    string
	predicate  rdf.IRI
	dedupSize  int
	expected   int
	logger     logrus.FieldLogger
	metrics    *monitoring.Metrics
	source     pipeline.Source
}

// Option configures a Processor.
type Option func(*Processor)

// WithRankedNamespaces prefers representatives from the given namespaces,
// in order.
func WithRankedNamespaces(namespaces ...string) Option {
	return func(p *Processor) { p.ranking = NewRanking(namespaces...) }
}

// WithEmitSameAs makes the stage emit, for every rewritten resource, a
// statement linking the representative to the original resource.
func WithEmitSameAs(emit bool) Option {
	return func(p *Processor) { p.emitSameAs = emit }
}

// WithMap selects the CodeMap implementation by name.
func WithMap(name string) Option {
	return func(p *Processor) { p.mapKind = name }
}

// WithPredicate replaces owl:sameAs as the equivalence predicate.
func WithPredicate(predicate rdf.IRI) Option {
	return func(p *Processor) { p.predicate = predicate }
}

// WithDedupSize sets how many emitted sameAs statements are remembered.
func WithDedupSize(n int) Option {
	return func(p *Processor) { p.dedupSize = n }
}

// WithExpectedResources presizes the dictionary.
func WithExpectedResources(n int) Option {
	return func(p *Processor) { p.expected = n }
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Processor) { p.logger = logger }
}

func WithMetrics(m *monitoring.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithSameAsSource reads the equivalence links from src, in a single pass at
// the start of the first pass, instead of from the stage input.
func WithSameAsSource(src pipeline.Source) Option {
	return func(p *Processor) { p.source = src }
}

// New returns a smushing stage.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		mapKind:   MapOpen,
		predicate: rdf.OWLSameAs,
		dedupSize: DefaultDedupSize,
		expected:  DefaultExpectedResources,
	}
	for _, opt := range opts {
		opt(p)
	}
	if _, ok := codeMaps[p.mapKind]; !ok {
		return nil, pipeline.Configf("smush", "unknown map %q, expected one of %v", p.mapKind, CodeMapNames())
	}
	if p.predicate.Value == "" {
		return nil, pipeline.Configf("smush", "empty equivalence predicate")
	}
	if p.dedupSize < 0 || p.expected < 0 {
		return nil, pipeline.Configf("smush", "sizes must not be negative")
	}
	if p.logger == nil {
		p.logger = logrus.StandardLogger()
	}
	return p, nil
}

// ExtraPasses is 1, or 0 when the links come from a separate source.
func (p *Processor) ExtraPasses() int {
	if p.source != nil {
		return 0
	}
	return 1
}

func (p *Processor) Wrap(next pipeline.Handler) pipeline.Handler {
	h := &handler{p: p, next: next, indexing: p.source == nil}
	h.dict = NewDictionary(p.expected)
	links, _ := NewCodeMap(p.mapKind, p.expected)
	h.uf = NewUnionFind(h.dict, links)
	return h
}

type handler struct {
	p    *Processor
	next pipeline.Handler

	mu       sync.Mutex
	dict     *Dictionary
	uf       *UnionFind
	filter   *bloom.BloomFilter
	dedup    *Deduplicator
	indexing bool
	ready    bool
}

func (h *handler) logger() logrus.FieldLogger {
	return h.p.logger.WithField("action", "smush")
}

func (h *handler) Start() error {
	if h.indexing {
		return nil
	}
	if !h.ready {
		if err := h.load(); err != nil {
			return err
		}
	}
	return h.next.Start()
}

// load indexes the links of the separate sameAs source.
func (h *handler) load() error {
	indexer := pipeline.HandlerFuncs{OnStatement: h.index}
	if err := h.p.source.Emit(context.Background(), indexer, 1); err != nil {
		return pipeline.NewSourceError("smush sameAs", err)
	}
	return h.freeze()
}

func (h *handler) Namespace(prefix, iri string) error {
	if h.indexing {
		return nil
	}
	return h.next.Namespace(prefix, iri)
}

func (h *handler) Comment(text string) error {
	if h.indexing {
		return nil
	}
	return h.next.Comment(text)
}

func (h *handler) Statement(q rdf.Quad) error {
	if h.indexing {
		return h.index(q)
	}
	return h.rewriteStatement(q)
}

func (h *handler) End() error {
	if h.indexing {
		h.indexing = false
		return h.freeze()
	}
	return h.next.End()
}

func (h *handler) Close() error {
	err := h.next.Close()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dict != nil {
		if cerr := h.dict.Close(); err == nil && cerr != nil {
			err = pipeline.NewHandlerError("smush", cerr)
		}
		h.dict, h.uf, h.filter = nil, nil, nil
	}
	return err
}

func (h *handler) index(q rdf.Quad) error {
	if q.P != h.p.predicate || !rdf.IsResource(q.S) || !rdf.IsResource(q.O) || q.S == q.O {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	a, err := h.dict.Encode(q.S)
	if err != nil {
		return pipeline.NewHandlerError("smush", err)
	}
	b, err := h.dict.Encode(q.O)
	if err != nil {
		return pipeline.NewHandlerError("smush", err)
	}
	h.uf.Link(a, b)
	return nil
}

// freeze normalizes the classes and builds the read-only lookup structures.
// It runs after the pass barrier, with no statement in flight.
func (h *handler) freeze() error {
	resources, clusters := h.uf.Normalize(h.p.ranking.codeLess(h.dict))

	n := uint(h.dict.Len())
	if n == 0 {
		n = 1
	}
	h.filter = bloom.NewWithEstimates(n, 0.01)
	for c := 1; c <= h.dict.Len(); c++ {
		code := Code(c)
		h.filter.Add(bloomKey(h.dict.text(code), h.dict.isBlankNode(code)))
	}
	if h.p.emitSameAs {
		dedup, err := NewDeduplicator(h.p.dedupSize)
		if err != nil {
			return pipeline.NewHandlerError("smush", err)
		}
		h.dedup = dedup
	}
	h.ready = true

	h.p.metrics.SmushNormalized(resources, clusters)
	h.logger().WithField("arena_bytes", h.dict.Bytes()).
		Infof("owl:sameAs normalization: %d resource(s), %d cluster(s)", resources, clusters)
	return nil
}

func bloomKey(text []byte, blank bool) []byte {
	key := make([]byte, 0, len(text)+1)
	if blank {
		key = append(key, '_')
	} else {
		key = append(key, '<')
	}
	return append(key, text...)
}

// canonical returns the representative of t, or t itself.
func (h *handler) canonical(t rdf.Term) rdf.Term {
	if !rdf.IsResource(t) {
		return t
	}
	text, blank := resourceText(t)
	if !h.filter.Test(bloomKey([]byte(text), blank)) {
		return t
	}
	code := h.dict.Lookup(t)
	if code == 0 {
		return t
	}
	rep := h.uf.Find(code)
	if rep == code {
		return t
	}
	return h.dict.Decode(rep)
}

func (h *handler) rewriteStatement(q rdf.Quad) error {
	out := q
	if q.G != nil {
		out.G = h.canonical(q.G)
	}
	out.S = h.canonical(q.S)
	if p, ok := h.canonical(q.P).(rdf.IRI); ok {
		out.P = p
	}
	if rdf.IsResource(q.O) {
		out.O = h.canonical(q.O)
	}
	if out == q {
		return h.next.Statement(q)
	}
	h.p.metrics.SmushRewritten()
	if out.P != h.p.predicate || out.S != out.O {
		if err := h.next.Statement(out); err != nil {
			return err
		}
	}
	if h.dedup == nil {
		return nil
	}
	for _, pair := range [][2]rdf.Term{{q.G, out.G}, {q.S, out.S}, {q.P, out.P}, {q.O, out.O}} {
		original, rep := pair[0], pair[1]
		if original == rep {
			continue
		}
		link := rdf.NewQuad(rep, h.p.predicate, original, out.G)
		if h.dedup.Add(link) {
			if err := h.next.Statement(link); err != nil {
				return err
			}
		}
	}
	return nil
}
