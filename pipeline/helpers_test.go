package pipeline

import (
	"fmt"
	"sync/atomic"

	"github.com/geoknoesis/rdfstream/rdf"
)

func iri(s string) rdf.IRI { return rdf.IRI{Value: "http://example.org/" + s} }

func quad(s, p, o string) rdf.Quad {
	return rdf.NewQuad(iri(s), iri(p), iri(o), nil)
}

func quads(n int) []rdf.Quad {
	out := make([]rdf.Quad, n)
	for i := range out {
		out[i] = quad(fmt.Sprintf("s%d", i), "p", fmt.Sprintf("o%d", i%7))
	}
	return out
}

// skipPasses swallows the first extra passes, like a stage that needs them
// to build state before producing output.
type skipPasses struct {
	extra int
}

func (s skipPasses) ExtraPasses() int { return s.extra }

func (s skipPasses) Wrap(next Handler) Handler {
	return &skipHandler{Forwarder: Forwarder{Next: next}, extra: s.extra}
}

type skipHandler struct {
	Forwarder
	extra int
	pass  int
}

func (h *skipHandler) Start() error {
	h.pass++
	if h.pass <= h.extra {
		return nil
	}
	return h.Next.Start()
}

func (h *skipHandler) Statement(q rdf.Quad) error {
	if h.pass <= h.extra {
		return nil
	}
	return h.Next.Statement(q)
}

func (h *skipHandler) End() error {
	if h.pass <= h.extra {
		return nil
	}
	return h.Next.End()
}

// counting records the callbacks it forwards.
type counting struct {
	starts, ends, closes, statements atomic.Int64
}

func (c *counting) ExtraPasses() int { return 0 }

func (c *counting) Wrap(next Handler) Handler {
	return HandlerFuncs{
		OnStart:     func() error { c.starts.Add(1); return next.Start() },
		OnNamespace: next.Namespace,
		OnComment:   next.Comment,
		OnStatement: func(q rdf.Quad) error { c.statements.Add(1); return next.Statement(q) },
		OnEnd:       func() error { c.ends.Add(1); return next.End() },
		OnClose:     func() error { c.closes.Add(1); return next.Close() },
	}
}
