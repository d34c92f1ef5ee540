package pipeline

import (
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/geoknoesis/rdfstream/rdf"
	"github.com/geoknoesis/rdfstream/sorter"
)

type parallel struct {
	op       SetOperator
	branches []Processor
	extra    int
	grouper  sorter.Grouper
}

// Parallel feeds the same input to every branch and merges their outputs
// with op. The stage needs as many extra passes as its most demanding
// branch; a branch needing fewer does not see the leading passes. The
// grouper is used by every operator except SumMultiset; nil selects
// sorter.Default.
func Parallel(op SetOperator, grouper sorter.Grouper, branches ...Processor) Processor {
	if len(branches) == 0 {
		return Identity
	}
	p := &parallel{op: op, branches: branches, grouper: grouper}
	for _, b := range branches {
		if k := b.ExtraPasses(); k > p.extra {
			p.extra = k
		}
	}
	return p
}

func (p *parallel) ExtraPasses() int { return p.extra }

func (p *parallel) Wrap(next Handler) Handler {
	grouper := p.grouper
	if grouper == nil && p.op.token != SumMultiset.token {
		grouper = sorter.Default(nil)
	}
	inputs := NewCollector(next, len(p.branches), p.op, grouper)
	d := &dispatcher{
		branches: make([]Handler, len(p.branches)),
		skip:     make([]int, len(p.branches)),
	}
	for i, b := range p.branches {
		d.branches[i] = b.Wrap(inputs[i])
		d.skip[i] = p.extra - b.ExtraPasses()
	}
	return d
}

// dispatcher replicates every callback to the branches active in the
// current pass.
type dispatcher struct {
	branches []Handler
	skip     []int
	pass     int
	once     sync.Once
}

func (d *dispatcher) each(fn func(Handler) error) error {
	for i, b := range d.branches {
		if d.pass > d.skip[i] {
			if err := fn(b); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *dispatcher) Start() error {
	d.pass++
	return d.each(func(h Handler) error { return h.Start() })
}

func (d *dispatcher) Namespace(prefix, iri string) error {
	return d.each(func(h Handler) error { return h.Namespace(prefix, iri) })
}

func (d *dispatcher) Comment(text string) error {
	return d.each(func(h Handler) error { return h.Comment(text) })
}

func (d *dispatcher) Statement(q rdf.Quad) error {
	return d.each(func(h Handler) error { return h.Statement(q) })
}

func (d *dispatcher) End() error {
	return d.each(func(h Handler) error { return h.End() })
}

func (d *dispatcher) Close() error {
	var err error
	d.once.Do(func() { err = closeAll(d.branches) })
	return err
}

// collector merges n labelled inputs into next. It forwards a single
// Start/End per pass and closes next when the last input is closed.
type collector struct {
	next    Handler
	n       int
	op      SetOperator
	grouper sorter.Grouper
	logger  logrus.FieldLogger

	mu      sync.Mutex
	started int
	ended   int
	closed  int
	session sorter.Session
}

// NewCollector returns n handlers whose statements are combined with op
// and written to next.
func NewCollector(next Handler, n int, op SetOperator, grouper sorter.Grouper) []Handler {
	c := &collector{
		next:    next,
		n:       n,
		op:      op,
		grouper: grouper,
		logger:  logrus.StandardLogger().WithField("action", "collect"),
	}
	inputs := make([]Handler, n)
	for i := range inputs {
		inputs[i] = &collectorInput{c: c, label: uint64(i)}
	}
	return inputs
}

func (c *collector) direct() bool { return c.op.token == SumMultiset.token }

func (c *collector) union() bool { return c.op.token == Union.token }

func (c *collector) start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started++
	if c.started > 1 {
		return nil
	}
	if !c.direct() {
		session, err := c.grouper.Open(c.union())
		if err != nil {
			return NewHandlerError("parallel", err)
		}
		c.session = session
	}
	return c.next.Start()
}

func (c *collector) end() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ended++
	if c.ended < c.n {
		return nil
	}
	c.started, c.ended = 0, 0
	if c.session != nil {
		session := c.session
		c.session = nil
		err := c.drain(session)
		if cerr := session.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return NewHandlerError("parallel", err)
		}
	}
	return c.next.End()
}

func (c *collector) drain(session sorter.Session) error {
	if c.union() {
		return session.Drain(runtime.GOMAXPROCS(0), func(rec []byte) error {
			q, err := sorter.NewReader(rec).Quad()
			if err != nil {
				return err
			}
			return c.next.Statement(q)
		})
	}

	var (
		current rdf.Quad
		counts  = make([]int, c.n)
		have    bool
		reader  = sorter.NewReader(nil)
	)
	flush := func() error {
		times := c.op.Apply(counts)
		for i := 0; i < times; i++ {
			if err := c.next.Statement(current); err != nil {
				return err
			}
		}
		for i := range counts {
			counts[i] = 0
		}
		return nil
	}
	err := session.Drain(1, func(rec []byte) error {
		reader.Reset(rec)
		q, err := reader.Quad()
		if err != nil {
			return err
		}
		label, err := reader.Uint()
		if err != nil {
			return err
		}
		if label >= uint64(c.n) {
			return sorter.ErrMalformedRecord
		}
		if have && q != current {
			if err := flush(); err != nil {
				return err
			}
		}
		current, have = q, true
		counts[label]++
		return nil
	})
	if err != nil || !have {
		return err
	}
	return flush()
}

func (c *collector) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	if c.closed != c.n {
		return nil
	}
	if c.session != nil {
		_ = c.session.Close()
		c.session = nil
	}
	return c.next.Close()
}

type collectorInput struct {
	c     *collector
	label uint64
	buf   sync.Pool
}

func (in *collectorInput) Start() error { return in.c.start() }

func (in *collectorInput) Namespace(prefix, iri string) error {
	return in.c.next.Namespace(prefix, iri)
}

func (in *collectorInput) Comment(text string) error { return in.c.next.Comment(text) }

func (in *collectorInput) Statement(q rdf.Quad) error {
	if in.c.direct() {
		return in.c.next.Statement(q)
	}
	var buf []byte
	if v, ok := in.buf.Get().(*[]byte); ok {
		buf = (*v)[:0]
	}
	buf = sorter.AppendQuad(buf, q)
	if !in.c.union() {
		buf = sorter.AppendUint(buf, in.label)
	}
	err := in.c.session.Emit(buf)
	in.buf.Put(&buf)
	if err != nil {
		return NewHandlerError("parallel", err)
	}
	return nil
}

func (in *collectorInput) End() error { return in.c.end() }

func (in *collectorInput) Close() error { return in.c.close() }
