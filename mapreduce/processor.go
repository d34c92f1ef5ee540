package mapreduce

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/geoknoesis/rdfstream/internal/monitoring"
	"github.com/geoknoesis/rdfstream/pipeline"
	"github.com/geoknoesis/rdfstream/rdf"
	"github.com/geoknoesis/rdfstream/sorter"
)

const (
	// DefaultMinBatch is the number of statements gathered before a batch of
	// partitions is handed to the reducers.
	DefaultMinBatch = 256
	// DefaultPermitsPerCore bounds the batches in flight per core.
	DefaultPermitsPerCore = 4
)

// errAborted stops decoding once a reducer has failed; the reducer error
// itself is reported instead.
var errAborted = errors.New("mapreduce: aborted after reduce failure")

// Processor is a pipeline stage grouping its input by the keys of a Mapper
// and reducing each group with a Reducer. It needs no extra pass.
type Processor struct {
	mapper   Mapper
	reducer  Reducer
	dedup    bool
	grouper  sorter.Grouper
	pool     *pipeline.Pool
	logger   logrus.FieldLogger
	minBatch int
	perCore  int
	decoders int
	metrics  *monitoring.Metrics
}

// Option configures a Processor.
type Option func(*Processor)

// WithDedup drops duplicate statements within a group. The statements of a
// deduplicated group arrive in encoded byte order, not in mapping order.
func WithDedup(dedup bool) Option {
	return func(p *Processor) { p.dedup = dedup }
}

// WithGrouper sets the sort used for grouping; the default is sorter.Default.
func WithGrouper(g sorter.Grouper) Option {
	return func(p *Processor) { p.grouper = g }
}

// WithPool runs the reducers on pool. The caller keeps ownership of it. By
// default every pass starts and shuts down its own pool.
func WithPool(pool *pipeline.Pool) Option {
	return func(p *Processor) { p.pool = pool }
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Processor) { p.logger = logger }
}

func WithMinBatch(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.minBatch = n
		}
	}
}

func WithPermitsPerCore(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.perCore = n
		}
	}
}

// WithDecoders sets the number of goroutines decoding sorted records. With
// more than one, a group straddling two chunks of sorted output may be
// reduced as two groups.
func WithDecoders(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.decoders = n
		}
	}
}

func WithMetrics(m *monitoring.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// New returns a MapReduce stage.
func New(mapper Mapper, reducer Reducer, opts ...Option) *Processor {
	p := &Processor{
		mapper:   mapper,
		reducer:  reducer,
		minBatch: DefaultMinBatch,
		perCore:  DefaultPermitsPerCore,
		decoders: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logrus.StandardLogger()
	}
	if p.grouper == nil {
		p.grouper = sorter.Default(p.logger)
	}
	return p
}

func (p *Processor) ExtraPasses() int { return 0 }

func (p *Processor) Wrap(next pipeline.Handler) pipeline.Handler {
	return &handler{p: p, next: next}
}

func (p *Processor) permits() int64 {
	return int64(p.perCore * runtime.GOMAXPROCS(0))
}

type handler struct {
	p    *Processor
	next pipeline.Handler

	session  sorter.Session
	bufs     sync.Pool
	bypassed atomic.Int64
	seq      atomic.Uint64
}

func (h *handler) Start() error {
	session, err := h.p.grouper.Open(h.p.dedup)
	if err != nil {
		return pipeline.NewHandlerError("mapreduce", err)
	}
	h.session = session
	h.bypassed.Store(0)
	h.seq.Store(0)
	return h.next.Start()
}

func (h *handler) Namespace(prefix, iri string) error { return h.next.Namespace(prefix, iri) }

func (h *handler) Comment(string) error { return nil }

func (h *handler) Statement(q rdf.Quad) error {
	keys, err := h.p.mapper.Map(q)
	if err != nil {
		return pipeline.NewHandlerError("map", err)
	}
	if len(keys) > 1 {
		keys = appendUnique(nil, keys...)
	}
	// A sequence number makes every record distinct, so deduplicated records
	// carry none.
	var seq uint64
	if !h.p.dedup && len(keys) > 0 {
		seq = h.seq.Add(1)
	}
	for _, key := range keys {
		if key == BypassKey {
			h.bypassed.Add(1)
			h.p.metrics.Bypassed()
			if err := h.next.Statement(q); err != nil {
				return err
			}
			continue
		}
		if err := h.emit(key, seq, q); err != nil {
			return pipeline.NewHandlerError("mapreduce", err)
		}
	}
	return nil
}

func (h *handler) emit(key rdf.Term, seq uint64, q rdf.Quad) error {
	var buf []byte
	if v, ok := h.bufs.Get().(*[]byte); ok {
		buf = (*v)[:0]
	}
	buf = appendRecord(buf, key, seq, q)
	err := h.session.Emit(buf)
	h.bufs.Put(&buf)
	return err
}

func (h *handler) End() error {
	session := h.session
	h.session = nil
	err := h.reduce(session)
	if cerr := session.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return pipeline.NewHandlerError("mapreduce", err)
	}
	return h.next.End()
}

func (h *handler) Close() error {
	if h.session != nil {
		_ = h.session.Close()
		h.session = nil
	}
	return h.next.Close()
}

// reduce drains the sorted records into partitions and waits until every
// submitted reduce task is done, whatever the outcome.
func (h *handler) reduce(session sorter.Session) error {
	started := time.Now()
	permits := h.p.permits()
	pool := h.p.pool
	if pool == nil {
		pool = pipeline.NewPool(int(permits), 0, h.p.logger)
		defer pool.Shutdown()
	}
	r := &reduction{
		h:       h,
		pool:    pool,
		sem:     semaphore.NewWeighted(permits),
		permits: permits,
	}
	err := session.DrainTo(h.p.decoders, func() sorter.Consumer {
		return &batcher{r: r, decoder: newRecordDecoder()}
	})
	r.wait()

	failed := r.failed()
	switch {
	case failed != nil && (err == nil || errors.Is(err, errAborted)):
		err = failed
	case failed != nil:
		err = multierror.Append(err, failed)
	}
	h.p.logger.WithField("action", "mapreduce").
		WithField("partitions", r.partitions.Load()).
		WithField("statements", r.statements.Load()).
		WithField("bypassed", h.bypassed.Load()).
		WithField("took", time.Since(started)).
		Debug("reduce phase done")
	return err
}

type partition struct {
	key   rdf.Term
	stmts []rdf.Quad
}

// reduction tracks the reduce tasks of one pass.
type reduction struct {
	h       *handler
	pool    *pipeline.Pool
	sem     *semaphore.Weighted
	permits int64

	partitions atomic.Int64
	statements atomic.Int64

	mu  sync.Mutex
	err *multierror.Error
}

func (r *reduction) failed() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err.ErrorOrNil()
}

func (r *reduction) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = multierror.Append(r.err, err)
}

// submit blocks until a permit is free, then schedules batch.
func (r *reduction) submit(batch []partition) error {
	if r.failed() != nil {
		return errAborted
	}
	if err := r.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	r.h.p.metrics.AddPartitions(len(batch))
	r.partitions.Add(int64(len(batch)))
	r.pool.Submit(func() {
		defer r.sem.Release(1)
		for _, part := range batch {
			r.run(part)
		}
	})
	return nil
}

// run reduces one partition into a private buffer and forwards the buffer
// only when the reducer succeeded.
func (r *reduction) run(part partition) {
	metrics := r.h.p.metrics
	metrics.ReduceStarted()
	var err error
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("reducer panicked: %v", rec)
		}
		metrics.ReduceFinished(err != nil)
		if err != nil {
			r.fail(errors.Wrapf(err, "reduce key %v", part.key))
		}
	}()

	var out []rdf.Quad
	collect := pipeline.HandlerFuncs{OnStatement: func(q rdf.Quad) error {
		out = append(out, q)
		return nil
	}}
	if err = r.h.p.reducer.Reduce(part.key, part.stmts, collect); err != nil {
		return
	}
	r.statements.Add(int64(len(out)))
	for _, q := range out {
		if err = r.h.next.Statement(q); err != nil {
			return
		}
	}
}

// wait reclaims every permit, so no task is left running, and frees them.
func (r *reduction) wait() {
	_ = r.sem.Acquire(context.Background(), r.permits)
	r.sem.Release(r.permits)
}

// batcher cuts the records of one decoding goroutine into partitions and
// submits them in batches of at least minBatch statements.
type batcher struct {
	r       *reduction
	decoder *recordDecoder

	key   rdf.Term
	stmts []rdf.Quad
	have  bool
	batch []partition
	size  int
}

func (b *batcher) Consume(rec []byte) error {
	key, q, err := b.decoder.decode(rec)
	if err != nil {
		return err
	}
	if b.have && key != b.key {
		if err := b.cut(false); err != nil {
			return err
		}
	}
	b.key, b.have = key, true
	b.stmts = append(b.stmts, q)
	return nil
}

func (b *batcher) cut(last bool) error {
	if b.have {
		b.batch = append(b.batch, partition{key: b.key, stmts: b.stmts})
		b.size += len(b.stmts)
		b.stmts, b.have = nil, false
	}
	if len(b.batch) == 0 || (!last && b.size < b.r.h.p.minBatch) {
		return nil
	}
	batch := b.batch
	b.batch, b.size = nil, 0
	return b.r.submit(batch)
}

func (b *batcher) Flush() error { return b.cut(true) }
