package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/geoknoesis/rdfstream/internal/monitoring"
	"github.com/geoknoesis/rdfstream/rdf"
)

// TrackerConfig configures progress reporting for a stage.
type TrackerConfig struct {
	// Stage names the tracked point in log fields and metric labels.
	Stage string
	// Every logs a progress line at debug level each Every statements;
	// zero disables progress lines.
	Every int64
	// Logger receives the pass summaries.
	Logger logrus.FieldLogger
	// Metrics records statement and pass counters; may be nil.
	Metrics *monitoring.Metrics
}

// Track counts the statements flowing through it, logging a summary with
// the throughput at the end of every pass.
func Track(config TrackerConfig) Processor {
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	return NewProcessor(0, func(next Handler) Handler {
		return &tracker{Forwarder: Forwarder{Next: next}, config: config}
	})
}

type tracker struct {
	Forwarder
	config  TrackerConfig
	count   atomic.Int64
	started time.Time
	pass    int
}

func (t *tracker) Start() error {
	t.count.Store(0)
	t.started = time.Now()
	t.pass++
	return t.Next.Start()
}

func (t *tracker) Statement(q rdf.Quad) error {
	n := t.count.Add(1)
	if t.config.Every > 0 && n%t.config.Every == 0 {
		t.config.Logger.WithField("action", "track").
			WithField("stage", t.config.Stage).
			WithField("statements", n).
			Debug("progress")
	}
	return t.Next.Statement(q)
}

func (t *tracker) End() error {
	took := time.Since(t.started)
	n := t.count.Load()
	throughput := float64(n) / (took.Seconds() + 1e-9)
	t.config.Logger.WithField("action", "track").
		WithField("stage", t.config.Stage).
		WithField("pass", t.pass).
		WithField("statements", n).
		WithField("took", took.String()).
		Infof("%d statements (%.0f stmt/s)", n, throughput)
	t.config.Metrics.AddStatements(t.config.Stage, n)
	t.config.Metrics.PassDone(t.config.Stage, took)
	return t.Next.End()
}
