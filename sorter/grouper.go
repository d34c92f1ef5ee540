package sorter

import (
	"runtime"

	"github.com/sirupsen/logrus"
)

// Grouper starts sort sessions. Implementations must deliver records in
// ascending byte order so that records sharing a prefix are contiguous.
type Grouper interface {
	// Open starts a session. With dedup set, identical records are
	// delivered once.
	Open(dedup bool) (Session, error)
}

// Session is one sort operation: records are emitted, then drained in order.
type Session interface {
	// Emit queues a record. It is safe for concurrent use and may block when
	// the sort input is saturated. The record is copied.
	Emit(record []byte) error

	// Drain ends the input and passes every sorted record to consume. With
	// decoders > 1 consume is called concurrently, each goroutine receiving
	// contiguous chunks of the sorted output. The slice passed to consume is
	// only valid during the call. The first error stops draining.
	Drain(decoders int, consume func(record []byte) error) error

	// DrainTo is Drain with one Consumer per decoding goroutine, created by
	// newConsumer. Each consumer sees its share of the records in sorted
	// order and is flushed once after its last record.
	DrainTo(decoders int, newConsumer func() Consumer) error

	// Close releases the session, terminating any work still in progress.
	// It is safe to call more than once.
	Close() error
}

// Consumer receives the records of one decoding goroutine.
type Consumer interface {
	Consume(record []byte) error
	Flush() error
}

// ConsumerFunc adapts a function to a Consumer with a no-op Flush.
type ConsumerFunc func(record []byte) error

func (f ConsumerFunc) Consume(record []byte) error { return f(record) }
func (f ConsumerFunc) Flush() error                { return nil }

// chunkSize is the amount of encoded records buffered before a hand-off.
const chunkSize = 64 * 1024

func numCPU() int {
	return runtime.GOMAXPROCS(0)
}

// Default returns the sort utility grouper when the binary is available and
// the in-process merge grouper otherwise.
func Default(logger logrus.FieldLogger) Grouper {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c := NewCommand(CommandConfig{}, logger)
	if c.Available() {
		return c
	}
	logger.WithField("action", "sort").Warn("sort utility not found, using in-process merge sort")
	return NewMerge(MergeConfig{})
}
