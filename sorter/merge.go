package sorter

import (
	"bytes"
	"context"
	"sync"

	"github.com/lanrat/extsort"
	"github.com/pkg/errors"
)

// MergeConfig configures the in-process grouper.
type MergeConfig struct {
	// TempDir holds the sorted runs; the system default when empty.
	TempDir string
	// ChunkSize is the number of records per in-memory run.
	ChunkSize int
	// Workers sorts runs concurrently.
	Workers int
}

// Merge groups records with an in-process external merge sort, for hosts
// without a usable sort utility. It satisfies the same contract as Command.
type Merge struct {
	config MergeConfig
}

// NewMerge returns an in-process grouper.
func NewMerge(config MergeConfig) *Merge {
	return &Merge{config: config}
}

type record []byte

func (r record) ToBytes() []byte { return r }

func recordFromBytes(b []byte) extsort.SortType {
	return record(append([]byte(nil), b...))
}

func recordLess(a, b extsort.SortType) bool {
	return bytes.Compare(a.(record), b.(record)) < 0
}

// Open starts the sorter goroutines.
func (m *Merge) Open(dedup bool) (Session, error) {
	cfg := extsort.DefaultConfig()
	if m.config.TempDir != "" {
		cfg.TempFilesDir = m.config.TempDir
	}
	if m.config.ChunkSize > 0 {
		cfg.ChunkSize = m.config.ChunkSize
	}
	if m.config.Workers > 0 {
		cfg.NumWorkers = m.config.Workers
	}

	ctx, cancel := context.WithCancel(context.Background())
	input := make(chan extsort.SortType, cfg.ChanBuffSize)
	sorter, output, errc := extsort.New(input, recordFromBytes, recordLess, cfg)
	s := &mergeSession{
		dedup:  dedup,
		cancel: cancel,
		input:  input,
		output: output,
		errc:   errc,
	}
	go sorter.Sort(ctx)
	return s, nil
}

type mergeSession struct {
	dedup  bool
	cancel context.CancelFunc

	mu      sync.RWMutex
	ended   bool
	drained bool
	input   chan extsort.SortType
	output  chan extsort.SortType
	errc    chan error
}

func (s *mergeSession) Emit(rec []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ended {
		return errors.New("sort: emit after end of input")
	}
	s.input <- record(append([]byte(nil), rec...))
	return nil
}

func (s *mergeSession) endInput() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	s.ended = true
	close(s.input)
	return true
}

// Drain always decodes on the calling goroutine; the merge is sequential.
func (s *mergeSession) Drain(_ int, consume func(record []byte) error) error {
	return s.DrainTo(1, func() Consumer { return ConsumerFunc(consume) })
}

func (s *mergeSession) DrainTo(_ int, newConsumer func() Consumer) error {
	if !s.endInput() {
		return errors.New("sort: session already drained")
	}
	s.drained = true
	consumer := newConsumer()
	var prev []byte
	first := true
	for item := range s.output {
		rec := item.(record)
		if s.dedup && !first && bytes.Equal(prev, rec) {
			continue
		}
		first = false
		prev = rec
		if err := consumer.Consume(rec); err != nil {
			s.discard()
			return err
		}
	}
	if err := <-s.errc; err != nil {
		return errors.Wrap(err, "in-process sort")
	}
	return consumer.Flush()
}

// discard cancels the sort and empties its channels in the background.
func (s *mergeSession) discard() {
	s.cancel()
	go func() {
		for range s.output {
		}
		<-s.errc
	}()
}

func (s *mergeSession) Close() error {
	if s.endInput() && !s.drained {
		s.discard()
		return nil
	}
	s.cancel()
	return nil
}
