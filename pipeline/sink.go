package pipeline

import (
	"sync"

	"github.com/geoknoesis/rdfstream/rdf"
)

// EncoderSink writes the statements it receives with an rdf.Encoder,
// flushing at the end of every pass. Namespaces and comments are dropped.
type EncoderSink struct {
	mu  sync.Mutex
	enc rdf.Encoder
	n   int64
}

// NewEncoderSink returns a handler writing to enc. Close closes enc.
func NewEncoderSink(enc rdf.Encoder) *EncoderSink {
	return &EncoderSink{enc: enc}
}

func (s *EncoderSink) Start() error                   { return nil }
func (s *EncoderSink) Namespace(string, string) error { return nil }
func (s *EncoderSink) Comment(string) error           { return nil }

func (s *EncoderSink) Statement(q rdf.Quad) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Write(q); err != nil {
		return NewHandlerError("write", err)
	}
	s.n++
	return nil
}

func (s *EncoderSink) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Flush(); err != nil {
		return NewHandlerError("flush", err)
	}
	return nil
}

func (s *EncoderSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Close(); err != nil {
		return NewHandlerError("close", err)
	}
	return nil
}

// Written returns the number of statements written so far.
func (s *EncoderSink) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}
