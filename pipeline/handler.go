// Package pipeline defines the multi-pass statement handler protocol and the
// stages that compose handlers: sequences, parallel branches merged by set
// operators, and the sources that drive passes.
//
// A pass is one Start, any number of Namespace/Comment/Statement calls, and
// one End. Between Start and End the callbacks may arrive concurrently from
// several goroutines. Close is called exactly once, after the last pass or
// after a failure.
package pipeline

import (
	"sync"

	"github.com/geoknoesis/rdfstream/rdf"
)

// Handler receives the callbacks of one or more passes over a statement stream.
type Handler interface {
	Start() error
	Namespace(prefix, iri string) error
	Comment(text string) error
	Statement(q rdf.Quad) error
	End() error
	Close() error
}

// Forwarder passes every callback to Next. Embed it and override the
// callbacks a stage cares about.
type Forwarder struct {
	Next Handler
}

func (f Forwarder) Start() error                       { return f.Next.Start() }
func (f Forwarder) Namespace(prefix, iri string) error { return f.Next.Namespace(prefix, iri) }
func (f Forwarder) Comment(text string) error          { return f.Next.Comment(text) }
func (f Forwarder) Statement(q rdf.Quad) error         { return f.Next.Statement(q) }
func (f Forwarder) End() error                         { return f.Next.End() }
func (f Forwarder) Close() error                       { return f.Next.Close() }

type discard struct{}

func (discard) Start() error                   { return nil }
func (discard) Namespace(string, string) error { return nil }
func (discard) Comment(string) error           { return nil }
func (discard) Statement(rdf.Quad) error       { return nil }
func (discard) End() error                     { return nil }
func (discard) Close() error                   { return nil }

// Discard ignores every callback.
var Discard Handler = discard{}

// HandlerFuncs adapts plain functions to a Handler; nil fields are no-ops.
type HandlerFuncs struct {
	OnStart     func() error
	OnNamespace func(prefix, iri string) error
	OnComment   func(text string) error
	OnStatement func(q rdf.Quad) error
	OnEnd       func() error
	OnClose     func() error
}

func (h HandlerFuncs) Start() error {
	if h.OnStart == nil {
		return nil
	}
	return h.OnStart()
}

func (h HandlerFuncs) Namespace(prefix, iri string) error {
	if h.OnNamespace == nil {
		return nil
	}
	return h.OnNamespace(prefix, iri)
}

func (h HandlerFuncs) Comment(text string) error {
	if h.OnComment == nil {
		return nil
	}
	return h.OnComment(text)
}

func (h HandlerFuncs) Statement(q rdf.Quad) error {
	if h.OnStatement == nil {
		return nil
	}
	return h.OnStatement(q)
}

func (h HandlerFuncs) End() error {
	if h.OnEnd == nil {
		return nil
	}
	return h.OnEnd()
}

func (h HandlerFuncs) Close() error {
	if h.OnClose == nil {
		return nil
	}
	return h.OnClose()
}

// Buffer collects statements and namespaces of the last pass; it is safe for
// concurrent use and records how many passes and closes it saw.
type Buffer struct {
	mu         sync.Mutex
	statements []rdf.Quad
	namespaces map[string]string
	passes     int
	closes     int
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{namespaces: map[string]string{}}
}

func (b *Buffer) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statements = b.statements[:0]
	b.passes++
	return nil
}

func (b *Buffer) Namespace(prefix, iri string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.namespaces[prefix] = iri
	return nil
}

func (b *Buffer) Comment(string) error { return nil }

func (b *Buffer) Statement(q rdf.Quad) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statements = append(b.statements, q)
	return nil
}

func (b *Buffer) End() error { return nil }

func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	return nil
}

// Statements returns a copy of the statements of the last pass.
func (b *Buffer) Statements() []rdf.Quad {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]rdf.Quad(nil), b.statements...)
}

// Namespaces returns a copy of the collected prefix mappings.
func (b *Buffer) Namespaces() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.namespaces))
	for k, v := range b.namespaces {
		out[k] = v
	}
	return out
}

// Passes returns the number of Start calls received.
func (b *Buffer) Passes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.passes
}

// Closes returns the number of Close calls received.
func (b *Buffer) Closes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes
}

// closeAll closes every handler and returns the first error.
func closeAll(handlers []Handler) error {
	var first error
	for _, h := range handlers {
		if err := h.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
