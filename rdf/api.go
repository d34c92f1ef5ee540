package rdf

import (
	"context"
	"io"
)

// Decoder streams RDF statements from an input.
type Decoder interface {
	// Next returns the next statement, or io.EOF when the input is exhausted.
	Next() (Quad, error)
	Close() error
}

// Encoder streams RDF statements to an output.
// For triple-only formats, a statement with a graph name is rejected.
type Encoder interface {
	Write(Quad) error
	Flush() error
	Close() error
}

// Option configures decoder behavior.
type Option func(*Options)

// Options configures decoder behavior.
type Options struct {
	// Context for cancellation
	Context context.Context

	// MaxLineBytes bounds a single line of line-based formats; negative disables.
	MaxLineBytes int

	// BaseIRI resolves relative IRIs in JSON-LD documents.
	BaseIRI string

	// BlankNodeScope, when set, is prepended to every blank node identifier
	// so that several inputs can be merged without label clashes.
	BlankNodeScope string
}

// Option helpers

// OptContext sets the context for cancellation.
func OptContext(ctx context.Context) Option {
	return func(o *Options) {
		o.Context = ctx
	}
}

// OptMaxLineBytes sets the maximum line size limit.
func OptMaxLineBytes(maxBytes int) Option {
	return func(o *Options) {
		o.MaxLineBytes = maxBytes
	}
}

// OptBaseIRI sets the base IRI for JSON-LD input.
func OptBaseIRI(base string) Option {
	return func(o *Options) {
		o.BaseIRI = base
	}
}

// OptBlankNodeScope rewrites blank node identifiers to scope+id.
func OptBlankNodeScope(scope string) Option {
	return func(o *Options) {
		o.BlankNodeScope = scope
	}
}

// DefaultMaxLineBytes is the line limit used when none is configured.
const DefaultMaxLineBytes = 1 << 20

func defaultOptions() Options {
	return Options{
		Context:      context.Background(),
		MaxLineBytes: DefaultMaxLineBytes,
	}
}

// NewDecoder creates a decoder for the specified format.
func NewDecoder(r io.Reader, format Format, opts ...Option) (Decoder, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Context == nil {
		options.Context = context.Background()
	}

	var dec Decoder
	switch format {
	case FormatNTriples, FormatNQuads:
		dec = newLineDecoder(r, format, options)
	case FormatJSONLD:
		dec = newJSONLDDecoder(r, options)
	default:
		return nil, ErrUnsupportedFormat
	}
	if options.BlankNodeScope != "" {
		dec = &scopedDecoder{inner: dec, scope: options.BlankNodeScope}
	}
	return dec, nil
}

// NewEncoder creates an encoder for the specified format.
func NewEncoder(w io.Writer, format Format) (Encoder, error) {
	switch format {
	case FormatNTriples, FormatNQuads:
		return newLineEncoder(w, format), nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

// Parse decodes r and passes every statement to fn, stopping at the first
// error returned by the decoder or by fn.
func Parse(ctx context.Context, r io.Reader, format Format, fn func(Quad) error, opts ...Option) error {
	if ctx == nil {
		ctx = context.Background()
	}
	dec, err := NewDecoder(r, format, append(opts, OptContext(ctx))...)
	if err != nil {
		return err
	}
	defer dec.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		q, err := dec.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(q); err != nil {
			return err
		}
	}
}

type scopedDecoder struct {
	inner Decoder
	scope string
}

func (d *scopedDecoder) Next() (Quad, error) {
	q, err := d.inner.Next()
	if err != nil {
		return q, err
	}
	q.S = d.rescope(q.S)
	q.O = d.rescope(q.O)
	if q.G != nil {
		q.G = d.rescope(q.G)
	}
	return q, nil
}

func (d *scopedDecoder) Close() error { return d.inner.Close() }

func (d *scopedDecoder) rescope(t Term) Term {
	switch v := t.(type) {
	case BlankNode:
		return BlankNode{ID: d.scope + v.ID}
	case TripleTerm:
		return TripleTerm{S: d.rescope(v.S), P: v.P, O: d.rescope(v.O)}
	default:
		return t
	}
}
