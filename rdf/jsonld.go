package rdf

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/piprate/json-gold/ld"
)

// jsonldDecoder converts a whole JSON-LD document to RDF on the first call to
// Next and then streams the resulting statements.
type jsonldDecoder struct {
	reader io.Reader
	opts   Options
	lines  *lineDecoder
	err    error
}

func newJSONLDDecoder(r io.Reader, opts Options) *jsonldDecoder {
	return &jsonldDecoder{reader: r, opts: opts}
}

func (d *jsonldDecoder) Next() (Quad, error) {
	if d.err != nil {
		return Quad{}, d.err
	}
	if d.lines == nil {
		nquads, err := d.toNQuads()
		if err != nil {
			d.err = err
			return Quad{}, err
		}
		opts := d.opts
		opts.MaxLineBytes = -1
		d.lines = newLineDecoder(strings.NewReader(nquads), FormatNQuads, opts)
	}
	return d.lines.Next()
}

func (d *jsonldDecoder) Close() error { return nil }

func (d *jsonldDecoder) toNQuads() (string, error) {
	var document interface{}
	if err := json.NewDecoder(d.reader).Decode(&document); err != nil {
		return "", &ParseError{Format: FormatJSONLD, Err: err}
	}
	if err := d.opts.Context.Err(); err != nil {
		return "", err
	}

	proc := ld.NewJsonLdProcessor()
	goldOpts := ld.NewJsonLdOptions(d.opts.BaseIRI)
	result, err := proc.ToRDF(document, goldOpts)
	if err != nil {
		return "", &ParseError{Format: FormatJSONLD, Err: err}
	}
	dataset, ok := result.(*ld.RDFDataset)
	if !ok {
		return "", &ParseError{Format: FormatJSONLD, Err: fmt.Errorf("unexpected ToRDF result %T", result)}
	}
	serializer := &ld.NQuadRDFSerializer{}
	serialized, err := serializer.Serialize(dataset)
	if err != nil {
		return "", &ParseError{Format: FormatJSONLD, Err: err}
	}
	nquads, ok := serialized.(string)
	if !ok {
		return "", &ParseError{Format: FormatJSONLD, Err: fmt.Errorf("unexpected N-Quads result %T", serialized)}
	}
	return nquads, nil
}
