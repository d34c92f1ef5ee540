// Package rdf provides the statement model shared by the rdfstream packages,
// together with small streaming codecs used at the edges of a pipeline.
//
// Copyright 2026 Geoknoesis LLC (www.geoknoesis.com)
//
// Author: Stephane Fellah (stephanef@geoknoesis.com)
// Geosemantic-AI expert with 30 years of experience
//
// A statement is a Quad: subject, predicate, object and an optional graph name
// (nil for the default graph). Terms are plain comparable values, so two
// statements are equal exactly when == reports them equal and they can be used
// as map keys.
//
// Supported formats:
//   - N-Triples and N-Quads: NewDecoder / NewEncoder (streaming, line based).
//   - JSON-LD: NewDecoder with FormatJSONLD (document is expanded with json-gold,
//     then streamed).
//
// Example (decoding quads):
//
//	dec, err := rdf.NewDecoder(strings.NewReader(input), rdf.FormatNQuads)
//	if err != nil {
//	    // handle error
//	}
//	defer dec.Close()
//
//	for {
//	    quad, err := dec.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        // handle error
//	    }
//	    // process quad.S, quad.P, quad.O, quad.G
//	}
//
// ParseTerm parses a single term in N-Triples syntax, which is also the syntax
// used by aggregate expressions and rule files.
package rdf
