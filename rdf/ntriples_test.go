package rdf

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func decodeAll(t *testing.T, input string, format Format, opts ...Option) []Quad {
	t.Helper()
	var quads []Quad
	err := Parse(context.Background(), strings.NewReader(input), format, func(q Quad) error {
		quads = append(quads, q)
		return nil
	}, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return quads
}

func TestNTriplesDecodeErrors(t *testing.T) {
	inputs := []string{
		"<http://example.org/s> <http://example.org/p> .\n",
		"<http://example.org/s> <http://example.org/p> <http://example.org/o>\n",
		"<http://example.org/s <http://example.org/p> <http://example.org/o> .\n",
		"_: <http://example.org/p> <http://example.org/o> .\n",
		"\"lit\" <http://example.org/p> <http://example.org/o> .\n",
		"<< <http://example.org/s> <http://example.org/p> <http://example.org/o> <http://example.org/p2> <http://example.org/o2> .\n",
		"<http://example.org/s> <http://example.org/p> \"bad \\q escape\" .\n",
	}
	for _, input := range inputs {
		dec, err := NewDecoder(strings.NewReader(input), FormatNTriples)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err = dec.Next()
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("expected parse error for %q, got %v", input, err)
		}
		if parseErr.Line != 1 || Code(err) != ErrCodeParseError {
			t.Fatalf("unexpected error details: %+v", parseErr)
		}
	}
}

func TestNQuadsRejectGraphInTriples(t *testing.T) {
	line := "<http://example.org/s> <http://example.org/p> <http://example.org/o> <http://example.org/g> .\n"
	dec, err := NewDecoder(strings.NewReader(line), FormatNTriples)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := dec.Next(); err == nil {
		t.Fatal("expected error for graph term in ntriples")
	}
	quads := decodeAll(t, line, FormatNQuads)
	if len(quads) != 1 || quads[0].G != (IRI{Value: "http://example.org/g"}) {
		t.Fatalf("unexpected quads: %v", quads)
	}
}

func TestNTriplesDecodeTerms(t *testing.T) {
	input := strings.Join([]string{
		"# comment",
		"_:b1 <http://example.org/p> \"v\"@EN .",
		"<http://example.org/s> <http://example.org/p> \"1\"^^<http://example.org/dt> .",
		"<http://example.org/s> <http://example.org/p> \"caf\\u00E9\\n\" .",
		"<< <http://example.org/s> <http://example.org/p> <http://example.org/o> >> <http://example.org/p2> _:x.",
		"",
	}, "\n")
	quads := decodeAll(t, input, FormatNTriples)
	if len(quads) != 4 {
		t.Fatalf("expected 4 quads, got %d", len(quads))
	}
	if quads[0].S != (BlankNode{ID: "b1"}) || quads[0].O != (Literal{Lexical: "v", Lang: "en"}) {
		t.Fatalf("unexpected first quad: %v", quads[0])
	}
	if lit, ok := quads[1].O.(Literal); !ok || lit.Datatype.Value != "http://example.org/dt" {
		t.Fatalf("expected datatype literal")
	}
	if quads[2].O != (Literal{Lexical: "café\n"}) {
		t.Fatalf("unexpected escaped literal: %#v", quads[2].O)
	}
	if _, ok := quads[3].S.(TripleTerm); !ok || quads[3].O != (BlankNode{ID: "x"}) {
		t.Fatalf("unexpected triple term quad: %v", quads[3])
	}
}

func TestNQuadsRoundTrip(t *testing.T) {
	in := []Quad{
		NewQuad(IRI{Value: "http://example.org/s"}, IRI{Value: "http://example.org/p"}, Literal{Lexical: "a \"quoted\"\tvalue\\"}, nil),
		NewQuad(BlankNode{ID: "b0"}, OWLSameAs, IRI{Value: "http://example.org/a b"}, IRI{Value: "http://example.org/g"}),
		NewQuad(IRI{Value: "http://example.org/s"}, IRI{Value: "http://example.org/p"}, Literal{Lexical: "7", Datatype: XSDLong}, BlankNode{ID: "g1"}),
	}
	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, FormatNQuads)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, q := range in {
		if err := enc.Write(q); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := decodeAll(t, buf.String(), FormatNQuads)
	if len(out) != len(in) {
		t.Fatalf("expected %d quads, got %d", len(in), len(out))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("quad %d: want %v, got %v", i, in[i], out[i])
		}
	}
}

func TestNTriplesEncodeErrors(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, FormatNTriples)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := enc.Write(Quad{S: IRI{Value: "s"}, P: IRI{Value: "p"}}); !errors.Is(err, ErrInvalidStatement) {
		t.Fatalf("expected invalid statement, got %v", err)
	}
	if err := enc.Write(Quad{S: IRI{Value: "s"}, P: IRI{Value: "p"}, O: IRI{Value: "o"}, G: IRI{Value: "g"}}); !errors.Is(err, ErrInvalidStatement) {
		t.Fatalf("expected graph rejection, got %v", err)
	}
	if err := enc.Write(Quad{S: IRI{Value: "s"}, P: IRI{Value: "p"}, O: IRI{Value: "o"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = enc.Close()
	if err := enc.Write(Quad{S: IRI{Value: "s2"}, P: IRI{Value: "p2"}, O: IRI{Value: "o2"}}); err == nil {
		t.Fatal("expected cached error")
	}
	if buf.String() != "<s> <p> <o> .\n" {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestLineLimit(t *testing.T) {
	line := "<http://example.org/s> <http://example.org/p> \"" + strings.Repeat("x", 200) + "\" .\n"
	dec, err := NewDecoder(strings.NewReader(line), FormatNTriples, OptMaxLineBytes(64))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := dec.Next(); !errors.Is(err, ErrLineTooLong) || Code(err) != ErrCodeLineTooLong {
		t.Fatalf("expected line limit error, got %v", err)
	}
}

func TestBlankNodeScope(t *testing.T) {
	input := "_:a <http://example.org/p> _:b _:g .\n"
	quads := decodeAll(t, input, FormatNQuads, OptBlankNodeScope("f1_"))
	want := NewQuad(BlankNode{ID: "f1_a"}, IRI{Value: "http://example.org/p"}, BlankNode{ID: "f1_b"}, BlankNode{ID: "f1_g"})
	if len(quads) != 1 || quads[0] != want {
		t.Fatalf("unexpected quads: %v", quads)
	}
}

func TestParseTerm(t *testing.T) {
	cases := map[string]Term{
		"<http://example.org/x>": IRI{Value: "http://example.org/x"},
		" _:b0 ":                 BlankNode{ID: "b0"},
		"\"3\"^^<http://www.w3.org/2001/XMLSchema#long>": Literal{Lexical: "3", Datatype: XSDLong},
		"\"chat\"@fr": Literal{Lexical: "chat", Lang: "fr"},
	}
	for input, want := range cases {
		got, err := ParseTerm(input)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("%q: want %#v, got %#v", input, want, got)
		}
	}
	for _, bad := range []string{"", "x", "<a> <b>", "\"open"} {
		if _, err := ParseTerm(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := NewDecoder(strings.NewReader(""), Format("turtle")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
	if _, err := NewEncoder(io.Discard, FormatJSONLD); Code(err) != ErrCodeUnsupportedFormat {
		t.Fatalf("expected unsupported format code, got %v", err)
	}
}

func TestParseHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Parse(ctx, strings.NewReader("<s> <p> <o> .\n"), FormatNTriples, func(Quad) error { return nil })
	if Code(err) != ErrCodeContextCanceled {
		t.Fatalf("expected canceled, got %v", err)
	}
}
