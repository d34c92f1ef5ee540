package rdf

import (
	"strings"
	"testing"
)

func TestJSONLDDecode(t *testing.T) {
	doc := `{
  "@id": "http://example.org/s",
  "http://example.org/p": {"@id": "http://example.org/o"},
  "http://example.org/name": "Alice"
}`
	quads := decodeAll(t, doc, FormatJSONLD)
	if len(quads) != 2 {
		t.Fatalf("expected 2 quads, got %d: %v", len(quads), quads)
	}
	found := map[Quad]bool{}
	for _, q := range quads {
		found[q] = true
	}
	s := IRI{Value: "http://example.org/s"}
	if !found[NewQuad(s, IRI{Value: "http://example.org/p"}, IRI{Value: "http://example.org/o"}, nil)] {
		t.Fatalf("missing IRI statement: %v", quads)
	}
	if !found[NewQuad(s, IRI{Value: "http://example.org/name"}, Literal{Lexical: "Alice"}, nil)] {
		t.Fatalf("missing literal statement: %v", quads)
	}
}

func TestJSONLDDecodeInvalid(t *testing.T) {
	dec, err := NewDecoder(strings.NewReader("{not json"), FormatJSONLD)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := dec.Next(); Code(err) != ErrCodeParseError {
		t.Fatalf("expected parse error, got %v", err)
	}
}
