package rdf

import "testing"

func TestTermKindsAndStrings(t *testing.T) {
	iri := IRI{Value: "http://example.org/s"}
	if iri.Kind() != TermIRI {
		t.Fatalf("expected IRI kind")
	}
	if iri.String() != "http://example.org/s" {
		t.Fatalf("unexpected IRI string: %s", iri.String())
	}

	blank := BlankNode{ID: "b1"}
	if blank.Kind() != TermBlankNode {
		t.Fatalf("expected blank node kind")
	}
	if blank.String() != "_:b1" {
		t.Fatalf("unexpected blank node string: %s", blank.String())
	}

	litPlain := Literal{Lexical: "plain"}
	if litPlain.Kind() != TermLiteral {
		t.Fatalf("expected literal kind")
	}
	if litPlain.String() != "\"plain\"" {
		t.Fatalf("unexpected literal string: %s", litPlain.String())
	}

	litLang := Literal{Lexical: "hi", Lang: "en"}
	if litLang.String() != "\"hi\"@en" {
		t.Fatalf("unexpected lang literal: %s", litLang.String())
	}

	litDT := Literal{Lexical: "1", Datatype: IRI{Value: "http://example.org/int"}}
	if litDT.String() != "\"1\"^^<http://example.org/int>" {
		t.Fatalf("unexpected datatype literal: %s", litDT.String())
	}

	tt := TripleTerm{S: iri, P: IRI{Value: "http://example.org/p"}, O: litPlain}
	if tt.Kind() != TermTriple {
		t.Fatalf("expected triple term kind")
	}
	if tt.String() != "<<http://example.org/s http://example.org/p \"plain\">>" {
		t.Fatalf("unexpected triple term string: %s", tt.String())
	}
}

func TestIsResource(t *testing.T) {
	if !IsResource(IRI{Value: "x"}) || !IsResource(BlankNode{ID: "b"}) {
		t.Fatal("expected IRI and blank node to be resources")
	}
	if IsResource(Literal{Lexical: "x"}) || IsResource(nil) {
		t.Fatal("literal and nil are not resources")
	}
}

func TestQuadEqualityAndString(t *testing.T) {
	a := NewQuad(IRI{Value: "http://example.org/s"}, RDFType, Literal{Lexical: "x", Lang: "en"}, BlankNode{ID: "g"})
	b := NewQuad(IRI{Value: "http://example.org/s"}, RDFType, Literal{Lexical: "x", Lang: "en"}, BlankNode{ID: "g"})
	if a != b {
		t.Fatal("expected structurally equal quads to compare equal")
	}
	seen := map[Quad]bool{a: true}
	if !seen[b] {
		t.Fatal("expected quad usable as map key")
	}
	want := `<http://example.org/s> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> "x"@en _:g .`
	if a.String() != want {
		t.Fatalf("unexpected quad string: %s", a.String())
	}
	if a.Triple().G != nil || a.InDefaultGraph() {
		t.Fatal("unexpected graph handling")
	}
}

func TestQuadIsZero(t *testing.T) {
	var q Quad
	if !q.IsZero() {
		t.Fatal("expected zero quad")
	}
	q.S = IRI{Value: "http://example.org/s"}
	if q.IsZero() {
		t.Fatal("expected non-zero quad")
	}
}

func TestFormatFromPath(t *testing.T) {
	cases := []struct {
		path   string
		format Format
		gz     bool
		ok     bool
	}{
		{"data/file.nq", FormatNQuads, false, true},
		{"file.NT.gz", FormatNTriples, true, true},
		{"doc.jsonld", FormatJSONLD, false, true},
		{"doc.ttl", "", false, false},
	}
	for _, tc := range cases {
		format, gz, ok := FormatFromPath(tc.path)
		if format != tc.format || gz != tc.gz || ok != tc.ok {
			t.Fatalf("%s: got (%q, %v, %v)", tc.path, format, gz, ok)
		}
	}
}
