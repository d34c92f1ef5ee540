package rdf

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

type lineDecoder struct {
	reader  *bufio.Reader
	format  Format
	ctx     context.Context
	maxLine int
	line    int
	err     error
}

func newLineDecoder(r io.Reader, format Format, opts Options) *lineDecoder {
	return &lineDecoder{
		reader:  bufio.NewReaderSize(r, 64*1024),
		format:  format,
		ctx:     opts.Context,
		maxLine: opts.MaxLineBytes,
	}
}

func (d *lineDecoder) Next() (Quad, error) {
	if d.err != nil {
		return Quad{}, d.err
	}
	for {
		if err := d.ctx.Err(); err != nil {
			d.err = err
			return Quad{}, err
		}
		line, err := d.readLine()
		if err != nil {
			d.err = err
			return Quad{}, err
		}
		d.line++
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		quad, err := parseNTLine(trimmed, d.format, d.line)
		if err != nil {
			d.err = err
			return Quad{}, err
		}
		return quad, nil
	}
}

func (d *lineDecoder) Close() error {
	return nil
}

func (d *lineDecoder) readLine() (string, error) {
	var b strings.Builder
	for {
		chunk, err := d.reader.ReadSlice('\n')
		b.Write(chunk)
		if d.maxLine > 0 && b.Len() > d.maxLine {
			return "", &ParseError{Format: d.format, Line: d.line + 1, Err: ErrLineTooLong}
		}
		switch {
		case err == nil:
			return b.String(), nil
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF && b.Len() > 0:
			return b.String(), nil
		case err == io.EOF:
			return "", io.EOF
		default:
			return "", &IOError{Op: "read", Err: err}
		}
	}
}

func parseNTLine(line string, format Format, lineNo int) (Quad, error) {
	cursor := &ntCursor{input: line}
	quad, err := cursor.parseStatement(format)
	if err != nil {
		return Quad{}, &ParseError{Format: format, Statement: line, Line: lineNo, Column: cursor.pos + 1, Err: err}
	}
	return quad, nil
}

type ntCursor struct {
	input string
	pos   int
}

func (c *ntCursor) parseStatement(format Format) (Quad, error) {
	subject, err := c.parseTerm(false)
	if err != nil {
		return Quad{}, err
	}
	predicate, err := c.parseIRI()
	if err != nil {
		return Quad{}, err
	}
	object, err := c.parseTerm(true)
	if err != nil {
		return Quad{}, err
	}
	graph, err := c.parseOptionalTerm()
	if err != nil {
		return Quad{}, err
	}
	if !c.consume('.') {
		return Quad{}, c.errorf("expected '.' at end of statement")
	}
	c.skipWS()
	if c.pos < len(c.input) && c.input[c.pos] != '#' {
		return Quad{}, c.errorf("unexpected content after '.'")
	}
	if format == FormatNTriples && graph != nil {
		return Quad{}, c.errorf("graph term not allowed in N-Triples")
	}
	return Quad{S: subject, P: predicate, O: object, G: graph}, nil
}

func (c *ntCursor) skipWS() {
	for c.pos < len(c.input) {
		switch c.input[c.pos] {
		case ' ', '\t', '\r', '\n':
			c.pos++
		default:
			return
		}
	}
}

func (c *ntCursor) consume(ch byte) bool {
	c.skipWS()
	if c.pos < len(c.input) && c.input[c.pos] == ch {
		c.pos++
		return true
	}
	return false
}

func (c *ntCursor) parseOptionalTerm() (Term, error) {
	c.skipWS()
	if c.pos >= len(c.input) || c.input[c.pos] == '.' {
		return nil, nil
	}
	return c.parseTerm(false)
}

func (c *ntCursor) parseTerm(allowLiteral bool) (Term, error) {
	c.skipWS()
	if c.pos >= len(c.input) {
		return nil, c.errorf("unexpected end of line")
	}
	switch {
	case strings.HasPrefix(c.input[c.pos:], "<<"):
		return c.parseTripleTerm()
	case c.input[c.pos] == '<':
		return c.parseIRI()
	case strings.HasPrefix(c.input[c.pos:], "_:"):
		return c.parseBlankNode()
	case c.input[c.pos] == '"':
		if !allowLiteral {
			return nil, c.errorf("literal not allowed here")
		}
		return c.parseLiteral()
	default:
		return nil, c.errorf("unexpected token")
	}
}

func (c *ntCursor) parseIRI() (IRI, error) {
	if !c.consume('<') {
		return IRI{}, c.errorf("expected IRI")
	}
	var builder strings.Builder
	for c.pos < len(c.input) {
		ch := c.input[c.pos]
		switch {
		case ch == '>':
			c.pos++
			return IRI{Value: builder.String()}, nil
		case ch == '\\':
			if err := c.parseUnicodeEscape(&builder); err != nil {
				return IRI{}, err
			}
		case ch == ' ' || ch == '<' || ch == '"':
			return IRI{}, c.errorf("invalid character %q in IRI", ch)
		default:
			builder.WriteByte(ch)
			c.pos++
		}
	}
	return IRI{}, c.errorf("unterminated IRI")
}

func (c *ntCursor) parseBlankNode() (BlankNode, error) {
	c.pos += 2
	start := c.pos
	for c.pos < len(c.input) && !isTermDelimiter(c.input[c.pos]) {
		c.pos++
	}
	// a trailing '.' belongs to the statement, not to the label
	for c.pos > start && c.input[c.pos-1] == '.' {
		c.pos--
	}
	if start == c.pos {
		return BlankNode{}, c.errorf("blank node id missing")
	}
	return BlankNode{ID: c.input[start:c.pos]}, nil
}

func (c *ntCursor) parseLiteral() (Literal, error) {
	if !c.consume('"') {
		return Literal{}, c.errorf("expected literal")
	}
	var builder strings.Builder
	closed := false
	for c.pos < len(c.input) && !closed {
		ch := c.input[c.pos]
		switch ch {
		case '"':
			c.pos++
			closed = true
		case '\\':
			if c.pos+1 >= len(c.input) {
				return Literal{}, c.errorf("unterminated escape")
			}
			switch next := c.input[c.pos+1]; next {
			case 'u', 'U':
				if err := c.parseUnicodeEscape(&builder); err != nil {
					return Literal{}, err
				}
				continue
			case 'n':
				builder.WriteByte('\n')
			case 't':
				builder.WriteByte('\t')
			case 'r':
				builder.WriteByte('\r')
			case 'b':
				builder.WriteByte('\b')
			case 'f':
				builder.WriteByte('\f')
			case '"', '\'', '\\':
				builder.WriteByte(next)
			default:
				return Literal{}, c.errorf("invalid escape '\\%c'", next)
			}
			c.pos += 2
		default:
			builder.WriteByte(ch)
			c.pos++
		}
	}
	if !closed {
		return Literal{}, c.errorf("unterminated literal")
	}
	lexical := builder.String()
	if strings.HasPrefix(c.input[c.pos:], "@") {
		c.pos++
		start := c.pos
		for c.pos < len(c.input) && !isTermDelimiter(c.input[c.pos]) {
			c.pos++
		}
		for c.pos > start && c.input[c.pos-1] == '.' {
			c.pos--
		}
		if start == c.pos {
			return Literal{}, c.errorf("language tag missing")
		}
		return Literal{Lexical: lexical, Lang: strings.ToLower(c.input[start:c.pos])}, nil
	}
	if strings.HasPrefix(c.input[c.pos:], "^^") {
		c.pos += 2
		dt, err := c.parseIRI()
		if err != nil {
			return Literal{}, err
		}
		if dt == XSDString {
			dt = IRI{}
		}
		return Literal{Lexical: lexical, Datatype: dt}, nil
	}
	return Literal{Lexical: lexical}, nil
}

// parseUnicodeEscape decodes \uXXXX or \UXXXXXXXX at the cursor.
func (c *ntCursor) parseUnicodeEscape(builder *strings.Builder) error {
	if c.pos+1 >= len(c.input) {
		return c.errorf("unterminated escape")
	}
	width := 0
	switch c.input[c.pos+1] {
	case 'u':
		width = 4
	case 'U':
		width = 8
	default:
		return c.errorf("invalid escape '\\%c'", c.input[c.pos+1])
	}
	start := c.pos + 2
	if start+width > len(c.input) {
		return c.errorf("truncated unicode escape")
	}
	code, err := strconv.ParseUint(c.input[start:start+width], 16, 32)
	if err != nil || !utf8.ValidRune(rune(code)) {
		return c.errorf("invalid unicode escape %q", c.input[c.pos:start+width])
	}
	builder.WriteRune(rune(code))
	c.pos = start + width
	return nil
}

func (c *ntCursor) parseTripleTerm() (Term, error) {
	c.pos += 2
	subject, err := c.parseTerm(false)
	if err != nil {
		return nil, err
	}
	predicate, err := c.parseIRI()
	if err != nil {
		return nil, err
	}
	object, err := c.parseTerm(true)
	if err != nil {
		return nil, err
	}
	c.skipWS()
	if !strings.HasPrefix(c.input[c.pos:], ">>") {
		return nil, c.errorf("expected '>>'")
	}
	c.pos += 2
	return TripleTerm{S: subject, P: predicate, O: object}, nil
}

func (c *ntCursor) errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func isTermDelimiter(ch byte) bool {
	switch ch {
	case ' ', '\t', '\r', '\n', '<', '"', '>':
		return true
	default:
		return false
	}
}

// ParseTerm parses a single term written in N-Triples syntax, e.g.
// "<http://example.org/x>", "_:b0" or "\"3\"^^<http://www.w3.org/2001/XMLSchema#int>".
func ParseTerm(s string) (Term, error) {
	cursor := &ntCursor{input: s}
	term, err := cursor.parseTerm(true)
	if err == nil {
		cursor.skipWS()
		if cursor.pos < len(cursor.input) {
			err = cursor.errorf("unexpected content after term")
		}
	}
	if err != nil {
		return nil, &ParseError{Format: FormatNTriples, Statement: s, Column: cursor.pos + 1, Err: err}
	}
	return term, nil
}

type lineEncoder struct {
	writer *bufio.Writer
	format Format
	err    error
}

func newLineEncoder(w io.Writer, format Format) *lineEncoder {
	return &lineEncoder{writer: bufio.NewWriterSize(w, 64*1024), format: format}
}

func (e *lineEncoder) Write(q Quad) error {
	if e.err != nil {
		return e.err
	}
	if q.S == nil || q.P.Value == "" || q.O == nil {
		return ErrInvalidStatement
	}
	if e.format == FormatNTriples && q.G != nil {
		return ErrInvalidStatement
	}
	if _, err := e.writer.WriteString(q.String()); err != nil {
		e.err = &IOError{Op: "write", Err: err}
		return e.err
	}
	if err := e.writer.WriteByte('\n'); err != nil {
		e.err = &IOError{Op: "write", Err: err}
	}
	return e.err
}

func (e *lineEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if err := e.writer.Flush(); err != nil {
		e.err = &IOError{Op: "flush", Err: err}
	}
	return e.err
}

func (e *lineEncoder) Close() error {
	err := e.Flush()
	if e.err == nil {
		e.err = fmt.Errorf("rdf: encoder closed")
	}
	return err
}

func renderIRI(iri IRI) string {
	var b strings.Builder
	b.WriteByte('<')
	for _, r := range iri.Value {
		switch {
		case r <= 0x20, r == '<', r == '>', r == '"', r == '{', r == '}', r == '|', r == '^', r == '`', r == '\\':
			fmt.Fprintf(&b, "\\u%04X", r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('>')
	return b.String()
}

func renderLexical(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(b, "\\u%04X", r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}

func renderTerm(term Term) string {
	switch value := term.(type) {
	case IRI:
		return renderIRI(value)
	case BlankNode:
		return value.String()
	case Literal:
		var b strings.Builder
		renderLexical(&b, value.Lexical)
		if value.Lang != "" {
			b.WriteByte('@')
			b.WriteString(value.Lang)
		} else if value.Datatype.Value != "" && value.Datatype != XSDString {
			b.WriteString("^^")
			b.WriteString(renderIRI(value.Datatype))
		}
		return b.String()
	case TripleTerm:
		return "<< " + renderTerm(value.S) + " " + renderIRI(value.P) + " " + renderTerm(value.O) + " >>"
	default:
		return ""
	}
}
