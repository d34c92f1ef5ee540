package smush

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoknoesis/rdfstream/rdf"
)

func ex(local string) rdf.IRI { return rdf.IRI{Value: "http://example.org/" + local} }

func TestDictionaryEncodeDecode(t *testing.T) {
	d := NewDictionary(0)
	defer d.Close()

	const n = 5000
	codes := make(map[Code]rdf.Term, 2*n)
	for i := 0; i < n; i++ {
		for _, term := range []rdf.Term{ex(fmt.Sprintf("r%d", i)), rdf.BlankNode{ID: fmt.Sprintf("r%d", i)}} {
			c, err := d.Encode(term)
			require.NoError(t, err)
			require.NotZero(t, c)
			_, dup := codes[c]
			require.False(t, dup, "code %d assigned twice", c)
			codes[c] = term
		}
	}
	assert.Equal(t, 2*n, d.Len())
	for c, term := range codes {
		assert.Equal(t, term, d.Decode(c))
		assert.Equal(t, c, d.Lookup(term))
		again, err := d.Encode(term)
		require.NoError(t, err)
		assert.Equal(t, c, again)
	}
	assert.Equal(t, 2*n, d.Len(), "encoding known terms adds nothing")
}

func TestDictionaryCodesAreDense(t *testing.T) {
	d := NewDictionary(4)
	defer d.Close()
	for i := 1; i <= 10; i++ {
		c, err := d.Encode(ex(fmt.Sprint(i)))
		require.NoError(t, err)
		assert.Equal(t, Code(i), c)
	}
	assert.Nil(t, d.Decode(0))
	assert.Nil(t, d.Decode(11))
}

func TestDictionaryRejectsLiterals(t *testing.T) {
	d := NewDictionary(0)
	defer d.Close()
	_, err := d.Encode(rdf.Literal{Lexical: "x"})
	assert.ErrorIs(t, err, ErrNotResource)
	assert.Zero(t, d.Lookup(rdf.Literal{Lexical: "x"}))
	assert.Zero(t, d.Lookup(ex("missing")))
}

func TestArenaLargeStrings(t *testing.T) {
	d := NewDictionary(0)
	defer d.Close()
	big := make([]byte, bufferSize+10)
	for i := range big {
		big[i] = 'a' + byte(i%26)
	}
	long := rdf.IRI{Value: string(big)}
	small := ex("small")

	c1, err := d.Encode(small)
	require.NoError(t, err)
	c2, err := d.Encode(long)
	require.NoError(t, err)
	c3, err := d.Encode(ex("after"))
	require.NoError(t, err)

	assert.Equal(t, rdf.Term(small), d.Decode(c1))
	assert.Equal(t, rdf.Term(long), d.Decode(c2))
	assert.Equal(t, rdf.Term(ex("after")), d.Decode(c3))
}

func TestHandlePacking(t *testing.T) {
	h := makeHandle(7, 123456)
	assert.Equal(t, 7, h.buffer())
	assert.Equal(t, 123456, h.offset())
}
