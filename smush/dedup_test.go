package smush

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoknoesis/rdfstream/rdf"
)

func TestDeduplicatorWindow(t *testing.T) {
	d, err := NewDeduplicator(2)
	require.NoError(t, err)
	q := func(i int) rdf.Quad { return sameAs(ex("a"), ex(fmt.Sprint(i))) }

	assert.True(t, d.Add(q(1)))
	assert.False(t, d.Add(q(1)))
	assert.True(t, d.Add(q(2)))
	assert.True(t, d.Add(q(3)))
	assert.True(t, d.Add(q(1)), "evicted statements are new again")
}
