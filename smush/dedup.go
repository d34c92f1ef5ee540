package smush

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spaolacci/murmur3"

	"github.com/geoknoesis/rdfstream/rdf"
)

// DefaultDedupSize is the number of recent statements remembered by a
// Deduplicator.
const DefaultDedupSize = 16384

// Deduplicator remembers the hashes of recently seen statements. It is
// approximate: a statement evicted from the window is reported as new again.
type Deduplicator struct {
	cache *lru.Cache[[16]byte, struct{}]
}

// NewDeduplicator returns a deduplicator remembering size statements.
func NewDeduplicator(size int) (*Deduplicator, error) {
	if size <= 0 {
		size = DefaultDedupSize
	}
	cache, err := lru.New[[16]byte, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &Deduplicator{cache: cache}, nil
}

// Add reports whether q was not among the remembered statements, and
// remembers it. It is safe for concurrent use.
func (d *Deduplicator) Add(q rdf.Quad) bool {
	hi, lo := murmur3.Sum128([]byte(q.String()))

	var key [16]byte
	for i := 0; i < 8; i++ {
		key[i] = byte(hi >> (8 * i))
		key[8+i] = byte(lo >> (8 * i))
	}
	seen, _ := d.cache.ContainsOrAdd(key, struct{}{})
	return !seen
}
