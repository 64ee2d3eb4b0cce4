package reliability

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultDedupEntries is the default number of (src, seq) pairs remembered
const DefaultDedupEntries = 10000

type dedupKey struct {
	src string
	seq uint64
}

// Deduper remembers recently seen sequenced messages. The oldest pairs
// are evicted once the cache is full, so a very late repeat may be
// delivered again.
type Deduper struct {
	cache *lru.Cache
}

// NewDeduper creates a deduper remembering up to size pairs
func NewDeduper(size int) (*Deduper, error) {
	if size <= 0 {
		size = DefaultDedupEntries
	}

	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create dedup cache: %w", err)
	}

	return &Deduper{cache: cache}, nil
}

// Seen records (src, seq) and reports whether it was already recorded.
// Seq 0 is never a duplicate.
func (d *Deduper) Seen(src string, seq uint64) bool {
	if seq == 0 {
		return false
	}
	found, _ := d.cache.ContainsOrAdd(dedupKey{src: src, seq: seq}, struct{}{})
	return found
}

// Len returns the number of remembered pairs
func (d *Deduper) Len() int {
	return d.cache.Len()
}

// Purge forgets every pair
func (d *Deduper) Purge() {
	d.cache.Purge()
}
