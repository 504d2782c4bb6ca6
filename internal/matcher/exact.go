package matcher

import (
	"github.com/willf/bloom"

	"contentmapper/internal/catalog"
	"contentmapper/internal/metrics"
)

// ExactIndex maps a catalog title to the ids carrying it. Titles compare
// case-sensitively. A bloom filter answers most misses without touching the
// map. ExactIndex is not safe for concurrent Add; build it before sharing.
type ExactIndex struct {
	titles map[string][]string
	filter *bloom.BloomFilter
}

// NewExactIndex indexes each item's name. Expected sizes the bloom filter.
func NewExactIndex(expected int) *ExactIndex {
	if expected < 1 {
		expected = 1
	}
	return &ExactIndex{
		titles: make(map[string][]string),
		filter: bloom.NewWithEstimates(uint(expected), 0.01),
	}
}

// BuildExactIndex indexes items by name in order.
func BuildExactIndex(items []catalog.Item) *ExactIndex {
	idx := NewExactIndex(len(items))
	for _, it := range items {
		idx.Add(it.Name, it.ID)
	}
	return idx
}

// Add records id under title. Ids keep insertion order; the first is primary.
func (e *ExactIndex) Add(title, id string) {
	if title == "" || id == "" {
		return
	}
	e.titles[title] = append(e.titles[title], id)
	e.filter.Add([]byte(title))
}

// Lookup implements ExactLookup.
func (e *ExactIndex) Lookup(title string) ([]string, bool) {
	if !e.filter.Test([]byte(title)) {
		metrics.BloomRejects.Inc()
		return nil, false
	}
	ids, ok := e.titles[title]
	return ids, ok
}

// Len returns the number of distinct titles.
func (e *ExactIndex) Len() int {
	return len(e.titles)
}
