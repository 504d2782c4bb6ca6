// Package search provides the weighted full-text index used to recommend
// catalog entries for a saved search.
package search

import (
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"contentmapper/internal/catalog"
)

// ErrEmptyQuery is returned when a query has no indexable terms.
var ErrEmptyQuery = errors.New("query has no searchable terms")

// Hit is one ranked result.
type Hit struct {
	Ref   string  `json:"ref"`
	Score float64 `json:"score"`
}

// Searcher is the full-text capability the matcher depends on. Hits must be
// ordered by descending score with ties in a stable order.
type Searcher interface {
	Search(query string) ([]Hit, error)
}

type posting struct {
	doc   int
	boost float64
}

// Index is an in-memory weighted term index. A document's score for a query
// is the idf-weighted share of query terms it contains, each term credited
// with the boost of the strongest field it appears in, scaled to 0..100.
type Index struct {
	weights  catalog.FieldWeights
	maxBoost float64

	mu       sync.RWMutex
	refs     []string
	postings map[string][]posting
}

// NewIndex creates an empty index over the given field weights. Fields with
// a non-positive weight are not indexed.
func NewIndex(weights catalog.FieldWeights) *Index {
	if len(weights) == 0 {
		weights = catalog.DefaultFieldWeights()
	}
	return &Index{
		weights:  weights,
		maxBoost: weights.Max(),
		postings: make(map[string][]posting),
	}
}

// Build indexes every item in order.
func Build(items []catalog.Item, weights catalog.FieldWeights) *Index {
	idx := NewIndex(weights)
	for i := range items {
		idx.Add(&items[i])
	}
	return idx
}

// Add indexes a single catalog item under its id.
func (idx *Index) Add(it *catalog.Item) {
	boosts := make(map[string]float64)
	for field, weight := range idx.weights {
		if weight <= 0 {
			continue
		}
		for _, term := range Tokenize(it.Field(field)) {
			if weight > boosts[term] {
				boosts[term] = weight
			}
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	doc := len(idx.refs)
	idx.refs = append(idx.refs, it.ID)
	for term, boost := range boosts {
		idx.postings[term] = append(idx.postings[term], posting{doc: doc, boost: boost})
	}
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.refs)
}

// Search ranks indexed documents against the query.
func (idx *Index) Search(query string) ([]Hit, error) {
	terms := unique(Tokenize(query))
	if len(terms) == 0 {
		return nil, ErrEmptyQuery
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.refs)
	if n == 0 || idx.maxBoost <= 0 {
		return nil, nil
	}

	scores := make([]float64, n)
	var total float64
	for _, term := range terms {
		list := idx.postings[term]
		idf := math.Log(1 + float64(n)/float64(max(len(list), 1)))
		total += idf * idx.maxBoost
		for _, p := range list {
			scores[p.doc] += idf * p.boost
		}
	}

	var hits []Hit
	for doc, s := range scores {
		if s <= 0 {
			continue
		}
		hits = append(hits, Hit{Ref: idx.refs[doc], Score: math.Round(10000*s/total) / 100})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	return hits, nil
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "the": true, "to": true,
	"via": true, "was": true, "with": true,
}

// Tokenize lowercases text, splits on anything that is not a letter or
// digit, and drops stop words.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if stopWords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func unique(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
