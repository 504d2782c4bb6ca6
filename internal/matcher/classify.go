// Package matcher classifies saved searches against the content catalog.
package matcher

import (
	"fmt"
	"strings"

	"contentmapper/internal/search"
)

// Status is the confidence of a classification.
type Status string

const (
	StatusExact      Status = "exact"
	StatusLikely     Status = "likely"
	StatusPotentials Status = "potentials"
	StatusLow        Status = "low"
	StatusNone       Status = "none"
)

const (
	// ScoreThreshold is the score a fuzzy hit must exceed to be recorded.
	ScoreThreshold = 30

	// ScoreGap is the lead the top hit needs over the runner-up to be likely.
	ScoreGap = 5

	// NoiseSuffix is stripped from saved-search titles before fuzzy search.
	NoiseSuffix = " - Rule"
)

// Result is a classification outcome. Matches holds catalog ids, primary first.
type Result struct {
	Status  Status   `json:"status"`
	Matches []string `json:"matches"`
}

// Primary returns the first match, or "" when there is none.
func (r Result) Primary() string {
	if len(r.Matches) == 0 {
		return ""
	}
	return r.Matches[0]
}

// ExactLookup resolves a title to catalog ids by exact comparison.
type ExactLookup interface {
	Lookup(title string) ([]string, bool)
}

// Classify applies the exact title index, then the fuzzy index. A failing
// fuzzy index yields StatusNone.
func Classify(title string, exact ExactLookup, index search.Searcher) Result {
	r, _ := classify(title, exact, index)
	return r
}

// classify also reports the index error that Classify swallows.
func classify(title string, exact ExactLookup, index search.Searcher) (Result, error) {
	if exact != nil {
		if ids, ok := exact.Lookup(title); ok && len(ids) > 0 {
			return Result{Status: StatusExact, Matches: append([]string(nil), ids...)}, nil
		}
	}
	if index == nil {
		return Result{Status: StatusNone, Matches: []string{}}, nil
	}
	hits, err := safeSearch(index, NormalizeQuery(title))
	if err != nil {
		return Result{Status: StatusNone, Matches: []string{}}, err
	}
	return FromHits(hits), nil
}

// safeSearch shields callers from a panicking index implementation.
func safeSearch(index search.Searcher, query string) (hits []search.Hit, err error) {
	defer func() {
		if r := recover(); r != nil {
			hits, err = nil, fmt.Errorf("search index panic: %v", r)
		}
	}()
	return index.Search(query)
}

// FromHits turns ranked fuzzy hits into a Result. Hits must already be in
// descending score order; they are not re-sorted.
func FromHits(hits []search.Hit) Result {
	switch {
	case len(hits) == 0:
		return Result{Status: StatusNone, Matches: []string{}}
	case hits[0].Score <= ScoreThreshold:
		return Result{Status: StatusLow, Matches: []string{}}
	case len(hits) == 1 || hits[0].Score-hits[1].Score > ScoreGap:
		return Result{Status: StatusLikely, Matches: []string{hits[0].Ref}}
	}

	matches := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Score > ScoreThreshold {
			matches = append(matches, h.Ref)
		}
	}
	return Result{Status: StatusPotentials, Matches: matches}
}

var queryReplacer = strings.NewReplacer("_", " ", ":", "")

// NormalizeQuery strips the rule suffix, turns underscores into spaces and
// removes colons.
func NormalizeQuery(title string) string {
	return queryReplacer.Replace(strings.TrimSuffix(title, NoiseSuffix))
}
