package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"contentmapper/internal/metrics"
	"contentmapper/internal/search"
	"contentmapper/internal/store"
)

// ErrNoStore is returned by override operations when no store is configured.
var ErrNoStore = errors.New("no mapping store configured")

// Candidate is a saved search to classify.
type Candidate struct {
	Title       string `json:"title"`
	Search      string `json:"search,omitempty"`
	Description string `json:"description,omitempty"`
}

// Matcher classifies saved searches against one catalog snapshot. Persisted
// overrides take precedence over computed results. A Matcher is safe for
// concurrent use once built.
type Matcher struct {
	exact     ExactLookup
	index     search.Searcher
	overrides store.MappingStore
	cache     *ResultCache
	logger    *slog.Logger
	workers   int
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithOverrides consults s for manual mappings before computing a result.
func WithOverrides(s store.MappingStore) Option {
	return func(m *Matcher) { m.overrides = s }
}

// WithCache caches computed results.
func WithCache(c *ResultCache) Option {
	return func(m *Matcher) { m.cache = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Matcher) { m.logger = l }
}

// WithWorkers sets the ClassifyAll concurrency.
func WithWorkers(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.workers = n
		}
	}
}

func New(exact ExactLookup, index search.Searcher, opts ...Option) *Matcher {
	m := &Matcher{
		exact:   exact,
		index:   index,
		logger:  slog.Default(),
		workers: 4,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Classify returns the result for one saved search. It never fails: store
// and index errors degrade to the computed result or StatusNone.
func (m *Matcher) Classify(ctx context.Context, c Candidate) Result {
	start := time.Now()
	defer func() {
		metrics.ClassifyDuration.Observe(time.Since(start).Seconds())
	}()

	if r, ok := m.override(ctx, c.Title); ok {
		metrics.Classifications.WithLabelValues(string(r.Status)).Inc()
		return r
	}

	if m.cache != nil {
		if r, ok := m.cache.Get(c.Title); ok {
			metrics.CacheHits.WithLabelValues("classification").Inc()
			metrics.Classifications.WithLabelValues(string(r.Status)).Inc()
			return r
		}
		metrics.CacheMisses.WithLabelValues("classification").Inc()
	}

	r := m.compute(c.Title)
	if m.cache != nil {
		m.cache.Set(c.Title, r)
	}
	metrics.Classifications.WithLabelValues(string(r.Status)).Inc()
	return r
}

func (m *Matcher) compute(title string) Result {
	r, err := classify(title, m.exact, m.index)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, search.ErrEmptyQuery) {
			level = slog.LevelDebug
		}
		m.logger.Log(context.Background(), level, "fuzzy search failed", "title", title, "err", err)
	}
	return r
}

func (m *Matcher) override(ctx context.Context, title string) (Result, bool) {
	if m.overrides == nil {
		return Result{}, false
	}
	mapping, err := m.overrides.Lookup(ctx, title)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			metrics.StoreErrors.WithLabelValues("lookup").Inc()
			m.logger.Warn("override lookup failed", "title", title, "err", err)
		}
		return Result{}, false
	}
	return Result{Status: StatusExact, Matches: []string{mapping.ContentID}}, true
}

// ClassifyAll classifies a batch on a worker pool. Results are in input
// order. If ctx is done before every candidate is classified, the
// unreached ones get StatusNone and the returned error wraps ctx.Err().
func (m *Matcher) ClassifyAll(ctx context.Context, candidates []Candidate) ([]Result, error) {
	results := make([]Result, len(candidates))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < min(m.workers, len(candidates)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					continue
				}
				results[i] = m.Classify(ctx, candidates[i])
			}
		}()
	}

feed:
	for i := range candidates {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	done := 0
	for i := range results {
		if results[i].Status == "" {
			results[i] = Result{Status: StatusNone, Matches: []string{}}
			continue
		}
		done++
	}
	if done < len(candidates) {
		return results, fmt.Errorf("classified %d of %d searches: %w", done, len(candidates), ctx.Err())
	}
	return results, nil
}

// RecordOverride persists a manual mapping and drops any cached result.
func (m *Matcher) RecordOverride(ctx context.Context, searchTitle, contentID string) error {
	if m.overrides == nil {
		return ErrNoStore
	}
	err := m.overrides.Save(ctx, store.Mapping{
		SearchTitle: searchTitle,
		ContentID:   contentID,
		Source:      "manual",
	})
	if err != nil {
		if !errors.Is(err, store.ErrInvalidMapping) {
			metrics.StoreErrors.WithLabelValues("save").Inc()
		}
		return fmt.Errorf("recording override: %w", err)
	}
	if m.cache != nil {
		m.cache.Delete(searchTitle)
	}
	return nil
}

// RemoveOverride deletes a manual mapping.
func (m *Matcher) RemoveOverride(ctx context.Context, searchTitle string) error {
	if m.overrides == nil {
		return ErrNoStore
	}
	if err := m.overrides.Delete(ctx, searchTitle); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			metrics.StoreErrors.WithLabelValues("delete").Inc()
		}
		return fmt.Errorf("removing override: %w", err)
	}
	if m.cache != nil {
		m.cache.Delete(searchTitle)
	}
	return nil
}

// Overrides lists all manual mappings.
func (m *Matcher) Overrides(ctx context.Context) ([]store.Mapping, error) {
	if m.overrides == nil {
		return nil, ErrNoStore
	}
	return m.overrides.List(ctx)
}
