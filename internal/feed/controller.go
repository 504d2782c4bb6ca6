package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"contentmapper/internal/attack"
	"contentmapper/internal/metrics"
)

// ErrNoFetchers is returned by Run when nothing is registered.
var ErrNoFetchers = errors.New("no fetchers registered")

// Controller runs fetchers concurrently and builds one taxonomy graph from
// everything they return.
type Controller struct {
	fetchers []Fetcher
	logger   *slog.Logger
}

func NewController(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{logger: logger}
}

// Register adds a fetcher to the controller.
func (c *Controller) Register(f Fetcher) {
	c.fetchers = append(c.fetchers, f)
}

// Run fetches from every source. Objects are concatenated in registration
// order so later sources win name collisions. A failing source is logged
// and skipped; Run fails only when every source fails.
func (c *Controller) Run(ctx context.Context) (*attack.Graph, error) {
	if len(c.fetchers) == 0 {
		return nil, ErrNoFetchers
	}

	batches := make([][]attack.Object, len(c.fetchers))
	errs := make([]error, len(c.fetchers))

	var wg sync.WaitGroup
	for i, f := range c.fetchers {
		wg.Add(1)
		go func(i int, fetcher Fetcher) {
			defer wg.Done()
			objects, err := fetcher.Fetch(ctx)
			if err != nil {
				metrics.FeedFetches.WithLabelValues(fetcher.Name(), "error").Inc()
				c.logger.Error("fetch failed", "source", fetcher.Name(), "err", err)
				errs[i] = fmt.Errorf("%s: %w", fetcher.Name(), err)
				return
			}
			metrics.FeedFetches.WithLabelValues(fetcher.Name(), "ok").Inc()
			c.logger.Info("fetched objects", "source", fetcher.Name(), "count", len(objects))
			batches[i] = objects
		}(i, f)
	}
	wg.Wait()

	var objects []attack.Object
	failed := 0
	for i := range c.fetchers {
		if errs[i] != nil {
			failed++
			continue
		}
		objects = append(objects, batches[i]...)
	}
	if failed == len(c.fetchers) {
		return nil, fmt.Errorf("all fetchers failed: %w", errors.Join(errs...))
	}

	g := attack.Build(objects)
	s := g.Summary()
	metrics.TaxonomyObjects.WithLabelValues("tactic").Set(float64(s.Tactics))
	metrics.TaxonomyObjects.WithLabelValues("technique").Set(float64(s.Techniques))
	metrics.TaxonomyObjects.WithLabelValues("subtechnique").Set(float64(s.SubTechniques))
	c.logger.Info("taxonomy built", "tactics", s.Tactics, "techniques", s.Techniques, "subtechniques", s.SubTechniques)
	return g, nil
}
