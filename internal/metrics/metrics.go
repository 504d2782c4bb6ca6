package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TaxonomyObjects = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cm_taxonomy_objects",
			Help: "Objects in the loaded ATT&CK taxonomy",
		},
		[]string{"kind"},
	)

	CatalogItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cm_catalog_items",
			Help: "Catalog items in the search index",
		},
	)

	Classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cm_classifications_total",
			Help: "Saved search classifications by resulting status",
		},
		[]string{"status"},
	)

	ClassifyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cm_classify_duration_seconds",
			Help:    "Time spent classifying a saved search",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cm_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cm_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cm_cache_evictions_total",
			Help: "Cache evictions",
		},
		[]string{"cache_type"},
	)

	BloomRejects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cm_bloom_rejects_total",
			Help: "Exact title lookups answered by the bloom filter alone",
		},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cm_store_errors_total",
			Help: "Mapping store errors by operation",
		},
		[]string{"op"},
	)

	FeedFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cm_feed_fetches_total",
			Help: "Taxonomy bundle fetches by source and result",
		},
		[]string{"source", "result"},
	)
)
