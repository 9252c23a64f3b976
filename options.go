package geosuggest

import (
	"time"

	"go.uber.org/zap"

	queryuc "github.com/kailas-cloud/geosuggest/internal/usecase/query"
)

// Option configures the Engine.
type Option interface {
	apply(*engineConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*engineConfig)

func (f optionFunc) apply(c *engineConfig) { f(c) }

type engineConfig struct {
	logger   *zap.Logger
	geocoder queryuc.Geocoder
	country  string

	cacheSize      int
	pageSize       int
	pageTimeout    time.Duration
	queryTimeout   time.Duration
	concurrency    int
	limitPerField  int
	maxSuggestions int
	maxResults     int

	debounce time.Duration
	minChars int
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *engineConfig) {
		c.logger = l
	})
}

// WithGeocoder enables location mode. country may be empty.
func WithGeocoder(g queryuc.Geocoder, country string) Option {
	return optionFunc(func(c *engineConfig) {
		c.geocoder = g
		c.country = country
	})
}

// WithCacheSize bounds the suggestion LRU. Default: 64.
func WithCacheSize(n int) Option {
	return optionFunc(func(c *engineConfig) {
		c.cacheSize = n
	})
}

// WithWarmPaging sets the warm-up page size and per-page timeout.
// Defaults: 1000 records, 30s.
func WithWarmPaging(pageSize int, pageTimeout time.Duration) Option {
	return optionFunc(func(c *engineConfig) {
		c.pageSize = pageSize
		c.pageTimeout = pageTimeout
	})
}

// WithQueryTimeout bounds each live layer query and each session query. Default: 3s.
func WithQueryTimeout(d time.Duration) Option {
	return optionFunc(func(c *engineConfig) {
		c.queryTimeout = d
	})
}

// WithLazyLoad tunes the live fan-out on index misses.
// Defaults: 8 concurrent queries, 50 results per field.
func WithLazyLoad(concurrency, limitPerField int) Option {
	return optionFunc(func(c *engineConfig) {
		c.concurrency = concurrency
		c.limitPerField = limitPerField
	})
}

// WithLimits sets the suggestion list length and the search result cap.
// Defaults: 10 suggestions, 50 results.
func WithLimits(maxSuggestions, maxResults int) Option {
	return optionFunc(func(c *engineConfig) {
		c.maxSuggestions = maxSuggestions
		c.maxResults = maxResults
	})
}

// WithDebounce sets the session keystroke delay and minimum query length.
// Defaults: 300ms, 2 characters.
func WithDebounce(d time.Duration, minChars int) Option {
	return optionFunc(func(c *engineConfig) {
		c.debounce = d
		c.minChars = minChars
	})
}
