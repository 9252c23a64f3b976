package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"go.uber.org/zap"

	"github.com/kailas-cloud/geosuggest/internal/domain"
	"github.com/kailas-cloud/geosuggest/internal/domain/geo"
	"github.com/kailas-cloud/geosuggest/internal/domain/layer"
	"github.com/kailas-cloud/geosuggest/internal/domain/replica"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/hint"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/mode"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/result"
	"github.com/kailas-cloud/geosuggest/internal/index"
	"github.com/kailas-cloud/geosuggest/internal/metrics"
	"github.com/kailas-cloud/geosuggest/internal/repository/suggestcache"
)

// Defaults for Options.
const (
	DefaultMaxSuggestions   = 10
	DefaultMaxResults       = 50
	DefaultGeohashPrecision = 5

	maxZoom = 22
)

// Options tunes result sizes and location constraints.
type Options struct {
	MaxSuggestions int
	MaxResults     int
	Country        string
	// GeohashPrecision sets the viewport cell size used in location cache keys.
	GeohashPrecision int
}

// Statistics is the public index and replica summary.
type Statistics struct {
	TotalEntries int           `json:"total_entries"`
	DistinctKeys int           `json:"distinct_keys"`
	ReadyState   replica.State `json:"ready_state"`
	Failed       int           `json:"failed_layers"`
}

// Selection is the resolved target of a picked suggestion.
type Selection struct {
	Mode        mode.Mode     `json:"mode"`
	Layer       string        `json:"layer,omitempty"`
	Field       string        `json:"field,omitempty"`
	FeatureID   string        `json:"feature_id,omitempty"`
	DisplayText string        `json:"text"`
	Geometry    *geo.Geometry `json:"geometry,omitempty"`
	Place       *geo.Place    `json:"place,omitempty"`
	// Source names how the selection was resolved: cached, targeted, fallback or geocoder.
	Source string `json:"source"`
}

// Service routes suggestion, search and selection requests per mode.
type Service struct {
	idx      Index
	lazy     LazyLoader
	geocoder Geocoder
	cache    Cache
	layers   layer.Map
	configs  []layer.Config
	replica  ReplicaReader
	opts     Options
	logger   *zap.Logger
}

// New creates a query service. geocoder may be nil, which leaves location mode empty.
func New(
	idx Index, lazy LazyLoader, geocoder Geocoder, cache Cache,
	layers layer.Map, configs []layer.Config, rep ReplicaReader,
	opts Options, logger *zap.Logger,
) *Service {
	if opts.MaxSuggestions <= 0 {
		opts.MaxSuggestions = DefaultMaxSuggestions
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.GeohashPrecision <= 0 {
		opts.GeohashPrecision = DefaultGeohashPrecision
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		idx:      idx,
		lazy:     lazy,
		geocoder: geocoder,
		cache:    cache,
		layers:   layers,
		configs:  layer.Enabled(configs),
		replica:  rep,
		opts:     opts,
		logger:   logger,
	}
}

// Suggest returns ranked suggestions for text in the given mode.
// An empty list with a nil error means no matches.
func (s *Service) Suggest(ctx context.Context, m mode.Mode, text string) ([]result.Suggestion, error) {
	switch m {
	case mode.Asset:
		return s.suggestAssets(ctx, text)
	case mode.Location:
		return s.suggestLocations(ctx, text)
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidQuery, m)
	}
}

func (s *Service) suggestAssets(ctx context.Context, text string) ([]result.Suggestion, error) {
	h := hint.Parse(text, s.configs)
	if index.Normalize(h.Value) == "" {
		return nil, nil
	}
	start := time.Now()
	key := suggestcache.Key{Mode: mode.Asset, Query: index.Normalize(text)}

	if cached, ok := s.cache.Get(key); ok {
		metrics.QueryDuration.WithLabelValues(string(mode.Asset), "cache").Observe(time.Since(start).Seconds())
		return cached, nil
	}

	// Dedup runs over every hit: a value shared by many features must not
	// crowd the other distinct values out of the list.
	items := s.searchIndex(h, -1)
	src := "index"
	if len(items) == 0 {
		src = "lazy"
		var err error
		items, err = s.lazy.Load(ctx, h)
		if err != nil {
			return nil, s.wrapSearchErr(err)
		}
	}

	out := toSuggestions(index.Dedup(items, itemText, s.opts.MaxSuggestions))
	metrics.QueryDuration.WithLabelValues(string(mode.Asset), src).Observe(time.Since(start).Seconds())
	s.cache.Put(key, out)
	return out, nil
}

func (s *Service) suggestLocations(ctx context.Context, text string) ([]result.Suggestion, error) {
	text = strings.TrimSpace(text)
	if text == "" || s.geocoder == nil {
		return nil, nil
	}
	start := time.Now()
	aoi := s.layers.VisibleExtent()
	key := suggestcache.Key{Mode: mode.Location, Query: index.Normalize(text), Cell: s.cell(aoi)}

	if cached, ok := s.cache.Get(key); ok {
		metrics.QueryDuration.WithLabelValues(string(mode.Location), "cache").Observe(time.Since(start).Seconds())
		return cached, nil
	}

	places, err := s.geocoder.Suggest(ctx, text, s.opts.Country, aoi)
	if err != nil {
		err = domain.Classify(err)
		if !domain.IsCancelled(err) {
			s.logger.Warn("Geocoder suggest failed", zap.Error(err))
		}
		return nil, err
	}

	out := make([]result.Suggestion, 0, min(len(places), s.opts.MaxSuggestions))
	for _, p := range places {
		if len(out) == s.opts.MaxSuggestions {
			break
		}
		out = append(out, result.NewLocationSuggestion(p))
	}
	metrics.QueryDuration.WithLabelValues(string(mode.Location), "geocoder").Observe(time.Since(start).Seconds())
	s.cache.Put(key, out)
	return out, nil
}

// Search returns the best-ranked item for text, with geometry when any source has it.
func (s *Service) Search(ctx context.Context, text string) (result.Item, error) {
	h := hint.Parse(text, s.configs)
	if index.Normalize(h.Value) == "" {
		return result.Item{}, fmt.Errorf("%w: empty query", domain.ErrInvalidQuery)
	}

	if items := s.searchIndex(h, 1); len(items) > 0 {
		best := items[0]
		if best.Geometry() != nil {
			return best, nil
		}
		found, err := s.lazy.Find(ctx, best.Layer, best.Field, best.DisplayText)
		if err == nil && len(found) > 0 {
			return pick(found, best.FeatureID), nil
		}
		if err != nil && domain.IsCancelled(err) {
			return result.Item{}, domain.Classify(err)
		}
		return best, nil
	}

	items, err := s.lazy.Load(ctx, h)
	if err != nil {
		return result.Item{}, s.wrapSearchErr(err)
	}
	if len(items) == 0 {
		return result.Item{}, fmt.Errorf("%w: no match for %q", domain.ErrNotFound, h.Value)
	}
	return items[0], nil
}

// Select resolves a picked suggestion. Cached geometry is used as is; otherwise an
// exact lookup on the suggestion's layer and field runs, then a contains pass across all layers.
func (s *Service) Select(ctx context.Context, sug result.Suggestion) (Selection, error) {
	if sug.Mode == mode.Location {
		return s.selectLocation(ctx, sug)
	}

	sel := Selection{
		Mode:        mode.Asset,
		Layer:       sug.Layer,
		Field:       sug.Field,
		FeatureID:   sug.FeatureID,
		DisplayText: sug.DisplayText,
	}
	if sug.HasGeometry() {
		sel.Geometry = sug.Geometry
		sel.Source = "cached"
		return sel, nil
	}
	if strings.TrimSpace(sug.DisplayText) == "" {
		return Selection{}, fmt.Errorf("%w: empty suggestion", domain.ErrInvalidQuery)
	}

	if sug.Layer != "" && sug.Field != "" {
		items, err := s.lazy.Find(ctx, sug.Layer, sug.Field, sug.DisplayText)
		if err != nil && domain.IsCancelled(err) {
			return Selection{}, domain.Classify(err)
		}
		if len(items) > 0 {
			return fromItem(pick(items, sug.FeatureID), "targeted"), nil
		}
		if err != nil {
			s.logger.Warn("Targeted lookup failed, falling back",
				zap.String("layer", sug.Layer), zap.String("field", sug.Field), zap.Error(err))
		}
	}

	items, err := s.lazy.Load(ctx, hint.Hint{Value: sug.DisplayText})
	if err != nil {
		return Selection{}, s.wrapSearchErr(err)
	}
	if len(items) == 0 {
		return Selection{}, fmt.Errorf("%w: %q", domain.ErrNotFound, sug.DisplayText)
	}
	best := items[0]
	for _, it := range items {
		if strings.EqualFold(it.DisplayText, sug.DisplayText) {
			best = it
			break
		}
	}
	return fromItem(best, "fallback"), nil
}

func (s *Service) selectLocation(ctx context.Context, sug result.Suggestion) (Selection, error) {
	if s.geocoder == nil {
		return Selection{}, fmt.Errorf("%w: location mode disabled", domain.ErrGeocodeServiceUnavailable)
	}
	place, err := s.geocoder.Geocode(ctx,
		geo.PlaceSuggestion{Text: sug.DisplayText, Token: sug.Token},
		s.opts.Country, s.layers.VisibleExtent())
	if err != nil {
		return Selection{}, domain.Classify(err)
	}
	return Selection{
		Mode:        mode.Location,
		DisplayText: place.Address,
		Geometry:    &geo.Geometry{Kind: geo.KindPoint, Points: []geo.Point{place.Point}},
		Place:       &place,
		Source:      "geocoder",
	}, nil
}

// Statistics summarizes the index and the replica state.
func (s *Service) Statistics() Statistics {
	st := s.idx.Statistics()
	snap := s.replica.Snapshot()
	return Statistics{
		TotalEntries: st.TotalEntries,
		DistinctKeys: st.DistinctKeys,
		ReadyState:   snap.State,
		Failed:       snap.Failed,
	}
}

func (s *Service) searchIndex(h hint.Hint, limit int) []result.Item {
	var keep func(*index.Entry) bool
	if h.Scoped() {
		keep = func(e *index.Entry) bool { return h.Matches(e.Layer, e.Field) }
	}
	switch {
	case limit < 0:
		limit = 0
	case limit == 0:
		limit = s.opts.MaxResults
	}
	entries := s.idx.SearchFunc(h.Value, limit, keep)
	items := make([]result.Item, len(entries))
	for i, e := range entries {
		items[i] = e.Item()
	}
	return items
}

func (s *Service) wrapSearchErr(err error) error {
	err = domain.Classify(err)
	if errors.Is(err, domain.ErrDataSourceUnavailable) {
		s.logger.Warn("Search unavailable", zap.Error(err))
		return fmt.Errorf("%w: %w", domain.ErrSearchUnavailable, err)
	}
	return err
}

// cell keys a viewport by its center geohash and zoom level, so viewports
// sharing a center but covering different areas do not share suggestions.
func (s *Service) cell(aoi geo.Extent) string {
	if aoi.IsEmpty() {
		return ""
	}
	c := aoi.Center()
	return geohash.EncodeWithPrecision(c.Lat, c.Lon, s.opts.GeohashPrecision) + "/z" + strconv.Itoa(zoomLevel(aoi))
}

// zoomLevel is the web-map zoom whose tile span covers the extent's wider side.
func zoomLevel(aoi geo.Extent) int {
	xmin, ymin, xmax, ymax := aoi.Bounds()
	span := max(xmax-xmin, (ymax-ymin)*2)
	if span <= 0 {
		return maxZoom
	}
	z := int(math.Floor(math.Log2(360 / span)))
	return min(max(z, 0), maxZoom)
}

func pick(items []result.Item, featureID string) result.Item {
	if featureID != "" {
		for _, it := range items {
			if it.FeatureID == featureID {
				return it
			}
		}
	}
	return items[0]
}

func fromItem(it result.Item, source string) Selection {
	return Selection{
		Mode:        mode.Asset,
		Layer:       it.Layer,
		Field:       it.Field,
		FeatureID:   it.FeatureID,
		DisplayText: it.DisplayText,
		Geometry:    it.Geometry(),
		Source:      source,
	}
}

func itemText(it result.Item) string { return it.DisplayText }

func toSuggestions(items []result.Item) []result.Suggestion {
	out := make([]result.Suggestion, len(items))
	for i, it := range items {
		out[i] = result.NewAssetSuggestion(it)
	}
	return out
}
