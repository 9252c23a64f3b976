package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/geosuggest/internal/domain"
	"github.com/kailas-cloud/geosuggest/internal/domain/geo"
	"github.com/kailas-cloud/geosuggest/internal/metrics"
)

// maxBodyBytes bounds decoded responses.
const maxBodyBytes = 1 << 20

// Client talks to an ArcGIS-style geocode service exposing /suggest and /findAddressCandidates.
type Client struct {
	baseURL        string
	apiKey         string
	maxSuggestions int
	http           *http.Client
	limiter        *rate.Limiter
	logger         *zap.Logger
}

// Config holds the geocoder settings.
type Config struct {
	BaseURL        string
	APIKey         string
	MaxSuggestions int
	RatePerSec     float64
	Timeout        time.Duration
	Logger         *zap.Logger
}

// NewClient creates a geocoder client.
func NewClient(cfg *Config) *Client {
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = 6
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		maxSuggestions: cfg.MaxSuggestions,
		http:           &http.Client{Timeout: cfg.Timeout},
		limiter:        rate.NewLimiter(limit, max(1, int(cfg.RatePerSec))),
		logger:         logger,
	}
}

type suggestResponse struct {
	Suggestions []struct {
		Text         string `json:"text"`
		MagicKey     string `json:"magicKey"`
		IsCollection bool   `json:"isCollection"`
	} `json:"suggestions"`
	Error *serviceError `json:"error,omitempty"`
}

type candidatesResponse struct {
	Candidates []struct {
		Address  string  `json:"address"`
		Score    float64 `json:"score"`
		Location struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"location"`
		Extent *struct {
			XMin float64 `json:"xmin"`
			YMin float64 `json:"ymin"`
			XMax float64 `json:"xmax"`
			YMax float64 `json:"ymax"`
		} `json:"extent,omitempty"`
	} `json:"candidates"`
	Error *serviceError `json:"error,omitempty"`
}

type serviceError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Suggest returns completions for text, constrained by country and area of interest.
func (c *Client) Suggest(ctx context.Context, text, country string, aoi geo.Extent) ([]geo.PlaceSuggestion, error) {
	params := c.params(country, aoi)
	params.Set("text", text)
	params.Set("maxSuggestions", strconv.Itoa(c.maxSuggestions))

	var resp suggestResponse
	if err := c.get(ctx, "suggest", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, c.serviceErr("suggest", resp.Error)
	}

	out := make([]geo.PlaceSuggestion, 0, len(resp.Suggestions))
	for _, s := range resp.Suggestions {
		if s.IsCollection || s.Text == "" {
			continue
		}
		out = append(out, geo.PlaceSuggestion{Text: s.Text, Token: s.MagicKey})
	}
	return out, nil
}

// Geocode resolves a suggestion to its best location.
func (c *Client) Geocode(ctx context.Context, s geo.PlaceSuggestion, country string, aoi geo.Extent) (geo.Place, error) {
	params := c.params(country, aoi)
	params.Set("singleLine", s.Text)
	if s.Token != "" {
		params.Set("magicKey", s.Token)
	}
	params.Set("maxLocations", "1")
	params.Set("outFields", "*")

	var resp candidatesResponse
	if err := c.get(ctx, "findAddressCandidates", params, &resp); err != nil {
		return geo.Place{}, err
	}
	if resp.Error != nil {
		return geo.Place{}, c.serviceErr("findAddressCandidates", resp.Error)
	}
	if len(resp.Candidates) == 0 {
		return geo.Place{}, fmt.Errorf("geocode %q: %w", s.Text, domain.ErrNotFound)
	}

	best := resp.Candidates[0]
	place := geo.Place{
		Address: best.Address,
		Point:   geo.Point{Lon: best.Location.X, Lat: best.Location.Y},
		Score:   best.Score,
		Extent:  geo.EmptyExtent(),
	}
	if best.Extent != nil {
		if ext, err := geo.NewExtent(best.Extent.XMin, best.Extent.YMin, best.Extent.XMax, best.Extent.YMax); err == nil {
			place.Extent = ext
		}
	}
	return place, nil
}

// HealthCheck fetches the service description.
func (c *Client) HealthCheck(ctx context.Context) error {
	var info map[string]any
	return c.get(ctx, "", url.Values{"f": {"json"}}, &info)
}

func (c *Client) params(country string, aoi geo.Extent) url.Values {
	v := url.Values{}
	v.Set("f", "json")
	if country != "" {
		v.Set("countryCode", country)
	}
	if !aoi.IsEmpty() {
		v.Set("searchExtent", aoi.String())
	}
	if c.apiKey != "" {
		v.Set("token", c.apiKey)
	}
	return v
}

func (c *Client) get(ctx context.Context, op string, params url.Values, out any) error {
	label := op
	if label == "" {
		label = "info"
	}

	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("rate limit wait: %w", domain.Classify(ctxErr))
		}
		// The limiter refuses up front when the next token lands past the deadline.
		metrics.GeocoderRequestsTotal.WithLabelValues(label, "rate_limited").Inc()
		return fmt.Errorf("rate limit wait: %w: %w", domain.ErrQueryTimeout, err)
	}

	u := c.baseURL
	if op != "" {
		u += "/" + op
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return fmt.Errorf("build %s request: %w", label, err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.GeocoderRequestDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GeocoderRequestsTotal.WithLabelValues(label, "error").Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("geocoder %s: %w", label, domain.Classify(ctxErr))
		}
		return fmt.Errorf("geocoder %s: %w: %w", label, domain.ErrGeocodeServiceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.GeocoderRequestsTotal.WithLabelValues(label, "error").Inc()
		c.logger.Warn("Geocoder returned non-200",
			zap.String("op", label), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("geocoder %s: status %d: %w", label, resp.StatusCode, domain.ErrGeocodeServiceUnavailable)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		metrics.GeocoderRequestsTotal.WithLabelValues(label, "error").Inc()
		return fmt.Errorf("decode %s response: %w: %w", label, domain.ErrGeocodeServiceUnavailable, err)
	}

	metrics.GeocoderRequestsTotal.WithLabelValues(label, "success").Inc()
	return nil
}

func (c *Client) serviceErr(op string, se *serviceError) error {
	metrics.GeocoderRequestsTotal.WithLabelValues(op, "service_error").Inc()
	c.logger.Warn("Geocoder service error",
		zap.String("op", op), zap.Int("code", se.Code), zap.String("message", se.Message))
	return fmt.Errorf("geocoder %s error %d: %w", op, se.Code, domain.ErrGeocodeServiceUnavailable)
}
