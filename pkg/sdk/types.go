package sdk

import (
	"github.com/kailas-cloud/geosuggest/internal/domain/geo"
	"github.com/kailas-cloud/geosuggest/internal/domain/replica"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/mode"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/result"
	queryuc "github.com/kailas-cloud/geosuggest/internal/usecase/query"
)

// Mode selects asset or location search.
type Mode = mode.Mode

// Mode constants.
const (
	ModeAsset    = mode.Asset
	ModeLocation = mode.Location
)

type (
	// Suggestion is a candidate completion. Pass it back to Select unchanged.
	Suggestion = result.Suggestion
	// Selection is the resolved target of a picked suggestion.
	Selection = queryuc.Selection
	// Statistics summarizes the index and warm-up state.
	Statistics = queryuc.Statistics
	// Snapshot is the warm-up state.
	Snapshot = replica.Snapshot
	// ProgressEvent is a warm-up progress notification.
	ProgressEvent = replica.ProgressEvent
	// Geometry is a feature shape.
	Geometry = geo.Geometry
)

// Feature is the best match returned by Search.
type Feature struct {
	Layer      string            `json:"layer"`
	Field      string            `json:"field"`
	FeatureID  string            `json:"feature_id"`
	Text       string            `json:"text"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Geometry   *Geometry         `json:"geometry,omitempty"`
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            `json:"status"` // "ok", "degraded", "error"
	Checks map[string]string `json:"checks"` // component → "ok"/"warming"/"error"
}

type suggestResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
}
