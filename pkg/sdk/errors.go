package sdk

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/geosuggest/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() on errors returned by the Client.
var (
	ErrNotFound                  = domain.ErrNotFound
	ErrLayerNotFound             = domain.ErrLayerNotFound
	ErrQueryTimeout              = domain.ErrQueryTimeout
	ErrQueryCancelled            = domain.ErrQueryCancelled
	ErrSearchUnavailable         = domain.ErrSearchUnavailable
	ErrGeocodeServiceUnavailable = domain.ErrGeocodeServiceUnavailable
	ErrInvalidQuery              = domain.ErrInvalidQuery

	// ErrUnauthorized is returned when the API key is missing or rejected.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrWarmupInProgress is returned by Warmup while a warm-up is running.
	ErrWarmupInProgress = errors.New("warm-up in progress")
)

// codeErrors maps API error codes to sentinels.
var codeErrors = map[string]error{
	"bad_request":        ErrInvalidQuery,
	"unauthorized":       ErrUnauthorized,
	"not_found":          ErrNotFound,
	"layer_not_found":    ErrLayerNotFound,
	"query_timeout":      ErrQueryTimeout,
	"query_cancelled":    ErrQueryCancelled,
	"search_unavailable": ErrSearchUnavailable,
	"geocoder_error":     ErrGeocodeServiceUnavailable,
	"warmup_in_progress": ErrWarmupInProgress,
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("geosuggest: http %d", e.StatusCode)
	}
	return fmt.Sprintf("geosuggest: http %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap returns the sentinel for the error code, if known.
func (e *APIError) Unwrap() error {
	return codeErrors[e.Code]
}
