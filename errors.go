package geosuggest

import "github.com/kailas-cloud/geosuggest/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound                  = domain.ErrNotFound
	ErrInvalidConfig             = domain.ErrInvalidConfig
	ErrLayerNotFound             = domain.ErrLayerNotFound
	ErrFieldNotFound             = domain.ErrFieldNotFound
	ErrQueryTimeout              = domain.ErrQueryTimeout
	ErrQueryCancelled            = domain.ErrQueryCancelled
	ErrDataSourceUnavailable     = domain.ErrDataSourceUnavailable
	ErrGeocodeServiceUnavailable = domain.ErrGeocodeServiceUnavailable
	ErrSearchUnavailable         = domain.ErrSearchUnavailable
	ErrInvalidQuery              = domain.ErrInvalidQuery
)
