package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidConfig signals missing or malformed configuration. Fatal at construction.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLayerNotFound signals that a logical layer name did not resolve to any runtime layer.
	ErrLayerNotFound = errors.New("layer not found")
	// ErrFieldNotFound signals a configured field missing from the layer schema.
	ErrFieldNotFound = errors.New("field not found")
	// ErrQueryTimeout signals a layer or field query that exceeded its deadline.
	ErrQueryTimeout = errors.New("query timeout")
	// ErrQueryCancelled signals a superseded query. Expected churn, never reported to users.
	ErrQueryCancelled = errors.New("query cancelled")
	// ErrDataSourceUnavailable signals a feature source that cannot be queried.
	ErrDataSourceUnavailable = errors.New("data source unavailable")
	// ErrGeocodeServiceUnavailable signals a geocoder failure.
	ErrGeocodeServiceUnavailable = errors.New("geocode service unavailable")
	// ErrSearchUnavailable signals that no source could answer a search.
	ErrSearchUnavailable = errors.New("search unavailable")
	// ErrInvalidQuery signals an unusable query (empty, unknown mode).
	ErrInvalidQuery = errors.New("invalid query")
)

// LayerError scopes an error to a layer and, optionally, a field.
type LayerError struct {
	Layer string
	Field string
	Err   error
}

func (e *LayerError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("layer %s field %s: %s", e.Layer, e.Field, e.Err.Error())
	}
	return fmt.Sprintf("layer %s: %s", e.Layer, e.Err.Error())
}

func (e *LayerError) Unwrap() error { return e.Err }

// NewLayerError wraps err with layer/field scope.
func NewLayerError(layer, field string, err error) error {
	return &LayerError{Layer: layer, Field: field, Err: err}
}

// Classify maps context errors onto the query taxonomy.
// Errors that already carry a sentinel are returned unchanged.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrQueryTimeout), errors.Is(err, ErrQueryCancelled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrQueryTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrQueryCancelled, err)
	default:
		return err
	}
}

// IsCancelled reports whether err is benign debounce churn.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrQueryCancelled) || errors.Is(err, context.Canceled)
}
