package health

import (
	"context"

	"github.com/kailas-cloud/geosuggest/internal/domain/replica"
)

// Pinger checks a layer backend's availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GeocoderChecker checks geocoder availability.
type GeocoderChecker interface {
	HealthCheck(ctx context.Context) error
}

// ReplicaReader exposes warm-up state.
type ReplicaReader interface {
	Snapshot() replica.Snapshot
}
