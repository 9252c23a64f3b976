package health

import (
	"context"
	"maps"

	"github.com/kailas-cloud/geosuggest/internal/domain/replica"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure or an unfinished warm-up.
	Degraded Status = "degraded"
	// Unhealthy indicates that no layer could be replicated.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckWarming indicates a replica that has not finished warm-up.
	CheckWarming CheckResult = "warming"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks.
type Service struct {
	replica  ReplicaReader
	geocoder GeocoderChecker
	pingers  map[string]Pinger
}

// New creates a Service. geocoder can be nil; pingers are keyed by check name.
func New(rep ReplicaReader, geocoder GeocoderChecker, pingers map[string]Pinger) *Service {
	return &Service{replica: rep, geocoder: geocoder, pingers: maps.Clone(pingers)}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.pingers)+2)
	status := Healthy

	snap := s.replica.Snapshot()
	switch {
	case !snap.State.IsTerminal():
		checks["replica"] = CheckWarming
		status = Degraded
	case snap.State == replica.ReadyWithErrors:
		checks["replica"] = CheckError
		status = Degraded
		if snap.Succeeded == 0 {
			status = Unhealthy
		}
	default:
		checks["replica"] = CheckOK
	}

	for name, p := range s.pingers {
		checks[name] = result(p.Ping(ctx))
	}
	if s.geocoder != nil {
		checks["geocoder"] = result(s.geocoder.HealthCheck(ctx))
	}

	if status == Healthy {
		for _, v := range checks {
			if v != CheckOK {
				status = Degraded
				break
			}
		}
	}

	return Report{Status: status, Checks: checks}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
