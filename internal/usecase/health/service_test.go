package health

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/geosuggest/internal/domain/replica"
)

// --- Mocks ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockGeocoderChecker struct {
	err error
}

func (m *mockGeocoderChecker) HealthCheck(_ context.Context) error { return m.err }

type mockReplica struct {
	snap replica.Snapshot
}

func (m *mockReplica) Snapshot() replica.Snapshot { return m.snap }

func ready() *mockReplica {
	return &mockReplica{snap: replica.Snapshot{State: replica.Ready, Succeeded: 3}}
}

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(ready(), &mockGeocoderChecker{}, map[string]Pinger{"database": &mockPinger{}})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, name := range []string{"replica", "database", "geocoder"} {
		if r.Checks[name] != CheckOK {
			t.Errorf("expected %s %q, got %q", name, CheckOK, r.Checks[name])
		}
	}
}

func TestCheck_DBError(t *testing.T) {
	svc := New(ready(), &mockGeocoderChecker{}, map[string]Pinger{"database": &mockPinger{err: errors.New("conn refused")}})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["database"] != CheckError {
		t.Errorf("expected database %q, got %q", CheckError, r.Checks["database"])
	}
	if r.Checks["geocoder"] != CheckOK {
		t.Errorf("expected geocoder %q, got %q", CheckOK, r.Checks["geocoder"])
	}
}

func TestCheck_GeocoderError(t *testing.T) {
	svc := New(ready(), &mockGeocoderChecker{err: errors.New("timeout")}, nil)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["geocoder"] != CheckError {
		t.Errorf("expected geocoder %q, got %q", CheckError, r.Checks["geocoder"])
	}
}

func TestCheck_NoGeocoder(t *testing.T) {
	svc := New(ready(), nil, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["geocoder"]; ok {
		t.Error("geocoder check should be absent when geocoder is nil")
	}
}

func TestCheck_Replica(t *testing.T) {
	tests := []struct {
		name       string
		snap       replica.Snapshot
		wantStatus Status
		wantCheck  CheckResult
	}{
		{"uninitialized", replica.Snapshot{State: replica.Uninitialized}, Degraded, CheckWarming},
		{"warming", replica.Snapshot{State: replica.Warming}, Degraded, CheckWarming},
		{"ready", replica.Snapshot{State: replica.Ready, Succeeded: 2}, Healthy, CheckOK},
		{"partial", replica.Snapshot{State: replica.ReadyWithErrors, Succeeded: 1, Failed: 1}, Degraded, CheckError},
		{"all failed", replica.Snapshot{State: replica.ReadyWithErrors, Failed: 2}, Unhealthy, CheckError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(&mockReplica{snap: tt.snap}, nil, nil)
			r := svc.Check(context.Background())
			if r.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", r.Status, tt.wantStatus)
			}
			if r.Checks["replica"] != tt.wantCheck {
				t.Errorf("replica = %q, want %q", r.Checks["replica"], tt.wantCheck)
			}
		})
	}
}

func TestCheck_UnhealthyNotMaskedByPingers(t *testing.T) {
	svc := New(&mockReplica{snap: replica.Snapshot{State: replica.ReadyWithErrors, Failed: 1}},
		nil, map[string]Pinger{"database": &mockPinger{err: errors.New("down")}})
	if r := svc.Check(context.Background()); r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
}
