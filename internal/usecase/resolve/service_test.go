package resolve

import (
	"context"
	"errors"
	"slices"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/geosuggest/internal/domain"
	"github.com/kailas-cloud/geosuggest/internal/domain/layer"
)

// --- Mocks ---

type mockSource struct {
	name, title, table string
}

func (m *mockSource) Name() string         { return m.name }
func (m *mockSource) CatalogTitle() string { return m.title }
func (m *mockSource) TableName() string    { return m.table }
func (m *mockSource) Fields() []string     { return nil }
func (m *mockSource) Query(_ context.Context, _ layer.Query) (layer.Page, error) {
	return layer.Page{}, nil
}

// --- Tests ---

func TestResolve_Strategies(t *testing.T) {
	tests := []struct {
		name      string
		logical   string
		tree      []layer.Node
		wantLayer string
		wantStrat Strategy
	}{
		{
			name:      "exact case-insensitive",
			logical:   "manhole",
			tree:      []layer.Node{&mockSource{name: "Manhole"}},
			wantLayer: "Manhole",
			wantStrat: Exact,
		},
		{
			name:      "catalog title",
			logical:   "Sewer Network",
			tree:      []layer.Node{&mockSource{name: "layer_0", title: "Sewer Network"}},
			wantLayer: "layer_0",
			wantStrat: CatalogTitle,
		},
		{
			name:      "table name",
			logical:   "GravityMain",
			tree:      []layer.Node{&mockSource{name: "Gravity Mains", table: "gravitymain"}},
			wantLayer: "Gravity Mains",
			wantStrat: TableName,
		},
		{
			name:      "alias strips prefix and plural",
			logical:   "ssManholes",
			tree:      []layer.Node{&mockSource{name: "Pipes"}, &mockSource{name: "Manhole"}},
			wantLayer: "Manhole",
			wantStrat: Alias,
		},
		{
			name:      "alias expands abbreviation",
			logical:   "swInlets",
			tree:      []layer.Node{&mockSource{name: "Storm Inlet"}},
			wantLayer: "Storm Inlet",
			wantStrat: Alias,
		},
		{
			name:      "fuzzy offline table",
			logical:   "wtHydrant",
			tree:      []layer.Node{&mockSource{name: "x", table: "main.gdb_wtHydrnt_1"}},
			wantLayer: "x",
			wantStrat: Fuzzy,
		},
		{
			name:    "nested groups",
			logical: "Valve",
			tree: []layer.Node{
				layer.NewGroup("Water", layer.NewGroup("Fittings", &mockSource{name: "VALVE"})),
			},
			wantLayer: "VALVE",
			wantStrat: Exact,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := New(nil).Resolve(tc.logical, tc.tree)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Source.Name() != tc.wantLayer {
				t.Errorf("resolved %q, want %q", res.Source.Name(), tc.wantLayer)
			}
			if res.Strategy != tc.wantStrat {
				t.Errorf("strategy %q, want %q", res.Strategy, tc.wantStrat)
			}
		})
	}
}

func TestResolve_EarlierStrategyWins(t *testing.T) {
	tree := []layer.Node{
		&mockSource{name: "Manholes_v2", title: "Manhole"},
		&mockSource{name: "Manhole"},
	}
	res, err := New(nil).Resolve("Manhole", tree)
	if err != nil {
		t.Fatal(err)
	}
	if res.Strategy != Exact || res.Source.Name() != "Manhole" {
		t.Errorf("got %q via %q, want exact match on second layer", res.Source.Name(), res.Strategy)
	}
}

func TestResolve_NotFound(t *testing.T) {
	_, err := New(nil).Resolve("ssGravityMain", []layer.Node{&mockSource{name: "Hydrant"}})
	if !errors.Is(err, domain.ErrLayerNotFound) {
		t.Fatalf("expected ErrLayerNotFound, got %v", err)
	}
}

func TestResolve_Path(t *testing.T) {
	tree := []layer.Node{layer.NewGroup("Sewer", &mockSource{name: "Manhole"})}
	res, err := New(nil).Resolve("Manhole", tree)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(res.Path, []string{"Sewer"}) {
		t.Errorf("path = %v", res.Path)
	}
}

func TestResolve_LogsStrategy(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	svc := New(zap.New(core))

	if _, err := svc.Resolve("ssManholes", []layer.Node{&mockSource{name: "Manhole"}}); err != nil {
		t.Fatal(err)
	}

	entries := logs.FilterMessage("Resolved layer").All()
	if len(entries) != 1 {
		t.Fatalf("expected one resolution log, got %d", len(entries))
	}
	got := entries[0].ContextMap()["strategy"]
	if got != string(Alias) && got != string(Fuzzy) {
		t.Errorf("strategy = %v, want alias or fuzzy", got)
	}
}

func TestResolveAll(t *testing.T) {
	a, _ := layer.NewConfig("Manhole", []string{"ID"}, "", true)
	b, _ := layer.NewConfig("Unknown", []string{"ID"}, "", true)
	out := New(nil).ResolveAll([]layer.Config{a, b}, []layer.Node{&mockSource{name: "Manhole"}})

	if len(out) != 2 {
		t.Fatalf("got %d outcomes", len(out))
	}
	if out[0].Err != nil || out[0].Resolution.Strategy != Exact {
		t.Errorf("first outcome = %+v", out[0])
	}
	if !errors.Is(out[1].Err, domain.ErrLayerNotFound) {
		t.Errorf("second outcome err = %v", out[1].Err)
	}
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"ssManholes", []string{"ss", "Manholes"}},
		{"SSGravityMain", []string{"SS", "Gravity", "Main"}},
		{"gdb_water_main", []string{"gdb", "water", "main"}},
		{"Storm Inlet", []string{"Storm", "Inlet"}},
	}
	for _, tc := range tests {
		if got := splitWords(tc.in); !slices.Equal(got, tc.want) {
			t.Errorf("splitWords(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestTableKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"main.gdb_Manholes_1", "manholes"},
		{"tbl_gravity_main", "gravitymain"},
		{"Hydrant", "hydrant"},
	}
	for _, tc := range tests {
		if got := tableKey(tc.in); got != tc.want {
			t.Errorf("tableKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
