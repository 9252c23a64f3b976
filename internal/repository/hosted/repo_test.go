package hosted

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/kailas-cloud/geosuggest/internal/domain"
	"github.com/kailas-cloud/geosuggest/internal/domain/geo"
	"github.com/kailas-cloud/geosuggest/internal/domain/layer"
	"github.com/kailas-cloud/geosuggest/internal/repository/memory"
)

func dataset() memory.Dataset {
	pt := &geo.Geometry{Kind: geo.KindPoint, Points: []geo.Point{{Lon: -79.5, Lat: 40.5}}}
	return memory.Dataset{Services: []memory.ServiceData{{
		Name: "Sewer",
		Layers: []memory.LayerData{
			{
				Name: "ssGravityMain", Title: "Gravity Main", Table: "GDB_SSGRAVITYMAIN",
				Fields: []string{"AssetID", "StartID"},
				Features: []memory.FeatureData{
					{ID: "1", Attributes: map[string]string{"AssetID": "PIPE-1042", "StartID": "MH-1"}, Geometry: pt},
					{ID: "2", Attributes: map[string]string{"AssetID": "PIPE-10421", "StartID": "MH-1042"}, Geometry: pt},
					{ID: "3", Attributes: map[string]string{"AssetID": "PIPE-2000", "StartID": "MH-7"}},
				},
			},
			{Name: "ssManhole", Fields: []string{"FacilityID"}},
		},
	}}}
}

func seeded(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	st := newMockStore()
	r := New(st, 2, nil)
	n, err := r.Seed(context.Background(), dataset())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != 3 {
		t.Fatalf("seeded %d features, want 3", n)
	}
	return r, st
}

func sources(t *testing.T, r *Repo) []layer.Source {
	t.Helper()
	tree, err := r.LoadTree(context.Background(), []string{"Sewer"})
	if err != nil {
		t.Fatalf("load tree: %v", err)
	}
	var out []layer.Source
	layer.Walk(tree, func(src layer.Source, _ []string) bool {
		out = append(out, src)
		return true
	})
	return out
}

func TestLoadTree(t *testing.T) {
	r, _ := seeded(t)

	srcs := sources(t, r)
	if len(srcs) != 2 {
		t.Fatalf("expected 2 layers, got %d", len(srcs))
	}
	gm := srcs[0]
	if gm.Name() != "ssGravityMain" || gm.CatalogTitle() != "Gravity Main" || gm.TableName() != "GDB_SSGRAVITYMAIN" {
		t.Errorf("unexpected layer: %s %s %s", gm.Name(), gm.CatalogTitle(), gm.TableName())
	}
	if !slices.Equal(gm.Fields(), []string{"AssetID", "StartID"}) {
		t.Errorf("fields = %v", gm.Fields())
	}
	if srcs[1].Name() != "ssManhole" {
		t.Errorf("second layer = %s", srcs[1].Name())
	}
}

func TestLoadTree_UnknownServiceIsEmpty(t *testing.T) {
	r, _ := seeded(t)
	tree, err := r.LoadTree(context.Background(), []string{"Water"})
	if err != nil {
		t.Fatal(err)
	}
	g, ok := tree[0].(layer.Group)
	if !ok || len(g.Children()) != 0 {
		t.Errorf("expected empty group, got %#v", tree[0])
	}
}

func TestLoadTree_SkipsMalformedMeta(t *testing.T) {
	r, st := seeded(t)
	st.hashes[metaKey("Sewer", "broken")] = map[string]string{metaFields: "not json"}

	if got := len(sources(t, r)); got != 2 {
		t.Errorf("expected malformed layer skipped, got %d layers", got)
	}
}

func TestLoadTree_InvalidService(t *testing.T) {
	r := New(newMockStore(), 0, nil)
	if _, err := r.LoadTree(context.Background(), []string{"a:b"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestQuery_Contains(t *testing.T) {
	r, _ := seeded(t)
	gm := sources(t, r)[0]

	page, err := gm.Query(context.Background(), layer.Query{
		Field: "StartID", Value: "mh-1", Match: layer.Contains, ReturnGeometry: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Features) != 2 || page.More {
		t.Fatalf("expected 2 features, got %d (more=%v)", len(page.Features), page.More)
	}
	if page.Features[0].ID() != "1" || page.Features[1].ID() != "2" {
		t.Errorf("order = %s, %s", page.Features[0].ID(), page.Features[1].ID())
	}
	if !page.Features[0].HasGeometry() {
		t.Error("expected geometry")
	}
}

func TestQuery_Exact(t *testing.T) {
	r, _ := seeded(t)
	gm := sources(t, r)[0]

	page, err := gm.Query(context.Background(), layer.Query{Field: "AssetID", Value: "pipe-1042", Match: layer.Exact})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Features) != 1 || page.Features[0].ID() != "1" {
		t.Fatalf("unexpected features: %v", page.Features)
	}
	if page.Features[0].HasGeometry() {
		t.Error("geometry returned without ReturnGeometry")
	}
}

func TestQuery_Paging(t *testing.T) {
	r, _ := seeded(t)
	gm := sources(t, r)[0]

	var ids []string
	offset := 0
	for {
		page, err := gm.Query(context.Background(), layer.Query{
			OutFields: []string{"AssetID"}, Offset: offset, Limit: 2,
		})
		if err != nil {
			t.Fatal(err)
		}
		for _, f := range page.Features {
			ids = append(ids, f.ID())
			if _, ok := f.Value("StartID"); ok {
				t.Error("OutFields not applied")
			}
		}
		offset += len(page.Features)
		if !page.More {
			break
		}
	}
	if !slices.Equal(ids, []string{"1", "2", "3"}) {
		t.Errorf("ids = %v", ids)
	}
}

func TestQuery_StoreError(t *testing.T) {
	r, st := seeded(t)
	gm := sources(t, r)[0]
	st.scanErr = errors.New("connection refused")

	_, err := gm.Query(context.Background(), layer.Query{})
	if !errors.Is(err, domain.ErrDataSourceUnavailable) {
		t.Errorf("expected ErrDataSourceUnavailable, got %v", err)
	}
}

func TestQuery_ContextError(t *testing.T) {
	r, st := seeded(t)
	gm := sources(t, r)[0]
	st.getErr = context.DeadlineExceeded

	_, err := gm.Query(context.Background(), layer.Query{})
	if !errors.Is(err, domain.ErrQueryTimeout) {
		t.Errorf("expected ErrQueryTimeout, got %v", err)
	}
}

func TestSeed_ReplacesFeatures(t *testing.T) {
	r, st := seeded(t)

	ds := dataset()
	ds.Services[0].Layers[0].Features = ds.Services[0].Layers[0].Features[:1]
	if _, err := r.Seed(context.Background(), ds); err != nil {
		t.Fatal(err)
	}

	var features int
	for k := range st.hashes {
		if strings.HasPrefix(k, keyPrefix+"Sewer:layer:ssGravityMain:") {
			features++
		}
	}
	if features != 1 {
		t.Errorf("expected 1 feature after reseed, got %d", features)
	}
}

func TestSeed_ReplacesAcrossScanPages(t *testing.T) {
	r, st := seeded(t)
	st.pageSize = 1

	ds := dataset()
	ds.Services[0].Layers[0].Features = nil
	if _, err := r.Seed(context.Background(), ds); err != nil {
		t.Fatal(err)
	}
	for k := range st.hashes {
		if strings.HasPrefix(k, keyPrefix+"Sewer:layer:ssGravityMain:") {
			t.Errorf("stale feature left behind: %s", k)
		}
	}
	if _, ok := st.hashes[metaKey("Sewer", "ssGravityMain")]; !ok {
		t.Error("layer meta missing after reseed")
	}
}

func TestSeed_RejectsBadNames(t *testing.T) {
	r := New(newMockStore(), 0, nil)
	ds := memory.Dataset{Services: []memory.ServiceData{{Name: "Sewer", Layers: []memory.LayerData{{Name: "a*b"}}}}}
	if _, err := r.Seed(context.Background(), ds); err == nil {
		t.Fatal("expected error")
	}
}

func TestFeatureFields_RoundTrip(t *testing.T) {
	fd := dataset().Services[0].Layers[0].Features[0]
	fd.Attributes["__geometry"] = "reserved"

	h, err := buildFeatureFields(fd.ToFeature())
	if err != nil {
		t.Fatal(err)
	}
	f, err := parseFeatureFields(h)
	if err != nil {
		t.Fatal(err)
	}
	if f.ID() != "1" || f.Attributes()["AssetID"] != "PIPE-1042" {
		t.Errorf("unexpected feature: %v %v", f.ID(), f.Attributes())
	}
	if g := f.Geometry(); g == nil || g.Points[0].Lat != 40.5 {
		t.Errorf("geometry = %+v", g)
	}
}
