package suggestcache

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/geosuggest/internal/domain/search/mode"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/result"
)

func sugg(texts ...string) []result.Suggestion {
	out := make([]result.Suggestion, len(texts))
	for i, t := range texts {
		out[i] = result.Suggestion{Mode: mode.Asset, DisplayText: t, Formatted: t}
	}
	return out
}

func assetKey(q string) Key { return Key{Mode: mode.Asset, Query: q} }

func TestGetPut(t *testing.T) {
	c := New(4, nil)
	c.Put(assetKey("pipe"), sugg("PIPE-1042"))

	got, ok := c.Get(assetKey("pipe"))
	if !ok || len(got) != 1 || got[0].DisplayText != "PIPE-1042" {
		t.Fatalf("Get = %v, %v", got, ok)
	}
	if _, ok := c.Get(assetKey("other")); ok {
		t.Fatal("unexpected hit")
	}
}

func TestPut_EmptyNotCached(t *testing.T) {
	c := New(4, nil)
	c.Put(assetKey("9999"), nil)
	c.Put(assetKey("9998"), []result.Suggestion{})
	if c.Len() != 0 {
		t.Fatalf("Len = %d, want 0", c.Len())
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	const n = 3
	c := New(n, nil)
	for i := range n {
		c.Put(assetKey(fmt.Sprint(i)), sugg("v"))
	}
	// Touch 0 so 1 becomes the LRU entry.
	if _, ok := c.Get(assetKey("0")); !ok {
		t.Fatal("expected hit")
	}

	c.Put(assetKey("new"), sugg("v"))

	if c.Len() != n {
		t.Fatalf("Len = %d, want %d", c.Len(), n)
	}
	if _, ok := c.Get(assetKey("1")); ok {
		t.Error("LRU entry 1 should have been evicted")
	}
	for _, k := range []string{"0", "2", "new"} {
		if _, ok := c.Get(assetKey(k)); !ok {
			t.Errorf("entry %s evicted unexpectedly", k)
		}
	}
}

func TestModesAreSeparate(t *testing.T) {
	c := New(4, nil)
	c.Put(Key{Mode: mode.Asset, Query: "main"}, sugg("Main St"))
	if _, ok := c.Get(Key{Mode: mode.Location, Query: "main"}); ok {
		t.Fatal("suggestions must not cross modes")
	}
	if _, ok := c.Get(Key{Mode: mode.Location, Query: "main", Cell: "u09"}); ok {
		t.Fatal("suggestions must not cross modes")
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	c := New(4, nil)
	c.Put(assetKey("q"), sugg("a"))
	got, _ := c.Get(assetKey("q"))
	got[0].DisplayText = "mutated"
	again, _ := c.Get(assetKey("q"))
	if again[0].DisplayText != "a" {
		t.Error("cache entry mutated through returned slice")
	}
}

func TestPurge(t *testing.T) {
	c := New(4, nil)
	c.Put(Key{Mode: mode.Asset, Query: "a"}, sugg("a"))
	c.Put(Key{Mode: mode.Location, Query: "a"}, sugg("a"))
	c.Purge(mode.Location)
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}

func TestOldest_TracksLastAccess(t *testing.T) {
	c := New(4, nil)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	c.Put(assetKey("a"), sugg("a"))
	clock = clock.Add(time.Second)
	c.Put(assetKey("b"), sugg("b"))
	clock = clock.Add(time.Second)
	c.Get(assetKey("a"))

	k, at, ok := c.Oldest()
	if !ok || k.Query != "b" {
		t.Fatalf("Oldest = %v, want b", k)
	}
	if !at.Equal(time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC)) {
		t.Errorf("lastAccess = %v", at)
	}
}

func TestMetrics_HitMiss(t *testing.T) {
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"mode", "result"})
	c := New(4, cv)

	c.Get(assetKey("a"))
	c.Put(assetKey("a"), sugg("a"))
	c.Get(assetKey("a"))
	c.Get(assetKey("a"))

	if got := testutil.ToFloat64(cv.WithLabelValues("asset", "miss")); got != 1 {
		t.Errorf("miss = %v, want 1", got)
	}
	if got := testutil.ToFloat64(cv.WithLabelValues("asset", "hit")); got != 2 {
		t.Errorf("hit = %v, want 2", got)
	}
}
