package index

import (
	"slices"
	"strings"
	"sync"
	"weak"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kailas-cloud/geosuggest/internal/domain/feature"
	"github.com/kailas-cloud/geosuggest/internal/domain/search/result"
)

// maxGram is the longest gram kept in posting lists.
const maxGram = 3

// Record is an upsert request.
type Record struct {
	Layer     string
	Field     string
	Value     string
	Display   string
	FeatureID string
	// Feature is referenced weakly. Nil for attribute-only records.
	Feature *feature.Feature
}

// Entry is an immutable indexed value. Replaced wholesale on re-upsert.
type Entry struct {
	Layer      string
	Field      string
	Normalized string
	Display    string
	FeatureID  string
	ref        weak.Pointer[feature.Feature]
}

// Feature returns the referenced feature if it is still alive.
func (e *Entry) Feature() *feature.Feature {
	return e.ref.Value()
}

// Item converts the entry into a search result.
func (e *Entry) Item() result.Item {
	return result.Item{
		Layer:       e.Layer,
		Field:       e.Field,
		FeatureID:   e.FeatureID,
		DisplayText: e.Display,
		Feature:     e.Feature(),
	}
}

type entryKey struct {
	layer, field, norm, fid string
}

// Statistics summarizes index contents.
type Statistics struct {
	TotalEntries int `json:"total_entries"`
	DistinctKeys int `json:"distinct_keys"`
}

// Index is an in-memory substring index over attribute values.
// Posting lists map every 1..3-rune gram of a normalized value to the entries containing it.
type Index struct {
	mu       sync.RWMutex
	entries  []*Entry
	keys     map[entryKey]uint32
	postings map[string]*roaring.Bitmap
	distinct map[string]struct{}
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		keys:     make(map[entryKey]uint32),
		postings: make(map[string]*roaring.Bitmap),
		distinct: make(map[string]struct{}),
	}
}

// Upsert inserts or replaces one record. Records with an empty normalized value are ignored.
func (ix *Index) Upsert(r Record) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.upsertLocked(r)
}

// UpsertBatch inserts or replaces records under a single lock acquisition.
func (ix *Index) UpsertBatch(rs []Record) {
	if len(rs) == 0 {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, r := range rs {
		ix.upsertLocked(r)
	}
}

// upsertLocked requires ix.mu held for writing.
func (ix *Index) upsertLocked(r Record) {
	n := Normalize(r.Value)
	if n == "" {
		return
	}
	display := r.Display
	if display == "" {
		display = strings.TrimSpace(r.Value)
	}

	e := &Entry{
		Layer:      r.Layer,
		Field:      r.Field,
		Normalized: n,
		Display:    display,
		FeatureID:  r.FeatureID,
	}
	if r.Feature != nil {
		e.ref = weak.Make(r.Feature)
	}

	k := entryKey{layer: r.Layer, field: r.Field, norm: n, fid: r.FeatureID}
	if id, ok := ix.keys[k]; ok {
		// Same normalized value, so postings are unchanged.
		ix.entries[id] = e
		return
	}

	id := uint32(len(ix.entries))
	ix.entries = append(ix.entries, e)
	ix.keys[k] = id
	ix.distinct[n] = struct{}{}
	for _, g := range grams(n) {
		bm, ok := ix.postings[g]
		if !ok {
			bm = roaring.New()
			ix.postings[g] = bm
		}
		bm.Add(id)
	}
}

// Search returns entries containing query, best first. maxResults <= 0 means no limit.
func (ix *Index) Search(query string, maxResults int) []*Entry {
	return ix.SearchFunc(query, maxResults, nil)
}

// SearchFunc is Search restricted to entries accepted by keep. A nil keep accepts all.
func (ix *Index) SearchFunc(query string, maxResults int, keep func(*Entry) bool) []*Entry {
	q := Normalize(query)
	if q == "" {
		return nil
	}

	type scored struct {
		e *Entry
		m Match
	}
	var hits []scored

	ix.mu.RLock()
	cand := ix.candidatesLocked(q)
	if cand != nil {
		it := cand.Iterator()
		for it.HasNext() {
			e := ix.entries[it.Next()]
			if keep != nil && !keep(e) {
				continue
			}
			m, ok := Score(e.Normalized, e.Display, q)
			if !ok {
				continue
			}
			hits = append(hits, scored{e: e, m: m})
		}
	}
	ix.mu.RUnlock()

	slices.SortFunc(hits, func(a, b scored) int {
		if c := Compare(a.m, b.m); c != 0 {
			return c
		}
		return strings.Compare(a.e.FeatureID, b.e.FeatureID)
	})
	if maxResults > 0 && len(hits) > maxResults {
		hits = hits[:maxResults]
	}

	out := make([]*Entry, len(hits))
	for i, h := range hits {
		out[i] = h.e
	}
	return out
}

// candidatesLocked returns a superset of entries containing q. Requires ix.mu held.
// The returned bitmap must not be modified.
func (ix *Index) candidatesLocked(q string) *roaring.Bitmap {
	rs := []rune(q)
	if len(rs) <= maxGram {
		return ix.postings[q]
	}

	seen := make(map[string]struct{}, len(rs))
	lists := make([]*roaring.Bitmap, 0, len(rs))
	for i := 0; i+maxGram <= len(rs); i++ {
		g := string(rs[i : i+maxGram])
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		bm, ok := ix.postings[g]
		if !ok {
			return nil
		}
		lists = append(lists, bm)
	}
	// Smallest first keeps the intersection cheap.
	slices.SortFunc(lists, func(a, b *roaring.Bitmap) int {
		return int(a.GetCardinality()) - int(b.GetCardinality())
	})
	return roaring.FastAnd(lists...)
}

// Suggest returns ranked display strings deduplicated case-insensitively.
func (ix *Index) Suggest(query string, maxSuggestions int) []string {
	entries := Dedup(ix.Search(query, 0), func(e *Entry) string { return e.Display }, maxSuggestions)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Display
	}
	return out
}

// Statistics returns entry and distinct-value counts.
func (ix *Index) Statistics() Statistics {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return Statistics{TotalEntries: len(ix.entries), DistinctKeys: len(ix.distinct)}
}

// grams returns every distinct substring of s with 1..maxGram runes.
func grams(s string) []string {
	rs := []rune(s)
	seen := make(map[string]struct{}, len(rs)*maxGram)
	out := make([]string, 0, len(rs)*maxGram)
	for i := range rs {
		for n := 1; n <= maxGram && i+n <= len(rs); n++ {
			g := string(rs[i : i+n])
			if _, dup := seen[g]; dup {
				continue
			}
			seen[g] = struct{}{}
			out = append(out, g)
		}
	}
	return out
}
