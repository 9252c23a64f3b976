package index

import (
	"cmp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize trims, applies NFKC and case-folds s.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	// cases.Caser keeps state and is not safe for concurrent use.
	return cases.Fold().String(norm.NFKC.String(s))
}

// Match describes how a stored value matched a query.
type Match struct {
	Exact   bool
	Offset  int
	Length  int
	Display string
}

// Score matches normalized query q against normalized value v.
// ok is false when v does not contain q.
func Score(v, display, q string) (Match, bool) {
	i := strings.Index(v, q)
	if i < 0 {
		return Match{}, false
	}
	return Match{
		Exact:   v == q,
		Offset:  utf8.RuneCountInString(v[:i]),
		Length:  utf8.RuneCountInString(display),
		Display: display,
	}, true
}

// Compare orders matches best first: exact, earlier offset, shorter display, then display text.
func Compare(a, b Match) int {
	if a.Exact != b.Exact {
		if a.Exact {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(a.Offset, b.Offset); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Length, b.Length); c != 0 {
		return c
	}
	return strings.Compare(a.Display, b.Display)
}

// DedupKey is the case-insensitive identity of a display string.
func DedupKey(display string) string {
	return Normalize(display)
}

// Dedup keeps the first element per case-insensitive display, preserving order.
// limit <= 0 means no limit.
func Dedup[T any](items []T, display func(T) string, limit int) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := DedupKey(display(it))
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
