package resolve

import (
	"regexp"
	"strings"
	"unicode"
)

// abbreviations maps utility-network name prefixes to the words they stand for.
var abbreviations = map[string][]string{
	"ss": {"sewer", "sanitary"},
	"sw": {"storm", "stormwater"},
	"sd": {"storm", "stormwater"},
	"wt": {"water"},
	"wa": {"water"},
	"gs": {"gas"},
	"el": {"electric"},
}

var (
	schemaQualifier = regexp.MustCompile(`^[a-z0-9]+\.`)
	tablePrefix     = regexp.MustCompile(`^(gdb|tbl|t)_`)
	numericSuffix   = regexp.MustCompile(`_\d+$`)
)

// splitWords splits camelCase, snake_case and spaced names into words.
func splitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	rs := []rune(s)
	for i, r := range rs {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
			continue
		case unicode.IsUpper(r) && len(cur) > 0:
			prevLower := unicode.IsLower(rs[i-1]) || unicode.IsDigit(rs[i-1])
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if prevLower || nextLower {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

// singular folds a simple English plural.
func singular(w string) string {
	switch {
	case len(w) > 3 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 3 && (strings.HasSuffix(w, "ches") || strings.HasSuffix(w, "shes") ||
		strings.HasSuffix(w, "xes") || strings.HasSuffix(w, "sses")):
		return w[:len(w)-2]
	case len(w) > 2 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	default:
		return w
	}
}

// compactKey lowercases, singularizes each word and joins without separators.
func compactKey(s string) string {
	var b strings.Builder
	for _, w := range splitWords(s) {
		b.WriteString(singular(strings.ToLower(w)))
	}
	return b.String()
}

// aliasKeys returns the compact keys a logical name may be known by.
// "ssManholes" yields "manhole", "sewermanhole" and "sanitarymanhole".
func aliasKeys(logical string) []string {
	words := splitWords(logical)
	if len(words) == 0 {
		return nil
	}
	keys := []string{compactKey(logical)}

	expansions, ok := abbreviations[strings.ToLower(words[0])]
	if !ok || len(words) == 1 {
		return keys
	}
	rest := compactKey(strings.Join(words[1:], " "))
	keys = append(keys, rest)
	for _, e := range expansions {
		keys = append(keys, e+rest)
	}
	return keys
}

// tableKey reduces an offline-package table name to its comparable core.
func tableKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = schemaQualifier.ReplaceAllString(s, "")
	s = tablePrefix.ReplaceAllString(s, "")
	s = numericSuffix.ReplaceAllString(s, "")
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// tolerance is the Levenshtein budget for a key of n runes.
func tolerance(n int) int {
	return max(1, n/5)
}
