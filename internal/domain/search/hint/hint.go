package hint

import (
	"strings"

	"github.com/kailas-cloud/geosuggest/internal/domain/layer"
)

const (
	bullet = "•"
	colon  = ":"
)

// Hint is free-text input split into optional layer/field scopes and a value.
// Empty Layer or Field means "all".
type Hint struct {
	Layer string
	Field string
	Value string
}

// Scoped reports whether the hint narrows the search.
func (h Hint) Scoped() bool { return h.Layer != "" || h.Field != "" }

// Matches reports whether a layer/field pair falls inside the hint's scope.
func (h Hint) Matches(layerName, field string) bool {
	if h.Layer != "" && !strings.EqualFold(h.Layer, layerName) {
		return false
	}
	if h.Field != "" && !strings.EqualFold(h.Field, field) {
		return false
	}
	return true
}

// Parse splits text of the forms "Layer • Field • Value", "Layer • Value",
// "Layer:Value" and "Field:Value". Hints are canonicalized against configs.
// A bullet-form hint that names no configured layer or field is dropped and
// its value kept; a colon-form hint that names nothing falls back to the whole text.
func Parse(text string, configs []layer.Config) Hint {
	text = strings.TrimSpace(text)

	if strings.Contains(text, bullet) {
		parts := splitTrim(text, bullet)
		switch len(parts) {
		case 2:
			return Hint{Layer: findLayer(parts[0], configs), Value: parts[1]}
		case 3:
			l := findLayer(parts[0], configs)
			return Hint{Layer: l, Field: findField(parts[1], l, configs), Value: parts[2]}
		}
	}

	if i := strings.Index(text, colon); i > 0 && i < len(text)-1 {
		head := strings.TrimSpace(text[:i])
		value := strings.TrimSpace(text[i+1:])
		if value == "" {
			return Hint{Value: text}
		}
		if l := findLayer(head, configs); l != "" {
			return Hint{Layer: l, Value: value}
		}
		if f := findField(head, "", configs); f != "" {
			return Hint{Field: f, Value: value}
		}
	}

	return Hint{Value: text}
}

func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func findLayer(name string, configs []layer.Config) string {
	for _, c := range configs {
		if strings.EqualFold(c.LogicalName(), name) {
			return c.LogicalName()
		}
	}
	return ""
}

// findField looks name up in the given layer's indexed fields, or in every layer's when layerName is empty.
func findField(name, layerName string, configs []layer.Config) string {
	for _, c := range configs {
		if layerName != "" && c.LogicalName() != layerName {
			continue
		}
		for _, f := range c.IndexedFields() {
			if strings.EqualFold(f, name) {
				return f
			}
		}
	}
	return ""
}
