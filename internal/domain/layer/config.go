package layer

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/geosuggest/internal/domain"
)

// Config describes one searchable logical layer. Immutable once loaded.
type Config struct {
	logicalName  string
	searchFields []string
	displayField string
	enabled      bool
}

// NewConfig validates and creates a layer Config.
// Search fields are deduplicated case-insensitively, keeping first-seen order.
func NewConfig(logicalName string, searchFields []string, displayField string, enabled bool) (Config, error) {
	logicalName = strings.TrimSpace(logicalName)
	if logicalName == "" {
		return Config{}, fmt.Errorf("%w: layer logical name is required", domain.ErrInvalidConfig)
	}

	fields := make([]string, 0, len(searchFields))
	seen := make(map[string]struct{}, len(searchFields))
	for _, f := range searchFields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		k := strings.ToLower(f)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return Config{}, fmt.Errorf("%w: layer %q has no search fields", domain.ErrInvalidConfig, logicalName)
	}

	displayField = strings.TrimSpace(displayField)
	if displayField == "" {
		displayField = fields[0]
	}

	return Config{
		logicalName:  logicalName,
		searchFields: fields,
		displayField: displayField,
		enabled:      enabled,
	}, nil
}

// LogicalName returns the configured layer name.
func (c Config) LogicalName() string { return c.logicalName }

// SearchFields returns a copy of the ordered search fields.
func (c Config) SearchFields() []string {
	out := make([]string, len(c.searchFields))
	copy(out, c.searchFields)
	return out
}

// DisplayField returns the field whose value labels a feature.
func (c Config) DisplayField() string { return c.displayField }

// Enabled reports whether the layer participates in warm-up and search.
func (c Config) Enabled() bool { return c.enabled }

// IndexedFields returns search fields followed by the display field when it is not already one of them.
func (c Config) IndexedFields() []string {
	out := c.SearchFields()
	if !c.HasField(c.displayField) {
		out = append(out, c.displayField)
	}
	return out
}

// HasField reports whether name is a search field (case-insensitive).
func (c Config) HasField(name string) bool {
	for _, f := range c.searchFields {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}

// Enabled filters configs down to the enabled ones.
func Enabled(configs []Config) []Config {
	out := make([]Config, 0, len(configs))
	for _, c := range configs {
		if c.enabled {
			out = append(out, c)
		}
	}
	return out
}
