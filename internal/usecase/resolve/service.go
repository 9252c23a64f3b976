package resolve

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"

	"github.com/kailas-cloud/geosuggest/internal/domain"
	"github.com/kailas-cloud/geosuggest/internal/domain/layer"
)

type candidate struct {
	src  layer.Source
	path []string
}

// Service maps logical layer names onto runtime layer sources.
type Service struct {
	logger *zap.Logger
}

// New creates a resolver. logger may be nil.
func New(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger}
}

// Resolve finds the source for logicalName in tree. Strategies run in order
// across the whole tree and the first strategy with a match wins.
func (s *Service) Resolve(logicalName string, tree []layer.Node) (Resolution, error) {
	var cands []candidate
	layer.Walk(tree, func(src layer.Source, path []string) bool {
		cands = append(cands, candidate{src: src, path: path})
		return true
	})

	name := strings.TrimSpace(logicalName)
	for _, step := range []struct {
		strategy Strategy
		match    func(string, []candidate) (candidate, bool)
	}{
		{Exact, matchExact},
		{CatalogTitle, matchCatalogTitle},
		{TableName, matchTableName},
		{Alias, matchAlias},
		{Fuzzy, matchFuzzy},
	} {
		if c, ok := step.match(name, cands); ok {
			s.logger.Debug("Resolved layer",
				zap.String("layer", name),
				zap.String("resolved", c.src.Name()),
				zap.String("strategy", string(step.strategy)),
				zap.Strings("path", c.path),
			)
			return Resolution{Source: c.src, Strategy: step.strategy, Path: c.path}, nil
		}
	}

	return Resolution{}, fmt.Errorf("%w: %s", domain.ErrLayerNotFound, name)
}

// ResolveAll resolves every config against tree. Failures are logged and returned per outcome.
func (s *Service) ResolveAll(configs []layer.Config, tree []layer.Node) []Outcome {
	out := make([]Outcome, 0, len(configs))
	for _, c := range configs {
		res, err := s.Resolve(c.LogicalName(), tree)
		if err != nil {
			s.logger.Warn("Layer not resolved, skipping", zap.String("layer", c.LogicalName()), zap.Error(err))
		}
		out = append(out, Outcome{Config: c, Resolution: res, Err: err})
	}
	return out
}

func matchExact(name string, cands []candidate) (candidate, bool) {
	for _, c := range cands {
		if strings.EqualFold(c.src.Name(), name) {
			return c, true
		}
	}
	return candidate{}, false
}

func matchCatalogTitle(name string, cands []candidate) (candidate, bool) {
	for _, c := range cands {
		if t := c.src.CatalogTitle(); t != "" && strings.EqualFold(t, name) {
			return c, true
		}
	}
	return candidate{}, false
}

func matchTableName(name string, cands []candidate) (candidate, bool) {
	for _, c := range cands {
		if t := c.src.TableName(); t != "" && strings.EqualFold(t, name) {
			return c, true
		}
	}
	return candidate{}, false
}

func matchAlias(name string, cands []candidate) (candidate, bool) {
	keys := aliasKeys(name)
	for _, c := range cands {
		for _, label := range labels(c.src) {
			lk := compactKey(label)
			for _, k := range keys {
				if k != "" && k == lk {
					return c, true
				}
			}
		}
	}
	return candidate{}, false
}

func matchFuzzy(name string, cands []candidate) (candidate, bool) {
	keys := append([]string{tableKey(name)}, aliasKeys(name)...)

	best, bestDist := candidate{}, -1
	for _, c := range cands {
		for _, label := range labels(c.src) {
			lk := tableKey(label)
			if lk == "" {
				continue
			}
			for _, k := range keys {
				if k == "" {
					continue
				}
				d := levenshtein.ComputeDistance(k, lk)
				if d > tolerance(len([]rune(k))) {
					continue
				}
				if bestDist < 0 || d < bestDist {
					best, bestDist = c, d
				}
			}
		}
	}
	return best, bestDist >= 0
}

func labels(src layer.Source) []string {
	out := []string{src.Name()}
	if t := src.CatalogTitle(); t != "" {
		out = append(out, t)
	}
	if t := src.TableName(); t != "" {
		out = append(out, t)
	}
	return out
}
