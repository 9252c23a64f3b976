package layer

import (
	"sync"

	"github.com/kailas-cloud/geosuggest/internal/domain/geo"
)

// StaticGroup is a fixed group node.
type StaticGroup struct {
	name     string
	children []Node
}

// NewGroup creates a group with the given children.
func NewGroup(name string, children ...Node) *StaticGroup {
	return &StaticGroup{name: name, children: children}
}

// Name returns the group name.
func (g *StaticGroup) Name() string { return g.name }

// Children returns the nested nodes.
func (g *StaticGroup) Children() []Node { return g.children }

// StaticMap is a Map with a fixed tree and a settable viewport.
type StaticMap struct {
	mu     sync.RWMutex
	nodes  []Node
	extent geo.Extent
}

// NewStaticMap creates a map over nodes with the initial extent.
func NewStaticMap(extent geo.Extent, nodes ...Node) *StaticMap {
	return &StaticMap{nodes: nodes, extent: extent}
}

// Layers returns the top-level nodes.
func (m *StaticMap) Layers() []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nodes
}

// Add appends top-level nodes.
func (m *StaticMap) Add(nodes ...Node) {
	m.mu.Lock()
	m.nodes = append(m.nodes, nodes...)
	m.mu.Unlock()
}

// VisibleExtent returns the current viewport.
func (m *StaticMap) VisibleExtent() geo.Extent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.extent
}

// SetExtent moves the viewport.
func (m *StaticMap) SetExtent(e geo.Extent) {
	m.mu.Lock()
	m.extent = e
	m.mu.Unlock()
}

// Walk calls fn for every Source in the tree, depth-first, with the group path leading to it.
func Walk(nodes []Node, fn func(src Source, path []string) bool) {
	walk(nodes, nil, fn)
}

func walk(nodes []Node, path []string, fn func(Source, []string) bool) bool {
	for _, n := range nodes {
		switch v := n.(type) {
		case Source:
			if !fn(v, path) {
				return false
			}
		case Group:
			next := append(append([]string(nil), path...), v.Name())
			if !walk(v.Children(), next, fn) {
				return false
			}
		}
	}
	return true
}
