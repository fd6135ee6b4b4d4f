// Package graph provides the type nesting graph used to resolve nested type
// names in declaration order.
package graph

// Graph records which TypeDef rows enclose which. Nodes are TypeDef row
// numbers (1-based, as stored in metadata tables).
type Graph struct {
	Nodes    []uint32            // rows in insertion order
	Children map[uint32][]uint32 // enclosing row -> nested rows (outgoing edges)
	Parents  map[uint32][]uint32 // nested row -> enclosing rows (incoming edges)
	present  map[uint32]bool
}

// NewGraph creates an empty nesting graph.
func NewGraph() *Graph {
	return &Graph{
		Children: make(map[uint32][]uint32),
		Parents:  make(map[uint32][]uint32),
		present:  make(map[uint32]bool),
	}
}

// AddNode adds a type row. Adding the same row twice is a no-op.
func (g *Graph) AddNode(row uint32) {
	if g.present[row] {
		return
	}
	g.present[row] = true
	g.Nodes = append(g.Nodes, row)
}

// AddEdge records that enclosing declares nested. Both rows are added as
// nodes if they are not present yet.
func (g *Graph) AddEdge(enclosing, nested uint32) {
	g.AddNode(enclosing)
	g.AddNode(nested)
	g.Children[enclosing] = append(g.Children[enclosing], nested)
	g.Parents[nested] = append(g.Parents[nested], enclosing)
}

// GetChildren returns the rows directly nested in row.
func (g *Graph) GetChildren(row uint32) []uint32 {
	return g.Children[row]
}

// Enclosing returns the enclosing row of a nested type and whether it has one.
func (g *Graph) Enclosing(row uint32) (uint32, bool) {
	parents := g.Parents[row]
	if len(parents) == 0 {
		return 0, false
	}
	return parents[0], true
}

// InDegree returns the number of enclosing types recorded for row. Anything
// above one means the NestedClass table is inconsistent.
func (g *Graph) InDegree(row uint32) int {
	return len(g.Parents[row])
}
