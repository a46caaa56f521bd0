package quadtree

import (
	"fmt"
	"sync"

	"github.com/Faultbox/geoscape/pkg/geo"
)

// Quadrant selects one of a tile's four children.
type Quadrant int

// Child quadrants. Child (x, y) indices are (2x, 2y) for NW, (2x+1, 2y) for
// NE, (2x, 2y+1) for SW and (2x+1, 2y+1) for SE, all at level+1.
const (
	Northwest Quadrant = iota
	Northeast
	Southwest
	Southeast
)

var quadrantNames = [...]string{"NW", "NE", "SW", "SE"}

func (q Quadrant) String() string {
	if q < Northwest || q > Southeast {
		return fmt.Sprintf("Quadrant(%d)", int(q))
	}
	return quadrantNames[q]
}

func (q Quadrant) offset() (dx, dy int) {
	return int(q) & 1, int(q) >> 1
}

// TileKey identifies a tile independent of any arena.
type TileKey struct {
	Schema int
	X, Y   int
	Level  int
}

// String implements fmt.Stringer.
func (k TileKey) String() string {
	return fmt.Sprintf("L%d/%d/%d", k.Level, k.X, k.Y)
}

// TileIndex is a node's position in the tree arena.
type TileIndex int32

// NoTile marks an absent parent or an unmaterialised child.
const NoTile TileIndex = -1

type node struct {
	key      TileKey
	parent   TileIndex
	children [4]TileIndex

	boundary      geo.Rectangle
	boundaryReady bool
}

// Tree is an arena of tiles. Nodes are created on first access and never
// recomputed; parents are plain indices, so nothing owns anything.
type Tree struct {
	schema *Schema

	mu    sync.RWMutex
	nodes []node
	index map[TileKey]TileIndex
	roots []TileIndex
}

// NewTree creates a tree holding the schema's level-zero tiles.
func NewTree(s *Schema) *Tree {
	t := &Tree{
		schema: s,
		index:  make(map[TileKey]TileIndex),
	}
	for y := 0; y < s.NumberOfYTilesAtLevel(0); y++ {
		for x := 0; x < s.NumberOfXTilesAtLevel(0); x++ {
			t.roots = append(t.roots, t.insert(TileKey{Schema: s.ID(), X: x, Y: y}, NoTile))
		}
	}
	return t
}

// Schema returns the tiling schema.
func (t *Tree) Schema() *Schema { return t.schema }

// Len returns the number of materialised tiles.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// Roots returns the level-zero tiles in row-major order.
func (t *Tree) Roots() []Tile {
	roots := make([]Tile, len(t.roots))
	for i, idx := range t.roots {
		roots[i] = Tile{tree: t, idx: idx}
	}
	return roots
}

// Lookup returns an already materialised tile.
func (t *Tree) Lookup(key TileKey) (Tile, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx, ok := t.index[key]
	if !ok {
		return Tile{}, false
	}
	return Tile{tree: t, idx: idx}, true
}

// insert must be called with mu held (or before the tree is shared).
func (t *Tree) insert(key TileKey, parent TileIndex) TileIndex {
	idx := TileIndex(len(t.nodes))
	t.nodes = append(t.nodes, node{
		key:      key,
		parent:   parent,
		children: [4]TileIndex{NoTile, NoTile, NoTile, NoTile},
	})
	t.index[key] = idx
	return idx
}

func (t *Tree) child(idx TileIndex, q Quadrant) TileIndex {
	t.mu.RLock()
	c := t.nodes[idx].children[q]
	t.mu.RUnlock()
	if c != NoTile {
		return c
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	n := &t.nodes[idx]
	if c = n.children[q]; c != NoTile {
		return c
	}
	dx, dy := q.offset()
	key := TileKey{
		Schema: n.key.Schema,
		X:      n.key.X*2 + dx,
		Y:      n.key.Y*2 + dy,
		Level:  n.key.Level + 1,
	}
	c = t.insert(key, idx)
	// insert may have grown the slice; re-take the pointer.
	t.nodes[idx].children[q] = c
	return c
}

func (t *Tree) boundary(idx TileIndex) geo.Rectangle {
	t.mu.RLock()
	n := t.nodes[idx]
	t.mu.RUnlock()
	if n.boundaryReady {
		return n.boundary
	}

	b := t.schema.TileXYToRectangle(n.key.X, n.key.Y, n.key.Level)
	t.mu.Lock()
	t.nodes[idx].boundary = b
	t.nodes[idx].boundaryReady = true
	t.mu.Unlock()
	return b
}

// Tile is a lightweight handle to a node in a Tree.
type Tile struct {
	tree *Tree
	idx  TileIndex
}

// Valid reports whether the handle points at a node.
func (t Tile) Valid() bool { return t.tree != nil }

// Index returns the arena index.
func (t Tile) Index() TileIndex { return t.idx }

// Key returns the tile key.
func (t Tile) Key() TileKey {
	t.tree.mu.RLock()
	defer t.tree.mu.RUnlock()
	return t.tree.nodes[t.idx].key
}

// X returns the tile column.
func (t Tile) X() int { return t.Key().X }

// Y returns the tile row.
func (t Tile) Y() int { return t.Key().Y }

// Level returns the tile level.
func (t Tile) Level() int { return t.Key().Level }

// Parent returns the parent tile, or false for a root.
func (t Tile) Parent() (Tile, bool) {
	t.tree.mu.RLock()
	p := t.tree.nodes[t.idx].parent
	t.tree.mu.RUnlock()
	if p == NoTile {
		return Tile{}, false
	}
	return Tile{tree: t.tree, idx: p}, true
}

// Child returns the child in quadrant q, creating it on first access.
func (t Tile) Child(q Quadrant) Tile {
	return Tile{tree: t.tree, idx: t.tree.child(t.idx, q)}
}

// Children returns the four children in NW, NE, SW, SE order.
func (t Tile) Children() [4]Tile {
	return [4]Tile{t.Child(Northwest), t.Child(Northeast), t.Child(Southwest), t.Child(Southeast)}
}

// NorthwestChild returns the (2x, 2y) child.
func (t Tile) NorthwestChild() Tile { return t.Child(Northwest) }

// NortheastChild returns the (2x+1, 2y) child.
func (t Tile) NortheastChild() Tile { return t.Child(Northeast) }

// SouthwestChild returns the (2x, 2y+1) child.
func (t Tile) SouthwestChild() Tile { return t.Child(Southwest) }

// SoutheastChild returns the (2x+1, 2y+1) child.
func (t Tile) SoutheastChild() Tile { return t.Child(Southeast) }

// Boundary returns the geodetic extent, computed once and cached.
func (t Tile) Boundary() geo.Rectangle { return t.tree.boundary(t.idx) }

// NativeBoundary returns the metric extent.
func (t Tile) NativeBoundary() NativeRectangle {
	k := t.Key()
	return t.tree.schema.TileXYToNativeRectangle(k.X, k.Y, k.Level)
}

// String implements fmt.Stringer.
func (t Tile) String() string {
	if !t.Valid() {
		return "<no tile>"
	}
	return t.Key().String()
}
