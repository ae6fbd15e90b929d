// Package identity assigns stable identities and current positions to the
// nodes of an observed tree, and reconciles consecutive observations.
package identity

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/sarchlab/framescope/idgen"
	"github.com/sarchlab/framescope/tree"
)

// IndexedNode is a node annotated with the identity and position it had in
// one observation pass.
type IndexedNode struct {
	Node        tree.Node
	Identity    idgen.ID
	Position    tree.Position
	IsComposite bool
	Children    []*IndexedNode
}

// PassResult is the outcome of one observation pass.
type PassResult struct {
	// NewNodes lists the nodes seen for the first time, in walk order.
	NewNodes []*IndexedNode

	// RemovedNodes lists the nodes that are no longer reachable, with the
	// identity and position they were last seen with, in identity order.
	RemovedNodes []*IndexedNode

	// Forest is the walked tree.
	Forest []*IndexedNode
}

// Index tracks node identities across observation passes. Identities are
// allocated once per raw node and never reused, even after the node is
// removed.
type Index struct {
	forest tree.Forest
	ids    idgen.Generator
	log    zerolog.Logger

	entries map[tree.Node]*IndexedNode
	byID    map[idgen.ID]*IndexedNode
	indexed []*IndexedNode
}

// New creates an Index over forest. A nil generator gets a fresh sequential
// generator.
func New(forest tree.Forest, ids idgen.Generator, logger zerolog.Logger) *Index {
	if forest == nil {
		panic("identity: forest must not be nil")
	}

	if ids == nil {
		ids = idgen.New()
	}

	return &Index{
		forest:  forest,
		ids:     ids,
		log:     logger,
		entries: make(map[tree.Node]*IndexedNode),
		byID:    make(map[idgen.ID]*IndexedNode),
	}
}

type pass struct {
	index   *Index
	visited map[tree.Node]*IndexedNode
	result  PassResult
}

// Index walks the current tree, top-down, and reconciles it with the
// previous pass.
func (i *Index) Index() PassResult {
	p := &pass{
		index:   i,
		visited: make(map[tree.Node]*IndexedNode, len(i.entries)),
	}

	p.result.Forest = p.walkLevel(i.forest.Roots(), nil)
	p.collectRemoved()

	i.entries = p.visited
	i.byID = make(map[idgen.ID]*IndexedNode, len(p.visited))
	for _, n := range p.visited {
		i.byID[n.Identity] = n
	}
	i.indexed = p.result.Forest

	i.log.Debug().
		Int("new", len(p.result.NewNodes)).
		Int("removed", len(p.result.RemovedNodes)).
		Int("tracked", len(i.entries)).
		Msg("index pass")

	return p.result
}

func (p *pass) walkLevel(nodes []tree.Node, parent tree.Position) []*IndexedNode {
	level := make([]*IndexedNode, 0, len(nodes))

	for _, n := range nodes {
		if n == nil {
			continue
		}

		position := parent.Child(len(level))

		if first, dup := p.visited[n]; dup {
			p.index.log.Warn().
				Stringer("identity", first.Identity).
				Stringer("first", first.Position).
				Stringer("again", position).
				Msg("node reachable twice in one walk, keeping first position")

			continue
		}

		indexed := p.visit(n, position)
		level = append(level, indexed)
		indexed.Children = p.walkLevel(p.index.forest.Children(n), position)
	}

	return level
}

func (p *pass) visit(n tree.Node, position tree.Position) *IndexedNode {
	indexed := &IndexedNode{
		Node:        n,
		Position:    position,
		IsComposite: p.index.forest.IsComposite(n),
	}

	if previous, known := p.index.entries[n]; known {
		indexed.Identity = previous.Identity
	} else {
		indexed.Identity = p.index.ids.Generate()
		p.result.NewNodes = append(p.result.NewNodes, indexed)
	}

	p.visited[n] = indexed

	return indexed
}

func (p *pass) collectRemoved() {
	for n, previous := range p.index.entries {
		if _, still := p.visited[n]; !still {
			p.result.RemovedNodes = append(p.result.RemovedNodes, previous)
		}
	}

	sort.Slice(p.result.RemovedNodes, func(a, b int) bool {
		return p.result.RemovedNodes[a].Identity < p.result.RemovedNodes[b].Identity
	})
}

// Contains tells whether n was reachable in the last pass.
func (i *Index) Contains(n tree.Node) bool {
	_, ok := i.entries[n]
	return ok
}

// IdentityOf returns the identity of n.
func (i *Index) IdentityOf(n tree.Node) (idgen.ID, bool) {
	e, ok := i.entries[n]
	if !ok {
		return 0, false
	}

	return e.Identity, true
}

// PositionOf returns the position n had in the last pass.
func (i *Index) PositionOf(n tree.Node) (tree.Position, bool) {
	e, ok := i.entries[n]
	if !ok {
		return nil, false
	}

	return e.Position.Clone(), true
}

// Lookup returns the indexed entry of n.
func (i *Index) Lookup(n tree.Node) (*IndexedNode, bool) {
	e, ok := i.entries[n]
	return e, ok
}

// LookupID returns the indexed entry that carries identity id.
func (i *Index) LookupID(id idgen.ID) (*IndexedNode, bool) {
	e, ok := i.byID[id]
	return e, ok
}

// NodeOf returns the raw node that carries identity id.
func (i *Index) NodeOf(id idgen.ID) (tree.Node, bool) {
	e, ok := i.byID[id]
	if !ok {
		return nil, false
	}

	return e.Node, true
}

// Forest returns the forest of the last pass.
func (i *Index) Forest() []*IndexedNode {
	return i.indexed
}

// Len returns the number of tracked nodes.
func (i *Index) Len() int {
	return len(i.entries)
}

// Teardown forgets every tracked node. Identities handed out before are
// still never reused by this index.
func (i *Index) Teardown() {
	i.entries = make(map[tree.Node]*IndexedNode)
	i.byID = make(map[idgen.ID]*IndexedNode)
	i.indexed = nil
}
