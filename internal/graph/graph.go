package graph

import "github.com/kingrea/apptree/internal/extension"

// Node wraps one declaration together with the children attached to it.
type Node struct {
	decl        extension.Declaration
	attachments *Attachments
}

func newNode(decl extension.Declaration) *Node {
	return &Node{
		decl:        decl.Clone(),
		attachments: &Attachments{},
	}
}

// ID returns the declaration id.
func (n *Node) ID() string {
	return n.decl.ID
}

// Declaration returns a copy of the wrapped declaration.
func (n *Node) Declaration() extension.Declaration {
	return n.decl.Clone()
}

// Attachments returns the node's children grouped by input slot.
func (n *Node) Attachments() *Attachments {
	return n.attachments
}

// Attachments is an insertion-ordered multimap from input name to children.
// Inputs keep the order in which they were first attached to; children keep
// declaration order within an input.
type Attachments struct {
	inputs []string
	nodes  map[string][]*Node
}

// Len returns the number of distinct inputs.
func (a *Attachments) Len() int {
	if a == nil {
		return 0
	}
	return len(a.inputs)
}

// Inputs returns the input names in first-seen order.
func (a *Attachments) Inputs() []string {
	if a == nil || len(a.inputs) == 0 {
		return nil
	}
	out := make([]string, len(a.inputs))
	copy(out, a.inputs)
	return out
}

// Get returns the children attached at input, in declaration order.
func (a *Attachments) Get(input string) []*Node {
	if a == nil {
		return nil
	}
	children := a.nodes[input]
	if len(children) == 0 {
		return nil
	}
	out := make([]*Node, len(children))
	copy(out, children)
	return out
}

func (a *Attachments) add(input string, child *Node) {
	if a.nodes == nil {
		a.nodes = make(map[string][]*Node)
	}
	if _, ok := a.nodes[input]; !ok {
		a.inputs = append(a.inputs, input)
	}
	a.nodes[input] = append(a.nodes[input], child)
}

// Graph is the result of a successful Resolve call.
type Graph struct {
	root    *Node
	nodes   map[string]*Node
	order   []string
	orphans []*Node
	orphan  map[string]bool
}

// Root returns the node whose id matched the requested root id.
func (g *Graph) Root() *Node {
	return g.root
}

// Node looks up any node, reachable or not, by id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// IDs returns every declared id in input order.
func (g *Graph) IDs() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Nodes returns every node in input order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Orphans returns the nodes not connected to the root, in input order.
func (g *Graph) Orphans() []*Node {
	if len(g.orphans) == 0 {
		return nil
	}
	out := make([]*Node, len(g.orphans))
	copy(out, g.orphans)
	return out
}

// IsOrphan reports whether id names a node outside the root tree.
func (g *Graph) IsOrphan(id string) bool {
	return g.orphan[id]
}

// Len returns the number of declared nodes.
func (g *Graph) Len() int {
	return len(g.order)
}
