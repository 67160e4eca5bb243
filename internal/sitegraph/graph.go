// Package sitegraph crawls a site into a same-host link graph and selects the
// key pages worth auditing.
package sitegraph

import (
	"slices"
	"sort"
	"sync"
)

// Node is one discovered URL. Nodes returned by Graph are copies.
type Node struct {
	URL         string
	Depth       int
	Order       int
	Title       string
	AnchorTexts []string
	Outgoing    []string
	Incoming    []string
	Fetched     bool
	Failed      bool
}

// Graph is an immutable link graph rooted at Seed.
type Graph struct {
	seed  string
	nodes map[string]*Node
	order []string
}

// Seed returns the normalized seed URL.
func (g *Graph) Seed() string { return g.seed }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.order) }

// Node returns a copy of the node for url.
func (g *Graph) Node(url string) (Node, bool) {
	n, ok := g.nodes[url]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Nodes returns copies of every node in discovery order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, u := range g.order {
		out = append(out, g.nodes[u].clone())
	}
	return out
}

func (n *Node) clone() Node {
	cp := *n
	cp.AnchorTexts = append([]string(nil), n.AnchorTexts...)
	cp.Outgoing = append([]string(nil), n.Outgoing...)
	cp.Incoming = append([]string(nil), n.Incoming...)
	return cp
}

// Builder accumulates a graph. It is safe for concurrent use.
type Builder struct {
	mu    sync.Mutex
	seed  string
	nodes map[string]*Node
}

// NewBuilder starts a graph at the normalized seed URL.
func NewBuilder(seed string) *Builder {
	b := &Builder{seed: seed, nodes: map[string]*Node{}}
	b.node(seed)
	return b
}

func (b *Builder) node(url string) *Node {
	n, ok := b.nodes[url]
	if !ok {
		n = &Node{URL: url}
		b.nodes[url] = n
	}
	return n
}

// AddLink records an edge in document order and reports whether to was new.
func (b *Builder) AddLink(from, to, anchor string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, known := b.nodes[to]
	src := b.node(from)
	dst := b.node(to)
	if from == to {
		return !known
	}
	if !slices.Contains(src.Outgoing, to) {
		src.Outgoing = append(src.Outgoing, to)
	}
	if !slices.Contains(dst.Incoming, from) {
		dst.Incoming = append(dst.Incoming, from)
	}
	if anchor != "" && !slices.Contains(dst.AnchorTexts, anchor) {
		dst.AnchorTexts = append(dst.AnchorTexts, anchor)
	}
	return !known
}

// SetTitle stores the first non-empty title seen for url.
func (b *Builder) SetTitle(url, title string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := b.node(url); n.Title == "" {
		n.Title = title
	}
}

// MarkFetched records a successful fetch of url.
func (b *Builder) MarkFetched(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.node(url)
	n.Fetched = true
	n.Failed = false
}

// MarkFailed records a failed fetch of url.
func (b *Builder) MarkFailed(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := b.node(url); !n.Fetched {
		n.Failed = true
	}
}

// Fetched reports whether url was fetched successfully.
func (b *Builder) Fetched(url string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.nodes[url]
	return ok && n.Fetched
}

// Build freezes the graph. Discovery order is breadth-first from the seed
// following outgoing links in document order, so it does not depend on the
// order in which concurrent fetches completed.
func (b *Builder) Build() *Graph {
	b.mu.Lock()
	defer b.mu.Unlock()

	g := &Graph{seed: b.seed, nodes: make(map[string]*Node, len(b.nodes))}
	for u, n := range b.nodes {
		cp := n.clone()
		g.nodes[u] = &cp
	}

	visited := map[string]bool{b.seed: true}
	queue := []string{b.seed}
	g.nodes[b.seed].Depth = 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		n := g.nodes[cur]
		n.Order = len(g.order)
		g.order = append(g.order, cur)
		for _, next := range n.Outgoing {
			if visited[next] {
				continue
			}
			visited[next] = true
			g.nodes[next].Depth = n.Depth + 1
			queue = append(queue, next)
		}
	}

	var orphans []string
	for u := range g.nodes {
		if !visited[u] {
			orphans = append(orphans, u)
		}
	}
	sort.Strings(orphans)
	for _, u := range orphans {
		n := g.nodes[u]
		n.Order = len(g.order)
		n.Depth = -1
		g.order = append(g.order, u)
	}
	return g
}
