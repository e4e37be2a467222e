// internal/dependency/graph.go
package dependency

import (
	"sort"
	"sync"
)

// NodeID is the unique identifier for a node inside a dependency graph.
// Projects use "project:<name>", children "child:<project>/<encoded name>".
type NodeID string

// NodeKind categorises nodes.
type NodeKind int

const (
	KindUnknown NodeKind = iota
	KindProject
	KindChild
)

// Node is a project or a child together with its dependency list. A child
// depends on the project that owns it.
type Node struct {
	ID           NodeID
	FriendlyName string
	Kind         NodeKind
	DependsOn    []NodeID
}

// ProjectID returns the node ID of a project.
func ProjectID(project string) NodeID {
	return NodeID("project:" + project)
}

// ChildID returns the node ID of a child.
func ChildID(project, child string) NodeID {
	return NodeID("child:" + project + "/" + child)
}

// Graph is a very small helper to answer dependency queries. It is *not*
// thread-safe by itself; Topology wraps it for concurrent use.
type Graph struct {
	nodes map[NodeID]*Node
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[NodeID]*Node)}
}

// AddNode adds (or replaces) a node in the graph.
func (g *Graph) AddNode(n Node) {
	if g.nodes == nil {
		g.nodes = make(map[NodeID]*Node)
	}
	// Copy to avoid external mutations
	copied := n
	copied.DependsOn = append([]NodeID(nil), n.DependsOn...)
	g.nodes[n.ID] = &copied
}

// RemoveNode deletes a node. Edges pointing at it are left dangling.
func (g *Graph) RemoveNode(id NodeID) {
	delete(g.nodes, id)
}

// Get returns a pointer to the stored node or nil if it does not exist.
func (g *Graph) Get(id NodeID) *Node {
	return g.nodes[id]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Dependencies returns a slice of immediate dependency IDs for the given node.
func (g *Graph) Dependencies(id NodeID) []NodeID {
	if n, ok := g.nodes[id]; ok {
		depsCopy := make([]NodeID, len(n.DependsOn))
		copy(depsCopy, n.DependsOn)
		return depsCopy
	}
	return nil
}

// Dependents returns all node IDs that have a direct dependency on the given
// node, sorted.
func (g *Graph) Dependents(id NodeID) []NodeID {
	var res []NodeID
	for _, n := range g.nodes {
		for _, dep := range n.DependsOn {
			if dep == id {
				res = append(res, n.ID)
				break
			}
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Topology keeps a graph of projects and their children up to date from
// topology notifications.
type Topology struct {
	mu    sync.RWMutex
	graph *Graph
}

// NewTopology creates an empty topology.
func NewTopology() *Topology {
	return &Topology{graph: New()}
}

// TopologyChanged replaces the children of project with children.
func (t *Topology) TopologyChanged(project string, children []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pid := ProjectID(project)
	for _, id := range t.graph.Dependents(pid) {
		t.graph.RemoveNode(id)
	}
	t.graph.AddNode(Node{ID: pid, FriendlyName: project, Kind: KindProject})
	for _, child := range children {
		t.graph.AddNode(Node{
			ID:           ChildID(project, child),
			FriendlyName: child,
			Kind:         KindChild,
			DependsOn:    []NodeID{pid},
		})
	}
}

// RemoveProject drops a project and its children.
func (t *Topology) RemoveProject(project string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pid := ProjectID(project)
	for _, id := range t.graph.Dependents(pid) {
		t.graph.RemoveNode(id)
	}
	t.graph.RemoveNode(pid)
}

// Children returns the child names of project, sorted.
func (t *Topology) Children(project string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var names []string
	for _, id := range t.graph.Dependents(ProjectID(project)) {
		if n := t.graph.Get(id); n != nil {
			names = append(names, n.FriendlyName)
		}
	}
	sort.Strings(names)
	return names
}

// Len returns the number of nodes in the graph.
func (t *Topology) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.graph.Len()
}
