package dependency

import (
	"reflect"
	"sync"
	"testing"
)

func TestNew(t *testing.T) {
	g := New()
	if g == nil {
		t.Fatal("New() returned nil")
	}
	if g.nodes == nil {
		t.Fatal("nodes map not initialized")
	}
	if len(g.nodes) != 0 {
		t.Fatalf("expected empty nodes map, got %d nodes", len(g.nodes))
	}
}

func TestAddNode(t *testing.T) {
	tests := []struct {
		name     string
		nodes    []Node
		expected int
	}{
		{
			name:     "add single node",
			nodes:    []Node{{ID: ProjectID("webapp"), FriendlyName: "webapp", Kind: KindProject}},
			expected: 1,
		},
		{
			name: "project with children",
			nodes: []Node{
				{ID: ProjectID("webapp"), FriendlyName: "webapp", Kind: KindProject},
				{ID: ChildID("webapp", "main"), FriendlyName: "main", Kind: KindChild, DependsOn: []NodeID{ProjectID("webapp")}},
				{ID: ChildID("webapp", "dev"), FriendlyName: "dev", Kind: KindChild, DependsOn: []NodeID{ProjectID("webapp")}},
			},
			expected: 3,
		},
		{
			name: "replace existing node",
			nodes: []Node{
				{ID: ChildID("webapp", "main"), FriendlyName: "main", Kind: KindChild},
				{ID: ChildID("webapp", "main"), FriendlyName: "main (updated)", Kind: KindChild},
			},
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			for _, n := range tt.nodes {
				g.AddNode(n)
			}
			if g.Len() != tt.expected {
				t.Errorf("expected %d nodes, got %d", tt.expected, g.Len())
			}
		})
	}
}

func TestAddNode_CopiesInput(t *testing.T) {
	g := New()
	deps := []NodeID{ProjectID("webapp")}
	g.AddNode(Node{ID: ChildID("webapp", "main"), DependsOn: deps})

	deps[0] = "mutated"
	if got := g.Dependencies(ChildID("webapp", "main")); got[0] != ProjectID("webapp") {
		t.Errorf("graph shares the caller's slice: %v", got)
	}
}

func TestDependents(t *testing.T) {
	g := New()
	pid := ProjectID("webapp")
	g.AddNode(Node{ID: pid, Kind: KindProject})
	g.AddNode(Node{ID: ChildID("webapp", "main"), Kind: KindChild, DependsOn: []NodeID{pid}})
	g.AddNode(Node{ID: ChildID("webapp", "dev"), Kind: KindChild, DependsOn: []NodeID{pid}})
	g.AddNode(Node{ID: ChildID("other", "main"), Kind: KindChild, DependsOn: []NodeID{ProjectID("other")}})

	want := []NodeID{ChildID("webapp", "dev"), ChildID("webapp", "main")}
	if got := g.Dependents(pid); !reflect.DeepEqual(got, want) {
		t.Errorf("Dependents() = %v, want %v", got, want)
	}
	if got := g.Dependents("nope"); len(got) != 0 {
		t.Errorf("expected no dependents, got %v", got)
	}
	if got := g.Dependencies("nope"); got != nil {
		t.Errorf("expected nil dependencies, got %v", got)
	}
}

func TestTopology_Rebuild(t *testing.T) {
	topo := NewTopology()

	topo.TopologyChanged("webapp", []string{"main", "feature%2Fx"})
	topo.TopologyChanged("api", []string{"main"})

	if got, want := topo.Children("webapp"), []string{"feature%2Fx", "main"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Children() = %v, want %v", got, want)
	}

	topo.TopologyChanged("webapp", []string{"main"})
	if got, want := topo.Children("webapp"), []string{"main"}; !reflect.DeepEqual(got, want) {
		t.Errorf("after rebuild Children() = %v, want %v", got, want)
	}
	if got, want := topo.Children("api"), []string{"main"}; !reflect.DeepEqual(got, want) {
		t.Errorf("other project changed: %v, want %v", got, want)
	}
	if topo.Len() != 4 {
		t.Errorf("expected 4 nodes, got %d", topo.Len())
	}

	topo.RemoveProject("webapp")
	if got := topo.Children("webapp"); len(got) != 0 {
		t.Errorf("expected no children after removal, got %v", got)
	}
	if topo.Len() != 2 {
		t.Errorf("expected 2 nodes, got %d", topo.Len())
	}
}

func TestTopology_Concurrent(t *testing.T) {
	topo := NewTopology()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				topo.TopologyChanged("webapp", []string{"main", "dev"})
				_ = topo.Children("webapp")
			}
		}()
	}
	wg.Wait()

	if got := topo.Children("webapp"); len(got) != 2 {
		t.Errorf("expected 2 children, got %v", got)
	}
}
