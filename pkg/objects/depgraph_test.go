package objects

import "testing"

func TestDependencyGraphEdges(t *testing.T) {
	g := NewDependencyGraph()
	ht := newHostType()
	st := newServiceType()

	host := ht.Instantiate()
	svc1 := st.Instantiate()
	svc2 := st.Instantiate()

	g.AddDependency(svc1, host)
	g.AddDependency(svc2, host)

	parents := g.Parents(host)
	if len(parents) != 2 {
		t.Fatalf("expected 2 dependents, got %d", len(parents))
	}

	g.RemoveDependency(svc1, host)
	parents = g.Parents(host)
	if len(parents) != 1 || parents[0] != svc2 {
		t.Fatalf("unexpected dependents after removal: %v", parents)
	}
}

func TestDependencyGraphRefCounting(t *testing.T) {
	g := NewDependencyGraph()
	ht := newHostType()
	host := ht.Instantiate()
	svc := newServiceType().Instantiate()

	g.AddDependency(svc, host)
	g.AddDependency(svc, host)

	g.RemoveDependency(svc, host)
	if len(g.Parents(host)) != 1 {
		t.Fatal("edge dropped while a reference remained")
	}

	g.RemoveDependency(svc, host)
	if len(g.Parents(host)) != 0 {
		t.Fatal("edge persisted after final removal")
	}
}

func TestDependencyGraphChildren(t *testing.T) {
	g := NewDependencyGraph()
	host := newHostType().Instantiate()
	svc := newServiceType().Instantiate()

	g.AddDependency(svc, host)

	children := g.Children(svc)
	if len(children) != 1 || children[0] != host {
		t.Fatalf("unexpected dependencies: %v", children)
	}
}
