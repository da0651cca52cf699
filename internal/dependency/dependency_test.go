package dependency

import (
	"testing"
	"time"

	"github.com/oceanplexian/vigilo/internal/clock"
	"github.com/oceanplexian/vigilo/internal/logging"
	"github.com/oceanplexian/vigilo/internal/objects"
)

func testGraph() (*Graph, *clock.Manual) {
	clk := clock.NewManual(time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC))
	return NewGraph(clk, logging.Discard()), clk
}

func TestServiceUnreachableWhenHostHardDown(t *testing.T) {
	g, _ := testGraph()
	host := objects.NewHost("db1")
	svc := objects.NewService(host, "mysql")

	host.StateRaw = objects.StateCritical
	host.StateType = objects.StateTypeHard

	if g.IsReachable(svc, TypeState) {
		t.Error("service should be unreachable with host hard-down")
	}
	if g.IsReachable(svc, TypeNotification) {
		t.Error("service notifications should be unreachable with host hard-down")
	}
	// Execution reachability does not consider the implicit host edge.
	if !g.IsReachable(svc, TypeCheckExecution) {
		t.Error("execution reachability should ignore the host state")
	}
}

func TestServiceReachableWhenHostSoftDown(t *testing.T) {
	g, _ := testGraph()
	host := objects.NewHost("db1")
	svc := objects.NewService(host, "mysql")

	host.StateRaw = objects.StateCritical
	host.StateType = objects.StateTypeSoft

	if !g.IsReachable(svc, TypeNotification) {
		t.Error("soft-down host must leave the service reachable")
	}
}

func TestMemberParentChain(t *testing.T) {
	g, _ := testGraph()
	router := objects.NewHost("router")
	sw := objects.NewHost("switch")
	web := objects.NewHost("web")
	g.AddMember(router, sw)
	g.AddMember(sw, web)

	if !g.IsReachable(web, TypeState) {
		t.Fatal("everything up, web should be reachable")
	}

	// A dependency on the router makes the whole chain unreachable when the
	// router goes down.
	g.AddDependency(&Dependency{Parent: router, Child: sw, Kind: TypeState})
	router.StateRaw = objects.StateCritical
	router.StateType = objects.StateTypeHard

	if g.IsReachable(web, TypeState) {
		t.Error("web should be unreachable through the down router")
	}
}

func TestDependencyPeriodGate(t *testing.T) {
	g, clk := testGraph()
	parent := objects.NewHost("backup")
	child := objects.NewHost("app")
	parent.StateRaw = objects.StateCritical
	parent.StateType = objects.StateTypeHard

	// Dependency only applies weekdays 09:00-17:00.
	tp := objects.NewTimePeriod("business")
	if err := tp.SetDay(time.Monday, "09:00-17:00"); err != nil {
		t.Fatal(err)
	}
	g.AddDependency(&Dependency{Parent: parent, Child: child, Kind: TypeNotification, Period: tp})

	// Monday noon: inside the period, dependency applies, parent down.
	if g.IsReachable(child, TypeNotification) {
		t.Error("should be unreachable inside the dependency period")
	}

	// Monday 20:00: outside the period, dependency suspended.
	clk.Set(time.Date(2024, 3, 4, 20, 0, 0, 0, time.UTC))
	if !g.IsReachable(child, TypeNotification) {
		t.Error("should be reachable outside the dependency period")
	}
}

func TestIgnoreSoftStates(t *testing.T) {
	g, _ := testGraph()
	parent := objects.NewHost("gw")
	child := objects.NewHost("app")

	parent.StateRaw = objects.StateCritical
	parent.StateType = objects.StateTypeSoft
	parent.LastHardStateRaw = objects.StateOK

	g.AddDependency(&Dependency{Parent: parent, Child: child, Kind: TypeState, IgnoreSoftStates: true})
	if !g.IsReachable(child, TypeState) {
		t.Error("soft state should be ignored, last hard state is OK")
	}
}

func TestRecursionBounded(t *testing.T) {
	g, _ := testGraph()

	// Build a cycle; the query must terminate and report unreachable.
	a := objects.NewHost("a")
	b := objects.NewHost("b")
	g.AddMember(a, b)
	g.AddMember(b, a)

	done := make(chan bool, 1)
	go func() { done <- g.IsReachable(a, TypeState) }()
	select {
	case reachable := <-done:
		if reachable {
			t.Error("cyclic graph should resolve to unreachable at the depth bound")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reachability query did not terminate")
	}
}

func TestAllChildrenTransitive(t *testing.T) {
	g, _ := testGraph()
	root := objects.NewHost("root")
	mid := objects.NewHost("mid")
	leaf := objects.NewHost("leaf")
	g.AddMember(root, mid)
	g.AddMember(mid, leaf)

	children := g.AllChildren(root)
	if len(children) != 2 {
		t.Fatalf("expected 2 transitive children, got %d", len(children))
	}
}

func TestRemoveCheckable(t *testing.T) {
	g, _ := testGraph()
	parent := objects.NewHost("p")
	child := objects.NewHost("c")
	g.AddMember(parent, child)
	g.AddDependency(&Dependency{Parent: parent, Child: child, Kind: TypeState})

	parent.StateRaw = objects.StateCritical
	parent.StateType = objects.StateTypeHard
	if g.IsReachable(child, TypeState) {
		t.Fatal("precondition: child unreachable")
	}

	g.RemoveCheckable(parent)
	if !g.IsReachable(child, TypeState) {
		t.Error("child should be reachable after the parent is removed")
	}
	if len(g.Parents(child)) != 0 {
		t.Error("member edge should be gone")
	}
}
