package node

import (
	"testing"
	"time"

	"github.com/fevzifiratt/ceng797-term-project/pkg/clock"
	"github.com/fevzifiratt/ceng797-term-project/pkg/observability"
	"github.com/fevzifiratt/ceng797-term-project/pkg/protocol"
)

func newColoringNode(t *testing.T, id int) *Node {
	t.Helper()
	clk := clock.NewVirtual(time.Unix(0, 0))
	return newUnitNode(t, testConfig(id), &captureTransport{}, clk, observability.Nop{})
}

func TestUncoloredAloneTakesZero(t *testing.T) {
	n := newColoringNode(t, 3)
	if changed := n.recomputeColor(); !changed || n.color != 0 {
		t.Fatalf("color = %d changed=%v", n.color, changed)
	}
}

func TestUncoloredPicksSmallestFree(t *testing.T) {
	n := newColoringNode(t, 3)
	addNeighbor(n, 1, 0, protocol.RoleClusterHead, 1, "a")
	addNeighbor(n, 2, 1, protocol.RoleMember, 1, "b")
	n.recomputeColor()
	if n.color != 2 {
		t.Fatalf("color = %d, want 2", n.color)
	}
}

func TestConflictLowerIDWins(t *testing.T) {
	n := newColoringNode(t, 5)
	setState(n, 2, protocol.RoleUndecided, protocol.ClusterNone)
	addNeighbor(n, 3, 2, protocol.RoleMember, 0, "a")
	addNeighbor(n, 7, 0, protocol.RoleClusterHead, 7, "b")

	n.recomputeColor()
	if n.color != 1 {
		t.Fatalf("conflict repair picked %d, want 1", n.color)
	}
}

func TestConflictWithHigherIDKept(t *testing.T) {
	n := newColoringNode(t, 5)
	setState(n, 1, protocol.RoleUndecided, protocol.ClusterNone)
	addNeighbor(n, 7, 1, protocol.RoleMember, 0, "a")
	addNeighbor(n, 1, 0, protocol.RoleClusterHead, 1, "b")

	// Node 7 holds the same color, but as the higher id it is the one that
	// must yield. Node 5 keeps its color: no repair, promotion blocked by
	// the color-0 neighbor, and the smallest free color above zero is 2.
	if changed := n.recomputeColor(); changed {
		t.Fatalf("lower id yielded: color = %d", n.color)
	}
	if n.color != 1 {
		t.Fatalf("color = %d, want 1", n.color)
	}
}

func TestPromotionToHeadColorWhenFree(t *testing.T) {
	n := newColoringNode(t, 5)
	setState(n, 3, protocol.RoleUndecided, protocol.ClusterNone)
	addNeighbor(n, 2, 1, protocol.RoleMember, 0, "a")

	n.recomputeColor()
	if n.color != 0 {
		t.Fatalf("no promotion: color = %d", n.color)
	}
}

func TestNoPromotionWhileHeadColorTaken(t *testing.T) {
	n := newColoringNode(t, 5)
	setState(n, 1, protocol.RoleMember, 2)
	addNeighbor(n, 2, 0, protocol.RoleClusterHead, 2, "a")

	if changed := n.recomputeColor(); changed {
		t.Fatalf("color moved to %d", n.color)
	}
}

func TestNoPromotionOnEmptyTable(t *testing.T) {
	// An isolated node keeps whatever positive color it holds; claiming the
	// head color without any evidence of neighbors would create spurious
	// single-node clusters on every transient partition.
	n := newColoringNode(t, 5)
	setState(n, 1, protocol.RoleUndecided, protocol.ClusterNone)
	if changed := n.recomputeColor(); changed {
		t.Fatalf("isolated node moved to %d", n.color)
	}
}

func TestDownwardCompaction(t *testing.T) {
	n := newColoringNode(t, 5)
	setState(n, 4, protocol.RoleUndecided, protocol.ClusterNone)
	addNeighbor(n, 1, 0, protocol.RoleClusterHead, 1, "a")
	addNeighbor(n, 2, 1, protocol.RoleMember, 1, "b")

	n.recomputeColor()
	if n.color != 2 {
		t.Fatalf("compaction picked %d, want 2", n.color)
	}
}

func TestCompactionNeverRaises(t *testing.T) {
	n := newColoringNode(t, 5)
	setState(n, 1, protocol.RoleMember, 2)
	addNeighbor(n, 2, 0, protocol.RoleClusterHead, 2, "a")
	addNeighbor(n, 7, 1, protocol.RoleMember, 2, "b") // higher id, not a conflict

	// Smallest free color above zero is 2, which is above the current
	// color; the node must not chase it upward.
	if changed := n.recomputeColor(); changed {
		t.Fatalf("color raised to %d", n.color)
	}
	if n.color != 1 {
		t.Fatalf("color = %d, want 1", n.color)
	}
}
