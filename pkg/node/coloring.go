package node

import (
	"go.uber.org/zap"
)

// recomputeColor runs one step of the self-stabilizing greedy coloring and
// reports whether the color changed. It is deliberately not atomic across
// nodes: two neighbors may transiently hold the same color, and the
// lower-id-wins conflict rule makes the higher-id node yield on its next
// tick.
func (n *Node) recomputeColor() bool {
	used := n.table.UsedColors()

	// Same color as a lower-id neighbor means this node lost the collision.
	conflict := false
	if n.color >= 0 {
		for _, nb := range n.table.Snapshot() {
			if nb.Color == n.color && nb.ID < n.cfg.ID {
				conflict = true
				break
			}
		}
	}

	old := n.color
	switch {
	case n.color < 0 || conflict:
		n.color = smallestFree(used, 0)
	case n.table.Len() > 0 && !used[0] && n.color != 0:
		// Color 0 is the cluster-head color; claim it when free.
		n.color = 0
	case n.color > 0:
		// Downward compaction only. Never raise the color here, otherwise
		// two nodes could chase each other upward forever.
		if cand := smallestFree(used, 1); cand < n.color {
			n.color = cand
		}
	}

	if n.color != old {
		n.log.Info("color changed", zap.Int("from", old), zap.Int("to", n.color))
		return true
	}
	return false
}

// smallestFree returns the smallest integer >= min not present in used.
func smallestFree(used map[int]bool, min int) int {
	c := min
	for used[c] {
		c++
	}
	return c
}
