package node

import (
	"sort"
	"time"

	"github.com/fevzifiratt/ceng797-term-project/pkg/protocol"
)

// Neighbor is the last-announced state of a directly heard peer. Entries
// are overwritten wholesale on each beacon, never merged field by field.
type Neighbor struct {
	ID        int
	Color     int
	Role      protocol.Role
	ClusterID int
	// Addr is the transport-level reachability handle learned from the
	// beacon's delivery metadata, not self-declared.
	Addr      string
	LastHeard time.Time
}

// Table holds recently heard peers keyed by id. It is owned by exactly one
// node and mutated only from that node's event processing, so it needs no
// locking.
type Table struct {
	entries map[int]Neighbor
}

func NewTable() *Table { return &Table{entries: make(map[int]Neighbor)} }

// Upsert inserts or overwrites the entry for n.ID.
func (t *Table) Upsert(n Neighbor) { t.entries[n.ID] = n }

func (t *Table) Get(id int) (Neighbor, bool) {
	n, ok := t.entries[id]
	return n, ok
}

// ByAddr resolves the neighbor a frame arrived from.
func (t *Table) ByAddr(addr string) (Neighbor, bool) {
	for _, n := range t.entries {
		if n.Addr == addr {
			return n, true
		}
	}
	return Neighbor{}, false
}

func (t *Table) Len() int { return len(t.entries) }

// Prune removes every entry not heard from within timeout and reports
// whether anything was removed. Pruning is the only path by which a node
// forgets a neighbor.
func (t *Table) Prune(now time.Time, timeout time.Duration) bool {
	removed := false
	for id, n := range t.entries {
		if now.Sub(n.LastHeard) > timeout {
			delete(t.entries, id)
			removed = true
		}
	}
	return removed
}

// UsedColors returns the set of non-negative colors among current
// neighbors.
func (t *Table) UsedColors() map[int]bool {
	used := make(map[int]bool, len(t.entries))
	for _, n := range t.entries {
		if n.Color >= 0 {
			used[n.Color] = true
		}
	}
	return used
}

// SmallestHeadID returns the smallest id among direct color-0 neighbors,
// or protocol.NodeNone when none is heard.
func (t *Table) SmallestHeadID() int {
	head := protocol.NodeNone
	for id, n := range t.entries {
		if n.Color != 0 {
			continue
		}
		if head == protocol.NodeNone || id < head {
			head = id
		}
	}
	return head
}

// HasForeignCluster reports whether some neighbor announces a defined
// clusterId different from own.
func (t *Table) HasForeignCluster(own int) bool {
	for _, n := range t.entries {
		if n.ClusterID != protocol.ClusterNone && n.ClusterID != own {
			return true
		}
	}
	return false
}

// Gateways returns all neighbors with role gateway, ordered by id.
func (t *Table) Gateways() []Neighbor {
	var out []Neighbor
	for _, n := range t.entries {
		if n.Role == protocol.RoleGateway {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Snapshot returns all entries ordered by id, for deterministic iteration.
func (t *Table) Snapshot() []Neighbor {
	out := make([]Neighbor, 0, len(t.entries))
	for _, n := range t.entries {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
