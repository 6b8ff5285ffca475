package node

import (
	"go.uber.org/zap"

	"github.com/fevzifiratt/ceng797-term-project/pkg/protocol"
)

// recomputeRole derives role and cluster attachment from the current color
// and neighbor table. It is idempotent and runs after every color change,
// beacon and prune event.
func (n *Node) recomputeRole() {
	oldRole, oldCluster := n.role, n.clusterID

	switch {
	case n.color < 0:
		n.role = protocol.RoleUndecided
		n.clusterID = protocol.ClusterNone
	case n.color == 0:
		n.role = protocol.RoleClusterHead
		n.clusterID = n.cfg.ID
	default:
		head := n.table.SmallestHeadID()
		if head == protocol.NodeNone {
			// No directly heard cluster head: a node never claims a cluster
			// it cannot verify. Demote fully and recolor from scratch.
			n.role = protocol.RoleUndecided
			n.clusterID = protocol.ClusterNone
			n.color = protocol.ColorNone
		} else {
			n.clusterID = head
			if n.table.HasForeignCluster(n.clusterID) {
				n.role = protocol.RoleGateway
			} else {
				n.role = protocol.RoleMember
			}
		}
	}

	if n.role != oldRole {
		n.log.Info("role changed",
			zap.Stringer("from", oldRole),
			zap.Stringer("to", n.role),
			zap.Int("color", n.color),
			zap.Int("cluster", n.clusterID))
		n.sink.RoleChanged(oldRole, n.role)
	} else if n.clusterID != oldCluster {
		n.log.Debug("cluster attachment changed",
			zap.Int("from", oldCluster), zap.Int("to", n.clusterID))
		n.sink.StateUpdated(n.color, n.clusterID)
	}
}
