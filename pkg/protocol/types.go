// Package protocol defines the logical wire messages exchanged between
// clustering nodes: periodic discovery beacons and hierarchical data
// packets, wrapped in a tagged Packet union.
package protocol

// Role is the cluster role a node derives from its color and neighborhood.
type Role int

const (
	RoleUndecided Role = iota
	RoleClusterHead
	RoleMember
	RoleGateway
)

func (r Role) String() string {
	switch r {
	case RoleClusterHead:
		return "cluster-head"
	case RoleMember:
		return "member"
	case RoleGateway:
		return "gateway"
	default:
		return "undecided"
	}
}

// Backbone reports whether the role participates in multi-hop forwarding.
func (r Role) Backbone() bool { return r == RoleClusterHead || r == RoleGateway }

// Sentinel values for optional integer fields.
const (
	// ColorNone marks a node that has not picked a color yet.
	ColorNone = -1
	// ClusterNone marks a node with no cluster attachment.
	ClusterNone = -1
	// NodeNone marks an unset node reference (e.g. Data.NextHopID when any
	// receiver may process the packet).
	NodeNone = -1
)

// PacketKind discriminates the Packet union.
type PacketKind uint8

const (
	KindUnknown PacketKind = iota
	KindBeacon
	KindData
)

func (k PacketKind) String() string {
	switch k {
	case KindBeacon:
		return "beacon"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}
