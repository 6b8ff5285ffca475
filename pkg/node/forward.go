package node

import (
	"time"

	"go.uber.org/zap"

	"github.com/fevzifiratt/ceng797-term-project/pkg/protocol"
)

// seenKey identifies a data packet for duplicate suppression.
type seenKey struct {
	src int
	seq int
}

// handleDataTick originates one data packet towards a random destination.
func (n *Node) handleDataTick() {
	n.dataTimer = n.clk.AfterFunc(n.cfg.DataInterval+n.randDur(n.cfg.DataJitter), n.tick(evDataTick))
	if n.cfg.NumHosts < 2 {
		return
	}
	dest := n.rng.Intn(n.cfg.NumHosts - 1)
	if dest >= n.cfg.ID {
		dest++
	}
	n.seq++
	d := protocol.Data{
		SrcID:         n.cfg.ID,
		SeqNum:        n.seq,
		TTL:           n.cfg.InitialTTL,
		DestID:        dest,
		NextHopID:     protocol.NodeNone,
		CreatedUnixMs: n.clk.Now().UnixMilli(),
		Payload:       []byte("gcmesh-probe"),
	}
	// Mark own packets seen so echoes are suppressed (except the gateway
	// return case handled on receive).
	n.seen[seenKey{d.SrcID, d.SeqNum}] = struct{}{}
	if n.sendData(d) {
		n.sink.DataSent()
	}
}

// sendData applies the send-side routing decision for a packet this node
// originates. Reports whether at least one transmission went out.
func (n *Node) sendData(d protocol.Data) bool {
	switch n.role {
	case protocol.RoleMember, protocol.RoleGateway:
		return n.sendUplink(d)
	case protocol.RoleClusterHead:
		return n.sendFromHead(d)
	default:
		n.log.Debug("drop: undecided node cannot send",
			zap.Int("dest", d.DestID), zap.Int("seq", d.SeqNum))
		return false
	}
}

// sendUplink unicasts to this node's cluster head. Orphaned packets are
// dropped with no retry.
func (n *Node) sendUplink(d protocol.Data) bool {
	if n.clusterID == protocol.ClusterNone {
		n.log.Debug("drop: orphaned, no cluster", zap.Int("seq", d.SeqNum))
		return false
	}
	head, ok := n.table.Get(n.clusterID)
	if !ok {
		n.log.Debug("drop: orphaned, cluster head not in table",
			zap.Int("cluster", n.clusterID), zap.Int("seq", d.SeqNum))
		return false
	}
	d.NextHopID = head.ID
	return n.transmit(d, head.Addr)
}

// sendFromHead routes a packet as a cluster head: direct delivery when the
// destination is a neighbor, otherwise via a validated cached gateway,
// otherwise a jittered flood to every known gateway.
func (n *Node) sendFromHead(d protocol.Data) bool {
	if nb, ok := n.table.Get(d.DestID); ok {
		d.NextHopID = nb.ID
		return n.transmit(d, nb.Addr)
	}
	if gw, ok := n.routes[d.DestID]; ok {
		if nb, live := n.table.Get(gw); live && nb.Role == protocol.RoleGateway {
			d.NextHopID = nb.ID
			return n.transmit(d, nb.Addr)
		}
		// The hint went stale; evict and fall through to flooding.
		delete(n.routes, d.DestID)
		n.log.Debug("evicted stale backbone route",
			zap.Int("dest", d.DestID), zap.Int("gateway", gw))
	}
	gws := n.table.Gateways()
	if len(gws) == 0 {
		n.log.Debug("drop: no gateways to flood",
			zap.Int("dest", d.DestID), zap.Int("seq", d.SeqNum))
		return false
	}
	for _, nb := range gws {
		dup := d
		dup.NextHopID = nb.ID
		n.deferTransmit(dup, nb.Addr)
	}
	return true
}

// handleData runs the receive pipeline for an inbound data packet.
func (n *Node) handleData(d protocol.Data, fromAddr string) {
	now := n.clk.Now()
	from, fromKnown := n.table.ByAddr(fromAddr)

	// Reverse-path learning: a cluster head remembers which gateway a
	// remote source's traffic arrived through.
	if n.role == protocol.RoleClusterHead && fromKnown &&
		from.Role == protocol.RoleGateway && d.SrcID != n.cfg.ID {
		if n.routes[d.SrcID] != from.ID {
			n.routes[d.SrcID] = from.ID
			n.log.Debug("learned backbone route",
				zap.Int("source", d.SrcID), zap.Int("gateway", from.ID))
		}
	}

	// Addressed to somebody else on the shared medium.
	if d.NextHopID != protocol.NodeNone && d.NextHopID != n.cfg.ID {
		return
	}

	key := seenKey{d.SrcID, d.SeqNum}
	if _, dup := n.seen[key]; dup {
		// The one exception: the original source, now a gateway, receiving
		// its own packet back from its cluster head still bridges it.
		gatewayReturn := d.SrcID == n.cfg.ID && n.role == protocol.RoleGateway &&
			fromKnown && from.ID == n.clusterID
		if !gatewayReturn {
			n.log.Debug("drop: duplicate", zap.Int("src", d.SrcID), zap.Int("seq", d.SeqNum))
			return
		}
	} else {
		n.seen[key] = struct{}{}
	}

	if d.DestID == n.cfg.ID {
		delay := now.Sub(time.UnixMilli(d.CreatedUnixMs))
		n.sink.DelaySample(delay)
		n.sink.DataReceived(len(d.Payload) * 8)
		n.log.Debug("delivered",
			zap.Int("src", d.SrcID), zap.Int("seq", d.SeqNum), zap.Duration("delay", delay))
		return
	}

	// Members never route.
	if n.role == protocol.RoleMember {
		n.log.Debug("drop: member does not forward", zap.Int("seq", d.SeqNum))
		return
	}

	if d.TTL <= 0 {
		n.log.Debug("drop: ttl exhausted", zap.Int("src", d.SrcID), zap.Int("seq", d.SeqNum))
		return
	}
	d.TTL--

	switch n.role {
	case protocol.RoleClusterHead:
		n.sendFromHead(d)
	case protocol.RoleGateway:
		n.bridge(d, from, fromKnown)
	default:
		n.log.Debug("drop: undecided node does not forward", zap.Int("seq", d.SeqNum))
	}
}

// bridge forwards as a gateway. Packets arriving from this node's own
// cluster head travel outbound across the backbone; anything else is
// inbound and goes up to the cluster head.
func (n *Node) bridge(d protocol.Data, from Neighbor, fromKnown bool) {
	if fromKnown && from.ID == n.clusterID {
		sent := 0
		for _, nb := range n.table.Snapshot() {
			if nb.ClusterID == protocol.ClusterNone || nb.ClusterID == n.clusterID {
				continue
			}
			if !nb.Role.Backbone() {
				continue
			}
			dup := d
			dup.NextHopID = nb.ID
			n.deferTransmit(dup, nb.Addr)
			sent++
		}
		if sent == 0 {
			n.log.Debug("drop: no foreign backbone neighbors", zap.Int("seq", d.SeqNum))
		}
		return
	}
	if n.clusterID == protocol.ClusterNone {
		n.log.Debug("drop: orphaned gateway", zap.Int("seq", d.SeqNum))
		return
	}
	head, ok := n.table.Get(n.clusterID)
	if !ok {
		n.log.Debug("drop: orphaned, cluster head not in table", zap.Int("seq", d.SeqNum))
		return
	}
	d.NextHopID = head.ID
	n.transmit(d, head.Addr)
}

// transmit encodes and sends one packet immediately.
func (n *Node) transmit(d protocol.Data, to string) bool {
	frame, err := protocol.NewData(d).Encode(n.wire)
	if err != nil {
		n.log.Error("data encode failed", zap.Error(err))
		return false
	}
	if err := n.tr.Send(frame, to); err != nil {
		n.log.Debug("send failed", zap.String("to", to), zap.Error(err))
		return false
	}
	return true
}

// deferTransmit schedules a jittered duplicate. The next hop is resolved
// now; once scheduled the send fires even if state has gone stale.
func (n *Node) deferTransmit(d protocol.Data, to string) {
	frame, err := protocol.NewData(d).Encode(n.wire)
	if err != nil {
		n.log.Error("data encode failed", zap.Error(err))
		return
	}
	send := deferredSend{frame: frame, to: to}
	n.clk.AfterFunc(n.randDur(n.cfg.ForwardJitter), func() {
		n.enqueue(event{kind: evDeferredSend, send: send})
	})
}

func (n *Node) handleDeferredSend(s deferredSend) {
	if err := n.tr.Send(s.frame, s.to); err != nil {
		n.log.Debug("deferred send failed", zap.String("to", s.to), zap.Error(err))
	}
}
