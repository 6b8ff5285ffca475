package node

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fevzifiratt/ceng797-term-project/pkg/clock"
	"github.com/fevzifiratt/ceng797-term-project/pkg/observability"
	"github.com/fevzifiratt/ceng797-term-project/pkg/protocol"
	"github.com/fevzifiratt/ceng797-term-project/pkg/protocol/codec"
	"github.com/fevzifiratt/ceng797-term-project/pkg/transport"
)

// ---- shared test helpers ----

func testCodec(t *testing.T) codec.Codec {
	t.Helper()
	c, err := codec.CBOR()
	if err != nil {
		t.Fatalf("cbor codec: %v", err)
	}
	return c
}

type sentFrame struct {
	frame []byte
	to    string
}

// captureTransport records outbound traffic instead of delivering it.
type captureTransport struct {
	handler    transport.Handler
	sends      []sentFrame
	broadcasts [][]byte
}

func (c *captureTransport) Start(h transport.Handler) error { c.handler = h; return nil }
func (c *captureTransport) Send(frame []byte, to string) error {
	c.sends = append(c.sends, sentFrame{frame, to})
	return nil
}
func (c *captureTransport) Broadcast(frame []byte) error {
	c.broadcasts = append(c.broadcasts, frame)
	return nil
}
func (c *captureTransport) LocalAddr() string { return "capture" }
func (c *captureTransport) Close() error      { return nil }

// testSink records every observability event.
type testSink struct {
	transitions [][2]protocol.Role
	updates     [][2]int
	sent        int
	received    int
	bits        int
	delays      []time.Duration
}

func (s *testSink) RoleChanged(oldRole, newRole protocol.Role) {
	s.transitions = append(s.transitions, [2]protocol.Role{oldRole, newRole})
}
func (s *testSink) StateUpdated(color, clusterID int) {
	s.updates = append(s.updates, [2]int{color, clusterID})
}
func (s *testSink) DataSent() { s.sent++ }
func (s *testSink) DataReceived(bits int) {
	s.received++
	s.bits += bits
}
func (s *testSink) DelaySample(d time.Duration) { s.delays = append(s.delays, d) }

func testConfig(id int) Config {
	return Config{
		ID:                  id,
		NumHosts:            16,
		HelloInterval:       time.Second,
		NeighborTimeout:     3 * time.Second,
		MaintenanceInterval: time.Second,
		ColoringInterval:    2 * time.Second,
		InitialTTL:          8,
		Seed:                int64(id) + 1,
	}
}

// newUnitNode builds a node wired to the given collaborators, without
// starting timers or the event loop; unit tests call handlers directly.
func newUnitNode(t *testing.T, cfg Config, tr transport.Transport, clk clock.Clock, sink observability.Sink) *Node {
	t.Helper()
	n, err := New(cfg, Deps{
		Transport: tr,
		Clock:     clk,
		Codec:     testCodec(t),
		Sink:      sink,
		Logger:    zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return n
}

// setState forces protocol state, used to start tests from a converged
// configuration.
func setState(n *Node, color int, role protocol.Role, clusterID int) {
	n.color = color
	n.role = role
	n.clusterID = clusterID
}

// addNeighbor installs a table entry as if a beacon had just been heard.
func addNeighbor(n *Node, id, color int, role protocol.Role, clusterID int, addr string) {
	n.table.Upsert(Neighbor{
		ID: id, Color: color, Role: role, ClusterID: clusterID,
		Addr: addr, LastHeard: n.clk.Now(),
	})
}

func decodeDataFrame(t *testing.T, c codec.Codec, frame []byte) protocol.Data {
	t.Helper()
	pkt, err := protocol.Decode(c, frame)
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if pkt.Kind != protocol.KindData {
		t.Fatalf("expected data frame, got %v", pkt.Kind)
	}
	return *pkt.Data
}

func decodeBeaconFrame(t *testing.T, c codec.Codec, frame []byte) protocol.Beacon {
	t.Helper()
	pkt, err := protocol.Decode(c, frame)
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if pkt.Kind != protocol.KindBeacon {
		t.Fatalf("expected beacon frame, got %v", pkt.Kind)
	}
	return *pkt.Beacon
}

// ---- node-level tests ----

func TestNewRejectsInvalidConfig(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	tr := &captureTransport{}
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative id", func(c *Config) { c.ID = -1 }},
		{"id outside space", func(c *Config) { c.ID = 16 }},
		{"zero hosts", func(c *Config) { c.NumHosts = 0 }},
		{"negative interval", func(c *Config) { c.HelloInterval = -time.Second }},
		{"zero maintenance", func(c *Config) { c.MaintenanceInterval = 0 }},
		{"zero ttl", func(c *Config) { c.InitialTTL = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(0)
			tc.mutate(&cfg)
			if _, err := New(cfg, Deps{Transport: tr, Clock: clk, Codec: testCodec(t)}); err == nil {
				t.Fatalf("expected config error")
			}
		})
	}
}

func TestNewRejectsMissingDeps(t *testing.T) {
	if _, err := New(testConfig(0), Deps{}); err == nil {
		t.Fatalf("expected missing-deps error")
	}
}

func TestBeaconUpdatesTableAndRole(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	sink := &testSink{}
	n := newUnitNode(t, testConfig(5), &captureTransport{}, clk, sink)
	setState(n, 2, protocol.RoleUndecided, protocol.ClusterNone)

	n.handleBeacon(protocol.Beacon{SenderID: 1, Color: 0, Role: int(protocol.RoleClusterHead), ClusterID: 1}, "addr-1")

	nb, ok := n.table.Get(1)
	if !ok || nb.Color != 0 || nb.Addr != "addr-1" {
		t.Fatalf("neighbor entry: %+v ok=%v", nb, ok)
	}
	if n.role != protocol.RoleMember || n.clusterID != 1 {
		t.Fatalf("role after beacon: %v cluster=%d", n.role, n.clusterID)
	}
	if len(sink.transitions) != 1 {
		t.Fatalf("transitions: %v", sink.transitions)
	}
}

func TestOwnBeaconEchoIgnored(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	n := newUnitNode(t, testConfig(5), &captureTransport{}, clk, observability.Nop{})
	n.handleBeacon(protocol.Beacon{SenderID: 5, Color: 0}, "self")
	if n.table.Len() != 0 {
		t.Fatalf("own beacon entered the table")
	}
}

func TestHelloTickBroadcastsCurrentState(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	tr := &captureTransport{}
	n := newUnitNode(t, testConfig(4), tr, clk, observability.Nop{})
	setState(n, 1, protocol.RoleGateway, 0)

	n.handleHelloTick()
	if len(tr.broadcasts) != 1 {
		t.Fatalf("broadcasts: %d", len(tr.broadcasts))
	}
	b := decodeBeaconFrame(t, n.wire, tr.broadcasts[0])
	if b.SenderID != 4 || b.Color != 1 || b.Role != int(protocol.RoleGateway) || b.ClusterID != 0 {
		t.Fatalf("beacon: %+v", b)
	}
}

func TestMalformedFrameDiscarded(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	n := newUnitNode(t, testConfig(4), &captureTransport{}, clk, observability.Nop{})
	n.handleFrame([]byte{0xde, 0xad}, "x")
	if n.table.Len() != 0 {
		t.Fatalf("garbage frame mutated state")
	}
}

func TestMaintenancePrunesAndDemotes(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	sink := &testSink{}
	n := newUnitNode(t, testConfig(5), &captureTransport{}, clk, sink)
	setState(n, 1, protocol.RoleMember, 1)
	addNeighbor(n, 1, 0, protocol.RoleClusterHead, 1, "addr-1")

	// Within the timeout nothing changes.
	clk.Advance(2 * time.Second)
	n.handleMaintenanceTick()
	if n.role != protocol.RoleMember {
		t.Fatalf("premature demotion: %v", n.role)
	}

	// Past the timeout the head is pruned and the node falls back to
	// undecided with its color cleared.
	clk.Advance(2 * time.Second)
	n.handleMaintenanceTick()
	if n.table.Len() != 0 {
		t.Fatalf("stale neighbor kept")
	}
	if n.role != protocol.RoleUndecided || n.clusterID != protocol.ClusterNone || n.color != protocol.ColorNone {
		t.Fatalf("after prune: role=%v cluster=%d color=%d", n.role, n.clusterID, n.color)
	}
}

func TestStartedNodeAnswersStatus(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	n := newUnitNode(t, testConfig(7), &captureTransport{}, clk, observability.Nop{})
	if err := n.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	st := n.Status()
	if st.ID != 7 || st.Role != protocol.RoleUndecided || st.Color != protocol.ColorNone {
		t.Fatalf("status: %+v", st)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Close is idempotent.
	_ = n.Close()
}
