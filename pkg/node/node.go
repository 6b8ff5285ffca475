package node

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fevzifiratt/ceng797-term-project/pkg/clock"
	"github.com/fevzifiratt/ceng797-term-project/pkg/observability"
	"github.com/fevzifiratt/ceng797-term-project/pkg/protocol"
	"github.com/fevzifiratt/ceng797-term-project/pkg/protocol/codec"
	"github.com/fevzifiratt/ceng797-term-project/pkg/transport"
)

// Config carries the per-node protocol parameters.
type Config struct {
	// ID is this node's stable identity within [0, NumHosts).
	ID int
	// NumHosts is the size of the addressable id space, used to pick
	// random data destinations.
	NumHosts int

	HelloInterval       time.Duration
	HelloJitter         time.Duration
	NeighborTimeout     time.Duration
	MaintenanceInterval time.Duration
	// ColoringInterval of zero means the coloring timer fires once (at a
	// random offset within ColoringJitter) and recoloring afterwards only
	// happens on maintenance ticks.
	ColoringInterval time.Duration
	ColoringJitter   time.Duration
	// DataInterval of zero disables the built-in traffic generator.
	DataInterval time.Duration
	DataJitter   time.Duration
	// ForwardJitter bounds the random delay applied to flooded/bridged
	// duplicates to desynchronize simultaneous transmissions.
	ForwardJitter time.Duration

	InitialTTL int

	// Seed makes the node's jitter and destination choices reproducible;
	// zero seeds from the clock.
	Seed int64
}

func (c Config) validate() error {
	if c.ID < 0 || c.NumHosts <= 0 || c.ID >= c.NumHosts {
		return fmt.Errorf("node id %d outside id space [0,%d)", c.ID, c.NumHosts)
	}
	for name, d := range map[string]time.Duration{
		"hello interval":    c.HelloInterval,
		"hello jitter":      c.HelloJitter,
		"neighbor timeout":  c.NeighborTimeout,
		"coloring interval": c.ColoringInterval,
		"coloring jitter":   c.ColoringJitter,
		"data interval":     c.DataInterval,
		"data jitter":       c.DataJitter,
		"forward jitter":    c.ForwardJitter,
	} {
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %v", name, d)
		}
	}
	if c.MaintenanceInterval <= 0 {
		return fmt.Errorf("maintenance interval must be > 0, got %v", c.MaintenanceInterval)
	}
	if c.InitialTTL <= 0 {
		return fmt.Errorf("initial ttl must be > 0, got %d", c.InitialTTL)
	}
	return nil
}

// Deps are the external collaborators a node runs against.
type Deps struct {
	Transport transport.Transport
	Clock     clock.Clock
	Codec     codec.Codec
	Sink      observability.Sink
	Logger    *zap.Logger
}

type eventKind uint8

const (
	evInbound eventKind = iota
	evHelloTick
	evMaintenanceTick
	evColoringTick
	evDataTick
	evDeferredSend
	evQuery
)

// event is the tagged union delivered to the actor loop.
type event struct {
	kind  eventKind
	frame []byte
	from  string
	send  deferredSend
	reply chan Status
}

// deferredSend is a jittered re-emission of an already built frame with
// its next hop resolved at scheduling time.
type deferredSend struct {
	frame []byte
	to    string
}

// Node is one protocol participant. All fields below deps are owned by the
// event loop and must not be touched from outside it.
type Node struct {
	cfg  Config
	log  *zap.Logger
	tr   transport.Transport
	clk  clock.Clock
	sink observability.Sink
	wire codec.Codec
	rng  *rand.Rand

	color     int
	role      protocol.Role
	clusterID int
	seq       int

	table  *Table
	seen   map[seenKey]struct{}
	routes map[int]int // destination id -> gateway neighbor id

	events  chan event
	quit    chan struct{}
	done    chan struct{}
	started bool
	closed  sync.Once

	helloTimer clock.Timer
	maintTimer clock.Timer
	colorTimer clock.Timer
	dataTimer  clock.Timer
}

// Status is a read-only snapshot of a node's externally visible state.
type Status struct {
	ID        int
	Color     int
	Role      protocol.Role
	ClusterID int
	Neighbors int
	Routes    int
}

// New validates cfg and builds a node. Invalid configuration is fatal:
// the node refuses to initialize.
func New(cfg Config, d Deps) (*Node, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("node config: %w", err)
	}
	if d.Transport == nil || d.Clock == nil || d.Codec == nil {
		return nil, fmt.Errorf("node deps: transport, clock and codec are required")
	}
	if d.Sink == nil {
		d.Sink = observability.Nop{}
	}
	if d.Logger == nil {
		d.Logger = zap.L()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = d.Clock.Now().UnixNano() + int64(cfg.ID)
	}
	return &Node{
		cfg:       cfg,
		log:       d.Logger.With(zap.Int("node", cfg.ID)),
		tr:        d.Transport,
		clk:       d.Clock,
		sink:      d.Sink,
		wire:      d.Codec,
		rng:       rand.New(rand.NewSource(seed)),
		color:     protocol.ColorNone,
		role:      protocol.RoleUndecided,
		clusterID: protocol.ClusterNone,
		table:     NewTable(),
		seen:      make(map[seenKey]struct{}),
		routes:    make(map[int]int),
		events:    make(chan event, 256),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Start hooks up the transport, arms the periodic timers and launches the
// event loop.
func (n *Node) Start() error {
	if err := n.tr.Start(n.onFrame); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	n.startTimers()
	n.started = true
	go n.run()
	n.log.Info("node started",
		zap.Duration("hello", n.cfg.HelloInterval),
		zap.Duration("maintenance", n.cfg.MaintenanceInterval),
		zap.Int("ttl", n.cfg.InitialTTL))
	return nil
}

// Close cancels the periodic timers and stops the event loop. Deferred
// sends already handed to the clock are not cancelable and may still fire
// into the closed transport.
func (n *Node) Close() error {
	n.closed.Do(func() {
		close(n.quit)
		if n.started {
			<-n.done
		}
		for _, t := range []clock.Timer{n.helloTimer, n.maintTimer, n.colorTimer, n.dataTimer} {
			if t != nil {
				t.Stop()
			}
		}
		_ = n.tr.Close()
		n.log.Info("node stopped")
	})
	return nil
}

// Status queries the event loop for a state snapshot. It must only be
// called on a started node.
func (n *Node) Status() Status {
	reply := make(chan Status, 1)
	select {
	case n.events <- event{kind: evQuery, reply: reply}:
	case <-n.done:
		return Status{ID: n.cfg.ID}
	}
	select {
	case s := <-reply:
		return s
	case <-n.done:
		return Status{ID: n.cfg.ID}
	}
}

func (n *Node) run() {
	defer close(n.done)
	for {
		select {
		case <-n.quit:
			return
		case ev := <-n.events:
			n.dispatch(ev)
		}
	}
}

func (n *Node) dispatch(ev event) {
	switch ev.kind {
	case evInbound:
		n.handleFrame(ev.frame, ev.from)
	case evHelloTick:
		n.handleHelloTick()
	case evMaintenanceTick:
		n.handleMaintenanceTick()
	case evColoringTick:
		n.handleColoringTick()
	case evDataTick:
		n.handleDataTick()
	case evDeferredSend:
		n.handleDeferredSend(ev.send)
	case evQuery:
		ev.reply <- n.status()
	default:
		n.log.Warn("unknown event kind, discarding", zap.Uint8("kind", uint8(ev.kind)))
	}
}

func (n *Node) status() Status {
	return Status{
		ID:        n.cfg.ID,
		Color:     n.color,
		Role:      n.role,
		ClusterID: n.clusterID,
		Neighbors: n.table.Len(),
		Routes:    len(n.routes),
	}
}

func (n *Node) onFrame(frame []byte, from string) {
	n.enqueue(event{kind: evInbound, frame: frame, from: from})
}

// enqueue never blocks: the transport is best-effort, so under overload
// dropping an event is no worse than the network dropping the packet.
func (n *Node) enqueue(ev event) {
	select {
	case n.events <- ev:
	default:
		n.log.Debug("event queue full, dropping", zap.Uint8("kind", uint8(ev.kind)))
	}
}

func (n *Node) tick(kind eventKind) func() {
	return func() { n.enqueue(event{kind: kind}) }
}

func (n *Node) startTimers() {
	// Initial offsets are randomized so that nodes started together do not
	// beacon or recolor in lockstep.
	n.helloTimer = n.clk.AfterFunc(n.randDur(n.cfg.HelloInterval), n.tick(evHelloTick))
	n.maintTimer = n.clk.AfterFunc(n.cfg.MaintenanceInterval, n.tick(evMaintenanceTick))
	n.colorTimer = n.clk.AfterFunc(n.randDur(n.cfg.ColoringJitter), n.tick(evColoringTick))
	if n.cfg.DataInterval > 0 {
		n.dataTimer = n.clk.AfterFunc(n.randDur(n.cfg.DataInterval)+n.randDur(n.cfg.DataJitter), n.tick(evDataTick))
	}
}

// randDur returns a uniform duration in [0, d), or 0 when d <= 0.
func (n *Node) randDur(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(n.rng.Int63n(int64(d)))
}

func (n *Node) handleFrame(frame []byte, from string) {
	pkt, err := protocol.Decode(n.wire, frame)
	if err != nil {
		n.log.Debug("discarding unrecognized frame", zap.String("from", from), zap.Error(err))
		return
	}
	switch pkt.Kind {
	case protocol.KindBeacon:
		n.handleBeacon(*pkt.Beacon, from)
	case protocol.KindData:
		n.handleData(*pkt.Data, from)
	}
}

func (n *Node) handleBeacon(b protocol.Beacon, from string) {
	if b.SenderID == n.cfg.ID {
		// own multicast echo
		return
	}
	n.table.Upsert(Neighbor{
		ID:        b.SenderID,
		Color:     b.Color,
		Role:      protocol.Role(b.Role),
		ClusterID: b.ClusterID,
		Addr:      from,
		LastHeard: n.clk.Now(),
	})
	n.recomputeRole()
}

func (n *Node) handleHelloTick() {
	n.helloTimer = n.clk.AfterFunc(n.cfg.HelloInterval+n.randDur(n.cfg.HelloJitter), n.tick(evHelloTick))
	frame, err := protocol.NewBeacon(protocol.Beacon{
		SenderID:  n.cfg.ID,
		Color:     n.color,
		Role:      int(n.role),
		ClusterID: n.clusterID,
	}).Encode(n.wire)
	if err != nil {
		n.log.Error("beacon encode failed", zap.Error(err))
		return
	}
	if err := n.tr.Broadcast(frame); err != nil {
		n.log.Debug("beacon broadcast failed", zap.Error(err))
	}
}

func (n *Node) handleMaintenanceTick() {
	n.maintTimer = n.clk.AfterFunc(n.cfg.MaintenanceInterval, n.tick(evMaintenanceTick))
	removed := n.table.Prune(n.clk.Now(), n.cfg.NeighborTimeout)
	if removed {
		n.log.Debug("pruned stale neighbors", zap.Int("remaining", n.table.Len()))
	}
	n.recomputeColor()
	n.recomputeRole()
}

func (n *Node) handleColoringTick() {
	if n.cfg.ColoringInterval > 0 {
		n.colorTimer = n.clk.AfterFunc(n.cfg.ColoringInterval, n.tick(evColoringTick))
	}
	n.recomputeColor()
	n.recomputeRole()
}
