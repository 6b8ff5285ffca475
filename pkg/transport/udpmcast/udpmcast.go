// Package udpmcast implements the node transport over a UDP multicast
// group: broadcasts go to the group, unicasts to the address a frame was
// observed from. One socket serves both directions.
package udpmcast

import (
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"github.com/fevzifiratt/ceng797-term-project/pkg/transport"
)

const maxFrameSize = 64 * 1024

// Config selects the multicast group and ports.
type Config struct {
	// Group is the multicast group address, e.g. "239.42.42.42".
	Group string
	// LocalPort is the port the socket binds to. For group traffic to be
	// received it normally equals DestPort.
	LocalPort int
	// DestPort is the port broadcasts are sent to.
	DestPort int
	// Interface optionally names the network interface to join on; empty
	// means the system default.
	Interface string
}

// Transport is a multicast UDP transport.
type Transport struct {
	pc    *ipv4.PacketConn
	group *net.UDPAddr

	mu      sync.Mutex
	started bool
	closed  bool
}

// New binds the socket and joins the multicast group.
func New(cfg Config) (*Transport, error) {
	gip := net.ParseIP(cfg.Group)
	if gip == nil || !gip.IsMulticast() {
		return nil, fmt.Errorf("invalid multicast group: %q", cfg.Group)
	}
	c, err := net.ListenPacket("udp4", fmt.Sprintf(":%d", cfg.LocalPort))
	if err != nil {
		return nil, fmt.Errorf("bind :%d: %w", cfg.LocalPort, err)
	}
	pc := ipv4.NewPacketConn(c)

	var ifi *net.Interface
	if cfg.Interface != "" {
		ifi, err = net.InterfaceByName(cfg.Interface)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("interface %q: %w", cfg.Interface, err)
		}
	}
	if err := pc.JoinGroup(ifi, &net.UDPAddr{IP: gip}); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("join group %s: %w", cfg.Group, err)
	}
	// A node must not hear its own beacons.
	if err := pc.SetMulticastLoopback(false); err != nil {
		zap.L().Warn("multicast loopback disable failed", zap.Error(err))
	}
	return &Transport{
		pc:    pc,
		group: &net.UDPAddr{IP: gip, Port: cfg.DestPort},
	}, nil
}

func (t *Transport) Start(h transport.Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return fmt.Errorf("udpmcast: already started")
	}
	t.started = true
	go t.readLoop(h)
	return nil
}

func (t *Transport) readLoop(h transport.Handler) {
	buf := make([]byte, maxFrameSize)
	for {
		n, _, src, err := t.pc.ReadFrom(buf)
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if !closed {
				zap.L().Warn("udpmcast read failed", zap.Error(err))
			}
			return
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		h(frame, src.String())
	}
}

func (t *Transport) Send(frame []byte, to string) error {
	raddr, err := net.ResolveUDPAddr("udp4", to)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", to, err)
	}
	_, err = t.pc.WriteTo(frame, nil, raddr)
	return err
}

func (t *Transport) Broadcast(frame []byte) error {
	_, err := t.pc.WriteTo(frame, nil, t.group)
	return err
}

func (t *Transport) LocalAddr() string {
	return t.pc.LocalAddr().String()
}

func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return t.pc.Close()
}
