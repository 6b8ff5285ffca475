package protocol

import (
	"fmt"

	"github.com/fevzifiratt/ceng797-term-project/pkg/protocol/codec"
)

// Beacon is the periodic discovery broadcast announcing a node's state.
type Beacon struct {
	SenderID  int `cbor:"1,keyasint" json:"sender_id"`
	Color     int `cbor:"2,keyasint" json:"color"`
	Role      int `cbor:"3,keyasint" json:"role"`
	ClusterID int `cbor:"4,keyasint" json:"cluster_id"`
}

// Data is an application payload routed over the cluster hierarchy.
// NextHopID names the intended recipient of this transmission; NodeNone
// means any receiver may process it. The channel is logically
// multi-destination even when a transmission is addressed to one peer.
type Data struct {
	SrcID         int    `cbor:"1,keyasint" json:"src_id"`
	SeqNum        int    `cbor:"2,keyasint" json:"seq_num"`
	TTL           int    `cbor:"3,keyasint" json:"ttl"`
	DestID        int    `cbor:"4,keyasint" json:"dest_id"`
	NextHopID     int    `cbor:"5,keyasint" json:"next_hop_id"`
	CreatedUnixMs int64  `cbor:"6,keyasint" json:"created_unix_ms"`
	Payload       []byte `cbor:"7,keyasint" json:"payload,omitempty"`
}

// Packet is the tagged union carried by a single transport frame.
// Exactly the field matching Kind is set.
type Packet struct {
	Kind   PacketKind `cbor:"1,keyasint" json:"kind"`
	Beacon *Beacon    `cbor:"2,keyasint,omitempty" json:"beacon,omitempty"`
	Data   *Data      `cbor:"3,keyasint,omitempty" json:"data,omitempty"`
}

// NewBeacon wraps a beacon in a packet.
func NewBeacon(b Beacon) Packet { return Packet{Kind: KindBeacon, Beacon: &b} }

// NewData wraps a data packet.
func NewData(d Data) Packet { return Packet{Kind: KindData, Data: &d} }

// Encode marshals the packet with the given codec.
func (p Packet) Encode(c codec.Codec) ([]byte, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	return c.Marshal(p)
}

// Decode unmarshals a frame and validates the kind/body pairing.
func Decode(c codec.Codec, frame []byte) (Packet, error) {
	var p Packet
	if err := c.Unmarshal(frame, &p); err != nil {
		return Packet{}, fmt.Errorf("decode packet: %w", err)
	}
	if err := p.check(); err != nil {
		return Packet{}, err
	}
	return p, nil
}

func (p Packet) check() error {
	switch p.Kind {
	case KindBeacon:
		if p.Beacon == nil {
			return fmt.Errorf("beacon packet without body")
		}
	case KindData:
		if p.Data == nil {
			return fmt.Errorf("data packet without body")
		}
	default:
		return fmt.Errorf("unknown packet kind %d", p.Kind)
	}
	return nil
}
