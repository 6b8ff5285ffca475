package observability

import (
	"sync"
	"time"

	"github.com/fevzifiratt/ceng797-term-project/pkg/protocol"
)

// Sink receives protocol-level events from a node: role transitions, state
// updates and data-plane activity. Implementations must be cheap; they are
// called from the node's event loop.
type Sink interface {
	// RoleChanged fires on every role transition.
	RoleChanged(oldRole, newRole protocol.Role)
	// StateUpdated fires when color or cluster attachment changed without a
	// role transition.
	StateUpdated(color, clusterID int)
	// DataSent fires once per successfully originated data packet.
	DataSent()
	// DataReceived fires when a data packet reaches its destination,
	// carrying the delivered payload size in bits.
	DataReceived(bits int)
	// DelaySample records the end-to-end delay of a delivered packet.
	DelaySample(d time.Duration)
}

// Nop discards all events.
type Nop struct{}

func (Nop) RoleChanged(protocol.Role, protocol.Role) {}
func (Nop) StateUpdated(int, int)                    {}
func (Nop) DataSent()                                {}
func (Nop) DataReceived(int)                         {}
func (Nop) DelaySample(time.Duration)                {}

// Stats is a snapshot of recorded counters.
type Stats struct {
	Role               protocol.Role
	HeadTransitions    int
	MemberTransitions  int
	GatewayTransitions int
	DataSent           int
	DataReceived       int
	DeliveredBits      int64
	DelaySamples       []time.Duration
}

// MeanDelay returns the average end-to-end delay, or zero without samples.
func (s Stats) MeanDelay() time.Duration {
	if len(s.DelaySamples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range s.DelaySamples {
		sum += d
	}
	return sum / time.Duration(len(s.DelaySamples))
}

// Recorder is an in-memory Sink used by the node binary for periodic stats
// logging and by tests for assertions.
type Recorder struct {
	mu sync.Mutex
	s  Stats
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) RoleChanged(_, newRole protocol.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Role = newRole
	switch newRole {
	case protocol.RoleClusterHead:
		r.s.HeadTransitions++
	case protocol.RoleMember:
		r.s.MemberTransitions++
	case protocol.RoleGateway:
		r.s.GatewayTransitions++
	}
}

func (r *Recorder) StateUpdated(int, int) {}

func (r *Recorder) DataSent() {
	r.mu.Lock()
	r.s.DataSent++
	r.mu.Unlock()
}

func (r *Recorder) DataReceived(bits int) {
	r.mu.Lock()
	r.s.DataReceived++
	r.s.DeliveredBits += int64(bits)
	r.mu.Unlock()
}

func (r *Recorder) DelaySample(d time.Duration) {
	r.mu.Lock()
	r.s.DelaySamples = append(r.s.DelaySamples, d)
	r.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (r *Recorder) Snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.s
	out.DelaySamples = append([]time.Duration(nil), r.s.DelaySamples...)
	return out
}
