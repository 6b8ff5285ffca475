package observability

import (
	"testing"
	"time"

	"github.com/fevzifiratt/ceng797-term-project/pkg/protocol"
)

func TestRecorderCounters(t *testing.T) {
	r := NewRecorder()
	r.RoleChanged(protocol.RoleUndecided, protocol.RoleClusterHead)
	r.RoleChanged(protocol.RoleClusterHead, protocol.RoleMember)
	r.RoleChanged(protocol.RoleMember, protocol.RoleGateway)
	r.RoleChanged(protocol.RoleGateway, protocol.RoleMember)
	r.DataSent()
	r.DataSent()
	r.DataReceived(80)
	r.DelaySample(10 * time.Millisecond)
	r.DelaySample(30 * time.Millisecond)

	s := r.Snapshot()
	if s.Role != protocol.RoleMember {
		t.Fatalf("role=%v", s.Role)
	}
	if s.HeadTransitions != 1 || s.MemberTransitions != 2 || s.GatewayTransitions != 1 {
		t.Fatalf("transitions=%+v", s)
	}
	if s.DataSent != 2 || s.DataReceived != 1 || s.DeliveredBits != 80 {
		t.Fatalf("data counters=%+v", s)
	}
	if got := s.MeanDelay(); got != 20*time.Millisecond {
		t.Fatalf("mean delay=%v", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r := NewRecorder()
	r.DelaySample(time.Millisecond)
	s := r.Snapshot()
	s.DelaySamples[0] = time.Hour
	if r.Snapshot().DelaySamples[0] != time.Millisecond {
		t.Fatalf("snapshot aliases recorder state")
	}
}
