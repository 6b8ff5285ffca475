package clock

import (
	"sort"
	"sync"
	"time"
)

// Virtual is a deterministic manual clock. Time only moves when Advance is
// called; due callbacks fire synchronously, in deadline order, with ties
// broken by scheduling order. Callbacks may schedule further timers.
type Virtual struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	pending []*vtimer
}

type vtimer struct {
	v       *Virtual
	when    time.Time
	seq     int
	fn      func()
	stopped bool
}

// NewVirtual returns a virtual clock starting at the given instant.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *Virtual) AfterFunc(d time.Duration, fn func()) Timer {
	v.mu.Lock()
	defer v.mu.Unlock()
	if d < 0 {
		d = 0
	}
	t := &vtimer{v: v, when: v.now.Add(d), seq: v.seq, fn: fn}
	v.seq++
	v.pending = append(v.pending, t)
	return t
}

func (t *vtimer) Stop() bool {
	t.v.mu.Lock()
	defer t.v.mu.Unlock()
	was := t.stopped
	t.stopped = true
	return !was
}

// Advance moves the clock forward by d, firing every callback whose
// deadline falls within the window.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	target := v.now.Add(d)
	for {
		t := v.popDueLocked(target)
		if t == nil {
			break
		}
		v.now = t.when
		v.mu.Unlock()
		t.fn()
		v.mu.Lock()
	}
	v.now = target
	v.mu.Unlock()
}

// popDueLocked removes and returns the earliest non-stopped pending timer
// with deadline <= target, or nil.
func (v *Virtual) popDueLocked(target time.Time) *vtimer {
	sort.SliceStable(v.pending, func(i, j int) bool {
		if v.pending[i].when.Equal(v.pending[j].when) {
			return v.pending[i].seq < v.pending[j].seq
		}
		return v.pending[i].when.Before(v.pending[j].when)
	})
	for i, t := range v.pending {
		if t.stopped {
			continue
		}
		if t.when.After(target) {
			break
		}
		v.pending = append(v.pending[:i], v.pending[i+1:]...)
		return t
	}
	// drop stopped timers opportunistically
	keep := v.pending[:0]
	for _, t := range v.pending {
		if !t.stopped {
			keep = append(keep, t)
		}
	}
	v.pending = keep
	return nil
}

// PendingCount reports the number of armed timers, for tests.
func (v *Virtual) PendingCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, t := range v.pending {
		if !t.stopped {
			n++
		}
	}
	return n
}
