package service

import (
	"sync"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

// Snapshot is what the kiosk screen should show right now.
//
// Valid is nil when nothing is on screen, false right after a rejected scan,
// and true while Identity is displayed.  Identity is only ever set from a
// valid verdict.
type Snapshot struct {
	Identity  *types.Identity `json:"identity"`
	Valid     *bool           `json:"valid"`
	Reason    string          `json:"reason,omitempty"`
	Version   uint64          `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Display holds the published identity.  Only the Reconciler changes it;
// everyone else reads Current or subscribes.
type Display struct {
	mu      sync.RWMutex
	snap    Snapshot
	subs    map[int]chan Snapshot
	nextSub int
	now     func() time.Time
}

func NewDisplay(now func() time.Time) *Display {
	if now == nil {
		now = time.Now
	}
	return &Display{subs: make(map[int]chan Snapshot), now: now}
}

func (d *Display) Current() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap
}

// Subscribe returns a channel that receives every later snapshot.  A slow
// reader only ever sees the latest one; intermediate snapshots are dropped.
// Call cancel to unsubscribe; it closes the channel.
func (d *Display) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = ch
	d.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subs, id)
			d.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (d *Display) show(id types.Identity) {
	valid := true
	d.publish(Snapshot{Identity: &id, Valid: &valid})
}

func (d *Display) reject(reason string) {
	valid := false
	d.publish(Snapshot{Valid: &valid, Reason: reason})
}

func (d *Display) clear() {
	d.publish(Snapshot{})
}

func (d *Display) publish(s Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s.Version = d.snap.Version + 1
	s.UpdatedAt = d.now().UTC()
	d.snap = s

	for _, ch := range d.subs {
		// Replace whatever the subscriber has not read yet.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}
