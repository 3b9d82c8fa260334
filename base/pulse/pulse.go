// Package pulse owns a keyed table of one-shot TTL timers. It backs the
// transient highlight shown when a new highest bid is detected: arming an
// already armed key replaces its pending timer instead of stacking a second
// one, and expiry removes the entry exactly once.
package pulse

import (
	"sync"
	"time"
)

type entry struct {
	timer    *time.Timer
	deadline time.Time
}

type Table struct {
	mu       sync.Mutex
	entries  map[string]*entry
	onExpire func(key string)
	stopped  bool
}

func NewTable(onExpire func(key string)) *Table {
	return &Table{
		entries:  make(map[string]*entry),
		onExpire: onExpire,
	}
}

// Arm starts (or restarts) the TTL timer for key. Re-arming an active key
// extends its deadline; the previous timer never fires.
func (t *Table) Arm(key string, ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if e, ok := t.entries[key]; ok {
		e.timer.Stop()
	}
	e := &entry{deadline: time.Now().Add(ttl)}
	e.timer = time.AfterFunc(ttl, func() {
		t.expire(key, e)
	})
	t.entries[key] = e
}

func (t *Table) expire(key string, fired *entry) {
	t.mu.Lock()
	e, ok := t.entries[key]
	// a replaced timer may still fire if it raced with Arm; only the
	// current entry is allowed to delete itself
	if !ok || e != fired {
		t.mu.Unlock()
		return
	}
	delete(t.entries, key)
	stopped := t.stopped
	t.mu.Unlock()

	if !stopped && t.onExpire != nil {
		t.onExpire(key)
	}
}

// Active reports whether key currently holds an unexpired entry.
func (t *Table) Active(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[key]
	return ok
}

// Keys returns the currently armed keys.
func (t *Table) Keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	return keys
}

// Stop cancels every pending timer. No expiry callback runs after Stop
// returns.
func (t *Table) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for k, e := range t.entries {
		e.timer.Stop()
		delete(t.entries, k)
	}
}
