package rooms

import (
	"sync"
	"time"
)

// pendingWrite is the debounce record for one room. At most one exists per
// room id, so writes for a room can never overlap: while running, new
// Schedule calls only set rearm, and a fresh window starts after the write
// returns.
type pendingWrite struct {
	timer   *time.Timer
	running bool
	rearm   bool
}

// Persister debounces snapshot writes per room id with a trailing-edge
// window: repeated Schedule calls within the window collapse into a single
// write at the window's end, using the room state as of that moment.
type Persister struct {
	mu       sync.Mutex
	interval time.Duration
	write    func(roomID string)
	pending  map[string]*pendingWrite
}

func NewPersister(interval time.Duration, write func(roomID string)) *Persister {
	return &Persister{
		interval: interval,
		write:    write,
		pending:  make(map[string]*pendingWrite),
	}
}

// Schedule requests a persistence write for roomID at the end of the current
// debounce window, opening one if none is active.
func (p *Persister) Schedule(roomID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.pending[roomID]
	if !ok {
		w = &pendingWrite{}
		p.pending[roomID] = w
		w.timer = time.AfterFunc(p.interval, func() { p.fire(roomID) })
		return
	}
	if w.running {
		w.rearm = true
	}
	// Otherwise a window is already open; this call collapses into it.
}

func (p *Persister) fire(roomID string) {
	p.mu.Lock()
	w, ok := p.pending[roomID]
	if !ok {
		p.mu.Unlock()
		return
	}
	w.running = true
	p.mu.Unlock()

	p.write(roomID)

	p.mu.Lock()
	rearm := w.rearm
	delete(p.pending, roomID)
	p.mu.Unlock()

	if rearm {
		p.Schedule(roomID)
	}
}

// FlushAll cancels every open window and runs its write immediately. Writes
// already in flight are left to finish on their own goroutine.
func (p *Persister) FlushAll() {
	p.mu.Lock()
	ids := make([]string, 0, len(p.pending))
	for id, w := range p.pending {
		if w.running {
			continue
		}
		if w.timer.Stop() {
			delete(p.pending, id)
			ids = append(ids, id)
		}
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.write(id)
	}
}
