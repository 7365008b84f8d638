package rooms

import (
	"context"
	"drawsync-server/core"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultPersistInterval is the debounce window for snapshot writes.
const DefaultPersistInterval = 10 * time.Second

// roomState tracks one room through Creating and Ready. done is closed when
// creation settles; after that exactly one of engine and err is set.
type roomState struct {
	done     chan struct{}
	engine   core.Engine
	err      error
	sessions int
}

// Registry owns the single live engine per room id. Creation is lazy and
// single-flight: concurrent GetRoom calls during creation share the one
// in-flight result instead of constructing a second engine over the same
// persisted file.
type Registry struct {
	mu        sync.Mutex
	rooms     map[string]*roomState
	store     core.SnapshotStore
	newEngine core.EngineFactory
	persister *Persister
}

func NewRegistry(store core.SnapshotStore, newEngine core.EngineFactory, persistInterval time.Duration) *Registry {
	r := &Registry{
		rooms:     make(map[string]*roomState),
		store:     store,
		newEngine: newEngine,
	}
	r.persister = NewPersister(persistInterval, r.persist)
	return r
}

// GetRoom returns the engine for roomID, creating it if this is the first
// access. All callers that arrive before creation completes receive the same
// engine instance.
func (r *Registry) GetRoom(ctx context.Context, roomID string) (core.Engine, error) {
	r.mu.Lock()
	state, ok := r.rooms[roomID]
	if !ok {
		state = &roomState{done: make(chan struct{})}
		r.rooms[roomID] = state
		go r.createRoom(roomID, state)
	}
	r.mu.Unlock()

	select {
	case <-state.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if state.err != nil {
		return nil, state.err
	}
	return state.engine, nil
}

func (r *Registry) createRoom(roomID string, state *roomState) {
	defer close(state.done)

	log := logrus.WithField("room_id", roomID)

	// A missing, unreadable or corrupt snapshot degrades to an empty room.
	// The persisted file must never keep a room from becoming usable.
	var initial core.Snapshot
	snapshot, err := r.store.Load(context.Background(), roomID)
	switch {
	case err == nil:
		if json.Valid(snapshot) {
			initial = snapshot
		} else {
			log.Warn("Persisted snapshot is corrupt, starting empty")
		}
	case errors.Is(err, core.ErrNotFound):
		log.Debug("No persisted snapshot, starting empty")
	default:
		log.WithError(err).Warn("Failed to load persisted snapshot, starting empty")
	}

	engine, err := r.newEngine(initial, func() {
		r.persister.Schedule(roomID)
	})
	if err != nil {
		state.err = err
		// A failed creation is not cached; the next GetRoom retries.
		r.mu.Lock()
		delete(r.rooms, roomID)
		r.mu.Unlock()
		log.WithError(err).Error("Failed to construct room engine")
		return
	}

	state.engine = engine
	log.Info("Room created")
}

// Attach connects one transport connection to a room under the given session
// id. The engine owns the session afterwards; the registry only counts it for
// the rooms listing.
func (r *Registry) Attach(ctx context.Context, roomID, sessionID string, socket core.Socket) error {
	engine, err := r.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if state, ok := r.rooms[roomID]; ok {
		state.sessions++
	}
	r.mu.Unlock()

	socket.OnClose(func() {
		r.mu.Lock()
		if state, ok := r.rooms[roomID]; ok && state.sessions > 0 {
			state.sessions--
		}
		r.mu.Unlock()
	})

	engine.HandleSocketConnect(sessionID, socket)
	return nil
}

// LiveRooms returns the ids of rooms with at least one attached session and
// their session counts.
func (r *Registry) LiveRooms() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	live := make(map[string]int)
	for id, state := range r.rooms {
		if state.sessions > 0 {
			live[id] = state.sessions
		}
	}
	return live
}

// Flush writes every pending snapshot immediately. Called on shutdown.
func (r *Registry) Flush() {
	r.persister.FlushAll()
}

// persist serializes the room's current state and replaces its stored
// snapshot. A failure is logged and not retried; the in-memory state stays
// authoritative and the next mutation schedules another attempt.
func (r *Registry) persist(roomID string) {
	r.mu.Lock()
	state, ok := r.rooms[roomID]
	r.mu.Unlock()
	if !ok {
		return
	}

	select {
	case <-state.done:
	default:
		return
	}
	if state.err != nil {
		return
	}

	snapshot := state.engine.CurrentSnapshot()
	if err := r.store.Save(context.Background(), roomID, snapshot); err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to persist room")
	}
}
