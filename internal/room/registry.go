package room

import (
	"math/rand"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/focusroom/internal/timer"
)

// Room ids are short shareable tokens, not UUIDs: people read them out loud.
const (
	roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomIDLength   = 6
)

// Registry owns every live room and a reverse index from connection id to
// the room it is bound to. Both maps are guarded by one mutex; rooms only
// enter through CreateRoom and only leave through Remove, so a connection
// can never be bound to two rooms at once.
type Registry struct {
	clock clockwork.Clock

	mu    sync.RWMutex
	rooms map[string]*Room
	conns map[string]string // connection id -> room id
}

// NewRegistry creates an empty registry. The clock is handed to every timer
// it creates; tests pass a fake clock to drive ticks deterministically.
func NewRegistry(clock clockwork.Clock) *Registry {
	return &Registry{
		clock: clock,
		rooms: make(map[string]*Room),
		conns: make(map[string]string),
	}
}

// CreateRoom generates a fresh room id, constructs the room with the creator
// as host and an idle timer, and registers both. sinkFor builds the timer's
// emission target once the id is known.
func (reg *Registry) CreateRoom(host Participant, sinkFor func(roomID string) timer.Sink) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	id := reg.newRoomIDLocked()
	rm := newRoom(id, host, timer.New(reg.clock, sinkFor(id)))
	reg.rooms[id] = rm
	reg.conns[host.ID] = id

	log.Info().Str("room_id", id).Str("host", host.Name).Msg("room created")
	return rm
}

// Join adds a participant to an existing room, binds their connection and
// runs attach, all under the registry lock. A concurrent teardown therefore
// happens entirely before the join (which then fails with ErrRoomNotFound)
// or entirely after it, in which case the member sweep in Remove and the
// closing broadcast both see the joiner; a winning join can never leak its
// reverse-index binding or miss the teardown. attach may be nil.
func (reg *Registry) Join(roomID string, p Participant, attach func()) (*Room, []Participant, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rm, ok := reg.rooms[roomID]
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	users := rm.Join(p)
	reg.conns[p.ID] = roomID
	if attach != nil {
		attach()
	}

	log.Info().Str("room_id", roomID).Str("user", p.Name).Msg("user joined room")
	return rm, users, nil
}

// Lookup resolves a room by id.
func (reg *Registry) Lookup(roomID string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	rm, ok := reg.rooms[roomID]
	return rm, ok
}

// Locate resolves the room a connection is bound to, via the reverse index,
// without scanning the room table.
func (reg *Registry) Locate(connID string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	roomID, ok := reg.conns[connID]
	if !ok {
		return nil, false
	}
	rm, ok := reg.rooms[roomID]
	return rm, ok
}

// Remove deregisters a room and unbinds every member connection. The caller
// must have stopped the room's timer first.
func (reg *Registry) Remove(roomID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	rm, ok := reg.rooms[roomID]
	if !ok {
		return
	}
	for _, m := range rm.Members() {
		delete(reg.conns, m.ID)
	}
	delete(reg.rooms, roomID)
	log.Info().Str("room_id", roomID).Msg("room removed")
}

// Forget unbinds a single connection after an ordinary member leaves.
func (reg *Registry) Forget(connID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.conns, connID)
}

// Len returns the number of live rooms.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

func (reg *Registry) newRoomIDLocked() string {
	for {
		b := make([]byte, roomIDLength)
		for i := range b {
			b[i] = roomIDAlphabet[rand.Intn(len(roomIDAlphabet))]
		}
		if _, taken := reg.rooms[string(b)]; !taken {
			return string(b)
		}
	}
}
