package rooms

import (
	"sync"
)

// EventSink delivers named events to one connected session. The websocket
// layer adapts its socket type to this; tests substitute recorders.
type EventSink interface {
	Emit(event string, args ...any) error
}

type member struct {
	id     string
	roomID string
	sink   EventSink
}

// Registry is the authoritative view of which sessions are in which room.
// Bindings and counts are process-local and rebuilt from nothing on restart;
// only the store's event log is durable.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*member
	rooms    map[string]map[string]*member
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*member),
		rooms:    make(map[string]map[string]*member),
	}
}

// Join binds the session to roomID and returns the room's new member count.
// A session already bound elsewhere must be released with Leave first; Join
// itself never fails and treats an unseen room as starting at zero.
func (r *Registry) Join(sessionID, roomID string, sink EventSink) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.sessions[sessionID]; ok {
		r.removeLocked(prev)
	}

	m := &member{id: sessionID, roomID: roomID, sink: sink}
	r.sessions[sessionID] = m
	if _, ok := r.rooms[roomID]; !ok {
		r.rooms[roomID] = make(map[string]*member)
	}
	r.rooms[roomID][sessionID] = m
	return len(r.rooms[roomID])
}

// Leave removes the session's binding. It returns the room the session was
// in and that room's remaining count; ok is false when the session had no
// binding.
func (r *Registry) Leave(sessionID string) (roomID string, count int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.sessions[sessionID]
	if !exists {
		return "", 0, false
	}
	r.removeLocked(m)
	return m.roomID, len(r.rooms[m.roomID]), true
}

func (r *Registry) removeLocked(m *member) {
	delete(r.sessions, m.id)
	if roomMembers, ok := r.rooms[m.roomID]; ok {
		delete(roomMembers, m.id)
		if len(roomMembers) == 0 {
			delete(r.rooms, m.roomID)
		}
	}
}

// RoomOf returns the session's current room binding.
func (r *Registry) RoomOf(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.sessions[sessionID]
	if !ok {
		return "", false
	}
	return m.roomID, true
}

// CountOf returns the number of sessions in the room, zero for an unknown
// room.
func (r *Registry) CountOf(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

// sinksIn snapshots the room's current delivery targets, skipping exclude
// when non-empty. The snapshot is taken under the read lock so a session
// that already left is never handed late events.
func (r *Registry) sinksIn(roomID, exclude string) []EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomMembers := r.rooms[roomID]
	sinks := make([]EventSink, 0, len(roomMembers))
	for id, m := range roomMembers {
		if id == exclude {
			continue
		}
		sinks = append(sinks, m.sink)
	}
	return sinks
}
