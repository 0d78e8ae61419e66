package runtime

import (
	"chat-rooms/contract"
	"chat-rooms/domain/chat"
	"sync"
)

type Set map[chat.ConnID]struct{}

// Registry is the arena of live connections.
// bindings owns every registered connection, rooms is a secondary index
// derived from it and never holds an id that bindings doesn't know.
type Registry struct {
	mu       sync.RWMutex
	bindings map[chat.ConnID]contract.Binding
	rooms    map[chat.RoomID]Set
}

func NewRegistry() *Registry {
	return &Registry{
		bindings: make(map[chat.ConnID]contract.Binding),
		rooms:    make(map[chat.RoomID]Set),
	}
}

// Register binds a connection to a room under the given identity.
// The room is created on the fly if it doesn't exist yet.
// Registering the same connection twice is a no-op for the room set,
// registering it to another room moves it so a connection is never in two rooms.
func (r *Registry) Register(conn contract.Connection, roomID chat.RoomID, identity chat.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := conn.ID()
	if previous, ok := r.bindings[id]; ok && previous.Room != roomID {
		r.leaveRoom(id, previous.Room)
	}
	r.bindings[id] = contract.Binding{Conn: conn, Identity: identity, Room: roomID}

	if _, ok := r.rooms[roomID]; !ok {
		r.rooms[roomID] = make(Set)
	}
	r.rooms[roomID][id] = struct{}{}
}

// Deregister removes a connection and returns what it was bound to.
// The second call for the same connection returns false, which is what
// keeps leave announcements from being emitted twice.
func (r *Registry) Deregister(connID chat.ConnID) (contract.Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	binding, ok := r.bindings[connID]
	if !ok {
		return contract.Binding{}, false
	}
	delete(r.bindings, connID)
	r.leaveRoom(connID, binding.Room)
	return binding, true
}

func (r *Registry) Lookup(connID chat.ConnID) (contract.Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	binding, ok := r.bindings[connID]
	return binding, ok
}

// MembersOf returns a snapshot of the connections of a room.
// The slice is a copy: callers may iterate it while the registry changes.
// Returns nil if the room doesn't exist.
func (r *Registry) MembersOf(roomID chat.RoomID) []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	conns := make([]contract.Connection, 0, len(members))
	for id := range members {
		if binding, exists := r.bindings[id]; exists {
			conns = append(conns, binding.Conn)
		}
	}
	return conns
}

// Bindings returns every registered binding, used on shutdown to close all connections.
func (r *Registry) Bindings() []contract.Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bindings := make([]contract.Binding, 0, len(r.bindings))
	for _, b := range r.bindings {
		bindings = append(bindings, b)
	}
	return bindings
}

func (r *Registry) Stats() contract.RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return contract.RegistryStats{Rooms: len(r.rooms), Connections: len(r.bindings)}
}

// leaveRoom must be called with the write lock held.
// If no one is left in the room, the room entry is removed entirely.
func (r *Registry) leaveRoom(connID chat.ConnID, roomID chat.RoomID) {
	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}
