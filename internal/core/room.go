package core

import "sync"

// Room groups sessions subscribed to the same broadcast scope. Rooms are
// created lazily on first join and live for the process lifetime; an empty
// room is kept, not collected.
type Room struct {
	Name string

	mu      sync.RWMutex
	members map[string]*Session
}

// NewRoom constructs a room with no members.
func NewRoom(name string) *Room {
	return &Room{
		Name:    name,
		members: make(map[string]*Session),
	}
}

// AddMember inserts a session into the room. Returns true if newly added.
func (r *Room) AddMember(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[s.ID]; exists {
		return false
	}
	r.members[s.ID] = s
	return true
}

// RemoveMember deletes a session from the room. Returns true if removed.
func (r *Room) RemoveMember(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[s.ID]; !exists {
		return false
	}
	delete(r.members, s.ID)
	return true
}

// Members returns a stable snapshot of the membership at call time, so
// delivery loops are unaffected by concurrent joins and leaves.
func (r *Room) Members() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.members))
	for _, s := range r.members {
		out = append(out, s)
	}
	return out
}

// Len returns the current member count.
func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// RoomRegistry maps room names to rooms.
type RoomRegistry struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRoomRegistry constructs an empty registry.
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string]*Room)}
}

// GetOrCreate returns the room with the given name, creating it on first
// use. Concurrent first joins to the same name observe a single room.
func (r *RoomRegistry) GetOrCreate(name string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[name]
	if !ok {
		room = NewRoom(name)
		r.rooms[name] = room
	}
	return room
}

// Get returns the room with the given name, or nil when it was never
// created.
func (r *RoomRegistry) Get(name string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms[name]
}
