package runtime

import (
	"chat-relay/domain"
	"sync"

	"github.com/samber/lo"
)

type Set map[domain.Handle]struct{}

// Membership tracks which live handles have joined which rooms.
// The reverse index lets a disconnect clear every room without scanning them all.
type Membership struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomID]Set                        // room -> handles
	joined map[domain.Handle]map[domain.RoomID]struct{} // handle -> rooms
}

func NewMembership() *Membership {
	return &Membership{
		rooms:  make(map[domain.RoomID]Set),
		joined: make(map[domain.Handle]map[domain.RoomID]struct{}),
	}
}

// Join adds the handle to the room and reports whether it was newly added.
func (m *Membership) Join(roomID domain.RoomID, handle domain.Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, ok := m.rooms[roomID]
	if !ok {
		members = make(Set)
		m.rooms[roomID] = members
	}
	if _, exists := members[handle]; exists {
		return false
	}
	members[handle] = struct{}{}

	rooms, ok := m.joined[handle]
	if !ok {
		rooms = make(map[domain.RoomID]struct{})
		m.joined[handle] = rooms
	}
	rooms[roomID] = struct{}{}
	return true
}

// Leave removes the handle from the room and reports whether it was a member.
func (m *Membership) Leave(roomID domain.RoomID, handle domain.Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leave(roomID, handle)
}

// RemoveEverywhere removes the handle from every room and returns those rooms.
func (m *Membership) RemoveEverywhere(handle domain.Handle) []domain.RoomID {
	m.mu.Lock()
	defer m.mu.Unlock()

	rooms := lo.Keys(m.joined[handle])
	for _, roomID := range rooms {
		m.leave(roomID, handle)
	}
	return rooms
}

// MembersOf returns a snapshot of the room's handles, empty for an unknown room.
func (m *Membership) MembersOf(roomID domain.RoomID) []domain.Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := make([]domain.Handle, 0, len(m.rooms[roomID]))
	for handle := range m.rooms[roomID] {
		members = append(members, handle)
	}
	return members
}

func (m *Membership) IsMember(roomID domain.RoomID, handle domain.Handle) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[roomID][handle]
	return ok
}

func (m *Membership) RoomsOf(handle domain.Handle) []domain.RoomID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Keys(m.joined[handle])
}

// leave must be called with the write lock held. Empty entries are deleted.
func (m *Membership) leave(roomID domain.RoomID, handle domain.Handle) bool {
	members, ok := m.rooms[roomID]
	if !ok {
		return false
	}
	if _, exists := members[handle]; !exists {
		return false
	}
	delete(members, handle)
	if len(members) == 0 {
		delete(m.rooms, roomID)
	}

	if rooms, ok := m.joined[handle]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(m.joined, handle)
		}
	}
	return true
}
