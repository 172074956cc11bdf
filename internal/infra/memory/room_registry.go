package memory

import (
	"sync"

	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/game"
)

// RoomRegistry is an in-memory implementation of app.RoomRegistry.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*game.Room
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]*game.Room),
	}
}

func (r *RoomRegistry) Put(roomID string, room *game.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[roomID]; ok {
		return domain.ErrRoomExists
	}
	r.rooms[roomID] = room
	return nil
}

func (r *RoomRegistry) Get(roomID string) (*game.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	return room, ok
}

func (r *RoomRegistry) Delete(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, roomID)
}
