package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/game"
)

// RoomRegistry is a Redis-aware implementation of app.RoomRegistry.
// Notes:
//   - Live rooms stay in a local map because their timers and subscriber
//     channels are process-local by design.
//   - Redis marks room liveness so dashboards (or a future multi-instance
//     router) can see which room ids are taken.
type RoomRegistry struct {
	client *redis.Client
	ttl    time.Duration

	mu    sync.RWMutex
	rooms map[string]*game.Room
}

func NewRoomRegistry(client *redis.Client, ttl time.Duration) *RoomRegistry {
	return &RoomRegistry{
		client: client,
		ttl:    ttl,
		rooms:  make(map[string]*game.Room),
	}
}

func (r *RoomRegistry) Put(roomID string, room *game.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[roomID]; ok {
		return domain.ErrRoomExists
	}
	r.rooms[roomID] = room
	// best-effort liveness marker
	_ = r.client.Set(context.Background(), r.key(roomID), "1", r.ttl).Err()
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
	if _, ok := r.rooms[roomID]; !ok {
		return
	}
	delete(r.rooms, roomID)
	_ = r.client.Del(context.Background(), r.key(roomID)).Err()
}

func (r *RoomRegistry) key(roomID string) string {
	return "quiz:room:" + roomID
}
