package ws

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ignatzorin/errands-backend/internal/metrics"
)

// RoomRegistry хранит состав комнат заданий: errandID -> множество соединений.
// Живёт в памяти процесса. Пустая комната удаляется сразу.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*Client]struct{}
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[uuid.UUID]map[*Client]struct{})}
}

// Join добавляет соединение в комнату. Повторный вход ничего не меняет.
// Закрытое соединение в комнату не попадает: возвращается false.
func (r *RoomRegistry) Join(errandID uuid.UUID, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.isClosed() {
		return false
	}
	members, ok := r.rooms[errandID]
	if !ok {
		members = make(map[*Client]struct{})
		r.rooms[errandID] = members
	}
	members[c] = struct{}{}
	metrics.WSRooms.Set(float64(len(r.rooms)))
	return true
}

// Leave убирает соединение из одной комнаты.
func (r *RoomRegistry) Leave(errandID uuid.UUID, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveLocked(errandID, c)
	metrics.WSRooms.Set(float64(len(r.rooms)))
}

// LeaveAll убирает соединение из всех комнат и возвращает их идентификаторы.
func (r *RoomRegistry) LeaveAll(c *Client) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []uuid.UUID
	for errandID, members := range r.rooms {
		if _, ok := members[c]; ok {
			r.leaveLocked(errandID, c)
			left = append(left, errandID)
		}
	}
	metrics.WSRooms.Set(float64(len(r.rooms)))
	return left
}

func (r *RoomRegistry) leaveLocked(errandID uuid.UUID, c *Client) {
	members, ok := r.rooms[errandID]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(r.rooms, errandID)
	}
}

// Members возвращает снимок участников комнаты.
func (r *RoomRegistry) Members(errandID uuid.UUID) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[errandID]
	out := make([]*Client, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

func (r *RoomRegistry) IsMember(errandID uuid.UUID, c *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[errandID][c]
	return ok
}

// Len: число непустых комнат.
func (r *RoomRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
