package server

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// DefaultRoom 客户端未指定房间时使用，不会被回收
const DefaultRoom = "main"

// ErrTooManyRooms 新建房间会超出上限时返回
var ErrTooManyRooms = errors.New("room limit reached")

// RoomManager 管理运行中的房间。房间一直 Tick，直到 manager 的 ctx 取消或空置过久；
// 停止的房间从表中移除，需要时重新创建
type RoomManager struct {
	ctx      context.Context
	cfg      RoomConfig
	maxRooms int // 0 表示不限
	mu       sync.RWMutex
	rooms    map[string]*Room
}

func NewRoomManager(ctx context.Context, cfg RoomConfig, maxRooms int) *RoomManager {
	return &RoomManager{ctx: ctx, cfg: cfg, maxRooms: maxRooms, rooms: make(map[string]*Room)}
}

// GetOrCreateRoom 返回指定名字的运行中房间，不存在则启动
func (m *RoomManager) GetOrCreateRoom(id string) (*Room, error) {
	if id == "" {
		id = DefaultRoom
	}
	m.mu.RLock()
	r, ok := m.rooms[id]
	m.mu.RUnlock()
	if ok && !r.Stopped() {
		return r, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok = m.rooms[id]
	if ok && !r.Stopped() {
		return r, nil
	}
	if !ok && m.maxRooms > 0 && len(m.rooms) >= m.maxRooms {
		return nil, ErrTooManyRooms
	}
	r = NewRoom(id, m.cfg)
	r.keepAlive = id == DefaultRoom
	m.rooms[id] = r
	r.StartTicker(m.ctx)
	go m.forget(r)
	Log.Infow("room created", "room", id, "tick_interval", r.step)
	return r, nil
}

// forget 房间停止后将其移出表（已被替换则不动）
func (m *RoomManager) forget(r *Room) {
	<-r.Done()
	m.mu.Lock()
	if m.rooms[r.ID] == r {
		delete(m.rooms, r.ID)
	}
	m.mu.Unlock()
}

// Get 返回已存在的房间，不创建
func (m *RoomManager) Get(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// IDs 按名字排序列出房间
func (m *RoomManager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
