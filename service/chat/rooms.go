package chat

import "sync"

// ===== 房间与在场关系 =====

// RoomManager 维护 user↔room 双向索引。房间即货运单（freightJobId），
// 不需要显式创建，最后一个成员离开后自动消失。
type RoomManager struct {
	mu        sync.RWMutex
	userRooms map[string]map[string]struct{}
	roomUsers map[string]map[string]struct{}
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		userRooms: map[string]map[string]struct{}{},
		roomUsers: map[string]map[string]struct{}{},
	}
}

// Join 将用户加入房间，已在房间内时返回 false（幂等，不重复广播）。
func (m *RoomManager) Join(userID, roomID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.userRooms[userID][roomID]; ok {
		return false
	}
	if m.userRooms[userID] == nil {
		m.userRooms[userID] = map[string]struct{}{}
	}
	if m.roomUsers[roomID] == nil {
		m.roomUsers[roomID] = map[string]struct{}{}
	}
	m.userRooms[userID][roomID] = struct{}{}
	m.roomUsers[roomID][userID] = struct{}{}
	return true
}

// Leave 将用户移出房间，本来就不在时返回 false。
func (m *RoomManager) Leave(userID, roomID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaveLocked(userID, roomID)
}

func (m *RoomManager) leaveLocked(userID, roomID string) bool {
	if _, ok := m.userRooms[userID][roomID]; !ok {
		return false
	}
	delete(m.userRooms[userID], roomID)
	if len(m.userRooms[userID]) == 0 {
		delete(m.userRooms, userID)
	}
	delete(m.roomUsers[roomID], userID)
	if len(m.roomUsers[roomID]) == 0 {
		delete(m.roomUsers, roomID)
	}
	return true
}

// DropUser 把用户从所有房间移出，返回其原先所在的房间列表。
func (m *RoomManager) DropUser(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	rooms := make([]string, 0, len(m.userRooms[userID]))
	for roomID := range m.userRooms[userID] {
		rooms = append(rooms, roomID)
	}
	for _, roomID := range rooms {
		m.leaveLocked(userID, roomID)
	}
	return rooms
}

func (m *RoomManager) IsMember(roomID, userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.roomUsers[roomID][userID]
	return ok
}

// Members 返回房间成员快照。
func (m *RoomManager) Members(roomID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]string, 0, len(m.roomUsers[roomID]))
	for userID := range m.roomUsers[roomID] {
		users = append(users, userID)
	}
	return users
}

func (m *RoomManager) Rooms(userID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rooms := make([]string, 0, len(m.userRooms[userID]))
	for roomID := range m.userRooms[userID] {
		rooms = append(rooms, roomID)
	}
	return rooms
}
