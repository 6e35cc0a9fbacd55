package chat

import (
	"sync"
	"time"

	"FreightLink/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ===== 连接管理 =====

// Client 一条已认证的 websocket 连接。
// Send 是写泵的出站队列，业务侧只投递、不直接写 socket。
type Client struct {
	SocketID    string
	UserID      string
	WS          *websocket.Conn
	Send        chan []byte
	ConnectedAt time.Time

	mu     sync.Mutex
	closed bool
}

func NewClient(socketID, userID string, ws *websocket.Conn, queueSize int, now time.Time) *Client {
	return &Client{
		SocketID:    socketID,
		UserID:      userID,
		WS:          ws,
		Send:        make(chan []byte, queueSize),
		ConnectedAt: now,
	}
}

// Enqueue 非阻塞投递。队列满说明对端读得太慢，丢弃该帧而不是拖垮广播方。
// 与 CloseSend 互斥：扇出 worker 手里还攥着这个 client 时关闭连接也不会
// 向已关闭的 channel 发送。
func (c *Client) Enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- payload:
		return true
	default:
		logger.Warn("send queue full, drop frame",
			zap.String("socketId", c.SocketID),
			zap.String("userId", c.UserID))
		return false
	}
}

// CloseSend 关闭出站队列，让写泵退出。可重复调用。
func (c *Client) CloseSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// ConnManagerConf 连接管理器配置。
type ConnManagerConf struct {
	Clock func() time.Time // 为空用 time.Now
}

func (c *ConnManagerConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// ConnManager 本节点内存中的连接索引：socketId 唯一、一个用户可挂多条连接。
type ConnManager struct {
	conf ConnManagerConf

	mu       sync.RWMutex
	bySocket map[string]*Client
	byUser   map[string]map[string]*Client // userID -> socketID -> client
}

func NewConnManager(conf ConnManagerConf) *ConnManager {
	conf.norm()
	return &ConnManager{
		conf:     conf,
		bySocket: map[string]*Client{},
		byUser:   map[string]map[string]*Client{},
	}
}

func (m *ConnManager) Now() time.Time { return m.conf.Clock() }

func (m *ConnManager) Add(c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bySocket[c.SocketID] = c
	if m.byUser[c.UserID] == nil {
		m.byUser[c.UserID] = map[string]*Client{}
	}
	m.byUser[c.UserID][c.SocketID] = c
}

// Remove 按 socketId 摘除，重复摘除返回 nil（幂等）。
func (m *ConnManager) Remove(socketID string) *Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.bySocket[socketID]
	if !ok {
		return nil
	}
	delete(m.bySocket, socketID)
	delete(m.byUser[c.UserID], socketID)
	if len(m.byUser[c.UserID]) == 0 {
		delete(m.byUser, c.UserID)
	}
	return c
}

func (m *ConnManager) Get(socketID string) *Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bySocket[socketID]
}

// CountForUser 用户当前还挂着几条连接。
func (m *ConnManager) CountForUser(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser[userID])
}

// ClientsForUsers 取这批用户的全部连接快照，广播前调用。
func (m *ConnManager) ClientsForUsers(userIDs []string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Client, 0, len(userIDs))
	for _, userID := range userIDs {
		for _, c := range m.byUser[userID] {
			out = append(out, c)
		}
	}
	return out
}

func (m *ConnManager) All() []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Client, 0, len(m.bySocket))
	for _, c := range m.bySocket {
		out = append(out, c)
	}
	return out
}
