package chat

import (
	"context"
	"time"

	"FreightLink/global/config"
	"FreightLink/logger"
	chatmodel "FreightLink/module/chat/model"
	"FreightLink/service/storage"
	safe "FreightLink/tools/safe"
	sec "FreightLink/tools/security"

	"go.uber.org/zap"
)

// ===== 网关服务 =====

// MessageStore 消息落库接口，Mongo 实现见 module/chat/message。
type MessageStore interface {
	Create(ctx context.Context, freightJobID, senderID, content string) (*chatmodel.MessageModel, error)
}

// ConnectionRegistry 跨进程可见的连接登记（Redis 实现见 service/storage）。
// 登记失败只降级记日志，绝不影响连接本身的生死。
type ConnectionRegistry interface {
	CreateConnection(ctx context.Context, userID, socketID string) (*storage.Connection, error)
	UpdateHeartbeat(ctx context.Context, socketID string) (bool, error)
	RemoveConnection(ctx context.Context, socketID string) error
	CleanupStale(ctx context.Context, maxAge time.Duration) (int, error)
}

// Server 聚合网关的全部运行态：连接、房间、限流、输入状态、扇出。
type Server struct {
	conf config.AppConfig
	auth sec.Options

	conns   *ConnManager
	rooms   *RoomManager
	typing  *TypingScheduler
	limiter *RateLimiter
	fanout  *Fanout
	disp    *Dispatcher

	store MessageStore
	reg   ConnectionRegistry

	clock func() time.Time
}

func NewServer(conf config.AppConfig, store MessageStore, reg ConnectionRegistry) *Server {
	safe.MustNotNil(store, "message store")
	safe.MustNotNil(reg, "connection registry")

	s := &Server{
		conf:    conf,
		auth:    sec.DefaultOptions([]byte(conf.JWTSecret)),
		conns:   NewConnManager(ConnManagerConf{}),
		rooms:   NewRoomManager(),
		limiter: NewRateLimiter(conf.RateWindow, conf.RateMaxMessages, nil),
		fanout:  NewFanout(conf.FanoutWorkers, conf.FanoutQueue, 64),
		disp:    NewDispatcher(),
		store:   store,
		reg:     reg,
		clock:   time.Now,
	}
	s.typing = NewTypingScheduler(conf.TypingTTL, s.onTypingExpired)
	return s
}

func (s *Server) Dispatcher() *Dispatcher { return s.disp }
func (s *Server) Conns() *ConnManager     { return s.conns }
func (s *Server) Rooms() *RoomManager     { return s.rooms }

// BroadcastToRoom 把帧发给房间成员。exceptUserID 非空时跳过该用户的所有连接。
func (s *Server) BroadcastToRoom(roomID string, payload []byte, exceptUserID string) {
	members := s.rooms.Members(roomID)
	if exceptUserID != "" {
		kept := members[:0]
		for _, u := range members {
			if u != exceptUserID {
				kept = append(kept, u)
			}
		}
		members = kept
	}
	if len(members) == 0 {
		return
	}
	s.fanout.Dispatch(s.conns.ClientsForUsers(members), payload)
}

// BroadcastStatusUpdate 把货运单状态变更推给该房间的所有成员。
// 由 NATS 订阅回调触发，不经过房间成员校验之外的任何管道。
func (s *Server) BroadcastStatusUpdate(freightJobID string, status any) {
	s.BroadcastToRoom(freightJobID, BuildStatusUpdateEvent(freightJobID, status, s.clock()), "")
}

// JoinRoom 加入货运单房间。重复加入静默成功，不重复广播。
func (s *Server) JoinRoom(c *Client, freightJobID string) {
	if !s.rooms.Join(c.UserID, freightJobID) {
		return
	}
	logger.Info("user joined room",
		zap.String("userId", c.UserID),
		zap.String("freightJobId", freightJobID))
	s.BroadcastToRoom(freightJobID, BuildUserJoinedEvent(c.UserID, freightJobID, s.clock()), c.UserID)
}

// LeaveRoom 离开房间。未加入时为空操作。
func (s *Server) LeaveRoom(c *Client, freightJobID string) {
	if !s.rooms.Leave(c.UserID, freightJobID) {
		return
	}
	s.typing.Cancel(freightJobID, c.UserID)
	logger.Info("user left room",
		zap.String("userId", c.UserID),
		zap.String("freightJobId", freightJobID))
	s.BroadcastToRoom(freightJobID, BuildUserLeftEvent(c.UserID, freightJobID, s.clock()), c.UserID)
}

// SetTyping 输入状态上报。isTyping=true 启动（或重置）过期定时器，
// false 撤销定时器（有没有都一样）。两个方向都无条件广播给房间里的其他人。
func (s *Server) SetTyping(c *Client, freightJobID string, isTyping bool) {
	if isTyping {
		s.typing.Start(freightJobID, c.UserID)
	} else {
		s.typing.Cancel(freightJobID, c.UserID)
	}
	s.BroadcastToRoom(freightJobID, BuildTypingIndicatorEvent(c.UserID, freightJobID, isTyping), c.UserID)
}

func (s *Server) onTypingExpired(roomID, userID string) {
	s.BroadcastToRoom(roomID, BuildTypingIndicatorEvent(userID, roomID, false), userID)
}

// Heartbeat ping 帧：刷新 Redis 里的心跳并回 pong。
func (s *Server) Heartbeat(ctx context.Context, c *Client) {
	if _, err := s.reg.UpdateHeartbeat(ctx, c.SocketID); err != nil {
		logger.Warn("update heartbeat failed",
			zap.String("socketId", c.SocketID), zap.Error(err))
	}
	c.Enqueue(BuildPongEvent(s.clock()))
}

// handleDisconnect 连接收尾：逐房间走一遍 LeaveRoom 语义，再摘登记。
func (s *Server) handleDisconnect(c *Client) {
	for _, roomID := range s.rooms.DropUser(c.UserID) {
		s.typing.Cancel(roomID, c.UserID)
		s.BroadcastToRoom(roomID, BuildUserLeftEvent(c.UserID, roomID, s.clock()), c.UserID)
	}

	// 限流窗口跟用户走、不跟连接走：断线重连绕不开窗口，
	// 记账由 janitor 在窗口完全滑过后回收
	s.conns.Remove(c.SocketID)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.reg.RemoveConnection(ctx, c.SocketID); err != nil {
		logger.Warn("remove connection from registry failed",
			zap.String("socketId", c.SocketID), zap.Error(err))
	}
	c.CloseSend()
	logger.Info("client disconnected",
		zap.String("socketId", c.SocketID),
		zap.String("userId", c.UserID))
}

// RunJanitor 周期清理 Redis 里心跳停摆的连接。阻塞直到 ctx 取消。
func (s *Server) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(s.conf.CleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.PruneIdle()
			n, err := s.reg.CleanupStale(ctx, s.conf.StaleMaxAge)
			if err != nil {
				logger.Warn("stale connection sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("swept stale connections", zap.Int("count", n))
			}
		}
	}
}

// Shutdown 停掉定时器和扇出池，等在途广播投递完。
func (s *Server) Shutdown() {
	s.typing.Shutdown()
	s.fanout.Close()
	for _, c := range s.conns.All() {
		c.CloseSend()
	}
}
