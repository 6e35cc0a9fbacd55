package chat

import (
	"sync"
	"time"
)

// ===== 输入状态自动过期 =====

// TypingScheduler 为每个 (room,user) 维护一个过期定时器。
// 用户开始输入后 ttl 内没有后续动作，onExpire 回调负责广播停止输入。
type TypingScheduler struct {
	mu       sync.Mutex
	ttl      time.Duration
	onExpire func(roomID, userID string)
	timers   map[string]map[string]*time.Timer // roomID -> userID -> timer
}

func NewTypingScheduler(ttl time.Duration, onExpire func(roomID, userID string)) *TypingScheduler {
	return &TypingScheduler{
		ttl:      ttl,
		onExpire: onExpire,
		timers:   map[string]map[string]*time.Timer{},
	}
}

// Start 标记用户在房间内开始输入。重复 Start 重置过期时间。
func (s *TypingScheduler) Start(roomID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t := s.timers[roomID][userID]; t != nil {
		t.Stop()
	}
	if s.timers[roomID] == nil {
		s.timers[roomID] = map[string]*time.Timer{}
	}
	var timer *time.Timer
	timer = time.AfterFunc(s.ttl, func() {
		s.mu.Lock()
		// 过期回调可能与 Start/Cancel 竞争，只认当前登记的那只定时器
		if s.timers[roomID][userID] != timer {
			s.mu.Unlock()
			return
		}
		s.removeLocked(roomID, userID)
		s.mu.Unlock()
		s.onExpire(roomID, userID)
	})
	s.timers[roomID][userID] = timer
}

// Cancel 静默撤销输入状态（发消息、显式停止、离开房间时）。
// 返回此前是否处于输入中。
func (s *TypingScheduler) Cancel(roomID, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.timers[roomID][userID]
	if t == nil {
		return false
	}
	t.Stop()
	s.removeLocked(roomID, userID)
	return true
}

func (s *TypingScheduler) removeLocked(roomID, userID string) {
	delete(s.timers[roomID], userID)
	if len(s.timers[roomID]) == 0 {
		delete(s.timers, roomID)
	}
}

// Shutdown 停掉全部定时器，进程退出前调用。
func (s *TypingScheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for roomID, users := range s.timers {
		for userID, t := range users {
			t.Stop()
			delete(users, userID)
		}
		delete(s.timers, roomID)
	}
}
