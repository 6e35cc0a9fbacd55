package chat

import (
	"sync"
	"time"
)

// ===== 发送频率限制（滑动窗口） =====

// RateLimiter 记录每个用户最近 window 内的发送时间戳，超过 max 条即拒绝。
// clock 可注入，便于测试。
type RateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	clock  func() time.Time
	hits   map[string][]time.Time
}

func NewRateLimiter(window time.Duration, max int, clock func() time.Time) *RateLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &RateLimiter{
		window: window,
		max:    max,
		clock:  clock,
		hits:   map[string][]time.Time{},
	}
}

// Allow 尝试为 userID 记一次发送。窗口内已满时返回 false 且不记账，
// 拒绝不会延长用户的等待时间。
func (r *RateLimiter) Allow(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	kept := r.hits[userID][:0]
	for _, ts := range r.hits[userID] {
		if now.Sub(ts) < r.window {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= r.max {
		r.hits[userID] = kept
		return false
	}
	r.hits[userID] = append(kept, now)
	return true
}

// PruneIdle 回收所有记录都已滑出窗口的用户，返回回收个数。
// 只删过期账目，在窗口内的用户不受影响。
func (r *RateLimiter) PruneIdle() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	pruned := 0
	for userID, hits := range r.hits {
		live := false
		for _, ts := range hits {
			if now.Sub(ts) < r.window {
				live = true
				break
			}
		}
		if !live {
			delete(r.hits, userID)
			pruned++
		}
	}
	return pruned
}
