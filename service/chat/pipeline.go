package chat

import (
	"context"
	"time"

	"FreightLink/logger"
	errs "FreightLink/tools/errs"

	"go.uber.org/zap"
)

// ===== 消息发送管道 =====

// SendMessage 发消息的完整链路：限流 → 净化 → 落库 → 广播 → 撤销输入状态。
// 落库失败只回错误帧，绝不广播未持久化的内容。
// 在各自连接的读循环里串行调用，天然保证同一发送者的消息有序。
// 不校验发送者是否在房间里：鉴权在握手时做完，房间成员关系只决定广播落点。
func (s *Server) SendMessage(ctx context.Context, c *Client, freightJobID, content string) error {
	if !s.limiter.Allow(c.UserID) {
		return errs.ErrRateLimitExceeded.Wrap()
	}

	clean := Sanitize(content)
	if clean == "" {
		return errs.ErrValidation.WrapMsg("message empty after sanitizing")
	}

	persistCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	msg, err := s.store.Create(persistCtx, freightJobID, c.UserID, clean)
	if err != nil {
		logger.Error("persist message failed",
			zap.String("freightJobId", freightJobID),
			zap.String("senderId", c.UserID),
			zap.Error(err))
		return errs.ErrPersistence.WrapMsg("save message", "err", err)
	}

	// 发送成功视为停止输入，静默撤销定时器
	s.typing.Cancel(freightJobID, c.UserID)

	// 含发送者本人在内全房间广播，客户端以该帧作为发送回执
	s.BroadcastToRoom(freightJobID, BuildMessageEvent(msg), "")
	return nil
}
