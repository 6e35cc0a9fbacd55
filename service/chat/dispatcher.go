package chat

import (
	"FreightLink/logger"
	errs "FreightLink/tools/errs"

	"go.uber.org/zap"
)

// ===== 事件分发 =====

// HandlerContext 传给帧处理器的运行环境。
type HandlerContext struct {
	Srv *Server
}

// FrameHandler 一类客户端事件的处理器。
type FrameHandler interface {
	Event() string
	Handle(ctx *HandlerContext, f *Frame, c *Client) error
}

type Dispatcher struct {
	handlers map[string]FrameHandler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: map[string]FrameHandler{}}
}

func (d *Dispatcher) Register(h FrameHandler) {
	d.handlers[h.Event()] = h
}

// Dispatch 路由一帧。处理器 panic 只打掉这一帧，不打掉连接。
func (d *Dispatcher) Dispatch(ctx *HandlerContext, f *Frame, c *Client) {
	h, ok := d.handlers[f.Event]
	if !ok {
		c.Enqueue(BuildErrorEvent("unknown event: " + f.Event))
		return
	}
	defer func() {
		if p := recover(); p != nil {
			logger.Error("handler panic",
				zap.String("event", f.Event),
				zap.String("socketId", c.SocketID),
				zap.Any("panic", p))
			c.Enqueue(BuildErrorEvent(errs.ErrInternal.Msg))
		}
	}()
	if err := h.Handle(ctx, f, c); err != nil {
		logger.Warn("handle event failed",
			zap.String("event", f.Event),
			zap.String("userId", c.UserID),
			zap.Error(err))
		c.Enqueue(BuildErrorEvent(clientMessage(err)))
	}
}

// clientMessage 只把错误分类文案下发给客户端，细节留在日志里。
func clientMessage(err error) string {
	if ce, ok := errs.Unwrap(err); ok {
		return ce.Msg
	}
	return errs.ErrInternal.Msg
}
