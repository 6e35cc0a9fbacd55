package handlers

import (
	"context"

	chat "FreightLink/service/chat"
)

// PingHandler 处理应用层 ping，刷新心跳并回 pong。
type PingHandler struct{}

func NewPingHandler() *PingHandler { return &PingHandler{} }

func (h *PingHandler) Event() string { return chat.EventPing }

func (h *PingHandler) Handle(ctx *chat.HandlerContext, _ *chat.Frame, c *chat.Client) error {
	ctx.Srv.Heartbeat(context.Background(), c)
	return nil
}
