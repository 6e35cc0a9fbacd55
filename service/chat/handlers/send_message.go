package handlers

import (
	"context"

	"FreightLink/global/config"
	chat "FreightLink/service/chat"
)

// SendMessageHandler 处理 send_message 帧，走限流/净化/落库/广播管道。
type SendMessageHandler struct{}

func NewSendMessageHandler() *SendMessageHandler { return &SendMessageHandler{} }

func (h *SendMessageHandler) Event() string { return chat.EventSendMessage }

func (h *SendMessageHandler) Handle(ctx *chat.HandlerContext, f *chat.Frame, c *chat.Client) error {
	p, err := chat.ExtractSendMessagePayload(f, config.MessagingGatewayConfig.MaxContentLen)
	if err != nil {
		return err
	}
	return ctx.Srv.SendMessage(context.Background(), c, p.FreightJobID, p.MessageContent)
}
