package handlers

import (
	chat "FreightLink/service/chat"
)

// TypingHandler 处理 typing 帧。
type TypingHandler struct{}

func NewTypingHandler() *TypingHandler { return &TypingHandler{} }

func (h *TypingHandler) Event() string { return chat.EventTyping }

func (h *TypingHandler) Handle(ctx *chat.HandlerContext, f *chat.Frame, c *chat.Client) error {
	p, err := chat.ExtractTypingPayload(f)
	if err != nil {
		return err
	}
	ctx.Srv.SetTyping(c, p.FreightJobID, p.IsTyping)
	return nil
}
