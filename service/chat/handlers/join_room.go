package handlers

import (
	chat "FreightLink/service/chat"
)

// JoinRoomHandler 处理 join_room 帧。
type JoinRoomHandler struct{}

func NewJoinRoomHandler() *JoinRoomHandler { return &JoinRoomHandler{} }

func (h *JoinRoomHandler) Event() string { return chat.EventJoinRoom }

func (h *JoinRoomHandler) Handle(ctx *chat.HandlerContext, f *chat.Frame, c *chat.Client) error {
	p, err := chat.ExtractRoomPayload(f)
	if err != nil {
		return err
	}
	ctx.Srv.JoinRoom(c, p.FreightJobID)
	return nil
}
