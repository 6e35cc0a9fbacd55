package handlers

import (
	chat "FreightLink/service/chat"
)

// LeaveRoomHandler 处理 leave_room 帧。
type LeaveRoomHandler struct{}

func NewLeaveRoomHandler() *LeaveRoomHandler { return &LeaveRoomHandler{} }

func (h *LeaveRoomHandler) Event() string { return chat.EventLeaveRoom }

func (h *LeaveRoomHandler) Handle(ctx *chat.HandlerContext, f *chat.Frame, c *chat.Client) error {
	p, err := chat.ExtractRoomPayload(f)
	if err != nil {
		return err
	}
	ctx.Srv.LeaveRoom(c, p.FreightJobID)
	return nil
}
