package handlers

import (
	chat "FreightLink/service/chat"
)

// RegisterAll 把全部客户端事件处理器挂到分发器上。
func RegisterAll(d *chat.Dispatcher) {
	d.Register(NewJoinRoomHandler())
	d.Register(NewLeaveRoomHandler())
	d.Register(NewSendMessageHandler())
	d.Register(NewTypingHandler())
	d.Register(NewPingHandler())
}
