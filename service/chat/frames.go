package chat

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	chatmodel "FreightLink/module/chat/model"
	decode "FreightLink/tools/decode"
	errs "FreightLink/tools/errs"

	"github.com/google/uuid"
)

// ===== 事件协议 =====

// C→S
const (
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventSendMessage = "send_message"
	EventTyping      = "typing"
	EventPing        = "ping"
)

// S→C
const (
	EventMessage         = "message"
	EventUserJoined      = "user_joined"
	EventUserLeft        = "user_left"
	EventTypingIndicator = "typing_indicator"
	EventError           = "error"
	EventStatusUpdate    = "status_update"
	EventPong            = "pong"
)

// Frame 一条双向事件帧（JSON over websocket）。
type Frame struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

func ParseFrameJSON(raw []byte) (*Frame, error) {
	frame := &Frame{}
	if err := json.Unmarshal(raw, frame); err != nil {
		return nil, fmt.Errorf("unmarshal frame failed: %w", err)
	}
	if frame.Event == "" {
		return nil, fmt.Errorf("frame missing event")
	}
	return frame, nil
}

// ===== C→S 负载 =====

type RoomPayload struct {
	FreightJobID string `json:"freightJobId"`
}

type SendMessagePayload struct {
	FreightJobID   string `json:"freightJobId"`
	MessageContent string `json:"messageContent"`
}

type TypingPayload struct {
	FreightJobID string `json:"freightJobId"`
	IsTyping     bool   `json:"isTyping"`
}

func ExtractRoomPayload(f *Frame) (*RoomPayload, error) {
	p, err := decode.DecodeMap[RoomPayload](f.Data)
	if err != nil {
		return nil, errs.ErrValidation.WrapMsg("bad payload", "event", f.Event)
	}
	if err := ValidateFreightJobID(p.FreightJobID); err != nil {
		return nil, err
	}
	return p, nil
}

func ExtractSendMessagePayload(f *Frame, maxContentLen int) (*SendMessagePayload, error) {
	p, err := decode.DecodeMap[SendMessagePayload](f.Data)
	if err != nil {
		return nil, errs.ErrValidation.WrapMsg("bad payload", "event", f.Event)
	}
	if err := ValidateFreightJobID(p.FreightJobID); err != nil {
		return nil, err
	}
	if p.MessageContent == "" {
		return nil, errs.ErrValidation.WrapMsg("empty messageContent")
	}
	// 上限按字符数算，多字节文本不吃亏
	if utf8.RuneCountInString(p.MessageContent) > maxContentLen {
		return nil, errs.ErrValidation.WrapMsg("messageContent too long", "max", maxContentLen)
	}
	return p, nil
}

func ExtractTypingPayload(f *Frame) (*TypingPayload, error) {
	p, err := decode.DecodeMap[TypingPayload](f.Data)
	if err != nil {
		return nil, errs.ErrValidation.WrapMsg("bad payload", "event", f.Event)
	}
	if err := ValidateFreightJobID(p.FreightJobID); err != nil {
		return nil, err
	}
	return p, nil
}

// ValidateFreightJobID 房间ID必须是 UUID。
func ValidateFreightJobID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errs.ErrValidation.WrapMsg("freightJobId not a uuid", "id", id)
	}
	return nil
}

// ---- 构造服务端下行帧 ----

func marshalFrame(event string, data any) []byte {
	b, err := json.Marshal(struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{Event: event, Data: data})
	if err != nil {
		// data 均为本包构造的可序列化结构，到这里属于编程错误
		panic(err)
	}
	return b
}

func BuildMessageEvent(m *chatmodel.MessageModel) []byte {
	return marshalFrame(EventMessage, map[string]any{
		"id":             m.ID,
		"freightJobId":   m.FreightJobID,
		"senderId":       m.SenderID,
		"messageContent": m.Content,
		"sentAt":         m.SentAt,
	})
}

func BuildUserJoinedEvent(userID, freightJobID string, ts time.Time) []byte {
	return marshalFrame(EventUserJoined, map[string]any{
		"userId":       userID,
		"freightJobId": freightJobID,
		"timestamp":    ts,
	})
}

func BuildUserLeftEvent(userID, freightJobID string, ts time.Time) []byte {
	return marshalFrame(EventUserLeft, map[string]any{
		"userId":       userID,
		"freightJobId": freightJobID,
		"timestamp":    ts,
	})
}

func BuildTypingIndicatorEvent(userID, freightJobID string, isTyping bool) []byte {
	return marshalFrame(EventTypingIndicator, map[string]any{
		"userId":       userID,
		"freightJobId": freightJobID,
		"isTyping":     isTyping,
	})
}

func BuildErrorEvent(msg string) []byte {
	return marshalFrame(EventError, map[string]any{"message": msg})
}

func BuildStatusUpdateEvent(freightJobID string, status any, ts time.Time) []byte {
	return marshalFrame(EventStatusUpdate, map[string]any{
		"freightJobId": freightJobID,
		"status":       status,
		"timestamp":    ts,
	})
}

func BuildPongEvent(ts time.Time) []byte {
	return marshalFrame(EventPong, map[string]any{"timestamp": ts})
}
