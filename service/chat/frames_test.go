package chat

import (
	"strings"
	"testing"

	errs "FreightLink/tools/errs"
)

const testJobID = "8c5f1f6e-3f2a-4e97-9a57-0d2f8a3f7f10"

func TestParseFrameJSON(t *testing.T) {
	f, err := ParseFrameJSON([]byte(`{"event":"join_room","data":{"freightJobId":"` + testJobID + `"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if f.Event != EventJoinRoom {
		t.Fatalf("event = %q", f.Event)
	}
	if f.Data["freightJobId"] != testJobID {
		t.Fatalf("data = %v", f.Data)
	}

	if _, err := ParseFrameJSON([]byte(`not json`)); err == nil {
		t.Fatal("garbage must not parse")
	}
	if _, err := ParseFrameJSON([]byte(`{"data":{}}`)); err == nil {
		t.Fatal("missing event must be rejected")
	}
}

func TestExtractRoomPayloadRejectsBadUUID(t *testing.T) {
	f := &Frame{Event: EventJoinRoom, Data: map[string]any{"freightJobId": "not-a-uuid"}}
	if _, err := ExtractRoomPayload(f); !errs.IsCode(err, errs.ValidationErrorCode) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestExtractSendMessagePayload(t *testing.T) {
	f := &Frame{Event: EventSendMessage, Data: map[string]any{
		"freightJobId":   testJobID,
		"messageContent": "hello",
	}}
	p, err := ExtractSendMessagePayload(f, 100)
	if err != nil {
		t.Fatal(err)
	}
	if p.MessageContent != "hello" || p.FreightJobID != testJobID {
		t.Fatalf("payload = %+v", p)
	}

	f.Data["messageContent"] = strings.Repeat("x", 101)
	if _, err := ExtractSendMessagePayload(f, 100); !errs.IsCode(err, errs.ValidationErrorCode) {
		t.Fatalf("oversize content must fail validation, got %v", err)
	}

	f.Data["messageContent"] = ""
	if _, err := ExtractSendMessagePayload(f, 100); err == nil {
		t.Fatal("empty content must fail")
	}
}

// 长度上限按字符数而不是字节数，多字节文本不提前出局。
func TestExtractSendMessagePayloadCountsRunes(t *testing.T) {
	f := &Frame{Event: EventSendMessage, Data: map[string]any{
		"freightJobId":   testJobID,
		"messageContent": strings.Repeat("货", 10), // 30 字节，10 个字符
	}}
	if _, err := ExtractSendMessagePayload(f, 10); err != nil {
		t.Fatalf("10 runes within a 10-rune limit must pass: %v", err)
	}

	f.Data["messageContent"] = strings.Repeat("货", 11)
	if _, err := ExtractSendMessagePayload(f, 10); !errs.IsCode(err, errs.ValidationErrorCode) {
		t.Fatalf("11 runes must fail validation, got %v", err)
	}
}

func TestExtractTypingPayload(t *testing.T) {
	f := &Frame{Event: EventTyping, Data: map[string]any{
		"freightJobId": testJobID,
		"isTyping":     true,
	}}
	p, err := ExtractTypingPayload(f)
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsTyping {
		t.Fatal("isTyping lost in decode")
	}
}

func TestBuildEventsRoundTrip(t *testing.T) {
	b := BuildErrorEvent("boom")
	f, err := ParseFrameJSON(b)
	if err != nil {
		t.Fatal(err)
	}
	if f.Event != EventError || f.Data["message"] != "boom" {
		t.Fatalf("frame = %+v", f)
	}

	b = BuildTypingIndicatorEvent("u1", testJobID, true)
	f, _ = ParseFrameJSON(b)
	if f.Event != EventTypingIndicator || f.Data["userId"] != "u1" || f.Data["isTyping"] != true {
		t.Fatalf("frame = %+v", f)
	}
}
