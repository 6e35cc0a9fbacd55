package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"FreightLink/global/config"
	chatmodel "FreightLink/module/chat/model"
	"FreightLink/service/storage"
	errs "FreightLink/tools/errs"
)

// ---- 测试替身 ----

type fakeStore struct {
	mu      sync.Mutex
	created []*chatmodel.MessageModel
	fail    error
}

func (f *fakeStore) Create(_ context.Context, freightJobID, senderID, content string) (*chatmodel.MessageModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	m := &chatmodel.MessageModel{
		ID:           "m1",
		FreightJobID: freightJobID,
		SenderID:     senderID,
		Content:      content,
		SentAt:       time.Now().UTC(),
	}
	f.created = append(f.created, m)
	return m, nil
}

func (f *fakeStore) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type fakeRegistry struct {
	mu      sync.Mutex
	removed []string
}

func (f *fakeRegistry) CreateConnection(_ context.Context, userID, socketID string) (*storage.Connection, error) {
	return &storage.Connection{UserID: userID, SocketID: socketID}, nil
}

func (f *fakeRegistry) UpdateHeartbeat(context.Context, string) (bool, error) { return true, nil }

func (f *fakeRegistry) RemoveConnection(_ context.Context, socketID string) error {
	f.mu.Lock()
	f.removed = append(f.removed, socketID)
	f.mu.Unlock()
	return nil
}

func (f *fakeRegistry) CleanupStale(context.Context, time.Duration) (int, error) { return 0, nil }

func testConf() config.AppConfig {
	conf := config.MessagingGatewayConfig
	conf.TypingTTL = 40 * time.Millisecond
	conf.SendQueueSize = 16
	conf.FanoutWorkers = 2
	conf.FanoutQueue = 16
	return conf
}

func newTestServer(t *testing.T, store MessageStore) (*Server, *fakeRegistry) {
	t.Helper()
	if store == nil {
		store = &fakeStore{}
	}
	reg := &fakeRegistry{}
	s := NewServer(testConf(), store, reg)
	t.Cleanup(s.Shutdown)
	return s, reg
}

func addClient(s *Server, socketID, userID string) *Client {
	c := testClient(socketID, userID, 16)
	s.Conns().Add(c)
	return c
}

// recvFrame 带超时地从出站队列读一帧。
func recvFrame(t *testing.T, c *Client) *Frame {
	t.Helper()
	select {
	case b, ok := <-c.Send:
		if !ok {
			t.Fatal("send channel closed")
		}
		f, err := ParseFrameJSON(b)
		if err != nil {
			t.Fatalf("bad outbound frame: %v", err)
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame within timeout")
	}
	return nil
}

func expectNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case b := <-c.Send:
		t.Fatalf("unexpected frame: %s", b)
	case <-time.After(80 * time.Millisecond):
	}
}

// ---- 用例 ----

func TestJoinRoomBroadcastsToOthersOnly(t *testing.T) {
	s, _ := newTestServer(t, nil)
	u1 := addClient(s, "s1", "u1")
	u2 := addClient(s, "s2", "u2")

	s.JoinRoom(u1, testJobID)
	expectNoFrame(t, u1) // 房间里没别人

	s.JoinRoom(u2, testJobID)
	f := recvFrame(t, u1)
	if f.Event != EventUserJoined || f.Data["userId"] != "u2" {
		t.Fatalf("frame = %+v", f)
	}
	expectNoFrame(t, u2) // 不回给本人

	// 重复加入不重复广播
	s.JoinRoom(u2, testJobID)
	expectNoFrame(t, u1)
}

func TestLeaveRoomBroadcastsUserLeft(t *testing.T) {
	s, _ := newTestServer(t, nil)
	u1 := addClient(s, "s1", "u1")
	u2 := addClient(s, "s2", "u2")
	s.JoinRoom(u1, testJobID)
	s.JoinRoom(u2, testJobID)
	recvFrame(t, u1) // user_joined(u2)

	s.LeaveRoom(u2, testJobID)
	f := recvFrame(t, u1)
	if f.Event != EventUserLeft || f.Data["userId"] != "u2" {
		t.Fatalf("frame = %+v", f)
	}

	// 没加入时离开是空操作
	s.LeaveRoom(u2, testJobID)
	expectNoFrame(t, u1)
}

func TestSendMessageReachesEveryoneIncludingSender(t *testing.T) {
	store := &fakeStore{}
	s, _ := newTestServer(t, store)
	u1 := addClient(s, "s1", "u1")
	u2 := addClient(s, "s2", "u2")
	s.JoinRoom(u1, testJobID)
	s.JoinRoom(u2, testJobID)
	recvFrame(t, u1) // user_joined(u2)

	if err := s.SendMessage(context.Background(), u1, testJobID, "<script>x()</script>hello"); err != nil {
		t.Fatal(err)
	}

	for _, c := range []*Client{u1, u2} {
		f := recvFrame(t, c)
		if f.Event != EventMessage {
			t.Fatalf("event = %q", f.Event)
		}
		if f.Data["messageContent"] != "hello" {
			t.Fatalf("content not sanitized: %v", f.Data["messageContent"])
		}
		if f.Data["senderId"] != "u1" {
			t.Fatalf("senderId = %v", f.Data["senderId"])
		}
	}
	if store.createdCount() != 1 {
		t.Fatalf("store.created = %d", store.createdCount())
	}
}

// 发消息不做房间成员校验：鉴权在握手时已做完，成员关系只决定广播落点。
func TestSendMessageFromNonMemberReachesRoom(t *testing.T) {
	store := &fakeStore{}
	s, _ := newTestServer(t, store)
	u1 := addClient(s, "s1", "u1")
	u2 := addClient(s, "s2", "u2")
	s.JoinRoom(u1, testJobID) // u2 不进房间

	if err := s.SendMessage(context.Background(), u2, testJobID, "from outside"); err != nil {
		t.Fatal(err)
	}
	f := recvFrame(t, u1)
	if f.Event != EventMessage || f.Data["senderId"] != "u2" {
		t.Fatalf("frame = %+v", f)
	}
	// 发送者不在房间里，收不到自己的回显
	expectNoFrame(t, u2)
	if store.createdCount() != 1 {
		t.Fatalf("store.created = %d", store.createdCount())
	}
}

func TestSendMessagePersistFailureNotBroadcast(t *testing.T) {
	store := &fakeStore{fail: errs.New("mongo down")}
	s, _ := newTestServer(t, store)
	u1 := addClient(s, "s1", "u1")
	u2 := addClient(s, "s2", "u2")
	s.JoinRoom(u1, testJobID)
	s.JoinRoom(u2, testJobID)
	recvFrame(t, u1)

	err := s.SendMessage(context.Background(), u1, testJobID, "hello")
	if !errs.IsCode(err, errs.PersistenceErrorCode) {
		t.Fatalf("want persistence error, got %v", err)
	}
	expectNoFrame(t, u1)
	expectNoFrame(t, u2)
}

func TestSendMessageRateLimited(t *testing.T) {
	conf := testConf()
	conf.RateMaxMessages = 1
	reg := &fakeRegistry{}
	s := NewServer(conf, &fakeStore{}, reg)
	t.Cleanup(s.Shutdown)

	u1 := addClient(s, "s1", "u1")
	s.JoinRoom(u1, testJobID)

	if err := s.SendMessage(context.Background(), u1, testJobID, "one"); err != nil {
		t.Fatal(err)
	}
	recvFrame(t, u1)

	err := s.SendMessage(context.Background(), u1, testJobID, "two")
	if !errs.IsCode(err, errs.RateLimitExceededCode) {
		t.Fatalf("want rate limit error, got %v", err)
	}
	expectNoFrame(t, u1)
}

func TestTypingIndicatorFlow(t *testing.T) {
	s, _ := newTestServer(t, nil)
	u1 := addClient(s, "s1", "u1")
	u2 := addClient(s, "s2", "u2")
	s.JoinRoom(u1, testJobID)
	s.JoinRoom(u2, testJobID)
	recvFrame(t, u1)

	s.SetTyping(u2, testJobID, true)
	f := recvFrame(t, u1)
	if f.Event != EventTypingIndicator || f.Data["isTyping"] != true {
		t.Fatalf("frame = %+v", f)
	}
	expectNoFrame(t, u2) // 不回给输入者本人

	// TTL 之后自动广播停止输入
	f = recvFrame(t, u1)
	if f.Event != EventTypingIndicator || f.Data["isTyping"] != false {
		t.Fatalf("auto expiry frame = %+v", f)
	}
}

// typing 同样不做成员校验，非成员的上报照常广播给房间。
func TestTypingFromNonMemberReachesRoom(t *testing.T) {
	s, _ := newTestServer(t, nil)
	u1 := addClient(s, "s1", "u1")
	u2 := addClient(s, "s2", "u2")
	s.JoinRoom(u1, testJobID)

	s.SetTyping(u2, testJobID, true)
	f := recvFrame(t, u1)
	if f.Event != EventTypingIndicator || f.Data["userId"] != "u2" || f.Data["isTyping"] != true {
		t.Fatalf("frame = %+v", f)
	}
}

// 显式 false 不管有没有在跑的定时器都要广播停止。
func TestTypingExplicitFalseAlwaysBroadcast(t *testing.T) {
	s, _ := newTestServer(t, nil)
	u1 := addClient(s, "s1", "u1")
	u2 := addClient(s, "s2", "u2")
	s.JoinRoom(u1, testJobID)
	s.JoinRoom(u2, testJobID)
	recvFrame(t, u1) // user_joined(u2)

	s.SetTyping(u2, testJobID, false) // 此前从未上报过 true
	f := recvFrame(t, u1)
	if f.Event != EventTypingIndicator || f.Data["isTyping"] != false {
		t.Fatalf("frame = %+v", f)
	}
}

// 断线重连不能重置滑动窗口。
func TestRateLimitSurvivesReconnect(t *testing.T) {
	conf := testConf()
	conf.RateMaxMessages = 1
	s := NewServer(conf, &fakeStore{}, &fakeRegistry{})
	t.Cleanup(s.Shutdown)

	u1a := addClient(s, "s1", "u1")
	s.JoinRoom(u1a, testJobID)
	if err := s.SendMessage(context.Background(), u1a, testJobID, "one"); err != nil {
		t.Fatal(err)
	}
	recvFrame(t, u1a)

	s.handleDisconnect(u1a)

	u1b := addClient(s, "s1b", "u1")
	s.JoinRoom(u1b, testJobID)
	err := s.SendMessage(context.Background(), u1b, testJobID, "two")
	if !errs.IsCode(err, errs.RateLimitExceededCode) {
		t.Fatalf("sliding window was reset by disconnect: %v", err)
	}
}

// 广播还在扇出队列里时断开目标连接，进程不能崩。
func TestDisconnectDuringFanout(t *testing.T) {
	conf := testConf()
	conf.RateMaxMessages = 1000
	store := &fakeStore{}
	s := NewServer(conf, store, &fakeRegistry{})
	t.Cleanup(s.Shutdown)
	u1 := addClient(s, "s1", "u1")
	u2 := addClient(s, "s2", "u2")
	s.JoinRoom(u1, testJobID)
	s.JoinRoom(u2, testJobID)
	recvFrame(t, u1)

	for i := 0; i < 50; i++ {
		if err := s.SendMessage(context.Background(), u1, testJobID, "burst"); err != nil {
			t.Fatal(err)
		}
	}
	s.handleDisconnect(u2) // 投递与关闭竞争，不应 panic
	time.Sleep(50 * time.Millisecond)
}

func TestSendMessageCancelsTyping(t *testing.T) {
	s, _ := newTestServer(t, nil)
	u1 := addClient(s, "s1", "u1")
	u2 := addClient(s, "s2", "u2")
	s.JoinRoom(u1, testJobID)
	s.JoinRoom(u2, testJobID)
	recvFrame(t, u1)

	s.SetTyping(u2, testJobID, true)
	f := recvFrame(t, u1)
	if f.Data["isTyping"] != true {
		t.Fatalf("frame = %+v", f)
	}

	if err := s.SendMessage(context.Background(), u2, testJobID, "done typing"); err != nil {
		t.Fatal(err)
	}
	f = recvFrame(t, u1)
	if f.Event != EventMessage {
		t.Fatalf("event = %q", f.Event)
	}
	// 定时器已静默撤销，不再出现 isTyping=false
	expectNoFrame(t, u1)
}

func TestDisconnectLeavesRoomsAndUnregisters(t *testing.T) {
	s, reg := newTestServer(t, nil)
	u1 := addClient(s, "s1", "u1")
	u2 := addClient(s, "s2", "u2")
	s.JoinRoom(u1, testJobID)
	s.JoinRoom(u2, testJobID)
	recvFrame(t, u1)

	s.handleDisconnect(u2)

	f := recvFrame(t, u1)
	if f.Event != EventUserLeft || f.Data["userId"] != "u2" {
		t.Fatalf("frame = %+v", f)
	}
	if s.Rooms().IsMember(testJobID, "u2") {
		t.Fatal("u2 should be out of the room")
	}
	if s.Conns().Get("s2") != nil {
		t.Fatal("connection should be removed")
	}
	reg.mu.Lock()
	removed := len(reg.removed)
	reg.mu.Unlock()
	if removed != 1 || reg.removed[0] != "s2" {
		t.Fatalf("registry removals = %v", reg.removed)
	}
}

func TestBroadcastStatusUpdate(t *testing.T) {
	s, _ := newTestServer(t, nil)
	u1 := addClient(s, "s1", "u1")
	u2 := addClient(s, "s2", "u2")
	s.JoinRoom(u1, testJobID)
	s.JoinRoom(u2, testJobID)
	recvFrame(t, u1)

	s.BroadcastStatusUpdate(testJobID, "DELIVERED")

	for _, c := range []*Client{u1, u2} {
		f := recvFrame(t, c)
		if f.Event != EventStatusUpdate || f.Data["status"] != "DELIVERED" {
			t.Fatalf("frame = %+v", f)
		}
	}
}
