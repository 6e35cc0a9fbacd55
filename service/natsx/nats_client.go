package natsx

import (
	"context"
	"sync"
	"time"

	"FreightLink/tools/errs"

	"github.com/nats-io/nats.go"
)

// NatsxConfig 连接配置
type NatsxConfig struct {
	URL           string
	Name          string
	ConnectWait   time.Duration
	MaxReconnects int
}

func (c *NatsxConfig) norm() {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.ConnectWait <= 0 {
		c.ConnectWait = 5 * time.Second
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = -1 // 无限重连
	}
}

// NatsxMessage 投递给业务处理器的消息
type NatsxMessage struct {
	Subject string
	Data    []byte
	Header  map[string]string
}

// NatsxHandler 业务处理器
type NatsxHandler func(ctx context.Context, msg NatsxMessage) error

// NatsxClient Core NATS 客户端（订阅 + 发布）
type NatsxClient struct {
	nc *nats.Conn

	mu   sync.Mutex
	subs []*nats.Subscription
}

func NewNatsxClient(cfg NatsxConfig) (*NatsxClient, error) {
	cfg.norm()
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(cfg.ConnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
	)
	if err != nil {
		return nil, errs.WrapMsg(err, "nats connect", "url", cfg.URL)
	}
	return &NatsxClient{nc: nc}, nil
}

// Subscribe 订阅；queue 为空则广播订阅，非空则同组分摊
func (c *NatsxClient) Subscribe(subject, queue string, h NatsxHandler) error {
	if subject == "" || h == nil {
		return errs.New("subject/handler empty")
	}
	cb := func(m *nats.Msg) {
		_ = h(context.Background(), NatsxMessage{
			Subject: m.Subject,
			Data:    append([]byte(nil), m.Data...),
			Header:  headerToMap(m.Header),
		})
	}
	var (
		sub *nats.Subscription
		err error
	)
	if queue == "" {
		sub, err = c.nc.Subscribe(subject, cb)
	} else {
		sub, err = c.nc.QueueSubscribe(subject, queue, cb)
	}
	if err != nil {
		return errs.WrapMsg(err, "nats subscribe", "subject", subject)
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return nil
}

// Publish 发布原始负载
func (c *NatsxClient) Publish(subject string, data []byte) error {
	if err := c.nc.Publish(subject, data); err != nil {
		return errs.WrapMsg(err, "nats publish", "subject", subject)
	}
	return nil
}

// Close 优雅关闭订阅与连接
func (c *NatsxClient) Close() error {
	c.mu.Lock()
	for _, s := range c.subs {
		_ = s.Drain()
	}
	c.subs = nil
	c.mu.Unlock()
	if c.nc != nil {
		return c.nc.Drain()
	}
	return nil
}

func headerToMap(h nats.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
