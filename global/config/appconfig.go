package config

import (
	"os"
	"strconv"
	"time"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MongoConfig struct {
	URI      string
	Database string
}

type NatsConfig struct {
	URL           string
	StatusSubject string
}

// AppConfig 网关节点配置
type AppConfig struct {
	NodeID   string
	HTTPAddr string

	JWTSecret string

	Redis RedisConfig
	Mongo MongoConfig
	Nats  NatsConfig

	// 限流：滑动窗口
	RateWindow      time.Duration
	RateMaxMessages int

	// typing 指示器自动过期
	TypingTTL time.Duration

	// 消息体上限（字符数）
	MaxContentLen int

	// 每连接发送队列 / 广播worker
	SendQueueSize int
	FanoutWorkers int
	FanoutQueue   int

	// 注册表心跳兜底清理
	StaleMaxAge  time.Duration
	CleanupEvery time.Duration
}

var MessagingGatewayConfig = AppConfig{
	NodeID:   "freight_gateway_01",
	HTTPAddr: ":8080",

	JWTSecret: "dev-secret",

	Redis: RedisConfig{Addr: "127.0.0.1:6379"},
	Mongo: MongoConfig{URI: "mongodb://127.0.0.1:27017", Database: "freightlink"},
	Nats:  NatsConfig{URL: "nats://127.0.0.1:4222", StatusSubject: "freightlink.status.update"},

	RateWindow:      60 * time.Second,
	RateMaxMessages: 30,

	TypingTTL: 3 * time.Second,

	MaxContentLen: 5000,

	SendQueueSize: 256,
	FanoutWorkers: 8,
	FanoutQueue:   1024,

	StaleMaxAge:  30 * time.Minute,
	CleanupEvery: 5 * time.Minute,
}

// Load 返回默认配置并叠加环境变量覆盖。
func Load() AppConfig {
	c := MessagingGatewayConfig

	setStr(&c.NodeID, "FL_NODE_ID")
	setStr(&c.HTTPAddr, "FL_HTTP_ADDR")
	setStr(&c.JWTSecret, "FL_JWT_SECRET")
	setStr(&c.Redis.Addr, "FL_REDIS_ADDR")
	setStr(&c.Redis.Password, "FL_REDIS_PASSWORD")
	setInt(&c.Redis.DB, "FL_REDIS_DB")
	setStr(&c.Mongo.URI, "FL_MONGO_URI")
	setStr(&c.Mongo.Database, "FL_MONGO_DB")
	setStr(&c.Nats.URL, "FL_NATS_URL")
	setStr(&c.Nats.StatusSubject, "FL_NATS_STATUS_SUBJECT")
	setInt(&c.RateMaxMessages, "FL_RATE_MAX_MESSAGES")
	setDur(&c.RateWindow, "FL_RATE_WINDOW")
	setDur(&c.TypingTTL, "FL_TYPING_TTL")
	setDur(&c.StaleMaxAge, "FL_STALE_MAX_AGE")
	setDur(&c.CleanupEvery, "FL_CLEANUP_EVERY")

	return c
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDur(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
