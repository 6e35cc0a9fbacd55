package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis2 "FreightLink/service/storage/redis"
	"FreightLink/tools/errs"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ===== 配置 =====

type RegistryConfig struct {
	NodeID string           // 节点ID（参与key命名）
	Clock  func() time.Time // 可注入时钟（单测用）；nil => time.Now
}

func (c *RegistryConfig) norm() {
	if c.NodeID == "" {
		c.NodeID = "gateway"
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// Connection 一条存活 socket 的登记记录
type Connection struct {
	UserID        string
	SocketID      string
	ConnectedAt   time.Time
	LastHeartbeat time.Time
}

// ===== Lua 脚本 =====

// 心跳续期：仅当会话键仍存在时刷新
// KEYS[1] = conn hash key
// KEYS[2] = heartbeat index zset
// ARGV[1] = nowMS
// ARGV[2] = socketID
// 返回：1 刷新成功；0 会话不存在
const luaHeartbeat = `
local kConn = KEYS[1]
local zIdx  = KEYS[2]
if redis.call("EXISTS", kConn) == 0 then
  return 0
end
redis.call("HSET", kConn, "last_heartbeat", ARGV[1])
redis.call("ZADD", zIdx, ARGV[1], ARGV[2])
return 1
`

// 删除单连接（幂等）：DEL 会话键 + 双索引移除
// KEYS[1] = conn hash key
// KEYS[2] = heartbeat index zset
// KEYS[3] = user conns set
// ARGV[1] = socketID
// 返回：1=删掉了会话键；0=会话键不存在
const luaRemoveOne = `
local kConn = KEYS[1]
local existed = redis.call("DEL", kConn)
redis.call("ZREM", KEYS[2], ARGV[1])
redis.call("SREM", KEYS[3], ARGV[1])
return existed
`

// 清理过期心跳的连接，返回清理数量
// KEYS[1] = heartbeat index zset
// ARGV[1] = cutoffMS
// ARGV[2] = conn key prefix
// ARGV[3] = user set key prefix
const luaSweepStale = `
local zIdx    = KEYS[1]
local cutoff  = ARGV[1]
local victims = redis.call("ZRANGEBYSCORE", zIdx, "-inf", cutoff)
for _, sid in ipairs(victims) do
  local kConn = ARGV[2] .. sid
  local user  = redis.call("HGET", kConn, "user_id")
  if user then
    redis.call("SREM", ARGV[3] .. user, sid)
  end
  redis.call("DEL", kConn)
  redis.call("ZREM", zIdx, sid)
end
return #victims
`

// 在线判断：清掉用户索引里已消失的会话，再看剩余数量
// KEYS[1] = user conns set
// ARGV[1] = conn key prefix
const luaIsOnline = `
local sUser = KEYS[1]
local members = redis.call("SMEMBERS", sUser)
local live = 0
for _, sid in ipairs(members) do
  if redis.call("EXISTS", ARGV[1] .. sid) == 1 then
    live = live + 1
  else
    redis.call("SREM", sUser, sid)
  end
end
return live
`

// ConnRegistry ===== Store =====
//
// 持久化每条存活 socket（可观测性用途）。实时行为以内存状态为准：
// 这里的写失败只记录，不阻断连接生命周期。
type ConnRegistry struct {
	conf RegistryConfig

	luaHB     *redis.Script
	luaRemove *redis.Script
	luaSweep  *redis.Script
	luaOnline *redis.Script
}

func NewConnRegistry(conf RegistryConfig) *ConnRegistry {
	conf.norm()
	return &ConnRegistry{
		conf:      conf,
		luaHB:     redis.NewScript(luaHeartbeat),
		luaRemove: redis.NewScript(luaRemoveOne),
		luaSweep:  redis.NewScript(luaSweepStale),
		luaOnline: redis.NewScript(luaIsOnline),
	}
}

// ===== Key 构造 =====

func (r *ConnRegistry) connKeyPrefix() string {
	return fmt.Sprintf("fl:%s:conn:", r.conf.NodeID)
}

func (r *ConnRegistry) connKey(socketID string) string {
	return r.connKeyPrefix() + socketID
}

func (r *ConnRegistry) userSetPrefix() string {
	return fmt.Sprintf("fl:%s:uconns:", r.conf.NodeID)
}

func (r *ConnRegistry) userSetKey(userID string) string {
	return r.userSetPrefix() + userID
}

func (r *ConnRegistry) indexKey() string {
	return fmt.Sprintf("fl:%s:hbidx", r.conf.NodeID)
}

// ===== API =====

// CreateConnection 登记一条新 socket，lastHeartbeat = now。
func (r *ConnRegistry) CreateConnection(ctx context.Context, userID, socketID string) (*Connection, error) {
	if userID == "" || socketID == "" {
		return nil, errs.New("userID/socketID empty")
	}
	now := r.conf.Clock()
	nowMS := now.UnixMilli()

	pipe := redis2.GetRedis().TxPipeline()
	pipe.HSet(ctx, r.connKey(socketID),
		"user_id", userID,
		"connected_at", nowMS,
		"last_heartbeat", nowMS,
	)
	pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(nowMS), Member: socketID})
	pipe.SAdd(ctx, r.userSetKey(userID), socketID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errs.WrapMsg(err, "registry create", "user", userID, "socket", socketID)
	}
	return &Connection{
		UserID:        userID,
		SocketID:      socketID,
		ConnectedAt:   now,
		LastHeartbeat: now,
	}, nil
}

// UpdateHeartbeat 刷新 lastHeartbeat；连接已不存在时返回 false。
func (r *ConnRegistry) UpdateHeartbeat(ctx context.Context, socketID string) (bool, error) {
	nowMS := r.conf.Clock().UnixMilli()
	n, err := r.luaHB.Run(ctx, redis2.GetRedis(),
		[]string{r.connKey(socketID), r.indexKey()},
		nowMS, socketID,
	).Int()
	if err != nil {
		return false, errs.WrapMsg(err, "registry heartbeat", "socket", socketID)
	}
	return n == 1, nil
}

// RemoveConnection 删除登记（幂等：不存在时不报错）。
func (r *ConnRegistry) RemoveConnection(ctx context.Context, socketID string) error {
	userID, err := redis2.GetRedis().HGet(ctx, r.connKey(socketID), "user_id").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return errs.WrapMsg(err, "registry lookup", "socket", socketID)
	}
	_, err = r.luaRemove.Run(ctx, redis2.GetRedis(),
		[]string{r.connKey(socketID), r.indexKey(), r.userSetKey(userID)},
		socketID,
	).Int()
	if err != nil {
		return errs.WrapMsg(err, "registry remove", "socket", socketID)
	}
	return nil
}

// GetConnection 读取一条登记记录（不存在返回 nil）。
func (r *ConnRegistry) GetConnection(ctx context.Context, socketID string) (*Connection, error) {
	vals, err := redis2.GetRedis().HGetAll(ctx, r.connKey(socketID)).Result()
	if err != nil {
		return nil, errs.WrapMsg(err, "registry get", "socket", socketID)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return &Connection{
		UserID:        vals["user_id"],
		SocketID:      socketID,
		ConnectedAt:   msField(vals, "connected_at"),
		LastHeartbeat: msField(vals, "last_heartbeat"),
	}, nil
}

// IsUserOnline 该用户是否还有存活连接（顺带修剪失效索引）。
func (r *ConnRegistry) IsUserOnline(ctx context.Context, userID string) (bool, error) {
	n, err := r.luaOnline.Run(ctx, redis2.GetRedis(),
		[]string{r.userSetKey(userID)},
		r.connKeyPrefix(),
	).Int()
	if err != nil {
		return false, errs.WrapMsg(err, "registry online", "user", userID)
	}
	return n > 0, nil
}

// CleanupStale 删除心跳超龄的登记，返回清理数量。
// 兜底机制：socket 没走正常断开流程时由它回收。
func (r *ConnRegistry) CleanupStale(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := r.conf.Clock().Add(-maxAge).UnixMilli()
	n, err := r.luaSweep.Run(ctx, redis2.GetRedis(),
		[]string{r.indexKey()},
		cutoff, r.connKeyPrefix(), r.userSetPrefix(),
	).Int()
	if err != nil {
		return 0, errs.WrapMsg(err, "registry sweep")
	}
	return n, nil
}

func msField(vals map[string]string, key string) time.Time {
	ms, _ := strconv.ParseInt(vals[key], 10, 64)
	return time.UnixMilli(ms)
}
