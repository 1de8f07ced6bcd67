// Package cache 提供 Redis 缓存操作的封装
// 处理 JWT 黑名单以及服务端保存的病例草稿
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"casebook-server/internal/config"
	"casebook-server/internal/draft"
)

// RedisCache 封装 Redis 客户端，提供业务相关的缓存操作
type RedisCache struct {
	client *redis.Client // Redis 客户端实例
}

// NewRedisCache 根据配置创建 RedisCache 并测试连接
// 参数:
//   - cfg: 应用配置（包含 Redis 连接信息）
//
// 返回:
//   - *RedisCache: 缓存实例
//   - error: 连接错误
func NewRedisCache(cfg *config.Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// NewRedisCacheWithClient 使用已有的客户端创建 RedisCache
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Close 关闭 Redis 连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// ==================== JWT 黑名单 ====================

// BlacklistToken 将 Token 加入黑名单
// 登出时调用，使当前 Token 失效
// 参数:
//   - ctx: 上下文
//   - tokenHash: Token 的哈希值（不存储原始 Token）
//   - expireAt: Token 的原始过期时间
//
// 返回:
//   - error: Redis 操作错误
func (c *RedisCache) BlacklistToken(ctx context.Context, tokenHash string, expireAt time.Time) error {
	ttl := time.Until(expireAt)
	if ttl <= 0 {
		// 已过期的 Token 本身就无法通过验证
		return nil
	}
	return c.client.Set(ctx, blacklistKey(tokenHash), "1", ttl).Err()
}

// IsTokenBlacklisted 检查 Token 是否在黑名单中
// 参数:
//   - ctx: 上下文
//   - tokenHash: Token 的哈希值
//
// 返回:
//   - bool: 是否在黑名单中
//   - error: Redis 操作错误
func (c *RedisCache) IsTokenBlacklisted(ctx context.Context, tokenHash string) (bool, error) {
	n, err := c.client.Exists(ctx, blacklistKey(tokenHash)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func blacklistKey(tokenHash string) string {
	return fmt.Sprintf("jwt:blacklist:%s", tokenHash)
}

// ==================== 病例草稿 ====================
// 每个用户一份草稿，以 JSON 字符串保存，写入时刷新过期时间

// DraftSlot 返回用户的草稿槽位
// 参数:
//   - userID: 用户ID
//   - ttl: 草稿保留时间，<= 0 表示不过期
//
// 返回:
//   - *DraftSlot: 实现 draft.Slot
func (c *RedisCache) DraftSlot(userID int64, ttl time.Duration) *DraftSlot {
	if ttl < 0 {
		ttl = 0
	}
	return &DraftSlot{client: c.client, key: fmt.Sprintf("draft:user:%d", userID), ttl: ttl}
}

// DraftSlot 基于 Redis 的草稿槽位
type DraftSlot struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

var _ draft.Slot = (*DraftSlot)(nil)

// Load 读取草稿，不存在时返回 nil, nil
func (s *DraftSlot) Load(ctx context.Context) (*draft.Record, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var rec draft.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("草稿数据已损坏: %w", err)
	}
	return &rec, nil
}

// Save 覆盖保存草稿
func (s *DraftSlot) Save(ctx context.Context, rec *draft.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, data, s.ttl).Err()
}

// Clear 删除草稿
func (s *DraftSlot) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
