package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix は他のアプリケーションとキー空間を分けるための接頭辞。
const redisKeyPrefix = "newsdeck:newsapi:"

// RedisStore はRedisCacheが使用するコマンドの部分集合。*redis.Client が満たす。
type RedisStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisCache はRedisを使用した複数インスタンス共有のキャッシュ。
// 値はJSONで保存し、有効期限はRedisのEXで管理する。
type RedisCache struct {
	client RedisStore
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache はRedisCacheを生成する。ttlが0以下の場合は既定値を用いる。
func NewRedisCache(client RedisStore, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// Get はキャッシュを参照する。Redisのエラーはミスとして扱う。
func (c *RedisCache) Get(ctx context.Context, key string) ([]Article, bool) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Redisキャッシュの取得に失敗しました",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}

	var articles []Article
	if err := json.Unmarshal(raw, &articles); err != nil {
		c.logger.Warn("Redisキャッシュの値のパースに失敗しました",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return articles, true
}

// Set はエントリを保存する。空の結果は保存しない。
func (c *RedisCache) Set(ctx context.Context, key string, articles []Article) {
	if len(articles) == 0 {
		return
	}

	raw, err := json.Marshal(articles)
	if err != nil {
		c.logger.Warn("キャッシュ値のエンコードに失敗しました",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := c.client.Set(ctx, redisKeyPrefix+key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Redisキャッシュの保存に失敗しました",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

var (
	_ Cache      = (*RedisCache)(nil)
	_ RedisStore = (*redis.Client)(nil)
)
