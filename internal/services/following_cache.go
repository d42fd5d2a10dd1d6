package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rankfeed/rankfeed/pkg/cache"
	"github.com/rankfeed/rankfeed/pkg/logger"
)

// 空集合也要缓存，用占位成员区分"没有关注"和"未缓存"
const followingPlaceholder = "-"

// FollowingCache 缓存用户关注的账号集合，首页时间线按它取作者
type FollowingCache struct {
	cache  *cache.RedisClient
	ttl    time.Duration
	logger *logger.Logger
}

func NewFollowingCache(cache *cache.RedisClient, ttl time.Duration, logger *logger.Logger) *FollowingCache {
	return &FollowingCache{
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func followingKey(userID uuid.UUID) string {
	return "following:" + userID.String()
}

// Get 未命中时 ok=false
func (c *FollowingCache) Get(ctx context.Context, userID uuid.UUID) (ids []uuid.UUID, ok bool) {
	if c == nil || c.cache == nil {
		return nil, false
	}
	members, err := c.cache.SMembers(ctx, followingKey(userID))
	if err != nil {
		c.logger.WithError(err).Warn("Failed to read following cache")
		return nil, false
	}
	if len(members) == 0 {
		return nil, false
	}
	ids = make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		if m == followingPlaceholder {
			continue
		}
		id, err := uuid.Parse(m)
		if err != nil {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

func (c *FollowingCache) Set(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) {
	if c == nil || c.cache == nil {
		return
	}
	members := make([]string, len(ids))
	for i, id := range ids {
		members[i] = id.String()
	}
	if err := c.cache.ReplaceSet(ctx, followingKey(userID), members, followingPlaceholder, c.ttl); err != nil {
		c.logger.WithError(err).Warn("Failed to write following cache")
	}
}

func (c *FollowingCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	if c == nil || c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx, followingKey(userID)); err != nil {
		c.logger.WithError(err).Warn("Failed to invalidate following cache")
	}
}
