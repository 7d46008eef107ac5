package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"resource-linker/internal/models"
)

const announcedKeyPrefix = "res:announced:"

// redisLedgerRepository 是 LedgerRepository 的 Redis 实现，每个文件名一个键。
type redisLedgerRepository struct {
	client *redis.Client
}

// NewRedisLedgerRepository creates a Redis backed LedgerRepository.
func NewRedisLedgerRepository(client *redis.Client) LedgerRepository {
	return &redisLedgerRepository{client: client}
}

func (r *redisLedgerRepository) IsAnnounced(ctx context.Context, filename string) (bool, error) {
	n, err := r.client.Exists(ctx, announcedKeyPrefix+filename).Result()
	if err != nil {
		return false, fmt.Errorf("从 Redis 查询发布记录失败 for %s: %w", filename, err)
	}
	return n > 0, nil
}

func (r *redisLedgerRepository) MarkAnnounced(ctx context.Context, res *models.AnnouncedResource) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("编码发布记录失败: %w", err)
	}
	// 只保留第一次发布的记录，不设置过期时间
	if err := r.client.SetNX(ctx, announcedKeyPrefix+res.Filename, payload, 0).Err(); err != nil {
		return fmt.Errorf("写入 Redis 发布记录失败 for %s: %w", res.Filename, err)
	}
	return nil
}
