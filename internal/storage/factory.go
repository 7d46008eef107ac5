package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"resource-linker/internal/config"
)

// NewLedgerRepository 根据配置创建账本。返回的 close 函数总是非 nil。
// LEDGER.TYPE 为 none 时返回 nil 仓库。
func NewLedgerRepository(ctx context.Context, cfg config.Config) (LedgerRepository, func(), error) {
	noop := func() {}

	switch cfg.Ledger.Type {
	case config.LedgerNone, "":
		return nil, noop, nil
	case config.LedgerMemory:
		return NewMemoryLedgerRepository(), noop, nil
	case config.LedgerPostgres:
		db, err := InitDB(cfg.Database, cfg.Parse.Debug)
		if err != nil {
			return nil, noop, err
		}
		if err := AutoMigrateTables(db); err != nil {
			return nil, noop, err
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		log.Println("发布记录使用 PostgreSQL 存储。")
		return NewGormLedgerRepository(db), closeFn, nil
	case config.LedgerRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if _, err := client.Ping(ctx).Result(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("无法连接到 Redis: %w", err)
		}
		log.Println("发布记录使用 Redis 存储。")
		return NewRedisLedgerRepository(client), func() { _ = client.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("不支持的账本类型: %s", cfg.Ledger.Type)
	}
}
