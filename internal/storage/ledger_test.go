package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"resource-linker/internal/config"
	"resource-linker/internal/models"
)

func TestMemoryLedgerRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLedgerRepository()

	ok, err := repo.IsAnnounced(ctx, "x.png")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.MarkAnnounced(ctx, &models.AnnouncedResource{Filename: "x.png", ObjectID: "abc"}))

	ok, err = repo.IsAnnounced(ctx, "x.png")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsAnnounced(ctx, "y.png")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewLedgerRepositoryInProcessTypes(t *testing.T) {
	ctx := context.Background()

	repo, closeFn, err := NewLedgerRepository(ctx, config.Config{Ledger: config.LedgerConfig{Type: config.LedgerNone}})
	require.NoError(t, err)
	assert.Nil(t, repo)
	closeFn()

	repo, closeFn, err = NewLedgerRepository(ctx, config.Config{Ledger: config.LedgerConfig{Type: config.LedgerMemory}})
	require.NoError(t, err)
	assert.NotNil(t, repo)
	closeFn()

	_, closeFn, err = NewLedgerRepository(ctx, config.Config{Ledger: config.LedgerConfig{Type: "mongo"}})
	assert.Error(t, err)
	closeFn()
}

func TestRedisLedgerRepository(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	repo := NewRedisLedgerRepository(client)

	ok, err := repo.IsAnnounced(ctx, "x.png")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.MarkAnnounced(ctx, &models.AnnouncedResource{Filename: "x.png", ObjectID: "first"}))
	ok, err = repo.IsAnnounced(ctx, "x.png")
	require.NoError(t, err)
	assert.True(t, ok)

	// 第二次写入不会覆盖第一次的记录
	require.NoError(t, repo.MarkAnnounced(ctx, &models.AnnouncedResource{Filename: "x.png", ObjectID: "second"}))
	raw, err := mr.Get(announcedKeyPrefix + "x.png")
	require.NoError(t, err)
	var stored models.AnnouncedResource
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, "first", stored.ObjectID)
	assert.Equal(t, time.Duration(0), mr.TTL(announcedKeyPrefix+"x.png"))
}

func TestRedisLedgerRepositoryUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	repo := NewRedisLedgerRepository(client)
	mr.Close()

	_, err := repo.IsAnnounced(context.Background(), "x.png")
	assert.Error(t, err)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "ledger.db")), &gorm.Config{
		Logger: newGormLogger(false),
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrateTables(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestGormLedgerRepository(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewGormLedgerRepository(db)

	ok, err := repo.IsAnnounced(ctx, "x.png")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.MarkAnnounced(ctx, &models.AnnouncedResource{
		Filename: "x.png", ObjectID: "first", RunID: "run-1", StatusCode: 201,
		ThumbnailURLString: "t/x.png", FileURLString: "f/x.png",
	}))
	ok, err = repo.IsAnnounced(ctx, "x.png")
	require.NoError(t, err)
	assert.True(t, ok)

	// 同名文件再次写入时更新已有行
	require.NoError(t, repo.MarkAnnounced(ctx, &models.AnnouncedResource{
		Filename: "x.png", ObjectID: "second", RunID: "run-2", StatusCode: 201,
		ThumbnailURLString: "t2/x.png", FileURLString: "f2/x.png",
	}))

	var rows []models.AnnouncedResource
	require.NoError(t, db.Where("filename = ?", "x.png").Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "second", rows[0].ObjectID)
	assert.Equal(t, "run-2", rows[0].RunID)
	assert.Equal(t, "t2/x.png", rows[0].ThumbnailURLString)
	assert.Equal(t, "f2/x.png", rows[0].FileURLString)

	ok, err = repo.IsAnnounced(ctx, "y.png")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGormLoggerWritesToLogOutput(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })

	newGormLogger(false).Warn(context.Background(), "slow query %s", "SELECT 1")
	assert.Contains(t, buf.String(), "slow query SELECT 1")
}
