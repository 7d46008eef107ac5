package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"resource-linker/internal/models"
)

// gormLedgerRepository 使用 GORM 实现 LedgerRepository。
type gormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GORM-based LedgerRepository.
func NewGormLedgerRepository(db *gorm.DB) LedgerRepository {
	return &gormLedgerRepository{db: db}
}

// IsAnnounced 检查文件名是否已有记录。
func (r *gormLedgerRepository) IsAnnounced(ctx context.Context, filename string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AnnouncedResource{}).
		Where("filename = ?", filename).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("查询发布记录 %s 失败: %w", filename, err)
	}
	return count > 0, nil
}

// MarkAnnounced 写入记录；同名文件再次发布时更新 objectId 和 URL。
func (r *gormLedgerRepository) MarkAnnounced(ctx context.Context, res *models.AnnouncedResource) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "filename"}},
		DoUpdates: clause.AssignmentColumns([]string{"object_id", "thumbnail_url_string", "file_url_string", "run_id", "status_code", "updated_at"}),
	}).Create(res).Error
	if err != nil {
		return fmt.Errorf("写入发布记录 %s 失败: %w", res.Filename, err)
	}
	return nil
}
