package storage

import (
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"resource-linker/internal/config"
	"resource-linker/internal/models"
)

// InitDB initializes the database connection using the provided configuration.
func InitDB(cfg config.DatabaseConfig, debug bool) (*gorm.DB, error) {
	var dsnParts []string
	dsnParts = append(dsnParts, fmt.Sprintf("host=%s", cfg.Host))
	dsnParts = append(dsnParts, fmt.Sprintf("port=%d", cfg.Port))
	dsnParts = append(dsnParts, fmt.Sprintf("user=%s", cfg.User))
	dsnParts = append(dsnParts, fmt.Sprintf("dbname=%s", cfg.DBName))
	if cfg.Password != "" {
		dsnParts = append(dsnParts, fmt.Sprintf("password=%s", cfg.Password))
	}
	dsnParts = append(dsnParts, fmt.Sprintf("sslmode=%s", cfg.SSLMode))
	dsn := strings.Join(dsnParts, " ")

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newGormLogger(debug),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newGormLogger 把 SQL 日志写到标准日志输出（stderr），stdout 只留给服务器响应。
func newGormLogger(debug bool) logger.Interface {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	return logger.New(
		log.New(log.Writer(), "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// AutoMigrateTables runs GORM's auto-migration for the ledger table.
func AutoMigrateTables(db *gorm.DB) error {
	log.Println("开始数据库表结构迁移...")
	if err := db.AutoMigrate(&models.AnnouncedResource{}); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	log.Println("数据库迁移完成。")
	return nil
}
