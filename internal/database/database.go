package database

import (
	"fmt"
	"sync"

	"mtsp/pkg/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB     *gorm.DB
	dbOnce sync.Once
)

// Initialize 初始化数据库连接
func Initialize(cfg *config.Config) error {
	var initErr error
	dbOnce.Do(func() {
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User,
			cfg.Database.Password, cfg.Database.DBName, cfg.Database.SSLMode)

		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			TranslateError: true, // 将驱动层唯一键冲突翻译为 gorm.ErrDuplicatedKey
		})
		if err != nil {
			initErr = fmt.Errorf("连接数据库失败: %v", err)
			return
		}

		DB = db
	})
	return initErr
}

// GetDB 获取数据库实例
func GetDB() *gorm.DB {
	return DB
}

// Close 关闭数据库连接
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
