// Package database 负责建立数据库连接和迁移表结构
// 支持 MySQL（默认）、PostgreSQL 和 SQLite，由 database.driver 决定
package database

import (
	"fmt"
	"log"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"casebook-server/internal/config"
	"casebook-server/internal/model"
)

// Open 根据配置打开数据库连接并配置连接池
// 参数:
//   - cfg: 应用配置
//
// 返回:
//   - *gorm.DB: 数据库连接
//   - error: 连接错误
func Open(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := Dialector(cfg.Database)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel(cfg)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.MaxLifetime) * time.Second)

	log.Printf("[INFO] Database connected (%s)", cfg.Database.Driver)
	return db, nil
}

// Dialector 根据驱动名构造 GORM 方言
func Dialector(c config.DatabaseConfig) (gorm.Dialector, error) {
	switch c.Driver {
	case "", "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
			c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(c.Path), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// AutoMigrate 自动迁移数据库表
func AutoMigrate(db *gorm.DB) error {
	log.Println("[INFO] Running database migrations...")

	if err := db.AutoMigrate(
		&model.User{},
		&model.Case{},
		&model.ChatSession{},
		&model.ChatMessage{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	log.Println("[INFO] Database migrations completed")
	return nil
}

// logLevel release 模式只记录警告，debug 模式记录全部 SQL
func logLevel(cfg *config.Config) logger.LogLevel {
	switch cfg.Log.Level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	}
	if cfg.Server.Mode == "release" {
		return logger.Warn
	}
	return logger.Info
}
