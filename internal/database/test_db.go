package database

import (
	"game-license-pool/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func InitTestDB() {
	var err error
	DB, err = gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{TranslateError: true})
	if err != nil {
		panic("failed to connect test database")
	}

	// 单连接串行化写入，避免内存库并发测试时报 SQLITE_BUSY
	if sqlDB, err := DB.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	// 自动迁移测试数据库
	err = DB.AutoMigrate(&model.User{}, &model.License{}, &model.LicenseUsage{}, &model.OperationLog{}, &model.LoginLog{})
	if err != nil {
		panic("failed to migrate test database")
	}
}

func CleanTestDB() {
	sqlDB, err := DB.DB()
	if err != nil {
		return
	}
	sqlDB.Close()
}
