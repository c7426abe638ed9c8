package mysql

import (
	"log"
	"sync"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/example/gochatroom/internal/config"
	"github.com/example/gochatroom/internal/datamodels/chatroom"
	"github.com/example/gochatroom/internal/datamodels/member"
)

var (
	db   *gorm.DB
	once sync.Once
)

// Init 初始化全局 GORM 实例并自动迁移表结构。
// TranslateError 开启后唯一索引冲突以 gorm.ErrDuplicatedKey 暴露，
// 1:1 聊天室的并发去重依赖这一点。
func Init(cfg *config.MySQLConfig) *gorm.DB {
	once.Do(func() {
		var err error
		db, err = gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{TranslateError: true})
		if err != nil {
			log.Fatalf("failed to connect mysql: %v", err)
		}

		if err = AutoMigrate(db); err != nil {
			log.Fatalf("auto migrate failed: %v", err)
		}
	})
	return db
}

// AutoMigrate 迁移聊天相关全部表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&member.Member{},
		&chatroom.Room{},
		&chatroom.RoomMember{},
		&chatroom.Message{},
	)
}

// DB 获取全局 DB
func DB() *gorm.DB {
	return db
}
