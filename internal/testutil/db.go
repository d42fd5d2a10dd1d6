// Package testutil 测试用的内存数据库与缓存
package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rankfeed/rankfeed/internal/models"
	"github.com/rankfeed/rankfeed/pkg/cache"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB 每个测试独立的sqlite内存库。单连接保证所有语句看到同一个库，并发事务串行执行
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Follow{},
		&models.FollowRequest{},
		&models.Post{},
		&models.RankingList{},
		&models.FeedItem{},
		&models.Retweet{},
		&models.Like{},
	))
	return db
}

func NewRedis(t *testing.T) (*cache.RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := cache.NewRedisClient(mr.Addr(), "", 0, 5, 1)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

// CreateUser 直接写库创建用户
func CreateUser(t *testing.T, db *gorm.DB, username string, private bool) *models.User {
	t.Helper()
	user := &models.User{
		ExternalID:  "ext-" + username,
		Username:    username,
		DisplayName: username,
		IsPrivate:   private,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
