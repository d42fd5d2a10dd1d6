package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rankfeed/rankfeed/internal/apperrors"
	"github.com/rankfeed/rankfeed/internal/config"
	"github.com/rankfeed/rankfeed/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const pgUniqueViolation = "23505"

type Database struct {
	*gorm.DB
}

func NewDatabase(cfg *config.DatabaseConfig) (*Database, error) {
	logLevel := logger.Warn
	if cfg.LogSQL {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logLevel),
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)

	return &Database{db}, nil
}

// Wrap 用已打开的连接构造，测试里传入sqlite
func Wrap(db *gorm.DB) *Database {
	return &Database{db}
}

func (db *Database) AutoMigrate() error {
	return db.DB.AutoMigrate(
		&models.User{},
		&models.Follow{},
		&models.FollowRequest{},
		&models.Post{},
		&models.RankingList{},
		&models.FeedItem{},
		&models.Retweet{},
		&models.Like{},
	)
}

// Transaction 在事务中执行fn。首次因连接断开失败时重连并整体重跑一次，
// 返回的错误已映射为 apperrors 分类
func (db *Database) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := db.DB.WithContext(ctx).Transaction(fn)
	if err == nil {
		return nil
	}
	if !IsTransient(err) || ctx.Err() != nil {
		return MapError(err)
	}

	db.reconnect(ctx)
	return MapError(db.DB.WithContext(ctx).Transaction(fn))
}

func (db *Database) reconnect(ctx context.Context) {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return
	}
	// database/sql 会丢弃坏连接，Ping 触发重新建连
	_ = sqlDB.PingContext(ctx)
}

func (db *Database) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (db *Database) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsTransient 连接中断类错误，可以整体重试
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, net.ErrClosed) {
		return true
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	// sqlite 驱动未翻译时的兜底
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// MapError 把存储层错误归类，已分类的错误原样返回
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.Wrap(apperrors.KindNotFound, "record not found", err)
	case isUniqueViolation(err):
		return apperrors.Wrap(apperrors.KindConflict, "duplicate record", err)
	case IsTransient(err):
		return apperrors.Transient(err)
	}
	return apperrors.Internal(err)
}
