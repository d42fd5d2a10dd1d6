package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rankfeed/rankfeed/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CounterRepository 反范式计数列的全部写语句。只做带条件的增减，或在行锁下按关系表重算
type CounterRepository struct {
	db *gorm.DB
}

func NewCounterRepository(db *gorm.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

func (r *CounterRepository) WithTx(tx *gorm.DB) *CounterRepository {
	return &CounterRepository{db: tx}
}

func (r *CounterRepository) IncrementLikeCount(ctx context.Context, target models.LikeTarget, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Model(target.Model()).
		Where("id = ?", id).
		UpdateColumn("like_count", gorm.Expr("like_count + ?", 1)).Error; err != nil {
		return fmt.Errorf("failed to increment like count: %w", err)
	}
	return nil
}

// DecrementLikeCount 计数为0时不再减少，返回是否生效
func (r *CounterRepository) DecrementLikeCount(ctx context.Context, target models.LikeTarget, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(target.Model()).
		Where("id = ? AND like_count > 0", id).
		UpdateColumn("like_count", gorm.Expr("like_count - ?", 1))
	if result.Error != nil {
		return false, fmt.Errorf("failed to decrement like count: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *CounterRepository) IncrementQuoteCount(ctx context.Context, feedItemID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.FeedItem{}).
		Where("id = ?", feedItemID).
		UpdateColumn("quote_retweet_count", gorm.Expr("quote_retweet_count + ?", 1))
	if result.Error != nil {
		return false, fmt.Errorf("failed to increment quote count: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *CounterRepository) DecrementQuoteCount(ctx context.Context, feedItemID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.FeedItem{}).
		Where("id = ? AND quote_retweet_count > 0", feedItemID).
		UpdateColumn("quote_retweet_count", gorm.Expr("quote_retweet_count - ?", 1))
	if result.Error != nil {
		return false, fmt.Errorf("failed to decrement quote count: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ReconcileLikeCount 先锁住目标行再统计 likes 表，须在事务内调用。
// 加锁后的 COUNT 是新快照，并发的点赞事务要么已提交被计入，要么等锁后再做增量
func (r *CounterRepository) ReconcileLikeCount(ctx context.Context, target models.LikeTarget, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	found, err := r.lock(db, target.Model(), id)
	if err != nil || !found {
		return err
	}

	var count int64
	if err := db.Model(&models.Like{}).
		Where(target.Column()+" = ?", id).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count likes: %w", err)
	}
	if err := db.Model(target.Model()).
		Where("id = ?", id).
		UpdateColumn("like_count", count).Error; err != nil {
		return fmt.Errorf("failed to reconcile like count: %w", err)
	}
	return nil
}

// ReconcileQuoteCount 同 ReconcileLikeCount，须在事务内调用
func (r *CounterRepository) ReconcileQuoteCount(ctx context.Context, feedItemID uuid.UUID) error {
	db := r.db.WithContext(ctx)
	found, err := r.lock(db, &models.FeedItem{}, feedItemID)
	if err != nil || !found {
		return err
	}

	var count int64
	if err := db.Model(&models.FeedItem{}).
		Where("quoted_feed_item_id = ? AND type = ?", feedItemID, models.FeedItemQuoteRetweet).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count quotes: %w", err)
	}
	if err := db.Model(&models.FeedItem{}).
		Where("id = ?", feedItemID).
		UpdateColumn("quote_retweet_count", count).Error; err != nil {
		return fmt.Errorf("failed to reconcile quote count: %w", err)
	}
	return nil
}

// lock SELECT ... FOR UPDATE 锁住计数所在的行，行不存在时返回 false
func (r *CounterRepository) lock(db *gorm.DB, model interface{}, id uuid.UUID) (bool, error) {
	var ids []uuid.UUID
	if err := db.Model(model).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Pluck("id", &ids).Error; err != nil {
		return false, fmt.Errorf("failed to lock counter row: %w", err)
	}
	return len(ids) > 0, nil
}
