package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rankfeed/rankfeed/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RetweetRepository struct {
	db *gorm.DB
}

func NewRetweetRepository(db *gorm.DB) *RetweetRepository {
	return &RetweetRepository{db: db}
}

func (r *RetweetRepository) WithTx(tx *gorm.DB) *RetweetRepository {
	return &RetweetRepository{db: tx}
}

// Create 唯一索引冲突时不插入，返回是否新建
func (r *RetweetRepository) Create(ctx context.Context, retweet *models.Retweet) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "feed_item_id"}},
			DoNothing: true,
		}).
		Create(retweet)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create retweet: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *RetweetRepository) Delete(ctx context.Context, userID, feedItemID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND feed_item_id = ?", userID, feedItemID).
		Delete(&models.Retweet{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete retweet: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *RetweetRepository) DeleteByFeedItem(ctx context.Context, feedItemID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("feed_item_id = ?", feedItemID).
		Delete(&models.Retweet{}).Error; err != nil {
		return fmt.Errorf("failed to delete retweets: %w", err)
	}
	return nil
}

func (r *RetweetRepository) Exists(ctx context.Context, userID, feedItemID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Retweet{}).
		Where("user_id = ? AND feed_item_id = ?", userID, feedItemID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check retweet: %w", err)
	}
	return count > 0, nil
}

type retweetCount struct {
	FeedItemID uuid.UUID
	Count      int64
}

// CountByFeedItems 实时统计转发数，不走计数列
func (r *RetweetRepository) CountByFeedItems(ctx context.Context, feedItemIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	result := make(map[uuid.UUID]int64, len(feedItemIDs))
	if len(feedItemIDs) == 0 {
		return result, nil
	}
	var rows []retweetCount
	if err := r.db.WithContext(ctx).
		Model(&models.Retweet{}).
		Select("feed_item_id, COUNT(*) AS count").
		Where("feed_item_id IN ?", feedItemIDs).
		Group("feed_item_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count retweets: %w", err)
	}
	for _, row := range rows {
		result[row.FeedItemID] = row.Count
	}
	return result, nil
}

func (r *RetweetRepository) RetweetedSet(ctx context.Context, userID uuid.UUID, feedItemIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	result := make(map[uuid.UUID]bool, len(feedItemIDs))
	if len(feedItemIDs) == 0 {
		return result, nil
	}
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Retweet{}).
		Where("user_id = ? AND feed_item_id IN ?", userID, feedItemIDs).
		Pluck("feed_item_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to get retweeted set: %w", err)
	}
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}
