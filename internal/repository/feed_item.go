package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rankfeed/rankfeed/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeedItemRepository 时间线条目。读取时带上作者、帖子、榜单投影
type FeedItemRepository struct {
	db *gorm.DB
}

func NewFeedItemRepository(db *gorm.DB) *FeedItemRepository {
	return &FeedItemRepository{db: db}
}

func (r *FeedItemRepository) WithTx(tx *gorm.DB) *FeedItemRepository {
	return &FeedItemRepository{db: tx}
}

func withProjections(db *gorm.DB) *gorm.DB {
	return db.Preload("User").Preload("Post").Preload("RankingList")
}

func (r *FeedItemRepository) Create(ctx context.Context, item *models.FeedItem) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error; err != nil {
		return fmt.Errorf("failed to create feed item: %w", err)
	}
	return nil
}

func (r *FeedItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.FeedItem, error) {
	var item models.FeedItem
	if err := withProjections(r.db.WithContext(ctx)).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get feed item: %w", err)
	}
	return &item, nil
}

func (r *FeedItemRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.FeedItem, error) {
	result := make(map[uuid.UUID]*models.FeedItem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var items []*models.FeedItem
	if err := withProjections(r.db.WithContext(ctx)).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to get feed items: %w", err)
	}
	for _, item := range items {
		result[item.ID] = item
	}
	return result, nil
}

// UpsertRankingUpdate 首次发布插入条目，之后只刷新 updated_at
func (r *FeedItemRepository) UpsertRankingUpdate(ctx context.Context, userID, rankingListID uuid.UUID) (*models.FeedItem, error) {
	item, err := models.NewFeedItem(userID, models.RankingUpdateContent{RankingListID: rankingListID})
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ranking_list_id"}, {Name: "type"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"updated_at": time.Now()}),
		}).
		Omit(clause.Associations).
		Create(item).Error; err != nil {
		return nil, fmt.Errorf("failed to upsert ranking update: %w", err)
	}
	return r.GetRankingUpdate(ctx, rankingListID)
}

func (r *FeedItemRepository) GetRankingUpdate(ctx context.Context, rankingListID uuid.UUID) (*models.FeedItem, error) {
	var item models.FeedItem
	if err := r.db.WithContext(ctx).
		Where("ranking_list_id = ? AND type = ?", rankingListID, models.FeedItemRankingUpdate).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ranking update: %w", err)
	}
	return &item, nil
}

func (r *FeedItemRepository) GetRetweetItem(ctx context.Context, userID, originID uuid.UUID) (*models.FeedItem, error) {
	var item models.FeedItem
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND retweet_of_feed_item_id = ? AND type = ?", userID, originID, models.FeedItemRetweet).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get retweet item: %w", err)
	}
	return &item, nil
}

func (r *FeedItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&models.FeedItem{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete feed item: %w", err)
	}
	return nil
}

func (r *FeedItemRepository) DeleteRetweetItem(ctx context.Context, userID, originID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND retweet_of_feed_item_id = ? AND type = ?", userID, originID, models.FeedItemRetweet).
		Delete(&models.FeedItem{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete retweet item: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DeleteRetweetsOf 删除原条目的所有 RETWEET 条目
func (r *FeedItemRepository) DeleteRetweetsOf(ctx context.Context, originID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("retweet_of_feed_item_id = ? AND type = ?", originID, models.FeedItemRetweet).
		Delete(&models.FeedItem{}).Error; err != nil {
		return fmt.Errorf("failed to delete retweet items: %w", err)
	}
	return nil
}

// ByUsers 多个作者的条目合并，按时间倒序
func (r *FeedItemRepository) ByUsers(ctx context.Context, userIDs []uuid.UUID, page PageRequest) (Page[*models.FeedItem], error) {
	if len(userIDs) == 0 {
		return Page[*models.FeedItem]{Items: []*models.FeedItem{}}, nil
	}
	query, err := keyset(withProjections(r.db.WithContext(ctx)).Where("feed_items.user_id IN ?", userIDs), "feed_items", page)
	if err != nil {
		return Page[*models.FeedItem]{}, err
	}
	var items []*models.FeedItem
	if err := query.Find(&items).Error; err != nil {
		return Page[*models.FeedItem]{}, fmt.Errorf("failed to list feed items: %w", err)
	}
	return trimPage(items, page, func(f *models.FeedItem) uuid.UUID { return f.ID }), nil
}

// ForPosts 帖子被点赞时对应的条目：普通帖子或引用转发的评论
func (r *FeedItemRepository) ForPosts(ctx context.Context, postIDs []uuid.UUID) (map[uuid.UUID]*models.FeedItem, error) {
	result := make(map[uuid.UUID]*models.FeedItem, len(postIDs))
	if len(postIDs) == 0 {
		return result, nil
	}
	var items []*models.FeedItem
	if err := withProjections(r.db.WithContext(ctx)).
		Where("post_id IN ? AND type IN ?", postIDs, []models.FeedItemType{models.FeedItemPost, models.FeedItemQuoteRetweet}).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to get post items: %w", err)
	}
	for _, item := range items {
		result[*item.PostID] = item
	}
	return result, nil
}

func (r *FeedItemRepository) ForRankingLists(ctx context.Context, rankingListIDs []uuid.UUID) (map[uuid.UUID]*models.FeedItem, error) {
	result := make(map[uuid.UUID]*models.FeedItem, len(rankingListIDs))
	if len(rankingListIDs) == 0 {
		return result, nil
	}
	var items []*models.FeedItem
	if err := withProjections(r.db.WithContext(ctx)).
		Where("ranking_list_id IN ? AND type = ?", rankingListIDs, models.FeedItemRankingUpdate).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to get ranking items: %w", err)
	}
	for _, item := range items {
		result[*item.RankingListID] = item
	}
	return result, nil
}
