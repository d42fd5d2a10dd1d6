package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rankfeed/rankfeed/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LikeRepository struct {
	db *gorm.DB
}

func NewLikeRepository(db *gorm.DB) *LikeRepository {
	return &LikeRepository{db: db}
}

func (r *LikeRepository) WithTx(tx *gorm.DB) *LikeRepository {
	return &LikeRepository{db: tx}
}

func (r *LikeRepository) Create(ctx context.Context, like *models.Like) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(like).Error; err != nil {
		return fmt.Errorf("failed to create like: %w", err)
	}
	return nil
}

// Delete 返回是否真的删除了记录
func (r *LikeRepository) Delete(ctx context.Context, userID uuid.UUID, target models.LikeTarget, targetID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND "+target.Column()+" = ?", userID, targetID).
		Delete(&models.Like{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete like: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *LikeRepository) Get(ctx context.Context, userID uuid.UUID, target models.LikeTarget, targetID uuid.UUID) (*models.Like, error) {
	var like models.Like
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND "+target.Column()+" = ?", userID, targetID).
		First(&like).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get like: %w", err)
	}
	return &like, nil
}

func (r *LikeRepository) Count(ctx context.Context, target models.LikeTarget, targetID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where(target.Column()+" = ?", targetID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}
	return count, nil
}

// LikedSet 在给定目标中返回 userID 点过赞的集合
func (r *LikeRepository) LikedSet(ctx context.Context, userID uuid.UUID, target models.LikeTarget, targetIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	result := make(map[uuid.UUID]bool, len(targetIDs))
	if len(targetIDs) == 0 {
		return result, nil
	}
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND "+target.Column()+" IN ?", userID, targetIDs).
		Pluck(target.Column(), &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to get liked set: %w", err)
	}
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}

// ByUser 用户点过的赞，游标是 like ID
func (r *LikeRepository) ByUser(ctx context.Context, userID uuid.UUID, page PageRequest) (Page[*models.Like], error) {
	return r.list(r.db.WithContext(ctx).Where("user_id = ?", userID), page)
}

// ByTarget 目标的点赞用户
func (r *LikeRepository) ByTarget(ctx context.Context, target models.LikeTarget, targetID uuid.UUID, page PageRequest) (Page[*models.Like], error) {
	return r.list(r.db.WithContext(ctx).Preload("User").Where(target.Column()+" = ?", targetID), page)
}

func (r *LikeRepository) list(query *gorm.DB, page PageRequest) (Page[*models.Like], error) {
	query, err := keyset(query, "likes", page)
	if err != nil {
		return Page[*models.Like]{}, err
	}
	var likes []*models.Like
	if err := query.Find(&likes).Error; err != nil {
		return Page[*models.Like]{}, fmt.Errorf("failed to list likes: %w", err)
	}
	return trimPage(likes, page, func(l *models.Like) uuid.UUID { return l.ID }), nil
}

func (r *LikeRepository) DeleteByTarget(ctx context.Context, target models.LikeTarget, targetID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where(target.Column()+" = ?", targetID).
		Delete(&models.Like{}).Error; err != nil {
		return fmt.Errorf("failed to delete likes: %w", err)
	}
	return nil
}

// TargetOwner 返回点赞目标的作者，目标不存在或是未发布的榜单时 ok=false
func (r *LikeRepository) TargetOwner(ctx context.Context, target models.LikeTarget, targetID uuid.UUID) (owner uuid.UUID, ok bool, err error) {
	query := r.db.WithContext(ctx).
		Model(target.Model()).
		Where("id = ?", targetID)
	if target == models.LikeTargetRankingList {
		query = query.Where("status = ?", models.RankingListPublished)
	}
	var owners []uuid.UUID
	if err := query.Limit(1).Pluck("user_id", &owners).Error; err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to get like target: %w", err)
	}
	if len(owners) == 0 {
		return uuid.Nil, false, nil
	}
	return owners[0], true, nil
}
