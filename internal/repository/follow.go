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

type FollowRepository struct {
	db *gorm.DB
}

func NewFollowRepository(db *gorm.DB) *FollowRepository {
	return &FollowRepository{db: db}
}

func (r *FollowRepository) WithTx(tx *gorm.DB) *FollowRepository {
	return &FollowRepository{db: tx}
}

// Create 已存在的关注关系保持不变
func (r *FollowRepository) Create(ctx context.Context, follow *models.Follow) error {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "follower_id"}, {Name: "following_id"}},
			DoNothing: true,
		}).
		Omit(clause.Associations).
		Create(follow).Error; err != nil {
		return fmt.Errorf("failed to create follow: %w", err)
	}
	return nil
}

func (r *FollowRepository) Delete(ctx context.Context, followerID, followingID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete follow: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *FollowRepository) IsFollowing(ctx context.Context, followerID, followingID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check follow status: %w", err)
	}
	return count > 0, nil
}

// FollowingIDs 用户关注的全部账号ID
func (r *FollowRepository) FollowingIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Pluck("following_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to get following ids: %w", err)
	}
	return ids, nil
}

// FollowedAmong 在 candidates 中返回 followerID 已关注的账号
func (r *FollowRepository) FollowedAmong(ctx context.Context, followerID uuid.UUID, candidates []uuid.UUID) (map[uuid.UUID]bool, error) {
	result := make(map[uuid.UUID]bool, len(candidates))
	if len(candidates) == 0 {
		return result, nil
	}
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ? AND following_id IN ?", followerID, candidates).
		Pluck("following_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to check follows: %w", err)
	}
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}

// Followers 关注 userID 的边，按关注时间倒序
func (r *FollowRepository) Followers(ctx context.Context, userID uuid.UUID, page PageRequest) (Page[*models.Follow], error) {
	query := r.db.WithContext(ctx).
		Preload("Follower").
		Where("following_id = ?", userID)
	return r.list(query, page)
}

// Following userID 发出的关注边
func (r *FollowRepository) Following(ctx context.Context, userID uuid.UUID, page PageRequest) (Page[*models.Follow], error) {
	query := r.db.WithContext(ctx).
		Preload("Following").
		Where("follower_id = ?", userID)
	return r.list(query, page)
}

func (r *FollowRepository) list(query *gorm.DB, page PageRequest) (Page[*models.Follow], error) {
	query, err := keyset(query, "follows", page)
	if err != nil {
		return Page[*models.Follow]{}, err
	}
	var follows []*models.Follow
	if err := query.Find(&follows).Error; err != nil {
		return Page[*models.Follow]{}, fmt.Errorf("failed to list follows: %w", err)
	}
	return trimPage(follows, page, func(f *models.Follow) uuid.UUID { return f.ID }), nil
}

func (r *FollowRepository) CountFollowers(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("following_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count followers: %w", err)
	}
	return count, nil
}

func (r *FollowRepository) CountFollowing(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count following: %w", err)
	}
	return count, nil
}

type FollowRequestRepository struct {
	db *gorm.DB
}

func NewFollowRequestRepository(db *gorm.DB) *FollowRequestRepository {
	return &FollowRequestRepository{db: db}
}

func (r *FollowRequestRepository) WithTx(tx *gorm.DB) *FollowRequestRepository {
	return &FollowRequestRepository{db: tx}
}

func (r *FollowRequestRepository) Create(ctx context.Context, req *models.FollowRequest) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(req).Error; err != nil {
		return fmt.Errorf("failed to create follow request: %w", err)
	}
	return nil
}

// GetByPair 任意状态的申请记录
func (r *FollowRequestRepository) GetByPair(ctx context.Context, requesterID, requestedID uuid.UUID) (*models.FollowRequest, error) {
	var req models.FollowRequest
	if err := r.db.WithContext(ctx).
		Where("requester_id = ? AND requested_id = ?", requesterID, requestedID).
		First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get follow request: %w", err)
	}
	return &req, nil
}

func (r *FollowRequestRepository) HasPending(ctx context.Context, requesterID, requestedID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.FollowRequest{}).
		Where("requester_id = ? AND requested_id = ? AND status = ?", requesterID, requestedID, models.FollowRequestPending).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check follow request: %w", err)
	}
	return count > 0, nil
}

// GetByIDForUpdate 事务内加锁重新读取，避免与并发的接受/拒绝竞争
func (r *FollowRequestRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.FollowRequest, error) {
	var req models.FollowRequest
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get follow request: %w", err)
	}
	return &req, nil
}

// ResetToPending 复用已处理过的申请记录，重新排到收件箱最前
func (r *FollowRequestRepository) ResetToPending(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Model(&models.FollowRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.FollowRequestPending,
			"created_at": time.Now(),
		}).Error; err != nil {
		return fmt.Errorf("failed to reset follow request: %w", err)
	}
	return nil
}

// Transition 仅当仍为 PENDING 时改变状态，返回是否生效
func (r *FollowRequestRepository) Transition(ctx context.Context, id uuid.UUID, to models.FollowRequestStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.FollowRequest{}).
		Where("id = ? AND status = ?", id, models.FollowRequestPending).
		Update("status", to)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update follow request: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *FollowRequestRepository) DeletePending(ctx context.Context, requesterID, requestedID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("requester_id = ? AND requested_id = ? AND status = ?", requesterID, requestedID, models.FollowRequestPending).
		Delete(&models.FollowRequest{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete follow request: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Incoming 待处理的收到的申请
func (r *FollowRequestRepository) Incoming(ctx context.Context, requestedID uuid.UUID, page PageRequest) (Page[*models.FollowRequest], error) {
	query, err := keyset(r.db.WithContext(ctx).
		Preload("Requester").
		Where("requested_id = ? AND status = ?", requestedID, models.FollowRequestPending),
		"follow_requests", page)
	if err != nil {
		return Page[*models.FollowRequest]{}, err
	}
	var reqs []*models.FollowRequest
	if err := query.Find(&reqs).Error; err != nil {
		return Page[*models.FollowRequest]{}, fmt.Errorf("failed to list follow requests: %w", err)
	}
	return trimPage(reqs, page, func(fr *models.FollowRequest) uuid.UUID { return fr.ID }), nil
}
