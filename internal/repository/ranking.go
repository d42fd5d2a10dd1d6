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

// RankingListRepository 只覆盖发布流程需要的读写，榜单内容的编辑不在这里
type RankingListRepository struct {
	db *gorm.DB
}

func NewRankingListRepository(db *gorm.DB) *RankingListRepository {
	return &RankingListRepository{db: db}
}

func (r *RankingListRepository) WithTx(tx *gorm.DB) *RankingListRepository {
	return &RankingListRepository{db: tx}
}

func (r *RankingListRepository) Create(ctx context.Context, list *models.RankingList) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(list).Error; err != nil {
		return fmt.Errorf("failed to create ranking list: %w", err)
	}
	return nil
}

func (r *RankingListRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RankingList, error) {
	var list models.RankingList
	if err := r.db.WithContext(ctx).Preload("User").First(&list, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ranking list: %w", err)
	}
	return &list, nil
}

func (r *RankingListRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.RankingList, error) {
	var list models.RankingList
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&list, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock ranking list: %w", err)
	}
	return &list, nil
}

func (r *RankingListRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.RankingListStatus) error {
	if err := r.db.WithContext(ctx).Model(&models.RankingList{}).
		Where("id = ?", id).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to update ranking list status: %w", err)
	}
	return nil
}
