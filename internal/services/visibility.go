package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/rankfeed/rankfeed/internal/models"
	"github.com/rankfeed/rankfeed/internal/repository"
	"gorm.io/gorm"
)

// VisibilityPolicy 私密账号的内容只对本人和已关注者可见。所有读取和互动都经过这里判断
type VisibilityPolicy struct {
	follows *repository.FollowRepository
}

func NewVisibilityPolicy(follows *repository.FollowRepository) *VisibilityPolicy {
	return &VisibilityPolicy{follows: follows}
}

func (p *VisibilityPolicy) WithTx(tx *gorm.DB) *VisibilityPolicy {
	return &VisibilityPolicy{follows: p.follows.WithTx(tx)}
}

func (p *VisibilityPolicy) CanView(ctx context.Context, viewer *uuid.UUID, owner *models.User) (bool, error) {
	if owner == nil {
		return false, nil
	}
	if !owner.IsPrivate {
		return true, nil
	}
	if viewer == nil {
		return false, nil
	}
	if *viewer == owner.ID {
		return true, nil
	}
	following, err := p.follows.IsFollowing(ctx, *viewer, owner.ID)
	if err != nil {
		return false, repository.MapError(err)
	}
	return following, nil
}

// VisibleOwners 批量判断，只对私密且非本人的作者查一次关注表
func (p *VisibilityPolicy) VisibleOwners(ctx context.Context, viewer *uuid.UUID, owners []models.User) (map[uuid.UUID]bool, error) {
	visible := make(map[uuid.UUID]bool, len(owners))
	var private []uuid.UUID
	for _, owner := range owners {
		switch {
		case !owner.IsPrivate:
			visible[owner.ID] = true
		case viewer != nil && *viewer == owner.ID:
			visible[owner.ID] = true
		case viewer != nil:
			private = append(private, owner.ID)
		}
	}
	if len(private) == 0 {
		return visible, nil
	}

	followed, err := p.follows.FollowedAmong(ctx, *viewer, private)
	if err != nil {
		return nil, repository.MapError(err)
	}
	for id := range followed {
		visible[id] = true
	}
	return visible, nil
}
