package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/rankfeed/rankfeed/internal/apperrors"
	"github.com/rankfeed/rankfeed/internal/models"
	"github.com/rankfeed/rankfeed/internal/repository"
	"github.com/rankfeed/rankfeed/pkg/logger"
	"github.com/rankfeed/rankfeed/pkg/queue"
	"gorm.io/gorm"
)

// EngagementService 点赞与引用转发计数的唯一写入方
type EngagementService struct {
	db         *repository.Database
	users      *repository.UserRepository
	likes      *repository.LikeRepository
	counters   *repository.CounterRepository
	visibility *VisibilityPolicy
	events     eventSink
	logger     *logger.Logger
}

func NewEngagementService(
	db *repository.Database,
	users *repository.UserRepository,
	likes *repository.LikeRepository,
	counters *repository.CounterRepository,
	visibility *VisibilityPolicy,
	publisher queue.Publisher,
	logger *logger.Logger,
) *EngagementService {
	return &EngagementService{
		db:         db,
		users:      users,
		likes:      likes,
		counters:   counters,
		visibility: visibility,
		events:     eventSink{publisher: publisher, logger: logger},
		logger:     logger,
	}
}

// Like 已点过赞时直接成功
func (s *EngagementService) Like(ctx context.Context, actor uuid.UUID, target models.LikeTarget, targetID uuid.UUID) error {
	var created bool
	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		likes := s.likes.WithTx(tx)
		created = false

		if err := s.ensureTargetVisible(ctx, tx, &actor, target, targetID); err != nil {
			return err
		}

		existing, err := likes.Get(ctx, actor, target, targetID)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}

		like, err := models.NewLike(actor, target, targetID)
		if err != nil {
			return apperrors.Validation(err.Error())
		}
		if err := likes.Create(ctx, like); err != nil {
			return err
		}
		if err := s.counters.WithTx(tx).IncrementLikeCount(ctx, target, targetID); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return err
	}

	if created {
		s.events.emit(ctx, targetID.String(), queue.EventLikeCreated, queue.LikeEventData{
			UserID:   actor.String(),
			Target:   string(target),
			TargetID: targetID.String(),
		})
		s.logger.WithFields(map[string]interface{}{
			"user_id":   actor,
			"target":    target,
			"target_id": targetID,
		}).Info("Liked successfully")
	}
	return nil
}

// Unlike 只有真的删掉点赞记录才减计数，计数不会小于0
func (s *EngagementService) Unlike(ctx context.Context, actor uuid.UUID, target models.LikeTarget, targetID uuid.UUID) error {
	var deleted bool
	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		deleted, err = s.likes.WithTx(tx).Delete(ctx, actor, target, targetID)
		if err != nil || !deleted {
			return err
		}
		_, err = s.counters.WithTx(tx).DecrementLikeCount(ctx, target, targetID)
		return err
	})
	if err != nil {
		return err
	}

	if deleted {
		s.events.emit(ctx, targetID.String(), queue.EventLikeDeleted, queue.LikeEventData{
			UserID:   actor.String(),
			Target:   string(target),
			TargetID: targetID.String(),
		})
		s.logger.WithFields(map[string]interface{}{
			"user_id":   actor,
			"target":    target,
			"target_id": targetID,
		}).Info("Unliked successfully")
	}
	return nil
}

// IncrementQuoteCount 在调用方事务内执行
func (s *EngagementService) IncrementQuoteCount(ctx context.Context, tx *gorm.DB, feedItemID uuid.UUID) error {
	ok, err := s.counters.WithTx(tx).IncrementQuoteCount(ctx, feedItemID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFound("feed item")
	}
	return nil
}

// DecrementQuoteCount 在调用方事务内执行，计数为0或原条目已删除时不变
func (s *EngagementService) DecrementQuoteCount(ctx context.Context, tx *gorm.DB, feedItemID uuid.UUID) error {
	_, err := s.counters.WithTx(tx).DecrementQuoteCount(ctx, feedItemID)
	return err
}

// ClearLikes 在调用方事务内删除目标的全部点赞并把计数归零
func (s *EngagementService) ClearLikes(ctx context.Context, tx *gorm.DB, target models.LikeTarget, targetID uuid.UUID) error {
	if err := s.likes.WithTx(tx).DeleteByTarget(ctx, target, targetID); err != nil {
		return err
	}
	return s.counters.WithTx(tx).ReconcileLikeCount(ctx, target, targetID)
}

// ReconcileLikeCount 按 likes 表重算缓存的计数
func (s *EngagementService) ReconcileLikeCount(ctx context.Context, target models.LikeTarget, targetID uuid.UUID) error {
	return s.db.Transaction(ctx, func(tx *gorm.DB) error {
		return s.counters.WithTx(tx).ReconcileLikeCount(ctx, target, targetID)
	})
}

func (s *EngagementService) ReconcileQuoteCount(ctx context.Context, feedItemID uuid.UUID) error {
	return s.db.Transaction(ctx, func(tx *gorm.DB) error {
		return s.counters.WithTx(tx).ReconcileQuoteCount(ctx, feedItemID)
	})
}

// ListLikers 点赞用户列表，游标为点赞记录ID
func (s *EngagementService) ListLikers(ctx context.Context, viewer *uuid.UUID, target models.LikeTarget, targetID uuid.UUID, page repository.PageRequest) (repository.Page[UserSummary], error) {
	if err := s.ensureTargetVisible(ctx, nil, viewer, target, targetID); err != nil {
		return repository.Page[UserSummary]{}, err
	}

	likes, err := s.likes.ByTarget(ctx, target, targetID, page)
	if err != nil {
		return repository.Page[UserSummary]{}, repository.MapError(err)
	}
	users := make([]UserSummary, 0, len(likes.Items))
	for _, like := range likes.Items {
		users = append(users, summarizeUser(&like.User))
	}
	return repository.Page[UserSummary]{Items: users, NextCursor: likes.NextCursor}, nil
}

// ensureTargetVisible 目标必须存在且对 viewer 可见；tx 为空时走非事务连接
func (s *EngagementService) ensureTargetVisible(ctx context.Context, tx *gorm.DB, viewer *uuid.UUID, target models.LikeTarget, targetID uuid.UUID) error {
	likes, users, visibility := s.likes, s.users, s.visibility
	if tx != nil {
		likes, users, visibility = likes.WithTx(tx), users.WithTx(tx), visibility.WithTx(tx)
	}

	ownerID, ok, err := likes.TargetOwner(ctx, target, targetID)
	if err != nil {
		return repository.MapError(err)
	}
	if !ok {
		return apperrors.NotFound(string(target))
	}
	owner, err := users.GetByID(ctx, ownerID)
	if err != nil {
		return repository.MapError(err)
	}
	if owner == nil {
		return apperrors.NotFound("user")
	}

	visible, err := visibility.CanView(ctx, viewer, owner)
	if err != nil {
		return err
	}
	if !visible {
		return apperrors.PermissionDenied("content is not visible to you")
	}
	return nil
}
