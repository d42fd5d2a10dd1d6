package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rankfeed/rankfeed/internal/apperrors"
	"github.com/rankfeed/rankfeed/internal/models"
	"github.com/rankfeed/rankfeed/internal/repository"
	"github.com/rankfeed/rankfeed/pkg/logger"
	"github.com/rankfeed/rankfeed/pkg/queue"
	"gorm.io/gorm"
)

const maxDisplayNameLength = 50

type UserService struct {
	db      *repository.Database
	users   *repository.UserRepository
	follows *repository.FollowRepository
	graph   *GraphService
	events  eventSink
	storage eventSink
	logger  *logger.Logger
}

// NewUserService storage 为存储清理队列，被替换掉的图片key发到这里
func NewUserService(db *repository.Database, users *repository.UserRepository, follows *repository.FollowRepository, graph *GraphService, publisher, storage queue.Publisher, logger *logger.Logger) *UserService {
	return &UserService{
		db:      db,
		users:   users,
		follows: follows,
		graph:   graph,
		events:  eventSink{publisher: publisher, logger: logger},
		storage: eventSink{publisher: storage, logger: logger},
		logger:  logger,
	}
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name" binding:"omitempty,max=50"`
	IsPrivate   *bool   `json:"is_private"`
	AvatarKey   *string `json:"avatar_key"`
	CoverKey    *string `json:"cover_key"`
}

// GetProfile 附带关注数和 viewer 的关注状态；私密账号的资料本身公开
func (s *UserService) GetProfile(ctx context.Context, viewer *uuid.UUID, userID uuid.UUID) (*ProfileView, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, repository.MapError(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("user")
	}
	return s.profile(ctx, viewer, user)
}

func (s *UserService) GetProfileByUsername(ctx context.Context, viewer *uuid.UUID, username string) (*ProfileView, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, repository.MapError(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("user")
	}
	return s.profile(ctx, viewer, user)
}

func (s *UserService) profile(ctx context.Context, viewer *uuid.UUID, user *models.User) (*ProfileView, error) {
	followers, err := s.follows.CountFollowers(ctx, user.ID)
	if err != nil {
		return nil, repository.MapError(err)
	}
	following, err := s.follows.CountFollowing(ctx, user.ID)
	if err != nil {
		return nil, repository.MapError(err)
	}
	status, err := s.graph.FollowStatus(ctx, viewer, user.ID)
	if err != nil {
		return nil, err
	}

	return &ProfileView{
		UserSummary:    summarizeUser(user),
		CoverKey:       user.CoverKey,
		FollowersCount: followers,
		FollowingCount: following,
		FollowStatus:   status,
		CreatedAt:      user.CreatedAt,
	}, nil
}

// UpdateProfile 替换头像或封面时把旧key投递到存储清理队列
func (s *UserService) UpdateProfile(ctx context.Context, actor uuid.UUID, req *UpdateProfileRequest) (*models.User, error) {
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if utf8.RuneCountInString(name) > maxDisplayNameLength {
			return nil, apperrors.Validation("display name must be at most 50 characters")
		}
		req.DisplayName = &name
	}

	var (
		user     *models.User
		orphaned []string
	)
	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		orphaned = nil

		current, err := users.GetByIDForUpdate(ctx, actor)
		if err != nil {
			return err
		}
		if current == nil {
			return apperrors.NotFound("user")
		}

		fields := map[string]interface{}{}
		if req.DisplayName != nil {
			fields["display_name"] = *req.DisplayName
		}
		if req.IsPrivate != nil {
			fields["is_private"] = *req.IsPrivate
		}
		if req.AvatarKey != nil && *req.AvatarKey != current.AvatarKey {
			fields["avatar_key"] = *req.AvatarKey
			if current.AvatarKey != "" {
				orphaned = append(orphaned, current.AvatarKey)
			}
		}
		if req.CoverKey != nil && *req.CoverKey != current.CoverKey {
			fields["cover_key"] = *req.CoverKey
			if current.CoverKey != "" {
				orphaned = append(orphaned, current.CoverKey)
			}
		}
		if err := users.UpdateFields(ctx, actor, fields); err != nil {
			return err
		}

		user, err = users.GetByID(ctx, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, key := range orphaned {
		s.storage.emit(ctx, key, queue.EventStorageObjectOrphaned, queue.StorageObjectEventData{
			Key:     key,
			OwnerID: actor.String(),
			Reason:  "replaced",
		})
	}
	s.events.emit(ctx, actor.String(), queue.EventUserUpdated, queue.UserEventData{
		UserID:    actor.String(),
		IsPrivate: user.IsPrivate,
	})
	s.logger.WithFields(map[string]interface{}{
		"user_id":       actor,
		"orphaned_keys": len(orphaned),
	}).Info("User updated successfully")

	return user, nil
}
