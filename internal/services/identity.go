package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rankfeed/rankfeed/internal/apperrors"
	"github.com/rankfeed/rankfeed/internal/models"
	"github.com/rankfeed/rankfeed/internal/repository"
	"github.com/rankfeed/rankfeed/pkg/cache"
	"github.com/rankfeed/rankfeed/pkg/logger"
)

// IdentityService 外部身份ID到内部用户ID的映射，结果缓存在Redis
type IdentityService struct {
	users  *repository.UserRepository
	cache  *cache.RedisClient
	ttl    time.Duration
	logger *logger.Logger
}

func NewIdentityService(users *repository.UserRepository, cache *cache.RedisClient, ttl time.Duration, logger *logger.Logger) *IdentityService {
	return &IdentityService{
		users:  users,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func identityKey(externalID string) string {
	return "identity:" + externalID
}

// Resolve 未登记的外部ID返回 Unauthenticated
func (s *IdentityService) Resolve(ctx context.Context, externalID string) (uuid.UUID, error) {
	if externalID == "" {
		return uuid.Nil, apperrors.Unauthenticated("missing principal")
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, identityKey(externalID)); err == nil {
			if id, err := uuid.Parse(cached); err == nil {
				return id, nil
			}
		} else if !cache.IsMiss(err) {
			s.logger.WithError(err).Warn("Failed to read identity cache")
		}
	}

	user, err := s.users.GetByExternalID(ctx, externalID)
	if err != nil {
		return uuid.Nil, repository.MapError(err)
	}
	if user == nil {
		return uuid.Nil, apperrors.Unauthenticated("unknown principal")
	}

	s.remember(ctx, externalID, user.ID)
	return user.ID, nil
}

// Provision 首次登录或用户同步时建档，已存在则直接返回
func (s *IdentityService) Provision(ctx context.Context, externalID, username, displayName string) (*models.User, error) {
	externalID = strings.TrimSpace(externalID)
	username = strings.TrimSpace(username)
	if externalID == "" || username == "" {
		return nil, apperrors.Validation("external id and username are required")
	}

	existing, err := s.users.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, repository.MapError(err)
	}
	if existing != nil {
		return existing, nil
	}

	taken, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, repository.MapError(err)
	}
	if taken != nil {
		return nil, apperrors.Conflict("username already taken")
	}

	user := &models.User{
		ExternalID:  externalID,
		Username:    username,
		DisplayName: displayName,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, repository.MapError(err)
	}

	s.remember(ctx, externalID, user.ID)
	s.logger.WithFields(map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("User provisioned successfully")

	return user, nil
}

func (s *IdentityService) remember(ctx context.Context, externalID string, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, identityKey(externalID), id.String(), s.ttl); err != nil {
		s.logger.WithError(err).Warn("Failed to write identity cache")
	}
}
