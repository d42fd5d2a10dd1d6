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

type FollowStatus string

const (
	FollowStatusSelf            FollowStatus = "SELF"
	FollowStatusCannotFollow    FollowStatus = "CANNOT_FOLLOW"
	FollowStatusFollowing       FollowStatus = "FOLLOWING"
	FollowStatusRequestSent     FollowStatus = "REQUEST_SENT"
	FollowStatusRequestReceived FollowStatus = "REQUEST_RECEIVED"
	FollowStatusNotFollowing    FollowStatus = "NOT_FOLLOWING"
)

// GraphService 关注关系与私密账号的关注申请
type GraphService struct {
	db         *repository.Database
	users      *repository.UserRepository
	follows    *repository.FollowRepository
	requests   *repository.FollowRequestRepository
	visibility *VisibilityPolicy
	following  *FollowingCache
	events     eventSink
	logger     *logger.Logger
}

func NewGraphService(
	db *repository.Database,
	users *repository.UserRepository,
	follows *repository.FollowRepository,
	requests *repository.FollowRequestRepository,
	visibility *VisibilityPolicy,
	following *FollowingCache,
	publisher queue.Publisher,
	logger *logger.Logger,
) *GraphService {
	return &GraphService{
		db:         db,
		users:      users,
		follows:    follows,
		requests:   requests,
		visibility: visibility,
		following:  following,
		events:     eventSink{publisher: publisher, logger: logger},
		logger:     logger,
	}
}

// FollowStatus viewer 视角下与 target 的关系，按 SELF > CANNOT_FOLLOW > FOLLOWING > REQUEST_SENT > REQUEST_RECEIVED 判断
func (s *GraphService) FollowStatus(ctx context.Context, viewer *uuid.UUID, target uuid.UUID) (FollowStatus, error) {
	user, err := s.users.GetByID(ctx, target)
	if err != nil {
		return "", repository.MapError(err)
	}
	if user == nil {
		return "", apperrors.NotFound("user")
	}
	return s.status(ctx, s.follows, s.requests, viewer, target)
}

func (s *GraphService) status(ctx context.Context, follows *repository.FollowRepository, requests *repository.FollowRequestRepository, viewer *uuid.UUID, target uuid.UUID) (FollowStatus, error) {
	if viewer != nil && *viewer == target {
		return FollowStatusSelf, nil
	}
	if viewer == nil {
		return FollowStatusCannotFollow, nil
	}

	following, err := follows.IsFollowing(ctx, *viewer, target)
	if err != nil {
		return "", repository.MapError(err)
	}
	if following {
		return FollowStatusFollowing, nil
	}

	sent, err := requests.HasPending(ctx, *viewer, target)
	if err != nil {
		return "", repository.MapError(err)
	}
	if sent {
		return FollowStatusRequestSent, nil
	}

	received, err := requests.HasPending(ctx, target, *viewer)
	if err != nil {
		return "", repository.MapError(err)
	}
	if received {
		return FollowStatusRequestReceived, nil
	}
	return FollowStatusNotFollowing, nil
}

// FollowUser 公开账号直接关注，私密账号发出申请。已关注或已申请时幂等
func (s *GraphService) FollowUser(ctx context.Context, viewer, target uuid.UUID) (FollowStatus, error) {
	if viewer == target {
		return "", apperrors.Validation("cannot follow yourself")
	}

	var (
		next      FollowStatus
		eventType queue.EventType
		requestID uuid.UUID
	)
	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		follows := s.follows.WithTx(tx)
		requests := s.requests.WithTx(tx)
		next, eventType, requestID = "", "", uuid.Nil

		user, err := users.GetByID(ctx, target)
		if err != nil {
			return err
		}
		if user == nil {
			return apperrors.NotFound("user")
		}

		current, err := s.status(ctx, follows, requests, &viewer, target)
		if err != nil {
			return err
		}
		switch current {
		case FollowStatusFollowing, FollowStatusRequestSent:
			next = current
			return nil
		}

		// REQUEST_RECEIVED 与 NOT_FOLLOWING 处理相同：对方发来的申请是另一条边
		if !user.IsPrivate {
			if err := follows.Create(ctx, &models.Follow{FollowerID: viewer, FollowingID: target}); err != nil {
				return err
			}
			next, eventType = FollowStatusFollowing, queue.EventFollowCreated
			return nil
		}

		existing, err := requests.GetByPair(ctx, viewer, target)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := requests.ResetToPending(ctx, existing.ID); err != nil {
				return err
			}
			requestID = existing.ID
		} else {
			req := &models.FollowRequest{RequesterID: viewer, RequestedID: target}
			if err := requests.Create(ctx, req); err != nil {
				return err
			}
			requestID = req.ID
		}
		next, eventType = FollowStatusRequestSent, queue.EventFollowRequested
		return nil
	})
	if err != nil {
		return "", err
	}

	if eventType != "" {
		if eventType == queue.EventFollowCreated {
			s.following.Invalidate(ctx, viewer)
		}
		data := queue.FollowEventData{FollowerID: viewer.String(), FollowingID: target.String()}
		if requestID != uuid.Nil {
			data.RequestID = requestID.String()
		}
		s.events.emit(ctx, viewer.String(), eventType, data)

		s.logger.WithFields(map[string]interface{}{
			"follower_id":  viewer,
			"following_id": target,
			"status":       next,
		}).Info("Follow processed successfully")
	}
	return next, nil
}

// UnfollowUser 删除关注关系，不存在时也返回成功
func (s *GraphService) UnfollowUser(ctx context.Context, viewer, target uuid.UUID) (FollowStatus, error) {
	if viewer == target {
		return "", apperrors.Validation("cannot unfollow yourself")
	}

	var deleted bool
	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		deleted, err = s.follows.WithTx(tx).Delete(ctx, viewer, target)
		return err
	})
	if err != nil {
		return "", err
	}

	if deleted {
		s.following.Invalidate(ctx, viewer)
		s.events.emit(ctx, viewer.String(), queue.EventFollowDeleted, queue.FollowEventData{
			FollowerID:  viewer.String(),
			FollowingID: target.String(),
		})
		s.logger.WithFields(map[string]interface{}{
			"follower_id":  viewer,
			"following_id": target,
		}).Info("User unfollowed successfully")
	}
	return FollowStatusNotFollowing, nil
}

// CancelFollowRequest 撤回自己发出的待处理申请
func (s *GraphService) CancelFollowRequest(ctx context.Context, viewer, target uuid.UUID) (FollowStatus, error) {
	if viewer == target {
		return "", apperrors.Validation("cannot cancel a request to yourself")
	}

	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		_, err := s.requests.WithTx(tx).DeletePending(ctx, viewer, target)
		return err
	})
	if err != nil {
		return "", err
	}

	// 取消后可能仍然是关注状态（例如申请期间对方改为公开并被直接关注）
	return s.status(ctx, s.follows, s.requests, &viewer, target)
}

// AcceptFollowRequest 非幂等：已处理的申请返回 NotFound
func (s *GraphService) AcceptFollowRequest(ctx context.Context, requestID, actor uuid.UUID) error {
	var req *models.FollowRequest
	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		requests := s.requests.WithTx(tx)

		var err error
		req, err = requests.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return apperrors.NotFound("follow request")
		}
		if req.RequestedID != actor {
			return apperrors.PermissionDenied("only the requested user can accept")
		}
		if req.Status != models.FollowRequestPending {
			return apperrors.NotFound("pending follow request")
		}

		accepted, err := requests.Transition(ctx, req.ID, models.FollowRequestAccepted)
		if err != nil {
			return err
		}
		if !accepted {
			return apperrors.NotFound("pending follow request")
		}

		return s.follows.WithTx(tx).Create(ctx, &models.Follow{
			FollowerID:  req.RequesterID,
			FollowingID: req.RequestedID,
		})
	})
	if err != nil {
		return err
	}

	s.following.Invalidate(ctx, req.RequesterID)
	s.events.emit(ctx, req.RequesterID.String(), queue.EventFollowRequestAccepted, queue.FollowEventData{
		FollowerID:  req.RequesterID.String(),
		FollowingID: req.RequestedID.String(),
		RequestID:   req.ID.String(),
	})
	s.logger.WithFields(map[string]interface{}{
		"request_id":   req.ID,
		"follower_id":  req.RequesterID,
		"following_id": req.RequestedID,
	}).Info("Follow request accepted successfully")

	return nil
}

// RejectFollowRequest 保留记录；重复拒绝不报错
func (s *GraphService) RejectFollowRequest(ctx context.Context, requestID, actor uuid.UUID) error {
	var rejected bool
	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		requests := s.requests.WithTx(tx)

		req, err := requests.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return apperrors.NotFound("follow request")
		}
		if req.RequestedID != actor {
			return apperrors.PermissionDenied("only the requested user can reject")
		}

		rejected, err = requests.Transition(ctx, req.ID, models.FollowRequestRejected)
		return err
	})
	if err != nil {
		return err
	}

	if rejected {
		s.events.emit(ctx, actor.String(), queue.EventFollowRequestRejected, queue.FollowEventData{
			FollowingID: actor.String(),
			RequestID:   requestID.String(),
		})
		s.logger.WithField("request_id", requestID).Info("Follow request rejected successfully")
	}
	return nil
}

func (s *GraphService) CanView(ctx context.Context, viewer *uuid.UUID, owner *models.User) (bool, error) {
	return s.visibility.CanView(ctx, viewer, owner)
}

// FollowingIDs 优先读缓存
func (s *GraphService) FollowingIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	if ids, ok := s.following.Get(ctx, userID); ok {
		return ids, nil
	}
	ids, err := s.follows.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, repository.MapError(err)
	}
	s.following.Set(ctx, userID, ids)
	return ids, nil
}

// InvalidateFollowing 供异步消费者在关系变化后调用
func (s *GraphService) InvalidateFollowing(ctx context.Context, userID uuid.UUID) {
	s.following.Invalidate(ctx, userID)
}

// Followers 私密账号的关注列表同样受可见性约束
func (s *GraphService) Followers(ctx context.Context, viewer *uuid.UUID, userID uuid.UUID, page repository.PageRequest) (repository.Page[UserSummary], error) {
	if err := s.ensureVisible(ctx, viewer, userID); err != nil {
		return repository.Page[UserSummary]{}, err
	}
	edges, err := s.follows.Followers(ctx, userID, page)
	if err != nil {
		return repository.Page[UserSummary]{}, repository.MapError(err)
	}
	return edgePage(edges, func(f *models.Follow) models.User { return f.Follower }), nil
}

func (s *GraphService) Following(ctx context.Context, viewer *uuid.UUID, userID uuid.UUID, page repository.PageRequest) (repository.Page[UserSummary], error) {
	if err := s.ensureVisible(ctx, viewer, userID); err != nil {
		return repository.Page[UserSummary]{}, err
	}
	edges, err := s.follows.Following(ctx, userID, page)
	if err != nil {
		return repository.Page[UserSummary]{}, repository.MapError(err)
	}
	return edgePage(edges, func(f *models.Follow) models.User { return f.Following }), nil
}

// PendingRequests actor 收到的待处理申请
func (s *GraphService) PendingRequests(ctx context.Context, actor uuid.UUID, page repository.PageRequest) (repository.Page[FollowRequestView], error) {
	reqs, err := s.requests.Incoming(ctx, actor, page)
	if err != nil {
		return repository.Page[FollowRequestView]{}, repository.MapError(err)
	}
	views := make([]FollowRequestView, 0, len(reqs.Items))
	for _, req := range reqs.Items {
		views = append(views, FollowRequestView{
			ID:        req.ID,
			Requester: summarizeUser(&req.Requester),
			Status:    req.Status,
			CreatedAt: req.CreatedAt,
		})
	}
	return repository.Page[FollowRequestView]{Items: views, NextCursor: reqs.NextCursor}, nil
}

func (s *GraphService) ensureVisible(ctx context.Context, viewer *uuid.UUID, userID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return repository.MapError(err)
	}
	if user == nil {
		return apperrors.NotFound("user")
	}
	ok, err := s.visibility.CanView(ctx, viewer, user)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.PermissionDenied("this account is private")
	}
	return nil
}

func edgePage(edges repository.Page[*models.Follow], user func(*models.Follow) models.User) repository.Page[UserSummary] {
	items := make([]UserSummary, 0, len(edges.Items))
	for _, edge := range edges.Items {
		u := user(edge)
		items = append(items, summarizeUser(&u))
	}
	return repository.Page[UserSummary]{Items: items, NextCursor: edges.NextCursor}
}
