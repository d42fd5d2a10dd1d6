package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/rankfeed/rankfeed/internal/apperrors"
	"github.com/rankfeed/rankfeed/internal/models"
	"github.com/rankfeed/rankfeed/internal/repository"
)

// GetFeedItem 单条读取，可见性规则与时间线一致
func (s *FeedService) GetFeedItem(ctx context.Context, viewer *uuid.UUID, id uuid.UUID) (*FeedItemView, error) {
	item, err := s.feedItems.GetByID(ctx, id)
	if err != nil {
		return nil, repository.MapError(err)
	}
	if item == nil {
		return nil, apperrors.NotFound("feed item")
	}
	visible, err := s.visibility.CanView(ctx, viewer, &item.User)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, apperrors.PermissionDenied("this account is private")
	}

	views, err := s.buildViews(ctx, viewer, []*models.FeedItem{item})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// HomeTimeline 自己和已关注账号的条目；未登录返回空页
func (s *FeedService) HomeTimeline(ctx context.Context, viewer *uuid.UUID, page repository.PageRequest) (repository.Page[*FeedItemView], error) {
	if viewer == nil {
		return repository.Page[*FeedItemView]{Items: []*FeedItemView{}}, nil
	}

	following, err := s.graph.FollowingIDs(ctx, *viewer)
	if err != nil {
		return repository.Page[*FeedItemView]{}, err
	}
	authors := append([]uuid.UUID{*viewer}, following...)

	items, err := s.feedItems.ByUsers(ctx, authors, page)
	if err != nil {
		return repository.Page[*FeedItemView]{}, repository.MapError(err)
	}
	// 关注集合来自缓存，可能落后于取关，私密作者仍要逐条过一遍可见性
	visible, err := s.filterVisible(ctx, viewer, items.Items)
	if err != nil {
		return repository.Page[*FeedItemView]{}, err
	}
	return s.viewPage(ctx, viewer, visible, items.NextCursor)
}

// filterVisible 丢弃作者对 viewer 不可见的条目，保持原有顺序
func (s *FeedService) filterVisible(ctx context.Context, viewer *uuid.UUID, items []*models.FeedItem) ([]*models.FeedItem, error) {
	owners := make([]models.User, 0, len(items))
	for _, item := range items {
		owners = append(owners, item.User)
	}
	visible, err := s.visibility.VisibleOwners(ctx, viewer, owners)
	if err != nil {
		return nil, err
	}
	filtered := make([]*models.FeedItem, 0, len(items))
	for _, item := range items {
		if visible[item.UserID] {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

// ProfileTimeline 私密账号只对本人和关注者开放
func (s *FeedService) ProfileTimeline(ctx context.Context, viewer *uuid.UUID, userID uuid.UUID, page repository.PageRequest) (repository.Page[*FeedItemView], error) {
	if err := s.ensureProfileVisible(ctx, viewer, userID); err != nil {
		return repository.Page[*FeedItemView]{}, err
	}

	items, err := s.feedItems.ByUsers(ctx, []uuid.UUID{userID}, page)
	if err != nil {
		return repository.Page[*FeedItemView]{}, repository.MapError(err)
	}
	return s.viewPage(ctx, viewer, items.Items, items.NextCursor)
}

// LikedTimeline 用户点过赞的内容，按点赞时间倒序，游标为点赞记录ID。
// 作者对 viewer 不可见的条目会被跳过，因此一页可能少于 limit
func (s *FeedService) LikedTimeline(ctx context.Context, viewer *uuid.UUID, userID uuid.UUID, page repository.PageRequest) (repository.Page[*FeedItemView], error) {
	if err := s.ensureProfileVisible(ctx, viewer, userID); err != nil {
		return repository.Page[*FeedItemView]{}, err
	}

	likes, err := s.likes.ByUser(ctx, userID, page)
	if err != nil {
		return repository.Page[*FeedItemView]{}, repository.MapError(err)
	}

	var postIDs, rankingIDs []uuid.UUID
	for _, like := range likes.Items {
		target, id, err := like.Target()
		if err != nil {
			continue
		}
		if target == models.LikeTargetPost {
			postIDs = append(postIDs, id)
		} else {
			rankingIDs = append(rankingIDs, id)
		}
	}
	byPost, err := s.feedItems.ForPosts(ctx, postIDs)
	if err != nil {
		return repository.Page[*FeedItemView]{}, repository.MapError(err)
	}
	byRanking, err := s.feedItems.ForRankingLists(ctx, rankingIDs)
	if err != nil {
		return repository.Page[*FeedItemView]{}, repository.MapError(err)
	}

	items := make([]*models.FeedItem, 0, len(likes.Items))
	for _, like := range likes.Items {
		var item *models.FeedItem
		if like.PostID != nil {
			item = byPost[*like.PostID]
		} else if like.RankingListID != nil {
			item = byRanking[*like.RankingListID]
		}
		if item != nil {
			items = append(items, item)
		}
	}

	filtered, err := s.filterVisible(ctx, viewer, items)
	if err != nil {
		return repository.Page[*FeedItemView]{}, err
	}
	return s.viewPage(ctx, viewer, filtered, likes.NextCursor)
}

func (s *FeedService) ensureProfileVisible(ctx context.Context, viewer *uuid.UUID, userID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return repository.MapError(err)
	}
	if user == nil {
		return apperrors.NotFound("user")
	}
	visible, err := s.visibility.CanView(ctx, viewer, user)
	if err != nil {
		return err
	}
	if !visible {
		return apperrors.PermissionDenied("this account is private")
	}
	return nil
}

func (s *FeedService) viewPage(ctx context.Context, viewer *uuid.UUID, items []*models.FeedItem, next *uuid.UUID) (repository.Page[*FeedItemView], error) {
	views, err := s.buildViews(ctx, viewer, items)
	if err != nil {
		return repository.Page[*FeedItemView]{}, err
	}
	return repository.Page[*FeedItemView]{Items: views, NextCursor: next}, nil
}

// buildViews 批量解析一层原条目，并补充转发数和 viewer 的点赞/转发状态
func (s *FeedService) buildViews(ctx context.Context, viewer *uuid.UUID, items []*models.FeedItem) ([]*FeedItemView, error) {
	views := make([]*FeedItemView, 0, len(items))
	if len(items) == 0 {
		return views, nil
	}

	var originIDs []uuid.UUID
	for _, item := range items {
		if id := item.OriginID(); id != nil {
			originIDs = append(originIDs, *id)
		}
	}
	origins, err := s.feedItems.GetByIDs(ctx, originIDs)
	if err != nil {
		return nil, repository.MapError(err)
	}

	originOwners := make([]models.User, 0, len(origins))
	for _, origin := range origins {
		originOwners = append(originOwners, origin.User)
	}
	visibleOrigins, err := s.visibility.VisibleOwners(ctx, viewer, originOwners)
	if err != nil {
		return nil, err
	}

	all := make([]*FeedItemView, 0, len(items)+len(origins))
	for _, item := range items {
		view := projectFeedItem(item)
		if id := item.OriginID(); id != nil {
			if origin, ok := origins[*id]; ok {
				if visibleOrigins[origin.UserID] {
					view.Origin = projectFeedItem(origin)
					all = append(all, view.Origin)
				} else {
					view.OriginHidden = true
				}
			}
		}
		views = append(views, view)
		all = append(all, view)
	}

	if err := s.decorate(ctx, viewer, all); err != nil {
		return nil, err
	}
	return views, nil
}

// decorate 转发数实时统计，不依赖计数列
func (s *FeedService) decorate(ctx context.Context, viewer *uuid.UUID, views []*FeedItemView) error {
	ids := make([]uuid.UUID, 0, len(views))
	var postIDs, rankingIDs []uuid.UUID
	for _, v := range views {
		ids = append(ids, v.ID)
		if v.Post != nil {
			postIDs = append(postIDs, v.Post.ID)
		}
		if v.RankingList != nil {
			rankingIDs = append(rankingIDs, v.RankingList.ID)
		}
	}

	counts, err := s.retweets.CountByFeedItems(ctx, ids)
	if err != nil {
		return repository.MapError(err)
	}
	for _, v := range views {
		v.RetweetCount = counts[v.ID]
	}
	if viewer == nil {
		return nil
	}

	retweeted, err := s.retweets.RetweetedSet(ctx, *viewer, ids)
	if err != nil {
		return repository.MapError(err)
	}
	likedPosts, err := s.likes.LikedSet(ctx, *viewer, models.LikeTargetPost, postIDs)
	if err != nil {
		return repository.MapError(err)
	}
	likedLists, err := s.likes.LikedSet(ctx, *viewer, models.LikeTargetRankingList, rankingIDs)
	if err != nil {
		return repository.MapError(err)
	}

	for _, v := range views {
		v.RetweetedByViewer = retweeted[v.ID]
		switch {
		case v.Post != nil:
			v.LikedByViewer = likedPosts[v.Post.ID]
		case v.RankingList != nil:
			v.LikedByViewer = likedLists[v.RankingList.ID]
		}
	}
	return nil
}
