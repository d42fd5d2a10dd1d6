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

const MaxContentLength = 280

// FeedService 时间线写入与聚合读取
type FeedService struct {
	db         *repository.Database
	users      *repository.UserRepository
	posts      *repository.PostRepository
	rankings   *repository.RankingListRepository
	feedItems  *repository.FeedItemRepository
	retweets   *repository.RetweetRepository
	likes      *repository.LikeRepository
	graph      *GraphService
	engagement *EngagementService
	visibility *VisibilityPolicy
	events     eventSink
	logger     *logger.Logger
}

type FeedServiceDeps struct {
	DB         *repository.Database
	Users      *repository.UserRepository
	Posts      *repository.PostRepository
	Rankings   *repository.RankingListRepository
	FeedItems  *repository.FeedItemRepository
	Retweets   *repository.RetweetRepository
	Likes      *repository.LikeRepository
	Graph      *GraphService
	Engagement *EngagementService
	Visibility *VisibilityPolicy
	Publisher  queue.Publisher
	Logger     *logger.Logger
}

func NewFeedService(deps FeedServiceDeps) *FeedService {
	return &FeedService{
		db:         deps.DB,
		users:      deps.Users,
		posts:      deps.Posts,
		rankings:   deps.Rankings,
		feedItems:  deps.FeedItems,
		retweets:   deps.Retweets,
		likes:      deps.Likes,
		graph:      deps.Graph,
		engagement: deps.Engagement,
		visibility: deps.Visibility,
		events:     eventSink{publisher: deps.Publisher, logger: deps.Logger},
		logger:     deps.Logger,
	}
}

// normalizeContent 去掉首尾空白；带图片时允许空文本
func normalizeContent(content, imageKey string) (string, error) {
	content = strings.TrimSpace(content)
	n := utf8.RuneCountInString(content)
	if n > MaxContentLength {
		return "", apperrors.Validation("content must be at most 280 characters")
	}
	if n == 0 && strings.TrimSpace(imageKey) == "" {
		return "", apperrors.Validation("content is required")
	}
	return content, nil
}

// CreatePost 帖子与 POST 条目在同一事务中写入
func (s *FeedService) CreatePost(ctx context.Context, author uuid.UUID, content, imageKey string) (*FeedItemView, error) {
	content, err := normalizeContent(content, imageKey)
	if err != nil {
		return nil, err
	}

	var item *models.FeedItem
	err = s.db.Transaction(ctx, func(tx *gorm.DB) error {
		post := &models.Post{
			UserID:   author,
			Content:  content,
			ImageKey: strings.TrimSpace(imageKey),
		}
		if err := s.posts.WithTx(tx).Create(ctx, post); err != nil {
			return err
		}

		item, err = models.NewFeedItem(author, models.PostContent{PostID: post.ID})
		if err != nil {
			return apperrors.Internal(err)
		}
		return s.feedItems.WithTx(tx).Create(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	s.events.emit(ctx, author.String(), queue.EventPostCreated, queue.PostEventData{
		PostID:     item.PostID.String(),
		FeedItemID: item.ID.String(),
		UserID:     author.String(),
	})
	s.logger.WithFields(map[string]interface{}{
		"user_id":      author,
		"post_id":      item.PostID,
		"feed_item_id": item.ID,
	}).Info("Post created successfully")

	return s.GetFeedItem(ctx, &author, item.ID)
}

// DeletePost 删除帖子及其条目、转发和点赞；引用转发的评论帖按引用转发删除
func (s *FeedService) DeletePost(ctx context.Context, actor, postID uuid.UUID) error {
	var itemID uuid.UUID
	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		post, err := s.posts.WithTx(tx).GetByID(ctx, postID)
		if err != nil {
			return err
		}
		if post == nil {
			return apperrors.NotFound("post")
		}
		if post.UserID != actor {
			return apperrors.PermissionDenied("only the author can delete this post")
		}

		items, err := s.feedItems.WithTx(tx).ForPosts(ctx, []uuid.UUID{postID})
		if err != nil {
			return err
		}
		item := items[postID]
		if item == nil {
			return s.posts.WithTx(tx).Delete(ctx, postID)
		}
		itemID = item.ID
		if item.Type == models.FeedItemQuoteRetweet {
			return s.deleteQuoteTx(ctx, tx, item)
		}
		if err := s.deleteFeedItemTx(ctx, tx, item.ID); err != nil {
			return err
		}
		if err := s.likes.WithTx(tx).DeleteByTarget(ctx, models.LikeTargetPost, postID); err != nil {
			return err
		}
		return s.posts.WithTx(tx).Delete(ctx, postID)
	})
	if err != nil {
		return err
	}

	s.events.emit(ctx, actor.String(), queue.EventPostDeleted, queue.PostEventData{
		PostID:     postID.String(),
		FeedItemID: itemID.String(),
		UserID:     actor.String(),
	})
	s.logger.WithFields(map[string]interface{}{
		"user_id": actor,
		"post_id": postID,
	}).Info("Post deleted successfully")
	return nil
}

// deleteFeedItemTx 删除条目及指向它的转发记录和 RETWEET 条目
func (s *FeedService) deleteFeedItemTx(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error {
	if err := s.retweets.WithTx(tx).DeleteByFeedItem(ctx, itemID); err != nil {
		return err
	}
	if err := s.feedItems.WithTx(tx).DeleteRetweetsOf(ctx, itemID); err != nil {
		return err
	}
	return s.feedItems.WithTx(tx).Delete(ctx, itemID)
}

// PublishRankingList PUBLISHED 时插入或刷新 RANKING_UPDATE 条目，改回 DRAFT 时撤下该条目及榜单的点赞
func (s *FeedService) PublishRankingList(ctx context.Context, actor, rankingListID uuid.UUID, status models.RankingListStatus) (*FeedItemView, error) {
	if status != models.RankingListPublished && status != models.RankingListDraft {
		return nil, apperrors.Validation("status must be DRAFT or PUBLISHED")
	}

	var (
		item      *models.FeedItem
		retracted *models.FeedItem
	)
	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		rankings := s.rankings.WithTx(tx)
		feedItems := s.feedItems.WithTx(tx)
		item, retracted = nil, nil

		list, err := rankings.GetByIDForUpdate(ctx, rankingListID)
		if err != nil {
			return err
		}
		if list == nil {
			return apperrors.NotFound("ranking list")
		}
		if list.UserID != actor {
			return apperrors.PermissionDenied("only the owner can publish this ranking list")
		}
		if list.Status != status {
			if err := rankings.UpdateStatus(ctx, rankingListID, status); err != nil {
				return err
			}
		}

		if status == models.RankingListPublished {
			item, err = feedItems.UpsertRankingUpdate(ctx, actor, rankingListID)
			return err
		}

		// 草稿不可点赞，已有的赞随动态一起撤下
		if err := s.engagement.ClearLikes(ctx, tx, models.LikeTargetRankingList, rankingListID); err != nil {
			return err
		}
		retracted, err = feedItems.GetRankingUpdate(ctx, rankingListID)
		if err != nil || retracted == nil {
			return err
		}
		return s.deleteFeedItemTx(ctx, tx, retracted.ID)
	})
	if err != nil {
		return nil, err
	}

	if item == nil {
		if retracted != nil {
			s.events.emit(ctx, actor.String(), queue.EventRankingRetracted, queue.RankingEventData{
				RankingListID: rankingListID.String(),
				FeedItemID:    retracted.ID.String(),
				UserID:        actor.String(),
			})
			s.logger.WithField("ranking_list_id", rankingListID).Info("Ranking update retracted successfully")
		}
		return nil, nil
	}

	s.events.emit(ctx, actor.String(), queue.EventRankingPublished, queue.RankingEventData{
		RankingListID: rankingListID.String(),
		FeedItemID:    item.ID.String(),
		UserID:        actor.String(),
	})
	s.logger.WithFields(map[string]interface{}{
		"ranking_list_id": rankingListID,
		"feed_item_id":    item.ID,
	}).Info("Ranking list published successfully")

	return s.GetFeedItem(ctx, &actor, item.ID)
}

// resolveRetweetTarget 转发一条转发时指向最初的条目
func (s *FeedService) resolveRetweetTarget(ctx context.Context, feedItems *repository.FeedItemRepository, feedItemID uuid.UUID) (*models.FeedItem, error) {
	item, err := feedItems.GetByID(ctx, feedItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperrors.NotFound("feed item")
	}
	if item.Type != models.FeedItemRetweet {
		return item, nil
	}
	origin, err := feedItems.GetByID(ctx, *item.RetweetOfFeedItemID)
	if err != nil {
		return nil, err
	}
	if origin == nil {
		return nil, apperrors.NotFound("feed item")
	}
	return origin, nil
}

// Retweet 幂等：已转发时返回已有的 RETWEET 条目
func (s *FeedService) Retweet(ctx context.Context, actor, feedItemID uuid.UUID) (*FeedItemView, error) {
	var (
		item    *models.FeedItem
		target  *models.FeedItem
		created bool
	)
	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		feedItems := s.feedItems.WithTx(tx)
		created = false

		var err error
		target, err = s.resolveRetweetTarget(ctx, feedItems, feedItemID)
		if err != nil {
			return err
		}

		visible, err := s.visibility.WithTx(tx).CanView(ctx, &actor, &target.User)
		if err != nil {
			return err
		}
		if !visible {
			return apperrors.PermissionDenied("cannot retweet content from a private account")
		}

		created, err = s.retweets.WithTx(tx).Create(ctx, &models.Retweet{UserID: actor, FeedItemID: target.ID})
		if err != nil {
			return err
		}
		if !created {
			item, err = feedItems.GetRetweetItem(ctx, actor, target.ID)
			if err != nil || item != nil {
				return err
			}
		}

		item, err = models.NewFeedItem(actor, models.RetweetContent{OfFeedItemID: target.ID})
		if err != nil {
			return apperrors.Internal(err)
		}
		return feedItems.Create(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.events.emit(ctx, actor.String(), queue.EventRetweetCreated, queue.RetweetEventData{
			UserID:     actor.String(),
			FeedItemID: item.ID.String(),
			OriginID:   target.ID.String(),
		})
		s.logger.WithFields(map[string]interface{}{
			"user_id":   actor,
			"origin_id": target.ID,
		}).Info("Retweeted successfully")
	}

	return s.GetFeedItem(ctx, &actor, item.ID)
}

// UndoRetweet 删除转发记录与 RETWEET 条目，不存在时也成功
func (s *FeedService) UndoRetweet(ctx context.Context, actor, feedItemID uuid.UUID) error {
	var (
		targetID uuid.UUID
		removed  bool
	)
	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		feedItems := s.feedItems.WithTx(tx)
		removed = false

		targetID = feedItemID
		item, err := feedItems.GetByID(ctx, feedItemID)
		if err != nil {
			return err
		}
		if item != nil && item.Type == models.FeedItemRetweet {
			targetID = *item.RetweetOfFeedItemID
		}

		deletedRow, err := s.retweets.WithTx(tx).Delete(ctx, actor, targetID)
		if err != nil {
			return err
		}
		deletedItem, err := feedItems.DeleteRetweetItem(ctx, actor, targetID)
		if err != nil {
			return err
		}
		removed = deletedRow || deletedItem
		return nil
	})
	if err != nil {
		return err
	}

	if removed {
		s.events.emit(ctx, actor.String(), queue.EventRetweetDeleted, queue.RetweetEventData{
			UserID:   actor.String(),
			OriginID: targetID.String(),
		})
		s.logger.WithFields(map[string]interface{}{
			"user_id":   actor,
			"origin_id": targetID,
		}).Info("Retweet undone successfully")
	}
	return nil
}

// QuoteRetweet 非幂等，每次调用都会创建新的评论帖和条目
func (s *FeedService) QuoteRetweet(ctx context.Context, actor, quotedID uuid.UUID, comment, imageKey string) (*FeedItemView, error) {
	comment, err := normalizeContent(comment, imageKey)
	if err != nil {
		return nil, err
	}

	var item *models.FeedItem
	err = s.db.Transaction(ctx, func(tx *gorm.DB) error {
		quoted, err := s.feedItems.WithTx(tx).GetByID(ctx, quotedID)
		if err != nil {
			return err
		}
		if quoted == nil {
			return apperrors.NotFound("feed item")
		}
		visible, err := s.visibility.WithTx(tx).CanView(ctx, &actor, &quoted.User)
		if err != nil {
			return err
		}
		if !visible {
			return apperrors.PermissionDenied("cannot quote content from a private account")
		}

		post := &models.Post{
			UserID:   actor,
			Content:  comment,
			ImageKey: strings.TrimSpace(imageKey),
		}
		if err := s.posts.WithTx(tx).Create(ctx, post); err != nil {
			return err
		}
		item, err = models.NewFeedItem(actor, models.QuoteContent{QuotedFeedItemID: quoted.ID, CommentPostID: post.ID})
		if err != nil {
			return apperrors.Internal(err)
		}
		if err := s.feedItems.WithTx(tx).Create(ctx, item); err != nil {
			return err
		}
		return s.engagement.IncrementQuoteCount(ctx, tx, quoted.ID)
	})
	if err != nil {
		return nil, err
	}

	s.events.emit(ctx, actor.String(), queue.EventQuoteCreated, queue.QuoteEventData{
		UserID:     actor.String(),
		FeedItemID: item.ID.String(),
		QuotedID:   quotedID.String(),
	})
	s.logger.WithFields(map[string]interface{}{
		"user_id":      actor,
		"feed_item_id": item.ID,
		"quoted_id":    quotedID,
	}).Info("Quote retweet created successfully")

	return s.GetFeedItem(ctx, &actor, item.ID)
}

// DeleteQuoteRetweet 仅作者可删，原条目计数按条件减一
func (s *FeedService) DeleteQuoteRetweet(ctx context.Context, actor, feedItemID uuid.UUID) error {
	var quotedID uuid.UUID
	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		item, err := s.feedItems.WithTx(tx).GetByID(ctx, feedItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return apperrors.NotFound("feed item")
		}
		if item.Type != models.FeedItemQuoteRetweet {
			return apperrors.Validation("feed item is not a quote retweet")
		}
		if item.UserID != actor {
			return apperrors.PermissionDenied("only the author can delete this quote retweet")
		}
		quotedID = *item.QuotedFeedItemID
		return s.deleteQuoteTx(ctx, tx, item)
	})
	if err != nil {
		return err
	}

	s.events.emit(ctx, actor.String(), queue.EventQuoteDeleted, queue.QuoteEventData{
		UserID:     actor.String(),
		FeedItemID: feedItemID.String(),
		QuotedID:   quotedID.String(),
	})
	s.logger.WithFields(map[string]interface{}{
		"user_id":      actor,
		"feed_item_id": feedItemID,
	}).Info("Quote retweet deleted successfully")
	return nil
}

func (s *FeedService) deleteQuoteTx(ctx context.Context, tx *gorm.DB, item *models.FeedItem) error {
	if err := s.engagement.DecrementQuoteCount(ctx, tx, *item.QuotedFeedItemID); err != nil {
		return err
	}
	if err := s.deleteFeedItemTx(ctx, tx, item.ID); err != nil {
		return err
	}
	if err := s.likes.WithTx(tx).DeleteByTarget(ctx, models.LikeTargetPost, *item.PostID); err != nil {
		return err
	}
	return s.posts.WithTx(tx).Delete(ctx, *item.PostID)
}
