package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrInvalidFeedContent = errors.New("feed item must reference exactly one content branch")
	ErrInvalidLikeTarget  = errors.New("like must reference exactly one target")
)

// FeedContent FeedItem 的内容分支，只有下面四种实现
type FeedContent interface {
	Type() FeedItemType
	apply(item *FeedItem)
}

type PostContent struct {
	PostID uuid.UUID
}

type RankingUpdateContent struct {
	RankingListID uuid.UUID
}

type RetweetContent struct {
	OfFeedItemID uuid.UUID
}

// QuoteContent 引用转发：CommentPostID 指向保存评论的 Post
type QuoteContent struct {
	QuotedFeedItemID uuid.UUID
	CommentPostID    uuid.UUID
}

func (PostContent) Type() FeedItemType          { return FeedItemPost }
func (RankingUpdateContent) Type() FeedItemType { return FeedItemRankingUpdate }
func (RetweetContent) Type() FeedItemType       { return FeedItemRetweet }
func (QuoteContent) Type() FeedItemType         { return FeedItemQuoteRetweet }

func (c PostContent) apply(item *FeedItem) {
	item.PostID = uuidPtr(c.PostID)
}

func (c RankingUpdateContent) apply(item *FeedItem) {
	item.RankingListID = uuidPtr(c.RankingListID)
}

func (c RetweetContent) apply(item *FeedItem) {
	item.RetweetOfFeedItemID = uuidPtr(c.OfFeedItemID)
}

func (c QuoteContent) apply(item *FeedItem) {
	item.QuotedFeedItemID = uuidPtr(c.QuotedFeedItemID)
	item.PostID = uuidPtr(c.CommentPostID)
}

// NewFeedItem 唯一的构造入口，保证只填充一个内容分支
func NewFeedItem(userID uuid.UUID, content FeedContent) (*FeedItem, error) {
	if userID == uuid.Nil || content == nil {
		return nil, ErrInvalidFeedContent
	}
	item := &FeedItem{UserID: userID, Type: content.Type()}
	content.apply(item)
	if _, err := item.Content(); err != nil {
		return nil, err
	}
	return item, nil
}

// Content 从可空列还原内容分支
func (f *FeedItem) Content() (FeedContent, error) {
	set := func(id *uuid.UUID) bool { return id != nil && *id != uuid.Nil }
	post, ranking, retweet, quoted := set(f.PostID), set(f.RankingListID), set(f.RetweetOfFeedItemID), set(f.QuotedFeedItemID)

	switch f.Type {
	case FeedItemPost:
		if post && !ranking && !retweet && !quoted {
			return PostContent{PostID: *f.PostID}, nil
		}
	case FeedItemRankingUpdate:
		if ranking && !post && !retweet && !quoted {
			return RankingUpdateContent{RankingListID: *f.RankingListID}, nil
		}
	case FeedItemRetweet:
		if retweet && !post && !ranking && !quoted {
			return RetweetContent{OfFeedItemID: *f.RetweetOfFeedItemID}, nil
		}
	case FeedItemQuoteRetweet:
		if quoted && post && !ranking && !retweet {
			return QuoteContent{QuotedFeedItemID: *f.QuotedFeedItemID, CommentPostID: *f.PostID}, nil
		}
	default:
		return nil, fmt.Errorf("unknown feed item type %q: %w", f.Type, ErrInvalidFeedContent)
	}
	return nil, fmt.Errorf("feed item %s of type %s: %w", f.ID, f.Type, ErrInvalidFeedContent)
}

// OriginID 转发和引用转发指向的原条目
func (f *FeedItem) OriginID() *uuid.UUID {
	switch f.Type {
	case FeedItemRetweet:
		return f.RetweetOfFeedItemID
	case FeedItemQuoteRetweet:
		return f.QuotedFeedItemID
	}
	return nil
}

type LikeTarget string

const (
	LikeTargetPost        LikeTarget = "post"
	LikeTargetRankingList LikeTarget = "ranking_list"
)

func ParseLikeTarget(s string) (LikeTarget, error) {
	switch LikeTarget(s) {
	case LikeTargetPost, LikeTargetRankingList:
		return LikeTarget(s), nil
	}
	return "", fmt.Errorf("unknown like target %q", s)
}

// Column likes 表中对应的外键列
func (t LikeTarget) Column() string {
	if t == LikeTargetRankingList {
		return "ranking_list_id"
	}
	return "post_id"
}

// Model 持有 like_count 的模型
func (t LikeTarget) Model() interface{} {
	if t == LikeTargetRankingList {
		return &RankingList{}
	}
	return &Post{}
}

func NewLike(userID uuid.UUID, target LikeTarget, targetID uuid.UUID) (*Like, error) {
	if userID == uuid.Nil || targetID == uuid.Nil {
		return nil, ErrInvalidLikeTarget
	}
	like := &Like{UserID: userID}
	switch target {
	case LikeTargetPost:
		like.PostID = uuidPtr(targetID)
	case LikeTargetRankingList:
		like.RankingListID = uuidPtr(targetID)
	default:
		return nil, ErrInvalidLikeTarget
	}
	return like, nil
}

func NewPostLike(userID, postID uuid.UUID) (*Like, error) {
	return NewLike(userID, LikeTargetPost, postID)
}

func NewRankingListLike(userID, rankingListID uuid.UUID) (*Like, error) {
	return NewLike(userID, LikeTargetRankingList, rankingListID)
}

func (l *Like) Target() (LikeTarget, uuid.UUID, error) {
	post := l.PostID != nil && *l.PostID != uuid.Nil
	ranking := l.RankingListID != nil && *l.RankingListID != uuid.Nil
	switch {
	case post && !ranking:
		return LikeTargetPost, *l.PostID, nil
	case ranking && !post:
		return LikeTargetRankingList, *l.RankingListID, nil
	}
	return "", uuid.Nil, ErrInvalidLikeTarget
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
