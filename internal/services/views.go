package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/rankfeed/rankfeed/internal/models"
)

// 对外输出的投影，避免把内部列（external_id 等）直接序列化出去

type UserSummary struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarKey   string    `json:"avatar_key,omitempty"`
	IsPrivate   bool      `json:"is_private"`
}

type PostView struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	ImageKey  string    `json:"image_key,omitempty"`
	LikeCount int64     `json:"like_count"`
	CreatedAt time.Time `json:"created_at"`
}

type RankingListView struct {
	ID          uuid.UUID                `json:"id"`
	Title       string                   `json:"title"`
	Description string                   `json:"description,omitempty"`
	Status      models.RankingListStatus `json:"status"`
	LikeCount   int64                    `json:"like_count"`
}

type FeedItemView struct {
	ID                  uuid.UUID           `json:"id"`
	Type                models.FeedItemType `json:"type"`
	User                UserSummary         `json:"user"`
	Post                *PostView           `json:"post,omitempty"`
	RankingList         *RankingListView    `json:"ranking_list,omitempty"`
	RetweetOfFeedItemID *uuid.UUID          `json:"retweet_of_feed_item_id,omitempty"`
	QuotedFeedItemID    *uuid.UUID          `json:"quoted_feed_item_id,omitempty"`

	// Origin 只解析一层；原条目不可见时为空且 OriginHidden=true
	Origin       *FeedItemView `json:"origin,omitempty"`
	OriginHidden bool          `json:"origin_hidden,omitempty"`

	RetweetCount      int64 `json:"retweet_count"`
	QuoteRetweetCount int64 `json:"quote_retweet_count"`
	LikedByViewer     bool  `json:"liked_by_viewer"`
	RetweetedByViewer bool  `json:"retweeted_by_viewer"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type FollowRequestView struct {
	ID        uuid.UUID                  `json:"id"`
	Requester UserSummary                `json:"requester"`
	Status    models.FollowRequestStatus `json:"status"`
	CreatedAt time.Time                  `json:"created_at"`
}

type ProfileView struct {
	UserSummary
	CoverKey       string       `json:"cover_key,omitempty"`
	FollowersCount int64        `json:"followers_count"`
	FollowingCount int64        `json:"following_count"`
	FollowStatus   FollowStatus `json:"follow_status"`
	CreatedAt      time.Time    `json:"created_at"`
}

func summarizeUser(u *models.User) UserSummary {
	return UserSummary{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarKey:   u.AvatarKey,
		IsPrivate:   u.IsPrivate,
	}
}

func projectPost(p *models.Post) *PostView {
	if p == nil {
		return nil
	}
	return &PostView{
		ID:        p.ID,
		Content:   p.Content,
		ImageKey:  p.ImageKey,
		LikeCount: p.LikeCount,
		CreatedAt: p.CreatedAt,
	}
}

func projectRankingList(r *models.RankingList) *RankingListView {
	if r == nil {
		return nil
	}
	return &RankingListView{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		LikeCount:   r.LikeCount,
	}
}

func projectFeedItem(item *models.FeedItem) *FeedItemView {
	return &FeedItemView{
		ID:                  item.ID,
		Type:                item.Type,
		User:                summarizeUser(&item.User),
		Post:                projectPost(item.Post),
		RankingList:         projectRankingList(item.RankingList),
		RetweetOfFeedItemID: item.RetweetOfFeedItemID,
		QuotedFeedItemID:    item.QuotedFeedItemID,
		QuoteRetweetCount:   item.QuoteRetweetCount,
		CreatedAt:           item.CreatedAt,
		UpdatedAt:           item.UpdatedAt,
	}
}
