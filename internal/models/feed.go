package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Post struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	ImageKey  string    `json:"image_key"`
	LikeCount int64     `json:"like_count" gorm:"not null;default:0"` // 仅由EngagementService维护
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User User `json:"user" gorm:"foreignKey:UserID"`
}

type RankingListStatus string

const (
	RankingListDraft     RankingListStatus = "DRAFT"
	RankingListPublished RankingListStatus = "PUBLISHED"
)

type RankingList struct {
	ID          uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID         `json:"user_id" gorm:"type:uuid;not null;index"`
	Title       string            `json:"title" gorm:"not null"`
	Description string            `json:"description" gorm:"type:text"`
	Status      RankingListStatus `json:"status" gorm:"type:varchar(16);not null;default:'DRAFT'"`
	LikeCount   int64             `json:"like_count" gorm:"not null;default:0"` // 仅由EngagementService维护
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`

	User User `json:"user" gorm:"foreignKey:UserID"`
}

type FeedItemType string

const (
	FeedItemPost          FeedItemType = "POST"
	FeedItemRankingUpdate FeedItemType = "RANKING_UPDATE"
	FeedItemRetweet       FeedItemType = "RETWEET"
	FeedItemQuoteRetweet  FeedItemType = "QUOTE_RETWEET"
)

// FeedItem 时间线条目。内容引用列只能通过 NewFeedItem 按 FeedContent 填充
type FeedItem struct {
	ID                  uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey"`
	Type                FeedItemType `json:"type" gorm:"type:varchar(20);not null;uniqueIndex:idx_feed_ranking_update,priority:2"`
	UserID              uuid.UUID    `json:"user_id" gorm:"type:uuid;not null;index:idx_feed_user_created,priority:1"`
	PostID              *uuid.UUID   `json:"post_id,omitempty" gorm:"type:uuid;index"`
	RankingListID       *uuid.UUID   `json:"ranking_list_id,omitempty" gorm:"type:uuid;uniqueIndex:idx_feed_ranking_update,priority:1"`
	RetweetOfFeedItemID *uuid.UUID   `json:"retweet_of_feed_item_id,omitempty" gorm:"type:uuid;index"`
	QuotedFeedItemID    *uuid.UUID   `json:"quoted_feed_item_id,omitempty" gorm:"type:uuid;index"`
	QuoteRetweetCount   int64        `json:"quote_retweet_count" gorm:"not null;default:0"` // 仅由EngagementService维护
	CreatedAt           time.Time    `json:"created_at" gorm:"index:idx_feed_user_created,priority:2;index"`
	UpdatedAt           time.Time    `json:"updated_at"`

	User        User         `json:"user" gorm:"foreignKey:UserID"`
	Post        *Post        `json:"post,omitempty" gorm:"foreignKey:PostID"`
	RankingList *RankingList `json:"ranking_list,omitempty" gorm:"foreignKey:RankingListID"`
}

// Retweet 每个用户对同一条目最多转发一次
type Retweet struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_retweet_user_item,priority:1"`
	FeedItemID uuid.UUID `json:"feed_item_id" gorm:"type:uuid;not null;uniqueIndex:idx_retweet_user_item,priority:2;index"`
	CreatedAt  time.Time `json:"created_at"`
}

// Like PostID 与 RankingListID 恰好有一个非空，唯一性由事务内检查保证
type Like struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID        uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index:idx_like_user_post,priority:1;index:idx_like_user_ranking,priority:1"`
	PostID        *uuid.UUID `json:"post_id,omitempty" gorm:"type:uuid;index:idx_like_user_post,priority:2;index"`
	RankingListID *uuid.UUID `json:"ranking_list_id,omitempty" gorm:"type:uuid;index:idx_like_user_ranking,priority:2;index"`
	CreatedAt     time.Time  `json:"created_at" gorm:"index"`

	User User `json:"user" gorm:"foreignKey:UserID"`
}

func (Post) TableName() string {
	return "posts"
}

func (RankingList) TableName() string {
	return "ranking_lists"
}

func (FeedItem) TableName() string {
	return "feed_items"
}

func (Retweet) TableName() string {
	return "retweets"
}

func (Like) TableName() string {
	return "likes"
}

func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (r *RankingList) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = RankingListDraft
	}
	return nil
}

func (f *FeedItem) BeforeCreate(_ *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	_, err := f.Content()
	return err
}

func (r *Retweet) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (l *Like) BeforeCreate(_ *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	_, _, err := l.Target()
	return err
}
