package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventUserUpdated           EventType = "user.updated"
	EventPostCreated           EventType = "post.created"
	EventPostDeleted           EventType = "post.deleted"
	EventRankingPublished      EventType = "ranking.published"
	EventRankingRetracted      EventType = "ranking.retracted"
	EventRetweetCreated        EventType = "retweet.created"
	EventRetweetDeleted        EventType = "retweet.deleted"
	EventQuoteCreated          EventType = "quote.created"
	EventQuoteDeleted          EventType = "quote.deleted"
	EventLikeCreated           EventType = "like.created"
	EventLikeDeleted           EventType = "like.deleted"
	EventFollowCreated         EventType = "follow.created"
	EventFollowDeleted         EventType = "follow.deleted"
	EventFollowRequested       EventType = "follow_request.created"
	EventFollowRequestAccepted EventType = "follow_request.accepted"
	EventFollowRequestRejected EventType = "follow_request.rejected"
	EventStorageObjectOrphaned EventType = "storage.object_orphaned"
)

type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func NewEvent(eventType EventType, data interface{}) Event {
	return Event{Type: eventType, Timestamp: time.Now().UTC(), Data: data}
}

// RawEvent 消费端先解出类型，再按类型解析 Data
type RawEvent struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func DecodeEvent(payload []byte) (*RawEvent, error) {
	var event RawEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("event without type")
	}
	return &event, nil
}

func (e *RawEvent) Decode(dest interface{}) error {
	if err := json.Unmarshal(e.Data, dest); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

type PostEventData struct {
	PostID     string `json:"post_id"`
	FeedItemID string `json:"feed_item_id"`
	UserID     string `json:"user_id"`
}

type RankingEventData struct {
	RankingListID string `json:"ranking_list_id"`
	FeedItemID    string `json:"feed_item_id"`
	UserID        string `json:"user_id"`
}

type RetweetEventData struct {
	UserID     string `json:"user_id"`
	FeedItemID string `json:"feed_item_id"`
	OriginID   string `json:"origin_id"`
}

type QuoteEventData struct {
	UserID     string `json:"user_id"`
	FeedItemID string `json:"feed_item_id"`
	QuotedID   string `json:"quoted_id"`
}

type LikeEventData struct {
	UserID   string `json:"user_id"`
	Target   string `json:"target"`
	TargetID string `json:"target_id"`
}

type FollowEventData struct {
	FollowerID  string `json:"follower_id"`
	FollowingID string `json:"following_id"`
	RequestID   string `json:"request_id,omitempty"`
}

type UserEventData struct {
	UserID    string `json:"user_id"`
	IsPrivate bool   `json:"is_private"`
}

// StorageObjectEventData 被替换的图片key，由外部存储服务删除
type StorageObjectEventData struct {
	Key     string `json:"key"`
	OwnerID string `json:"owner_id"`
	Reason  string `json:"reason"`
}
