package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	ExternalID  string    `json:"-" gorm:"uniqueIndex;not null"`
	Username    string    `json:"username" gorm:"uniqueIndex;not null"`
	DisplayName string    `json:"display_name"`
	AvatarKey   string    `json:"avatar_key"`
	CoverKey    string    `json:"cover_key"`
	IsPrivate   bool      `json:"is_private" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Follow 已生效的关注关系（follower -> following）
type Follow struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	FollowerID  uuid.UUID `json:"follower_id" gorm:"type:uuid;not null;uniqueIndex:idx_follow_pair,priority:1"`
	FollowingID uuid.UUID `json:"following_id" gorm:"type:uuid;not null;uniqueIndex:idx_follow_pair,priority:2;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`

	Follower  User `json:"-" gorm:"foreignKey:FollowerID"`
	Following User `json:"-" gorm:"foreignKey:FollowingID"`
}

type FollowRequestStatus string

const (
	FollowRequestPending  FollowRequestStatus = "PENDING"
	FollowRequestAccepted FollowRequestStatus = "ACCEPTED"
	FollowRequestRejected FollowRequestStatus = "REJECTED"
)

// FollowRequest 私密账号的关注申请，处理后保留记录
type FollowRequest struct {
	ID          uuid.UUID           `json:"id" gorm:"type:uuid;primaryKey"`
	RequesterID uuid.UUID           `json:"requester_id" gorm:"type:uuid;not null;uniqueIndex:idx_follow_request_pair,priority:1"`
	RequestedID uuid.UUID           `json:"requested_id" gorm:"type:uuid;not null;uniqueIndex:idx_follow_request_pair,priority:2;index:idx_follow_request_inbox,priority:1"`
	Status      FollowRequestStatus `json:"status" gorm:"type:varchar(16);not null;default:'PENDING';index:idx_follow_request_inbox,priority:2"`
	CreatedAt   time.Time           `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time           `json:"updated_at"`

	Requester User `json:"requester" gorm:"foreignKey:RequesterID"`
	Requested User `json:"-" gorm:"foreignKey:RequestedID"`
}

func (User) TableName() string {
	return "users"
}

func (Follow) TableName() string {
	return "follows"
}

func (FollowRequest) TableName() string {
	return "follow_requests"
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (f *Follow) BeforeCreate(_ *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

func (r *FollowRequest) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = FollowRequestPending
	}
	return nil
}
