package repository

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rankfeed/rankfeed/internal/apperrors"
	"gorm.io/gorm"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// PageRequest 游标分页参数，Cursor 是上一页 NextCursor 返回的行ID
type PageRequest struct {
	Limit  int
	Cursor *uuid.UUID
}

// Page 不足一页时 NextCursor 为 nil
type Page[T any] struct {
	Items      []T        `json:"items"`
	NextCursor *uuid.UUID `json:"next_cursor"`
}

// ParsePageRequest 解析查询参数，limit 超出范围时截断
func ParsePageRequest(limit, cursor string) (PageRequest, error) {
	var req PageRequest
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return req, apperrors.Validation("limit must be an integer")
		}
		req.Limit = n
	}
	if cursor != "" {
		id, err := uuid.Parse(cursor)
		if err != nil {
			return req, apperrors.Validation("invalid cursor")
		}
		req.Cursor = &id
	}
	return req.Normalize(), nil
}

func (p PageRequest) Normalize() PageRequest {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

type cursorRow struct {
	ID        uuid.UUID
	CreatedAt time.Time
}

// keyset 按 created_at desc, id desc 定位到游标行（包含该行），多取一行用于判断是否还有下一页
func keyset(db *gorm.DB, table string, page PageRequest) (*gorm.DB, error) {
	page = page.Normalize()
	query := db.Order(table + ".created_at DESC").Order(table + ".id DESC").Limit(page.Limit + 1)
	if page.Cursor == nil {
		return query, nil
	}

	var row cursorRow
	err := db.Session(&gorm.Session{NewDB: true}).
		Table(table).
		Select("id", "created_at").
		Where("id = ?", *page.Cursor).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Validation("unknown cursor")
		}
		return nil, fmt.Errorf("failed to resolve cursor: %w", err)
	}

	return query.Where(
		fmt.Sprintf("(%[1]s.created_at < ? OR (%[1]s.created_at = ? AND %[1]s.id <= ?))", table),
		row.CreatedAt, row.CreatedAt, row.ID,
	), nil
}

// trimPage 弹出多取的一行作为下一页游标
func trimPage[T any](items []T, page PageRequest, idOf func(T) uuid.UUID) Page[T] {
	page = page.Normalize()
	if items == nil {
		items = []T{}
	}
	if len(items) <= page.Limit {
		return Page[T]{Items: items}
	}
	next := idOf(items[page.Limit])
	return Page[T]{Items: items[:page.Limit], NextCursor: &next}
}
