package workers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rankfeed/rankfeed/internal/models"
	"github.com/rankfeed/rankfeed/pkg/logger"
	"github.com/rankfeed/rankfeed/pkg/queue"
)

// CounterReconciler 由 EngagementService 实现
type CounterReconciler interface {
	ReconcileLikeCount(ctx context.Context, target models.LikeTarget, targetID uuid.UUID) error
	ReconcileQuoteCount(ctx context.Context, feedItemID uuid.UUID) error
}

// FollowingInvalidator 由 GraphService 实现
type FollowingInvalidator interface {
	InvalidateFollowing(ctx context.Context, userID uuid.UUID)
}

// FeedWorker 消费领域事件：按关系表校正计数列，关注关系变化后清理关注集合缓存
type FeedWorker struct {
	counters  CounterReconciler
	following FollowingInvalidator
	consumer  *queue.KafkaConsumer
	logger    *logger.Logger
}

func NewFeedWorker(counters CounterReconciler, following FollowingInvalidator, consumer *queue.KafkaConsumer, logger *logger.Logger) *FeedWorker {
	return &FeedWorker{
		counters:  counters,
		following: following,
		consumer:  consumer,
		logger:    logger,
	}
}

func (w *FeedWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting feed worker...")
	return w.consumer.Subscribe(ctx, w.Handle)
}

func (w *FeedWorker) Handle(ctx context.Context, msg queue.Message) error {
	event, err := queue.DecodeEvent(msg.Value)
	if err != nil {
		return err
	}

	w.logger.WithFields(map[string]interface{}{
		"event_type": event.Type,
		"timestamp":  event.Timestamp,
	}).Debug("Processing event")

	switch event.Type {
	case queue.EventLikeCreated, queue.EventLikeDeleted:
		return w.handleLike(ctx, event)
	case queue.EventQuoteCreated, queue.EventQuoteDeleted:
		return w.handleQuote(ctx, event)
	case queue.EventFollowCreated, queue.EventFollowDeleted, queue.EventFollowRequestAccepted:
		return w.handleFollow(ctx, event)
	default:
		return nil
	}
}

func (w *FeedWorker) handleLike(ctx context.Context, event *queue.RawEvent) error {
	var data queue.LikeEventData
	if err := event.Decode(&data); err != nil {
		return err
	}
	target, err := models.ParseLikeTarget(data.Target)
	if err != nil {
		return err
	}
	targetID, err := uuid.Parse(data.TargetID)
	if err != nil {
		return fmt.Errorf("invalid target_id in %s: %w", event.Type, err)
	}

	if err := w.counters.ReconcileLikeCount(ctx, target, targetID); err != nil {
		return fmt.Errorf("failed to reconcile like count: %w", err)
	}
	return nil
}

func (w *FeedWorker) handleQuote(ctx context.Context, event *queue.RawEvent) error {
	var data queue.QuoteEventData
	if err := event.Decode(&data); err != nil {
		return err
	}
	quotedID, err := uuid.Parse(data.QuotedID)
	if err != nil {
		return fmt.Errorf("invalid quoted_id in %s: %w", event.Type, err)
	}

	if err := w.counters.ReconcileQuoteCount(ctx, quotedID); err != nil {
		return fmt.Errorf("failed to reconcile quote count: %w", err)
	}
	return nil
}

func (w *FeedWorker) handleFollow(ctx context.Context, event *queue.RawEvent) error {
	var data queue.FollowEventData
	if err := event.Decode(&data); err != nil {
		return err
	}
	followerID, err := uuid.Parse(data.FollowerID)
	if err != nil {
		return fmt.Errorf("invalid follower_id in %s: %w", event.Type, err)
	}

	// API 进程已经清理过一次，这里兜底其他实例写入的旧缓存
	w.following.InvalidateFollowing(ctx, followerID)
	return nil
}

func (w *FeedWorker) Stop() error {
	return w.consumer.Close()
}
