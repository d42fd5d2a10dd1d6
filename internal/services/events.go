package services

import (
	"context"

	"github.com/rankfeed/rankfeed/pkg/logger"
	"github.com/rankfeed/rankfeed/pkg/queue"
)

// eventSink 事务提交后发送领域事件，发送失败只记日志
type eventSink struct {
	publisher queue.Publisher
	logger    *logger.Logger
}

func (s eventSink) emit(ctx context.Context, key string, eventType queue.EventType, data interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, key, queue.NewEvent(eventType, data)); err != nil {
		s.logger.WithError(err).WithField("event_type", eventType).Error("Failed to publish event")
	}
}
