package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/lachelier/sugoroku/internal/domain"
	"github.com/lachelier/sugoroku/internal/tasks"
)

// EventPublisher 把事件发布到实时频道
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// EventDeliveryHandler 处理 event:* 任务，把引擎事件发布给 Hub。
type EventDeliveryHandler struct {
	publisher EventPublisher
}

// NewEventDeliveryHandler 创建 Handler 实例
func NewEventDeliveryHandler(publisher EventPublisher) *EventDeliveryHandler {
	if publisher == nil {
		panic("EventPublisher cannot be nil for EventDeliveryHandler")
	}
	return &EventDeliveryHandler{publisher: publisher}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *EventDeliveryHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"queue":     tasks.QueueCritical,
		"retry":     currentRetry,
		"max_retry": maxRetry,
	})

	ev, err := tasks.ParseRoomEventTask(t)
	if err != nil {
		logCtx.WithError(err).Error("Failed to parse room event task")
		return fmt.Errorf("invalid room event payload: %v: %w", err, asynq.SkipRetry)
	}
	logCtx = logCtx.WithFields(logrus.Fields{"room_id": ev.RoomID, "user_id": ev.UserID})

	if err := h.publisher.Publish(ctx, ev); err != nil {
		logCtx.WithError(err).Warn("Failed to publish room event, will retry")
		return fmt.Errorf("failed to publish %s for room %d: %w", ev.Type, ev.RoomID, err)
	}

	logCtx.Debug("Room event delivered")
	return nil
}
