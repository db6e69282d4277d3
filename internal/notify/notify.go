// Package notify 实现 service.Notifier：把引擎事件交给 asynq 队列或直接发布到 Redis。
package notify

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/lachelier/sugoroku/internal/domain"
	"github.com/lachelier/sugoroku/internal/tasks"
)

// Enqueuer 是 *asynq.Client 的子集
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Publisher 把事件发布给实时订阅者
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// AsynqNotifier 把事件作为任务放入 critical 队列，由 worker 投递。
type AsynqNotifier struct {
	client   Enqueuer
	maxRetry int
}

// NewAsynqNotifier 创建 AsynqNotifier 实例
func NewAsynqNotifier(client Enqueuer) *AsynqNotifier {
	if client == nil {
		panic("asynq client cannot be nil for AsynqNotifier")
	}
	return &AsynqNotifier{client: client, maxRetry: 3}
}

func (n *AsynqNotifier) MemberAdded(ctx context.Context, userID, roomID uint) error {
	return n.enqueue(ctx, domain.Event{Type: domain.EventMemberAdded, RoomID: roomID, UserID: userID})
}

func (n *AsynqNotifier) DiceRolled(ctx context.Context, roomID, userID uint, dice int) error {
	return n.enqueue(ctx, domain.Event{Type: domain.EventDiceRolled, RoomID: roomID, UserID: userID, Dice: dice})
}

func (n *AsynqNotifier) enqueue(ctx context.Context, ev domain.Event) error {
	task, err := tasks.NewRoomEventTask(ev)
	if err != nil {
		return err
	}
	info, err := n.client.EnqueueContext(ctx, task, asynq.Queue(tasks.QueueCritical), asynq.MaxRetry(n.maxRetry))
	if err != nil {
		return fmt.Errorf("notify: failed to enqueue %s for room %d: %w", task.Type(), ev.RoomID, err)
	}
	logrus.WithFields(logrus.Fields{
		"task_id":   info.ID,
		"task_type": task.Type(),
		"room_id":   ev.RoomID,
		"user_id":   ev.UserID,
	}).Debug("Room event enqueued")
	return nil
}

// RedisNotifier 直接发布到 Redis，不经过队列 (NOTIFY_MODE=redis)。
type RedisNotifier struct {
	publisher Publisher
}

// NewRedisNotifier 创建 RedisNotifier 实例
func NewRedisNotifier(publisher Publisher) *RedisNotifier {
	if publisher == nil {
		panic("publisher cannot be nil for RedisNotifier")
	}
	return &RedisNotifier{publisher: publisher}
}

func (n *RedisNotifier) MemberAdded(ctx context.Context, userID, roomID uint) error {
	return n.publisher.Publish(ctx, domain.Event{Type: domain.EventMemberAdded, RoomID: roomID, UserID: userID})
}

func (n *RedisNotifier) DiceRolled(ctx context.Context, roomID, userID uint, dice int) error {
	return n.publisher.Publish(ctx, domain.Event{Type: domain.EventDiceRolled, RoomID: roomID, UserID: userID, Dice: dice})
}

// Nop 丢弃所有事件 (NOTIFY_MODE=none)。
type Nop struct{}

func (Nop) MemberAdded(context.Context, uint, uint) error     { return nil }
func (Nop) DiceRolled(context.Context, uint, uint, int) error { return nil }
