package redisstate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/lachelier/sugoroku/internal/domain"
)

// historyLimit 每个房间保留的最近事件数
const historyLimit = 100

// EventBus 通过 Redis 发布房间事件，并保存最近的事件供新连接补发。
type EventBus struct {
	client    *redis.Client
	keyPrefix string
}

// NewEventBus 创建 EventBus 实例
func NewEventBus(client *redis.Client, keyPrefix string) *EventBus {
	if client == nil {
		panic("redis client cannot be nil for EventBus")
	}
	if keyPrefix == "" {
		keyPrefix = "sg:"
	}
	return &EventBus{client: client, keyPrefix: keyPrefix}
}

// --- Key Generation Helpers ---

func roomEventChannel(prefix string, roomID uint) string {
	return fmt.Sprintf("%sroom:%d:events", prefix, roomID)
}

func roomEventPattern(prefix string) string {
	return prefix + "room:*:events"
}

func roomHistoryKey(prefix string, roomID uint) string {
	return fmt.Sprintf("%sroom:%d:history", prefix, roomID)
}

// RoomIDFromChannel 从事件频道名解析房间 ID。
func RoomIDFromChannel(prefix, channel string) (uint, bool) {
	rest := strings.TrimPrefix(channel, prefix+"room:")
	if rest == channel {
		return 0, false
	}
	idStr := strings.TrimSuffix(rest, ":events")
	if idStr == rest {
		return 0, false
	}
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// Publish 把事件写入房间历史并发布到房间频道。
func (b *EventBus) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	channel := roomEventChannel(b.keyPrefix, ev.RoomID)
	historyKey := roomHistoryKey(b.keyPrefix, ev.RoomID)

	pipe := b.client.TxPipeline()
	pipe.RPush(ctx, historyKey, payload)
	pipe.LTrim(ctx, historyKey, -historyLimit, -1)
	pipe.Expire(ctx, historyKey, 24*time.Hour)
	pipe.Publish(ctx, channel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(payload),
			"room_id":      ev.RoomID,
			"event_type":   ev.Type,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish event to channel %s: %w", channel, err)
	}
	return nil
}

// RecentEvents 返回房间最近的 limit 条事件，无法解析的条目会被跳过。
func (b *EventBus) RecentEvents(ctx context.Context, roomID uint, limit int) ([]domain.Event, error) {
	if limit <= 0 || limit > historyLimit {
		limit = historyLimit
	}
	key := roomHistoryKey(b.keyPrefix, roomID)
	raw, err := b.client.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to get recent events for room %d from %s: %w", roomID, key, err)
	}
	events := make([]domain.Event, 0, len(raw))
	for _, s := range raw {
		ev, err := domain.ParseEvent([]byte(s))
		if err != nil {
			logrus.Warnf("redis: skipping malformed event in history for room %d: %v", roomID, err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// ClearHistory 删除房间的事件历史 (房间解散后)。
func (b *EventBus) ClearHistory(ctx context.Context, roomID uint) error {
	key := roomHistoryKey(b.keyPrefix, roomID)
	if err := b.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: failed to clear history for room %d: %w", roomID, err)
	}
	return nil
}

// Subscribe 订阅所有房间的事件频道。调用方负责 Close。
func (b *EventBus) Subscribe(ctx context.Context) *redis.PubSub {
	return b.client.PSubscribe(ctx, roomEventPattern(b.keyPrefix))
}

// KeyPrefix 返回使用的 key 前缀。
func (b *EventBus) KeyPrefix() string {
	return b.keyPrefix
}
