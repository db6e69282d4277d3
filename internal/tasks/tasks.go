package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/lachelier/sugoroku/internal/domain"
)

// 定义任务类型常量
const (
	TypeMemberAdded = "event:member_added" // 入室通知
	TypeDiceRolled  = "event:dice_rolled"  // 掷骰通知
	TypeRoomSweep   = "room:sweep"         // 周期性清理已解散房间的连接
)

// QueueCritical 实时事件使用的队列
const QueueCritical = "critical"

// RoomEventPayload 是事件投递任务的数据结构
type RoomEventPayload struct {
	Event domain.Event `json:"event"`
}

// TaskTypeFor 返回事件对应的任务类型。
func TaskTypeFor(t domain.EventType) (string, error) {
	switch t {
	case domain.EventMemberAdded:
		return TypeMemberAdded, nil
	case domain.EventDiceRolled:
		return TypeDiceRolled, nil
	default:
		return "", fmt.Errorf("tasks: no task type for event %q", t)
	}
}

// NewRoomEventTask 创建事件投递任务
func NewRoomEventTask(ev domain.Event) (*asynq.Task, error) {
	typ, err := TaskTypeFor(ev.Type)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(RoomEventPayload{Event: ev})
	if err != nil {
		return nil, fmt.Errorf("tasks: failed to marshal %s payload: %w", typ, err)
	}
	return asynq.NewTask(typ, payload), nil
}

// ParseRoomEventTask 解析事件投递任务，任务类型必须与事件类型一致。
func ParseRoomEventTask(t *asynq.Task) (domain.Event, error) {
	var payload RoomEventPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return domain.Event{}, fmt.Errorf("tasks: failed to unmarshal payload: %w", err)
	}
	typ, err := TaskTypeFor(payload.Event.Type)
	if err != nil {
		return domain.Event{}, err
	}
	if typ != t.Type() {
		return domain.Event{}, fmt.Errorf("tasks: event %q does not match task type %s", payload.Event.Type, t.Type())
	}
	if payload.Event.RoomID == 0 {
		return domain.Event{}, fmt.Errorf("tasks: event without room id")
	}
	return payload.Event, nil
}

// NewRoomSweepTask 创建周期清理任务，没有 payload。
func NewRoomSweepTask() *asynq.Task {
	return asynq.NewTask(TypeRoomSweep, nil)
}
