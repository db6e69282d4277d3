package domain

import (
	"encoding/json"
	"fmt"
)

// EventType 实时通知的类型。
type EventType string

const (
	EventMemberAdded EventType = "member_added"
	EventDiceRolled  EventType = "dice_rolled"
)

// Event 是推送给房间客户端的实时消息。
type Event struct {
	Type   EventType `json:"type"`
	RoomID uint      `json:"room_id"`
	UserID uint      `json:"user_id"`
	Dice   int       `json:"dice,omitempty"`
}

// Marshal 序列化事件用于发布。
func (e Event) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", e.Type, err)
	}
	return b, nil
}

// ParseEvent 解析从频道收到的事件。
func ParseEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if e.Type != EventMemberAdded && e.Type != EventDiceRolled {
		return e, fmt.Errorf("unknown event type %q", e.Type)
	}
	return e, nil
}
