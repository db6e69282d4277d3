package domain

import "time"

// ActionKind 行动来源。
type ActionKind int

// ActionByDice 表示由掷骰子触发的行动。
const ActionByDice ActionKind = 1

// ActionLogEntry 是只追加的行动记录，按 ID 排序，用于推导下一位行动者。
type ActionLogEntry struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	RoomID    uint       `gorm:"index;not null" json:"room_id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	ActionID  ActionKind `gorm:"not null" json:"action_id"`
	EffectID  EffectKind `gorm:"not null" json:"effect_id"`
	EffectNum int        `gorm:"not null" json:"effect_num"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 固定表名。
func (ActionLogEntry) TableName() string {
	return "room_logs"
}

// NewDiceMove 构造一条掷骰前进的日志。
func NewDiceMove(roomID, userID uint, dice int) *ActionLogEntry {
	return &ActionLogEntry{
		RoomID:    roomID,
		UserID:    userID,
		ActionID:  ActionByDice,
		EffectID:  EffectMoveForward,
		EffectNum: dice,
	}
}
