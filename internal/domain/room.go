package domain

import (
	"time"

	"gorm.io/gorm"
)

// RoomStatus 房间状态码。
type RoomStatus int

const (
	RoomStatusOpen RoomStatus = 1
	RoomStatusBusy RoomStatus = 2
)

func (s RoomStatus) String() string {
	switch s {
	case RoomStatusOpen:
		return "open"
	case RoomStatusBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Room 表示一局游戏。解散时软删除 (DeletedAt)。
type Room struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UniqueCode     string         `gorm:"uniqueIndex;size:191;not null" json:"unique_code"`
	Name           string         `gorm:"size:255;not null" json:"name"`
	OwnerID        uint           `gorm:"index;not null" json:"owner_id"`
	BoardID        uint           `gorm:"index;not null" json:"board_id"`
	Status         RoomStatus     `gorm:"index;not null" json:"status"`
	MemberCount    int            `gorm:"not null;default:0" json:"member_count"` // 不含病毒
	MaxMemberCount int            `gorm:"not null" json:"max_member_count"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsFull reports whether a human may still join.
func (r *Room) IsFull() bool {
	return r.MemberCount >= r.MaxMemberCount
}

// SlotCount 是轮转中的总槽位数，人类加上病毒自己的一格。
func (r *Room) SlotCount() int {
	return r.MemberCount + 1
}

// RoomSpace 是房间私有的格子布局，第一次读取布局时从棋盘模板复制。
type RoomSpace struct {
	ID       uint  `gorm:"primaryKey" json:"id"`
	RoomID   uint  `gorm:"index:idx_room_space_pos,unique;not null" json:"room_id"`
	SpaceID  uint  `gorm:"not null" json:"space_id"`
	Position int   `gorm:"index:idx_room_space_pos,unique;not null" json:"position"`
	Space    Space `gorm:"foreignKey:SpaceID" json:"space"`
}
