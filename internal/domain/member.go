package domain

// PieceStatus 棋子状态码。
type PieceStatus int

const (
	PieceStatusHealthy  PieceStatus = 1
	PieceStatusSick     PieceStatus = 2
	PieceStatusFinished PieceStatus = 3
)

func (s PieceStatus) String() string {
	switch s {
	case PieceStatusHealthy:
		return "healthy"
	case PieceStatusSick:
		return "sick"
	case PieceStatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// RoomMember 是房间里的一枚棋子，人类玩家或病毒。
// Autonomous 的棋子 (病毒) 不计入人数上限，不能到达终点，移动时会传染经过的健康棋子。
type RoomMember struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	RoomID     uint        `gorm:"uniqueIndex:idx_room_user;not null" json:"room_id"`
	UserID     uint        `gorm:"uniqueIndex:idx_room_user;not null" json:"user_id"`
	Go         int         `gorm:"not null;default:0" json:"go"` // 行动顺序，0 表示未排或已完赛
	Status     PieceStatus `gorm:"not null" json:"status"`
	Position   int         `gorm:"not null" json:"position"`
	Autonomous bool        `gorm:"not null;default:false" json:"autonomous"`
}

// IsFinished reports whether the piece has left the rotation.
func (m *RoomMember) IsFinished() bool {
	return m.Status == PieceStatusFinished
}

// NewHumanPiece 创建一个刚入室的人类棋子。
func NewHumanPiece(roomID, userID uint) *RoomMember {
	return &RoomMember{RoomID: roomID, UserID: userID, Status: PieceStatusHealthy, Position: 1}
}

// NewVirusPiece 创建病毒棋子，一开始就是感染状态。
func NewVirusPiece(roomID, virusUserID uint) *RoomMember {
	return &RoomMember{RoomID: roomID, UserID: virusUserID, Status: PieceStatusSick, Position: 1, Autonomous: true}
}
