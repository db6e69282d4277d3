package domain

// EffectKind 标识格子或动作的效果类型。
type EffectKind int

const (
	// EffectChangeStatus 把经过的棋子状态改写为格子的 EffectNum。
	EffectChangeStatus EffectKind = 1
	// EffectMoveForward 用于行动日志，EffectNum 为前进的格数。
	EffectMoveForward EffectKind = 1
)

// Board 是棋盘模板，多个房间可以共用同一个棋盘。
type Board struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	Name         string      `gorm:"size:191;not null" json:"name"`
	GoalPosition int         `gorm:"not null" json:"goal_position"` // 赛道长度，终点格
	GoalStatus   PieceStatus `gorm:"not null" json:"goal_status"`   // 进入终点所需的棋子状态
	Spaces       []Space     `gorm:"foreignKey:BoardID" json:"spaces,omitempty"`
}

// Space 是棋盘模板上的特殊格子。
type Space struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	BoardID   uint       `gorm:"index;not null" json:"board_id"`
	Name      string     `gorm:"size:191" json:"name"`
	Position  int        `gorm:"not null" json:"position"`
	EffectID  EffectKind `gorm:"not null" json:"effect_id"`
	EffectNum int        `gorm:"not null" json:"effect_num"`
}

// Wrap 把超过终点的位置折回赛道起点 (多圈玩法)。
func (b *Board) Wrap(position int) int {
	if b.GoalPosition <= 0 {
		return position
	}
	for position > b.GoalPosition {
		position -= b.GoalPosition
	}
	return position
}

// DefaultBoard 返回迁移时写入的默认棋盘：30 格，健康状态才能进入终点，2 号格是医院。
func DefaultBoard() (Board, []Space) {
	board := Board{ID: 1, Name: "default", GoalPosition: 30, GoalStatus: PieceStatusHealthy}
	spaces := []Space{
		{BoardID: 1, Name: "病院", Position: 2, EffectID: EffectChangeStatus, EffectNum: int(PieceStatusHealthy)},
	}
	return board, spaces
}
