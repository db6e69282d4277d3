package dto

import "github.com/lachelier/sugoroku/internal/domain"

// CreateRoomRequest 建房请求，board_id 为 0 时使用默认棋盘
type CreateRoomRequest struct {
	Name    string `json:"name" binding:"required,max=255"`
	BoardID uint   `json:"board_id"`
}

// RoomDTO 房间的对外表示
type RoomDTO struct {
	ID             uint   `json:"id"`
	UniqueCode     string `json:"unique_code"`
	Name           string `json:"name"`
	OwnerID        uint   `json:"owner_id"`
	BoardID        uint   `json:"board_id"`
	Status         string `json:"status"`
	MemberCount    int    `json:"member_count"`
	MaxMemberCount int    `json:"max_member_count"`
}

// MemberDTO 棋子的对外表示
type MemberDTO struct {
	UserID   uint   `json:"user_id"`
	Go       int    `json:"go"`
	Status   string `json:"status"`
	Position int    `json:"position"`
	Virus    bool   `json:"virus"`
}

// SpaceDTO 房间棋盘上的一格
type SpaceDTO struct {
	Position  int    `json:"position"`
	Name      string `json:"name"`
	EffectID  int    `json:"effect_id"`
	EffectNum int    `json:"effect_num"`
}

// BoardDTO 棋盘模板
type BoardDTO struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	GoalPosition int    `json:"goal_position"`
	GoalStatus   string `json:"goal_status"`
}

// RoomDetailResponse 按邀请码查询房间的响应
type RoomDetailResponse struct {
	Room    RoomDTO     `json:"room"`
	Board   BoardDTO    `json:"board"`
	Spaces  []SpaceDTO  `json:"spaces"`
	Members []MemberDTO `json:"members"`
}

// RollResponse 掷骰结果
type RollResponse struct {
	Dice   int       `json:"dice"`
	Member MemberDTO `json:"member"`
}

// NextGoResponse 下一个行动顺序
type NextGoResponse struct {
	RoomID uint `json:"room_id"`
	NextGo int  `json:"next_go"`
}

// PositionResponse 棋子位置
type PositionResponse struct {
	RoomID   uint `json:"room_id"`
	UserID   uint `json:"user_id"`
	Position int  `json:"position"`
}

func NewRoomDTO(r *domain.Room) RoomDTO {
	return RoomDTO{
		ID:             r.ID,
		UniqueCode:     r.UniqueCode,
		Name:           r.Name,
		OwnerID:        r.OwnerID,
		BoardID:        r.BoardID,
		Status:         r.Status.String(),
		MemberCount:    r.MemberCount,
		MaxMemberCount: r.MaxMemberCount,
	}
}

func NewRoomDTOs(rooms []domain.Room) []RoomDTO {
	out := make([]RoomDTO, 0, len(rooms))
	for i := range rooms {
		out = append(out, NewRoomDTO(&rooms[i]))
	}
	return out
}

func NewMemberDTO(m *domain.RoomMember) MemberDTO {
	return MemberDTO{
		UserID:   m.UserID,
		Go:       m.Go,
		Status:   m.Status.String(),
		Position: m.Position,
		Virus:    m.Autonomous,
	}
}

func NewMemberDTOs(members []domain.RoomMember) []MemberDTO {
	out := make([]MemberDTO, 0, len(members))
	for i := range members {
		out = append(out, NewMemberDTO(&members[i]))
	}
	return out
}

func NewBoardDTO(b *domain.Board) BoardDTO {
	return BoardDTO{ID: b.ID, Name: b.Name, GoalPosition: b.GoalPosition, GoalStatus: b.GoalStatus.String()}
}

func NewSpaceDTOs(spaces []domain.RoomSpace) []SpaceDTO {
	out := make([]SpaceDTO, 0, len(spaces))
	for _, rs := range spaces {
		out = append(out, SpaceDTO{
			Position:  rs.Position,
			Name:      rs.Space.Name,
			EffectID:  int(rs.Space.EffectID),
			EffectNum: rs.Space.EffectNum,
		})
	}
	return out
}
