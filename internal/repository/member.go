package repository

import (
	"context"

	"github.com/lachelier/sugoroku/internal/domain"
)

// MemberRepository 管理房间中的棋子 (room_members)。
type MemberRepository interface {
	// Find 返回 (room, user) 对应的棋子，不存在时返回 ErrMemberNotFound。
	Find(ctx context.Context, roomID, userID uint) (*domain.RoomMember, error)

	// FindAutonomous 返回房间里的病毒棋子。
	FindAutonomous(ctx context.Context, roomID uint) (*domain.RoomMember, error)

	// FindFirstByUser 返回该用户 ID 最小的一条成员记录。
	FindFirstByUser(ctx context.Context, userID uint) (*domain.RoomMember, error)

	// ListByRoom 返回房间的全部棋子，按 ID 升序。
	ListByRoom(ctx context.Context, roomID uint) ([]domain.RoomMember, error)

	// Create 插入新棋子。(room, user) 重复时返回 ErrDuplicateEntry。
	Create(ctx context.Context, member *domain.RoomMember) error

	// Save 更新棋子的 go / status / position。
	Save(ctx context.Context, member *domain.RoomMember) error

	// DeleteByRoom 物理删除房间的全部棋子。
	DeleteByRoom(ctx context.Context, roomID uint) error
}
