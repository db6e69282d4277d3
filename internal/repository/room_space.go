package repository

import (
	"context"

	"github.com/lachelier/sugoroku/internal/domain"
)

// RoomSpaceRepository 管理房间私有的格子布局。
type RoomSpaceRepository interface {
	// ListByRoom 返回房间布局 (预加载 Space)，按位置升序。
	ListByRoom(ctx context.Context, roomID uint) ([]domain.RoomSpace, error)

	// FindAt 返回房间在某个位置上的格子，没有时返回 ErrNotFound。
	FindAt(ctx context.Context, roomID uint, position int) (*domain.RoomSpace, error)

	// ReplaceAll 删除房间旧布局并写入新布局。
	ReplaceAll(ctx context.Context, roomID uint, spaces []domain.RoomSpace) error
}
