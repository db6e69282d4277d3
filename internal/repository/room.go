package repository

import (
	"context"

	"github.com/lachelier/sugoroku/internal/domain"
)

// RoomRepository 定义了房间数据的存储和检索操作。软删除的房间对所有查询不可见。
type RoomRepository interface {
	// FindByID 根据房间 ID 查找房间，不存在时返回 ErrRoomNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Room, error)

	// LockByID 与 FindByID 相同，但在支持的存储上对该行加排他锁，直到事务结束。
	LockByID(ctx context.Context, id uint) (*domain.Room, error)

	// FindByUniqueCode 根据唯一码查找房间。
	FindByUniqueCode(ctx context.Context, code string) (*domain.Room, error)

	// FindFirstByOwner 返回 owner 名下 ID 最小的房间，可按状态过滤 (status 为 0 时不过滤)。
	FindFirstByOwner(ctx context.Context, ownerID uint, status domain.RoomStatus) (*domain.Room, error)

	// FindFirstActive 返回 ID 最小的 Open 或 Busy 房间。
	FindFirstActive(ctx context.Context) (*domain.Room, error)

	// ListByStatus 返回指定状态的房间，按 ID 升序。
	ListByStatus(ctx context.Context, status domain.RoomStatus) ([]domain.Room, error)

	// CountActive 返回未被软删除的房间数量。
	CountActive(ctx context.Context) (int64, error)

	// Create 保存新房间并回填 ID。唯一码冲突时返回 ErrDuplicateEntry。
	Create(ctx context.Context, room *domain.Room) error

	// Save 更新已有房间。
	Save(ctx context.Context, room *domain.Room) error

	// SoftDelete 软删除房间。
	SoftDelete(ctx context.Context, id uint) error
}
