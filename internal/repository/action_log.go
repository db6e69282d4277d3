package repository

import (
	"context"

	"github.com/lachelier/sugoroku/internal/domain"
)

// ActionLogRepository 是只追加的行动日志。
type ActionLogRepository interface {
	// Append 追加一条记录并回填 ID。
	Append(ctx context.Context, entry *domain.ActionLogEntry) error

	// Latest 返回房间最新的一条记录，没有记录时返回 ErrNotFound。
	Latest(ctx context.Context, roomID uint) (*domain.ActionLogEntry, error)

	// ListByRoom 按写入顺序返回房间的全部记录。
	ListByRoom(ctx context.Context, roomID uint) ([]domain.ActionLogEntry, error)
}
