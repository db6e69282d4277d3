package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/lachelier/sugoroku/internal/domain"
	"github.com/lachelier/sugoroku/internal/repository"
)

// GormActionLogRepository 是 ActionLogRepository 接口的 GORM 实现
type GormActionLogRepository struct {
	db *gorm.DB
}

// NewGormActionLogRepository 创建 GormActionLogRepository 实例
func NewGormActionLogRepository(db *gorm.DB) *GormActionLogRepository {
	if db == nil {
		panic("database connection cannot be nil for GormActionLogRepository")
	}
	return &GormActionLogRepository{db: db}
}

// Append 追加一条行动记录
func (r *GormActionLogRepository) Append(ctx context.Context, entry *domain.ActionLogEntry) error {
	err := r.db.WithContext(ctx).Create(entry).Error
	if err != nil {
		return fmt.Errorf("gorm: append action log (room %d, user %d): %w", entry.RoomID, entry.UserID, err)
	}
	return nil
}

// Latest 返回房间最新的记录，主键自增保证顺序
func (r *GormActionLogRepository) Latest(ctx context.Context, roomID uint) (*domain.ActionLogEntry, error) {
	var entry domain.ActionLogEntry
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Order("id desc").First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: latest action log for room %d: %w", roomID, err)
	}
	return &entry, nil
}

// ListByRoom 按写入顺序返回房间的全部记录
func (r *GormActionLogRepository) ListByRoom(ctx context.Context, roomID uint) ([]domain.ActionLogEntry, error) {
	var entries []domain.ActionLogEntry
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Order("id asc").Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list action logs for room %d: %w", roomID, err)
	}
	return entries, nil
}
