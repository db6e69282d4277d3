package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/lachelier/sugoroku/internal/domain"
	"github.com/lachelier/sugoroku/internal/repository"
)

// GormRoomSpaceRepository 是 RoomSpaceRepository 接口的 GORM 实现
type GormRoomSpaceRepository struct {
	db *gorm.DB
}

// NewGormRoomSpaceRepository 创建 GormRoomSpaceRepository 实例
func NewGormRoomSpaceRepository(db *gorm.DB) *GormRoomSpaceRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomSpaceRepository")
	}
	return &GormRoomSpaceRepository{db: db}
}

func (r *GormRoomSpaceRepository) ListByRoom(ctx context.Context, roomID uint) ([]domain.RoomSpace, error) {
	var spaces []domain.RoomSpace
	err := r.db.WithContext(ctx).Preload("Space").Where("room_id = ?", roomID).Order("position asc").Find(&spaces).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list room spaces of room %d: %w", roomID, err)
	}
	return spaces, nil
}

func (r *GormRoomSpaceRepository) FindAt(ctx context.Context, roomID uint, position int) (*domain.RoomSpace, error) {
	var rs domain.RoomSpace
	err := r.db.WithContext(ctx).Preload("Space").Where("room_id = ? AND position = ?", roomID, position).First(&rs).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find room space (room %d, position %d): %w", roomID, position, err)
	}
	return &rs, nil
}

// ReplaceAll 在调用方的事务里先删后插
func (r *GormRoomSpaceRepository) ReplaceAll(ctx context.Context, roomID uint, spaces []domain.RoomSpace) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("room_id = ?", roomID).Delete(&domain.RoomSpace{}).Error; err != nil {
		return fmt.Errorf("gorm: clear room spaces of room %d: %w", roomID, err)
	}
	if len(spaces) == 0 {
		return nil
	}
	for i := range spaces {
		spaces[i].RoomID = roomID
	}
	if err := db.Omit("Space").Create(&spaces).Error; err != nil {
		return fmt.Errorf("gorm: create room spaces (room %d, size %d): %w", roomID, len(spaces), err)
	}
	return nil
}
