package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lachelier/sugoroku/internal/domain"
	"github.com/lachelier/sugoroku/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现。
// gorm 的软删除作用域会自动过滤 deleted_at 不为空的房间。
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

func (r *GormRoomRepository) first(query *gorm.DB, what string) (*domain.Room, error) {
	var room domain.Room
	err := query.Order("id asc").First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by %s: %w", what, err)
	}
	return &room, nil
}

// FindByID 实现根据房间 ID 查找房间
func (r *GormRoomRepository) FindByID(ctx context.Context, id uint) (*domain.Room, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id), fmt.Sprintf("id %d", id))
}

// LockByID 在当前事务中以 SELECT ... FOR UPDATE 读取房间
func (r *GormRoomRepository) LockByID(ctx context.Context, id uint) (*domain.Room, error) {
	query := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id)
	return r.first(query, fmt.Sprintf("id %d (for update)", id))
}

// FindByUniqueCode 实现根据唯一码查找房间
func (r *GormRoomRepository) FindByUniqueCode(ctx context.Context, code string) (*domain.Room, error) {
	return r.first(r.db.WithContext(ctx).Where("unique_code = ?", code), fmt.Sprintf("unique code '%s'", code))
}

// FindFirstByOwner 返回 owner 的第一个房间，status 为 0 时不按状态过滤
func (r *GormRoomRepository) FindFirstByOwner(ctx context.Context, ownerID uint, status domain.RoomStatus) (*domain.Room, error) {
	query := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if status != 0 {
		query = query.Where("status = ?", status)
	}
	return r.first(query, fmt.Sprintf("owner %d", ownerID))
}

// FindFirstActive 返回第一个 Open 或 Busy 的房间
func (r *GormRoomRepository) FindFirstActive(ctx context.Context) (*domain.Room, error) {
	query := r.db.WithContext(ctx).Where("status IN ?", []domain.RoomStatus{domain.RoomStatusOpen, domain.RoomStatusBusy})
	return r.first(query, "active status")
}

// ListByStatus 按状态列出房间
func (r *GormRoomRepository) ListByStatus(ctx context.Context, status domain.RoomStatus) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.WithContext(ctx).Where("status = ?", status).Order("id asc").Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list rooms by status %d: %w", status, err)
	}
	return rooms, nil
}

// CountActive 统计未被软删除的房间
func (r *GormRoomRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Room{}).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count active rooms: %w", err)
	}
	return count, nil
}

// Create 插入新房间
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	err := r.db.WithContext(ctx).Create(room).Error
	if err != nil {
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create room (unique_code: %s): %w", room.UniqueCode, err)
	}
	return nil
}

// Save 更新房间
func (r *GormRoomRepository) Save(ctx context.Context, room *domain.Room) error {
	err := r.db.WithContext(ctx).Save(room).Error
	if err != nil {
		return fmt.Errorf("gorm: save room (id: %d): %w", room.ID, err)
	}
	return nil
}

// SoftDelete 设置 deleted_at
func (r *GormRoomRepository) SoftDelete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&domain.Room{}, id)
	if result.Error != nil {
		return fmt.Errorf("gorm: soft delete room %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrRoomNotFound
	}
	return nil
}
