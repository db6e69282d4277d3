package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/lachelier/sugoroku/internal/domain"
	"github.com/lachelier/sugoroku/internal/repository"
)

// GormMemberRepository 是 MemberRepository 接口的 GORM 实现
type GormMemberRepository struct {
	db *gorm.DB
}

// NewGormMemberRepository 创建 GormMemberRepository 实例
func NewGormMemberRepository(db *gorm.DB) *GormMemberRepository {
	if db == nil {
		panic("database connection cannot be nil for GormMemberRepository")
	}
	return &GormMemberRepository{db: db}
}

func (r *GormMemberRepository) first(query *gorm.DB, what string) (*domain.RoomMember, error) {
	var member domain.RoomMember
	err := query.Order("id asc").First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrMemberNotFound
		}
		return nil, fmt.Errorf("gorm: find member by %s: %w", what, err)
	}
	return &member, nil
}

func (r *GormMemberRepository) Find(ctx context.Context, roomID, userID uint) (*domain.RoomMember, error) {
	query := r.db.WithContext(ctx).Where("room_id = ? AND user_id = ?", roomID, userID)
	return r.first(query, fmt.Sprintf("room %d user %d", roomID, userID))
}

func (r *GormMemberRepository) FindAutonomous(ctx context.Context, roomID uint) (*domain.RoomMember, error) {
	query := r.db.WithContext(ctx).Where("room_id = ? AND autonomous = ?", roomID, true)
	return r.first(query, fmt.Sprintf("room %d autonomous", roomID))
}

func (r *GormMemberRepository) FindFirstByUser(ctx context.Context, userID uint) (*domain.RoomMember, error) {
	return r.first(r.db.WithContext(ctx).Where("user_id = ?", userID), fmt.Sprintf("user %d", userID))
}

func (r *GormMemberRepository) ListByRoom(ctx context.Context, roomID uint) ([]domain.RoomMember, error) {
	var members []domain.RoomMember
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Order("id asc").Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list members of room %d: %w", roomID, err)
	}
	return members, nil
}

func (r *GormMemberRepository) Create(ctx context.Context, member *domain.RoomMember) error {
	err := r.db.WithContext(ctx).Create(member).Error
	if err != nil {
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create member (room %d user %d): %w", member.RoomID, member.UserID, err)
	}
	return nil
}

// Save 只更新可变列，避免覆盖 room_id / user_id
func (r *GormMemberRepository) Save(ctx context.Context, member *domain.RoomMember) error {
	err := r.db.WithContext(ctx).Model(member).Updates(map[string]interface{}{"go": member.Go, "status": member.Status, "position": member.Position}).Error
	if err != nil {
		return fmt.Errorf("gorm: save member %d: %w", member.ID, err)
	}
	return nil
}

func (r *GormMemberRepository) DeleteByRoom(ctx context.Context, roomID uint) error {
	err := r.db.WithContext(ctx).Unscoped().Where("room_id = ?", roomID).Delete(&domain.RoomMember{}).Error
	if err != nil {
		return fmt.Errorf("gorm: delete members of room %d: %w", roomID, err)
	}
	return nil
}
