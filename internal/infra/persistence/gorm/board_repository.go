package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/lachelier/sugoroku/internal/domain"
	"github.com/lachelier/sugoroku/internal/repository"
)

// GormBoardRepository 是 BoardRepository 接口的 GORM 实现
type GormBoardRepository struct {
	db *gorm.DB
}

// NewGormBoardRepository 创建 GormBoardRepository 实例
func NewGormBoardRepository(db *gorm.DB) *GormBoardRepository {
	if db == nil {
		panic("database connection cannot be nil for GormBoardRepository")
	}
	return &GormBoardRepository{db: db}
}

// FindByID 根据 ID 查找棋盘
func (r *GormBoardRepository) FindByID(ctx context.Context, id uint) (*domain.Board, error) {
	var board domain.Board
	err := r.db.WithContext(ctx).First(&board, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrBoardNotFound
		}
		return nil, fmt.Errorf("gorm: find board by id %d: %w", id, err)
	}
	return &board, nil
}

// ListSpaces 返回棋盘模板上的格子
func (r *GormBoardRepository) ListSpaces(ctx context.Context, boardID uint) ([]domain.Space, error) {
	var spaces []domain.Space
	err := r.db.WithContext(ctx).Where("board_id = ?", boardID).Order("position asc").Find(&spaces).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list spaces for board %d: %w", boardID, err)
	}
	return spaces, nil
}
