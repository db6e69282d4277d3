package repository

import (
	"context"

	"github.com/lachelier/sugoroku/internal/domain"
)

// BoardRepository 读取棋盘模板，只读。
type BoardRepository interface {
	// FindByID 返回棋盘，不存在时返回 ErrBoardNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Board, error)

	// ListSpaces 返回棋盘的全部特殊格子，按位置升序。
	ListSpaces(ctx context.Context, boardID uint) ([]domain.Space, error)
}
