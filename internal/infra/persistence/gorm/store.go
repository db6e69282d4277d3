package gormpersistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/lachelier/sugoroku/internal/repository"
)

// GormStore 用同一个 *gorm.DB 组装全部仓库，Atomic 使用 db.Transaction。
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建 GormStore 实例
func NewGormStore(db *gorm.DB) *GormStore {
	if db == nil {
		panic("database connection cannot be nil for GormStore")
	}
	return &GormStore{db: db}
}

func reposFor(db *gorm.DB) repository.Repositories {
	return repository.Repositories{
		Boards:  NewGormBoardRepository(db),
		Rooms:   NewGormRoomRepository(db),
		Members: NewGormMemberRepository(db),
		Spaces:  NewGormRoomSpaceRepository(db),
		Logs:    NewGormActionLogRepository(db),
	}
}

// Repos 返回非事务仓库
func (s *GormStore) Repos() repository.Repositories {
	return reposFor(s.db)
}

// Atomic 在事务中执行 fn，fn 的错误原样返回
func (s *GormStore) Atomic(ctx context.Context, fn func(r repository.Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(reposFor(tx))
	})
}
