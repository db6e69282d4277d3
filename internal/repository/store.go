package repository

import "context"

// Repositories 聚合一次事务内可用的全部仓库。
type Repositories struct {
	Boards  BoardRepository
	Rooms   RoomRepository
	Members MemberRepository
	Spaces  RoomSpaceRepository
	Logs    ActionLogRepository
}

// Store 是引擎依赖的抽象存储。
type Store interface {
	// Repos 返回不在事务中的仓库，用于只读查询。
	Repos() Repositories

	// Atomic 在一个事务中执行 fn。fn 返回错误时全部回滚，错误原样返回。
	Atomic(ctx context.Context, fn func(r Repositories) error) error
}
