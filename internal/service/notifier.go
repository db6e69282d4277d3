package service

import "context"

// Notifier 接收引擎产生的实时事件。事务提交后同步调用，返回的错误只记录日志，不会回滚游戏状态。
type Notifier interface {
	MemberAdded(ctx context.Context, userID, roomID uint) error
	DiceRolled(ctx context.Context, roomID, userID uint, dice int) error
}
