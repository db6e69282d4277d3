package service

import (
	"github.com/lachelier/sugoroku/internal/domain"
)

// goal 让棋子完赛并移出轮转。
// 其他仍在轮转中且 go 小于该棋子原 go 的成员各加一，已完赛的成员不受影响。
// 这会让 go 序列出现空位或重复，nextGo 以日志推导，不依赖序列连续。
// 与旧版不同：旧版会把之前完赛成员的 go 从 0 加到 1，这里保持完赛成员 go 为 0。
func (e *Engine) goal(a *action, room *domain.Room, board *domain.Board, member *domain.RoomMember) error {
	formerGo := member.Go

	member.Status = domain.PieceStatusFinished
	member.Go = 0
	member.Position = board.GoalPosition
	if err := a.repos.Members.Save(a.ctx, member); err != nil {
		return err
	}

	members, err := a.repos.Members.ListByRoom(a.ctx, room.ID)
	if err != nil {
		return err
	}
	for i := range members {
		m := &members[i]
		if m.ID == member.ID || m.Go == 0 || m.Go >= formerGo {
			continue
		}
		m.Go++
		if err := a.repos.Members.Save(a.ctx, m); err != nil {
			return err
		}
	}
	return nil
}
