package service

import (
	"github.com/lachelier/sugoroku/internal/domain"
)

// infect 把病毒本次经过或落点上的健康棋子改为感染，区间为 (before, virus.Position]。
// 折回起点的一步区间为空，不传染任何人。
func (e *Engine) infect(a *action, room *domain.Room, virus *domain.RoomMember, before int) error {
	members, err := a.repos.Members.ListByRoom(a.ctx, room.ID)
	if err != nil {
		return err
	}
	for i := range members {
		m := &members[i]
		if m.ID == virus.ID || m.Status != domain.PieceStatusHealthy {
			continue
		}
		if m.Position <= before || m.Position > virus.Position {
			continue
		}
		m.Status = domain.PieceStatusSick
		if err := a.repos.Members.Save(a.ctx, m); err != nil {
			return err
		}
		a.log.WithField("user_id", m.UserID).Info("Piece infected")
	}
	return nil
}
