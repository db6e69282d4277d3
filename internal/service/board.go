package service

import (
	"context"

	"github.com/lachelier/sugoroku/internal/domain"
)

// GetSpaces 返回房间的格子布局，第一次读取时从棋盘模板复制。
func (e *Engine) GetSpaces(ctx context.Context, roomID uint) ([]domain.RoomSpace, error) {
	var spaces []domain.RoomSpace
	err := e.withRoom(ctx, roomID, func(a *action, room *domain.Room) error {
		s, err := e.ensureLayout(a, room)
		spaces = s
		return err
	})
	if err != nil {
		return nil, err
	}
	return spaces, nil
}

func (e *Engine) ensureLayout(a *action, room *domain.Room) ([]domain.RoomSpace, error) {
	existing, err := a.repos.Spaces.ListByRoom(a.ctx, room.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	template, err := a.repos.Boards.ListSpaces(a.ctx, room.BoardID)
	if err != nil {
		return nil, err
	}
	if len(template) == 0 {
		return []domain.RoomSpace{}, nil
	}
	layout := make([]domain.RoomSpace, 0, len(template))
	for _, s := range template {
		layout = append(layout, domain.RoomSpace{RoomID: room.ID, SpaceID: s.ID, Position: s.Position, Space: s})
	}
	if err := a.repos.Spaces.ReplaceAll(a.ctx, room.ID, layout); err != nil {
		return nil, err
	}
	a.log.WithField("spaces", len(layout)).Debug("Room layout cloned from board")
	return a.repos.Spaces.ListByRoom(a.ctx, room.ID)
}

// GetMember 返回房间中的某个棋子。
func (e *Engine) GetMember(ctx context.Context, roomID, userID uint) (*domain.RoomMember, error) {
	m, err := e.store.Repos().Members.Find(ctx, roomID, userID)
	if err != nil {
		return nil, mapNotFound(err, ErrMemberNotFound)
	}
	return m, nil
}

// GetKomaPosition 返回棋子当前位置。
func (e *Engine) GetKomaPosition(ctx context.Context, roomID, userID uint) (int, error) {
	m, err := e.GetMember(ctx, roomID, userID)
	if err != nil {
		return 0, err
	}
	return m.Position, nil
}

// ListMembers 返回房间全部棋子。
func (e *Engine) ListMembers(ctx context.Context, roomID uint) ([]domain.RoomMember, error) {
	if _, err := e.store.Repos().Rooms.FindByID(ctx, roomID); err != nil {
		return nil, mapNotFound(err, ErrRoomNotFound)
	}
	return e.store.Repos().Members.ListByRoom(ctx, roomID)
}

// ListActions 返回房间的行动日志。
func (e *Engine) ListActions(ctx context.Context, roomID uint) ([]domain.ActionLogEntry, error) {
	return e.store.Repos().Logs.ListByRoom(ctx, roomID)
}
