package service

import (
	"context"
	"errors"

	"github.com/lachelier/sugoroku/internal/domain"
	"github.com/lachelier/sugoroku/internal/repository"
)

// NextGo 返回下一位行动者的 go。
func (e *Engine) NextGo(ctx context.Context, roomID uint) (int, error) {
	repos := e.store.Repos()
	room, err := repos.Rooms.FindByID(ctx, roomID)
	if err != nil {
		return 0, mapNotFound(err, ErrRoomNotFound)
	}
	return e.nextGo(ctx, repos, room)
}

// nextGo 从行动日志推导轮次：空日志为 1；最新行动者持有最后一个槽位时回到 1，否则加一。
func (e *Engine) nextGo(ctx context.Context, repos repository.Repositories, room *domain.Room) (int, error) {
	latest, err := repos.Logs.Latest(ctx, room.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return 1, nil
	} else if err != nil {
		return 0, err
	}

	actor, err := repos.Members.Find(ctx, room.ID, latest.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return 1, nil
	} else if err != nil {
		return 0, err
	}
	if actor.Go == room.SlotCount() {
		return 1, nil
	}
	return actor.Go + 1, nil
}

// assignTurnOrder 对房间全部棋子 (含病毒) 做一次均匀随机排列，go 取 1..N。
func (e *Engine) assignTurnOrder(a *action, room *domain.Room) error {
	members, err := a.repos.Members.ListByRoom(a.ctx, room.ID)
	if err != nil {
		return err
	}
	perm := e.rng.Perm(len(members))
	for i := range members {
		members[i].Go = perm[i] + 1
		if err := a.repos.Members.Save(a.ctx, &members[i]); err != nil {
			return err
		}
	}
	return nil
}
