package service

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/lachelier/sugoroku/internal/domain"
	"github.com/lachelier/sugoroku/internal/repository"
)

const maxRoomNameLength = 255

// CreateRoom 创建一个 Open 状态的空房间。活跃房间数达到上限时返回 ErrCapacityExceeded。
// boardID 为 0 时使用默认棋盘。
func (e *Engine) CreateRoom(ctx context.Context, ownerID, boardID uint, name string) (*domain.Room, error) {
	if boardID == 0 {
		boardID = e.rules.DefaultBoardID
	}
	logCtx := logrus.WithFields(logrus.Fields{"owner_id": ownerID, "board_id": boardID})

	if n := utf8.RuneCountInString(name); n == 0 || n > maxRoomNameLength {
		return nil, ErrInvalidRoomName
	}

	unlock := e.locks.Lock(lobbyLockKey)
	defer unlock()

	var room *domain.Room
	err := e.store.Atomic(ctx, func(r repository.Repositories) error {
		count, err := r.Rooms.CountActive(ctx)
		if err != nil {
			return err
		}
		if count >= int64(e.rules.MaxActiveRooms) {
			logCtx.WithField("active_rooms", count).Warn("Active room limit reached")
			return ErrCapacityExceeded
		}
		if _, err := r.Boards.FindByID(ctx, boardID); err != nil {
			return mapNotFound(err, ErrBoardNotFound)
		}

		room = &domain.Room{
			UniqueCode:     e.newCode(),
			Name:           name,
			OwnerID:        ownerID,
			BoardID:        boardID,
			Status:         domain.RoomStatusOpen,
			MemberCount:    0,
			MaxMemberCount: e.rules.MaxMemberCount,
		}
		return r.Rooms.Create(ctx, room)
	})
	if err != nil {
		return nil, err
	}

	logCtx.WithFields(logrus.Fields{"room_id": room.ID, "unique_code": room.UniqueCode}).Info("Room created")
	return room, nil
}

// OpenRoom 是 HTTP 层的建房流程：同一 owner 只能有一个 Open 房间，建房后 owner 自动入室。
func (e *Engine) OpenRoom(ctx context.Context, ownerID, boardID uint, name string) (*domain.Room, error) {
	if _, err := e.GetOwnOpenRoom(ctx, ownerID); err == nil {
		return nil, ErrOwnOpenRoomExists
	} else if !errors.Is(err, ErrRoomNotFound) {
		return nil, err
	}

	room, err := e.CreateRoom(ctx, ownerID, boardID, name)
	if err != nil {
		return nil, err
	}
	if err := e.AddMember(ctx, ownerID, room.ID); err != nil {
		return nil, err
	}
	return e.store.Repos().Rooms.FindByID(ctx, room.ID)
}

// AddMember 让用户入室。满员返回 ErrCapacityExceeded (病毒除外)，重复入室返回 ErrAlreadyMember。
func (e *Engine) AddMember(ctx context.Context, userID, roomID uint) error {
	return e.withRoom(ctx, roomID, func(a *action, room *domain.Room) error {
		return e.addMember(a, room, userID)
	})
}

func (e *Engine) addMember(a *action, room *domain.Room, userID uint) error {
	logCtx := a.log.WithField("user_id", userID)
	piece := e.pieceFor(room.ID, userID)

	if !piece.Autonomous && room.IsFull() {
		logCtx.WithField("member_count", room.MemberCount).Warn("Room is full")
		return ErrCapacityExceeded
	}

	if _, err := a.repos.Members.Find(a.ctx, room.ID, userID); err == nil {
		logCtx.Debug("User already joined")
		return ErrAlreadyMember
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	if err := a.repos.Members.Create(a.ctx, piece); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return ErrAlreadyMember
		}
		return err
	}

	if !piece.Autonomous {
		room.MemberCount++
		if err := a.repos.Rooms.Save(a.ctx, room); err != nil {
			return err
		}
	}

	a.emit(domain.Event{Type: domain.EventMemberAdded, RoomID: room.ID, UserID: userID})
	logCtx.WithField("member_count", room.MemberCount).Info("Member added")
	return nil
}

// StartGame 把房间切换为 Busy，加入病毒，随机分配行动顺序。
// 病毒抽到 1 号时立即替它走一步，可能在任何人行动前就传染别人。
func (e *Engine) StartGame(ctx context.Context, roomID uint) error {
	return e.withRoom(ctx, roomID, func(a *action, room *domain.Room) error {
		room.Status = domain.RoomStatusBusy
		if err := a.repos.Rooms.Save(a.ctx, room); err != nil {
			return err
		}

		if err := e.addMember(a, room, e.rules.VirusUserID); err != nil && !errors.Is(err, ErrAlreadyMember) {
			return err
		}

		if _, err := e.ensureLayout(a, room); err != nil {
			return err
		}

		if err := e.assignTurnOrder(a, room); err != nil {
			return err
		}

		virus, err := a.repos.Members.FindAutonomous(a.ctx, room.ID)
		if err != nil {
			return err
		}
		a.log.WithField("virus_go", virus.Go).Info("Game started")
		if virus.Go == 1 {
			return e.moveVirus(a, room)
		}
		return nil
	})
}

// StartGameAsOwner 只允许房主开始游戏。
func (e *Engine) StartGameAsOwner(ctx context.Context, ownerID, roomID uint) error {
	room, err := e.store.Repos().Rooms.FindByID(ctx, roomID)
	if err != nil {
		return mapNotFound(err, ErrRoomNotFound)
	}
	if room.OwnerID != ownerID {
		return ErrNotRoomOwner
	}
	return e.StartGame(ctx, roomID)
}

// Disband 解散 owner 的房间。游戏进行中且还有未完赛的人类玩家时返回 ErrInvalidDisband，不做任何修改。
// 否则物理删除全部成员并软删除房间。
func (e *Engine) Disband(ctx context.Context, ownerID uint) error {
	owned, err := e.store.Repos().Rooms.FindFirstByOwner(ctx, ownerID, 0)
	if err != nil {
		return mapNotFound(err, ErrRoomNotFound)
	}

	return e.withRoom(ctx, owned.ID, func(a *action, room *domain.Room) error {
		if room.Status == domain.RoomStatusBusy {
			members, err := a.repos.Members.ListByRoom(a.ctx, room.ID)
			if err != nil {
				return err
			}
			for _, m := range members {
				if !m.Autonomous && !m.IsFinished() {
					a.log.WithField("user_id", m.UserID).Warn("Disband refused: player still in game")
					return ErrInvalidDisband
				}
			}
		}

		if err := a.repos.Members.DeleteByRoom(a.ctx, room.ID); err != nil {
			return err
		}
		if err := a.repos.Rooms.SoftDelete(a.ctx, room.ID); err != nil {
			return err
		}
		a.log.WithField("owner_id", ownerID).Info("Room disbanded")
		return nil
	})
}

// GetOpenRooms 列出可加入的房间。
func (e *Engine) GetOpenRooms(ctx context.Context) ([]domain.Room, error) {
	return e.store.Repos().Rooms.ListByStatus(ctx, domain.RoomStatusOpen)
}

// GetOwnOpenRoom 返回 owner 当前 Open 的房间。
func (e *Engine) GetOwnOpenRoom(ctx context.Context, ownerID uint) (*domain.Room, error) {
	room, err := e.store.Repos().Rooms.FindFirstByOwner(ctx, ownerID, domain.RoomStatusOpen)
	if err != nil {
		return nil, mapNotFound(err, ErrRoomNotFound)
	}
	return room, nil
}

// GetJoinedRoom 返回用户第一条成员记录所在的房间。
func (e *Engine) GetJoinedRoom(ctx context.Context, userID uint) (*domain.Room, error) {
	repos := e.store.Repos()
	member, err := repos.Members.FindFirstByUser(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err, ErrRoomNotFound)
	}
	room, err := repos.Rooms.FindByID(ctx, member.RoomID)
	if err != nil {
		return nil, mapNotFound(err, ErrRoomNotFound)
	}
	return room, nil
}

// GetUserJoinActiveRoomID 先取全局第一个 Open/Busy 房间，再检查用户是否在其中。
// 已知问题：用户在其他活跃房间时也会返回 ErrRoomNotFound，调用方需要正确结果时使用 GetJoinedRoom。
func (e *Engine) GetUserJoinActiveRoomID(ctx context.Context, userID uint) (uint, error) {
	repos := e.store.Repos()
	room, err := repos.Rooms.FindFirstActive(ctx)
	if err != nil {
		return 0, mapNotFound(err, ErrRoomNotFound)
	}
	members, err := repos.Members.ListByRoom(ctx, room.ID)
	if err != nil {
		return 0, err
	}
	for _, m := range members {
		if m.UserID == userID {
			return room.ID, nil
		}
	}
	return 0, ErrRoomNotFound
}

// FindByUniqueCode 返回房间及其棋盘 (含模板格子)。
func (e *Engine) FindByUniqueCode(ctx context.Context, code string) (*domain.Room, *domain.Board, error) {
	repos := e.store.Repos()
	room, err := repos.Rooms.FindByUniqueCode(ctx, code)
	if err != nil {
		return nil, nil, mapNotFound(err, ErrRoomNotFound)
	}
	board, err := repos.Boards.FindByID(ctx, room.BoardID)
	if err != nil {
		return nil, nil, mapNotFound(err, ErrBoardNotFound)
	}
	board.Spaces, err = repos.Boards.ListSpaces(ctx, board.ID)
	if err != nil {
		return nil, nil, err
	}
	return room, board, nil
}

// CountActiveRooms 返回未解散的房间数。
func (e *Engine) CountActiveRooms(ctx context.Context) (int64, error) {
	return e.store.Repos().Rooms.CountActive(ctx)
}

// GetRoom 按 ID 返回房间。
func (e *Engine) GetRoom(ctx context.Context, roomID uint) (*domain.Room, error) {
	room, err := e.store.Repos().Rooms.FindByID(ctx, roomID)
	if err != nil {
		return nil, mapNotFound(err, ErrRoomNotFound)
	}
	return room, nil
}
