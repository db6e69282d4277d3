package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/lachelier/sugoroku/internal/domain"
	"github.com/lachelier/sugoroku/internal/repository"
)

// MovePiece 按 dice 移动棋子，处理途经格子、终点与病毒的连锁移动，返回移动后的棋子。
// 整个动作 (含病毒的自动移动) 在同一个房间句柄和事务内完成。
func (e *Engine) MovePiece(ctx context.Context, roomID, userID uint, dice int) (*domain.RoomMember, error) {
	if dice <= 0 {
		return nil, ErrInvalidDice
	}

	var moved *domain.RoomMember
	err := e.withRoom(ctx, roomID, func(a *action, room *domain.Room) error {
		if room.Status != domain.RoomStatusBusy {
			a.log.WithField("user_id", userID).Warn("Move rejected: game has not started")
			return ErrGameNotStarted
		}
		if _, err := e.movePiece(a, room, userID, dice); err != nil {
			return err
		}
		// 病毒的连锁移动可能改变了该棋子的状态，重新读取。
		m, err := a.repos.Members.Find(a.ctx, room.ID, userID)
		if err != nil {
			return mapNotFound(err, ErrMemberNotFound)
		}
		moved = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// RollAndMove 在服务端掷骰并移动，返回骰子点数与移动后的棋子。
func (e *Engine) RollAndMove(ctx context.Context, roomID, userID uint) (int, *domain.RoomMember, error) {
	dice := e.RollDice()
	member, err := e.MovePiece(ctx, roomID, userID, dice)
	if err != nil {
		return 0, nil, err
	}
	return dice, member, nil
}

func (e *Engine) movePiece(a *action, room *domain.Room, userID uint, dice int) (*domain.RoomMember, error) {
	logCtx := a.log.WithFields(logrus.Fields{"user_id": userID, "dice": dice})

	member, err := a.repos.Members.Find(a.ctx, room.ID, userID)
	if err != nil {
		return nil, mapNotFound(err, ErrMemberNotFound)
	}
	// 完赛的棋子停在终点，直到房间重置。
	if !member.Autonomous && member.IsFinished() {
		logCtx.Warn("Move rejected: piece has already finished")
		return nil, ErrPieceFinished
	}
	board, err := a.repos.Boards.FindByID(a.ctx, room.BoardID)
	if err != nil {
		return nil, mapNotFound(err, ErrBoardNotFound)
	}

	before := member.Position
	// 进入本次移动前就必须满足终点状态，途中格子改变的状态不算。
	canGoal := member.Status == board.GoalStatus && !member.Autonomous
	newPosition := member.Position + dice

	if !member.Autonomous && (newPosition < board.GoalPosition || !canGoal) {
		if err := e.applyTiles(a, board, member, dice); err != nil {
			return nil, err
		}
	}

	if newPosition >= board.GoalPosition && canGoal {
		if err := e.goal(a, room, board, member); err != nil {
			return nil, err
		}
		logCtx.Info("Piece reached the goal")
	} else {
		member.Position = board.Wrap(newPosition)
		if err := a.repos.Members.Save(a.ctx, member); err != nil {
			return nil, err
		}
	}

	a.emit(domain.Event{Type: domain.EventDiceRolled, RoomID: room.ID, UserID: userID, Dice: dice})
	logCtx.WithFields(logrus.Fields{
		"before":   before,
		"position": member.Position,
		"status":   member.Status.String(),
	}).Debug("Piece moved")

	if member.Autonomous {
		if err := e.infect(a, room, member, before); err != nil {
			return nil, err
		}
		if err := a.repos.Logs.Append(a.ctx, domain.NewDiceMove(room.ID, userID, dice)); err != nil {
			return nil, err
		}
		return member, nil
	}

	// 先记录本次移动，nextGo 以最新日志为准。
	if err := a.repos.Logs.Append(a.ctx, domain.NewDiceMove(room.ID, userID, dice)); err != nil {
		return nil, err
	}

	next, err := e.nextGo(a.ctx, a.repos, room)
	if err != nil {
		return nil, err
	}
	virus, err := a.repos.Members.FindAutonomous(a.ctx, room.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return member, nil
	} else if err != nil {
		return nil, err
	}
	if virus.Go != 0 && next == virus.Go {
		if err := e.moveVirus(a, room); err != nil {
			return nil, err
		}
	}
	return member, nil
}

// applyTiles 依次检查途经的每一格 (含落点)，最后经过的状态格生效。
func (e *Engine) applyTiles(a *action, board *domain.Board, member *domain.RoomMember, dice int) error {
	for i := 1; i <= dice; i++ {
		step := board.Wrap(member.Position + i)
		rs, err := a.repos.Spaces.FindAt(a.ctx, member.RoomID, step)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		} else if err != nil {
			return err
		}
		if rs.Space.EffectID == domain.EffectChangeStatus {
			member.Status = domain.PieceStatus(rs.Space.EffectNum)
		}
	}
	return nil
}

// moveVirus 替病毒掷骰走一步。
func (e *Engine) moveVirus(a *action, room *domain.Room) error {
	virus, err := a.repos.Members.FindAutonomous(a.ctx, room.ID)
	if err != nil {
		return mapNotFound(err, ErrMemberNotFound)
	}
	dice := e.RollDice()
	a.log.WithField("dice", dice).Debug("Virus takes its turn")
	_, err = e.movePiece(a, room, virus.UserID, dice)
	return err
}
