package service

import (
	"errors"

	"github.com/lachelier/sugoroku/internal/repository"
)

// 业务错误，均为可恢复的预期结果。存储层的其他错误会原样返回给调用方。
var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrMemberNotFound    = errors.New("member not found")
	ErrBoardNotFound     = errors.New("board not found")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrAlreadyMember     = errors.New("user is already a member of the room")
	ErrInvalidDisband    = errors.New("cannot disband a room while players are still playing")
	ErrInvalidDice       = errors.New("dice value must be positive")
	ErrInvalidRoomName   = errors.New("room name must be 1 to 255 characters")
	ErrNotRoomOwner      = errors.New("forbidden: not room owner")
	ErrOwnOpenRoomExists = errors.New("user already owns an open room")
	ErrGameNotStarted    = errors.New("game has not started")
	ErrPieceFinished     = errors.New("piece has already finished")
)

// mapNotFound 把仓库层的 ErrNotFound 映射为业务错误，其余错误不做修改。
func mapNotFound(err error, target error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return target
	}
	return err
}
