package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lachelier/sugoroku/internal/domain"
	"github.com/lachelier/sugoroku/internal/infra/persistence/memory"
	"github.com/lachelier/sugoroku/internal/repository"
	"github.com/lachelier/sugoroku/internal/service"
	"github.com/lachelier/sugoroku/internal/service/mocks"
)

// 两人房间：A 走 5 到 6，轮到病毒，病毒同样走 5 到 6，经过的 A 被感染。
func TestEngine_MovePiece_VirusFollowsAndInfects(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	room := f.room(t, userA, userB)
	f.rng.perm = []int{0, 2, 1} // A=1 B=3 virus=2
	require.NoError(t, f.engine.StartGame(ctx, room.ID))
	f.rng.rolls = []int{5}

	moved, err := f.engine.MovePiece(ctx, room.ID, userA, 5)

	require.NoError(t, err)
	assert.Equal(t, 6, moved.Position)
	assert.Equal(t, domain.PieceStatusSick, moved.Status, "返回值应反映病毒连锁移动后的状态")
	assert.Equal(t, 6, f.member(t, room.ID, virusID).Position)
	assert.Equal(t, domain.PieceStatusHealthy, f.member(t, room.ID, userB).Status)

	logs, err := f.engine.ListActions(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, userA, logs[0].UserID)
	assert.Equal(t, virusID, logs[1].UserID)
	assert.Equal(t, domain.ActionByDice, logs[1].ActionID)
	assert.Equal(t, domain.EffectMoveForward, logs[1].EffectID)
	assert.Equal(t, 5, logs[1].EffectNum)

	next, err := f.engine.NextGo(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, next, "病毒之后轮到 B")

	f.notifier.AssertCalled(t, "DiceRolled", mock.Anything, room.ID, userA, 5)
	f.notifier.AssertCalled(t, "DiceRolled", mock.Anything, room.ID, virusID, 5)
}

func TestEngine_MovePiece_WrapsAroundWhenNotFinishing(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	room := f.room(t, userA, userB)
	require.NoError(t, f.engine.StartGame(ctx, room.ID)) // A=1 B=2 virus=3
	f.place(t, room.ID, userA, 9, domain.PieceStatusSick)

	moved, err := f.engine.MovePiece(ctx, room.ID, userA, 3)

	require.NoError(t, err)
	assert.Equal(t, 2, moved.Position)
	assert.Equal(t, domain.PieceStatusSick, moved.Status)
	assert.NotZero(t, moved.Go)
}

func TestEngine_MovePiece_PositionStaysOnTrack(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	room := f.room(t, userA)
	require.NoError(t, f.engine.StartGame(ctx, room.ID))
	f.place(t, room.ID, userA, 1, domain.PieceStatusSick)

	for _, dice := range []int{6, 6, 6, 25, 1, 4} {
		f.rng.rolls = []int{6}
		moved, err := f.engine.MovePiece(ctx, room.ID, userA, dice)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, moved.Position, 1)
		assert.LessOrEqual(t, moved.Position, 10)
		virus := f.member(t, room.ID, virusID)
		assert.GreaterOrEqual(t, virus.Position, 1)
		assert.LessOrEqual(t, virus.Position, 10)
	}
}

func TestEngine_MovePiece_ReachesGoal(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	room := f.room(t, userA, userB, userC)
	f.rng.perm = []int{1, 0, 3, 2} // A=2 B=1 C=4 virus=3
	require.NoError(t, f.engine.StartGame(ctx, room.ID))
	f.place(t, room.ID, userA, 8, domain.PieceStatusHealthy)

	moved, err := f.engine.MovePiece(ctx, room.ID, userA, 3)

	require.NoError(t, err)
	assert.Equal(t, domain.PieceStatusFinished, moved.Status)
	assert.Equal(t, 0, moved.Go)
	assert.Equal(t, 10, moved.Position)
}

// 终点后的 go 调整：只有 go 小于完赛者原 go 的成员加一，不做压缩。
func TestEngine_Goal_ShiftsEarlierSlots(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	room := f.room(t, userA, userB, userC)
	f.rng.perm = []int{2, 0, 3, 1} // A=3 B=1 C=4 virus=2
	require.NoError(t, f.engine.StartGame(ctx, room.ID))
	f.place(t, room.ID, userA, 9, domain.PieceStatusHealthy)

	_, err := f.engine.MovePiece(ctx, room.ID, userA, 1)
	require.NoError(t, err)

	assert.Equal(t, 2, f.member(t, room.ID, userB).Go, "1 < 3，加一")
	assert.Equal(t, 3, f.member(t, room.ID, virusID).Go, "2 < 3，加一")
	assert.Equal(t, 4, f.member(t, room.ID, userC).Go, "4 >= 3，不变")
	assert.Equal(t, 0, f.member(t, room.ID, userA).Go)

	// 完赛者 go 为 0，下一轮从 1 开始，而 1 号已经没人。
	next, err := f.engine.NextGo(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, next)
}

func TestEngine_Goal_DoesNotShiftFinishedPieces(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	room := f.room(t, userA, userB)
	f.rng.perm = []int{1, 0, 2} // A=2 B=1 virus=3
	require.NoError(t, f.engine.StartGame(ctx, room.ID))

	b := f.member(t, room.ID, userB)
	b.Go, b.Status, b.Position = 0, domain.PieceStatusFinished, 10
	require.NoError(t, f.store.Repos().Members.Save(ctx, b))
	f.place(t, room.ID, userA, 9, domain.PieceStatusHealthy)

	_, err := f.engine.MovePiece(ctx, room.ID, userA, 2)
	require.NoError(t, err)

	assert.Equal(t, 0, f.member(t, room.ID, userB).Go)
	assert.Equal(t, domain.PieceStatusFinished, f.member(t, room.ID, userB).Status)
}

func TestEngine_MovePiece_GoalRequiresStatusBeforeMove(t *testing.T) {
	f := newFixture(t, 10, tile(9, domain.PieceStatusHealthy))
	ctx := context.Background()
	room := f.room(t, userA, userB)
	require.NoError(t, f.engine.StartGame(ctx, room.ID))
	f.place(t, room.ID, userA, 8, domain.PieceStatusSick)

	moved, err := f.engine.MovePiece(ctx, room.ID, userA, 3)

	require.NoError(t, err)
	assert.Equal(t, domain.PieceStatusHealthy, moved.Status, "途经医院恢复健康")
	assert.Equal(t, 1, moved.Position, "本次不能进入终点，折回起点")
	assert.NotEqual(t, domain.PieceStatusFinished, moved.Status)
}

func TestEngine_MovePiece_LastTileOnPathWins(t *testing.T) {
	f := newFixture(t, 10, tile(3, domain.PieceStatusSick), tile(5, domain.PieceStatusHealthy))
	ctx := context.Background()
	room := f.room(t, userA, userB)
	require.NoError(t, f.engine.StartGame(ctx, room.ID))

	moved, err := f.engine.MovePiece(ctx, room.ID, userA, 5)
	require.NoError(t, err)
	assert.Equal(t, 6, moved.Position)
	assert.Equal(t, domain.PieceStatusHealthy, moved.Status)

	moved, err = f.engine.MovePiece(ctx, room.ID, userB, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, moved.Position)
	assert.Equal(t, domain.PieceStatusSick, moved.Status)
}

func TestEngine_MovePiece_VirusSkipsTilesAndNeverFinishes(t *testing.T) {
	f := newFixture(t, 10, tile(9, domain.PieceStatusHealthy))
	ctx := context.Background()
	room := f.room(t, userA)
	require.NoError(t, f.engine.StartGame(ctx, room.ID))
	f.place(t, room.ID, virusID, 8, domain.PieceStatusSick)

	moved, err := f.engine.MovePiece(ctx, room.ID, virusID, 5)

	require.NoError(t, err)
	assert.Equal(t, 3, moved.Position)
	assert.Equal(t, domain.PieceStatusSick, moved.Status)
	assert.NotZero(t, moved.Go)
}

func TestEngine_Infection_OnlyHealthyInInterval(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	room := f.room(t, userA, userB, userC, 13)
	require.NoError(t, f.engine.StartGame(ctx, room.ID))
	f.place(t, room.ID, userA, 1, domain.PieceStatusHealthy)
	f.place(t, room.ID, userB, 3, domain.PieceStatusSick)
	f.place(t, room.ID, userC, 4, domain.PieceStatusFinished)
	f.place(t, room.ID, 13, 6, domain.PieceStatusHealthy)

	_, err := f.engine.MovePiece(ctx, room.ID, virusID, 5)
	require.NoError(t, err)

	assert.Equal(t, domain.PieceStatusHealthy, f.member(t, room.ID, userA).Status, "起点不在区间内")
	assert.Equal(t, domain.PieceStatusSick, f.member(t, room.ID, userB).Status)
	assert.Equal(t, domain.PieceStatusFinished, f.member(t, room.ID, userC).Status, "完赛者免疫")
	assert.Equal(t, domain.PieceStatusSick, f.member(t, room.ID, 13).Status, "落点上的健康棋子被感染")
}

func TestEngine_Infection_WrapAroundInfectsNobody(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	room := f.room(t, userA, userB)
	require.NoError(t, f.engine.StartGame(ctx, room.ID))
	f.place(t, room.ID, virusID, 8, domain.PieceStatusSick)
	f.place(t, room.ID, userA, 9, domain.PieceStatusHealthy)
	f.place(t, room.ID, userB, 2, domain.PieceStatusHealthy)

	moved, err := f.engine.MovePiece(ctx, room.ID, virusID, 5)
	require.NoError(t, err)

	assert.Equal(t, 3, moved.Position)
	assert.Equal(t, domain.PieceStatusHealthy, f.member(t, room.ID, userA).Status)
	assert.Equal(t, domain.PieceStatusHealthy, f.member(t, room.ID, userB).Status)
}

func TestEngine_NextGo_CyclesThroughSlots(t *testing.T) {
	f := newFixture(t, 30)
	ctx := context.Background()
	room := f.room(t, userA, userB)
	require.NoError(t, f.engine.StartGame(ctx, room.ID)) // A=1 B=2 virus=3

	next, err := f.engine.NextGo(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, next, "空日志从 1 开始")

	_, err = f.engine.MovePiece(ctx, room.ID, userA, 1)
	require.NoError(t, err)
	next, err = f.engine.NextGo(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, next)

	f.rng.rolls = []int{2}
	_, err = f.engine.MovePiece(ctx, room.ID, userB, 1)
	require.NoError(t, err)
	next, err = f.engine.NextGo(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, next, "病毒持有最后一个槽位，之后回到 1")

	logs, err := f.engine.ListActions(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, virusID, logs[2].UserID)
	assert.Equal(t, 3, f.member(t, room.ID, virusID).Position)
}

func TestEngine_MovePiece_Errors(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	room := f.room(t, userA)
	require.NoError(t, f.engine.StartGame(ctx, room.ID))

	_, err := f.engine.MovePiece(ctx, room.ID, userB, 3)
	assert.ErrorIs(t, err, service.ErrMemberNotFound)

	_, err = f.engine.MovePiece(ctx, room.ID, userA, 0)
	assert.ErrorIs(t, err, service.ErrInvalidDice)

	_, err = f.engine.MovePiece(ctx, 404, userA, 3)
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
}

// 开局前的移动被拒绝，不留下日志，开局后仍从 1 号开始。
func TestEngine_MovePiece_RejectedBeforeStart(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	room := f.room(t, userA, userB)
	before := f.member(t, room.ID, userA).Position

	_, err := f.engine.MovePiece(ctx, room.ID, userA, 4)
	assert.ErrorIs(t, err, service.ErrGameNotStarted)
	f.rng.rolls = []int{4}
	_, _, err = f.engine.RollAndMove(ctx, room.ID, userA)
	assert.ErrorIs(t, err, service.ErrGameNotStarted)

	assert.Equal(t, before, f.member(t, room.ID, userA).Position)
	assert.Equal(t, domain.RoomStatusOpen, f.getRoom(t, room.ID).Status)
	logs, err := f.store.Repos().Logs.ListByRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)

	f.rng.perm = []int{1, 0, 2} // A=2 B=1 virus=3
	require.NoError(t, f.engine.StartGame(ctx, room.ID))
	next, err := f.engine.NextGo(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, next)
	assert.Equal(t, 1, f.member(t, room.ID, virusID).Position, "病毒不持有 1 号，不先走")
}

// 完赛的棋子不能再移动，途经医院也不会变回健康。
func TestEngine_MovePiece_FinishedPieceStaysAtGoal(t *testing.T) {
	f := newFixture(t, 10, tile(2, domain.PieceStatusHealthy))
	ctx := context.Background()
	room := f.room(t, userA, userB)
	require.NoError(t, f.engine.StartGame(ctx, room.ID)) // A=1 B=2 virus=3
	f.place(t, room.ID, userA, 9, domain.PieceStatusHealthy)

	moved, err := f.engine.MovePiece(ctx, room.ID, userA, 1)
	require.NoError(t, err)
	require.Equal(t, domain.PieceStatusFinished, moved.Status)
	logs, err := f.store.Repos().Logs.ListByRoom(ctx, room.ID)
	require.NoError(t, err)
	logged := len(logs)

	_, err = f.engine.MovePiece(ctx, room.ID, userA, 3)
	assert.ErrorIs(t, err, service.ErrPieceFinished)

	a := f.member(t, room.ID, userA)
	assert.Equal(t, domain.PieceStatusFinished, a.Status)
	assert.Equal(t, 0, a.Go)
	assert.Equal(t, 10, a.Position)
	logs, err = f.store.Repos().Logs.ListByRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, logs, logged)
}

func TestEngine_RollAndMove(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	room := f.room(t, userA, userB)
	require.NoError(t, f.engine.StartGame(ctx, room.ID))
	f.rng.rolls = []int{4}

	dice, moved, err := f.engine.RollAndMove(ctx, room.ID, userA)

	require.NoError(t, err)
	assert.Equal(t, 4, dice)
	assert.Equal(t, 5, moved.Position)
	pos, err := f.engine.GetKomaPosition(ctx, room.ID, userA)
	require.NoError(t, err)
	assert.Equal(t, 5, pos)
}

func TestEngine_MovePiece_NotifierFailureKeepsState(t *testing.T) {
	store := memory.NewStore()
	store.SeedBoard(domain.Board{ID: 1, Name: "test", GoalPosition: 10, GoalStatus: domain.PieceStatusHealthy}, nil)
	notifier := new(mocks.Notifier)
	notifier.On("MemberAdded", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))
	notifier.On("DiceRolled", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))
	engine := service.NewEngine(store, notifier, defaultRules()).WithRandomizer(&scriptedRand{})
	ctx := context.Background()

	room, err := engine.CreateRoom(ctx, ownerID, 1, "flaky")
	require.NoError(t, err)
	require.NoError(t, engine.AddMember(ctx, userA, room.ID), "通知失败不影响入室")
	require.NoError(t, engine.AddMember(ctx, userB, room.ID))
	require.NoError(t, engine.StartGame(ctx, room.ID))

	moved, err := engine.MovePiece(ctx, room.ID, userA, 3)

	require.NoError(t, err)
	assert.Equal(t, 4, moved.Position)
	pos, err := engine.GetKomaPosition(ctx, room.ID, userA)
	require.NoError(t, err)
	assert.Equal(t, 4, pos)
	notifier.AssertCalled(t, "DiceRolled", mock.Anything, room.ID, userA, 3)
}

func TestEngine_StoreFailurePropagates(t *testing.T) {
	errStore := errors.New("connection refused")
	store := new(mocks.Store)
	store.On("Atomic", mock.Anything, mock.Anything).Return(errStore)
	engine := service.NewEngine(store, new(mocks.Notifier), defaultRules())
	ctx := context.Background()

	_, err := engine.MovePiece(ctx, 1, userA, 3)
	assert.ErrorIs(t, err, errStore)

	err = engine.AddMember(ctx, userA, 1)
	assert.ErrorIs(t, err, errStore)

	_, err = engine.CreateRoom(ctx, ownerID, 1, "room")
	assert.ErrorIs(t, err, errStore)

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "Repos")
}

func TestEngine_MovePiece_ConcurrentMovesAreSerialized(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()
	room := f.room(t, userA, userB)
	require.NoError(t, f.engine.StartGame(ctx, room.ID))

	const moves = 20
	var wg sync.WaitGroup
	for _, u := range []uint{userA, userB} {
		wg.Add(1)
		go func(user uint) {
			defer wg.Done()
			for i := 0; i < moves; i++ {
				_, err := f.engine.MovePiece(ctx, room.ID, user, 1)
				assert.NoError(t, err)
			}
		}(u)
	}
	wg.Wait()

	assert.Equal(t, 1+moves, f.member(t, room.ID, userA).Position)
	assert.Equal(t, 1+moves, f.member(t, room.ID, userB).Position)

	logs, err := f.store.Repos().Logs.ListByRoom(ctx, room.ID)
	require.NoError(t, err)
	var humans int
	for _, l := range logs {
		if l.UserID != virusID {
			humans++
		}
	}
	assert.Equal(t, 2*moves, humans)
	_, err = f.store.Repos().Logs.Latest(ctx, room.ID)
	assert.NotErrorIs(t, err, repository.ErrNotFound)
}
