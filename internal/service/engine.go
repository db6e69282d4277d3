package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lachelier/sugoroku/internal/domain"
	"github.com/lachelier/sugoroku/internal/idgen"
	"github.com/lachelier/sugoroku/internal/repository"
)

// lobbyLockKey 串行化房间创建，保证活跃房间上限的计数不被并发突破。房间 ID 从 1 开始。
// 这是进程内的锁，多实例部署共用一个数据库时上限不受保护，见 DESIGN.md。
const lobbyLockKey uint = 0

// Rules 是引擎使用的游戏常量，来自配置。
type Rules struct {
	VirusUserID    uint
	MaxMemberCount int
	MaxActiveRooms int
	DefaultBoardID uint
}

// Randomizer 提供骰子和洗牌所需的随机数。
type Randomizer interface {
	Intn(n int) int
	Perm(n int) []int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *lockedRand) Perm(n int) []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Perm(n)
}

// Engine 是房间游戏引擎：房间生命周期、行动顺序、棋子移动、终点与感染处理。
type Engine struct {
	store    repository.Store
	notifier Notifier
	rules    Rules
	rng      Randomizer
	locks    *RoomLocks
	newCode  func() string
}

// NewEngine 创建 Engine 实例。
func NewEngine(store repository.Store, notifier Notifier, rules Rules) *Engine {
	if store == nil {
		panic("Store cannot be nil for Engine")
	}
	if notifier == nil {
		panic("Notifier cannot be nil for Engine")
	}
	if rules.DefaultBoardID == 0 {
		rules.DefaultBoardID = 1
	}
	return &Engine{
		store:    store,
		notifier: notifier,
		rules:    rules,
		rng:      &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))},
		locks:    NewRoomLocks(),
		newCode:  idgen.NewULID,
	}
}

// WithRandomizer 替换随机源 (测试中使用固定序列)。
func (e *Engine) WithRandomizer(r Randomizer) *Engine {
	e.rng = r
	return e
}

// Rules 返回当前规则。
func (e *Engine) Rules() Rules {
	return e.rules
}

// RollDice 掷一次 1..6 的骰子。
func (e *Engine) RollDice() int {
	return e.rng.Intn(6) + 1
}

// action 是一次持锁事务内的上下文，事件在提交后才发送。
type action struct {
	ctx    context.Context
	repos  repository.Repositories
	events []domain.Event
	log    *logrus.Entry
}

func (a *action) emit(ev domain.Event) {
	a.events = append(a.events, ev)
}

// withRoom 获取房间句柄，开启事务并锁定房间行，然后执行 fn。
// fn 成功时提交并发送缓冲的事件，失败时回滚并原样返回错误。
func (e *Engine) withRoom(ctx context.Context, roomID uint, fn func(a *action, room *domain.Room) error) error {
	unlock := e.locks.Lock(roomID)
	defer unlock()

	var events []domain.Event
	err := e.store.Atomic(ctx, func(r repository.Repositories) error {
		room, err := r.Rooms.LockByID(ctx, roomID)
		if err != nil {
			return mapNotFound(err, ErrRoomNotFound)
		}
		a := &action{
			ctx:   ctx,
			repos: r,
			log:   logrus.WithField("room_id", roomID),
		}
		if err := fn(a, room); err != nil {
			return err
		}
		events = a.events
		return nil
	})
	if err != nil {
		return err
	}
	e.flush(ctx, events)
	return nil
}

// flush 把事件交给 Notifier。失败只记录，不影响已提交的状态。
func (e *Engine) flush(ctx context.Context, events []domain.Event) {
	for _, ev := range events {
		var err error
		switch ev.Type {
		case domain.EventMemberAdded:
			err = e.notifier.MemberAdded(ctx, ev.UserID, ev.RoomID)
		case domain.EventDiceRolled:
			err = e.notifier.DiceRolled(ctx, ev.RoomID, ev.UserID, ev.Dice)
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"room_id":    ev.RoomID,
				"user_id":    ev.UserID,
				"event_type": ev.Type,
			}).WithError(err).Warn("Failed to deliver room event")
		}
	}
}

// pieceFor 决定新棋子的形态。保留的病毒用户得到 Autonomous 棋子，其余逻辑只看 Autonomous 标志。
func (e *Engine) pieceFor(roomID, userID uint) *domain.RoomMember {
	if userID == e.rules.VirusUserID {
		return domain.NewVirusPiece(roomID, userID)
	}
	return domain.NewHumanPiece(roomID, userID)
}
