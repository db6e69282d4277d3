package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/lachelier/sugoroku/internal/domain"
	"github.com/lachelier/sugoroku/internal/service"
)

// RoomRegistry 是 Hub 上与房间连接相关的操作
type RoomRegistry interface {
	ActiveRoomIDs() []uint
	CloseRoom(roomID uint) int
}

// RoomFinder 查询房间是否仍然存在
type RoomFinder interface {
	GetRoom(ctx context.Context, roomID uint) (*domain.Room, error)
}

// HistoryCleaner 删除房间的事件历史
type HistoryCleaner interface {
	ClearHistory(ctx context.Context, roomID uint) error
}

// RoomSweepHandler 处理周期性的 room:sweep 任务：
// 对仍有 WebSocket 连接的房间逐一检查，房间已解散时断开连接并清理事件历史。
type RoomSweepHandler struct {
	registry RoomRegistry
	rooms    RoomFinder
	history  HistoryCleaner
}

// NewRoomSweepHandler 创建 Handler 实例，history 可以为 nil。
func NewRoomSweepHandler(registry RoomRegistry, rooms RoomFinder, history HistoryCleaner) *RoomSweepHandler {
	if registry == nil {
		panic("RoomRegistry cannot be nil for RoomSweepHandler")
	}
	if rooms == nil {
		panic("RoomFinder cannot be nil for RoomSweepHandler")
	}
	return &RoomSweepHandler{registry: registry, rooms: rooms, history: history}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *RoomSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithFields(logrus.Fields{
		"task_type": t.Type(),
		"queue":     "low",
	})

	activeRoomIDs := h.registry.ActiveRoomIDs()
	if len(activeRoomIDs) == 0 {
		logCtx.Debug("No connected rooms, skipping sweep")
		return nil
	}
	logCtx.Debugf("Sweeping %d connected rooms", len(activeRoomIDs))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		closed int
		failed int
	)
	for _, roomID := range activeRoomIDs {
		wg.Add(1)
		go func(rID uint) {
			defer wg.Done()
			roomLogCtx := logCtx.WithField("room_id", rID)

			checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			_, err := h.rooms.GetRoom(checkCtx, rID)
			if err == nil {
				return
			}
			if !errors.Is(err, service.ErrRoomNotFound) {
				roomLogCtx.WithError(err).Error("Room lookup failed during sweep")
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}

			n := h.registry.CloseRoom(rID)
			if h.history != nil {
				if err := h.history.ClearHistory(checkCtx, rID); err != nil {
					roomLogCtx.WithError(err).Warn("Failed to clear event history")
				}
			}
			roomLogCtx.WithField("clients", n).Info("Closed connections of disbanded room")
			mu.Lock()
			closed++
			mu.Unlock()
		}(roomID)
	}
	wg.Wait()

	if failed > 0 {
		// 单个房间失败不让整个周期任务重试
		logCtx.Errorf("Room sweep completed with %d lookup errors", failed)
	}
	logCtx.WithField("closed_rooms", closed).Info("Room sweep completed")
	return nil
}
