package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/lachelier/sugoroku/internal/domain"
	redisstate "github.com/lachelier/sugoroku/internal/infra/state/redis"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// 新连接补发的历史事件数
	historyReplay = 50
)

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type   string // "register", "unregister"
	Client *Client
}

// HistorySource 提供房间最近的事件
type HistorySource interface {
	RecentEvents(ctx context.Context, roomID uint, limit int) ([]domain.Event, error)
}

// Hub 维护各房间的 WebSocket 客户端，把从 Redis 收到的房间事件分发给它们。
type Hub struct {
	messageChan chan HubMessage

	// map[roomID]map[*Client]bool
	rooms   map[uint]map[*Client]bool
	roomsMu sync.RWMutex

	history   HistorySource
	keyPrefix string

	subMu  sync.Mutex
	pubsub *redis.PubSub
}

// NewHub 创建 Hub。history 可以为 nil，此时新连接不补发历史。
func NewHub(history HistorySource, keyPrefix string) *Hub {
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		rooms:       make(map[uint]map[*Client]bool),
		history:     history,
		keyPrefix:   keyPrefix,
	}
}

// Run 启动 Hub 的主事件处理循环，应该在一个单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.Type {
		case "register":
			h.registerClient(msg.Client)
		case "unregister":
			h.unregisterClient(msg.Client)
		default:
			log.Warnf("Hub: Received unknown message type: %s", msg.Type)
		}
	}
	log.Info("Hub is shutting down...")
}

func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id": client.RoomID(),
		"user_id": client.UserID(),
		"action":  "registerClient",
	})

	h.roomsMu.Lock()
	if _, ok := h.rooms[client.RoomID()]; !ok {
		h.rooms[client.RoomID()] = make(map[*Client]bool)
		logCtx.Debug("Client list created for new room")
	}
	h.rooms[client.RoomID()][client] = true
	h.roomsMu.Unlock()
	logCtx.Info("Client registered to Hub")

	if h.history != nil {
		go h.sendHistory(client)
	}
}

func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	h.roomsMu.Lock()
	removed := h.removeLocked(client)
	h.roomsMu.Unlock()

	if removed {
		logrus.WithFields(logrus.Fields{
			"room_id": client.RoomID(),
			"user_id": client.UserID(),
		}).Info("Client unregistered from Hub")
	}
}

// removeLocked 从房间删除客户端并关闭其 send 通道，调用方持有 roomsMu。
func (h *Hub) removeLocked(client *Client) bool {
	roomClients, ok := h.rooms[client.RoomID()]
	if !ok || !roomClients[client] {
		return false
	}
	delete(roomClients, client)
	close(client.send)
	if len(roomClients) == 0 {
		delete(h.rooms, client.RoomID())
	}
	return true
}

// sendHistory 把最近的事件作为 history 消息发给新客户端
func (h *Hub) sendHistory(client *Client) {
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":   client.RoomID(),
		"user_id":   client.UserID(),
		"operation": "sendHistory",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events, err := h.history.RecentEvents(ctx, client.RoomID(), historyReplay)
	if err != nil {
		logCtx.WithError(err).Error("Failed to load event history")
		h.trySend(client, []byte(`{"type":"error","message":"Failed to load room history"}`))
		return
	}

	msg, err := json.Marshal(map[string]interface{}{
		"type":   "history",
		"events": events,
	})
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal history message")
		return
	}
	h.trySend(client, msg)
}

// trySend 在客户端仍注册时非阻塞地投递消息。
func (h *Hub) trySend(client *Client, msg []byte) {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	if !h.rooms[client.RoomID()][client] {
		return
	}
	select {
	case client.send <- msg:
	default:
		logrus.WithFields(logrus.Fields{"room_id": client.RoomID(), "user_id": client.UserID()}).
			Warn("Client send channel full, message dropped")
	}
}

// Dispatch 把消息发给房间内的所有客户端，返回投递成功的数量。
func (h *Hub) Dispatch(roomID uint, message []byte) int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()

	delivered := 0
	for client := range h.rooms[roomID] {
		select {
		case client.send <- message:
			delivered++
		default:
			logrus.WithFields(logrus.Fields{
				"room_id":          roomID,
				"receiver_user_id": client.UserID(),
			}).Warn("Client send channel full during broadcast, skipping this client")
		}
	}
	return delivered
}

// Listen 消费 Redis 订阅消息直到通道关闭或 ctx 结束。
func (h *Hub) Listen(ctx context.Context, messages <-chan *redis.Message) {
	log := logrus.WithField("component", "hub")
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				log.Info("Hub subscription channel closed")
				return
			}
			roomID, ok := redisstate.RoomIDFromChannel(h.keyPrefix, msg.Channel)
			if !ok {
				log.Warnf("Hub: message on unexpected channel %s", msg.Channel)
				continue
			}
			ev, err := domain.ParseEvent([]byte(msg.Payload))
			if err != nil || ev.RoomID != roomID {
				log.WithError(err).WithField("channel", msg.Channel).Warn("Hub: dropping malformed event")
				continue
			}
			n := h.Dispatch(roomID, []byte(msg.Payload))
			log.WithFields(logrus.Fields{
				"room_id":    roomID,
				"event_type": ev.Type,
				"recipients": n,
			}).Debug("Event dispatched")
		}
	}
}

// Subscribe 订阅所有房间的事件频道并在后台分发。
func (h *Hub) Subscribe(ctx context.Context, bus *redisstate.EventBus) error {
	pubsub := bus.Subscribe(ctx)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	h.subMu.Lock()
	h.pubsub = pubsub
	h.subMu.Unlock()

	go h.Listen(ctx, pubsub.Channel())
	logrus.WithField("component", "hub").Info("Hub subscribed to room events")
	return nil
}

// StopAllSubscriptions 关闭 Redis 订阅
func (h *Hub) StopAllSubscriptions() {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	if h.pubsub == nil {
		return
	}
	if err := h.pubsub.Close(); err != nil {
		logrus.WithError(err).Warn("Hub: error closing subscription")
	}
	h.pubsub = nil
}

// ActiveRoomIDs 返回当前有连接的房间
func (h *Hub) ActiveRoomIDs() []uint {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	ids := make([]uint, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	return ids
}

// ClientCount 返回房间的连接数
func (h *Hub) ClientCount(roomID uint) int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return len(h.rooms[roomID])
}

// CloseRoom 断开房间内所有客户端，返回断开的数量。
func (h *Hub) CloseRoom(roomID uint) int {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	clients := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		clients = append(clients, c)
	}
	for _, c := range clients {
		h.removeLocked(c)
	}
	return len(clients)
}

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)，队列已满时返回 false。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithField("message_type", msg.Type).Warn("Hub message channel full, dropping message")
		return false
	}
}
