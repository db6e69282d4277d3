package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lachelier/sugoroku/internal/domain"
)

func testClient(h *Hub, roomID, userID uint) *Client {
	return NewClient(h, nil, roomID, userID)
}

func TestHub_DispatchOnlyToRoom(t *testing.T) {
	h := NewHub(nil, "sg:")
	a := testClient(h, 1, 10)
	b := testClient(h, 1, 11)
	other := testClient(h, 2, 12)
	h.registerClient(a)
	h.registerClient(b)
	h.registerClient(other)

	n := h.Dispatch(1, []byte("hello"))

	assert.Equal(t, 2, n)
	assert.Equal(t, []byte("hello"), <-a.send)
	assert.Equal(t, []byte("hello"), <-b.send)
	assert.Len(t, other.send, 0)
}

func TestHub_UnregisterClosesSendOnce(t *testing.T) {
	h := NewHub(nil, "sg:")
	c := testClient(h, 1, 10)
	h.registerClient(c)

	h.unregisterClient(c)
	h.unregisterClient(c) // 第二次不应 panic

	_, ok := <-c.send
	assert.False(t, ok)
	assert.Empty(t, h.ActiveRoomIDs())
}

func TestHub_CloseRoom(t *testing.T) {
	h := NewHub(nil, "sg:")
	h.registerClient(testClient(h, 3, 10))
	h.registerClient(testClient(h, 3, 11))
	h.registerClient(testClient(h, 4, 12))

	assert.Equal(t, 2, h.CloseRoom(3))
	assert.Equal(t, 0, h.ClientCount(3))
	assert.Equal(t, []uint{4}, h.ActiveRoomIDs())
}

func TestHub_ListenDispatchesEvents(t *testing.T) {
	h := NewHub(nil, "sg:")
	c := testClient(h, 5, 10)
	h.registerClient(c)

	payload := `{"type":"dice_rolled","room_id":5,"user_id":10,"dice":3}`
	msgs := make(chan *redis.Message, 4)
	msgs <- &redis.Message{Channel: "sg:room:5:events", Payload: payload}
	msgs <- &redis.Message{Channel: "sg:room:5:events", Payload: `{"type":"chat"}`}
	msgs <- &redis.Message{Channel: "sg:room:6:events", Payload: payload} // room_id 不一致
	msgs <- &redis.Message{Channel: "other", Payload: payload}
	close(msgs)

	h.Listen(context.Background(), msgs)

	require.Len(t, c.send, 1)
	assert.JSONEq(t, payload, string(<-c.send))
}

type stubHistory struct {
	events []domain.Event
	err    error
}

func (s stubHistory) RecentEvents(context.Context, uint, int) ([]domain.Event, error) {
	return s.events, s.err
}

func TestHub_SendsHistoryOnRegister(t *testing.T) {
	h := NewHub(stubHistory{events: []domain.Event{{Type: domain.EventMemberAdded, RoomID: 1, UserID: 10}}}, "sg:")
	c := testClient(h, 1, 10)
	h.registerClient(c)

	select {
	case msg := <-c.send:
		assert.Contains(t, string(msg), `"type":"history"`)
		assert.Contains(t, string(msg), `"member_added"`)
	case <-time.After(time.Second):
		t.Fatal("history message not sent")
	}
}

func TestHub_HistoryErrorSendsErrorMessage(t *testing.T) {
	h := NewHub(stubHistory{err: errors.New("redis down")}, "sg:")
	c := testClient(h, 1, 10)
	h.registerClient(c)

	select {
	case msg := <-c.send:
		assert.Contains(t, string(msg), `"type":"error"`)
	case <-time.After(time.Second):
		t.Fatal("error message not sent")
	}
}

func TestHub_QueueMessage(t *testing.T) {
	h := NewHub(nil, "sg:")
	assert.True(t, h.QueueMessage(HubMessage{Type: "register", Client: testClient(h, 1, 1)}))
}
