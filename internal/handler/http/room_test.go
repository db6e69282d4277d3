package http_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lachelier/sugoroku/internal/domain"
	"github.com/lachelier/sugoroku/internal/dto"
	httpHandler "github.com/lachelier/sugoroku/internal/handler/http"
	"github.com/lachelier/sugoroku/internal/infra/persistence/memory"
	"github.com/lachelier/sugoroku/internal/notify"
	"github.com/lachelier/sugoroku/internal/service"
)

const (
	owner = uint(10)
	guest = uint(11)
)

// fakeAuth 从 X-User-ID 头读取用户，代替 JWT 中间件。
func fakeAuth(c *gin.Context) {
	if raw := c.GetHeader("X-User-ID"); raw != "" {
		id, _ := strconv.ParseUint(raw, 10, 32)
		c.Set("user_id", uint(id))
	}
	c.Next()
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.NewStore()
	store.SeedBoard(domain.DefaultBoard())
	engine := service.NewEngine(store, notify.Nop{}, service.Rules{
		VirusUserID:    1,
		MaxMemberCount: 5,
		MaxActiveRooms: 20,
		DefaultBoardID: 1,
	})

	router := gin.New()
	rooms := router.Group("/api/rooms")
	rooms.Use(fakeAuth)
	httpHandler.NewRoomHandler(engine).RegisterRoutes(rooms)
	return router
}

func do(router *gin.Engine, method, path string, userID uint, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("X-User-ID", strconv.FormatUint(uint64(userID), 10))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createRoom(t *testing.T, router *gin.Engine) dto.RoomDTO {
	t.Helper()
	w := do(router, http.MethodPost, "/api/rooms", owner, gin.H{"name": "friday game"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var room dto.RoomDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	return room
}

func roomPath(room dto.RoomDTO, suffix string) string {
	return "/api/rooms/" + strconv.FormatUint(uint64(room.ID), 10) + suffix
}

func TestRoomHandler_CreateRoom(t *testing.T) {
	router := setupRouter(t)
	room := createRoom(t, router)

	assert.Equal(t, "friday game", room.Name)
	assert.Equal(t, owner, room.OwnerID)
	assert.Equal(t, 1, room.MemberCount)
	assert.Equal(t, "open", room.Status)
	assert.NotEmpty(t, room.UniqueCode)

	// 同一房主不能同时拥有两个 Open 房间
	w := do(router, http.MethodPost, "/api/rooms", owner, gin.H{"name": "second"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRoomHandler_CreateRoom_BadInput(t *testing.T) {
	router := setupRouter(t)

	w := do(router, http.MethodPost, "/api/rooms", owner, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPost, "/api/rooms", 0, gin.H{"name": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoomHandler_JoinRoom(t *testing.T) {
	router := setupRouter(t)
	room := createRoom(t, router)

	w := do(router, http.MethodPost, roomPath(room, "/join"), guest, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodPost, roomPath(room, "/join"), guest, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(router, http.MethodPost, "/api/rooms/abc/join", guest, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPost, "/api/rooms/999/join", guest, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodGet, "/api/rooms/joined", guest, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var joined dto.RoomDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &joined))
	assert.Equal(t, room.ID, joined.ID)
}

func TestRoomHandler_StartAndRoll(t *testing.T) {
	router := setupRouter(t)
	room := createRoom(t, router)
	require.Equal(t, http.StatusOK, do(router, http.MethodPost, roomPath(room, "/join"), guest, nil).Code)

	// 开局前掷骰
	w := do(router, http.MethodPost, roomPath(room, "/roll"), owner, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(router, http.MethodPost, roomPath(room, "/start"), guest, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(router, http.MethodPost, roomPath(room, "/start"), owner, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodPost, roomPath(room, "/roll"), owner, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var roll dto.RollResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &roll))
	assert.GreaterOrEqual(t, roll.Dice, 1)
	assert.LessOrEqual(t, roll.Dice, 6)
	assert.Equal(t, owner, roll.Member.UserID)

	// 非成员掷骰
	w = do(router, http.MethodPost, roomPath(room, "/roll"), 99, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodGet, roomPath(room, "/position"), owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pos dto.PositionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pos))
	assert.Equal(t, roll.Member.Position, pos.Position)

	w = do(router, http.MethodGet, roomPath(room, "/members/1"), owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var virus dto.MemberDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &virus))
	assert.True(t, virus.Virus)

	// 游戏中仍有人类玩家，不能解散
	w = do(router, http.MethodDelete, "/api/rooms", owner, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRoomHandler_GetRoomByCode(t *testing.T) {
	router := setupRouter(t)
	room := createRoom(t, router)

	w := do(router, http.MethodGet, "/api/rooms/code/"+room.UniqueCode, guest, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail dto.RoomDetailResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, room.ID, detail.Room.ID)
	assert.Equal(t, 30, detail.Board.GoalPosition)
	assert.NotEmpty(t, detail.Spaces)
	require.Len(t, detail.Members, 1)
	assert.Equal(t, owner, detail.Members[0].UserID)

	w = do(router, http.MethodGet, "/api/rooms/code/missing", guest, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoomHandler_NextGoAndDisband(t *testing.T) {
	router := setupRouter(t)
	room := createRoom(t, router)

	w := do(router, http.MethodGet, roomPath(room, "/next"), owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var next dto.NextGoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &next))
	assert.Equal(t, 1, next.NextGo)

	w = do(router, http.MethodGet, "/api/rooms", guest, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), room.UniqueCode)

	w = do(router, http.MethodDelete, "/api/rooms", owner, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(router, http.MethodGet, "/api/rooms/own", owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err  error
		code int
	}{
		{service.ErrRoomNotFound, http.StatusNotFound},
		{service.ErrBoardNotFound, http.StatusNotFound},
		{service.ErrCapacityExceeded, http.StatusConflict},
		{service.ErrInvalidDisband, http.StatusConflict},
		{service.ErrGameNotStarted, http.StatusConflict},
		{service.ErrPieceFinished, http.StatusConflict},
		{service.ErrNotRoomOwner, http.StatusForbidden},
		{service.ErrInvalidDice, http.StatusBadRequest},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		httpHandler.HandleServiceError(c, tc.err)
		assert.Equal(t, tc.code, w.Code, tc.err.Error())
	}
	// 500 不泄露内部错误
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	httpHandler.HandleServiceError(c, errors.New("dial tcp 10.0.0.1:3306"))
	assert.NotContains(t, w.Body.String(), "10.0.0.1")
}
