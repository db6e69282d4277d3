package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lachelier/sugoroku/internal/dto"
	"github.com/lachelier/sugoroku/internal/service"
)

// RoomHandler 封装了房间管理相关的 HTTP 处理逻辑
type RoomHandler struct {
	engine *service.Engine
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(engine *service.Engine) *RoomHandler {
	if engine == nil {
		panic("Engine cannot be nil for RoomHandler")
	}
	return &RoomHandler{engine: engine}
}

// ListOpenRooms GET /api/rooms
func (h *RoomHandler) ListOpenRooms(c *gin.Context) {
	rooms, err := h.engine.GetOpenRooms(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"rooms": dto.NewRoomDTOs(rooms)})
}

// CreateRoom POST /api/rooms，建房后房主自动入室。
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	logCtx := logrus.WithField("user_id", userID)

	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logCtx.WithError(err).Warn("Handler.CreateRoom: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: name is required")
		return
	}

	room, err := h.engine.OpenRoom(c.Request.Context(), userID, req.BoardID, req.Name)
	if err != nil {
		logCtx.WithError(err).Warn("Handler.CreateRoom: Failed to create room")
		HandleServiceError(c, err)
		return
	}

	logCtx.WithFields(logrus.Fields{"room_id": room.ID, "unique_code": room.UniqueCode}).Info("Handler.CreateRoom: Room created successfully")
	SuccessResponse(c, http.StatusCreated, dto.NewRoomDTO(room))
}

// GetOwnRoom GET /api/rooms/own
func (h *RoomHandler) GetOwnRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	room, err := h.engine.GetOwnOpenRoom(c.Request.Context(), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.NewRoomDTO(room))
}

// GetJoinedRoom GET /api/rooms/joined
func (h *RoomHandler) GetJoinedRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	room, err := h.engine.GetJoinedRoom(c.Request.Context(), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.NewRoomDTO(room))
}

// GetRoomByCode GET /api/rooms/code/:code，返回房间、棋盘、格子和棋子。
func (h *RoomHandler) GetRoomByCode(c *gin.Context) {
	ctx := c.Request.Context()
	room, board, err := h.engine.FindByUniqueCode(ctx, c.Param("code"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	spaces, err := h.engine.GetSpaces(ctx, room.ID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	members, err := h.engine.ListMembers(ctx, room.ID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.RoomDetailResponse{
		Room:    dto.NewRoomDTO(room),
		Board:   dto.NewBoardDTO(board),
		Spaces:  dto.NewSpaceDTOs(spaces),
		Members: dto.NewMemberDTOs(members),
	})
}

// JoinRoom POST /api/rooms/:id/join
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID})

	if err := h.engine.AddMember(c.Request.Context(), userID, roomID); err != nil {
		logCtx.WithError(err).Warn("Handler.JoinRoom: Failed to join room")
		HandleServiceError(c, err)
		return
	}
	logCtx.Info("Handler.JoinRoom: User joined room successfully")
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Joined room successfully", "room_id": roomID})
}

// StartGame POST /api/rooms/:id/start，仅房主可调用。
func (h *RoomHandler) StartGame(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.engine.StartGameAsOwner(c.Request.Context(), userID, roomID); err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID}).WithError(err).Warn("Handler.StartGame: Failed to start game")
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Game started", "room_id": roomID})
}

// Roll POST /api/rooms/:id/roll，服务端掷骰并移动调用者的棋子。
func (h *RoomHandler) Roll(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	dice, member, err := h.engine.RollAndMove(c.Request.Context(), roomID, userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.RollResponse{Dice: dice, Member: dto.NewMemberDTO(member)})
}

// GetMember GET /api/rooms/:id/members/:userId
func (h *RoomHandler) GetMember(c *gin.Context) {
	roomID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	userID, ok := uintParam(c, "userId")
	if !ok {
		return
	}
	member, err := h.engine.GetMember(c.Request.Context(), roomID, userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.NewMemberDTO(member))
}

// GetPosition GET /api/rooms/:id/position
func (h *RoomHandler) GetPosition(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	position, err := h.engine.GetKomaPosition(c.Request.Context(), roomID, userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.PositionResponse{RoomID: roomID, UserID: userID, Position: position})
}

// GetNextGo GET /api/rooms/:id/next
func (h *RoomHandler) GetNextGo(c *gin.Context) {
	roomID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	next, err := h.engine.NextGo(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, dto.NextGoResponse{RoomID: roomID, NextGo: next})
}

// Disband DELETE /api/rooms，解散调用者拥有的房间。
func (h *RoomHandler) Disband(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.engine.Disband(c.Request.Context(), userID); err != nil {
		logrus.WithField("user_id", userID).WithError(err).Warn("Handler.Disband: Failed to disband room")
		HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterRoutes 在已挂载认证中间件的分组上注册房间路由。
func (h *RoomHandler) RegisterRoutes(rooms gin.IRoutes) {
	rooms.GET("", h.ListOpenRooms)
	rooms.POST("", h.CreateRoom)
	rooms.DELETE("", h.Disband)
	rooms.GET("/own", h.GetOwnRoom)
	rooms.GET("/joined", h.GetJoinedRoom)
	rooms.GET("/code/:code", h.GetRoomByCode)
	rooms.POST("/:id/join", h.JoinRoom)
	rooms.POST("/:id/start", h.StartGame)
	rooms.POST("/:id/roll", h.Roll)
	rooms.GET("/:id/members/:userId", h.GetMember)
	rooms.GET("/:id/position", h.GetPosition)
	rooms.GET("/:id/next", h.GetNextGo)
}
