package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lachelier/sugoroku/internal/service"
)

// HandleServiceError 把业务错误映射为 HTTP 状态码，未知错误记录日志并返回 500。
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound),
		errors.Is(err, service.ErrMemberNotFound),
		errors.Is(err, service.ErrBoardNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrCapacityExceeded),
		errors.Is(err, service.ErrAlreadyMember),
		errors.Is(err, service.ErrInvalidDisband),
		errors.Is(err, service.ErrOwnOpenRoomExists),
		errors.Is(err, service.ErrGameNotStarted),
		errors.Is(err, service.ErrPieceFinished):
		ErrorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNotRoomOwner):
		ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidDice), errors.Is(err, service.ErrInvalidRoomName):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	default:
		// Log the internal error for debugging
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
