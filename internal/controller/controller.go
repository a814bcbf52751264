package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"

	"github.com/lshigami/Margays/internal/dto"
	"github.com/lshigami/Margays/internal/model"
	"github.com/lshigami/Margays/internal/service"
)

// ParseUintParam reads a numeric path parameter. On failure it writes a 400
// response and returns false, so handlers can just return.
func ParseUintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	val, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid " + name + " format"})
		return 0, false
	}
	return uint(val), true
}

// RespondServiceError maps service errors onto HTTP statuses. Conflicts carry
// their reason verbatim. Sync failures return 503 so clients keep retrying
// instead of treating the exam as over.
func RespondServiceError(c *gin.Context, err error, action string) {
	var conflictErr *service.ConflictError
	var syncErr *service.SyncError
	switch {
	case errors.Is(err, service.ErrAttemptNotFound),
		errors.Is(err, service.ErrExamNotFound),
		errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Message: err.Error()})
	case errors.Is(err, service.ErrSessionWindowClosed):
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Message: err.Error()})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Message: conflictErr.Reason})
	case errors.As(err, &syncErr):
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Message: "Timer sync unavailable, reconnecting",
			Details: []string{syncErr.Error()},
		})
	default:
		log.Error().Err(err).Str("action", action).Msg("Unhandled service error")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Internal server error"})
	}
}

// AttemptState builds the wire representation of an attempt with the
// authoritative remaining seconds filled in.
func AttemptState(attempt *model.ExamAttempt, secondsRemaining int) dto.AttemptStateResponse {
	var resp dto.AttemptStateResponse
	if err := copier.Copy(&resp, attempt); err != nil {
		log.Warn().Err(err).Uint("attemptID", attempt.ID).Msg("Attempt state mapping failed")
	}
	resp.Status = string(attempt.Status)
	resp.SecondsRemaining = secondsRemaining
	return resp
}
