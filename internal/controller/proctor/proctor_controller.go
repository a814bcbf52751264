package proctor

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/lshigami/Margays/internal/controller"
	"github.com/lshigami/Margays/internal/dto"
	"github.com/lshigami/Margays/internal/repository"
	"github.com/lshigami/Margays/internal/service"
)

type ProctorController struct {
	lifecycle  service.AttemptLifecycleService
	violations service.ViolationService
	reports    service.IntegrityReportService
	presence   service.PresenceStore
	sessions   repository.SessionRepository
}

func NewProctorController(
	lifecycle service.AttemptLifecycleService,
	violations service.ViolationService,
	reports service.IntegrityReportService,
	presence service.PresenceStore,
	sessions repository.SessionRepository,
) *ProctorController {
	return &ProctorController{
		lifecycle:  lifecycle,
		violations: violations,
		reports:    reports,
		presence:   presence,
		sessions:   sessions,
	}
}

// ListViolations godoc
// @Summary List violations recorded for an attempt
// @Description Returns every persisted violation event in detection order.
// @Tags proctor
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {array} dto.ViolationEventResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid attempt ID format"
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Router /proctor/attempts/{attempt_id}/violations [get]
func (ctrl *ProctorController) ListViolations(c *gin.Context) {
	attemptID, ok := controller.ParseUintParam(c, "attempt_id")
	if !ok {
		return
	}

	events, err := ctrl.violations.ListViolations(attemptID)
	if err != nil {
		controller.RespondServiceError(c, err, "list_violations")
		return
	}
	c.JSON(http.StatusOK, events)
}

// GetPresence godoc
// @Summary Check whether a student is currently active
// @Description Reports the last activity timestamp mirrored from heartbeats and signals. Online flips to false when the presence TTL lapses.
// @Tags proctor
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.PresenceResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid attempt ID format"
// @Failure 500 {object} dto.ErrorResponse "Presence store unavailable"
// @Router /proctor/attempts/{attempt_id}/presence [get]
func (ctrl *ProctorController) GetPresence(c *gin.Context) {
	attemptID, ok := controller.ParseUintParam(c, "attempt_id")
	if !ok {
		return
	}

	lastSeen, online, err := ctrl.presence.LastSeen(c.Request.Context(), attemptID)
	if err != nil {
		log.Error().Err(err).Uint("attemptID", attemptID).Msg("Failed to read presence")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Presence store unavailable"})
		return
	}
	resp := dto.PresenceResponse{AttemptID: attemptID, Online: online}
	if online {
		resp.LastSeen = &lastSeen
	}
	c.JSON(http.StatusOK, resp)
}

// PauseAttempt godoc
// @Summary Pause an attempt's countdown
// @Description Freezes the timer for an incident (connectivity loss, proctor intervention). Paused wall time is never deducted from the student.
// @Tags proctor
// @Accept json
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Param pause body dto.PauseAttemptRequest true "Reason for pausing"
// @Success 200 {object} dto.AttemptStateResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid request body or attempt ID"
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Failure 409 {object} dto.ErrorResponse "Attempt not pausable"
// @Failure 503 {object} dto.ErrorResponse "Timer sync unavailable"
// @Router /proctor/attempts/{attempt_id}/pause [post]
func (ctrl *ProctorController) PauseAttempt(c *gin.Context) {
	attemptID, ok := controller.ParseUintParam(c, "attempt_id")
	if !ok {
		return
	}

	var req dto.PauseAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to bind PauseAttemptRequest")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	attempt, err := ctrl.lifecycle.Pause(c.Request.Context(), attemptID, req.Reason)
	if err != nil {
		controller.RespondServiceError(c, err, "pause_attempt")
		return
	}
	c.JSON(http.StatusOK, controller.AttemptState(attempt, attempt.TimeRemaining))
}

// UnpauseAttempt godoc
// @Summary Resume a paused attempt's countdown
// @Description Restarts the timer from the frozen remaining seconds.
// @Tags proctor
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.AttemptStateResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid attempt ID format"
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Failure 409 {object} dto.ErrorResponse "Attempt is not paused"
// @Router /proctor/attempts/{attempt_id}/unpause [post]
func (ctrl *ProctorController) UnpauseAttempt(c *gin.Context) {
	attemptID, ok := controller.ParseUintParam(c, "attempt_id")
	if !ok {
		return
	}

	attempt, err := ctrl.lifecycle.Unpause(c.Request.Context(), attemptID)
	if err != nil {
		controller.RespondServiceError(c, err, "unpause_attempt")
		return
	}
	c.JSON(http.StatusOK, controller.AttemptState(attempt, attempt.TimeRemaining))
}

// FlagAttempt godoc
// @Summary Flag an attempt for review
// @Description Records a critical manual violation. Unlike browser signals this write is synchronous; the flag is durable once the call returns.
// @Tags proctor
// @Accept json
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Param flag body dto.FlagAttemptRequest true "Reason for flagging"
// @Success 201 {object} dto.ViolationEventResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid request body or attempt ID"
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Router /proctor/attempts/{attempt_id}/flag [post]
func (ctrl *ProctorController) FlagAttempt(c *gin.Context) {
	attemptID, ok := controller.ParseUintParam(c, "attempt_id")
	if !ok {
		return
	}

	var req dto.FlagAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to bind FlagAttemptRequest")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	event, err := ctrl.violations.FlagManually(c.Request.Context(), attemptID, req.Reason)
	if err != nil {
		controller.RespondServiceError(c, err, "flag_attempt")
		return
	}
	c.JSON(http.StatusCreated, event)
}

// GetIntegrityReport godoc
// @Summary Generate an integrity report for an attempt
// @Description Summarizes violation counts and, when the AI reviewer is configured, adds a narrative cheating-likelihood assessment.
// @Tags proctor
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.IntegrityReportResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid attempt ID format"
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Router /proctor/attempts/{attempt_id}/report [get]
func (ctrl *ProctorController) GetIntegrityReport(c *gin.Context) {
	attemptID, ok := controller.ParseUintParam(c, "attempt_id")
	if !ok {
		return
	}

	report, err := ctrl.reports.Report(c.Request.Context(), attemptID)
	if err != nil {
		controller.RespondServiceError(c, err, "integrity_report")
		return
	}
	c.JSON(http.StatusOK, report)
}

// DisableSessionCamera godoc
// @Summary Disable camera streaming for a session
// @Description Marks the session's camera feeds as disabled on the recording backend. Attempt teardown also does this for camera-required sessions; this endpoint is the manual override.
// @Tags proctor
// @Param session_id path int true "Session ID"
// @Success 204 "No Content"
// @Failure 400 {object} dto.ErrorResponse "Invalid session ID format"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /proctor/sessions/{session_id}/disable-camera [post]
func (ctrl *ProctorController) DisableSessionCamera(c *gin.Context) {
	sessionID, ok := controller.ParseUintParam(c, "session_id")
	if !ok {
		return
	}

	if err := ctrl.sessions.DisableCamera(c.Request.Context(), sessionID); err != nil {
		log.Error().Err(err).Uint("sessionID", sessionID).Msg("Failed to disable session camera")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to disable session camera"})
		return
	}
	c.Status(http.StatusNoContent)
}
