package student

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/lshigami/Margays/internal/controller"
	"github.com/lshigami/Margays/internal/dto"
	"github.com/lshigami/Margays/internal/service"
)

type AttemptController struct {
	lifecycle  service.AttemptLifecycleService
	violations service.ViolationService
}

func NewAttemptController(lifecycle service.AttemptLifecycleService, violations service.ViolationService) *AttemptController {
	return &AttemptController{
		lifecycle:  lifecycle,
		violations: violations,
	}
}

// StartAttempt godoc
// @Summary Start an exam attempt
// @Description Starts (or re-adopts) the attempt for a student in a session. The timer is anchored on the server clock.
// @Tags attempts
// @Accept json
// @Produce json
// @Param session_id path int true "Session ID"
// @Param attempt body dto.StartAttemptRequest true "Student and exam identifiers"
// @Success 201 {object} dto.AttemptStateResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid request body or session ID"
// @Failure 404 {object} dto.ErrorResponse "Session or exam not found"
// @Failure 409 {object} dto.ErrorResponse "Attempt already terminal or concurrent start in flight"
// @Failure 422 {object} dto.ErrorResponse "Session window is not open"
// @Router /sessions/{session_id}/attempts [post]
func (ctrl *AttemptController) StartAttempt(c *gin.Context) {
	sessionID, ok := controller.ParseUintParam(c, "session_id")
	if !ok {
		return
	}

	var req dto.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to bind StartAttemptRequest")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	attempt, err := ctrl.lifecycle.Start(c.Request.Context(), sessionID, req.StudentID, req.ExamID)
	if err != nil {
		controller.RespondServiceError(c, err, "start_attempt")
		return
	}
	c.JSON(http.StatusCreated, controller.AttemptState(attempt, attempt.TimeRemaining))
}

// ResumeAttempt godoc
// @Summary Resume an in-progress attempt
// @Description Re-syncs the timer against the server clock after a reload or reconnect and returns the authoritative state.
// @Tags attempts
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.AttemptStateResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid attempt ID format"
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Failure 409 {object} dto.ErrorResponse "Attempt already terminal"
// @Failure 503 {object} dto.ErrorResponse "Timer sync unavailable"
// @Router /attempts/{attempt_id}/resume [post]
func (ctrl *AttemptController) ResumeAttempt(c *gin.Context) {
	attemptID, ok := controller.ParseUintParam(c, "attempt_id")
	if !ok {
		return
	}

	attempt, snapshot, err := ctrl.lifecycle.Resume(c.Request.Context(), attemptID)
	if err != nil {
		controller.RespondServiceError(c, err, "resume_attempt")
		return
	}
	c.JSON(http.StatusOK, controller.AttemptState(attempt, snapshot.SecondsRemaining))
}

// SubmitAttempt godoc
// @Summary Submit an attempt
// @Description Finalizes the attempt. The transition is guarded so a concurrent expiry and a manual submit cannot both win.
// @Tags attempts
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.AttemptStateResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid attempt ID format"
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Failure 409 {object} dto.ErrorResponse "Attempt is no longer in progress"
// @Router /attempts/{attempt_id}/submit [post]
func (ctrl *AttemptController) SubmitAttempt(c *gin.Context) {
	attemptID, ok := controller.ParseUintParam(c, "attempt_id")
	if !ok {
		return
	}

	attempt, err := ctrl.lifecycle.Submit(c.Request.Context(), attemptID)
	if err != nil {
		controller.RespondServiceError(c, err, "submit_attempt")
		return
	}
	c.JSON(http.StatusOK, controller.AttemptState(attempt, attempt.TimeRemaining))
}

// GetTimer godoc
// @Summary Get the authoritative remaining time
// @Description Returns the server-computed remaining seconds for the attempt. Clients resync their local countdown from this.
// @Tags attempts
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.TimerSnapshotResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid attempt ID format"
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Failure 503 {object} dto.ErrorResponse "Timer sync unavailable"
// @Router /attempts/{attempt_id}/timer [get]
func (ctrl *AttemptController) GetTimer(c *gin.Context) {
	attemptID, ok := controller.ParseUintParam(c, "attempt_id")
	if !ok {
		return
	}

	snapshot, err := ctrl.lifecycle.RemainingSeconds(c.Request.Context(), attemptID)
	if err != nil {
		controller.RespondServiceError(c, err, "get_timer")
		return
	}
	c.JSON(http.StatusOK, dto.TimerSnapshotResponse{
		SecondsRemaining: snapshot.SecondsRemaining,
		AsOf:             snapshot.AsOf,
	})
}

// ReportSignal godoc
// @Summary Report a raw proctoring signal
// @Description Classifies a browser signal (tab switch, copy attempt, ...) into a violation and acknowledges with the assigned severity. Persistence is asynchronous.
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Param signal body dto.RawSignalRequest true "Raw signal from the exam client"
// @Success 202 {object} dto.ViolationAckResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid request body or attempt ID"
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Failure 409 {object} dto.ErrorResponse "Attempt already terminal"
// @Router /attempts/{attempt_id}/signals [post]
func (ctrl *AttemptController) ReportSignal(c *gin.Context) {
	attemptID, ok := controller.ParseUintParam(c, "attempt_id")
	if !ok {
		return
	}

	var req dto.RawSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to bind RawSignalRequest")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = c.Request.UserAgent()
	}

	ack, err := ctrl.violations.ReportSignal(c.Request.Context(), attemptID, req)
	if err != nil {
		controller.RespondServiceError(c, err, "report_signal")
		return
	}
	c.JSON(http.StatusAccepted, ack)
}

// Heartbeat godoc
// @Summary Record student activity
// @Description Marks the attempt as active right now. Used by proctor dashboards to spot stalled or disconnected students.
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Param heartbeat body dto.HeartbeatRequest false "Optional page context"
// @Success 204 "No Content"
// @Failure 400 {object} dto.ErrorResponse "Invalid attempt ID format"
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Router /attempts/{attempt_id}/heartbeat [post]
func (ctrl *AttemptController) Heartbeat(c *gin.Context) {
	attemptID, ok := controller.ParseUintParam(c, "attempt_id")
	if !ok {
		return
	}

	var req dto.HeartbeatRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
			return
		}
	}

	if err := ctrl.violations.Heartbeat(attemptID, req.PageURL); err != nil {
		controller.RespondServiceError(c, err, "heartbeat")
		return
	}
	c.Status(http.StatusNoContent)
}

// TeardownAttempt godoc
// @Summary Tear down attempt resources
// @Description Releases every proctoring resource held for the attempt (sockets, counters, camera binding). Safe to call repeatedly.
// @Tags attempts
// @Param attempt_id path int true "Attempt ID"
// @Success 204 "No Content"
// @Failure 400 {object} dto.ErrorResponse "Invalid attempt ID format"
// @Router /attempts/{attempt_id}/teardown [post]
func (ctrl *AttemptController) TeardownAttempt(c *gin.Context) {
	attemptID, ok := controller.ParseUintParam(c, "attempt_id")
	if !ok {
		return
	}

	ctrl.lifecycle.ForceTeardown(c.Request.Context(), attemptID)
	c.Status(http.StatusNoContent)
}

// GetResult godoc
// @Summary Get the attempt result
// @Description Returns the outcome for a finished attempt. Details stay pending until the exam's results are released.
// @Tags attempts
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.AttemptResultResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid attempt ID format"
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Failure 409 {object} dto.ErrorResponse "Attempt is still in progress"
// @Router /attempts/{attempt_id}/result [get]
func (ctrl *AttemptController) GetResult(c *gin.Context) {
	attemptID, ok := controller.ParseUintParam(c, "attempt_id")
	if !ok {
		return
	}

	result, err := ctrl.lifecycle.Result(c.Request.Context(), attemptID)
	if err != nil {
		controller.RespondServiceError(c, err, "get_result")
		return
	}
	c.JSON(http.StatusOK, result)
}
