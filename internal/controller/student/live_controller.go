package student

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/lshigami/Margays/internal/controller"
	"github.com/lshigami/Margays/internal/service"
)

// LiveController upgrades monitoring requests to websockets and pumps hub
// frames onto them.
type LiveController struct {
	hub       *MonitorHub
	lifecycle service.AttemptLifecycleService
	teardown  *service.TeardownRegistry
	upgrader  websocket.Upgrader
}

func NewLiveController(hub *MonitorHub, lifecycle service.AttemptLifecycleService, teardown *service.TeardownRegistry) *LiveController {
	return &LiveController{
		hub:       hub,
		lifecycle: lifecycle,
		teardown:  teardown,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The exam client runs on a different origin than the API.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Live godoc
// @Summary Stream live attempt frames over a websocket
// @Description Upgrades to a websocket and streams tick, violation, pause and status frames for the attempt. The first frame carries the authoritative remaining seconds.
// @Tags attempts
// @Param attempt_id path int true "Attempt ID"
// @Success 101 "Switching Protocols"
// @Failure 400 {object} dto.ErrorResponse "Invalid attempt ID format"
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Failure 503 {object} dto.ErrorResponse "Timer sync unavailable"
// @Router /attempts/{attempt_id}/live [get]
func (ctrl *LiveController) Live(c *gin.Context) {
	attemptID, ok := controller.ParseUintParam(c, "attempt_id")
	if !ok {
		return
	}

	// Resolve the authoritative time before upgrading so a bad attempt ID
	// still gets a plain HTTP error.
	snapshot, err := ctrl.lifecycle.RemainingSeconds(c.Request.Context(), attemptID)
	if err != nil {
		controller.RespondServiceError(c, err, "live_attach")
		return
	}

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Uint("attemptID", attemptID).Msg("WebSocket upgrade failed")
		return
	}

	frames := ctrl.hub.Attach(attemptID, conn)
	ctrl.teardown.Register(attemptID, "monitor-sockets", func() {
		ctrl.hub.CloseAttempt(attemptID)
	})
	log.Debug().Uint("attemptID", attemptID).Msg("Monitor socket attached")

	go ctrl.readLoop(attemptID, conn)
	ctrl.writeLoop(attemptID, conn, frames, snapshot.SecondsRemaining)
}

// readLoop discards inbound messages; its job is noticing the peer went away.
func (ctrl *LiveController) readLoop(attemptID uint, conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			ctrl.hub.Detach(attemptID, conn)
			conn.Close()
			return
		}
	}
}

func (ctrl *LiveController) writeLoop(attemptID uint, conn *websocket.Conn, frames <-chan liveFrame, initialSeconds int) {
	defer func() {
		ctrl.hub.Detach(attemptID, conn)
		conn.Close()
	}()

	if err := conn.WriteJSON(liveFrame{Kind: frameTick, SecondsRemaining: initialSeconds}); err != nil {
		return
	}
	for frame := range frames {
		if err := conn.WriteJSON(frame); err != nil {
			return
		}
	}
	// Channel closed by teardown. Tell the client the stream is over.
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
