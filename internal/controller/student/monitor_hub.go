package student

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lshigami/Margays/internal/dto"
	"github.com/lshigami/Margays/internal/model"
)

// liveFrame is one message on the live monitoring stream. Kind selects which
// of the optional fields are meaningful.
type liveFrame struct {
	Kind             string                    `json:"kind"`
	SecondsRemaining int                       `json:"seconds_remaining"`
	Paused           *bool                     `json:"paused,omitempty"`
	Reason           string                    `json:"reason,omitempty"`
	Status           string                    `json:"status,omitempty"`
	Violation        *dto.ViolationAckResponse `json:"violation,omitempty"`
}

const (
	frameTick      = "tick"
	frameViolation = "violation"
	framePause     = "pause"
	frameStatus    = "status"
)

// MonitorHub fans lifecycle events out to the websockets watching each
// attempt. It implements service.AttemptNotifier; sockets that cannot keep up
// simply miss frames, the next tick carries the authoritative value anyway.
type MonitorHub struct {
	mu    sync.Mutex
	conns map[uint]map[*websocket.Conn]chan liveFrame
}

func NewMonitorHub() *MonitorHub {
	return &MonitorHub{
		conns: make(map[uint]map[*websocket.Conn]chan liveFrame),
	}
}

// Attach registers a socket for an attempt's frames. The returned channel is
// closed on Detach or CloseAttempt; the caller owns all writes to the socket.
func (h *MonitorHub) Attach(attemptID uint, conn *websocket.Conn) <-chan liveFrame {
	frames := make(chan liveFrame, 16)
	h.mu.Lock()
	if h.conns[attemptID] == nil {
		h.conns[attemptID] = make(map[*websocket.Conn]chan liveFrame)
	}
	h.conns[attemptID][conn] = frames
	h.mu.Unlock()
	return frames
}

// Detach removes a single socket. Idempotent.
func (h *MonitorHub) Detach(attemptID uint, conn *websocket.Conn) {
	h.mu.Lock()
	frames, ok := h.conns[attemptID][conn]
	if ok {
		delete(h.conns[attemptID], conn)
		if len(h.conns[attemptID]) == 0 {
			delete(h.conns, attemptID)
		}
	}
	h.mu.Unlock()
	if ok {
		close(frames)
	}
}

// CloseAttempt detaches and closes every socket watching the attempt. This is
// the release handle registered with the teardown registry on connect.
func (h *MonitorHub) CloseAttempt(attemptID uint) {
	h.mu.Lock()
	conns := h.conns[attemptID]
	delete(h.conns, attemptID)
	h.mu.Unlock()
	for conn, frames := range conns {
		close(frames)
		conn.Close()
	}
}

// Watchers reports how many sockets are attached to the attempt.
func (h *MonitorHub) Watchers(attemptID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[attemptID])
}

func (h *MonitorHub) broadcast(attemptID uint, frame liveFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, frames := range h.conns[attemptID] {
		select {
		case frames <- frame:
		default:
			// Slow consumer, drop the frame.
		}
	}
}

func (h *MonitorHub) NotifyTick(attemptID uint, secondsRemaining int) {
	h.broadcast(attemptID, liveFrame{Kind: frameTick, SecondsRemaining: secondsRemaining})
}

func (h *MonitorHub) NotifyViolation(attemptID uint, ack dto.ViolationAckResponse) {
	h.broadcast(attemptID, liveFrame{Kind: frameViolation, Violation: &ack})
}

func (h *MonitorHub) NotifyPause(attemptID uint, paused bool, reason string) {
	h.broadcast(attemptID, liveFrame{Kind: framePause, Paused: &paused, Reason: reason})
}

func (h *MonitorHub) NotifyStatus(attemptID uint, status model.AttemptStatus) {
	h.broadcast(attemptID, liveFrame{Kind: frameStatus, Status: string(status)})
}
