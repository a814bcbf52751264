package student

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lshigami/Margays/internal/dto"
	"github.com/lshigami/Margays/internal/model"
	"github.com/lshigami/Margays/internal/service"
)

var _ service.AttemptNotifier = (*MonitorHub)(nil)

// hubSocket is one real websocket pair attached to the hub, so tests exercise
// the same connection teardown the live endpoint relies on.
type hubSocket struct {
	client *websocket.Conn
	server *websocket.Conn
	frames <-chan liveFrame
	srv    *httptest.Server
}

func (s *hubSocket) close() {
	s.client.Close()
	s.srv.Close()
}

func attachSocket(t *testing.T, hub *MonitorHub, attemptID uint) *hubSocket {
	t.Helper()
	sock := &hubSocket{}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ready := make(chan struct{})
	sock.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sock.server = conn
		sock.frames = hub.Attach(attemptID, conn)
		close(ready)
	}))

	url := "ws" + strings.TrimPrefix(sock.srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		sock.srv.Close()
		t.Fatalf("dial failed: %v", err)
	}
	sock.client = client

	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the upgrade")
	}
	return sock
}

func recvFrame(t *testing.T, frames <-chan liveFrame) liveFrame {
	t.Helper()
	select {
	case frame, ok := <-frames:
		if !ok {
			t.Fatal("frame channel closed unexpectedly")
		}
		return frame
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a frame")
	}
	return liveFrame{}
}

func TestMonitorHub_Broadcast_DeliversToAttachedSocket(t *testing.T) {
	hub := NewMonitorHub()
	sock := attachSocket(t, hub, 5)
	defer sock.close()

	if got := hub.Watchers(5); got != 1 {
		t.Fatalf("hub reports %d watchers, want 1", got)
	}

	hub.NotifyTick(5, 42)
	frame := recvFrame(t, sock.frames)
	if frame.Kind != frameTick || frame.SecondsRemaining != 42 {
		t.Errorf("unexpected frame: %+v", frame)
	}
}

func TestMonitorHub_Broadcast_CarriesEveryFrameKind(t *testing.T) {
	hub := NewMonitorHub()
	sock := attachSocket(t, hub, 5)
	defer sock.close()

	hub.NotifyViolation(5, dto.ViolationAckResponse{EventUID: "evt-1", Severity: "high", Counted: true})
	frame := recvFrame(t, sock.frames)
	if frame.Kind != frameViolation || frame.Violation == nil || frame.Violation.EventUID != "evt-1" {
		t.Errorf("unexpected violation frame: %+v", frame)
	}

	hub.NotifyPause(5, true, "network check")
	frame = recvFrame(t, sock.frames)
	if frame.Kind != framePause || frame.Paused == nil || !*frame.Paused || frame.Reason != "network check" {
		t.Errorf("unexpected pause frame: %+v", frame)
	}

	hub.NotifyStatus(5, model.AttemptSubmitted)
	frame = recvFrame(t, sock.frames)
	if frame.Kind != frameStatus || frame.Status != string(model.AttemptSubmitted) {
		t.Errorf("unexpected status frame: %+v", frame)
	}
}

func TestMonitorHub_Broadcast_IsScopedToAttempt(t *testing.T) {
	hub := NewMonitorHub()
	watching := attachSocket(t, hub, 5)
	defer watching.close()
	other := attachSocket(t, hub, 6)
	defer other.close()

	hub.NotifyTick(5, 42)
	recvFrame(t, watching.frames)

	select {
	case frame := <-other.frames:
		t.Errorf("attempt 6 received attempt 5's frame: %+v", frame)
	default:
	}
}

func TestMonitorHub_Detach_ClosesChannel(t *testing.T) {
	hub := NewMonitorHub()
	sock := attachSocket(t, hub, 5)
	defer sock.close()

	hub.Detach(5, sock.server)
	hub.Detach(5, sock.server) // repeat must be harmless

	if _, ok := <-sock.frames; ok {
		t.Error("frame channel still open after detach")
	}
	if got := hub.Watchers(5); got != 0 {
		t.Errorf("hub reports %d watchers after detach", got)
	}
}

func TestMonitorHub_CloseAttempt_ClosesEverySocket(t *testing.T) {
	hub := NewMonitorHub()
	first := attachSocket(t, hub, 5)
	defer first.close()
	second := attachSocket(t, hub, 5)
	defer second.close()

	hub.CloseAttempt(5)

	for i, sock := range []*hubSocket{first, second} {
		if _, ok := <-sock.frames; ok {
			t.Errorf("socket %d frame channel still open", i+1)
		}
	}
	if got := hub.Watchers(5); got != 0 {
		t.Errorf("hub reports %d watchers after close", got)
	}

	// The underlying connections were closed, so the clients see EOF.
	first.client.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := first.client.ReadMessage(); err == nil {
		t.Error("client read succeeded on a closed socket")
	}
}

func TestMonitorHub_SlowConsumer_DropsFramesWithoutBlocking(t *testing.T) {
	hub := NewMonitorHub()
	sock := attachSocket(t, hub, 5)
	defer sock.close()

	// Nothing reads the channel; the buffer holds 16 frames and the rest
	// must be dropped rather than block the notifier.
	done := make(chan struct{})
	go func() {
		for i := 1; i <= 20; i++ {
			hub.NotifyTick(5, i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow consumer")
	}

	hub.CloseAttempt(5)
	delivered := 0
	for range sock.frames {
		delivered++
	}
	if delivered != 16 {
		t.Errorf("slow consumer received %d frames, want the 16 buffered", delivered)
	}
}
