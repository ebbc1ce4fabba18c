package hub_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"maukemana-backend/internal/hub"
	"maukemana-backend/internal/progress"
)

func newTestServer(t *testing.T, h *hub.Hub, jobID string, snapshot progress.Snapshot) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.Subscribe(w, r, jobID, snapshot); err != nil {
			t.Errorf("Subscribe() error: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSubscribeReceivesInitialSnapshot(t *testing.T) {
	h := hub.New(slog.Default())
	_, wsURL := newTestServer(t, h, "job1", progress.Snapshot{Total: 10, Completed: 3})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()

	var first progress.Event
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON() error: %v", err)
	}
	if first.Counts.Total != 10 || first.Counts.Completed != 3 {
		t.Errorf("initial event counts = %+v, want Total=10 Completed=3", first.Counts)
	}
}

func TestPublishFansOutToSubscriber(t *testing.T) {
	h := hub.New(slog.Default())
	_, wsURL := newTestServer(t, h, "job1", progress.Snapshot{})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var initial progress.Event
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("ReadJSON() initial error: %v", err)
	}

	// Give the subscribe message time to be processed by the room
	// goroutine before publishing.
	time.Sleep(50 * time.Millisecond)

	h.Publish(progress.Event{JobID: "job1", PosterID: "p1", Status: "completed"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event progress.Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("ReadJSON() event error: %v", err)
	}
	if event.PosterID != "p1" {
		t.Errorf("PosterID = %q, want %q", event.PosterID, "p1")
	}
}

func TestPublishToJobWithNoSubscribersIsDropped(t *testing.T) {
	h := hub.New(slog.Default())
	// Publish with no room ever created for this job id must not panic
	// or block.
	h.Publish(progress.Event{JobID: "no-such-job"})
}

func TestCloseJobClosesSubscriberConnection(t *testing.T) {
	h := hub.New(slog.Default())
	_, wsURL := newTestServer(t, h, "job1", progress.Snapshot{})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var initial progress.Event
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("ReadJSON() initial error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	h.CloseJob("job1")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected read error after CloseJob, connection should be closed")
	}
}
